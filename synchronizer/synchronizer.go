package synchronizer

import (
	"encoding/json"
	"net/url"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/chrisvdg/tourneyfilter/criteria"
)

// DefaultPrefix prefixes the storage keys when no prefix is configured
const DefaultPrefix = "tourneyfilter"

// snapshotVersion is bumped whenever criteria semantics change;
// snapshots of another version are ignored
const snapshotVersion = 1

// Config represents a synchronizer config
type Config struct {
	// Prefix namespaces the storage keys
	Prefix string
}

// New creates a new synchronizer instance
func New(c *Config, store *criteria.Store, addr Address, storage Storage) (*Synchronizer, error) {
	if store == nil {
		return nil, errors.New("no criteria store provided")
	}
	if addr == nil {
		return nil, errors.New("no address provided")
	}
	if storage == nil {
		return nil, errors.New("no storage provided")
	}
	prefix := DefaultPrefix
	if c != nil && c.Prefix != "" {
		prefix = c.Prefix
	}

	return &Synchronizer{
		store:       store,
		addr:        addr,
		storage:     storage,
		criteriaKey: prefix + ".criteria",
		presetsKey:  prefix + ".presets",
		m:           &sync.Mutex{},
	}, nil
}

// Synchronizer keeps the criteria store, the address query string and the
// persisted snapshot consistent
type Synchronizer struct {
	store       *criteria.Store
	addr        Address
	storage     Storage
	criteriaKey string
	presetsKey  string
	// m serializes preset read-modify-write cycles
	m *sync.Mutex
}

// snapshot represents persisted criteria
type snapshot struct {
	Version  int               `json:"version"`
	Criteria map[string]string `json:"criteria"`
}

func newSnapshot(c criteria.Criteria) snapshot {
	return snapshot{
		Version:  snapshotVersion,
		Criteria: c.Map(),
	}
}

// OnCriteriaChanged mirrors c into the address and the storage.
// Failures are logged; they never interrupt the caller.
func (s *Synchronizer) OnCriteriaChanged(c criteria.Criteria) {
	err := s.Sync(c)
	if err != nil {
		log.Errorf("Failed to synchronize criteria %s: %s", c, err)
	}
}

// Sync replaces the address query with the canonical key of c and persists
// a snapshot of c. Both writes are attempted; the first error is returned.
func (s *Synchronizer) Sync(c criteria.Criteria) error {
	addrErr := s.addr.ReplaceQuery(c.Key())
	if addrErr != nil {
		addrErr = errors.Wrap(addrErr, "failed to replace address query")
	}

	data, err := json.Marshal(newSnapshot(c))
	if err != nil {
		return errors.Wrap(err, "failed to marshal criteria snapshot")
	}
	err = s.storage.Set(s.criteriaKey, data)
	if err != nil {
		err = errors.Wrap(err, "failed to persist criteria snapshot")
	}

	if addrErr != nil {
		return addrErr
	}
	return err
}

// LoadInitial reconstructs criteria from the address query, falling back to
// the persisted snapshot and then to defaults, field by field. A parameter
// present in the address always wins, including one that names the default.
// Invalid or unreadable input is dropped with a warning.
func (s *Synchronizer) LoadInitial() criteria.Criteria {
	c := s.loadSnapshot()

	q, err := url.ParseQuery(s.addr.Query())
	if err != nil {
		// ParseQuery keeps every parameter it could decode
		log.Warnf("Malformed address query: %s", err)
	}
	for _, name := range criteria.Fields() {
		if _, ok := q[name]; !ok {
			continue
		}
		n, err := c.With(name, q.Get(name))
		if err != nil {
			log.Warnf("Ignoring address parameter: %s", err)
			continue
		}
		c = n
	}

	log.Debugf("Loaded initial criteria %s", c)
	return c
}

func (s *Synchronizer) loadSnapshot() criteria.Criteria {
	data, err := s.storage.Get(s.criteriaKey)
	if errors.Cause(err) == ErrNotExist {
		return criteria.Defaults()
	}
	if err != nil {
		log.Warnf("Failed to read stored criteria: %s", err)
		return criteria.Defaults()
	}

	snap, err := decodeSnapshot(data)
	if err != nil {
		log.Warnf("Ignoring stored criteria: %s", err)
		return criteria.Defaults()
	}
	c, errs := criteria.FromMap(snap.Criteria)
	for _, err := range errs {
		log.Warnf("Ignoring stored field: %s", err)
	}
	return c
}

func decodeSnapshot(data []byte) (snapshot, error) {
	var snap snapshot
	err := json.Unmarshal(data, &snap)
	if err != nil {
		return snapshot{}, errors.Wrap(err, "failed to parse snapshot")
	}
	if snap.Version != snapshotVersion {
		return snapshot{}, errors.Errorf("snapshot version %d is not supported", snap.Version)
	}
	return snap, nil
}
