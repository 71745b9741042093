// Package coordinator ties the criteria store, the lookup scheduler, the
// result cache and the address/storage synchronizer into one filter state
// coordinator per page.
//
// A change flows in one direction: the store validates and publishes new
// criteria, the scheduler debounces them into a lookup answered from the
// cache or the provider, and the synchronizer mirrors them into the address
// and persisted storage.
package coordinator

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/chrisvdg/tourneyfilter/cache"
	"github.com/chrisvdg/tourneyfilter/criteria"
	"github.com/chrisvdg/tourneyfilter/scheduler"
	"github.com/chrisvdg/tourneyfilter/synchronizer"
)

// Config represents a coordinator config
type Config struct {
	// Debounce is the delay after the last change before a lookup is dispatched
	Debounce time.Duration
	// CacheSize bounds the number of cached result sets
	CacheSize int
	// StoragePrefix namespaces the persisted criteria and presets
	StoragePrefix string
	// OnResults receives every winning result set. Callbacks run one at a
	// time and may read or change the coordinator.
	OnResults scheduler.ResultsFunc
	// OnError receives failures of lookups that were still current
	OnError scheduler.ErrorFunc
}

// New creates a new coordinator instance.
// The coordinator starts at default criteria; call Load to restore the
// address and persisted state and run the first lookup.
func New(c *Config, p scheduler.Provider, addr synchronizer.Address, storage synchronizer.Storage) (*Coordinator, error) {
	if c == nil {
		c = &Config{}
	}
	id := uuid.New().String()
	l := log.WithField("coordinator", id)

	store := criteria.NewStore(criteria.Defaults())
	results := cache.New(c.CacheSize)
	sched, err := scheduler.New(&scheduler.Config{Delay: c.Debounce}, results, p, c.OnResults, c.OnError)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create scheduler")
	}
	syncer, err := synchronizer.New(&synchronizer.Config{Prefix: c.StoragePrefix}, store, addr, storage)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create synchronizer")
	}

	store.Subscribe(sched.OnCriteriaChanged)
	store.Subscribe(syncer.OnCriteriaChanged)
	l.Debug("Coordinator created")

	return &Coordinator{
		id:        id,
		store:     store,
		cache:     results,
		scheduler: sched,
		sync:      syncer,
		log:       l,
	}, nil
}

// Coordinator represents the filter state of one page
type Coordinator struct {
	id        string
	store     *criteria.Store
	cache     *cache.Cache
	scheduler *scheduler.Scheduler
	sync      *synchronizer.Synchronizer
	log       *log.Entry
}

// ID returns the coordinator instance ID
func (co *Coordinator) ID() string {
	return co.id
}

// Load restores criteria from the address and storage and schedules the
// first lookup
func (co *Coordinator) Load() criteria.Criteria {
	c := co.sync.LoadInitial()
	co.log.Debugf("Loaded %s", c)
	return co.store.Publish(c)
}

// Criteria returns the current criteria
func (co *Coordinator) Criteria() criteria.Criteria {
	return co.store.Criteria()
}

// SetField changes a single criteria field. An invalid value returns a
// *criteria.ValidationError and keeps the previous criteria.
func (co *Coordinator) SetField(name, value string) (criteria.Criteria, error) {
	c, err := co.store.SetField(name, value)
	if err != nil {
		co.log.Debugf("SetField rejected: %s", err)
	}
	return c, err
}

// Reset restores the default criteria
func (co *Coordinator) Reset() criteria.Criteria {
	return co.store.Reset()
}

// Refresh drops every cached result set and looks up the current criteria
// again without waiting for the debounce window
func (co *Coordinator) Refresh() {
	co.scheduler.Refresh(co.store.Criteria())
}

// Flush dispatches a pending lookup immediately
func (co *Coordinator) Flush() bool {
	return co.scheduler.Flush()
}

// Cancel discards the pending lookup and silences lookups in flight
func (co *Coordinator) Cancel() {
	co.scheduler.Cancel()
}

// State returns the lookup lifecycle state
func (co *Coordinator) State() scheduler.State {
	return co.scheduler.State()
}

// SavePreset stores the current criteria under name
func (co *Coordinator) SavePreset(name string) error {
	return co.sync.SavePreset(name)
}

// LoadPreset replaces the current criteria with a saved preset.
// Unknown names return a *synchronizer.NotFoundError.
func (co *Coordinator) LoadPreset(name string) (criteria.Criteria, error) {
	return co.sync.LoadPreset(name)
}

// DeletePreset removes a saved preset
func (co *Coordinator) DeletePreset(name string) error {
	return co.sync.DeletePreset(name)
}

// Presets returns the saved preset names
func (co *Coordinator) Presets() []string {
	return co.sync.Presets()
}

// Close stops all lookups; later changes are still stored and synchronized
// but no longer looked up
func (co *Coordinator) Close() {
	co.scheduler.Close()
	co.log.Debug("Coordinator closed")
}
