package synchronizer

import (
	"net/url"
	"sync"

	"github.com/pkg/errors"
)

// Address represents a navigable address whose query string mirrors the
// criteria. ReplaceQuery must not create a new history entry.
type Address interface {
	Query() string
	ReplaceQuery(query string) error
}

// NewLocation returns an in-memory address positioned at rawURL
func NewLocation(rawURL string) (*Location, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse location")
	}

	return &Location{
		history: []*url.URL{u},
		m:       &sync.Mutex{},
	}, nil
}

// Location represents an in-memory address with a navigation history
type Location struct {
	history []*url.URL
	m       *sync.Mutex
}

// Query returns the raw query of the current address
func (l *Location) Query() string {
	l.m.Lock()
	defer l.m.Unlock()
	return l.current().RawQuery
}

// ReplaceQuery swaps the query of the current history entry in place
func (l *Location) ReplaceQuery(query string) error {
	l.m.Lock()
	defer l.m.Unlock()

	u := *l.current()
	u.RawQuery = query
	l.history[len(l.history)-1] = &u
	return nil
}

// Navigate pushes a new history entry, resolved against the current address
func (l *Location) Navigate(ref string) error {
	r, err := url.Parse(ref)
	if err != nil {
		return errors.Wrapf(err, "failed to parse %q", ref)
	}
	l.m.Lock()
	defer l.m.Unlock()
	l.history = append(l.history, l.current().ResolveReference(r))
	return nil
}

// Back pops the current history entry. It reports false on the first entry.
func (l *Location) Back() bool {
	l.m.Lock()
	defer l.m.Unlock()
	if len(l.history) < 2 {
		return false
	}
	l.history = l.history[:len(l.history)-1]
	return true
}

// HistoryLen returns the number of history entries
func (l *Location) HistoryLen() int {
	l.m.Lock()
	defer l.m.Unlock()
	return len(l.history)
}

func (l *Location) String() string {
	l.m.Lock()
	defer l.m.Unlock()
	return l.current().String()
}

func (l *Location) current() *url.URL {
	return l.history[len(l.history)-1]
}
