package criteria

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Listener is notified with the new criteria after every effective change
type Listener func(Criteria)

// NewStore returns a store holding initial as its canonical criteria
func NewStore(initial Criteria) *Store {
	return &Store{
		current: initial,
		m:       &sync.Mutex{},
		notify:  &sync.Mutex{},
	}
}

// Store holds the single canonical criteria value and broadcasts changes.
// Listeners run synchronously in registration order, one change at a time,
// after the state lock is released: they may read the store but must not
// change it.
type Store struct {
	current   Criteria
	listeners []Listener
	m         *sync.Mutex
	// notify serializes change-and-broadcast so deliveries never interleave
	notify *sync.Mutex
}

// Subscribe registers a listener
func (s *Store) Subscribe(l Listener) {
	s.m.Lock()
	defer s.m.Unlock()
	s.listeners = append(s.listeners, l)
}

// Criteria returns the current canonical criteria
func (s *Store) Criteria() Criteria {
	s.m.Lock()
	defer s.m.Unlock()
	return s.current
}

// SetField validates and applies a single field change.
// On validation failure the state is left unchanged.
func (s *Store) SetField(name, value string) (Criteria, error) {
	s.notify.Lock()
	defer s.notify.Unlock()

	s.m.Lock()
	c, err := s.current.With(name, value)
	if err != nil {
		current := s.current
		s.m.Unlock()
		log.Debugf("Rejected %s=%q: %s", name, value, err)
		return current, err
	}
	listeners := s.swap(c, false)
	s.m.Unlock()

	broadcast(listeners, c)
	return c, nil
}

// Reset restores every field to its default
func (s *Store) Reset() Criteria {
	return s.Replace(Defaults())
}

// Replace swaps the canonical criteria wholesale
func (s *Store) Replace(c Criteria) Criteria {
	return s.apply(c, false)
}

// Publish replaces the canonical criteria and notifies listeners even when
// the canonical key did not change
func (s *Store) Publish(c Criteria) Criteria {
	return s.apply(c, true)
}

func (s *Store) apply(c Criteria, force bool) Criteria {
	s.notify.Lock()
	defer s.notify.Unlock()

	s.m.Lock()
	listeners := s.swap(c, force)
	s.m.Unlock()

	broadcast(listeners, c)
	return c
}

// swap must be called with the store locked. It returns the listeners to
// notify, or nil when nothing changed.
func (s *Store) swap(c Criteria, force bool) []Listener {
	if !force && c.Key() == s.current.Key() {
		return nil
	}
	s.current = c
	return append([]Listener(nil), s.listeners...)
}

func broadcast(listeners []Listener, c Criteria) {
	for _, l := range listeners {
		l(c)
	}
}
