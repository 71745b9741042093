package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/chrisvdg/tourneyfilter/cache"
	"github.com/chrisvdg/tourneyfilter/criteria"
)

// DefaultDelay is the debounce window used when none is configured
const DefaultDelay = 300 * time.Millisecond

// State represents the lifecycle state of the scheduler
type State string

const (
	// StateIdle represents a scheduler with nothing pending or in flight
	StateIdle State = "idle"
	// StateDebouncing represents a lookup waiting for the debounce window to elapse
	StateDebouncing State = "debouncing"
	// StateDispatched represents a lookup waiting for the provider
	StateDispatched State = "dispatched"
)

// Config represents a scheduler config
type Config struct {
	// Delay is the debounce window (0 uses DefaultDelay)
	Delay time.Duration
}

// New creates a new scheduler instance.
// Callbacks run one at a time, outside the scheduler lock, and only while
// their lookup is still current. A callback may call back into the
// scheduler; deliveries it causes run after it returns.
func New(c *Config, results *cache.Cache, p Provider, onResults ResultsFunc, onError ErrorFunc) (*Scheduler, error) {
	if p == nil {
		return nil, errors.New("no provider provided")
	}
	if results == nil {
		return nil, errors.New("no result cache provided")
	}
	if onResults == nil {
		onResults = func(*cache.ResultSet, criteria.Criteria) {}
	}
	if onError == nil {
		onError = func(error, criteria.Criteria) {}
	}
	delay := DefaultDelay
	if c != nil && c.Delay > 0 {
		delay = c.Delay
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		delay:     delay,
		cache:     results,
		provider:  p,
		onResults: onResults,
		onError:   onError,
		ctx:       ctx,
		cancel:    cancel,
		state:     StateIdle,
		m:         &sync.Mutex{},
	}, nil
}

// Scheduler collapses bursts of criteria changes into single lookups and
// discards responses that were superseded by a newer lookup.
type Scheduler struct {
	delay     time.Duration
	cache     *cache.Cache
	provider  Provider
	onResults ResultsFunc
	onError   ErrorFunc
	ctx       context.Context
	cancel    context.CancelFunc

	m     *sync.Mutex
	state State
	timer *time.Timer
	// timerGen invalidates timer callbacks that fire after being replaced
	timerGen   uint64
	pending    criteria.Criteria
	hasPending bool
	lastToken  uint64
	// activeKey is the key of the lookup in flight or last settled
	activeKey string
	hasActive bool
	inflight  context.CancelFunc
	closed    bool
	// queued is the latest delivery waiting for the running deliverer
	queued     *delivery
	delivering bool
}

// delivery is a callback decided under the scheduler lock and run after it
// has been released
type delivery struct {
	token uint64
	run   func()
}

// OnCriteriaChanged (re)starts the debounce window for c.
// Only the most recent criteria survive the window.
func (s *Scheduler) OnCriteriaChanged(c criteria.Criteria) {
	s.m.Lock()
	defer s.m.Unlock()
	if s.closed {
		return
	}

	key := c.Key()
	if s.hasActive && key == s.activeKey {
		if s.hasPending {
			log.Debugf("Criteria %s reverted to active lookup, dropping pending %s", c, s.pending)
			s.stopTimer()
			s.hasPending = false
			s.state = s.settledState()
		}
		return
	}

	s.pending = c
	s.hasPending = true
	s.stopTimer()
	gen := s.timerGen
	s.state = StateDebouncing
	s.timer = time.AfterFunc(s.delay, func() {
		s.elapse(gen)
	})
}

// Flush dispatches a pending lookup without waiting for the debounce window.
// It reports whether anything was pending.
func (s *Scheduler) Flush() bool {
	s.m.Lock()
	if s.closed || !s.hasPending {
		s.m.Unlock()
		return false
	}
	s.stopTimer()
	d := s.fire()
	s.m.Unlock()

	s.deliver(d)
	return true
}

// Refresh drops every cached result set and dispatches a lookup for c
// immediately, even if c is the active criteria
func (s *Scheduler) Refresh(c criteria.Criteria) {
	s.m.Lock()
	if s.closed {
		s.m.Unlock()
		return
	}
	s.stopTimer()
	// superseded lookups check the token under this lock before caching,
	// so nothing stale can be stored after the invalidation
	s.cache.InvalidateAll()
	s.pending = c
	s.hasPending = true
	s.hasActive = false
	d := s.fire()
	s.m.Unlock()

	s.deliver(d)
}

// Cancel discards any pending lookup and guarantees that no callback fires
// for lookups already in flight
func (s *Scheduler) Cancel() {
	s.m.Lock()
	defer s.m.Unlock()
	s.cancelLocked()
}

// Close cancels all work; the scheduler ignores later changes
func (s *Scheduler) Close() {
	s.m.Lock()
	defer s.m.Unlock()
	s.cancelLocked()
	s.closed = true
	s.cancel()
}

// State returns the current lifecycle state
func (s *Scheduler) State() State {
	s.m.Lock()
	defer s.m.Unlock()
	return s.state
}

// LastToken returns the most recently issued token
func (s *Scheduler) LastToken() uint64 {
	s.m.Lock()
	defer s.m.Unlock()
	return s.lastToken
}

func (s *Scheduler) cancelLocked() {
	s.stopTimer()
	s.hasPending = false
	s.hasActive = false
	s.lastToken++
	if s.inflight != nil {
		s.inflight()
		s.inflight = nil
	}
	s.state = StateIdle
	log.Debugf("Scheduler cancelled, token now %d", s.lastToken)
}

func (s *Scheduler) elapse(gen uint64) {
	s.m.Lock()
	if gen != s.timerGen || !s.hasPending || s.closed {
		s.m.Unlock()
		return
	}
	s.timer = nil
	d := s.fire()
	s.m.Unlock()

	s.deliver(d)
}

// fire mints a token for the pending criteria and resolves it from the
// cache or the provider. A cache hit is returned as a delivery for the
// caller to run once unlocked. Must be called with the scheduler locked.
func (s *Scheduler) fire() *delivery {
	c := s.pending
	s.hasPending = false
	s.lastToken++
	token := s.lastToken
	key := c.Key()
	s.activeKey = key
	s.hasActive = true
	if s.inflight != nil {
		s.inflight()
		s.inflight = nil
	}
	l := log.WithFields(log.Fields{"token": token, "criteria": c.String()})

	if rs, ok := s.cache.Get(key); ok {
		l.Debug("Cache hit")
		s.state = StateIdle
		return &delivery{token: token, run: func() { s.onResults(rs, c) }}
	}

	l.Debug("Cache miss, dispatching lookup")
	ctx, cancel := context.WithCancel(s.ctx)
	s.inflight = cancel
	s.state = StateDispatched
	go s.lookup(ctx, cancel, token, c)
	return nil
}

func (s *Scheduler) lookup(ctx context.Context, cancel context.CancelFunc, token uint64, c criteria.Criteria) {
	defer cancel()
	rs, err := s.call(ctx, c)
	s.deliver(s.settle(token, c, rs, err))
}

// settle records the outcome of a lookup and decides its delivery
func (s *Scheduler) settle(token uint64, c criteria.Criteria, rs *cache.ResultSet, err error) *delivery {
	s.m.Lock()
	defer s.m.Unlock()
	l := log.WithFields(log.Fields{"token": token, "criteria": c.String()})
	if token != s.lastToken {
		l.Debugf("Lookup superseded by token %d, discarding", s.lastToken)
		return nil
	}
	s.inflight = nil
	s.state = StateIdle
	if s.hasPending {
		s.state = StateDebouncing
	}

	if err != nil {
		s.hasActive = false
		perr := &ProviderError{Key: c.Key(), Token: token, Err: err}
		l.Errorf("Lookup failed: %s", err)
		return &delivery{token: token, run: func() { s.onError(perr, c) }}
	}
	if rs == nil {
		rs = cache.NewResultSet(nil, 0, false)
	}
	s.cache.Put(c.Key(), rs)
	l.Debugf("Lookup resolved with %d of %d results", rs.Len(), rs.Total())
	return &delivery{token: token, run: func() { s.onResults(rs, c) }}
}

// call invokes the provider, turning a panic into an error
func (s *Scheduler) call(ctx context.Context, c criteria.Criteria) (rs *cache.ResultSet, err error) {
	defer func() {
		if r := recover(); r != nil {
			rs = nil
			err = errors.Errorf("provider panicked: %v", r)
		}
	}()
	return s.provider.Lookup(ctx, c)
}

// deliver runs d unless a newer token was minted in the meantime.
// Only one goroutine delivers at a time; deliveries arriving meanwhile are
// queued, only the newest kept, and run by that goroutine in turn.
func (s *Scheduler) deliver(d *delivery) {
	if d == nil {
		return
	}
	s.m.Lock()
	s.queued = d
	if s.delivering {
		s.m.Unlock()
		return
	}
	s.delivering = true
	for s.queued != nil {
		next := s.queued
		s.queued = nil
		current := next.token == s.lastToken
		s.m.Unlock()
		if current {
			s.run(next.run)
		} else {
			log.Debugf("Delivery for token %d superseded", next.token)
		}
		s.m.Lock()
	}
	s.delivering = false
	s.m.Unlock()
}

func (s *Scheduler) run(f func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Callback panicked: %v", r)
		}
	}()
	f()
}

// stopTimer must be called with the scheduler locked
func (s *Scheduler) stopTimer() {
	s.timerGen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// settledState must be called with the scheduler locked
func (s *Scheduler) settledState() State {
	if s.inflight != nil {
		return StateDispatched
	}
	return StateIdle
}
