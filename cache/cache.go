package cache

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultSize is the entry bound used when none is configured
const DefaultSize = 50

// New returns a new Cache instance
// size represents the maximum number of distinct keys kept (0 uses DefaultSize)
func New(size int) *Cache {
	if size <= 0 {
		size = DefaultSize
	}

	return &Cache{
		size: size,
		data: make(map[string]*Entry, size),
		m:    &sync.Mutex{},
		now:  time.Now,
	}
}

// Cache represents a bounded result cache keyed by canonical criteria keys.
// Entries never expire by time; when full, the oldest inserted entry is
// evicted to make room.
type Cache struct {
	size int
	data map[string]*Entry
	// order holds keys oldest insertion first
	order []string
	m     *sync.Mutex
	now   func() time.Time
}

// Get returns the cached result set for key
func (c *Cache) Get(key string) (*ResultSet, bool) {
	c.m.Lock()
	defer c.m.Unlock()

	e, ok := c.data[key]
	if !ok {
		return nil, false
	}
	return e.Results, true
}

// Put stores rs under key, replacing any previous entry for the key.
// A replaced entry counts as a fresh insertion.
func (c *Cache) Put(key string, rs *ResultSet) {
	if rs == nil {
		return
	}
	c.m.Lock()
	defer c.m.Unlock()

	if _, ok := c.data[key]; ok {
		c.removeOrder(key)
	} else {
		for len(c.data) >= c.size {
			c.evictOldest()
		}
	}

	c.data[key] = &Entry{
		Key:     key,
		Results: rs,
		Created: JSONTime(c.now()),
	}
	c.order = append(c.order, key)
}

// InvalidateAll empties the cache
func (c *Cache) InvalidateAll() {
	c.m.Lock()
	defer c.m.Unlock()

	log.Debugf("Invalidating %d cache entries", len(c.data))
	c.data = make(map[string]*Entry, c.size)
	c.order = nil
}

// Len returns the number of cached keys
func (c *Cache) Len() int {
	c.m.Lock()
	defer c.m.Unlock()
	return len(c.data)
}

// Entries returns a snapshot of all entries, oldest insertion first
func (c *Cache) Entries() []Entry {
	c.m.Lock()
	defer c.m.Unlock()

	entries := make([]Entry, 0, len(c.order))
	for _, key := range c.order {
		entries = append(entries, *c.data[key])
	}
	return entries
}

// evictOldest must be called with the cache locked
func (c *Cache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	key := c.order[0]
	c.order = c.order[1:]
	delete(c.data, key)
	log.Debugf("Evicted cache entry %q", key)
}

// removeOrder must be called with the cache locked
func (c *Cache) removeOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
