package tournament

import (
	"context"
	"sync"

	"github.com/chrisvdg/tourneyfilter/cache"
	"github.com/chrisvdg/tourneyfilter/criteria"
)

// NewMemoryProvider returns a provider filtering an already loaded collection
func NewMemoryProvider(ts []Tournament, pageSize int) *MemoryProvider {
	p := &MemoryProvider{
		pageSize: pageSize,
		m:        &sync.RWMutex{},
	}
	p.items = append(p.items, ts...)
	return p
}

// MemoryProvider represents a provider over an in-memory collection
type MemoryProvider struct {
	items    []Tournament
	pageSize int
	m        *sync.RWMutex
}

// Put adds t, replacing any tournament with the same ID
func (p *MemoryProvider) Put(t Tournament) error {
	err := t.Validate()
	if err != nil {
		return err
	}
	p.m.Lock()
	defer p.m.Unlock()
	for i := range p.items {
		if p.items[i].ID == t.ID {
			p.items[i] = t
			return nil
		}
	}
	p.items = append(p.items, t)
	return nil
}

// Lookup returns the requested page of tournaments matching c
func (p *MemoryProvider) Lookup(ctx context.Context, c criteria.Criteria) (*cache.ResultSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := NewQuery(c, p.pageSize)

	p.m.RLock()
	matched := make([]Tournament, 0, len(p.items))
	for _, t := range p.items {
		if q.Matches(t) {
			matched = append(matched, t)
		}
	}
	p.m.RUnlock()

	q.Sort(matched)
	return ResultSet(q.Page(matched), len(matched))
}
