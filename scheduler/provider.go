package scheduler

import (
	"context"
	"fmt"

	"github.com/chrisvdg/tourneyfilter/cache"
	"github.com/chrisvdg/tourneyfilter/criteria"
)

// Provider looks up the result set for criteria.
// It may filter an in-memory collection or call a remote service;
// timeouts are the provider's responsibility.
type Provider interface {
	Lookup(ctx context.Context, c criteria.Criteria) (*cache.ResultSet, error)
}

// ProviderFunc adapts a function to the Provider interface
type ProviderFunc func(ctx context.Context, c criteria.Criteria) (*cache.ResultSet, error)

// Lookup calls f
func (f ProviderFunc) Lookup(ctx context.Context, c criteria.Criteria) (*cache.ResultSet, error) {
	return f(ctx, c)
}

// ResultsFunc receives the winning result set and the criteria that produced it
type ResultsFunc func(rs *cache.ResultSet, c criteria.Criteria)

// ErrorFunc receives the failure of a lookup that was still current
type ErrorFunc func(err error, c criteria.Criteria)

// ProviderError represents a failed lookup
type ProviderError struct {
	Key   string
	Token uint64
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("lookup %d for %q failed: %s", e.Token, e.Key, e.Err)
}

// Unwrap returns the underlying provider error
func (e *ProviderError) Unwrap() error {
	return e.Err
}
