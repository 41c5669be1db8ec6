package breaker

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Registry owns one CircuitBreaker per circuit ID, bounded by an LRU cache
// so a process that opens breakers for an unbounded set of dependencies
// (per-tenant, per-endpoint, ...) cannot grow memory without limit. Evicted
// breakers are simply dropped; a caller that also wants eviction to persist
// state should snapshot via CircuitBreaker.Snapshot into a Store before the
// breaker falls out of the registry.
type Registry struct {
	mu       sync.Mutex
	cache    *lru.Cache[string, *CircuitBreaker]
	template Config
}

// NewRegistry builds a Registry that lazily constructs breakers from
// template, keeping at most maxBreakers live at once. maxBreakers <= 0
// falls back to 1024.
func NewRegistry(template Config, maxBreakers int) (*Registry, error) {
	if maxBreakers <= 0 {
		maxBreakers = 1024
	}
	cache, err := lru.New[string, *CircuitBreaker](maxBreakers)
	if err != nil {
		return nil, err
	}
	return &Registry{cache: cache, template: template}, nil
}

// Get returns the breaker for circuitID, constructing one from the
// registry's template config on first use.
func (r *Registry) Get(circuitID string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.cache.Get(circuitID); ok {
		return cb
	}
	cfg := r.template
	cfg.Name = circuitID
	cb := New(cfg)
	r.cache.Add(circuitID, cb)
	return cb
}

// Remove evicts circuitID's breaker, if present.
func (r *Registry) Remove(circuitID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Remove(circuitID)
}

// Len returns the number of live breakers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache.Len()
}
