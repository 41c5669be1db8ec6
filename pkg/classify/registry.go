package classify

import (
	"fmt"
	"sync"
)

// builtins in the order they are consulted. genericExtractor is last: its
// CanHandle matches any non-nil error, so it must never be asked before the
// more specific shapes have had a chance.
func builtins() []Extractor {
	return []Extractor{
		urlExtractor{},
		syscallExtractor{},
		responseExtractor{},
		genericExtractor{},
	}
}

// Registry holds custom extractors consulted before the built-in ones, in
// registration order. The zero value is usable. A Registry is safe for
// concurrent use; the expected usage pattern is to populate it once at
// startup and treat it as read-mostly afterward.
//
// Prefer an explicitly constructed *Registry over the package-level
// DefaultRegistry below, which exists only as a thin convenience wrapper for
// callers that don't need to isolate registry state.
type Registry struct {
	mu     sync.RWMutex
	custom []Extractor
	names  map[string]bool
}

// NewRegistry creates an empty, explicitly-owned registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]bool)}
}

// Register adds a custom extractor. It fails if name is already registered;
// extractor names must be unique within a registry.
func (r *Registry) Register(e Extractor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.names == nil {
		r.names = make(map[string]bool)
	}
	if r.names[e.Name()] {
		return fmt.Errorf("classify: extractor %q already registered", e.Name())
	}
	r.names[e.Name()] = true
	r.custom = append(r.custom, e)
	return nil
}

// Unregister removes a custom extractor by name, reporting whether it was
// present.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.names[name] {
		return false
	}
	delete(r.names, name)
	for i, e := range r.custom {
		if e.Name() == name {
			r.custom = append(r.custom[:i], r.custom[i+1:]...)
			break
		}
	}
	return true
}

// Clear removes all custom extractors.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.custom = nil
	r.names = make(map[string]bool)
}

// List returns the names of all registered custom extractors, in
// registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.custom))
	for i, e := range r.custom {
		names[i] = e.Name()
	}
	return names
}

// DetectClientType returns the ClientType tag of whichever extractor would
// handle err: a custom extractor's own Name() if one matches, else the
// matching built-in's tag, else ClientGeneric.
func (r *Registry) DetectClientType(err error) ClientType {
	if e := r.find(err); e != nil {
		return ClientType(e.Name())
	}
	return ClientGeneric
}

// Extract runs err through the registry: custom extractors first, in
// registration order (first CanHandle match wins), then the built-in path.
// Extract never returns nil for a non-nil err — genericExtractor always
// matches as the final fallback.
func (r *Registry) Extract(err error) *StandardizedError {
	if err == nil {
		return nil
	}
	e := r.find(err)
	if e == nil {
		e = genericExtractor{}
	}
	return e.Extract(err)
}

func (r *Registry) find(err error) Extractor {
	if err == nil {
		return nil
	}

	r.mu.RLock()
	custom := make([]Extractor, len(r.custom))
	copy(custom, r.custom)
	r.mu.RUnlock()

	for _, e := range custom {
		if e.CanHandle(err) {
			return e
		}
	}
	for _, e := range builtins() {
		if e.CanHandle(err) {
			return e
		}
	}
	return nil
}

// DefaultRegistry is the process-wide registry used by the package-level
// convenience functions below. Most applications never need more than one
// registry and can use these directly; construct a *Registry explicitly to
// avoid sharing state across independent components or in tests.
var DefaultRegistry = NewRegistry()

// Register registers a custom extractor on DefaultRegistry.
func Register(e Extractor) error { return DefaultRegistry.Register(e) }

// Unregister removes a custom extractor from DefaultRegistry.
func Unregister(name string) bool { return DefaultRegistry.Unregister(name) }

// Clear removes all custom extractors from DefaultRegistry.
func Clear() { DefaultRegistry.Clear() }

// ListExtractors lists DefaultRegistry's custom extractor names.
func ListExtractors() []string { return DefaultRegistry.List() }

// DetectClientType runs DefaultRegistry.DetectClientType.
func DetectClientType(err error) ClientType { return DefaultRegistry.DetectClientType(err) }

// ExtractError runs DefaultRegistry.Extract.
func ExtractError(err error) *StandardizedError { return DefaultRegistry.Extract(err) }

// CreateErrorPredicate builds a retry predicate from a function of the
// standardized error, extracting via DefaultRegistry first.
func CreateErrorPredicate(fn func(*StandardizedError) bool) func(error, int) bool {
	return func(err error, _ int) bool {
		return fn(DefaultRegistry.Extract(err))
	}
}

// DefaultRetryPredicate is the default retry predicate pkg/retry falls back
// to: extract, then use the standardized error's IsRetryable verdict.
func DefaultRetryPredicate(err error, _ int) bool {
	se := DefaultRegistry.Extract(err)
	if se == nil {
		return false
	}
	return se.IsRetryable
}
