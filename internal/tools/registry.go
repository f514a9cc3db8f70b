package tools

import (
	"sort"
	"sync"
)

// Registry holds the builtin tool implementations, keyed by name.
type Registry struct {
	builtins map[string]Builtin
	mu       sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{builtins: make(map[string]Builtin)}
}

// DefaultRegistry returns a registry with every builtin registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewCalculator())
	r.Register(NewDataAnalyzer())
	r.Register(NewAPICaller(nil))
	r.Register(NewCurrentDatetime())
	r.Register(NewUUIDGenerator())
	return r
}

// Register adds a builtin to the registry.
func (r *Registry) Register(b Builtin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builtins[b.Name()] = b
}

// Get returns a builtin by name.
func (r *Registry) Get(name string) (Builtin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.builtins[name]
	return b, ok
}

// List returns all registered builtin names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.builtins))
	for name := range r.builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered builtins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.builtins)
}
