package graph

import (
	"fmt"
	"sort"
	"sync"
)

// Module is implemented by packages that contribute node types.
type Module interface {
	Register(r *Registry)
}

// Registry maps type tags to node types. Deserialization looks types up here,
// so the decoding side must register the same types as the encoding side, or
// a superset.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*NodeType
}

// NewRegistry creates a registry holding the core value and sentinel types
// plus everything the given modules register.
func NewRegistry(modules ...Module) *Registry {
	r := &Registry{types: make(map[string]*NodeType)}
	r.Register(ValueType, PendingType, ErrorType, ItemsType)
	for _, m := range modules {
		m.Register(r)
	}
	return r
}

// Register adds node types. Registering a name twice is a programming error
// and panics.
func (r *Registry) Register(types ...*NodeType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range types {
		if _, exists := r.types[t.Name]; exists {
			panic(fmt.Sprintf("node type with name '%s' already registered", t.Name))
		}
		r.types[t.Name] = t
	}
}

// Lookup finds a node type by name.
func (r *Registry) Lookup(name string) (*NodeType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// Names returns the registered type names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
