package route

import (
	"errors"
	"fmt"
	"sync"
)

// ErrDuplicate is returned when a declaration collides with one already
// registered on either lookup key.
var ErrDuplicate = errors.New("duplicate route registration")

// ErrNotFound is returned by lookups that match no declaration.
var ErrNotFound = errors.New("route not found")

// Registry holds an ordered list of route declarations and exposes the two
// lookup surfaces built from them: (method, path) and (resource, operation).
// It performs no I/O, so the same registry can be mounted onto the host
// router and independently walked to generate clients.
type Registry struct {
	mu     sync.RWMutex
	routes []*Route
	byPath map[string]*Route
	byName map[string]*Route
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byPath: make(map[string]*Route),
		byName: make(map[string]*Route),
	}
}

func pathKey(method, path string) string { return method + " " + path }

// Register appends a declaration. It fails fast on an invalid declaration or
// on a duplicate (method, path) or (resource, operation) pair.
func (reg *Registry) Register(rt *Route) error {
	if err := rt.Validate(); err != nil {
		return err
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	pk := pathKey(rt.Method, rt.Path)
	if _, exists := reg.byPath[pk]; exists {
		return fmt.Errorf("%w: %s %s", ErrDuplicate, rt.Method, rt.Path)
	}
	nk := rt.Name()
	if _, exists := reg.byName[nk]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, nk)
	}

	reg.routes = append(reg.routes, rt)
	reg.byPath[pk] = rt
	reg.byName[nk] = rt
	return nil
}

// MustRegister is Register for static route tables assembled at bootstrap.
func (reg *Registry) MustRegister(rt *Route) {
	if err := reg.Register(rt); err != nil {
		panic(err)
	}
}

// Lookup returns the declaration registered under (method, path).
func (reg *Registry) Lookup(method, path string) (*Route, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	rt, ok := reg.byPath[pathKey(method, path)]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, method, path)
	}
	return rt, nil
}

// LookupName returns the declaration registered under (resource, operation).
func (reg *Registry) LookupName(resource, operation string) (*Route, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	rt, ok := reg.byName[resource+"."+operation]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrNotFound, resource, operation)
	}
	return rt, nil
}

// Routes returns the declarations in registration order.
func (reg *Registry) Routes() []*Route {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	out := make([]*Route, len(reg.routes))
	copy(out, reg.routes)
	return out
}

// ByResource groups declarations into a resource -> operation -> route map
// for client generation.
func (reg *Registry) ByResource() map[string]map[string]*Route {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	out := make(map[string]map[string]*Route)
	for _, rt := range reg.routes {
		ops, ok := out[rt.Resource]
		if !ok {
			ops = make(map[string]*Route)
			out[rt.Resource] = ops
		}
		ops[rt.Operation] = rt
	}
	return out
}

// Len returns the number of registered declarations.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.routes)
}
