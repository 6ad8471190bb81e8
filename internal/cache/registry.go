package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownEntity is returned when no collection is registered under a name.
var ErrUnknownEntity = errors.New("unknown cache entity")

// Managed is the non-generic view of a Collection used by the Registry.
type Managed interface {
	Entity() string
	Invalidate(ctx context.Context) error
	Status() Status
}

// Registry tracks every collection so they can be listed and cleared by name.
type Registry struct {
	mu          sync.RWMutex
	collections map[string]Managed
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{collections: make(map[string]Managed)}
}

// Register adds a collection. Registering the same entity twice replaces it.
func (r *Registry) Register(c Managed) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collections[c.Entity()] = c
}

// Invalidate clears one collection by entity name.
func (r *Registry) Invalidate(ctx context.Context, entity string) error {
	r.mu.RLock()
	c, ok := r.collections[entity]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}

	return c.Invalidate(ctx)
}

// InvalidateAll clears every collection, returning the joined errors.
func (r *Registry) InvalidateAll(ctx context.Context) error {
	var errs []error
	for _, c := range r.list() {
		if err := c.Invalidate(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Status returns the status of every collection, sorted by entity.
func (r *Registry) Status() []Status {
	collections := r.list()
	out := make([]Status, 0, len(collections))
	for _, c := range collections {
		out = append(out, c.Status())
	}

	return out
}

// Entities returns the registered entity names, sorted.
func (r *Registry) Entities() []string {
	collections := r.list()
	out := make([]string, 0, len(collections))
	for _, c := range collections {
		out = append(out, c.Entity())
	}

	return out
}

func (r *Registry) list() []Managed {
	r.mu.RLock()
	out := make([]Managed, 0, len(r.collections))
	for _, c := range r.collections {
		out = append(out, c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Entity() < out[j].Entity() })

	return out
}
