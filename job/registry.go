package job

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// ExecFunc is a type-erased executor that accepts the raw job. The typed
// Definition[T] is converted to an ExecFunc at registration time by closing
// over JSON unmarshal + the typed Run function.
type ExecFunc func(ctx context.Context, j *Job, deps Deps) Outcome

// Registry maps job variants to type-erased executors and their routing
// policy. It is safe for concurrent use. Registration happens once at
// process configuration time; dynamic discovery is deliberately absent.
type Registry struct {
	mu      sync.RWMutex
	entries map[Variant]registryEntry
}

type registryEntry struct {
	exec  ExecFunc
	route Route
}

// NewRegistry creates an empty executor registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[Variant]registryEntry),
	}
}

// RegisterDefinition registers a typed executor definition. The generic Run
// function is wrapped in a closure that JSON-unmarshals the job's details
// into T before calling it. A details payload that fails to unmarshal is a
// permanent failure — re-running cannot change the bytes.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func RegisterDefinition[T any](r *Registry, def *Definition[T]) {
	exec := func(ctx context.Context, j *Job, deps Deps) Outcome {
		var t T
		if len(j.Details) > 0 {
			if err := json.Unmarshal(j.Details, &t); err != nil {
				return Fail(fmt.Errorf("unmarshal details for variant %q: %w", def.Variant, err))
			}
		}
		return def.Run(ctx, t, deps)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[def.Variant] = registryEntry{exec: exec, route: def.Route}
}

// Get returns the executor and route for the given variant.
// Returns false if no executor is registered.
func (r *Registry) Get(variant Variant) (ExecFunc, Route, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[variant]
	return e.exec, e.route, ok
}

// Route returns the routing policy for the given variant.
func (r *Registry) Route(variant Variant) (Route, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[variant]
	return e.route, ok
}

// Variants returns all registered variants.
func (r *Registry) Variants() []Variant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	variants := make([]Variant, 0, len(r.entries))
	for v := range r.entries {
		variants = append(variants, v)
	}
	return variants
}

// VariantsForLane returns the variants routed to the named lane.
func (r *Registry) VariantsForLane(lane string) []Variant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var variants []Variant
	for v, e := range r.entries {
		if e.route.Lane == lane {
			variants = append(variants, v)
		}
	}
	return variants
}
