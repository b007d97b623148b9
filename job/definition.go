package job

import "context"

// Definition is a typed executor definition for one job variant.
// T is the payload type (must be JSON-serializable).
type Definition[T any] struct {
	// Variant is the unique tag for this job type.
	Variant Variant

	// Run executes the job's side effect and reports an outcome.
	// Side effects must be idempotent, or the variant's uniqueness /
	// run-once policy must make retries safe.
	Run func(ctx context.Context, details T, deps Deps) Outcome

	// Route configures lane, behaviour, uniqueness, and failure ceiling.
	Route Route
}

// NewDefinition creates a typed executor definition. By default the
// variant routes to the "default" lane, is not unique, and retries
// without bound.
func NewDefinition[T any](variant Variant, run func(ctx context.Context, details T, deps Deps) Outcome, opts ...RouteOption) *Definition[T] {
	def := &Definition[T]{
		Variant: variant,
		Run:     run,
		Route:   DefaultRoute(),
	}
	for _, opt := range opts {
		opt(&def.Route)
	}
	return def
}
