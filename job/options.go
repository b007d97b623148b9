package job

import (
	"time"

	"github.com/xraph/courier/id"
)

// Route configures how a variant's jobs are scheduled.
type Route struct {
	// Lane is the execution context this variant's jobs run in.
	Lane string

	// Behaviour is the default behaviour stamped onto enqueued jobs.
	Behaviour Behaviour

	// MaxFailures converts a job to a permanent failure once
	// FailureCount reaches it. Zero means unbounded retries (the backoff
	// ceiling still caps the delay).
	MaxFailures int
}

// DefaultRoute returns the routing policy used when no options are given.
func DefaultRoute() Route {
	return Route{Lane: "default"}
}

// RouteOption configures a Route.
type RouteOption func(*Route)

// InLane routes the variant's jobs to the named lane.
func InLane(lane string) RouteOption {
	return func(r *Route) { r.Lane = lane }
}

// Unique marks the variant unique-per-lane: enqueueing an equivalent job
// while one is pending or running is an idempotent no-op. This is what
// prevents duplicate sends and uploads.
func Unique() RouteOption {
	return func(r *Route) { r.Behaviour.Unique = true }
}

// RunOnceOnly marks the variant as run-once: after one recorded success an
// equivalent job is treated as already satisfied.
func RunOnceOnly() RouteOption {
	return func(r *Route) { r.Behaviour.RunOnceOnly = true }
}

// RunOnLaunch marks the variant for the launch queue, executed at process
// start before general claiming resumes.
func RunOnLaunch() RouteOption {
	return func(r *Route) { r.Behaviour.RunOnLaunch = true }
}

// MaxFailures sets the failure ceiling after which the job is converted to
// a permanent failure.
func MaxFailures(n int) RouteOption {
	return func(r *Route) { r.MaxFailures = n }
}

// ──────────────────────────────────────────────────
// Per-enqueue options
// ──────────────────────────────────────────────────

// EnqueueOptions configures one enqueued job.
type EnqueueOptions struct {
	// ThreadID links the job to a conversation thread.
	ThreadID id.ThreadID

	// InteractionID links the job to a single interaction (message row).
	InteractionID id.InteractionID

	// RunAt schedules the job for future execution. Zero means immediate.
	RunAt time.Time
}

// EnqueueOption is a functional option for one enqueue call.
type EnqueueOption func(*EnqueueOptions)

// WithThread links the job to a conversation thread.
func WithThread(threadID id.ThreadID) EnqueueOption {
	return func(o *EnqueueOptions) { o.ThreadID = threadID }
}

// WithInteraction links the job to a single interaction.
func WithInteraction(interactionID id.InteractionID) EnqueueOption {
	return func(o *EnqueueOptions) { o.InteractionID = interactionID }
}

// WithRunAt schedules the job for execution at a specific time.
func WithRunAt(t time.Time) EnqueueOption {
	return func(o *EnqueueOptions) { o.RunAt = t }
}
