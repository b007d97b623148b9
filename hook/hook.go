// Package hook defines the lifecycle hook system for the job runner.
// Hooks are notified of domain-visible events (job enqueued, succeeded,
// deferred, failed) and can react to them — surfacing "message failed to
// send" to the UI layer, metrics, audit logging, etc.
//
// Each lifecycle hook is a separate interface so listeners opt in only to
// the events they care about.
package hook

import (
	"context"
	"time"

	"github.com/xraph/courier/job"
)

// Listener is the base interface all hook listeners must implement.
type Listener interface {
	// Name returns a unique human-readable name for the listener.
	Name() string
}

// JobEnqueued is called after a job is successfully enqueued.
type JobEnqueued interface {
	OnJobEnqueued(ctx context.Context, j *job.Job) error
}

// JobStarted is called when a lane begins executing a job.
type JobStarted interface {
	OnJobStarted(ctx context.Context, j *job.Job) error
}

// JobSucceeded is called after a job finishes successfully and its row
// has been deleted.
type JobSucceeded interface {
	OnJobSucceeded(ctx context.Context, j *job.Job, elapsed time.Duration) error
}

// JobDeferred is called when a job fails transiently and is rescheduled.
type JobDeferred interface {
	OnJobDeferred(ctx context.Context, j *job.Job, attempt int, nextRunAt time.Time) error
}

// JobFailed is called when a job fails permanently and its row has been
// deleted. This is the domain-visible "message failed to send" moment.
type JobFailed interface {
	OnJobFailed(ctx context.Context, j *job.Job, err error) error
}

// Shutdown is called once when the runner stops.
type Shutdown interface {
	OnShutdown(ctx context.Context)
}
