package middleware

import (
	"context"
	"time"

	"github.com/xraph/courier/job"
)

// Timeout returns middleware that enforces an execution deadline on every
// attempt. When the deadline is exceeded the context is cancelled and the
// executor should return context.DeadlineExceeded. A zero duration makes
// the middleware a pass-through; there is no mid-execution cancellation
// beyond the cooperative context.
func Timeout(d time.Duration) Middleware {
	return func(ctx context.Context, _ *job.Job, next Handler) error {
		if d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return next(ctx)
	}
}
