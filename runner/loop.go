package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/courier/backoff"
	"github.com/xraph/courier/job"
)

// claimBatch is how many due jobs a single poll fetches. Most land back
// in the store untouched when another claimer got there first.
const claimBatch = 10

// drainLaunchQueue runs the lane's pending launch-flagged jobs before
// general claiming begins. Claim order rules still apply.
func (r *Runner) drainLaunchQueue(laneName string, loop *laneLoop) {
	variants := r.registry.VariantsForLane(laneName)
	if len(variants) == 0 {
		return
	}

	pending, err := r.store.ListPending(context.Background(), variants)
	if err != nil {
		r.logger.Error("launch queue listing failed",
			slog.String("lane", laneName),
			slog.String("error", err.Error()),
		)
		return
	}

	for _, j := range pending {
		select {
		case <-loop.stopCh:
			return
		default:
		}
		if !j.Behaviour.RunOnLaunch {
			continue
		}
		if !r.lease(j.ID) {
			continue
		}
		r.runJob(laneName, j)
	}
}

// claimLoop polls the lane's variants for due jobs and executes them.
// One claimLoop goroutine runs per unit of lane concurrency.
func (r *Runner) claimLoop(laneName string, loop *laneLoop) {
	for {
		select {
		case <-loop.stopCh:
			return
		default:
		}

		j, ok := r.claimOne(laneName)
		if !ok {
			r.idle(loop)
			continue
		}

		r.runJob(laneName, j)
		r.lanes.Release(laneName)
	}
}

// claimOne acquires a lane slot and leases the first claimable due job.
// On false the slot has been released and nothing is leased.
func (r *Runner) claimOne(laneName string) (*job.Job, bool) {
	variants := r.registry.VariantsForLane(laneName)
	if len(variants) == 0 {
		return nil, false
	}

	if !r.lanes.Acquire(laneName) {
		return nil, false
	}

	due, err := r.store.DueJobs(context.Background(), variants, time.Now().UTC(), claimBatch)
	if err != nil {
		r.lanes.Release(laneName)
		r.logger.Error("claim query failed",
			slog.String("lane", laneName),
			slog.String("error", err.Error()),
		)
		return nil, false
	}

	for _, j := range due {
		if r.lease(j.ID) {
			return j, true
		}
	}

	r.lanes.Release(laneName)
	return nil, false
}

// idle sleeps one poll interval or until the lane stops.
func (r *Runner) idle(loop *laneLoop) {
	select {
	case <-time.After(r.config.PollInterval):
	case <-loop.stopCh:
	}
}

// runJob executes one leased job through the middleware chain and
// resolves its outcome. The lease is held for the whole attempt.
func (r *Runner) runJob(laneName string, j *job.Job) {
	defer r.unlease(j.ID)

	ctx := context.Background()
	exec, route, ok := r.registry.Get(j.Variant)
	if !ok {
		// A persisted row from a variant this build no longer registers.
		// Defer rather than delete: a later build may register it again.
		r.deferJob(ctx, j, route.MaxFailures,
			job.Retry(fmt.Errorf("courier: no executor for persisted variant %q", j.Variant)))
		return
	}

	r.hooks.EmitJobStarted(ctx, j)

	deps := r.deps.WithLogger(r.logger.With(
		slog.String("lane", laneName),
		slog.String("variant", string(j.Variant)),
	))

	var (
		outcome job.Outcome
		ran     bool
	)
	terminal := func(ctx context.Context) error {
		outcome = exec(ctx, j, deps)
		ran = true
		return outcome.Err
	}

	start := time.Now()
	chainErr := r.mw(ctx, j, terminal)
	elapsed := time.Since(start)

	if !ran {
		// The chain short-circuited before the executor reported — a
		// recovered panic or an exhausted deadline. Treat as transient.
		outcome = job.Retry(chainErr)
	}

	switch outcome.Status {
	case job.StatusSuccess:
		r.completeJob(ctx, j, elapsed)
	case job.StatusPermanentFailure:
		r.failJob(ctx, j, outcome.Err)
	case job.StatusTemporaryFailure:
		r.deferJob(ctx, j, route.MaxFailures, outcome)
	}
}

// completeJob deletes the row, records run-once completion, and emits
// the success event.
func (r *Runner) completeJob(ctx context.Context, j *job.Job, elapsed time.Duration) {
	if err := r.store.DeleteJob(ctx, j.ID); err != nil {
		r.logger.Error("failed to delete completed job",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	if j.Behaviour.RunOnceOnly {
		if err := r.store.MarkOnceCompleted(ctx, j.Fingerprint(), time.Now().UTC()); err != nil {
			r.logger.Error("failed to record run-once completion",
				slog.String("job_id", j.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	r.hooks.EmitJobSucceeded(ctx, j, elapsed)
	r.logger.Debug("job succeeded",
		slog.String("job_id", j.ID.String()),
		slog.String("variant", string(j.Variant)),
		slog.Duration("elapsed", elapsed),
	)
}

// deferJob reschedules a transiently failed job, or converts it to a
// permanent failure once the variant's failure ceiling is reached.
func (r *Runner) deferJob(ctx context.Context, j *job.Job, maxFailures int, outcome job.Outcome) {
	attempt := j.FailureCount + 1

	if maxFailures > 0 && attempt >= maxFailures {
		r.failJob(ctx, j, fmt.Errorf("courier: %d failures reached: %w", attempt, outcome.Err))
		return
	}

	delay := outcome.RetryAfter
	if delay <= 0 {
		delay = r.backoff.Delay(attempt)
	}
	if delay > backoff.Ceiling {
		delay = backoff.Ceiling
	}
	nextRunAt := time.Now().UTC().Add(delay)

	if err := r.store.RescheduleJob(ctx, j.ID, nextRunAt, attempt); err != nil {
		r.logger.Error("failed to reschedule job",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	r.hooks.EmitJobDeferred(ctx, j, attempt, nextRunAt)
	r.logger.Info("job deferred",
		slog.String("job_id", j.ID.String()),
		slog.String("variant", string(j.Variant)),
		slog.Int("attempt", attempt),
		slog.Duration("delay", delay),
		slog.String("error", errString(outcome.Err)),
	)
}

// failJob deletes the row and emits the domain-visible failure event.
func (r *Runner) failJob(ctx context.Context, j *job.Job, jobErr error) {
	if err := r.store.DeleteJob(ctx, j.ID); err != nil {
		r.logger.Error("failed to delete failed job",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	r.hooks.EmitJobFailed(ctx, j, jobErr)
	r.logger.Warn("job failed permanently",
		slog.String("job_id", j.ID.String()),
		slog.String("variant", string(j.Variant)),
		slog.Int("failure_count", j.FailureCount),
		slog.String("error", errString(jobErr)),
	)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
