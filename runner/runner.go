package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/courier"
	"github.com/xraph/courier/backoff"
	"github.com/xraph/courier/hook"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/job"
	"github.com/xraph/courier/lane"
	"github.com/xraph/courier/middleware"
)

// Runner drives job execution across configured lanes.
type Runner struct {
	store    job.Store
	registry *job.Registry
	hooks    *hook.Registry
	lanes    *lane.Manager
	backoff  backoff.Strategy
	mw       middleware.Middleware
	deps     job.Deps
	logger   *slog.Logger
	config   courier.Config

	mu     sync.Mutex
	loops  map[string]*laneLoop // lane name → running claim loop
	leases map[string]struct{}  // job IDs currently executing in-process
}

// laneLoop tracks one lane's claim goroutines.
type laneLoop struct {
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Option configures the Runner.
type Option func(*Runner)

// WithConfig replaces the default configuration.
func WithConfig(cfg courier.Config) Option {
	return func(r *Runner) { r.config = cfg }
}

// WithDeps sets the dependency bundle handed to every executor.
func WithDeps(deps job.Deps) Option {
	return func(r *Runner) { r.deps = deps }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithHooks sets the lifecycle hook registry.
func WithHooks(h *hook.Registry) Option {
	return func(r *Runner) { r.hooks = h }
}

// WithBackoff sets the retry delay strategy.
func WithBackoff(s backoff.Strategy) Option {
	return func(r *Runner) { r.backoff = s }
}

// WithMiddleware replaces the default middleware chain. The first
// middleware is the outermost wrapper.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(r *Runner) { r.mw = middleware.Chain(mws...) }
}

// New creates a Runner over the given store and executor registry.
// Defaults: DefaultConfig lanes, exponential backoff capped at the
// ceiling, and a recover → tracing → metrics → logging chain.
func New(store job.Store, registry *job.Registry, opts ...Option) *Runner {
	r := &Runner{
		store:    store,
		registry: registry,
		backoff:  backoff.DefaultStrategy(),
		logger:   slog.Default(),
		config:   courier.DefaultConfig(),
		loops:    make(map[string]*laneLoop),
		leases:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.hooks == nil {
		r.hooks = hook.NewRegistry(r.logger)
	}
	if r.mw == nil {
		r.mw = middleware.Chain(
			middleware.Recover(r.logger),
			middleware.Tracing(),
			middleware.Metrics(),
			middleware.Logging(r.logger),
		)
	}
	r.lanes = lane.NewManager(r.config.Lanes...)
	if r.deps.Logger == nil {
		r.deps.Logger = r.logger
	}
	return r
}

// Hooks returns the lifecycle hook registry for listener registration.
func (r *Runner) Hooks() *hook.Registry { return r.hooks }

// Lanes returns the lane manager.
func (r *Runner) Lanes() *lane.Manager { return r.lanes }

// ──────────────────────────────────────────────────
// Enqueue
// ──────────────────────────────────────────────────

// Enqueue persists a new job for the given variant. Details are
// JSON-marshalled into the job's opaque payload.
//
// Enqueueing an unregistered variant returns ErrNoExecutor. For a
// unique variant, an equivalent pending or executing job makes the call
// an idempotent no-op returning (nil, nil). For a run-once variant with
// a recorded success, ErrAlreadyCompleted is returned.
func (r *Runner) Enqueue(ctx context.Context, variant job.Variant, details any, opts ...job.EnqueueOption) (*job.Job, error) {
	return r.enqueue(ctx, variant, details, false, opts...)
}

// AppendToLaunchQueue enqueues a job flagged to run at process start.
// Launch jobs are drained when their lane starts, before general
// claiming begins. Variants already registered RunOnLaunch do not need
// this; it exists for ad-hoc launch work on ordinary variants.
func (r *Runner) AppendToLaunchQueue(ctx context.Context, variant job.Variant, details any, opts ...job.EnqueueOption) (*job.Job, error) {
	return r.enqueue(ctx, variant, details, true, opts...)
}

// enqueue builds and persists the job. The launch flag is stamped before
// the row is written, so a lane that is already running never claims the
// job in a half-flagged state.
func (r *Runner) enqueue(ctx context.Context, variant job.Variant, details any, launch bool, opts ...job.EnqueueOption) (*job.Job, error) {
	route, ok := r.registry.Route(variant)
	if !ok {
		return nil, fmt.Errorf("%w: variant %q", courier.ErrNoExecutor, variant)
	}
	if !r.lanes.Known(route.Lane) {
		return nil, fmt.Errorf("%w: %q (variant %q)", courier.ErrUnknownLane, route.Lane, variant)
	}

	var options job.EnqueueOptions
	for _, opt := range opts {
		opt(&options)
	}

	var payload []byte
	if details != nil {
		var err error
		payload, err = json.Marshal(details)
		if err != nil {
			return nil, fmt.Errorf("courier: marshal details for variant %q: %w", variant, err)
		}
	}

	now := time.Now().UTC()
	runAt := options.RunAt
	if runAt.IsZero() {
		runAt = now
	}

	behaviour := route.Behaviour
	if launch {
		behaviour.RunOnLaunch = true
	}

	j := &job.Job{
		Entity:        courier.NewEntity(),
		ID:            id.NewJobID(),
		Variant:       variant,
		Behaviour:     behaviour,
		Details:       payload,
		ThreadID:      options.ThreadID,
		InteractionID: options.InteractionID,
		NextRunAt:     runAt.UTC(),
	}

	fingerprint := j.Fingerprint()

	if route.Behaviour.RunOnceOnly {
		done, err := r.store.OnceCompleted(ctx, fingerprint)
		if err != nil {
			return nil, fmt.Errorf("courier: check once-ledger: %w", err)
		}
		if done {
			return nil, courier.ErrAlreadyCompleted
		}
	}

	if route.Behaviour.Unique {
		exists, err := r.store.ExistsEquivalent(ctx, fingerprint)
		if err != nil {
			return nil, fmt.Errorf("courier: check equivalent: %w", err)
		}
		if exists {
			r.logger.Debug("duplicate enqueue suppressed",
				slog.String("variant", string(variant)),
			)
			return nil, nil
		}
	}

	if err := r.store.EnqueueJob(ctx, j); err != nil {
		// An equivalent job landed between the check and the insert; the
		// store's own unique guard caught it.
		if route.Behaviour.Unique && errors.Is(err, courier.ErrJobAlreadyExists) {
			r.logger.Debug("duplicate enqueue suppressed",
				slog.String("variant", string(variant)),
			)
			return nil, nil
		}
		return nil, fmt.Errorf("courier: enqueue: %w", err)
	}

	r.hooks.EmitJobEnqueued(ctx, j)
	r.logger.Debug("job enqueued",
		slog.String("job_id", j.ID.String()),
		slog.String("variant", string(variant)),
		slog.String("lane", route.Lane),
	)
	return j, nil
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Start begins claiming for the named lane. Already-started lanes are a
// no-op. Pending launch-queue jobs for the lane run before general
// claiming.
func (r *Runner) Start(laneName string) error {
	if !r.lanes.Known(laneName) {
		return fmt.Errorf("%w: %q", courier.ErrUnknownLane, laneName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, running := r.loops[laneName]; running {
		return nil
	}

	loop := &laneLoop{stopCh: make(chan struct{})}
	r.loops[laneName] = loop

	concurrency := r.lanes.Concurrency(laneName)
	r.logger.Info("lane starting",
		slog.String("lane", laneName),
		slog.Int("concurrency", concurrency),
	)

	loop.wg.Add(1)
	go func() {
		defer loop.wg.Done()
		r.drainLaunchQueue(laneName, loop)

		var claimers sync.WaitGroup
		for range concurrency {
			claimers.Add(1)
			go func() {
				defer claimers.Done()
				r.claimLoop(laneName, loop)
			}()
		}
		claimers.Wait()
	}()
	return nil
}

// StartAll starts every configured lane.
func (r *Runner) StartAll() error {
	for _, name := range r.lanes.Names() {
		if err := r.Start(name); err != nil {
			return err
		}
	}
	return nil
}

// Stop halts claiming for the named lane and waits for its in-flight
// jobs to finish. Executions are never cancelled mid-flight; executors
// observe ctx cooperatively during shutdown only via StopAll's timeout.
func (r *Runner) Stop(laneName string) error {
	r.mu.Lock()
	loop, running := r.loops[laneName]
	if running {
		delete(r.loops, laneName)
	}
	r.mu.Unlock()

	if !running {
		return nil
	}

	close(loop.stopCh)
	loop.wg.Wait()
	r.logger.Info("lane stopped", slog.String("lane", laneName))
	return nil
}

// StopAll stops every running lane, waits up to the shutdown timeout for
// in-flight jobs, and notifies shutdown hooks.
func (r *Runner) StopAll(ctx context.Context) error {
	r.mu.Lock()
	loops := r.loops
	r.loops = make(map[string]*laneLoop)
	r.mu.Unlock()

	for _, loop := range loops {
		close(loop.stopCh)
	}

	done := make(chan struct{})
	go func() {
		for _, loop := range loops {
			loop.wg.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("runner stopped")
	case <-time.After(r.config.ShutdownTimeout):
		r.logger.Warn("runner shutdown timed out with jobs in flight")
	case <-ctx.Done():
		r.logger.Warn("runner shutdown cancelled", slog.String("error", ctx.Err().Error()))
	}

	r.hooks.EmitShutdown(ctx)
	return nil
}

// ──────────────────────────────────────────────────
// Leases
// ──────────────────────────────────────────────────

// lease marks a job as executing in-process so concurrent claimers and
// repeated DueJobs results skip it. Returns false if already leased.
func (r *Runner) lease(jobID id.JobID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := jobID.String()
	if _, held := r.leases[key]; held {
		return false
	}
	r.leases[key] = struct{}{}
	return true
}

func (r *Runner) unlease(jobID id.JobID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.leases, jobID.String())
}
