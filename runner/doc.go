// Package runner is the job execution engine: it owns enqueueing,
// per-lane claim loops, the retry policy, and every persisted state
// transition. Executors only report outcomes; the runner is the sole
// authority on what an outcome means for the row.
//
// Persisted rows only ever represent pending work. A claimed job is an
// in-memory lease: the row stays put until the attempt resolves, so a
// crash mid-execution re-surfaces the job as claimable on the next
// start — work is never lost, and never duplicated within one process.
//
// Usage:
//
//	reg := job.NewRegistry()
//	job.RegisterDefinition(reg, executors.NewSend())
//
//	r := runner.New(store, reg,
//	    runner.WithDeps(deps),
//	    runner.WithLogger(logger),
//	)
//	if err := r.StartAll(); err != nil { ... }
//	defer r.StopAll(context.Background())
//
//	r.Enqueue(ctx, executors.VariantSend, details,
//	    job.WithThread(threadID),
//	)
package runner
