// Package courier provides the protocol and background-work core for an
// end-to-end-encrypted messaging client: a batch-response decoder that
// isolates per-element parse failures, and a durable job runner that
// schedules, persists, and retries units of work (sends, receives,
// attachment transfers) across process restarts.
//
// Courier is designed as a library, not a service. Import it, configure a
// store, register executors for your job variants, and start the runner.
//
// # Quick Start
//
//	reg := job.NewRegistry()
//	job.RegisterDefinition(reg, executors.NewSend())
//
//	r := runner.New(memory.New(), reg, runner.WithDeps(deps))
//	if err := r.StartAll(); err != nil { ... }
//	defer r.StopAll(ctx)
//
// # Architecture
//
// The batch package decodes heterogeneous server replies into typed
// sub-responses: a body the client does not recognize never poisons its
// siblings, while a malformed envelope fails the whole parse fast.
//
// The job runner owns a set of named lanes (execution contexts), each with
// its own queue and concurrency limit. Persisted rows only ever record
// pending work; "running" is an in-memory lease, so a crash re-surfaces
// every claimed job on the next launch without losing or duplicating work.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package courier
