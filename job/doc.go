// Package job defines the job entity, executor contract, typed definitions,
// and store interface.
//
// # Job Entity
//
// A [Job] is a persisted description of one unit of deferred work: a variant
// tag, an opaque JSON payload, optional thread/interaction linkage, and
// scheduling metadata. Persisted rows only ever represent pending work —
// "running" is an in-memory lease held by the runner, so a crash cannot
// strand a job in a running state.
//
//	pending → leased → deleted            (success or permanent failure)
//	pending → leased → pending, delayed   (temporary failure, FailureCount+1)
//
// # Defining an Executor
//
// Each variant supplies one executor via a typed [Definition]. The payload
// is JSON-serialized at enqueue time and deserialized before Run is called.
// Collaborators arrive through [Deps] — injected, never global — so
// executors are independently testable:
//
//	var SendMessage = job.NewDefinition("message.send",
//	    func(ctx context.Context, p SendPayload, deps job.Deps) job.Outcome {
//	        ...
//	        return job.Succeed()
//	    },
//	    job.InLane(courier.LaneSend),
//	    job.Unique(),
//	)
//
// # Registry
//
// [Registry] maps variants to type-erased [ExecFunc] values plus their
// routing policy (lane, behaviour, uniqueness, failure ceiling). Register
// definitions once at process configuration time via [RegisterDefinition];
// enqueueing an unregistered variant is a configuration error.
package job
