package job

import (
	"context"
	"time"

	"github.com/xraph/courier/id"
)

// CountOpts controls filtering for job count queries.
type CountOpts struct {
	// Variant filters by job variant. Empty means all variants.
	Variant Variant
}

// Store defines the persistence contract for jobs. Persisted rows are the
// index of intent: they only ever represent pending work. The runner's
// in-memory lease set layers "running" on top, so none of these methods
// flips a state column.
//
// All mutations are atomic per call; backends wrap multi-step transitions
// in transactions.
type Store interface {
	// EnqueueJob persists a new pending job and assigns its insertion
	// sequence. Returns courier.ErrJobAlreadyExists if the ID is taken.
	EnqueueJob(ctx context.Context, j *Job) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// DueJobs returns up to limit pending jobs of the given variants with
	// NextRunAt <= now, ordered by NextRunAt ascending then insertion
	// sequence (FIFO). It does not mutate the rows; claiming is the
	// runner's in-memory concern.
	DueJobs(ctx context.Context, variants []Variant, now time.Time, limit int) ([]*Job, error)

	// ListPending returns all pending jobs of the given variants in claim
	// order, regardless of NextRunAt. Used for launch-queue assembly and
	// startup reconciliation.
	ListPending(ctx context.Context, variants []Variant) ([]*Job, error)

	// ExistsEquivalent reports whether a pending job with the given
	// fingerprint exists. Rows persist for the whole attempt, so this
	// also covers jobs currently leased by the runner.
	ExistsEquivalent(ctx context.Context, fingerprint string) (bool, error)

	// RescheduleJob defers a job: advances NextRunAt and records the new
	// failure count.
	RescheduleJob(ctx context.Context, jobID id.JobID, nextRunAt time.Time, failureCount int) error

	// DeleteJob removes a job by ID (success or permanent failure).
	DeleteJob(ctx context.Context, jobID id.JobID) error

	// MarkOnceCompleted records a successful run-once completion for the
	// given fingerprint.
	MarkOnceCompleted(ctx context.Context, fingerprint string, at time.Time) error

	// OnceCompleted reports whether the fingerprint has a recorded
	// run-once success.
	OnceCompleted(ctx context.Context, fingerprint string) (bool, error)

	// CountJobs returns the number of pending jobs matching the options.
	CountJobs(ctx context.Context, opts CountOpts) (int64, error)
}
