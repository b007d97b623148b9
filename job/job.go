package job

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/xraph/courier"
	"github.com/xraph/courier/id"
)

// Variant tags a job with its executor type. Variants use dotted names,
// e.g. "message.send", "attachment.download".
type Variant string

// Behaviour holds the scheduling flags baked into a job at enqueue time.
type Behaviour struct {
	// RunOnceOnly means the job is never re-executed after a recorded
	// success, even if re-submitted with identical parameters.
	RunOnceOnly bool `json:"run_once_only,omitempty"`

	// RunOnLaunch marks the job for the launch queue: it runs once at
	// process start before general claiming resumes.
	RunOnLaunch bool `json:"run_on_launch,omitempty"`

	// Unique means at most one equivalent job (same fingerprint) may be
	// pending at a time. Stores enforce this on insert, so two racing
	// enqueues cannot both persist.
	Unique bool `json:"unique,omitempty"`
}

// Job represents one persisted unit of deferred work.
//
// While queued, the row is exclusively owned by the runner's store; the
// runner hands the job by reference to exactly one executor per attempt.
// Executors never mutate rows — they only return outcomes.
type Job struct {
	courier.Entity

	ID            id.JobID         `json:"id"`
	Variant       Variant          `json:"variant"`
	Behaviour     Behaviour        `json:"behaviour"`
	Details       []byte           `json:"details,omitempty"`
	ThreadID      id.ThreadID      `json:"thread_id,omitempty"`
	InteractionID id.InteractionID `json:"interaction_id,omitempty"`
	NextRunAt     time.Time        `json:"next_run_at"`
	FailureCount  int              `json:"failure_count"`

	// Seq is the store-assigned insertion sequence, used to break
	// NextRunAt ties FIFO. Zero until first persisted.
	Seq int64 `json:"seq,omitempty"`
}

// Fingerprint returns the equivalence key for uniqueness and run-once
// bookkeeping: two jobs with the same variant, payload, and linkage are
// equivalent regardless of their IDs.
func (j *Job) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(j.Variant))
	h.Write([]byte{0})
	h.Write(j.Details)
	h.Write([]byte{0})
	h.Write([]byte(j.ThreadID.String()))
	h.Write([]byte{0})
	h.Write([]byte(j.InteractionID.String()))
	return hex.EncodeToString(h.Sum(nil))
}
