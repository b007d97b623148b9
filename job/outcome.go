package job

import "time"

// Status classifies an executor outcome.
type Status int

const (
	// StatusSuccess means the side effect completed; the job is deleted.
	StatusSuccess Status = iota
	// StatusTemporaryFailure means the attempt failed but may succeed
	// later; the job is deferred with backoff.
	StatusTemporaryFailure
	// StatusPermanentFailure means retrying cannot help; the job is
	// deleted and a failure event is emitted.
	StatusPermanentFailure
)

// String returns the lowercase name of the status.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusTemporaryFailure:
		return "temporary_failure"
	case StatusPermanentFailure:
		return "permanent_failure"
	default:
		return "unknown"
	}
}

// Outcome is an executor's report for one attempt. The runner is the sole
// authority translating an Outcome into persisted state and events.
type Outcome struct {
	Status Status

	// RetryAfter is an optional explicit delay for a temporary failure.
	// Zero means the runner picks the delay from its backoff strategy.
	RetryAfter time.Duration

	// Err carries the failure cause for logging and events. Nil on success.
	Err error
}

// Succeed reports a completed side effect.
func Succeed() Outcome {
	return Outcome{Status: StatusSuccess}
}

// Retry reports a transient failure; the runner chooses the backoff delay.
func Retry(err error) Outcome {
	return Outcome{Status: StatusTemporaryFailure, Err: err}
}

// RetryAfter reports a transient failure with an explicit delay, e.g. from
// a server-provided Retry-After header.
func RetryAfter(d time.Duration, err error) Outcome {
	return Outcome{Status: StatusTemporaryFailure, RetryAfter: d, Err: err}
}

// Fail reports a terminal failure that retrying cannot fix.
func Fail(err error) Outcome {
	return Outcome{Status: StatusPermanentFailure, Err: err}
}
