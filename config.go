package courier

import "time"

// Config holds configuration for the job Runner.
type Config struct {
	// Lanes is the set of execution contexts the runner will drive.
	// Jobs are routed to a lane by variant at registration time.
	Lanes []LaneConfig

	// PollInterval is how often each lane polls for claimable jobs.
	PollInterval time.Duration

	// ShutdownTimeout is the maximum time to wait for in-flight jobs
	// during graceful shutdown.
	ShutdownTimeout time.Duration
}

// LaneConfig describes one execution context.
type LaneConfig struct {
	// Name is the lane identifier (must match Definition.Lane).
	Name string

	// Concurrency is how many jobs the lane may run simultaneously.
	// Zero or one means the lane is serialized.
	Concurrency int

	// RateLimit is the maximum sustained claims per second for the lane.
	// Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the token-bucket burst size. Defaults to 1 when
	// RateLimit is set and RateBurst is zero.
	RateBurst int
}

// Well-known lane names. Jobs default to LaneDefault; message traffic and
// attachment transfers get dedicated lanes so a stalled send never blocks
// an incoming poll.
const (
	LaneDefault    = "default"
	LaneSend       = "message-send"
	LaneReceive    = "message-receive"
	LaneAttachment = "attachment"
)

// DefaultConfig returns a Config with sensible defaults: serialized
// default/send/receive lanes and a parallel attachment lane.
func DefaultConfig() Config {
	return Config{
		Lanes: []LaneConfig{
			{Name: LaneDefault, Concurrency: 1},
			{Name: LaneSend, Concurrency: 1},
			{Name: LaneReceive, Concurrency: 1},
			{Name: LaneAttachment, Concurrency: 4},
		},
		PollInterval:    250 * time.Millisecond,
		ShutdownTimeout: 30 * time.Second,
	}
}
