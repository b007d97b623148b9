// Package lane manages execution contexts: named queues with their own
// concurrency limits and optional token-bucket rate limits. Jobs are
// routed to a lane by variant; lanes are independent of each other, so a
// stalled send lane never delays the receive or attachment lanes.
package lane

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/xraph/courier"
)

// state tracks runtime state for a single lane.
type state struct {
	config  courier.LaneConfig
	limiter *rate.Limiter
	active  int
}

// Manager controls per-lane concurrency and rate limiting.
// It is safe for concurrent use.
type Manager struct {
	mu    sync.Mutex
	lanes map[string]*state
}

// NewManager creates a Manager with the given lane configurations.
func NewManager(configs ...courier.LaneConfig) *Manager {
	m := &Manager{
		lanes: make(map[string]*state, len(configs)),
	}
	for _, cfg := range configs {
		m.lanes[cfg.Name] = newState(cfg)
	}
	return m
}

func newState(cfg courier.LaneConfig) *state {
	s := &state{config: cfg}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return s
}

// Known reports whether the named lane is configured.
func (m *Manager) Known(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.lanes[name]
	return ok
}

// Names returns all configured lane names.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.lanes))
	for name := range m.lanes {
		names = append(names, name)
	}
	return names
}

// Concurrency returns the claim concurrency for the named lane.
// Lanes are serialized unless explicitly configured parallel.
func (m *Manager) Concurrency(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.lanes[name]; ok && s.config.Concurrency > 1 {
		return s.config.Concurrency
	}
	return 1
}

// Acquire checks the rate limit and concurrency ceiling for the named
// lane. If the claim is allowed it increments the active counter and
// returns true. The caller MUST call Release when the job completes.
// Unknown lanes are refused.
func (m *Manager) Acquire(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.lanes[name]
	if !ok {
		return false
	}
	if s.limiter != nil && !s.limiter.Allow() {
		return false
	}
	limit := s.config.Concurrency
	if limit <= 0 {
		limit = 1
	}
	if s.active >= limit {
		return false
	}
	s.active++
	return true
}

// Release decrements the active job count for the named lane.
func (m *Manager) Release(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.lanes[name]; ok && s.active > 0 {
		s.active--
	}
}

// ActiveCount returns the current number of active jobs in a lane.
func (m *Manager) ActiveCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.lanes[name]; ok {
		return s.active
	}
	return 0
}
