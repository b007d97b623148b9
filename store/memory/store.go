// Package memory provides a fully in-memory store.Store implementation.
// Safe for concurrent access. Intended for unit testing and development;
// it forgets everything on process exit, so restart-safety guarantees come
// from the durable backends.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/courier"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/job"
	"github.com/xraph/courier/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a fully in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	jobs map[string]*job.Job
	once map[string]time.Time // fingerprint → completion time
	seq  int64
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		jobs: make(map[string]*job.Job),
		once: make(map[string]time.Time),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Job store
// ──────────────────────────────────────────────────

// EnqueueJob persists a new pending job and assigns its insertion sequence.
// For a unique job the fingerprint check happens under the same lock as the
// insert, so two racing equivalent enqueues cannot both land.
func (m *Store) EnqueueJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	if _, exists := m.jobs[key]; exists {
		return courier.ErrJobAlreadyExists
	}

	if j.Behaviour.Unique {
		fp := j.Fingerprint()
		for _, existing := range m.jobs {
			if existing.Behaviour.Unique && existing.Fingerprint() == fp {
				return courier.ErrJobAlreadyExists
			}
		}
	}

	m.seq++
	j.Seq = m.seq
	cp := *j
	m.jobs[key] = &cp
	return nil
}

// GetJob retrieves a job by ID.
func (m *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, courier.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

// DueJobs returns up to limit pending jobs of the given variants with
// NextRunAt <= now, in claim order.
func (m *Store) DueJobs(_ context.Context, variants []job.Variant, now time.Time, limit int) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	candidates := m.collect(variants, func(j *job.Job) bool {
		return !j.NextRunAt.After(now)
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// ListPending returns all pending jobs of the given variants in claim order.
func (m *Store) ListPending(_ context.Context, variants []job.Variant) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.collect(variants, func(_ *job.Job) bool { return true }), nil
}

// collect gathers matching jobs sorted by NextRunAt ascending then Seq.
// Callers hold the lock; returned jobs are copies so callers can mutate
// without racing with the store.
func (m *Store) collect(variants []job.Variant, keep func(*job.Job) bool) []*job.Job {
	variantSet := make(map[job.Variant]struct{}, len(variants))
	for _, v := range variants {
		variantSet[v] = struct{}{}
	}

	candidates := make([]*job.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if len(variantSet) > 0 {
			if _, ok := variantSet[j.Variant]; !ok {
				continue
			}
		}
		if !keep(j) {
			continue
		}
		cp := *j
		candidates = append(candidates, &cp)
	}

	sort.Slice(candidates, func(i, k int) bool {
		if !candidates[i].NextRunAt.Equal(candidates[k].NextRunAt) {
			return candidates[i].NextRunAt.Before(candidates[k].NextRunAt)
		}
		return candidates[i].Seq < candidates[k].Seq
	})
	return candidates
}

// ExistsEquivalent reports whether a pending job with the given
// fingerprint exists.
func (m *Store) ExistsEquivalent(_ context.Context, fingerprint string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, j := range m.jobs {
		if j.Fingerprint() == fingerprint {
			return true, nil
		}
	}
	return false, nil
}

// RescheduleJob defers a job to nextRunAt with the new failure count.
func (m *Store) RescheduleJob(_ context.Context, jobID id.JobID, nextRunAt time.Time, failureCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return courier.ErrJobNotFound
	}
	j.NextRunAt = nextRunAt
	j.FailureCount = failureCount
	j.Touch()
	return nil
}

// DeleteJob removes a job by ID.
func (m *Store) DeleteJob(_ context.Context, jobID id.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := jobID.String()
	if _, ok := m.jobs[key]; !ok {
		return courier.ErrJobNotFound
	}
	delete(m.jobs, key)
	return nil
}

// MarkOnceCompleted records a run-once success for the fingerprint.
func (m *Store) MarkOnceCompleted(_ context.Context, fingerprint string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.once[fingerprint]; !ok {
		m.once[fingerprint] = at
	}
	return nil
}

// OnceCompleted reports whether the fingerprint has a recorded success.
func (m *Store) OnceCompleted(_ context.Context, fingerprint string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.once[fingerprint]
	return ok, nil
}

// CountJobs returns the number of pending jobs matching the options.
func (m *Store) CountJobs(_ context.Context, opts job.CountOpts) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, j := range m.jobs {
		if opts.Variant != "" && j.Variant != opts.Variant {
			continue
		}
		n++
	}
	return n, nil
}
