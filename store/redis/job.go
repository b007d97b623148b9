package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/courier"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/job"
)

// EnqueueJob stores the job as a Hash and indexes it in the pending
// Sorted Set. Seq comes from a Redis counter.
func (s *Store) EnqueueJob(ctx context.Context, j *job.Job) error {
	jID := j.ID.String()
	key := jobKey(jID)

	// Check for duplicate.
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("courier/redis: enqueue check exists: %w", err)
	}
	if exists > 0 {
		return courier.ErrJobAlreadyExists
	}

	if j.Behaviour.Unique {
		claimed, err := s.client.SetNX(ctx, uniqueKey(j.Fingerprint()), jID, 0).Result()
		if err != nil {
			return fmt.Errorf("courier/redis: enqueue unique guard: %w", err)
		}
		if !claimed {
			return courier.ErrJobAlreadyExists
		}
	}

	seq, err := s.client.Incr(ctx, seqKey).Result()
	if err != nil {
		return fmt.Errorf("courier/redis: enqueue seq: %w", err)
	}
	j.Seq = seq

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, jobToMap(j))
	pipe.SAdd(ctx, jobIDsKey, jID)
	pipe.ZAdd(ctx, pendingKey, goredis.Z{Score: dueScore(j.NextRunAt), Member: jID})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("courier/redis: enqueue job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return s.getJobByKey(ctx, jobKey(jobID.String()))
}

// DueJobs returns up to limit pending jobs of the given variants with
// NextRunAt <= now, in claim order. The Sorted Set narrows by due time;
// final ordering and the variant filter happen after hydration, since
// millisecond scores cannot carry the insertion sequence.
func (s *Store) DueJobs(ctx context.Context, variants []job.Variant, now time.Time, limit int) ([]*job.Job, error) {
	ids, err := s.client.ZRangeByScore(ctx, pendingKey, &goredis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("courier/redis: due jobs zrangebyscore: %w", err)
	}

	jobs, err := s.hydrate(ctx, ids, variants)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// ListPending returns all pending jobs of the given variants in claim order.
func (s *Store) ListPending(ctx context.Context, variants []job.Variant) ([]*job.Job, error) {
	ids, err := s.client.ZRange(ctx, pendingKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("courier/redis: list pending zrange: %w", err)
	}
	return s.hydrate(ctx, ids, variants)
}

// ExistsEquivalent reports whether a pending job with the given
// fingerprint exists.
func (s *Store) ExistsEquivalent(ctx context.Context, fingerprint string) (bool, error) {
	ids, err := s.client.SMembers(ctx, jobIDsKey).Result()
	if err != nil {
		return false, fmt.Errorf("courier/redis: exists smembers: %w", err)
	}

	for _, jID := range ids {
		fp, err := s.client.HGet(ctx, jobKey(jID), "fingerprint").Result()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				continue // deleted concurrently
			}
			return false, fmt.Errorf("courier/redis: exists hget: %w", err)
		}
		if fp == fingerprint {
			return true, nil
		}
	}
	return false, nil
}

// RescheduleJob defers a job to nextRunAt with the new failure count.
func (s *Store) RescheduleJob(ctx context.Context, jobID id.JobID, nextRunAt time.Time, failureCount int) error {
	jID := jobID.String()
	key := jobKey(jID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("courier/redis: reschedule exists: %w", err)
	}
	if exists == 0 {
		return courier.ErrJobNotFound
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key,
		"next_run_at", nextRunAt.UTC().Format(time.RFC3339Nano),
		"failure_count", strconv.Itoa(failureCount),
		"updated_at", time.Now().UTC().Format(time.RFC3339Nano),
	)
	pipe.ZAdd(ctx, pendingKey, goredis.Z{Score: dueScore(nextRunAt), Member: jID})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("courier/redis: reschedule job: %w", err)
	}
	return nil
}

// DeleteJob removes a job by ID, releasing its unique guard if it holds one.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	jID := jobID.String()
	key := jobKey(jID)

	j, err := s.getJobByKey(ctx, key)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, jobIDsKey, jID)
	pipe.ZRem(ctx, pendingKey, jID)
	if j.Behaviour.Unique {
		pipe.Del(ctx, uniqueKey(j.Fingerprint()))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("courier/redis: delete job: %w", err)
	}
	return nil
}

// MarkOnceCompleted records a run-once success for the fingerprint.
// HSetNX keeps the first completion time on repeat marks.
func (s *Store) MarkOnceCompleted(ctx context.Context, fingerprint string, at time.Time) error {
	err := s.client.HSetNX(ctx, onceLedgerKey, fingerprint, at.UTC().Format(time.RFC3339Nano)).Err()
	if err != nil {
		return fmt.Errorf("courier/redis: mark once completed: %w", err)
	}
	return nil
}

// OnceCompleted reports whether the fingerprint has a recorded success.
func (s *Store) OnceCompleted(ctx context.Context, fingerprint string) (bool, error) {
	ok, err := s.client.HExists(ctx, onceLedgerKey, fingerprint).Result()
	if err != nil {
		return false, fmt.Errorf("courier/redis: once completed: %w", err)
	}
	return ok, nil
}

// CountJobs returns the number of pending jobs matching the options.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	if opts.Variant == "" {
		return s.client.SCard(ctx, jobIDsKey).Result()
	}

	ids, err := s.client.SMembers(ctx, jobIDsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("courier/redis: count smembers: %w", err)
	}

	var count int64
	for _, jID := range ids {
		v, err := s.client.HGet(ctx, jobKey(jID), "variant").Result()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				continue
			}
			return 0, fmt.Errorf("courier/redis: count hget: %w", err)
		}
		if job.Variant(v) == opts.Variant {
			count++
		}
	}
	return count, nil
}

// ── helpers ──

// dueScore indexes a job by its due time in Unix milliseconds.
func dueScore(runAt time.Time) float64 {
	return float64(runAt.UnixMilli())
}

// hydrate fetches the given job hashes, applies the variant filter,
// and sorts into claim order.
func (s *Store) hydrate(ctx context.Context, ids []string, variants []job.Variant) ([]*job.Job, error) {
	variantSet := make(map[job.Variant]struct{}, len(variants))
	for _, v := range variants {
		variantSet[v] = struct{}{}
	}

	jobs := make([]*job.Job, 0, len(ids))
	for _, jID := range ids {
		j, err := s.getJobByKey(ctx, jobKey(jID))
		if err != nil {
			if errors.Is(err, courier.ErrJobNotFound) {
				continue // deleted concurrently
			}
			return nil, err
		}
		if len(variantSet) > 0 {
			if _, ok := variantSet[j.Variant]; !ok {
				continue
			}
		}
		jobs = append(jobs, j)
	}

	sort.Slice(jobs, func(i, k int) bool {
		if !jobs[i].NextRunAt.Equal(jobs[k].NextRunAt) {
			return jobs[i].NextRunAt.Before(jobs[k].NextRunAt)
		}
		return jobs[i].Seq < jobs[k].Seq
	})
	return jobs, nil
}

func jobToMap(j *job.Job) map[string]interface{} {
	return map[string]interface{}{
		"id":             j.ID.String(),
		"variant":        string(j.Variant),
		"run_once_only":  strconv.FormatBool(j.Behaviour.RunOnceOnly),
		"run_on_launch":  strconv.FormatBool(j.Behaviour.RunOnLaunch),
		"unique":         strconv.FormatBool(j.Behaviour.Unique),
		"details":        string(j.Details),
		"thread_id":      j.ThreadID.String(),
		"interaction_id": j.InteractionID.String(),
		"fingerprint":    j.Fingerprint(),
		"next_run_at":    j.NextRunAt.Format(time.RFC3339Nano),
		"failure_count":  strconv.Itoa(j.FailureCount),
		"seq":            strconv.FormatInt(j.Seq, 10),
		"created_at":     j.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":     j.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func (s *Store) getJobByKey(ctx context.Context, key string) (*job.Job, error) {
	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("courier/redis: get job: %w", err)
	}
	if len(vals) == 0 {
		return nil, courier.ErrJobNotFound
	}
	return mapToJob(vals)
}

func mapToJob(m map[string]string) (*job.Job, error) {
	jID, err := id.ParseJobID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("courier/redis: parse job id: %w", err)
	}

	runOnceOnly, _ := strconv.ParseBool(m["run_once_only"]) //nolint:errcheck // best-effort parse from trusted Redis data
	runOnLaunch, _ := strconv.ParseBool(m["run_on_launch"]) //nolint:errcheck // best-effort parse from trusted Redis data
	unique, _ := strconv.ParseBool(m["unique"])             //nolint:errcheck // best-effort parse from trusted Redis data
	failureCount, _ := strconv.Atoi(m["failure_count"])     //nolint:errcheck // best-effort parse from trusted Redis data
	seq, _ := strconv.ParseInt(m["seq"], 10, 64)            //nolint:errcheck // best-effort parse from trusted Redis data

	nextRunAt, _ := time.Parse(time.RFC3339Nano, m["next_run_at"]) //nolint:errcheck // best-effort parse from trusted Redis data
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"])  //nolint:errcheck // best-effort parse from trusted Redis data
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"])  //nolint:errcheck // best-effort parse from trusted Redis data

	j := &job.Job{
		Entity: courier.Entity{
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
		},
		ID:      jID,
		Variant: job.Variant(m["variant"]),
		Behaviour: job.Behaviour{
			RunOnceOnly: runOnceOnly,
			RunOnLaunch: runOnLaunch,
			Unique:      unique,
		},
		Details:      []byte(m["details"]),
		NextRunAt:    nextRunAt,
		FailureCount: failureCount,
		Seq:          seq,
	}
	if m["details"] == "" {
		j.Details = nil
	}

	if tid := m["thread_id"]; tid != "" {
		j.ThreadID, _ = id.ParseThreadID(tid) //nolint:errcheck // best-effort parse from trusted Redis data
	}
	if iid := m["interaction_id"]; iid != "" {
		j.InteractionID, _ = id.ParseInteractionID(iid) //nolint:errcheck // best-effort parse from trusted Redis data
	}
	return j, nil
}
