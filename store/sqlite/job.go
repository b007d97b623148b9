package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/xraph/courier"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/job"
)

// Timestamps are stored as INTEGER Unix nanoseconds so next_run_at
// comparisons and ordering are plain integer arithmetic. A text layout
// like RFC 3339 does not survive TEXT comparison: trailing zeros are
// trimmed, so "10:00:00Z" sorts after "10:00:00.5Z".

const jobColumns = `seq, id, variant, run_once_only, run_on_launch, unique_job,
	details, thread_id, interaction_id, next_run_at, failure_count, created_at, updated_at`

// EnqueueJob persists a new pending job. The database assigns Seq. For a
// unique job, a partial index on fingerprint makes the insert itself the
// uniqueness guard: a concurrent equivalent insert loses with
// ErrJobAlreadyExists instead of slipping past a check-then-insert.
func (s *Store) EnqueueJob(ctx context.Context, j *job.Job) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO courier_jobs
			(id, variant, run_once_only, run_on_launch, unique_job, details,
			 thread_id, interaction_id, fingerprint, next_run_at,
			 failure_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID.String(), string(j.Variant),
		j.Behaviour.RunOnceOnly, j.Behaviour.RunOnLaunch, j.Behaviour.Unique, j.Details,
		j.ThreadID, j.InteractionID, j.Fingerprint(),
		j.NextRunAt.UTC().UnixNano(), j.FailureCount,
		j.CreatedAt.UTC().UnixNano(), j.UpdatedAt.UTC().UnixNano(),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return courier.ErrJobAlreadyExists
		}
		return fmt.Errorf("courier/sqlite: enqueue job: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("courier/sqlite: enqueue job: %w", err)
	}
	j.Seq = seq
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM courier_jobs WHERE id = ?`, jobID.String())
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, courier.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("courier/sqlite: get job: %w", err)
	}
	return j, nil
}

// DueJobs returns up to limit pending jobs of the given variants with
// NextRunAt <= now, earliest first, insertion order breaking ties.
func (s *Store) DueJobs(ctx context.Context, variants []job.Variant, now time.Time, limit int) ([]*job.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM courier_jobs WHERE next_run_at <= ?`
	args := []any{now.UTC().UnixNano()}

	if clause, variantArgs := variantFilter(variants); clause != "" {
		query += clause
		args = append(args, variantArgs...)
	}
	query += ` ORDER BY next_run_at ASC, seq ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	return s.queryJobs(ctx, query, args...)
}

// ListPending returns all pending jobs of the given variants in claim order.
func (s *Store) ListPending(ctx context.Context, variants []job.Variant) ([]*job.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM courier_jobs WHERE 1=1`
	args := []any{}

	if clause, variantArgs := variantFilter(variants); clause != "" {
		query += clause
		args = append(args, variantArgs...)
	}
	query += ` ORDER BY next_run_at ASC, seq ASC`

	return s.queryJobs(ctx, query, args...)
}

// ExistsEquivalent reports whether a pending job with the given
// fingerprint exists.
func (s *Store) ExistsEquivalent(ctx context.Context, fingerprint string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM courier_jobs WHERE fingerprint = ?`, fingerprint).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("courier/sqlite: exists equivalent: %w", err)
	}
	return n > 0, nil
}

// RescheduleJob defers a job to nextRunAt with the new failure count.
func (s *Store) RescheduleJob(ctx context.Context, jobID id.JobID, nextRunAt time.Time, failureCount int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE courier_jobs
		SET next_run_at = ?, failure_count = ?, updated_at = ?
		WHERE id = ?`,
		nextRunAt.UTC().UnixNano(), failureCount,
		time.Now().UTC().UnixNano(), jobID.String(),
	)
	if err != nil {
		return fmt.Errorf("courier/sqlite: reschedule job: %w", err)
	}
	return requireAffected(res, "reschedule job")
}

// DeleteJob removes a job by ID.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM courier_jobs WHERE id = ?`, jobID.String())
	if err != nil {
		return fmt.Errorf("courier/sqlite: delete job: %w", err)
	}
	return requireAffected(res, "delete job")
}

// MarkOnceCompleted records a run-once success for the fingerprint.
// Idempotent: re-marking keeps the first completion time.
func (s *Store) MarkOnceCompleted(ctx context.Context, fingerprint string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO courier_once_ledger (fingerprint, completed_at)
		VALUES (?, ?)
		ON CONFLICT (fingerprint) DO NOTHING`,
		fingerprint, at.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("courier/sqlite: mark once completed: %w", err)
	}
	return nil
}

// OnceCompleted reports whether the fingerprint has a recorded success.
func (s *Store) OnceCompleted(ctx context.Context, fingerprint string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM courier_once_ledger WHERE fingerprint = ?`, fingerprint).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("courier/sqlite: once completed: %w", err)
	}
	return n > 0, nil
}

// CountJobs returns the number of pending jobs matching the options.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	query := `SELECT COUNT(1) FROM courier_jobs WHERE 1=1`
	args := []any{}
	if opts.Variant != "" {
		query += ` AND variant = ?`
		args = append(args, string(opts.Variant))
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("courier/sqlite: count jobs: %w", err)
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func (s *Store) queryJobs(ctx context.Context, query string, args ...any) ([]*job.Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("courier/sqlite: query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("courier/sqlite: scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("courier/sqlite: query jobs: %w", err)
	}
	return jobs, nil
}

// variantFilter builds an "AND variant IN (...)" clause. Empty input
// means no filter.
func variantFilter(variants []job.Variant) (string, []any) {
	if len(variants) == 0 {
		return "", nil
	}
	placeholders := make([]string, len(variants))
	args := make([]any, len(variants))
	for i, v := range variants {
		placeholders[i] = "?"
		args[i] = string(v)
	}
	return ` AND variant IN (` + strings.Join(placeholders, ", ") + `)`, args
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*job.Job, error) {
	var (
		j         job.Job
		jobID     string
		variant   string
		nextRunAt int64
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(
		&j.Seq, &jobID, &variant,
		&j.Behaviour.RunOnceOnly, &j.Behaviour.RunOnLaunch, &j.Behaviour.Unique,
		&j.Details, &j.ThreadID, &j.InteractionID,
		&nextRunAt, &j.FailureCount, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if j.ID, err = id.Parse(jobID); err != nil {
		return nil, err
	}
	j.Variant = job.Variant(variant)
	j.NextRunAt = time.Unix(0, nextRunAt).UTC()
	j.CreatedAt = time.Unix(0, createdAt).UTC()
	j.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &j, nil
}

func requireAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("courier/sqlite: %s: %w", op, err)
	}
	if n == 0 {
		return courier.ErrJobNotFound
	}
	return nil
}
