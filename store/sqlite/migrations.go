package sqlite

// migrations holds the schema statements run by Migrate, in order.
// Statements are idempotent; courier never mutates its schema elsewhere.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS courier_jobs (
		seq            INTEGER PRIMARY KEY AUTOINCREMENT,
		id             TEXT NOT NULL UNIQUE,
		variant        TEXT NOT NULL,
		run_once_only  INTEGER NOT NULL DEFAULT 0,
		run_on_launch  INTEGER NOT NULL DEFAULT 0,
		unique_job     INTEGER NOT NULL DEFAULT 0,
		details        BLOB,
		thread_id      TEXT,
		interaction_id TEXT,
		fingerprint    TEXT NOT NULL,
		next_run_at    INTEGER NOT NULL,
		failure_count  INTEGER NOT NULL DEFAULT 0,
		created_at     INTEGER NOT NULL,
		updated_at     INTEGER NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_courier_jobs_claim
		ON courier_jobs (variant, next_run_at, seq)`,

	`CREATE INDEX IF NOT EXISTS idx_courier_jobs_fingerprint
		ON courier_jobs (fingerprint)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS idx_courier_jobs_unique_fingerprint
		ON courier_jobs (fingerprint) WHERE unique_job = 1`,

	`CREATE TABLE IF NOT EXISTS courier_once_ledger (
		fingerprint  TEXT PRIMARY KEY,
		completed_at INTEGER NOT NULL
	)`,
}
