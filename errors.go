package courier

import "errors"

var (
	// Store errors.
	ErrNoStore         = errors.New("courier: no store configured")
	ErrStoreClosed     = errors.New("courier: store closed")
	ErrMigrationFailed = errors.New("courier: migration failed")

	// Not found errors.
	ErrJobNotFound = errors.New("courier: job not found")

	// Conflict errors.
	ErrJobAlreadyExists = errors.New("courier: job already exists")

	// Configuration errors.
	ErrNoExecutor  = errors.New("courier: no executor registered for job variant")
	ErrUnknownLane = errors.New("courier: unknown lane")

	// State errors.
	ErrRunnerStopped    = errors.New("courier: runner stopped")
	ErrAlreadyCompleted = errors.New("courier: run-once job already completed")
)
