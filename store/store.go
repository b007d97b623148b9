// Package store defines the aggregate persistence interface for courier.
// The job subsystem defines its own store interface; the composite Store
// adds lifecycle operations. Backends: SQLite (embedded client store),
// Redis, and Memory.
package store

import (
	"context"

	"github.com/xraph/courier/job"
)

// Store is the aggregate persistence interface. A single backend
// implements the job store plus lifecycle operations.
//
// Migrate runs at startup and plays the schema-migration role: courier
// never mutates its schema outside of it.
type Store interface {
	job.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks store connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
