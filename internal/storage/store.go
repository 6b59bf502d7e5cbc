package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/accel-crunch/internal/bucket"
	"github.com/roman-kulish/accel-crunch/internal/cwa"
)

// Store persists processing runs: the metadata of the decoded log and every
// bucket series derived from it.
type Store interface {
	// CreateRun registers a new run for the log at source and returns its ID.
	CreateRun(ctx context.Context, source string) (runID uuid.UUID, err error)

	// Run returns a run by its ID.
	Run(ctx context.Context, id uuid.UUID) (*Run, error)

	// Runs returns all runs ordered by start time.
	Runs(ctx context.Context) ([]*Run, error)

	// StoreMetadata saves the metadata section of the log, replacing any
	// metadata stored for the run before.
	StoreMetadata(ctx context.Context, runID uuid.UUID, m *cwa.Metadata) error

	// StoreBuckets saves a bucket series of the given width in a single
	// transaction. Empty buckets are stored with NULL statistics.
	StoreBuckets(ctx context.Context, runID uuid.UUID, width time.Duration, buckets []bucket.Bucket) error

	// Close releases all database connections. It is safe to call Close
	// multiple times.
	Close() error
}

var _ Store = (*SqliteStore)(nil)
