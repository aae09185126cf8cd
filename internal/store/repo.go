// Package store declares the persistence boundary for pets, shelters,
// and run accounting.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/palbase/palbase-sync/internal/petdata"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Repository is the durable write path for ingestion. Every write is an
// upsert keyed by (source, source_id), so repeated delivery of the same
// record is safe.
type Repository interface {
	// UpsertShelter inserts or refreshes a shelter by natural key and
	// returns its internal id.
	UpsertShelter(ctx context.Context, shelter petdata.Shelter) (uuid.UUID, error)

	// BulkUpsertPets upserts one batch by natural key. A conflicting row
	// keeps its first_seen_at and status; every mutable field and
	// last_seen_at are refreshed. Returns the number of rows that were
	// newly inserted.
	BulkUpsertPets(ctx context.Context, pets []petdata.Pet) (int, error)

	// MarkStaleAsRemoved flips active pets of one source to removed when
	// their last_seen_at is older than the threshold. Returns the number
	// of rows affected. Rows of other sources are never touched.
	MarkStaleAsRemoved(ctx context.Context, source string, threshold time.Duration) (int64, error)

	// CreateRunLog persists a new run record, assigning ID when unset.
	CreateRunLog(ctx context.Context, run *petdata.RunLog) error
	// UpdateRunLog rewrites the mutable fields of an existing run.
	UpdateRunLog(ctx context.Context, run petdata.RunLog) error
	// GetLatestRunLog returns the most recent run for a source, or
	// ErrNotFound when the source has never run.
	GetLatestRunLog(ctx context.Context, source string) (petdata.RunLog, error)
	// ListRunLogs returns recent runs, newest first. An empty source
	// matches all sources.
	ListRunLogs(ctx context.Context, source string, limit int) ([]petdata.RunLog, error)

	// InsertRunError appends one error row. RunLogID may be nil when the
	// failure happened before a run record existed.
	InsertRunError(ctx context.Context, runErr petdata.RunError) error

	// BulkInsertRunErrors appends error rows in one round-trip. Used by
	// the end-of-run flush of accumulated sub-unit errors.
	BulkInsertRunErrors(ctx context.Context, runErrs []petdata.RunError) error

	// Close releases the underlying connections.
	Close()
}
