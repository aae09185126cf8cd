package petdata

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of one ingestion run.
type RunStatus string

// Run states. A run is terminal once completed or failed.
const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Terminal reports whether the run can no longer change state.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed
}

// RunCounts are the aggregate statistics recorded on a finished run.
type RunCounts struct {
	PetsFound   int `json:"pets_found"`
	PetsAdded   int `json:"pets_added"`
	PetsUpdated int `json:"pets_updated"`
	PetsRemoved int `json:"pets_removed"`
	Errors      int `json:"error_count"`
}

// RunLog records one ingestion attempt for one source.
type RunLog struct {
	ID          uuid.UUID  `json:"id"`
	Source      string     `json:"source"`
	Status      RunStatus  `json:"status"`
	TriggeredBy string     `json:"triggered_by"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	Counts      RunCounts  `json:"counts"`
	Duration    time.Duration `json:"duration_ms"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Error taxonomy. Kinds, not Go types: every RunError row carries one.
const (
	ErrorTypeFetch      = "FETCH_ERROR"       // one sub-unit (page/location/species) failed
	ErrorTypeParse      = "PARSE_ERROR"       // one detail page produced no record
	ErrorTypeRunFailure = "RUN_FAILED"        // the whole run aborted
	ErrorTypeRateLimit  = "RATE_LIMITED"      // upstream throttled beyond the retry budget
)

// RunError is an append-only child of a RunLog. RunLogID is nullable so
// a crash before the log row exists is still recordable.
type RunError struct {
	RunLogID   *uuid.UUID `json:"run_log_id"`
	Source     string     `json:"source"`
	Type       string     `json:"error_type"`
	Message    string     `json:"error_message"`
	URL        string     `json:"url,omitempty"`
	Detail     string     `json:"detail,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}
