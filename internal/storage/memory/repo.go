// Package memory provides an in-memory Repository for development and
// testing. Semantics mirror the Postgres implementation.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/palbase/palbase-sync/internal/petdata"
	"github.com/palbase/palbase-sync/internal/store"
)

type petRow struct {
	pet petdata.Pet
	id  uuid.UUID
}

// Repo implements store.Repository with maps guarded by one mutex.
type Repo struct {
	mu       sync.RWMutex
	shelters map[string]shelterRow
	pets     map[string]petRow
	runs     []petdata.RunLog
	runErrs  []petdata.RunError
}

type shelterRow struct {
	shelter petdata.Shelter
	id      uuid.UUID
}

// NewRepo constructs an empty repository.
func NewRepo() *Repo {
	return &Repo{
		shelters: make(map[string]shelterRow),
		pets:     make(map[string]petRow),
	}
}

func key(source, sourceID string) string { return source + ":" + sourceID }

// UpsertShelter implements store.Repository.
func (r *Repo) UpsertShelter(_ context.Context, shelter petdata.Shelter) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(shelter.Source, shelter.SourceID)
	row, ok := r.shelters[k]
	if !ok {
		row = shelterRow{id: uuid.New()}
	}
	row.shelter = shelter
	r.shelters[k] = row
	return row.id, nil
}

// BulkUpsertPets implements store.Repository. A conflicting row keeps
// its first_seen_at and status.
func (r *Repo) BulkUpsertPets(_ context.Context, pets []petdata.Pet) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inserted := 0
	for _, pet := range pets {
		k := key(pet.Source, pet.SourceID)
		if existing, ok := r.pets[k]; ok {
			pet.FirstSeenAt = existing.pet.FirstSeenAt
			pet.Status = existing.pet.Status
			r.pets[k] = petRow{pet: pet, id: existing.id}
			continue
		}
		r.pets[k] = petRow{pet: pet, id: uuid.New()}
		inserted++
	}
	return inserted, nil
}

// MarkStaleAsRemoved implements store.Repository.
func (r *Repo) MarkStaleAsRemoved(_ context.Context, source string, threshold time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().UTC().Add(-threshold)
	var n int64
	for k, row := range r.pets {
		if row.pet.Source != source || row.pet.Status != petdata.StatusActive {
			continue
		}
		if row.pet.LastSeenAt.Before(cutoff) {
			row.pet.Status = petdata.StatusRemoved
			r.pets[k] = row
			n++
		}
	}
	return n, nil
}

// CreateRunLog implements store.Repository.
func (r *Repo) CreateRunLog(_ context.Context, run *petdata.RunLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	r.runs = append(r.runs, *run)
	return nil
}

// UpdateRunLog implements store.Repository.
func (r *Repo) UpdateRunLog(_ context.Context, run petdata.RunLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.runs {
		if r.runs[i].ID == run.ID {
			run.CreatedAt = r.runs[i].CreatedAt
			r.runs[i] = run
			return nil
		}
	}
	return store.ErrNotFound
}

// GetLatestRunLog implements store.Repository.
func (r *Repo) GetLatestRunLog(_ context.Context, source string) (petdata.RunLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *petdata.RunLog
	for i := range r.runs {
		if r.runs[i].Source != source {
			continue
		}
		if latest == nil || r.runs[i].CreatedAt.After(latest.CreatedAt) {
			latest = &r.runs[i]
		}
	}
	if latest == nil {
		return petdata.RunLog{}, store.ErrNotFound
	}
	return *latest, nil
}

// ListRunLogs implements store.Repository.
func (r *Repo) ListRunLogs(_ context.Context, source string, limit int) ([]petdata.RunLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []petdata.RunLog
	for _, run := range r.runs {
		if source == "" || run.Source == source {
			out = append(out, run)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// InsertRunError implements store.Repository.
func (r *Repo) InsertRunError(_ context.Context, runErr petdata.RunError) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if runErr.OccurredAt.IsZero() {
		runErr.OccurredAt = time.Now().UTC()
	}
	r.runErrs = append(r.runErrs, runErr)
	return nil
}

// BulkInsertRunErrors implements store.Repository.
func (r *Repo) BulkInsertRunErrors(_ context.Context, runErrs []petdata.RunError) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, runErr := range runErrs {
		if runErr.OccurredAt.IsZero() {
			runErr.OccurredAt = time.Now().UTC()
		}
		r.runErrs = append(r.runErrs, runErr)
	}
	return nil
}

// Close implements store.Repository.
func (r *Repo) Close() {}

// Pets returns a snapshot of every stored pet. Test helper.
func (r *Repo) Pets() []petdata.Pet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]petdata.Pet, 0, len(r.pets))
	for _, row := range r.pets {
		out = append(out, row.pet)
	}
	return out
}

// Pet returns one stored pet by natural key. Test helper.
func (r *Repo) Pet(source, sourceID string) (petdata.Pet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.pets[key(source, sourceID)]
	return row.pet, ok
}

// ShelterID returns the internal id for a shelter natural key. Test helper.
func (r *Repo) ShelterID(source, sourceID string) (uuid.UUID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.shelters[key(source, sourceID)]
	return row.id, ok
}

// SetLastSeen backdates a pet's last_seen_at. Test helper.
func (r *Repo) SetLastSeen(source, sourceID string, t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.pets[key(source, sourceID)]; ok {
		row.pet.LastSeenAt = t
		r.pets[key(source, sourceID)] = row
	}
}

// RunErrors returns a snapshot of recorded errors. Test helper.
func (r *Repo) RunErrors() []petdata.RunError {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]petdata.RunError(nil), r.runErrs...)
}
