// Package postgres provides the Postgres-backed Repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/palbase/palbase-sync/internal/petdata"
	"github.com/palbase/palbase-sync/internal/store"
)

// Config controls the connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Close()
}

// Repo implements store.Repository over a pgx pool.
type Repo struct {
	pool dbPool
}

// NewRepo connects a pool from config.
func NewRepo(ctx context.Context, cfg Config) (*Repo, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Repo{pool: pool}, nil
}

// NewRepoWithPool constructs a repo from an existing pool (primarily for testing).
func NewRepoWithPool(pool dbPool) (*Repo, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Repo{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (r *Repo) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

// Migrate applies the schema. Statements are idempotent.
func (r *Repo) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// UpsertShelter implements store.Repository.
func (r *Repo) UpsertShelter(ctx context.Context, shelter petdata.Shelter) (uuid.UUID, error) {
	query := `
		INSERT INTO shelters (id, source, source_id, name, email, phone, website, address, city, state, zip)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (source, source_id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			website = EXCLUDED.website,
			address = EXCLUDED.address,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			zip = EXCLUDED.zip,
			updated_at = now()
		RETURNING id;
	`
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, query,
		uuid.New(), shelter.Source, shelter.SourceID, shelter.Name,
		shelter.Email, shelter.Phone, shelter.Website, shelter.Address,
		shelter.City, shelter.State, shelter.Zip,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert shelter %s/%s: %w", shelter.Source, shelter.SourceID, err)
	}
	return id, nil
}

// upsertPetSQL keeps first_seen_at and status out of the SET list so a
// conflicting row preserves both. xmax = 0 only on a fresh insert.
const upsertPetSQL = `
	INSERT INTO pets (
		id, source, source_id, source_url, shelter_id,
		name, species, breed, breed_secondary, age, size, gender, color, description,
		photos, location_city, location_state, location_zip,
		shelter_name, shelter_email, shelter_phone,
		good_with_kids, good_with_dogs, good_with_cats, house_trained, spayed_neutered, special_needs,
		adoption_fee, status, first_seen_at, last_seen_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31
	)
	ON CONFLICT (source, source_id) DO UPDATE SET
		source_url = EXCLUDED.source_url,
		shelter_id = EXCLUDED.shelter_id,
		name = EXCLUDED.name,
		species = EXCLUDED.species,
		breed = EXCLUDED.breed,
		breed_secondary = EXCLUDED.breed_secondary,
		age = EXCLUDED.age,
		size = EXCLUDED.size,
		gender = EXCLUDED.gender,
		color = EXCLUDED.color,
		description = EXCLUDED.description,
		photos = EXCLUDED.photos,
		location_city = EXCLUDED.location_city,
		location_state = EXCLUDED.location_state,
		location_zip = EXCLUDED.location_zip,
		shelter_name = EXCLUDED.shelter_name,
		shelter_email = EXCLUDED.shelter_email,
		shelter_phone = EXCLUDED.shelter_phone,
		good_with_kids = EXCLUDED.good_with_kids,
		good_with_dogs = EXCLUDED.good_with_dogs,
		good_with_cats = EXCLUDED.good_with_cats,
		house_trained = EXCLUDED.house_trained,
		spayed_neutered = EXCLUDED.spayed_neutered,
		special_needs = EXCLUDED.special_needs,
		adoption_fee = EXCLUDED.adoption_fee,
		last_seen_at = EXCLUDED.last_seen_at,
		updated_at = now()
	RETURNING (xmax = 0);
`

// BulkUpsertPets implements store.Repository. One batch round-trip; the
// returned count is the number of rows the batch freshly inserted.
func (r *Repo) BulkUpsertPets(ctx context.Context, pets []petdata.Pet) (int, error) {
	if len(pets) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, pet := range pets {
		photos := pet.Photos
		if photos == nil {
			photos = []string{}
		}
		batch.Queue(upsertPetSQL,
			uuid.New(), pet.Source, pet.SourceID, pet.SourceURL, pet.ShelterID,
			pet.Name, pet.Species, pet.Breed, pet.BreedSecondary, pet.Age, pet.Size,
			pet.Gender, pet.Color, pet.Description, photos,
			pet.LocationCity, pet.LocationState, pet.LocationZip,
			pet.ShelterName, pet.ShelterEmail, pet.ShelterPhone,
			pet.GoodWithKids, pet.GoodWithDogs, pet.GoodWithCats,
			pet.HouseTrained, pet.SpayedNeutered, pet.SpecialNeeds,
			pet.AdoptionFee, pet.Status, pet.FirstSeenAt, pet.LastSeenAt,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for i := range pets {
		var fresh bool
		if err := results.QueryRow().Scan(&fresh); err != nil {
			return inserted, fmt.Errorf("upsert pet %s/%s: %w", pets[i].Source, pets[i].SourceID, err)
		}
		if fresh {
			inserted++
		}
	}
	return inserted, nil
}

// MarkStaleAsRemoved implements store.Repository.
func (r *Repo) MarkStaleAsRemoved(ctx context.Context, source string, threshold time.Duration) (int64, error) {
	query := `
		UPDATE pets
		SET status = $1, updated_at = now()
		WHERE source = $2 AND status = $3 AND last_seen_at < $4;
	`
	cutoff := time.Now().UTC().Add(-threshold)
	tag, err := r.pool.Exec(ctx, query, petdata.StatusRemoved, source, petdata.StatusActive, cutoff)
	if err != nil {
		return 0, fmt.Errorf("mark stale pets for %s: %w", source, err)
	}
	return tag.RowsAffected(), nil
}

// CreateRunLog implements store.Repository.
func (r *Repo) CreateRunLog(ctx context.Context, run *petdata.RunLog) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO run_logs (id, source, status, triggered_by, started_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	_, err := r.pool.Exec(ctx, query,
		run.ID, run.Source, run.Status, run.TriggeredBy, run.StartedAt, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("create run log for %s: %w", run.Source, err)
	}
	return nil
}

// UpdateRunLog implements store.Repository.
func (r *Repo) UpdateRunLog(ctx context.Context, run petdata.RunLog) error {
	query := `
		UPDATE run_logs
		SET status = $1, started_at = $2, completed_at = $3,
			pets_found = $4, pets_added = $5, pets_updated = $6, pets_removed = $7,
			error_count = $8, duration_ms = $9
		WHERE id = $10;
	`
	_, err := r.pool.Exec(ctx, query,
		run.Status, run.StartedAt, run.CompletedAt,
		run.Counts.PetsFound, run.Counts.PetsAdded, run.Counts.PetsUpdated,
		run.Counts.PetsRemoved, run.Counts.Errors,
		run.Duration.Milliseconds(), run.ID)
	if err != nil {
		return fmt.Errorf("update run log %s: %w", run.ID, err)
	}
	return nil
}

const runLogColumns = `id, source, status, triggered_by, started_at, completed_at,
	pets_found, pets_added, pets_updated, pets_removed, error_count, duration_ms, created_at`

func scanRunLog(row pgx.Row) (petdata.RunLog, error) {
	var run petdata.RunLog
	var durationMS int64
	err := row.Scan(
		&run.ID, &run.Source, &run.Status, &run.TriggeredBy,
		&run.StartedAt, &run.CompletedAt,
		&run.Counts.PetsFound, &run.Counts.PetsAdded, &run.Counts.PetsUpdated,
		&run.Counts.PetsRemoved, &run.Counts.Errors,
		&durationMS, &run.CreatedAt,
	)
	if err != nil {
		return petdata.RunLog{}, err
	}
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return run, nil
}

// GetLatestRunLog implements store.Repository.
func (r *Repo) GetLatestRunLog(ctx context.Context, source string) (petdata.RunLog, error) {
	query := `
		SELECT ` + runLogColumns + `
		FROM run_logs
		WHERE source = $1
		ORDER BY created_at DESC
		LIMIT 1;
	`
	run, err := scanRunLog(r.pool.QueryRow(ctx, query, source))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return petdata.RunLog{}, store.ErrNotFound
		}
		return petdata.RunLog{}, fmt.Errorf("get latest run log for %s: %w", source, err)
	}
	return run, nil
}

// ListRunLogs implements store.Repository.
func (r *Repo) ListRunLogs(ctx context.Context, source string, limit int) ([]petdata.RunLog, error) {
	query := `
		SELECT ` + runLogColumns + `
		FROM run_logs
		WHERE ($1 = '' OR source = $1)
		ORDER BY created_at DESC
		LIMIT $2;
	`
	rows, err := r.pool.Query(ctx, query, source, limit)
	if err != nil {
		return nil, fmt.Errorf("list run logs: %w", err)
	}
	defer rows.Close()

	var runs []petdata.RunLog
	for rows.Next() {
		run, err := scanRunLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run log row: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

const insertRunErrorSQL = `
	INSERT INTO run_errors (run_log_id, source, error_type, error_message, url, detail, occurred_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7);
`

// InsertRunError implements store.Repository.
func (r *Repo) InsertRunError(ctx context.Context, runErr petdata.RunError) error {
	if runErr.OccurredAt.IsZero() {
		runErr.OccurredAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, insertRunErrorSQL,
		runErr.RunLogID, runErr.Source, runErr.Type, runErr.Message,
		runErr.URL, runErr.Detail, runErr.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert run error for %s: %w", runErr.Source, err)
	}
	return nil
}

// BulkInsertRunErrors implements store.Repository. One batch round-trip
// for the whole slice.
func (r *Repo) BulkInsertRunErrors(ctx context.Context, runErrs []petdata.RunError) error {
	if len(runErrs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, runErr := range runErrs {
		if runErr.OccurredAt.IsZero() {
			runErr.OccurredAt = time.Now().UTC()
		}
		batch.Queue(insertRunErrorSQL,
			runErr.RunLogID, runErr.Source, runErr.Type, runErr.Message,
			runErr.URL, runErr.Detail, runErr.OccurredAt)
	}
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for i := range runErrs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert run error for %s: %w", runErrs[i].Source, err)
		}
	}
	return nil
}
