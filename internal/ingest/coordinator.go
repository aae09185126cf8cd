// Package ingest orchestrates ingestion runs: one RunLog per
// invocation, shelters upserted before the pets that reference them,
// a staleness sweep after all upserts, and per-source mutual exclusion.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/palbase/palbase-sync/internal/metrics"
	"github.com/palbase/palbase-sync/internal/petdata"
	"github.com/palbase/palbase-sync/internal/store"
)

// Run trigger labels recorded on RunLog.TriggeredBy.
const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

// ErrRunInProgress reports that the source already has an active run.
var ErrRunInProgress = errors.New("a run for this source is already in progress")

// ErrUnknownSource reports a source name with no registered fetcher.
var ErrUnknownSource = errors.New("unknown source")

// Config controls run behavior.
type Config struct {
	// StalenessThreshold ages out active pets not seen by a run.
	StalenessThreshold time.Duration
	// BatchSize bounds one repository write, not correctness.
	BatchSize int
}

// Coordinator runs sources and owns the per-source run guard.
type Coordinator struct {
	cfg     Config
	repo    store.Repository
	sources map[string]petdata.Source
	order   []string
	logger  *zap.Logger

	mu      sync.Mutex
	running map[string]bool
}

// NewCoordinator registers the sources in the given order.
func NewCoordinator(cfg Config, repo store.Repository, sources []petdata.Source, logger *zap.Logger) *Coordinator {
	if cfg.StalenessThreshold <= 0 {
		cfg.StalenessThreshold = 48 * time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	metrics.Init()
	c := &Coordinator{
		cfg:     cfg,
		repo:    repo,
		sources: make(map[string]petdata.Source, len(sources)),
		logger:  logger,
		running: make(map[string]bool),
	}
	for _, src := range sources {
		c.sources[src.Name()] = src
		c.order = append(c.order, src.Name())
	}
	return c
}

// Sources returns the registered source names in registration order.
func (c *Coordinator) Sources() []string {
	return append([]string(nil), c.order...)
}

// Running returns the sources with an in-flight run.
func (c *Coordinator) Running() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, name := range c.order {
		if c.running[name] {
			out = append(out, name)
		}
	}
	return out
}

// acquire claims the source. Besides the in-process flag it checks the
// latest run row, so the guarantee survives a restart of this process
// while another instance still holds the source.
func (c *Coordinator) acquire(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running[name] {
		return ErrRunInProgress
	}
	latest, err := c.repo.GetLatestRunLog(ctx, name)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("check latest run for %s: %w", name, err)
	}
	if err == nil && !latest.Status.Terminal() {
		return ErrRunInProgress
	}
	c.running[name] = true
	return nil
}

func (c *Coordinator) release(name string) {
	c.mu.Lock()
	c.running[name] = false
	c.mu.Unlock()
}

// RunSource executes one synchronous run for one source.
func (c *Coordinator) RunSource(ctx context.Context, name, trigger string) (petdata.RunLog, error) {
	src, ok := c.sources[name]
	if !ok {
		return petdata.RunLog{}, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	if err := c.acquire(ctx, name); err != nil {
		return petdata.RunLog{}, err
	}
	defer c.release(name)
	return c.run(ctx, src, trigger)
}

// TriggerAsync claims the source synchronously (so callers can report a
// conflict) and runs it in the background, detached from the caller's
// request context.
func (c *Coordinator) TriggerAsync(ctx context.Context, name, trigger string) error {
	src, ok := c.sources[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	if err := c.acquire(ctx, name); err != nil {
		return err
	}
	go func() {
		defer c.release(name)
		if _, err := c.run(context.Background(), src, trigger); err != nil {
			c.logger.Error("background run failed", zap.String("source", name), zap.Error(err))
		}
	}()
	return nil
}

// TriggerAllAsync starts a sequential run over every source. Conflicts
// with any in-flight run.
func (c *Coordinator) TriggerAllAsync(trigger string) error {
	c.mu.Lock()
	for _, busy := range c.running {
		if busy {
			c.mu.Unlock()
			return ErrRunInProgress
		}
	}
	c.mu.Unlock()
	go func() {
		if _, err := c.RunAll(context.Background(), trigger); err != nil {
			c.logger.Error("background sync-all failed", zap.Error(err))
		}
	}()
	return nil
}

// RunAll runs every registered source in order. A failed or busy source
// never stops its siblings; only context cancellation does.
func (c *Coordinator) RunAll(ctx context.Context, trigger string) ([]petdata.RunLog, error) {
	var runs []petdata.RunLog
	for _, name := range c.order {
		if ctx.Err() != nil {
			return runs, ctx.Err()
		}
		run, err := c.RunSource(ctx, name, trigger)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return runs, err
			}
			c.logger.Error("source run failed", zap.String("source", name), zap.Error(err))
		}
		if run.ID != uuid.Nil {
			runs = append(runs, run)
		}
	}
	return runs, nil
}

// run opens the RunLog, executes the source, and always finalizes the
// log to a terminal state. Finalization writes use a detached context
// so a canceled run still leaves a consistent record.
func (c *Coordinator) run(ctx context.Context, src petdata.Source, trigger string) (petdata.RunLog, error) {
	name := src.Name()
	start := time.Now()
	startedAt := start.UTC()
	run := petdata.RunLog{
		Source:      name,
		Status:      petdata.RunRunning,
		TriggeredBy: trigger,
		StartedAt:   &startedAt,
	}
	if err := c.repo.CreateRunLog(ctx, &run); err != nil {
		// no RunLog row exists yet; the error row carries a nil FK
		c.insertError(petdata.RunError{
			Source:  name,
			Type:    petdata.ErrorTypeRunFailure,
			Message: err.Error(),
		})
		return run, fmt.Errorf("create run log for %s: %w", name, err)
	}

	c.logger.Info("run started", zap.String("source", name), zap.String("trigger", trigger))
	execErr := c.execute(ctx, src, &run)

	completedAt := time.Now().UTC()
	run.CompletedAt = &completedAt
	run.Duration = time.Since(start)
	if execErr != nil {
		run.Status = petdata.RunFailed
		c.recordError(&run, petdata.SourceError{
			Type:    petdata.ErrorTypeRunFailure,
			Message: execErr.Error(),
		})
	} else {
		run.Status = petdata.RunCompleted
	}

	if err := c.repo.UpdateRunLog(context.Background(), run); err != nil {
		c.logger.Error("finalize run log", zap.String("source", name), zap.Error(err))
	}
	metrics.ObserveRun(name, string(run.Status),
		run.Counts.PetsFound, run.Counts.PetsAdded, run.Counts.PetsRemoved, run.Duration)
	c.logger.Info("run finished",
		zap.String("source", name),
		zap.String("status", string(run.Status)),
		zap.Int("found", run.Counts.PetsFound),
		zap.Int("added", run.Counts.PetsAdded),
		zap.Int("removed", run.Counts.PetsRemoved),
		zap.Int("errors", run.Counts.Errors),
		zap.Duration("duration", run.Duration))
	return run, execErr
}

// execute performs the scrape and write path. Cleanup runs on every
// exit path after a successful Initialize, panics included.
func (c *Coordinator) execute(ctx context.Context, src petdata.Source, run *petdata.RunLog) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("run panicked: %v", r)
			c.insertError(petdata.RunError{
				RunLogID: &run.ID,
				Source:   run.Source,
				Type:     petdata.ErrorTypeRunFailure,
				Message:  fmt.Sprint(r),
				Detail:   string(debug.Stack()),
			})
			run.Counts.Errors++
		}
	}()

	if err := src.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize %s: %w", src.Name(), err)
	}
	defer func() {
		if cerr := src.Cleanup(context.Background()); cerr != nil {
			c.logger.Warn("source cleanup failed", zap.String("source", src.Name()), zap.Error(cerr))
		}
	}()

	result, err := src.Scrape(ctx)
	if err != nil {
		return fmt.Errorf("scrape %s: %w", src.Name(), err)
	}
	run.Counts.PetsFound = len(result.Pets)

	// shelters first: the pet FK is only known after the shelter upsert
	shelterIDs := make(map[string]uuid.UUID, len(result.Shelters))
	for _, shelter := range result.Shelters {
		id, err := c.repo.UpsertShelter(ctx, shelter)
		if err != nil {
			return fmt.Errorf("upsert shelter %s/%s: %w", shelter.Source, shelter.SourceID, err)
		}
		shelterIDs[shelter.SourceID] = id
	}

	fallbackIDs := 0
	for i := range result.Pets {
		if result.Pets[i].FallbackID {
			fallbackIDs++
		}
		if result.Pets[i].ShelterSourceID == "" {
			continue
		}
		// an unresolvable shelter leaves a nil reference, never fails the pet
		if id, ok := shelterIDs[result.Pets[i].ShelterSourceID]; ok {
			ref := id
			result.Pets[i].ShelterID = &ref
		}
	}
	if fallbackIDs > 0 {
		c.logger.Warn("pets carrying synthesized ids; identity is not stable across runs",
			zap.String("source", src.Name()), zap.Int("count", fallbackIDs))
	}

	for begin := 0; begin < len(result.Pets); begin += c.cfg.BatchSize {
		end := min(begin+c.cfg.BatchSize, len(result.Pets))
		added, err := c.repo.BulkUpsertPets(ctx, result.Pets[begin:end])
		run.Counts.PetsAdded += added
		if err != nil {
			return fmt.Errorf("upsert pets: %w", err)
		}
		c.logger.Debug("batch upserted",
			zap.String("source", src.Name()), zap.Int("through", end), zap.Int("of", len(result.Pets)))
	}
	run.Counts.PetsUpdated = run.Counts.PetsFound - run.Counts.PetsAdded

	// sweep only after every upsert bumped last_seen_at
	removed, err := c.repo.MarkStaleAsRemoved(ctx, src.Name(), c.cfg.StalenessThreshold)
	if err != nil {
		return fmt.Errorf("staleness sweep %s: %w", src.Name(), err)
	}
	run.Counts.PetsRemoved = int(removed)

	c.flushErrors(run, result.Errors)
	return nil
}

// flushErrors persists the run's accumulated sub-unit errors in one
// bulk write and bumps counts and metrics for each.
func (c *Coordinator) flushErrors(run *petdata.RunLog, srcErrs []petdata.SourceError) {
	if len(srcErrs) == 0 {
		return
	}
	now := time.Now().UTC()
	rows := make([]petdata.RunError, 0, len(srcErrs))
	for _, srcErr := range srcErrs {
		run.Counts.Errors++
		metrics.ObserveRunError(run.Source, srcErr.Type)
		rows = append(rows, petdata.RunError{
			RunLogID:   &run.ID,
			Source:     run.Source,
			Type:       srcErr.Type,
			Message:    srcErr.Message,
			URL:        srcErr.URL,
			OccurredAt: now,
		})
	}
	if err := c.repo.BulkInsertRunErrors(context.Background(), rows); err != nil {
		c.logger.Error("record run errors", zap.String("source", run.Source), zap.Error(err))
	}
}

// recordError persists one error row against the run and bumps counts.
func (c *Coordinator) recordError(run *petdata.RunLog, srcErr petdata.SourceError) {
	run.Counts.Errors++
	metrics.ObserveRunError(run.Source, srcErr.Type)
	c.insertError(petdata.RunError{
		RunLogID: &run.ID,
		Source:   run.Source,
		Type:     srcErr.Type,
		Message:  srcErr.Message,
		URL:      srcErr.URL,
	})
}

func (c *Coordinator) insertError(runErr petdata.RunError) {
	runErr.OccurredAt = time.Now().UTC()
	if err := c.repo.InsertRunError(context.Background(), runErr); err != nil {
		c.logger.Error("record run error", zap.String("source", runErr.Source), zap.Error(err))
	}
}
