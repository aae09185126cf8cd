// Package scheduler fires the nightly sync-all run on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/palbase/palbase-sync/internal/ingest"
)

// Trigger starts a background run over every source.
type Trigger interface {
	TriggerAllAsync(trigger string) error
}

// Scheduler owns the cron loop. A tick that lands while a run is still
// in flight is skipped, never queued.
type Scheduler struct {
	cron    *cron.Cron
	trigger Trigger
	logger  *zap.Logger
}

// New validates the expression and registers the tick. A bad expression
// is a boot failure, not a runtime one.
func New(expr string, trigger Trigger, logger *zap.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(expr); err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	s := &Scheduler{
		cron:    cron.New(),
		trigger: trigger,
		logger:  logger,
	}
	if _, err := s.cron.AddFunc(expr, s.tick); err != nil {
		return nil, fmt.Errorf("register cron job: %w", err)
	}
	return s, nil
}

func (s *Scheduler) tick() {
	err := s.trigger.TriggerAllAsync(ingest.TriggerScheduled)
	switch {
	case errors.Is(err, ingest.ErrRunInProgress):
		s.logger.Warn("scheduled sync skipped; previous run still in flight")
	case err != nil:
		s.logger.Error("scheduled sync failed to start", zap.Error(err))
	default:
		s.logger.Info("scheduled sync started")
	}
}

// Start begins firing ticks.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts new ticks and waits for a running tick callback, bounded
// by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
}
