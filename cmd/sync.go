package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/palbase/palbase-sync/internal/app"
	"github.com/palbase/palbase-sync/internal/config"
	"github.com/palbase/palbase-sync/internal/ingest"
	"github.com/palbase/palbase-sync/internal/petdata"
)

func newSyncCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one synchronous ingestion pass and exit",
		Long: `sync runs each registered source once, waits for completion, and
prints a per-source summary. With --source only that source runs. The
exit code is non-zero if any run failed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runSync(cmd.Context(), cfg, source)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "run a single source instead of all of them")
	return cmd
}

func runSync(parent context.Context, cfg config.Config, source string) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer application.Close(context.Background())
	logger := application.Logger

	var runs []petdata.RunLog
	if source != "" {
		var run petdata.RunLog
		run, err = application.Coordinator.RunSource(ctx, source, ingest.TriggerManual)
		if errors.Is(err, ingest.ErrUnknownSource) {
			return fmt.Errorf("unknown source %q (known: %v)", source, application.Coordinator.Sources())
		}
		if run.ID != uuid.Nil {
			runs = append(runs, run)
		}
	} else {
		runs, err = application.Coordinator.RunAll(ctx, ingest.TriggerManual)
	}

	failed := 0
	for _, run := range runs {
		if run.Status == petdata.RunFailed {
			failed++
		}
		logger.Info("run finished",
			zap.String("source", run.Source),
			zap.String("status", string(run.Status)),
			zap.Int("pets_found", run.Counts.PetsFound),
			zap.Int("pets_added", run.Counts.PetsAdded),
			zap.Int("pets_updated", run.Counts.PetsUpdated),
			zap.Int("pets_removed", run.Counts.PetsRemoved),
			zap.Int("errors", run.Counts.Errors),
			zap.Duration("duration", run.Duration))
	}
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d runs failed", failed, len(runs))
	}
	return nil
}
