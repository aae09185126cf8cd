package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/palbase/palbase-sync/internal/api"
	"github.com/palbase/palbase-sync/internal/app"
	"github.com/palbase/palbase-sync/internal/config"
	"github.com/palbase/palbase-sync/internal/scheduler"
)

const shutdownGrace = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sync service with its scheduler and HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(parent context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	logger := application.Logger

	sched, err := scheduler.New(cfg.Sync.Cron, application.Coordinator, logger)
	if err != nil {
		application.Close(context.Background())
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewServer(application.Coordinator, application.Repo, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	sched.Start()
	logger.Info("scheduler started", zap.String("cron", cfg.Sync.Cron))

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("http server failed", zap.Error(err))
		stop()
	}

	// In-flight runs finish their repository writes on a background
	// context; the grace period here only bounds component teardown.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	sched.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", zap.Error(err))
	}
	application.Close(shutdownCtx)
	return nil
}
