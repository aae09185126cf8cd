// Package cmd implements the palbase-sync command line interface.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/palbase/palbase-sync/internal/config"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "palbase-sync",
		Short: "Aggregates pet adoption listings from shelter and rescue sites",
		Long: `palbase-sync ingests adoptable pet listings from rescue APIs and
shelter websites into a single Postgres catalog. The serve command runs
the long-lived service with its scheduler and HTTP control plane; the
sync command performs a one-shot run for ad-hoc or cron-driven use.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"path to a YAML config file (PETSYNC_* environment variables override)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSyncCmd())
	return cmd
}

// Execute runs the CLI and returns the resulting error for main to
// translate into an exit code.
func Execute() error {
	return newRootCmd().Execute()
}

func loadConfig() (config.Config, error) {
	return config.Load(cfgFile)
}
