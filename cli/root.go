// Package cli contains the fedprox cobra commands.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/absmach/fedprox"
	"github.com/spf13/cobra"
)

const (
	configFlag   = "config"
	logLevelFlag = "log-level"
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fedprox",
		Short:         "Single-process FedProx federated learning simulator",
		Long:          `Simulates N federated clients training a shared classifier with the FedProx proximal objective, averaged by an in-process coordinator.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringP(configFlag, "c", "", "Path to a TOML config file")
	root.PersistentFlags().String(logLevelFlag, "", "Log level (debug, info, warn, error); overrides the config")

	root.AddCommand(
		NewRunCmd(),
		NewPartitionCmd(),
		NewConfigCmd(),
		NewWatchCmd(),
	)

	return root
}

// Execute runs root and reports a failure the same way every subcommand does.
func Execute(ctx context.Context, root *cobra.Command) error {
	err := root.ExecuteContext(ctx)
	if err != nil {
		logErrorCmd(*root, err)
	}

	return err
}

// loadConfig resolves file, environment and --log-level, in that order.
func loadConfig(cmd *cobra.Command) (*fedprox.Config, error) {
	path, _ := cmd.Flags().GetString(configFlag)

	cfg, err := fedprox.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if level, _ := cmd.Flags().GetString(logLevelFlag); level != "" {
		cfg.Log.Level = level
	}

	return cfg, nil
}

func newLogger(cfg *fedprox.Config) *slog.Logger {
	level, err := cfg.LogLevel()
	if err != nil {
		level = slog.LevelInfo
	}

	logHandler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(logHandler)
}
