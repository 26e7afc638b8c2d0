package main

import (
	"context"
	"fmt"
	"os"

	"github.com/okian/certify/internal/config"
	"github.com/okian/certify/pkg/logger"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "certify",
		Short:         "Attendee verification, feedback and certificate delivery service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML config file (overrides "+config.EnvPrefix+"CONFIG)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "dotenv file to load (overrides "+config.EnvPrefix+"ENV_FILE)")

	cmd.AddCommand(
		newServeCmd(opts),
		newRenderCmd(opts),
		newLookupCmd(opts),
	)
	return cmd
}

// loadConfig applies flag overrides and loads configuration.
func loadConfig(ctx context.Context, opts *rootOptions) (*config.Config, error) {
	if opts.configFile != "" {
		if err := os.Setenv(config.EnvPrefix+"CONFIG", opts.configFile); err != nil {
			return nil, err
		}
	}
	if opts.envFile != "" {
		if err := os.Setenv(config.EnvPrefix+"ENV_FILE", opts.envFile); err != nil {
			return nil, err
		}
	}
	return config.Load(ctx)
}

// initLogging configures the global logger from cfg.
func initLogging(ctx context.Context, cfg *config.Config) (logger.Logger, error) {
	if err := logger.Init(logger.WithJSON(cfg.LogJSON)); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return log, nil
}
