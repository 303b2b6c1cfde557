package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/fleetroute/internal/shared"
)

const envConfig = "FLEETROUTE_CONFIG"

// loadConfig reads config.toml (or $FLEETROUTE_CONFIG) when present, then overlays the environment.
func loadConfig(logger *log.Logger) (*shared.Config, string) {
	path := "config.toml"
	if v := os.Getenv(envConfig); v != "" {
		path = v
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		if loaded, err := shared.LoadConfig(path); err == nil {
			config = loaded
		} else {
			logger.Warn("failed to load config, using defaults", "path", path, "error", err)
		}
	}

	if err := config.ApplyEnv(); err != nil {
		logger.Fatalf("invalid environment: %v", err)
	}
	return config, path
}

func main() {
	logger := shared.NewLogger(nil)

	if err := shared.LoadEnv(); err != nil {
		logger.Warn("ignoring env file", "error", err)
	}

	config, path := loadConfig(logger)
	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: path,
		Logger:     logger,
	})
	defer runner.Close()

	app := &cli.Command{
		Name:    "fleetroute",
		Usage:   "Plan, optimize and review delivery routes",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging"},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("debug") {
				shared.SetLogLevel(logger, log.DebugLevel)
			}
			return ctx, nil
		},
		Commands:                  runner.register(),
		DisableSliceFlagSeparator: true,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			return
		}
		runner.Close()
		logger.Fatalf("application error: %v", err)
	}
}
