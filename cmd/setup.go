package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/fleetroute/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the database and runs migrations, or reverts the newest one with --rollback.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if !cmd.IsSet("config") && r.configPath != "" {
		configPath = r.configPath
	}

	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			config = shared.DefaultConfig()
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
			config = shared.DefaultConfig()
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err = shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
				config = shared.DefaultConfig()
			}
		}
	}

	if err := config.ApplyEnv(); err != nil {
		return err
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	migrator := shared.NewMigrator(db, r.logger)
	if cmd.Bool("rollback") {
		migration, err := migrator.Rollback()
		if err != nil {
			return err
		}
		return r.writePlain("✓ Rolled back migration %04d %s\n", migration.Version, migration.Name)
	}

	r.logger.Info("running database migrations")
	applied, err := migrator.Up()
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	version, _, err := migrator.Version()
	if err != nil {
		return err
	}

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return r.writePlain("✓ Database ready at %s (schema %04d, %d applied)\n", config.Database.Path, version, len(applied))
}

// SetupConfig writes the embedded example configuration.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("output")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.writePlain("✓ Config written to %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Point [api] and [auth] at your backend, or set %s and %s\n", shared.EnvAPIURL, shared.EnvAuthURL)
	r.writePlain("2. Run 'fleetroute auth login --username <name>'\n")
	return nil
}
