package main

import (
	"context"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/prism/internal/shared"
)

// SetupDatabase creates the config file from the template when missing, then initializes the database and runs
// migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err := shared.LoadConfig(configPath); err == nil {
				r.config = config
			}
		}
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return r.writePlain("✓ Database ready at %s\n", r.config.Database.Path)
}

// SetupConfig writes the embedded template to --config, or prints the effective configuration with --show.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("show") {
		config := *r.config
		if config.Credentials.YouTube.ClientSecret != "" {
			config.Credentials.YouTube.ClientSecret = "********"
		}
		if config.Credentials.Gemini.APIKey != "" {
			config.Credentials.Gemini.APIKey = "********"
		}
		return toml.NewEncoder(r.output).Encode(config)
	}

	if err := shared.CreateConfigFile(r.configPath); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}
	r.logger.Info("config file created", "path", r.configPath)
	r.writePlain("✓ Config written to %s\n", r.configPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set credentials.youtube.client_secrets_file (or client_id and client_secret)\n")
	r.writePlain("2. Export GEMINI_API_KEY to enable genre classification\n")
	r.writePlain("3. Run 'prism auth login'\n")
	return nil
}

// SetupMigrations lists the embedded migrations and whether each is applied.
func (r *Runner) SetupMigrations(ctx context.Context, cmd *cli.Command) error {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	statuses, err := shared.MigrationStatuses(db)
	if err != nil {
		return err
	}
	for _, s := range statuses {
		mark := "✗"
		if s.Applied {
			mark = "✓"
		}
		r.writePlain("%s %04d %s\n", mark, s.Version, s.Name)
	}
	return nil
}
