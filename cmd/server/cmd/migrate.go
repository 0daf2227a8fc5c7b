package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Togather-Foundation/rsvp/internal/config"
	"github.com/Togather-Foundation/rsvp/internal/jobs"
	"github.com/Togather-Foundation/rsvp/internal/storage/postgres"
	"github.com/Togather-Foundation/rsvp/internal/storage/sqlite"
	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database schema migrations",
		Long: `Manage the database schema for the configured driver.

The serve command applies pending migrations on start, so these commands are
only needed to prepare a database ahead of time or to roll back.

Examples:
  # Apply all pending migrations
  server migrate up

  # Roll back the most recent migration
  server migrate down --steps 1`,
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadDatabaseConfig()
			if err != nil {
				return err
			}
			if err := migrateUp(cmd.Context(), cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", cfg.Database.Driver)
			return nil
		},
	}

	var steps int
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps <= 0 {
				return fmt.Errorf("--steps must be positive")
			}
			cfg, err := loadDatabaseConfig()
			if err != nil {
				return err
			}
			if err := migrateDown(cfg, steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d %s migration(s)\n", steps, cfg.Database.Driver)
			return nil
		},
	}
	downCmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	migrateCmd.AddCommand(upCmd, downCmd)
	return migrateCmd
}

// loadDatabaseConfig reads configuration without requiring the auth settings
// that only the HTTP server needs.
func loadDatabaseConfig() (config.Config, error) {
	cfg, err := config.ReadFile(configPath)
	if err != nil {
		return config.Config{}, err
	}
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		if cfg.Database.URL == "" {
			return config.Config{}, fmt.Errorf("DATABASE_URL is required")
		}
	case config.DriverSQLite:
		if cfg.Database.Path == "" {
			return config.Config{}, fmt.Errorf("DATABASE_PATH is required for the sqlite driver")
		}
	default:
		return config.Config{}, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.Database.Driver)
	}
	return cfg, nil
}

func migrateUp(ctx context.Context, cfg config.Config) error {
	if cfg.Database.Driver == config.DriverSQLite {
		return sqlite.MigrateUp(cfg.Database.Path)
	}

	if err := postgres.MigrateUp(cfg.Database.URL); err != nil {
		return err
	}
	if !cfg.Jobs.Enabled {
		return nil
	}

	// River keeps its own tables alongside ours.
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	pool, err := postgres.OpenPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer pool.Close()
	return jobs.Migrate(ctx, pool)
}

func migrateDown(cfg config.Config, steps int) error {
	if cfg.Database.Driver == config.DriverSQLite {
		return sqlite.MigrateDown(cfg.Database.Path, steps)
	}
	return postgres.MigrateDown(cfg.Database.URL, steps)
}
