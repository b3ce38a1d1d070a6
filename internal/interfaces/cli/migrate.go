package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nadlantech/appraisal-engine/internal/infrastructure/database/postgres"
)

// newMigrateCmd creates the schema migration command group.
func newMigrateCmd(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}

	cmd.AddCommand(
		newMigrateUpCmd(opts),
		newMigrateDownCmd(opts),
		newMigrateVersionCmd(opts),
	)
	return cmd
}

// migrationTarget resolves the database URL and migration source from config.
func migrationTarget(opts *RootOptions) (dbURL, sourceURL string, err error) {
	cfg, _, err := loadConfig(opts)
	if err != nil {
		return "", "", err
	}
	path := cfg.Database.MigrationPath
	if path == "" {
		path = "migrations"
	}
	return postgres.BuildDSN(cfg.Database), "file://" + path, nil
}

func newMigrateUpCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbURL, sourceURL, err := migrationTarget(opts)
			if err != nil {
				return err
			}
			if err := postgres.RunMigrations(dbURL, sourceURL); err != nil {
				return err
			}
			cmd.Println("migrations applied")
			return nil
		},
	}
}

func newMigrateDownCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "down [steps]",
		Short: "Roll the schema back by N steps (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("invalid step count %q: expected a positive integer", args[0])
				}
				steps = n
			}

			dbURL, sourceURL, err := migrationTarget(opts)
			if err != nil {
				return err
			}
			if err := postgres.RollbackMigration(dbURL, sourceURL, steps); err != nil {
				return err
			}
			cmd.Printf("rolled back %d migration(s)\n", steps)
			return nil
		},
	}
}

func newMigrateVersionCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbURL, sourceURL, err := migrationTarget(opts)
			if err != nil {
				return err
			}
			version, dirty, err := postgres.MigrationVersion(dbURL, sourceURL)
			if err != nil {
				return err
			}
			if dirty {
				cmd.Printf("version %d (dirty)\n", version)
			} else {
				cmd.Printf("version %d\n", version)
			}
			return nil
		},
	}
}
