package main

import (
	"fmt"
	"log/slog"

	"github.com/Veraticus/remitos/internal/common"
	"github.com/Veraticus/remitos/internal/storage"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.

classify and budget migrate automatically; this command is useful to
prepare a database ahead of time or to check its schema version.`,
		RunE: runMigrate,
	}

	cmd.Flags().Bool("status", false, "Show current migration status without applying changes")

	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	status, _ := cmd.Flags().GetBool("status")

	settings, err := loadSettings()
	if err != nil {
		return common.NewUserError("Invalid configuration", err)
	}

	slog.Info("Starting database migration", "database", settings.Database, "status_only", status)

	store, err := storage.NewSQLiteStorage(settings.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer closeWithLog("database", store)

	if status {
		version, err := store.SchemaVersion(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Schema version %d (latest %d)\n", version, storage.ExpectedSchemaVersion)
		return nil
	}

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Database is up to date")
	return nil
}
