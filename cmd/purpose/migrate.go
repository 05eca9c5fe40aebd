package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/card-purpose/internal/cli"
	"github.com/Veraticus/card-purpose/internal/storage"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the reference database schema to the latest version.

Other commands migrate automatically; this is useful for checking the schema
version of an existing database.`,
		RunE: runMigrate,
	}
	cmd.Flags().Bool("status", false, "show the schema version without applying changes")
	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	status, _ := cmd.Flags().GetBool("status")
	path := appCfg.Database.Path

	if status {
		store, err := storage.NewSQLiteStorage(path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer closeQuietly("database", store)

		version, err := store.SchemaVersion(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s schema version %d (%s)\n", cli.ChartIcon, version, store.Path())
		return nil
	}

	slog.Info("Running database migrations", "database", path)
	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer closeQuietly("database", store)

	version, err := store.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Database migrated to version %d", version)))
	return nil
}
