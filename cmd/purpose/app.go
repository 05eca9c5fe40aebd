package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/card-purpose/internal/auditlog"
	"github.com/Veraticus/card-purpose/internal/common"
	"github.com/Veraticus/card-purpose/internal/config"
	"github.com/Veraticus/card-purpose/internal/refdb"
	"github.com/Veraticus/card-purpose/internal/rules"
	"github.com/Veraticus/card-purpose/internal/storage"
)

// openStorage opens the reference database and brings its schema up to date.
func openStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	path := appCfg.Database.Path
	if err := config.EnsureParentDir(path); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		return nil, common.NewUserError("could not open the reference database at "+path, err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// openReferences loads the in-memory reference snapshot from store.
func openReferences(ctx context.Context, store *storage.SQLiteStorage) (*refdb.Database, error) {
	refs, err := refdb.Load(ctx, store, refdb.WithLogger(slog.Default()))
	if err != nil {
		return nil, fmt.Errorf("failed to load reference data: %w", err)
	}
	return refs, nil
}

func openAuditLog() (*auditlog.Log, error) {
	path := appCfg.Audit.Path
	if err := config.EnsureParentDir(path); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	log, err := auditlog.Open(path)
	if err != nil {
		return nil, common.NewUserError("could not open the feedback audit log at "+path, err)
	}
	return log, nil
}

// loadRuleset returns the configured ruleset, or the built-in one when no
// path is set. override wins over configuration.
func loadRuleset(override string) (*rules.Ruleset, error) {
	path := appCfg.Rules.Path
	if override != "" {
		path = config.ExpandPath(override)
	}
	if path == "" {
		return rules.DefaultRuleset(), nil
	}
	rs, err := rules.LoadRuleset(path)
	if err != nil {
		return nil, common.NewUserError("could not load rules from "+path, err)
	}
	return rs, nil
}

func closeQuietly(name string, closer interface{ Close() error }) {
	if err := closer.Close(); err != nil {
		common.LogError(err, "Failed to close resource", common.Fields{"resource": name})
	}
}
