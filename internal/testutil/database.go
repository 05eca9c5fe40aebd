// Package testutil provides test fixtures backed by real storage.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/card-purpose/internal/auditlog"
	"github.com/Veraticus/card-purpose/internal/model"
	"github.com/Veraticus/card-purpose/internal/refdb"
	"github.com/Veraticus/card-purpose/internal/storage"
)

// TestDB is an in-memory reference database with its SQLite store.
type TestDB struct {
	Storage *storage.SQLiteStorage
	Refs    *refdb.Database
	t       *testing.T
}

// TestDBOptions provides configuration options for test database setup.
type TestDBOptions struct {
	Clock   func() time.Time
	Entries []model.ReferenceEntry
}

// SetupTestDB creates a migrated in-memory database seeded with entries.
// Cleanup is registered on t.
//
// Example:
//
//	db := testutil.SetupTestDB(t, testutil.FixtureEntries()...)
//	snap := db.Refs.Snapshot()
func SetupTestDB(t *testing.T, entries ...model.ReferenceEntry) *TestDB {
	t.Helper()
	return SetupTestDBWithOptions(t, TestDBOptions{Entries: entries})
}

// SetupTestDBWithOptions creates a test database with custom options.
func SetupTestDBWithOptions(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	var dbOpts []refdb.Option
	if opts.Clock != nil {
		dbOpts = append(dbOpts, refdb.WithClock(opts.Clock))
	}
	refs, err := refdb.Load(ctx, store, dbOpts...)
	if err != nil {
		t.Fatalf("failed to load reference database: %v", err)
	}
	if err := refs.Import(ctx, opts.Entries); err != nil {
		t.Fatalf("failed to seed reference entries: %v", err)
	}

	return &TestDB{Storage: store, Refs: refs, t: t}
}

// MustLookup returns the current entry for key or fails the test.
func (db *TestDB) MustLookup(key string) model.ReferenceEntry {
	db.t.Helper()
	entry, ok := db.Refs.Snapshot().Lookup(key)
	if !ok {
		db.t.Fatalf("reference entry %q not found", key)
	}
	return entry
}

// SetupAuditLog opens a bolt audit log in a temporary directory.
func SetupAuditLog(t *testing.T) *auditlog.Log {
	t.Helper()

	log, err := auditlog.Open(filepath.Join(t.TempDir(), "feedback.db"))
	if err != nil {
		t.Fatalf("failed to open audit log: %v", err)
	}
	t.Cleanup(func() {
		_ = log.Close()
	})
	return log
}
