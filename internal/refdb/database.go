package refdb

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Veraticus/card-purpose/internal/common"
	"github.com/Veraticus/card-purpose/internal/model"
	"github.com/Veraticus/card-purpose/internal/service"
)

// Database is the shared reference database. Readers take snapshots; writes go
// through a single writer and are persisted before they become visible.
type Database struct {
	store   service.ReferenceStore
	current atomic.Pointer[Snapshot]
	logger  *slog.Logger
	now     func() time.Time
	writeMu sync.Mutex
}

// Option configures a Database.
type Option func(*Database)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Database) { d.logger = logger }
}

// WithClock overrides the timestamp source used for writes.
func WithClock(now func() time.Time) Option {
	return func(d *Database) { d.now = now }
}

// Load reads all persisted entries and returns a ready Database.
func Load(ctx context.Context, store service.ReferenceStore, opts ...Option) (*Database, error) {
	d := &Database{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}

	entries, err := store.LoadReferenceEntries(ctx)
	if err != nil {
		return nil, common.PersistenceError("load reference entries", err)
	}
	d.current.Store(NewSnapshot(entries))

	d.logger.Info("Loaded reference database", "entries", len(entries))
	return d, nil
}

// Snapshot returns the current immutable view.
func (d *Database) Snapshot() *Snapshot {
	return d.current.Load()
}

// Upsert persists entry and publishes a new snapshot. A zero UpdatedAt is
// replaced with the database clock. The returned bool reports whether the key
// already existed.
func (d *Database) Upsert(ctx context.Context, entry model.ReferenceEntry) (model.ReferenceEntry, bool, error) {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = d.now()
	}

	snap := d.current.Load()
	previous, existed := snap.Lookup(entry.Key)

	if err := d.store.UpsertReferenceEntry(ctx, entry); err != nil {
		return entry, existed, common.PersistenceError("upsert reference entry", err)
	}

	if existed && previous.Category != entry.Category {
		d.logger.Debug("Reference entry overwritten",
			"key", entry.Key,
			"previous", previous.Category,
			"category", entry.Category,
			"provenance", entry.Provenance)
	}

	d.current.Store(snap.with(entry))
	return entry, existed, nil
}

// Import writes many entries in one persisted batch and publishes them together.
func (d *Database) Import(ctx context.Context, entries []model.ReferenceEntry) error {
	if len(entries) == 0 {
		return nil
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	stamped := make([]model.ReferenceEntry, len(entries))
	now := d.now()
	for i, e := range entries {
		if e.UpdatedAt.IsZero() {
			e.UpdatedAt = now
		}
		stamped[i] = e
	}

	if err := d.store.UpsertReferenceEntries(ctx, stamped); err != nil {
		return common.PersistenceError("import reference entries", err)
	}

	snap := d.current.Load().withAll(stamped)
	d.current.Store(snap)

	d.logger.Info("Imported reference entries", "count", len(stamped), "total", snap.Len())
	return nil
}
