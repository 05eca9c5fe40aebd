package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/card-purpose/internal/model"
)

// LoadReferenceEntries returns every reference entry ordered by key.
func (s *SQLiteStorage) LoadReferenceEntries(ctx context.Context) ([]model.ReferenceEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT key, category, provenance, updated_at
		FROM reference_entries
		ORDER BY key
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query reference entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.ReferenceEntry
	for rows.Next() {
		var entry model.ReferenceEntry
		var provenance string
		if err := rows.Scan(&entry.Key, &entry.Category, &provenance, &entry.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reference entry: %w", err)
		}
		entry.Provenance = model.Provenance(provenance)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reference entries: %w", err)
	}

	return entries, nil
}

// GetReferenceEntry returns the entry for key, or common.ErrNotFound.
func (s *SQLiteStorage) GetReferenceEntry(ctx context.Context, key string) (*model.ReferenceEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(key, "key"); err != nil {
		return nil, err
	}

	var entry model.ReferenceEntry
	var provenance string
	err := s.db.QueryRowContext(ctx, `
		SELECT key, category, provenance, updated_at
		FROM reference_entries
		WHERE key = ?
	`, key).Scan(&entry.Key, &entry.Category, &provenance, &entry.UpdatedAt)
	if err != nil {
		return nil, notFoundOr(err, "failed to get reference entry")
	}
	entry.Provenance = model.Provenance(provenance)

	return &entry, nil
}

// UpsertReferenceEntry inserts or replaces the entry for its key.
func (s *SQLiteStorage) UpsertReferenceEntry(ctx context.Context, entry model.ReferenceEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateEntry(entry); err != nil {
		return err
	}
	return s.upsertReferenceEntryTx(ctx, s.db, entry)
}

// UpsertReferenceEntries writes all entries in a single transaction.
func (s *SQLiteStorage) UpsertReferenceEntries(ctx context.Context, entries []model.ReferenceEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	for i, entry := range entries {
		if err := validateEntry(entry); err != nil {
			return fmt.Errorf("entry at index %d: %w", i, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, entry := range entries {
		if err := s.upsertReferenceEntryTx(ctx, tx, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reference entries: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) upsertReferenceEntryTx(ctx context.Context, q queryable, entry model.ReferenceEntry) error {
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now()
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO reference_entries (key, category, provenance, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			category = excluded.category,
			provenance = excluded.provenance,
			updated_at = excluded.updated_at
	`, entry.Key, entry.Category, string(entry.Provenance), entry.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert reference entry %q: %w", entry.Key, err)
	}
	return nil
}

// CountReferenceEntries returns the number of stored entries.
func (s *SQLiteStorage) CountReferenceEntries(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reference_entries`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count reference entries: %w", err)
	}
	return count, nil
}

// ReferenceStats summarizes stored entries by provenance and category.
type ReferenceStats struct {
	ByProvenance map[model.Provenance]int
	ByCategory   map[string]int
	Total        int
}

// GetReferenceStats aggregates the reference table.
func (s *SQLiteStorage) GetReferenceStats(ctx context.Context) (*ReferenceStats, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	stats := &ReferenceStats{
		ByProvenance: make(map[model.Provenance]int),
		ByCategory:   make(map[string]int),
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT category, provenance, COUNT(*)
		FROM reference_entries
		GROUP BY category, provenance
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate reference entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var category, provenance string
		var count int
		if err := rows.Scan(&category, &provenance, &count); err != nil {
			return nil, fmt.Errorf("failed to scan reference stats: %w", err)
		}
		stats.ByCategory[category] += count
		stats.ByProvenance[model.Provenance(provenance)] += count
		stats.Total += count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reference stats: %w", err)
	}
	return stats, nil
}
