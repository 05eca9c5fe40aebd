// Package service defines the persistence contracts shared by the core packages.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/card-purpose/internal/model"
)

// ReferenceStore persists the merchant reference mapping.
type ReferenceStore interface {
	LoadReferenceEntries(ctx context.Context) ([]model.ReferenceEntry, error)
	UpsertReferenceEntry(ctx context.Context, entry model.ReferenceEntry) error
	UpsertReferenceEntries(ctx context.Context, entries []model.ReferenceEntry) error
	CountReferenceEntries(ctx context.Context) (int, error)
}

// AuditLog is the append-only feedback log.
type AuditLog interface {
	Append(ctx context.Context, entry model.AuditEntry) (uint64, error)
	Count(ctx context.Context) (uint64, error)
	List(ctx context.Context, fromSequence uint64, limit int) ([]model.AuditEntry, error)
}

// RetryOptions configures retry behavior.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
