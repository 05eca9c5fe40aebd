// Package feedback applies human-confirmed categories to the reference database.
package feedback

import (
	"context"

	"github.com/Veraticus/card-purpose/internal/model"
	"github.com/Veraticus/card-purpose/internal/refdb"
)

//go:generate mockgen -destination=mocks/mock_feedback.go -source=interface.go -package=mock_feedback

// ReferenceWriter is the reference database as seen by the feedback loop.
type ReferenceWriter interface {
	Snapshot() *refdb.Snapshot
	Upsert(ctx context.Context, entry model.ReferenceEntry) (model.ReferenceEntry, bool, error)
}

// AuditLog is the append-only record of processed feedback.
type AuditLog interface {
	Append(ctx context.Context, entry model.AuditEntry) (uint64, error)
	Count(ctx context.Context) (uint64, error)
}

// Notifier receives retrain signals. Notify must not block.
type Notifier interface {
	Notify(signal RetrainSignal)
}
