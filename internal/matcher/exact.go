// Package matcher implements the reference-database matching stages.
package matcher

import (
	"context"
	"fmt"

	"github.com/Veraticus/card-purpose/internal/model"
	"github.com/Veraticus/card-purpose/internal/normalize"
	"github.com/Veraticus/card-purpose/internal/refdb"
)

// Exact resolves merchant keys present verbatim in the reference database.
type Exact struct{}

// NewExact creates an exact matcher.
func NewExact() *Exact {
	return &Exact{}
}

// Name identifies the stage in logs and metrics.
func (e *Exact) Name() string {
	return "exact"
}

// Classify returns a result with confidence 1.0 on a hit. A miss is (nil, false, nil).
func (e *Exact) Classify(_ context.Context, txn model.Transaction, snap *refdb.Snapshot) (*model.ClassificationResult, bool, error) {
	if normalize.IsUnknown(txn.MerchantKey) {
		return nil, false, nil
	}

	entry, ok := snap.Lookup(txn.MerchantKey)
	if !ok {
		return nil, false, nil
	}

	return &model.ClassificationResult{
		TransactionID: txn.ID,
		MerchantKey:   txn.MerchantKey,
		Category:      entry.Category,
		Confidence:    1.0,
		Source:        model.SourceExactMatch,
		Rationale:     fmt.Sprintf("reference entry (%s)", entry.Provenance),
	}, true, nil
}
