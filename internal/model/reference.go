package model

import "time"

// Provenance indicates how a reference entry was created.
type Provenance string

const (
	// ProvenanceManual marks entries seeded from a curated master list.
	ProvenanceManual Provenance = "manual"
	// ProvenanceFeedback marks entries written by the feedback loop.
	ProvenanceFeedback Provenance = "feedback"
)

// ReferenceEntry maps a normalized merchant key to a known category.
type ReferenceEntry struct {
	UpdatedAt  time.Time
	Key        string
	Category   string
	Provenance Provenance
}
