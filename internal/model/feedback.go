package model

import "time"

// FeedbackRecord is a human-confirmed category for a classified transaction.
type FeedbackRecord struct {
	ReceivedAt         time.Time
	ID                 string
	TransactionID      string
	MerchantKey        string
	RawMerchant        string
	OriginalCategory   string
	ConfirmedCategory  string
	OriginalSource     LabelSource
	OriginalConfidence float64
}

// FeedbackOutcome records what applying a feedback record did to the reference data.
type FeedbackOutcome string

// Feedback outcome constants.
const (
	FeedbackInserted  FeedbackOutcome = "inserted"
	FeedbackUpdated   FeedbackOutcome = "updated"
	FeedbackUnchanged FeedbackOutcome = "unchanged"
)

// AuditEntry is one immutable row of the feedback audit log.
type AuditEntry struct {
	Record          FeedbackRecord
	Outcome         FeedbackOutcome
	Sequence        uint64
	Counter         uint64
	RetrainSignaled bool
}
