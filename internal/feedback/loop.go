package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/card-purpose/internal/common"
	"github.com/Veraticus/card-purpose/internal/metrics"
	"github.com/Veraticus/card-purpose/internal/model"
	"github.com/Veraticus/card-purpose/internal/normalize"
)

// Config holds feedback loop settings.
type Config struct {
	BatchSize uint64 // A retrain signal fires every BatchSize records
}

// DefaultConfig returns the default feedback settings.
func DefaultConfig() Config {
	return Config{BatchSize: 50}
}

// RetrainSignal recommends revisiting thresholds and weights. It is advisory.
type RetrainSignal struct {
	At      time.Time
	Counter uint64
}

// ApplySummary reports what one Apply call did.
type ApplySummary struct {
	Signals   []RetrainSignal
	Skipped   []string // Reasons for records that could not be applied
	Warnings  []error  // Applied records worth a second look, e.g. common.ErrTaxonomyMismatch
	Inserted  int
	Updated   int
	Unchanged int
}

// Applied returns the number of records written to the audit log.
func (s ApplySummary) Applied() int {
	return s.Inserted + s.Updated + s.Unchanged
}

// Loop is the single writer for feedback.
type Loop struct {
	refs     ReferenceWriter
	audit    AuditLog
	notifier Notifier
	taxonomy *model.Taxonomy
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	counter  uint64
	cfg      Config
	mu       sync.Mutex
}

// Option configures a Loop.
type Option func(*Loop)

// WithNotifier sets where retrain signals go.
func WithNotifier(n Notifier) Option {
	return func(l *Loop) { l.notifier = n }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMetrics records feedback outcomes and retrain signals.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loop) { l.metrics = m }
}

// WithTaxonomy enables warnings for confirmed categories outside the taxonomy.
func WithTaxonomy(tax *model.Taxonomy) Option {
	return func(l *Loop) { l.taxonomy = tax }
}

// NewLoop creates a feedback loop. The cumulative counter starts at the
// number of records already in the audit log.
func NewLoop(ctx context.Context, refs ReferenceWriter, audit AuditLog, cfg Config, opts ...Option) (*Loop, error) {
	if refs == nil || audit == nil {
		return nil, fmt.Errorf("%w: feedback loop needs a reference database and an audit log", common.ErrMissingConfig)
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}

	l := &Loop{
		refs:   refs,
		audit:  audit,
		logger: slog.Default(),
		now:    time.Now,
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(l)
	}

	count, err := audit.Count(ctx)
	if err != nil {
		return nil, common.PersistenceError("count audit entries", err)
	}
	l.counter = count
	return l, nil
}

// Counter returns the cumulative number of applied records.
func (l *Loop) Counter() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counter
}

// errSkip marks a record that cannot be applied; it is reported, not returned.
var errSkip = errors.New("skipped")

// Apply processes records in order. A persistence failure stops the run and
// is returned together with the summary of what was applied before it.
func (l *Loop) Apply(ctx context.Context, records []model.FeedbackRecord) (ApplySummary, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var summary ApplySummary
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		outcome, signal, warning, err := l.applyOne(ctx, rec)
		if errors.Is(err, errSkip) {
			summary.Skipped = append(summary.Skipped, fmt.Sprintf("record %d: %v", i+1, err))
			continue
		}
		if err != nil {
			l.logger.Error("Feedback persistence failed",
				"record", i+1,
				"applied", summary.Applied(),
				"error", err)
			return summary, err
		}

		switch outcome {
		case model.FeedbackInserted:
			summary.Inserted++
		case model.FeedbackUpdated:
			summary.Updated++
		default:
			summary.Unchanged++
		}
		if signal != nil {
			summary.Signals = append(summary.Signals, *signal)
		}
		if warning != nil {
			summary.Warnings = append(summary.Warnings, fmt.Errorf("record %d: %w", i+1, warning))
		}
	}

	l.logger.Info("Feedback applied",
		"inserted", summary.Inserted,
		"updated", summary.Updated,
		"unchanged", summary.Unchanged,
		"skipped", len(summary.Skipped),
		"counter", l.counter)
	return summary, nil
}

func (l *Loop) applyOne(ctx context.Context, rec model.FeedbackRecord) (model.FeedbackOutcome, *RetrainSignal, error, error) {
	rec.ConfirmedCategory = strings.TrimSpace(rec.ConfirmedCategory)
	if rec.ConfirmedCategory == "" {
		return "", nil, nil, fmt.Errorf("%w: no confirmed category", errSkip)
	}
	if rec.MerchantKey == "" {
		rec.MerchantKey = normalize.Normalize(rec.RawMerchant)
	}
	if normalize.IsUnknown(rec.MerchantKey) {
		return "", nil, nil, fmt.Errorf("%w: empty merchant name", errSkip)
	}
	var warning error
	if l.taxonomy != nil && !l.taxonomy.Contains(rec.ConfirmedCategory) {
		warning = fmt.Errorf("%w: %s confirmed as %q", common.ErrTaxonomyMismatch, rec.MerchantKey, rec.ConfirmedCategory)
		l.logger.Warn("Confirmed category outside taxonomy",
			"merchant_key", rec.MerchantKey,
			"category", rec.ConfirmedCategory)
	}

	now := l.now()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = now
	}

	outcome := model.FeedbackUnchanged
	current, exists := l.refs.Snapshot().Lookup(rec.MerchantKey)
	switch {
	case !exists:
		outcome = model.FeedbackInserted
	case current.Category != rec.ConfirmedCategory:
		outcome = model.FeedbackUpdated
	}

	if outcome != model.FeedbackUnchanged {
		_, _, err := l.refs.Upsert(ctx, model.ReferenceEntry{
			Key:        rec.MerchantKey,
			Category:   rec.ConfirmedCategory,
			Provenance: model.ProvenanceFeedback,
			UpdatedAt:  now,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", nil, nil, ctxErr
			}
			if !errors.Is(err, common.ErrPersistence) {
				err = common.PersistenceError("upsert reference entry", err)
			}
			return "", nil, nil, err
		}
	}

	// The reference change is committed; its audit entry must follow even if
	// the run is canceled now.
	commitCtx := context.WithoutCancel(ctx)

	next := l.counter + 1
	entry := model.AuditEntry{
		Record:          rec,
		Outcome:         outcome,
		Counter:         next,
		RetrainSignaled: next%l.cfg.BatchSize == 0,
	}
	if _, err := l.audit.Append(commitCtx, entry); err != nil {
		return "", nil, nil, common.PersistenceError("append audit entry", err)
	}
	l.counter = next
	l.metrics.ObserveFeedback(string(outcome))

	l.logger.Debug("Feedback recorded",
		"merchant_key", rec.MerchantKey,
		"category", rec.ConfirmedCategory,
		"outcome", outcome,
		"counter", next)

	if !entry.RetrainSignaled {
		return outcome, nil, warning, nil
	}

	signal := RetrainSignal{Counter: next, At: now}
	l.metrics.ObserveRetrainSignal()
	l.logger.Info("Retrain threshold reached", "counter", next)
	if l.notifier != nil {
		l.notifier.Notify(signal)
	}
	return outcome, &signal, warning, nil
}
