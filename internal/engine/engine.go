// Package engine orchestrates the staged classification pipeline.
package engine

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Veraticus/card-purpose/internal/metrics"
	"github.com/Veraticus/card-purpose/internal/model"
	"github.com/Veraticus/card-purpose/internal/normalize"
	"github.com/Veraticus/card-purpose/internal/refdb"
	"github.com/Veraticus/card-purpose/internal/rules"
)

// SnapshotSource provides the reference snapshot for a batch.
type SnapshotSource interface {
	Snapshot() *refdb.Snapshot
}

// Config holds configuration options for the classification engine.
type Config struct {
	ParallelWorkers int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ParallelWorkers: 4,
	}
}

// Engine runs the stages in order and validates the result with the rule engine.
type Engine struct {
	source  SnapshotSource
	rules   *rules.Engine
	logger  *slog.Logger
	metrics *metrics.Metrics
	stages  []Stage
	cfg     Config
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics records classification and batch metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates a classification engine with the given stages.
func New(source SnapshotSource, stages []Stage, ruleEngine *rules.Engine, cfg Config, opts ...Option) *Engine {
	if cfg.ParallelWorkers <= 0 {
		cfg.ParallelWorkers = DefaultConfig().ParallelWorkers
	}
	e := &Engine{
		source: source,
		stages: stages,
		rules:  ruleEngine,
		logger: slog.Default(),
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Classify returns exactly one result for txn. Stage failures are contained:
// the next stage is tried and, when every stage misses, the result is
// Unclassified with a rationale listing what went wrong.
func (e *Engine) Classify(ctx context.Context, txn model.Transaction, snap *refdb.Snapshot) model.ClassificationResult {
	if txn.MerchantKey == "" {
		txn.MerchantKey = normalize.Normalize(txn.RawMerchant)
	}

	var result model.ClassificationResult
	if normalize.IsUnknown(txn.MerchantKey) {
		result = model.NewUnclassified(txn.ID, txn.MerchantKey, "invalid input: merchant name is empty")
	} else {
		result = e.runStages(ctx, txn, snap)
	}

	if e.rules != nil {
		result = e.rules.Apply(result, txn)
	}

	e.metrics.ObserveClassification(string(result.Source))
	e.logger.Debug("Transaction classified",
		"transaction_id", txn.ID,
		"merchant_key", txn.MerchantKey,
		"category", result.Category,
		"confidence", result.Confidence,
		"source", result.Source)
	return result
}

func (e *Engine) runStages(ctx context.Context, txn model.Transaction, snap *refdb.Snapshot) model.ClassificationResult {
	var misses []string
	for _, stage := range e.stages {
		res, ok, err := stage.Classify(ctx, txn, snap)
		if err != nil {
			e.logger.Warn("Stage failed",
				"stage", stage.Name(),
				"transaction_id", txn.ID,
				"merchant_key", txn.MerchantKey,
				"error", err)
			misses = append(misses, err.Error())
			continue
		}
		if ok && res != nil {
			res.TransactionID = txn.ID
			res.MerchantKey = txn.MerchantKey
			return *res
		}
	}

	rationale := "no reference match"
	if len(misses) > 0 {
		rationale += "; " + strings.Join(misses, "; ")
	}
	return model.NewUnclassified(txn.ID, txn.MerchantKey, rationale)
}
