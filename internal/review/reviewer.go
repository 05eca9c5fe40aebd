package review

import (
	"context"
	"log/slog"

	"github.com/Veraticus/card-purpose/internal/metrics"
	"github.com/Veraticus/card-purpose/internal/model"
)

// Proposer suggests an alternative category for a result in the middle band.
// A nil proposal with a nil error means no opinion.
type Proposer interface {
	Name() string
	Propose(ctx context.Context, result model.ClassificationResult, txn model.Transaction) (*Proposal, error)
}

// Reviewer runs proposers over a batch and settles every result with Decide.
type Reviewer struct {
	taxonomy   *model.Taxonomy
	logger     *slog.Logger
	metrics    *metrics.Metrics
	proposers  []Proposer
	thresholds Thresholds
}

// Option configures a Reviewer.
type Option func(*Reviewer)

// WithLogger sets the reviewer's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reviewer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics records review states.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reviewer) { r.metrics = m }
}

// NewReviewer creates a reviewer that consults proposers in order.
func NewReviewer(tax *model.Taxonomy, thresholds Thresholds, proposers []Proposer, opts ...Option) *Reviewer {
	r := &Reviewer{
		taxonomy:   tax,
		logger:     slog.Default(),
		proposers:  proposers,
		thresholds: thresholds,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Review returns one decision per result. txns is matched to results by index.
// Proposer failures are logged and never prevent a decision.
func (r *Reviewer) Review(ctx context.Context, results []model.ClassificationResult, txns []model.Transaction) []model.ReviewDecision {
	decisions := make([]model.ReviewDecision, len(results))
	counts := make(map[model.ReviewState]int)

	for i, res := range results {
		var txn model.Transaction
		if i < len(txns) {
			txn = txns[i]
		}

		var proposal *Proposal
		if NeedsProposal(res, r.thresholds) {
			proposal = r.bestProposal(ctx, res, txn)
		}

		d := Decide(res, proposal, r.thresholds)
		decisions[i] = d
		counts[d.State]++
		r.metrics.ObserveReview(string(d.State))
	}

	r.logger.Info("Review complete",
		"total", len(results),
		"auto_confirmed", counts[model.ReviewAutoConfirmed],
		"ai_revised", counts[model.ReviewAIRevised],
		"manual", counts[model.ReviewManualRequired])

	return decisions
}

// bestProposal asks every proposer and keeps the most confident differing answer.
// Earlier proposers win ties.
func (r *Reviewer) bestProposal(ctx context.Context, res model.ClassificationResult, txn model.Transaction) *Proposal {
	var best *Proposal
	for _, p := range r.proposers {
		if ctx.Err() != nil {
			break
		}

		proposal, err := p.Propose(ctx, res, txn)
		if err != nil {
			r.logger.Warn("Proposer failed",
				"proposer", p.Name(),
				"merchant_key", res.MerchantKey,
				"error", err)
			continue
		}
		if proposal == nil {
			continue
		}

		if r.taxonomy != nil {
			if canonical, ok := r.taxonomy.Canonical(proposal.Category); ok {
				proposal.Category = canonical
			} else {
				proposal.OutOfTaxonomy = true
			}
		}
		if proposal.OutOfTaxonomy {
			r.logger.Warn("Proposal outside taxonomy",
				"proposer", p.Name(),
				"category", proposal.Category)
			continue
		}
		if proposal.Category == res.Category {
			continue
		}
		if proposal.Reviewer == "" {
			proposal.Reviewer = p.Name()
		}

		if best == nil || proposal.Confidence > best.Confidence {
			best = proposal
		}
	}
	return best
}
