// Package review routes classification results to a terminal review state.
package review

import (
	"fmt"
	"slices"

	"github.com/Veraticus/card-purpose/internal/model"
)

// Thresholds holds the confidence bands used by Decide.
type Thresholds struct {
	ForceReviewCategories []string // Never auto-confirmed regardless of confidence
	High                  float64
	Low                   float64
}

// DefaultThresholds returns the default review bands.
func DefaultThresholds() Thresholds {
	return Thresholds{
		High:                  0.90,
		Low:                   0.50,
		ForceReviewCategories: []string{"기타"},
	}
}

// Proposal is an alternative category suggested by a Proposer.
type Proposal struct {
	Category      string
	Reviewer      string
	Rationale     string
	Confidence    float64
	OutOfTaxonomy bool
}

type band int

const (
	bandManual band = iota
	bandAuto
	bandMiddle
)

func classify(r model.ClassificationResult, t Thresholds) (band, string) {
	switch {
	case r.IsUnclassified():
		return bandManual, "no category could be assigned"
	case r.OutOfTaxonomy:
		return bandManual, fmt.Sprintf("category %q is not in the taxonomy", r.Category)
	case !(r.Confidence >= t.Low):
		return bandManual, fmt.Sprintf("confidence %.2f below %.2f", r.Confidence, t.Low)
	}

	if r.Confidence >= t.High && eligible(r) && !slices.Contains(t.ForceReviewCategories, r.Category) {
		return bandAuto, ""
	}
	return bandMiddle, ""
}

func eligible(r model.ClassificationResult) bool {
	switch r.Source {
	case model.SourceExactMatch, model.SourceFuzzyMatch:
		return true
	}
	return r.IsCorroborated()
}

// NeedsProposal reports whether Decide would consult a proposal for r.
func NeedsProposal(r model.ClassificationResult, t Thresholds) bool {
	b, _ := classify(r, t)
	return b == bandMiddle
}

// Decide maps a result and an optional proposal to exactly one terminal state.
// It has no side effects.
func Decide(r model.ClassificationResult, p *Proposal, t Thresholds) model.ReviewDecision {
	d := model.ReviewDecision{Result: r}

	b, reason := classify(r, t)
	switch b {
	case bandManual:
		d.State = model.ReviewManualRequired
		d.Rationale = reason
		return d
	case bandAuto:
		d.State = model.ReviewAutoConfirmed
		d.Rationale = fmt.Sprintf("%s at %.2f", r.Source, r.Confidence)
		return d
	}

	if p != nil && !p.OutOfTaxonomy && p.Category != "" && p.Category != r.Category && p.Confidence > r.Confidence {
		d.State = model.ReviewAIRevised
		d.RevisedCategory = p.Category
		d.RevisedConfidence = p.Confidence
		d.Reviewer = p.Reviewer
		d.Rationale = p.Rationale
		if d.Rationale == "" {
			d.Rationale = fmt.Sprintf("%s proposed %s over %s", p.Reviewer, p.Category, r.Category)
		}
		return d
	}

	d.State = model.ReviewManualRequired
	switch {
	case slices.Contains(t.ForceReviewCategories, r.Category):
		d.Rationale = fmt.Sprintf("category %s always requires review", r.Category)
	case r.Confidence >= t.High:
		d.Rationale = fmt.Sprintf("source %s cannot be auto-confirmed", r.Source)
	default:
		d.Rationale = fmt.Sprintf("confidence %.2f between %.2f and %.2f with no better proposal", r.Confidence, t.Low, t.High)
	}
	return d
}
