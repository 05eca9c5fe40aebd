package review

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/card-purpose/internal/model"
)

func result(category string, source model.LabelSource, rule model.RuleOutcome, confidence float64) model.ClassificationResult {
	return model.ClassificationResult{
		TransactionID: "t1",
		MerchantKey:   "KEY",
		Category:      category,
		Source:        source,
		Rule:          rule,
		Confidence:    confidence,
	}
}

func TestDecide(t *testing.T) {
	better := &Proposal{Category: "소모품비", Confidence: 0.8, Reviewer: "rules", Rationale: "keyword rule suggests 소모품비"}

	tests := []struct {
		name     string
		proposal *Proposal
		want     model.ReviewState
		revised  string
		result   model.ClassificationResult
	}{
		{
			name:   "exact corroborated",
			result: result("중식대", model.SourceExactMatch.WithRule(), model.RuleCorroborated, 1.0),
			want:   model.ReviewAutoConfirmed,
		},
		{
			name:   "exact without rule",
			result: result("중식대", model.SourceExactMatch, model.RuleNone, 1.0),
			want:   model.ReviewAutoConfirmed,
		},
		{
			name:   "fuzzy at high threshold",
			result: result("중식대", model.SourceFuzzyMatch, model.RuleNone, 0.90),
			want:   model.ReviewAutoConfirmed,
		},
		{
			name:   "ai corroborated",
			result: result("중식대", model.SourceAIPrediction.WithRule(), model.RuleCorroborated, 0.95),
			want:   model.ReviewAutoConfirmed,
		},
		{
			name:   "ai alone is never auto confirmed",
			result: result("중식대", model.SourceAIPrediction, model.RuleNone, 0.97),
			want:   model.ReviewManualRequired,
		},
		{
			name:   "rule override is not corroboration",
			result: result("중식대", model.SourceAIPrediction.WithRule(), model.RuleOverridden, 0.95),
			want:   model.ReviewManualRequired,
		},
		{
			name:   "forced category",
			result: result("기타", model.SourceExactMatch, model.RuleNone, 1.0),
			want:   model.ReviewManualRequired,
		},
		{
			name:   "unclassified",
			result: model.NewUnclassified("t1", "KEY", "no reference match"),
			want:   model.ReviewManualRequired,
		},
		{
			name:     "unclassified ignores proposal",
			result:   model.NewUnclassified("t1", "KEY", "no reference match"),
			proposal: better,
			want:     model.ReviewManualRequired,
		},
		{
			name: "out of taxonomy",
			result: func() model.ClassificationResult {
				r := result("회식비", model.SourceAIPrediction, model.RuleNone, 0.95)
				r.OutOfTaxonomy = true
				return r
			}(),
			proposal: better,
			want:     model.ReviewManualRequired,
		},
		{
			name:     "below low",
			result:   result("기타", model.SourceAIPrediction, model.RuleNone, 0.35),
			proposal: better,
			want:     model.ReviewManualRequired,
		},
		{
			name:   "NaN confidence",
			result: result("중식대", model.SourceFuzzyMatch, model.RuleNone, math.NaN()),
			want:   model.ReviewManualRequired,
		},
		{
			name:     "middle band with better proposal",
			result:   result("중식대", model.SourceAIPrediction, model.RuleNone, 0.6),
			proposal: better,
			want:     model.ReviewAIRevised,
			revised:  "소모품비",
		},
		{
			name:     "forced category revised",
			result:   result("기타", model.SourceAIPrediction, model.RuleNone, 0.7),
			proposal: better,
			want:     model.ReviewAIRevised,
			revised:  "소모품비",
		},
		{
			name:     "proposal not more confident",
			result:   result("중식대", model.SourceAIPrediction, model.RuleNone, 0.8),
			proposal: better,
			want:     model.ReviewManualRequired,
		},
		{
			name:     "proposal agrees",
			result:   result("소모품비", model.SourceAIPrediction, model.RuleNone, 0.6),
			proposal: better,
			want:     model.ReviewManualRequired,
		},
		{
			name:     "proposal outside taxonomy",
			result:   result("중식대", model.SourceAIPrediction, model.RuleNone, 0.6),
			proposal: &Proposal{Category: "회식비", Confidence: 0.9, OutOfTaxonomy: true},
			want:     model.ReviewManualRequired,
		},
		{
			name:   "middle band without proposal",
			result: result("중식대", model.SourceFuzzyMatch, model.RuleNone, 0.87),
			want:   model.ReviewManualRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.result, tt.proposal, DefaultThresholds())
			assert.Equal(t, tt.want, d.State)
			assert.True(t, d.State.IsTerminal())
			assert.NotEmpty(t, d.Rationale)
			assert.Equal(t, tt.revised, d.RevisedCategory)

			// Same input, same decision.
			assert.Equal(t, d, Decide(tt.result, tt.proposal, DefaultThresholds()))
		})
	}
}

func TestDecide_RevisedFinalCategory(t *testing.T) {
	r := result("중식대", model.SourceAIPrediction, model.RuleNone, 0.6)
	d := Decide(r, &Proposal{Category: "소모품비", Confidence: 0.8, Reviewer: "bayes"}, DefaultThresholds())

	assert.Equal(t, "소모품비", d.FinalCategory())
	assert.InDelta(t, 0.8, d.FinalConfidence(), 1e-9)
	assert.Equal(t, "bayes", d.Reviewer)
	assert.Equal(t, "중식대", d.Result.Category)
	assert.Contains(t, d.Rationale, "bayes proposed 소모품비")
}

func TestDecide_TotalOverGrid(t *testing.T) {
	sources := []struct {
		source model.LabelSource
		rule   model.RuleOutcome
	}{
		{model.SourceExactMatch, model.RuleNone},
		{model.SourceExactMatch.WithRule(), model.RuleCorroborated},
		{model.SourceFuzzyMatch, model.RuleNone},
		{model.SourceFuzzyMatch.WithRule(), model.RuleCorroborated},
		{model.SourceFuzzyMatch.WithRule(), model.RuleOverridden},
		{model.SourceAIPrediction, model.RuleNone},
		{model.SourceAIPrediction.WithRule(), model.RuleCorroborated},
		{model.SourceAIPrediction.WithRule(), model.RuleOverridden},
		{model.SourceNone, model.RuleNone},
	}
	categories := []string{"중식대", "기타", model.UnclassifiedCategory}
	proposals := []*Proposal{nil, {Category: "소모품비", Confidence: 0.85}}

	th := DefaultThresholds()
	for _, s := range sources {
		for _, c := range categories {
			for conf := 0.0; conf <= 1.0; conf += 0.05 {
				for _, p := range proposals {
					d := Decide(result(c, s.source, s.rule, conf), p, th)
					assert.True(t, d.State.IsTerminal(), "%s/%s/%.2f", s.source, c, conf)
					if d.State == model.ReviewAutoConfirmed {
						assert.GreaterOrEqual(t, conf, th.High)
						assert.NotEqual(t, "기타", c)
					}
					if d.State == model.ReviewAIRevised {
						assert.Less(t, conf, 0.85)
						assert.GreaterOrEqual(t, conf, th.Low)
					}
				}
			}
		}
	}
}

func TestNeedsProposal(t *testing.T) {
	th := DefaultThresholds()
	assert.True(t, NeedsProposal(result("중식대", model.SourceAIPrediction, model.RuleNone, 0.7), th))
	assert.True(t, NeedsProposal(result("중식대", model.SourceAIPrediction, model.RuleNone, 0.95), th))
	assert.False(t, NeedsProposal(result("중식대", model.SourceExactMatch, model.RuleNone, 1.0), th))
	assert.False(t, NeedsProposal(result("중식대", model.SourceAIPrediction, model.RuleNone, 0.3), th))
	assert.False(t, NeedsProposal(model.NewUnclassified("t1", "KEY", ""), th))
}
