package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabelSource_WithRule(t *testing.T) {
	tests := []struct {
		name     string
		source   LabelSource
		expected LabelSource
	}{
		{"exact", SourceExactMatch, "ExactMatch+Rule"},
		{"fuzzy", SourceFuzzyMatch, "FuzzyMatch+Rule"},
		{"ai", SourceAIPrediction, "AIPrediction+Rule"},
		{"already tagged", "AIPrediction+Rule", "AIPrediction+Rule"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.source.WithRule()
			assert.Equal(t, tt.expected, got)
			assert.True(t, got.HasRule())
			assert.Equal(t, tt.source.Base(), got.Base())
		})
	}
}

func TestNewUnclassified(t *testing.T) {
	r := NewUnclassified("tx1", "unknown", "empty merchant")
	assert.Equal(t, UnclassifiedCategory, r.Category)
	assert.Equal(t, SourceNone, r.Source)
	assert.Zero(t, r.Confidence)
	assert.True(t, r.IsUnclassified())
	assert.False(t, r.IsCorroborated())
}

func TestReviewDecision_Final(t *testing.T) {
	result := ClassificationResult{Category: "기타", Confidence: 0.6}

	revised := ReviewDecision{State: ReviewAIRevised, Result: result, RevisedCategory: "중식대", RevisedConfidence: 0.8}
	assert.Equal(t, "중식대", revised.FinalCategory())
	assert.InDelta(t, 0.8, revised.FinalConfidence(), 1e-9)

	manual := ReviewDecision{State: ReviewManualRequired, Result: result}
	assert.Equal(t, "기타", manual.FinalCategory())
	assert.True(t, manual.State.IsTerminal())
	assert.False(t, ReviewPending.IsTerminal())
}

func TestTaxonomy(t *testing.T) {
	tax := NewTaxonomy([]Category{
		{Name: "중식대"},
		{Name: " 사용료 "},
		{Name: "중식대", Description: "duplicate"},
		{Name: ""},
	})

	assert.Equal(t, []string{"중식대", "사용료"}, tax.Names())
	assert.True(t, tax.Contains("사용료"))
	assert.False(t, tax.Contains("여비교통비"))

	c, ok := tax.Lookup("중식대")
	assert.True(t, ok)
	assert.Empty(t, c.Description)

	var nilTax *Taxonomy
	assert.False(t, nilTax.Contains("중식대"))
	assert.Zero(t, nilTax.Len())
}

func TestTaxonomy_Canonical(t *testing.T) {
	tax := NewTaxonomy([]Category{{Name: "Software"}, {Name: "중식대"}})

	name, ok := tax.Canonical(" software ")
	assert.True(t, ok)
	assert.Equal(t, "Software", name)

	_, ok = tax.Canonical("hardware")
	assert.False(t, ok)
}
