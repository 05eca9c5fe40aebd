package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/card-purpose/internal/common"
)

func TestParsePrediction(t *testing.T) {
	tests := []struct {
		name           string
		text           string
		wantCategory   string
		wantReasoning  string
		wantConfidence float64
		wantHasConf    bool
	}{
		{
			name: "xml",
			text: `<prediction>
  <category>중식대</category>
  <confidence>0.92</confidence>
  <reasoning>식당 키워드</reasoning>
</prediction>`,
			wantCategory:   "중식대",
			wantConfidence: 0.92,
			wantHasConf:    true,
			wantReasoning:  "식당 키워드",
		},
		{
			name:           "xml with surrounding prose",
			text:           "분석 결과입니다.\n<prediction><category>세금</category><confidence>0.8</confidence><reasoning>지방세</reasoning></prediction>\n감사합니다.",
			wantCategory:   "세금",
			wantConfidence: 0.8,
			wantHasConf:    true,
			wantReasoning:  "지방세",
		},
		{
			name:           "json in markdown fence",
			text:           "```json\n{\"category\": \"사용료\", \"confidence\": 0.77, \"reasoning\": \"cloud\"}\n```",
			wantCategory:   "사용료",
			wantConfidence: 0.77,
			wantHasConf:    true,
			wantReasoning:  "cloud",
		},
		{
			name:           "json with string confidence",
			text:           `{"category": "수수료", "confidence": "65%"}`,
			wantCategory:   "수수료",
			wantConfidence: 0.65,
			wantHasConf:    true,
		},
		{
			name:           "broken xml falls back to tags",
			text:           `<prediction><category>기타</category><confidence>0.4</confidence><reasoning>A & B</reasoning>`,
			wantCategory:   "기타",
			wantConfidence: 0.4,
			wantHasConf:    true,
			wantReasoning:  "A & B",
		},
		{
			name:         "missing confidence",
			text:         `<prediction><category>소모품비</category></prediction>`,
			wantCategory: "소모품비",
		},
		{
			name:         "unparseable confidence",
			text:         `<prediction><category>소모품비</category><confidence>high</confidence></prediction>`,
			wantCategory: "소모품비",
		},
		{
			name:           "out of range confidence is passed through",
			text:           `<prediction><category>세금</category><confidence>1.4</confidence></prediction>`,
			wantCategory:   "세금",
			wantConfidence: 1.4,
			wantHasConf:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePrediction(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCategory, got.Category)
			assert.Equal(t, tt.wantHasConf, got.HasConfidence)
			assert.InDelta(t, tt.wantConfidence, got.Confidence, 1e-9)
			assert.Equal(t, tt.wantReasoning, got.Reasoning)
		})
	}
}

func TestParsePrediction_Malformed(t *testing.T) {
	for _, text := range []string{
		"",
		"I cannot classify this merchant.",
		`<prediction><category></category><confidence>0.9</confidence></prediction>`,
		`{"confidence": 0.9}`,
	} {
		_, err := ParsePrediction(text)
		assert.ErrorIs(t, err, common.ErrMalformedResponse, "text %q", text)
	}
}

func TestParseReview(t *testing.T) {
	r, err := ParseReview(`<review>
  <decision>MODIFY</decision>
  <final_category>복리후생비(의료)</final_category>
  <final_confidence>0.85</final_confidence>
  <reason>약국 결제</reason>
</review>`)
	require.NoError(t, err)
	assert.Equal(t, VerdictModify, r.Verdict)
	assert.Equal(t, "복리후생비(의료)", r.FinalCategory)
	assert.InDelta(t, 0.85, r.Confidence, 1e-9)
	assert.True(t, r.HasConfidence)
	assert.Equal(t, "약국 결제", r.Reason)

	r, err = ParseReview("<review><decision>confirm</decision><reason>ok</reason></review>")
	require.NoError(t, err)
	assert.Equal(t, VerdictConfirm, r.Verdict)
	assert.False(t, r.HasConfidence)

	_, err = ParseReview("<review><decision>MAYBE</decision></review>")
	assert.ErrorIs(t, err, common.ErrMalformedResponse)

	_, err = ParseReview("<review><decision>MODIFY</decision></review>")
	assert.ErrorIs(t, err, common.ErrMalformedResponse)
}
