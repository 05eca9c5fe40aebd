package review

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/card-purpose/internal/common"
	"github.com/Veraticus/card-purpose/internal/llm"
	"github.com/Veraticus/card-purpose/internal/model"
	"github.com/Veraticus/card-purpose/internal/normalize"
	"github.com/Veraticus/card-purpose/internal/refdb"
	"github.com/Veraticus/card-purpose/internal/rules"
)

type clientFunc func(ctx context.Context, p llm.Prompt) (llm.Completion, error)

func (f clientFunc) Complete(ctx context.Context, p llm.Prompt) (llm.Completion, error) {
	return f(ctx, p)
}

func replyWith(text string) clientFunc {
	return func(context.Context, llm.Prompt) (llm.Completion, error) {
		return llm.Completion{Text: text}, nil
	}
}

func TestRuleProposer(t *testing.T) {
	p := NewRuleProposer(rules.New(rules.DefaultRuleset(), rules.DefaultConfig(), nil))
	txn := model.Transaction{RawMerchant: "김밥천국", MerchantKey: normalize.Normalize("김밥천국")}

	got, err := p.Propose(context.Background(), result("기타", model.SourceAIPrediction, model.RuleNone, 0.6), txn)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "중식대", got.Category)
	assert.InDelta(t, 0.8, got.Confidence, 1e-9)
	assert.Equal(t, "rules", got.Reviewer)

	got, err = p.Propose(context.Background(), result("중식대", model.SourceAIPrediction, model.RuleNone, 0.6), txn)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRuleProposer_UsesResultHints(t *testing.T) {
	p := NewRuleProposer(rules.New(rules.DefaultRuleset(), rules.DefaultConfig(), nil))
	r := result("차량유지비(주유)", model.SourceAIPrediction, model.RuleNone, 0.6)
	r.Hints = []string{"차량유지비(주유)", "차량유지비(기타)"}

	got, err := p.Propose(context.Background(), r, model.Transaction{})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "차량유지비(기타)", got.Category)
}

func TestLLMProposer(t *testing.T) {
	tax := rules.DefaultRuleset().Taxonomy()
	txn := model.Transaction{RawMerchant: "다이소 안산점"}
	r := result("중식대", model.SourceAIPrediction, model.RuleNone, 0.6)

	tests := []struct {
		name     string
		client   llm.Client
		want     *Proposal
		wantErr  error
		anyError bool
	}{
		{
			name: "modify",
			client: replyWith(`<review><decision>MODIFY</decision><final_category>소모품비</final_category>` +
				`<final_confidence>0.85</final_confidence><reason>생활용품 매장</reason></review>`),
			want: &Proposal{Category: "소모품비", Confidence: 0.85, Reviewer: "ai-review", Rationale: "생활용품 매장"},
		},
		{
			name:   "modify without confidence uses default",
			client: replyWith(`<decision>modify</decision><final_category>소모품비</final_category>`),
			want:   &Proposal{Category: "소모품비", Confidence: 0.5, Reviewer: "ai-review"},
		},
		{
			name:   "confirm",
			client: replyWith(`<decision>CONFIRM</decision><final_category>중식대</final_category>`),
		},
		{
			name:   "review",
			client: replyWith(`<decision>REVIEW</decision><reason>불명확</reason>`),
		},
		{
			name:    "malformed",
			client:  replyWith("잘 모르겠습니다"),
			wantErr: common.ErrMalformedResponse,
		},
		{
			name: "client error",
			client: clientFunc(func(context.Context, llm.Prompt) (llm.Completion, error) {
				return llm.Completion{}, errors.New("connection reset")
			}),
			anyError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewLLMProposer(tt.client, tax, llm.DefaultConfig())
			got, err := p.Propose(context.Background(), r, txn)
			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			case tt.anyError:
				require.Error(t, err)
			default:
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLLMProposer_Prompt(t *testing.T) {
	var seen llm.Prompt
	client := clientFunc(func(_ context.Context, p llm.Prompt) (llm.Completion, error) {
		seen = p
		return llm.Completion{Text: "<decision>CONFIRM</decision>"}, nil
	})

	p := NewLLMProposer(client, rules.DefaultRuleset().Taxonomy(), llm.DefaultConfig())
	_, err := p.Propose(context.Background(),
		result("중식대", model.SourceFuzzyMatch, model.RuleNone, 0.87),
		model.Transaction{RawMerchant: "스타벅스 강남역점"})
	require.NoError(t, err)

	assert.Contains(t, seen.System, "CONFIRM|MODIFY|REVIEW")
	assert.Contains(t, seen.System, "소모품비")
	assert.Contains(t, seen.User, "<merchant>스타벅스 강남역점</merchant>")
	assert.Contains(t, seen.User, "<confidence>0.87</confidence>")
	assert.Contains(t, seen.User, "<source>FuzzyMatch</source>")
	assert.Equal(t, 1000, seen.MaxTokens)
}

func bayesSnapshot() *refdb.Snapshot {
	return refdb.NewSnapshot([]model.ReferenceEntry{
		{Key: "스타벅스 강남역", Category: "중식대"},
		{Key: "스타벅스 역삼", Category: "중식대"},
		{Key: "김밥천국 선릉", Category: "중식대"},
		{Key: "GS칼텍스 역삼", Category: "차량유지비(주유)"},
		{Key: "SK에너지 강남", Category: "차량유지비(주유)"},
		{Key: "다이소 안산", Category: "소모품비"},
	})
}

func TestBayesProposer(t *testing.T) {
	p, err := NewBayesProposer(bayesSnapshot())
	require.NoError(t, err)

	r := result("기타", model.SourceAIPrediction, model.RuleNone, 0.55)
	r.MerchantKey = "스타벅스 선릉"

	got, err := p.Propose(context.Background(), r, model.Transaction{})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "중식대", got.Category)
	assert.Greater(t, got.Confidence, 0.9)
	assert.LessOrEqual(t, got.Confidence, 1.0)
	assert.Equal(t, "bayes", got.Reviewer)

	r.Category = "중식대"
	got, err = p.Propose(context.Background(), r, model.Transaction{})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestBayesProposer_UnseenKeyAbstains(t *testing.T) {
	entries := make([]model.ReferenceEntry, 0, 20)
	for i := range 16 {
		entries = append(entries, model.ReferenceEntry{Key: fmt.Sprintf("식당%02d", i), Category: "중식대"})
	}
	entries = append(entries,
		model.ReferenceEntry{Key: "GS칼텍스 역삼", Category: "차량유지비(주유)"},
		model.ReferenceEntry{Key: "다이소 안산", Category: "소모품비"},
		model.ReferenceEntry{Key: "우체국 강남", Category: "수수료"},
		model.ReferenceEntry{Key: "은행 선릉", Category: "수수료"},
	)
	p, err := NewBayesProposer(refdb.NewSnapshot(entries))
	require.NoError(t, err)

	r := result("수수료", model.SourceAIPrediction, model.RuleNone, 0.65)
	r.MerchantKey = "ZZZ 무명상회"

	got, err := p.Propose(context.Background(), r, model.Transaction{})
	require.NoError(t, err)
	assert.Nil(t, got)

	reviewed := Decide(r, got, DefaultThresholds())
	assert.Equal(t, model.ReviewManualRequired, reviewed.State)
}

func TestBayesProposer_TooFewClasses(t *testing.T) {
	_, err := NewBayesProposer(refdb.NewSnapshot([]model.ReferenceEntry{
		{Key: "와와식당", Category: "중식대"},
		{Key: "김밥천국", Category: "중식대"},
	}))
	require.ErrorIs(t, err, ErrTooFewClasses)

	_, err = NewBayesProposer(nil)
	require.ErrorIs(t, err, ErrTooFewClasses)
}

func TestSoftmax(t *testing.T) {
	got := softmax([]float64{-1000, -1000})
	assert.InDelta(t, 0.5, got[0], 1e-9)
	assert.InDelta(t, 0.5, got[1], 1e-9)
	assert.Nil(t, softmax(nil))
}
