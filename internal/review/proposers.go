package review

import (
	"context"
	"fmt"

	"github.com/Veraticus/card-purpose/internal/llm"
	"github.com/Veraticus/card-purpose/internal/model"
	"github.com/Veraticus/card-purpose/internal/rules"
)

// RuleProposer proposes the first keyword hint that differs from the result.
type RuleProposer struct {
	engine *rules.Engine
}

// NewRuleProposer wraps a rule engine.
func NewRuleProposer(engine *rules.Engine) *RuleProposer {
	return &RuleProposer{engine: engine}
}

// Name implements Proposer.
func (p *RuleProposer) Name() string { return "rules" }

// Propose implements Proposer.
func (p *RuleProposer) Propose(_ context.Context, result model.ClassificationResult, txn model.Transaction) (*Proposal, error) {
	hints := result.Hints
	if len(hints) == 0 {
		hints = p.engine.Hints(txn.RawMerchant, result.MerchantKey)
	}
	for _, h := range hints {
		if h == result.Category {
			continue
		}
		return &Proposal{
			Category:   h,
			Confidence: p.engine.OverrideConfidence(),
			Reviewer:   p.Name(),
			Rationale:  fmt.Sprintf("keyword rule suggests %s", h),
		}, nil
	}
	return nil, nil
}

// LLMProposer asks the AI service for a second opinion.
// Only MODIFY verdicts become proposals.
type LLMProposer struct {
	client      llm.Client
	system      string
	maxTokens   int
	temperature float64
	fallback    float64
}

// NewLLMProposer builds a proposer from a client and the taxonomy it may choose from.
func NewLLMProposer(client llm.Client, tax *model.Taxonomy, cfg llm.Config) *LLMProposer {
	return &LLMProposer{
		client:      client,
		system:      llm.BuildReviewSystemPrompt(tax),
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		fallback:    cfg.DefaultConfidence,
	}
}

// Name implements Proposer.
func (p *LLMProposer) Name() string { return "ai-review" }

// Propose implements Proposer.
func (p *LLMProposer) Propose(ctx context.Context, result model.ClassificationResult, txn model.Transaction) (*Proposal, error) {
	merchant := txn.RawMerchant
	if merchant == "" {
		merchant = result.MerchantKey
	}

	completion, err := p.client.Complete(ctx, llm.Prompt{
		System: p.system,
		User: llm.BuildReviewPrompt(llm.ReviewRequest{
			Date:        txn.Date,
			Amount:      txn.Amount,
			RawMerchant: merchant,
			Category:    result.Category,
			Source:      string(result.Source),
			Confidence:  result.Confidence,
		}),
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("review request failed: %w", err)
	}

	verdict, err := llm.ParseReview(completion.Text)
	if err != nil {
		return nil, err
	}
	if verdict.Verdict != llm.VerdictModify {
		return nil, nil
	}

	confidence := p.fallback
	if verdict.HasConfidence {
		confidence = min(max(verdict.Confidence, 0), 1)
	}
	return &Proposal{
		Category:   verdict.FinalCategory,
		Confidence: confidence,
		Reviewer:   p.Name(),
		Rationale:  verdict.Reason,
	}, nil
}
