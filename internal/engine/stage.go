package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Veraticus/card-purpose/internal/llm"
	"github.com/Veraticus/card-purpose/internal/model"
	"github.com/Veraticus/card-purpose/internal/refdb"
)

// Stage is one step of the resolution pipeline. A miss is (nil, false, nil).
type Stage interface {
	Name() string
	Classify(ctx context.Context, txn model.Transaction, snap *refdb.Snapshot) (*model.ClassificationResult, bool, error)
}

// Predictor is the AI boundary used by AIStage.
type Predictor interface {
	Predict(ctx context.Context, req llm.PredictionRequest) llm.Outcome
}

// ErrPredictionUnavailable is returned by AIStage when the predictor had no answer.
var ErrPredictionUnavailable = errors.New("ai prediction unavailable")

// AIStage adapts a Predictor to the Stage interface.
type AIStage struct {
	predictor Predictor
	strategy  llm.Strategy
	examples  []llm.Example
	snap      *refdb.Snapshot // snapshot the examples were drawn from
	count     int
	seed      uint64
	mu        sync.Mutex
}

// NewAIStage creates the prediction stage. Few-shot examples are drawn once per
// snapshot.
func NewAIStage(predictor Predictor, fewShot int, strategy llm.Strategy) *AIStage {
	return &AIStage{
		predictor: predictor,
		strategy:  strategy,
		count:     fewShot,
		seed:      1,
	}
}

// Name identifies the stage in logs and metrics.
func (s *AIStage) Name() string {
	return "ai"
}

// Classify asks the predictor. When no prediction is available the returned
// error wraps ErrPredictionUnavailable with the reason.
func (s *AIStage) Classify(ctx context.Context, txn model.Transaction, snap *refdb.Snapshot) (*model.ClassificationResult, bool, error) {
	examples, err := s.examplesFor(snap)
	if err != nil {
		return nil, false, err
	}

	outcome := s.predictor.Predict(ctx, llm.PredictionRequest{
		Key:         txn.MerchantKey,
		RawMerchant: txn.RawMerchant,
		Date:        txn.Date,
		Amount:      txn.Amount,
		Examples:    examples,
	})
	if !outcome.Available() {
		return nil, false, fmt.Errorf("%w: %s", ErrPredictionUnavailable, outcome.Reason())
	}

	return &model.ClassificationResult{
		TransactionID: txn.ID,
		MerchantKey:   txn.MerchantKey,
		Category:      outcome.Category,
		Confidence:    outcome.Confidence,
		Source:        model.SourceAIPrediction,
		Rationale:     outcome.Reasoning,
		OutOfTaxonomy: outcome.OutOfTaxonomy,
	}, true, nil
}

func (s *AIStage) examplesFor(snap *refdb.Snapshot) ([]llm.Example, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap == snap && s.snap != nil {
		return s.examples, nil
	}
	examples, err := llm.SelectExamples(snap, s.count, s.strategy, s.seed)
	if err != nil {
		return nil, fmt.Errorf("failed to select few-shot examples: %w", err)
	}
	s.snap, s.examples = snap, examples
	return examples, nil
}
