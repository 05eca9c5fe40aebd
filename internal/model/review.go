package model

// ReviewState is the state of the final review for one result.
type ReviewState string

// Review states. Pending is initial; the rest are terminal.
const (
	ReviewPending        ReviewState = "Pending"
	ReviewAutoConfirmed  ReviewState = "AutoConfirmed"
	ReviewAIRevised      ReviewState = "AIRevised"
	ReviewManualRequired ReviewState = "ManualReviewRequired"
)

// IsTerminal reports whether no further automated transition is possible.
func (s ReviewState) IsTerminal() bool {
	return s == ReviewAutoConfirmed || s == ReviewAIRevised || s == ReviewManualRequired
}

// ReviewDecision wraps a classification with the reviewer's outcome.
type ReviewDecision struct {
	State             ReviewState
	RevisedCategory   string
	Reviewer          string
	Rationale         string
	Result            ClassificationResult
	RevisedConfidence float64
}

// FinalCategory returns the category the decision settles on.
func (d ReviewDecision) FinalCategory() string {
	if d.State == ReviewAIRevised && d.RevisedCategory != "" {
		return d.RevisedCategory
	}
	return d.Result.Category
}

// FinalConfidence returns the confidence attached to FinalCategory.
func (d ReviewDecision) FinalConfidence() float64 {
	if d.State == ReviewAIRevised && d.RevisedCategory != "" {
		return d.RevisedConfidence
	}
	return d.Result.Confidence
}
