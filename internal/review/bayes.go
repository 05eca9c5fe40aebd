package review

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jbrukh/bayesian"

	"github.com/Veraticus/card-purpose/internal/model"
	"github.com/Veraticus/card-purpose/internal/normalize"
	"github.com/Veraticus/card-purpose/internal/refdb"
)

// ErrTooFewClasses is returned when the reference data has fewer than two categories.
var ErrTooFewClasses = errors.New("bayes proposer needs at least two categories")

// BayesProposer proposes the most probable category under a naive Bayes model
// trained on the reference snapshot.
type BayesProposer struct {
	cl      *bayesian.Classifier
	classes []bayesian.Class
	vocab   map[string]struct{}
}

// NewBayesProposer trains a classifier on every entry in snap.
func NewBayesProposer(snap *refdb.Snapshot) (*BayesProposer, error) {
	if snap == nil {
		return nil, ErrTooFewClasses
	}
	categories := snap.Categories()
	if len(categories) < 2 {
		return nil, fmt.Errorf("%w: found %d", ErrTooFewClasses, len(categories))
	}

	classes := make([]bayesian.Class, 0, len(categories))
	for _, c := range categories {
		classes = append(classes, bayesian.Class(c))
	}

	cl := bayesian.NewClassifierTfIdf(classes...)
	vocab := make(map[string]struct{})
	snap.Each(func(e model.ReferenceEntry) bool {
		terms := normalize.Terms(e.Key)
		if len(terms) == 0 {
			return true
		}
		cl.Learn(terms, bayesian.Class(e.Category))
		for _, t := range terms {
			vocab[t] = struct{}{}
		}
		return true
	})
	cl.ConvertTermsFreqToTfIdf()

	return &BayesProposer{cl: cl, classes: classes, vocab: vocab}, nil
}

// Name implements Proposer.
func (p *BayesProposer) Name() string { return "bayes" }

// Propose implements Proposer. The confidence is the posterior of the best
// class. A key sharing no term with the reference data gets no proposal,
// since its score would be the class prior alone.
func (p *BayesProposer) Propose(_ context.Context, result model.ClassificationResult, txn model.Transaction) (*Proposal, error) {
	key := result.MerchantKey
	if key == "" {
		key = txn.MerchantKey
	}
	terms := p.knownTerms(normalize.Terms(key))
	if len(terms) == 0 {
		return nil, nil
	}

	scores, best, _ := p.cl.LogScores(terms)
	posterior := softmax(scores)
	if best < 0 || best >= len(posterior) {
		return nil, nil
	}

	category := string(p.classes[best])
	if category == result.Category {
		return nil, nil
	}
	return &Proposal{
		Category:   category,
		Confidence: posterior[best],
		Reviewer:   p.Name(),
		Rationale:  fmt.Sprintf("reference data favors %s (p=%.2f)", category, posterior[best]),
	}, nil
}

func (p *BayesProposer) knownTerms(terms []string) []string {
	known := terms[:0:0]
	for _, t := range terms {
		if _, ok := p.vocab[t]; ok {
			known = append(known, t)
		}
	}
	return known
}

func softmax(logScores []float64) []float64 {
	if len(logScores) == 0 {
		return nil
	}
	top := math.Inf(-1)
	for _, s := range logScores {
		top = max(top, s)
	}

	out := make([]float64, len(logScores))
	var sum float64
	for i, s := range logScores {
		out[i] = math.Exp(s - top)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
