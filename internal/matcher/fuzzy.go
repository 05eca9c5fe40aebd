package matcher

import (
	"context"
	"fmt"

	"github.com/Veraticus/card-purpose/internal/model"
	"github.com/Veraticus/card-purpose/internal/normalize"
	"github.com/Veraticus/card-purpose/internal/refdb"
)

// FuzzyConfig tunes the similarity blend.
type FuzzyConfig struct {
	Threshold     float64 // Minimum blended score for a match
	EditWeight    float64 // Share of the edit-distance signal; the n-gram signal gets the rest
	MaxConfidence float64 // Upper bound on a fuzzy score, keeps it below an exact match
	NGramSize     int
}

// DefaultFuzzyConfig returns the default matcher settings.
func DefaultFuzzyConfig() FuzzyConfig {
	return FuzzyConfig{
		Threshold:     0.85,
		EditWeight:    0.5,
		NGramSize:     3,
		MaxConfidence: 0.99,
	}
}

// Validate reports configuration that would make scoring meaningless.
func (c FuzzyConfig) Validate() error {
	switch {
	case c.Threshold <= 0 || c.Threshold > 1:
		return fmt.Errorf("fuzzy threshold must be in (0, 1], got %v", c.Threshold)
	case c.EditWeight < 0 || c.EditWeight > 1:
		return fmt.Errorf("fuzzy edit weight must be in [0, 1], got %v", c.EditWeight)
	case c.MaxConfidence <= 0 || c.MaxConfidence >= 1:
		return fmt.Errorf("fuzzy max confidence must be in (0, 1), got %v", c.MaxConfidence)
	case c.NGramSize < 1:
		return fmt.Errorf("fuzzy n-gram size must be positive, got %d", c.NGramSize)
	}
	return nil
}

// Fuzzy scores the key against every reference key and keeps the best.
type Fuzzy struct {
	cfg FuzzyConfig
}

// NewFuzzy creates a fuzzy matcher.
func NewFuzzy(cfg FuzzyConfig) (*Fuzzy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Fuzzy{cfg: cfg}, nil
}

// Name identifies the stage in logs and metrics.
func (f *Fuzzy) Name() string {
	return "fuzzy"
}

// Score blends edit similarity and n-gram overlap into [0, MaxConfidence].
func (f *Fuzzy) Score(a, b string) float64 {
	return f.score(a, NGrams(a, f.cfg.NGramSize), b)
}

func (f *Fuzzy) score(a string, aGrams map[string]struct{}, b string) float64 {
	edit := EditSimilarity(a, b)
	overlap := Jaccard(aGrams, NGrams(b, f.cfg.NGramSize))
	s := f.cfg.EditWeight*edit + (1-f.cfg.EditWeight)*overlap
	return min(max(s, 0), f.cfg.MaxConfidence)
}

// Candidate is the best reference entry found for a key.
type Candidate struct {
	Entry model.ReferenceEntry
	Score float64
}

// Best returns the highest scoring entry. Ties prefer the most recently
// updated entry, then the smallest key.
func (f *Fuzzy) Best(ctx context.Context, key string, snap *refdb.Snapshot) (Candidate, bool, error) {
	var best Candidate
	found := false
	keyGrams := NGrams(key, f.cfg.NGramSize)

	var ctxErr error
	i := 0
	snap.Each(func(e model.ReferenceEntry) bool {
		i++
		if i%512 == 0 {
			if ctxErr = ctx.Err(); ctxErr != nil {
				return false
			}
		}

		s := f.score(key, keyGrams, e.Key)
		if !found || better(s, e, best) {
			best = Candidate{Entry: e, Score: s}
			found = true
		}
		return true
	})
	if ctxErr != nil {
		return Candidate{}, false, ctxErr
	}
	return best, found, nil
}

func better(score float64, e model.ReferenceEntry, cur Candidate) bool {
	if score != cur.Score {
		return score > cur.Score
	}
	if !e.UpdatedAt.Equal(cur.Entry.UpdatedAt) {
		return e.UpdatedAt.After(cur.Entry.UpdatedAt)
	}
	return e.Key < cur.Entry.Key
}

// Classify returns the best entry's category when its score clears the threshold.
func (f *Fuzzy) Classify(ctx context.Context, txn model.Transaction, snap *refdb.Snapshot) (*model.ClassificationResult, bool, error) {
	if normalize.IsUnknown(txn.MerchantKey) || snap.Len() == 0 {
		return nil, false, nil
	}

	best, found, err := f.Best(ctx, txn.MerchantKey, snap)
	if err != nil {
		return nil, false, err
	}
	if !found || best.Score < f.cfg.Threshold {
		return nil, false, nil
	}

	return &model.ClassificationResult{
		TransactionID: txn.ID,
		MerchantKey:   txn.MerchantKey,
		Category:      best.Entry.Category,
		Confidence:    best.Score,
		Source:        model.SourceFuzzyMatch,
		Rationale:     fmt.Sprintf("similar to %q (score %.3f)", best.Entry.Key, best.Score),
	}, true, nil
}
