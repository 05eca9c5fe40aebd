package llm

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/Veraticus/card-purpose/internal/model"
	"github.com/Veraticus/card-purpose/internal/refdb"
)

// Strategy selects how few-shot examples are drawn from the reference data.
type Strategy string

// Few-shot strategies.
const (
	StrategyDiverse Strategy = "diverse" // round-robin across categories
	StrategyRandom  Strategy = "random"
)

// ErrUnknownStrategy is returned for an unrecognized few-shot strategy.
var ErrUnknownStrategy = errors.New("unknown few-shot strategy")

// ParseStrategy validates a configured strategy name. Empty means diverse.
func ParseStrategy(name string) (Strategy, error) {
	switch s := Strategy(strings.ToLower(strings.TrimSpace(name))); s {
	case "":
		return StrategyDiverse, nil
	case StrategyDiverse, StrategyRandom:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// Example is one labeled merchant shown to the model.
type Example struct {
	Merchant string
	Category string
}

// SelectExamples draws up to n examples from snap. The diverse strategy is
// deterministic for a given snapshot; random is deterministic for a given seed.
func SelectExamples(snap *refdb.Snapshot, n int, strategy Strategy, seed uint64) ([]Example, error) {
	if n <= 0 {
		n = 5
	}
	if snap.Len() == 0 {
		return nil, nil
	}

	parsed, err := ParseStrategy(string(strategy))
	if err != nil {
		return nil, err
	}
	if parsed == StrategyRandom {
		return selectRandom(snap, n, seed), nil
	}
	return selectDiverse(snap, n), nil
}

func selectDiverse(snap *refdb.Snapshot, n int) []Example {
	categories := snap.Categories()
	byCategory := make(map[string][]model.ReferenceEntry, len(categories))
	snap.Each(func(e model.ReferenceEntry) bool {
		byCategory[e.Category] = append(byCategory[e.Category], e)
		return true
	})

	examples := make([]Example, 0, n)
	for round := 0; len(examples) < n; round++ {
		added := false
		for _, c := range categories {
			entries := byCategory[c]
			if round >= len(entries) {
				continue
			}
			examples = append(examples, Example{Merchant: entries[round].Key, Category: c})
			added = true
			if len(examples) == n {
				return examples
			}
		}
		if !added {
			break
		}
	}
	return examples
}

func selectRandom(snap *refdb.Snapshot, n int, seed uint64) []Example {
	entries := snap.Entries()
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // sampling, not security
	r.Shuffle(len(entries), func(i, j int) { entries[i], entries[j] = entries[j], entries[i] })

	if n > len(entries) {
		n = len(entries)
	}
	examples := make([]Example, n)
	for i := range examples {
		examples[i] = Example{Merchant: entries[i].Key, Category: entries[i].Category}
	}
	return examples
}
