package matcher

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// EditSimilarity is 1 - levenshtein(a, b) / max(len(a), len(b)) over runes.
func EditSimilarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// NGrams returns the set of rune n-grams in s. Strings shorter than n yield
// themselves as the only gram.
func NGrams(s string, n int) map[string]struct{} {
	runes := []rune(s)
	if n <= 0 || len(runes) < n {
		return map[string]struct{}{s: {}}
	}
	grams := make(map[string]struct{}, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		grams[string(runes[i:i+n])] = struct{}{}
	}
	return grams
}

// Jaccard is |a ∩ b| / |a ∪ b|.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for g := range small {
		if _, ok := large[g]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
