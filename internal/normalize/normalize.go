// Package normalize turns raw merchant names into canonical matching keys.
package normalize

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// UnknownKey is returned for input that normalizes to nothing.
const UnknownKey = "unknown"

var (
	branchSuffix   = regexp.MustCompile(`\([^)]*점\)`)
	corporateMark  = regexp.MustCompile(`\(주\)\s*`)
	parenthesised  = regexp.MustCompile(`\([^)]*\)`)
	corporateWord  = regexp.MustCompile(`^주식회사\s+|\s+주식회사$`)
	whitespace     = regexp.MustCompile(`\s+`)
	specialChars   = regexp.MustCompile(`[^\p{L}\p{N}\s_\-]`)
	defaultRuleset = New(DefaultSynonyms())
)

// DefaultSynonyms returns the built-in spelling unification table.
func DefaultSynonyms() map[string]string {
	return map[string]string{
		"써브웨이":   "서브웨이",
		"오일 뱅크":  "오일뱅크",
		"GS 칼텍스": "GS칼텍스",
		"에스케이":   "SK",
		"에스오일":   "S-OIL",
	}
}

type synonym struct {
	from string
	to   string
}

// Normalizer produces canonical merchant keys. It is safe for concurrent use.
type Normalizer struct {
	synonyms []synonym
}

// New creates a Normalizer with the given synonym table.
func New(synonyms map[string]string) *Normalizer {
	list := make([]synonym, 0, len(synonyms))
	for from, to := range synonyms {
		if from == "" {
			continue
		}
		list = append(list, synonym{from: upper(from), to: upper(to)})
	}
	// Longest first so overlapping entries resolve the same way every run.
	sort.Slice(list, func(i, j int) bool {
		if len(list[i].from) != len(list[j].from) {
			return len(list[i].from) > len(list[j].from)
		}
		return list[i].from < list[j].from
	})

	return &Normalizer{synonyms: list}
}

// Normalize returns the canonical key for raw using the default synonym table.
func Normalize(raw string) string {
	return defaultRuleset.Normalize(raw)
}

// Normalize returns the canonical key for raw. It never fails; empty results
// become UnknownKey.
func (n *Normalizer) Normalize(raw string) string {
	text := norm.NFKC.String(raw)
	text = strings.TrimSpace(text)
	if text == "" {
		return UnknownKey
	}

	text = branchSuffix.ReplaceAllString(text, "")
	text = corporateMark.ReplaceAllString(text, "")
	text = parenthesised.ReplaceAllString(text, "")
	text = collapse(text)
	text = corporateWord.ReplaceAllString(text, "")
	text = specialChars.ReplaceAllString(text, "")
	text = upper(collapse(text))

	for _, s := range n.synonyms {
		text = strings.ReplaceAll(text, s.from, s.to)
	}

	text = collapse(text)
	if text == "" {
		return UnknownKey
	}
	return text
}

// IsUnknown reports whether key is the sentinel for unusable input.
func IsUnknown(key string) bool {
	return key == UnknownKey
}

// Terms splits a key into whole words plus rune bigrams of each word.
func Terms(key string) []string {
	words := strings.Fields(strings.ToLower(key))
	terms := make([]string, 0, len(words)*3)
	for _, w := range words {
		terms = append(terms, w)
		runes := []rune(w)
		for i := 0; i+1 < len(runes); i++ {
			terms = append(terms, string(runes[i:i+2]))
		}
	}
	return terms
}

// upper builds a new Caser per call because a Caser is not safe for concurrent use.
func upper(s string) string {
	return cases.Upper(language.Und).String(s)
}

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
