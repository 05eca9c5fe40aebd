package rules

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/Veraticus/card-purpose/internal/model"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

// Ruleset errors.
var (
	ErrNoCategories    = errors.New("ruleset defines no categories")
	ErrUnknownCategory = errors.New("rule references unknown category")
	ErrEmptyAmountRule = errors.New("amount rule needs min or max")
)

// PriorityRule maps a keyword to a category ahead of all category keywords.
type PriorityRule struct {
	Keyword  string `yaml:"keyword"`
	Category string `yaml:"category"`
}

// AmountRule assigns a category when the amount falls in range and the
// merchant contains one of the markers.
type AmountRule struct {
	Min        *float64 `yaml:"min"`
	Max        *float64 `yaml:"max"`
	Category   string   `yaml:"category"`
	Contains   []string `yaml:"contains"`
	Confidence float64  `yaml:"confidence"`
}

// Matches reports whether the rule fires for the merchant text and amount.
func (r AmountRule) Matches(merchant string, amount decimal.Decimal) bool {
	if !amount.IsPositive() {
		return false
	}
	if r.Min != nil && amount.LessThan(decimal.NewFromFloat(*r.Min)) {
		return false
	}
	if r.Max != nil && amount.GreaterThan(decimal.NewFromFloat(*r.Max)) {
		return false
	}
	for _, marker := range r.Contains {
		if marker != "" && strings.Contains(merchant, marker) {
			return true
		}
	}
	return false
}

// Ruleset is the taxonomy together with its keyword and amount rules.
type Ruleset struct {
	Synonyms    map[string]string `yaml:"synonyms"`
	Priority    []PriorityRule    `yaml:"priority"`
	Categories  []model.Category  `yaml:"categories"`
	AmountRules []AmountRule      `yaml:"amount_rules"`
}

// DefaultRuleset returns the built-in taxonomy and rules.
func DefaultRuleset() *Ruleset {
	rs, err := ParseRuleset(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("built-in ruleset is invalid: %v", err))
	}
	return rs
}

// LoadRuleset reads a ruleset from a YAML file.
func LoadRuleset(path string) (*Ruleset, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from user configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read ruleset %s: %w", path, err)
	}
	rs, err := ParseRuleset(data)
	if err != nil {
		return nil, fmt.Errorf("invalid ruleset %s: %w", path, err)
	}
	return rs, nil
}

// ParseRuleset decodes and validates a YAML ruleset.
func ParseRuleset(data []byte) (*Ruleset, error) {
	var rs Ruleset
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to parse ruleset: %w", err)
	}
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}

// Validate checks that every rule points at a known category.
func (rs *Ruleset) Validate() error {
	tax := rs.Taxonomy()
	if tax.Len() == 0 {
		return ErrNoCategories
	}
	for _, p := range rs.Priority {
		if !tax.Contains(p.Category) {
			return fmt.Errorf("%w: priority keyword %q -> %q", ErrUnknownCategory, p.Keyword, p.Category)
		}
	}
	for i, a := range rs.AmountRules {
		if !tax.Contains(a.Category) {
			return fmt.Errorf("%w: amount rule %d -> %q", ErrUnknownCategory, i, a.Category)
		}
		if a.Min == nil && a.Max == nil {
			return fmt.Errorf("%w: amount rule %d", ErrEmptyAmountRule, i)
		}
	}
	return nil
}

// Taxonomy returns the ordered category list.
func (rs *Ruleset) Taxonomy() *model.Taxonomy {
	return model.NewTaxonomy(rs.Categories)
}
