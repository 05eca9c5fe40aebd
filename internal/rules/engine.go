// Package rules validates and corrects classifications with keyword rules.
package rules

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/card-purpose/internal/model"
)

// Config holds the confidence adjustments applied by the engine.
type Config struct {
	CorroborationNudge    float64 // Added to confidence when keywords agree
	MaxNonExactConfidence float64 // Ceiling for nudged confidence
	OverrideBelow         float64 // Keywords replace the category only below this confidence
	OverrideConfidence    float64 // Confidence assigned to a keyword override
}

// DefaultConfig returns the default rule engine settings.
func DefaultConfig() Config {
	return Config{
		CorroborationNudge:    0.1,
		MaxNonExactConfidence: 0.99,
		OverrideBelow:         0.7,
		OverrideConfidence:    0.8,
	}
}

type keyword struct {
	text     string // lower-cased
	category string
}

// Engine applies keyword and amount rules to classification results.
type Engine struct {
	taxonomy *model.Taxonomy
	logger   *slog.Logger
	amount   []AmountRule
	keywords []keyword
	cfg      Config
}

// New builds an engine from a ruleset.
func New(rs *Ruleset, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		taxonomy: rs.Taxonomy(),
		logger:   logger,
		amount:   rs.AmountRules,
		cfg:      cfg,
	}
	for _, p := range rs.Priority {
		e.keywords = append(e.keywords, keyword{text: strings.ToLower(p.Keyword), category: p.Category})
	}
	for _, c := range e.taxonomy.Categories() {
		for _, k := range c.Keywords {
			if k == "" {
				continue
			}
			e.keywords = append(e.keywords, keyword{text: strings.ToLower(k), category: c.Name})
		}
	}
	return e
}

// Taxonomy returns the categories the engine knows.
func (e *Engine) Taxonomy() *model.Taxonomy {
	return e.taxonomy
}

// OverrideConfidence is the confidence the engine assigns when it replaces a category.
func (e *Engine) OverrideConfidence() float64 {
	return e.cfg.OverrideConfidence
}

// Match returns the category of the first keyword found in any of texts.
func (e *Engine) Match(texts ...string) (string, bool) {
	lowered := lowerAll(texts)
	for _, k := range e.keywords {
		if containsAny(lowered, k.text) {
			return k.category, true
		}
	}
	return "", false
}

// Hints returns every category with a keyword present in texts, in rule order.
func (e *Engine) Hints(texts ...string) []string {
	lowered := lowerAll(texts)
	var hints []string
	seen := make(map[string]bool)
	for _, k := range e.keywords {
		if seen[k.category] {
			continue
		}
		if containsAny(lowered, k.text) {
			seen[k.category] = true
			hints = append(hints, k.category)
		}
	}
	return hints
}

// Apply validates result against the rules for txn and returns the adjusted copy.
// Exact matches are never overridden and unclassified results only gain hints.
func (e *Engine) Apply(result model.ClassificationResult, txn model.Transaction) model.ClassificationResult {
	texts := []string{txn.RawMerchant, txn.MerchantKey}
	result.Hints = e.Hints(texts...)
	ruleCategory, matched := e.Match(texts...)

	if result.IsUnclassified() {
		return result
	}

	if result.Source.Base() == model.SourceExactMatch {
		if matched && ruleCategory == result.Category {
			result.Source = result.Source.WithRule()
			result.Rule = model.RuleCorroborated
			result.Rationale = appendRationale(result.Rationale, "keyword rule agrees")
		}
		return result
	}

	if matched {
		switch {
		case ruleCategory == result.Category:
			result.Confidence = min(e.cfg.MaxNonExactConfidence, result.Confidence+e.cfg.CorroborationNudge)
			result.Source = result.Source.WithRule()
			result.Rule = model.RuleCorroborated
			result.Rationale = appendRationale(result.Rationale, "keyword rule agrees")
			return result
		case result.Confidence < e.cfg.OverrideBelow:
			return e.override(result, ruleCategory, e.cfg.OverrideConfidence, "keyword rule")
		default:
			e.logger.Debug("Keyword rule disagrees with confident result",
				"merchant_key", result.MerchantKey,
				"category", result.Category,
				"rule_category", ruleCategory,
				"confidence", result.Confidence)
		}
	}

	for _, rule := range e.amount {
		if rule.Category == result.Category {
			continue
		}
		if rule.Matches(txn.RawMerchant, txn.Amount) || rule.Matches(txn.MerchantKey, txn.Amount) {
			return e.override(result, rule.Category, rule.Confidence, "amount rule")
		}
	}

	return result
}

func (e *Engine) override(result model.ClassificationResult, category string, confidence float64, reason string) model.ClassificationResult {
	e.logger.Debug("Rule override",
		"merchant_key", result.MerchantKey,
		"from", result.Category,
		"to", category,
		"reason", reason)

	result.Rationale = appendRationale(result.Rationale,
		fmt.Sprintf("%s replaced %s (confidence %.2f)", reason, result.Category, result.Confidence))
	result.OriginalCategory = result.Category
	result.Category = category
	result.Confidence = confidence
	result.Source = result.Source.WithRule()
	result.Rule = model.RuleOverridden
	result.OutOfTaxonomy = !e.taxonomy.Contains(category)
	return result
}

func appendRationale(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + "; " + note
}

func lowerAll(texts []string) []string {
	out := make([]string, 0, len(texts))
	for _, t := range texts {
		if t != "" {
			out = append(out, strings.ToLower(t))
		}
	}
	return out
}

func containsAny(texts []string, needle string) bool {
	for _, t := range texts {
		if strings.Contains(t, needle) {
			return true
		}
	}
	return false
}
