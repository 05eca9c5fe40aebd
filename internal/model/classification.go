// Package model defines the core domain models used throughout the application.
package model

import "strings"

// UnclassifiedCategory is assigned when no stage could produce a category.
const UnclassifiedCategory = "Unclassified"

// LabelSource records which pipeline stage produced a classification.
type LabelSource string

// Label source constants.
const (
	SourceExactMatch   LabelSource = "ExactMatch"
	SourceFuzzyMatch   LabelSource = "FuzzyMatch"
	SourceAIPrediction LabelSource = "AIPrediction"
	SourceNone         LabelSource = "None"
)

const ruleSuffix = "+Rule"

// WithRule returns the source tagged as validated by the rule engine.
func (s LabelSource) WithRule() LabelSource {
	if s.HasRule() {
		return s
	}
	return s + ruleSuffix
}

// HasRule reports whether the rule engine touched this result.
func (s LabelSource) HasRule() bool {
	return strings.HasSuffix(string(s), ruleSuffix)
}

// Base strips the rule suffix.
func (s LabelSource) Base() LabelSource {
	return LabelSource(strings.TrimSuffix(string(s), ruleSuffix))
}

// RuleOutcome records what the rule engine did to a result.
type RuleOutcome string

// Rule outcome constants.
const (
	RuleNone         RuleOutcome = ""
	RuleCorroborated RuleOutcome = "corroborated"
	RuleOverridden   RuleOutcome = "overridden"
)

// ClassificationResult is the single output of the pipeline for one transaction.
type ClassificationResult struct {
	TransactionID    string
	MerchantKey      string
	Category         string
	Source           LabelSource
	Rule             RuleOutcome
	OriginalCategory string // Category before a rule override
	Rationale        string
	Hints            []string
	Confidence       float64
	OutOfTaxonomy    bool
}

// NewUnclassified builds the sentinel result used when every stage missed.
func NewUnclassified(txnID, key, rationale string) ClassificationResult {
	return ClassificationResult{
		TransactionID: txnID,
		MerchantKey:   key,
		Category:      UnclassifiedCategory,
		Confidence:    0.0,
		Source:        SourceNone,
		Rationale:     rationale,
	}
}

// IsUnclassified reports whether the result carries the sentinel category.
func (r ClassificationResult) IsUnclassified() bool {
	return r.Category == UnclassifiedCategory || r.Source == SourceNone
}

// IsCorroborated reports whether keyword rules agreed with the category.
func (r ClassificationResult) IsCorroborated() bool {
	return r.Source.HasRule() && r.Rule == RuleCorroborated
}
