package cli

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/Veraticus/card-purpose/internal/engine"
	"github.com/Veraticus/card-purpose/internal/feedback"
	"github.com/Veraticus/card-purpose/internal/llm"
	"github.com/Veraticus/card-purpose/internal/model"
	"github.com/Veraticus/card-purpose/internal/storage"
)

var reviewOrder = []model.ReviewState{
	model.ReviewAutoConfirmed,
	model.ReviewAIRevised,
	model.ReviewManualRequired,
	model.ReviewPending,
}

var sourceOrder = []model.LabelSource{
	model.SourceExactMatch,
	model.SourceFuzzyMatch,
	model.SourceAIPrediction,
	model.SourceNone,
}

func line(label, value string) string {
	return LabelStyle.Render(label) + value + "\n"
}

func percent(n, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(n)/float64(total)*100)
}

// RenderClassifySummary renders the end-of-run box for classify.
func RenderClassifySummary(s engine.BatchSummary, states map[model.ReviewState]int) string {
	var b strings.Builder
	b.WriteString(line("Transactions", fmt.Sprintf("%d", s.Total)))
	for _, src := range sourceOrder {
		n := s.Count(src)
		b.WriteString(line("  "+string(src), fmt.Sprintf("%d (%s)", n, percent(n, s.Total))))
	}
	if s.OutOfTaxonomy > 0 {
		b.WriteString(line("Out of taxonomy", WarningStyle.Render(fmt.Sprintf("%d", s.OutOfTaxonomy))))
	}
	b.WriteString("\n")
	for _, state := range reviewOrder {
		n := states[state]
		if n == 0 && state == model.ReviewPending {
			continue
		}
		b.WriteString(line(string(state), StateStyle(state).Render(fmt.Sprintf("%d (%s)", n, percent(n, s.Total)))))
	}
	b.WriteString("\n")
	b.WriteString(line("Elapsed", s.ProcessingTime.Round(time.Millisecond).String()))
	return RenderBox(ChartIcon+" Classification", strings.TrimRight(b.String(), "\n"))
}

// RenderAPIStats renders provider usage, or nothing when no call was made.
func RenderAPIStats(s llm.Stats) string {
	if s.Calls == 0 && s.CacheHits == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(line("Calls", fmt.Sprintf("%d (%d ok, %d failed)", s.Calls, s.Successful, s.Failed)))
	b.WriteString(line("Cache hits", fmt.Sprintf("%d", s.CacheHits)))
	b.WriteString(line("Tokens in/out", fmt.Sprintf("%d / %d", s.InputTokens, s.OutputTokens)))
	b.WriteString(line("Avg tokens in/out", fmt.Sprintf("%.0f / %.0f", s.AvgInputTokens(), s.AvgOutputTokens())))
	b.WriteString(line("Estimated cost", fmt.Sprintf("$%.4f", s.EstimatedCostUSD())))
	return RenderBox(RobotIcon+" AI usage", strings.TrimRight(b.String(), "\n"))
}

// RenderFeedbackSummary renders the result of applying a feedback file.
func RenderFeedbackSummary(s feedback.ApplySummary, counter uint64) string {
	var b strings.Builder
	b.WriteString(line("Inserted", SuccessStyle.Render(fmt.Sprintf("%d", s.Inserted))))
	b.WriteString(line("Updated", SuccessStyle.Render(fmt.Sprintf("%d", s.Updated))))
	b.WriteString(line("Unchanged", fmt.Sprintf("%d", s.Unchanged)))
	if len(s.Skipped) > 0 {
		b.WriteString(line("Skipped", WarningStyle.Render(fmt.Sprintf("%d", len(s.Skipped)))))
		for _, reason := range s.Skipped {
			b.WriteString(SubtleStyle.Render("  - "+reason) + "\n")
		}
	}
	if len(s.Warnings) > 0 {
		b.WriteString(line("Warnings", WarningStyle.Render(fmt.Sprintf("%d", len(s.Warnings)))))
		for _, w := range s.Warnings {
			b.WriteString(SubtleStyle.Render("  - "+w.Error()) + "\n")
		}
	}
	b.WriteString(line("Feedback total", fmt.Sprintf("%d", counter)))
	for _, sig := range s.Signals {
		b.WriteString("\n" + FormatWarning(feedback.Reminder(sig)))
	}
	return RenderBox(SuccessIcon+" Feedback applied", strings.TrimRight(b.String(), "\n"))
}

// RenderReferenceStats renders counts per provenance and per category, largest
// categories first.
func RenderReferenceStats(s *storage.ReferenceStats) string {
	var b strings.Builder
	b.WriteString(line("Entries", fmt.Sprintf("%d", s.Total)))
	for _, p := range []model.Provenance{model.ProvenanceManual, model.ProvenanceFeedback} {
		b.WriteString(line("  "+string(p), fmt.Sprintf("%d", s.ByProvenance[p])))
	}
	b.WriteString("\n")

	categories := slices.SortedFunc(maps.Keys(s.ByCategory), func(a, c string) int {
		if n := cmp.Compare(s.ByCategory[c], s.ByCategory[a]); n != 0 {
			return n
		}
		return strings.Compare(a, c)
	})
	for _, c := range categories {
		b.WriteString(line(c, fmt.Sprintf("%d (%s)", s.ByCategory[c], percent(s.ByCategory[c], s.Total))))
	}
	return RenderBox(ChartIcon+" Reference data", strings.TrimRight(b.String(), "\n"))
}

// RenderTaxonomy lists categories with their keywords.
func RenderTaxonomy(t *model.Taxonomy) string {
	var b strings.Builder
	for _, c := range t.Categories() {
		b.WriteString(TitleStyle.UnsetMargins().Render(c.Name))
		if c.Description != "" {
			b.WriteString("  " + SubtleStyle.Render(c.Description))
		}
		b.WriteString("\n")
		if len(c.Keywords) > 0 {
			b.WriteString("  " + strings.Join(c.Keywords, ", ") + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
