package llm

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Veraticus/card-purpose/internal/common"
)

// Prediction is the provider's answer before validation.
type Prediction struct {
	Category      string
	Reasoning     string
	Confidence    float64
	HasConfidence bool // False when the confidence was missing or unparseable
}

type xmlPrediction struct {
	XMLName    xml.Name `xml:"prediction"`
	Category   string   `xml:"category"`
	Confidence string   `xml:"confidence"`
	Reasoning  string   `xml:"reasoning"`
}

type jsonPrediction struct {
	Category   string          `json:"category"`
	Confidence json.RawMessage `json:"confidence"`
	Reasoning  string          `json:"reasoning"`
}

var fencePattern = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// tagPatterns is read-only after package initialization.
var tagPatterns = func() map[string]*regexp.Regexp {
	m := make(map[string]*regexp.Regexp)
	for _, tag := range []string{"category", "confidence", "reasoning", "decision", "final_category", "final_confidence", "reason"} {
		m[tag] = regexp.MustCompile(`(?s)<` + tag + `>\s*(.*?)\s*</` + tag + `>`)
	}
	return m
}()

// ParsePrediction extracts a prediction from XML, a JSON object, or loose tags,
// in that order. A response without a category is malformed.
func ParsePrediction(text string) (Prediction, error) {
	text = cleanMarkdownWrapper(text)

	if block := extractBlock(text, "prediction"); block != "" {
		var x xmlPrediction
		if err := xml.Unmarshal([]byte(block), &x); err == nil && strings.TrimSpace(x.Category) != "" {
			p := Prediction{
				Category:  strings.TrimSpace(x.Category),
				Reasoning: strings.TrimSpace(x.Reasoning),
			}
			p.Confidence, p.HasConfidence = parseConfidence(x.Confidence)
			return p, nil
		}
	}

	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		var j jsonPrediction
		if err := json.Unmarshal([]byte(text[start:end+1]), &j); err == nil && strings.TrimSpace(j.Category) != "" {
			p := Prediction{
				Category:  strings.TrimSpace(j.Category),
				Reasoning: strings.TrimSpace(j.Reasoning),
			}
			p.Confidence, p.HasConfidence = parseConfidence(string(j.Confidence))
			return p, nil
		}
	}

	p := Prediction{
		Category:  findTag(text, "category"),
		Reasoning: findTag(text, "reasoning"),
	}
	if p.Category == "" {
		return Prediction{}, fmt.Errorf("%w: no category in response", common.ErrMalformedResponse)
	}
	p.Confidence, p.HasConfidence = parseConfidence(findTag(text, "confidence"))
	return p, nil
}

// ReviewVerdict is the reviewer's decision type.
type ReviewVerdict string

// Review verdicts.
const (
	VerdictConfirm ReviewVerdict = "CONFIRM"
	VerdictModify  ReviewVerdict = "MODIFY"
	VerdictReview  ReviewVerdict = "REVIEW"
)

// Review is a parsed second-opinion response.
type Review struct {
	Verdict       ReviewVerdict
	FinalCategory string
	Reason        string
	Confidence    float64
	HasConfidence bool
}

// ParseReview extracts a review from the response text.
func ParseReview(text string) (Review, error) {
	text = cleanMarkdownWrapper(text)

	verdict := ReviewVerdict(strings.ToUpper(findTag(text, "decision")))
	switch verdict {
	case VerdictConfirm, VerdictModify, VerdictReview:
	default:
		return Review{}, fmt.Errorf("%w: unknown review decision %q", common.ErrMalformedResponse, verdict)
	}

	r := Review{
		Verdict:       verdict,
		FinalCategory: findTag(text, "final_category"),
		Reason:        findTag(text, "reason"),
	}
	r.Confidence, r.HasConfidence = parseConfidence(findTag(text, "final_confidence"))
	if r.Verdict == VerdictModify && r.FinalCategory == "" {
		return Review{}, fmt.Errorf("%w: MODIFY without a category", common.ErrMalformedResponse)
	}
	return r, nil
}

// parseConfidence accepts plain numbers, quoted numbers and percentages.
func parseConfidence(raw string) (float64, bool) {
	s := strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `"'`))
	if s == "" || s == "null" {
		return 0, false
	}

	scale := 1.0
	if strings.HasSuffix(s, "%") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
		scale = 100
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v / scale, true
}

func cleanMarkdownWrapper(text string) string {
	text = strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

func extractBlock(text, tag string) string {
	open, closing := "<"+tag+">", "</"+tag+">"
	start := strings.Index(text, open)
	if start < 0 {
		return ""
	}
	end := strings.Index(text[start:], closing)
	if end < 0 {
		return ""
	}
	return text[start : start+end+len(closing)]
}

func findTag(text, tag string) string {
	m := tagPatterns[tag].FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
