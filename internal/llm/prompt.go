package llm

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/card-purpose/internal/model"
)

// PredictionRequest is one transaction to predict.
type PredictionRequest struct {
	Date        time.Time
	Amount      decimal.Decimal
	Key         string // Normalized merchant key
	RawMerchant string
	Examples    []Example
}

// BuildSystemPrompt describes the role, the taxonomy and the response format.
func BuildSystemPrompt(tax *model.Taxonomy) string {
	var sb strings.Builder
	sb.WriteString(`당신은 법인카드 거래내역의 사용용도를 분류하는 전문가입니다.

<role>
가맹점명, 결제일자, 이용금액을 분석하여 사내 분류 체계에 따라 사용용도 카테고리를 예측합니다.
</role>

<classification_system>
`)
	for i, c := range tax.Categories() {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, c.Name)
		if c.Description != "" {
			fmt.Fprintf(&sb, "   - %s\n", c.Description)
		}
		if len(c.Keywords) > 0 {
			fmt.Fprintf(&sb, "   - 키워드: %s\n", strings.Join(c.Keywords, ", "))
		}
	}
	sb.WriteString(`</classification_system>

<guidelines>
1. 가맹점명의 핵심 키워드를 식별하세요.
2. 업종이 명확하지 않으면 금액과 일자를 참고하세요.
3. 예시는 참고하되 기계적으로 매칭하지 마세요.
4. 확신이 없으면 낮은 신뢰도를 부여하세요.
5. 반드시 위 카테고리 중 하나를 선택하세요.
</guidelines>

<output_requirements>
다음 XML 형식으로만 응답하세요:

<prediction>
  <category>사용용도 카테고리</category>
  <confidence>0.0~1.0 사이의 신뢰도</confidence>
  <reasoning>예측 근거 1-2문장</reasoning>
</prediction>

신뢰도 기준:
- 0.9 이상: 명확한 키워드 매칭
- 0.7~0.9: 업종 추론 가능
- 0.5~0.7: 일부 불확실
- 0.5 미만: 추가 확인 필요
</output_requirements>
`)
	return sb.String()
}

// BuildUserPrompt renders the few-shot examples and the transaction.
func BuildUserPrompt(req PredictionRequest) string {
	var sb strings.Builder

	sb.WriteString("<examples>\n")
	for _, ex := range req.Examples {
		fmt.Fprintf(&sb, "<example>\n  <merchant>%s</merchant>\n  <category>%s</category>\n</example>\n",
			html.EscapeString(ex.Merchant), html.EscapeString(ex.Category))
	}
	sb.WriteString("</examples>\n\n")

	merchant := req.Key
	if req.RawMerchant != "" && req.RawMerchant != req.Key {
		merchant = req.RawMerchant
	}

	sb.WriteString("<task>\n다음 법인카드 거래의 사용용도를 예측해주세요:\n\n<transaction>\n")
	fmt.Fprintf(&sb, "  <merchant>%s</merchant>\n", html.EscapeString(merchant))
	if req.Key != merchant {
		fmt.Fprintf(&sb, "  <normalized>%s</normalized>\n", html.EscapeString(req.Key))
	}
	if !req.Date.IsZero() {
		fmt.Fprintf(&sb, "  <date>%s</date>\n", req.Date.Format("2006-01-02"))
	}
	if req.Amount.IsPositive() {
		fmt.Fprintf(&sb, "  <amount>%s원</amount>\n", req.Amount.StringFixed(0))
	}
	sb.WriteString("</transaction>\n\n위 거래의 사용용도를 예측하고, 신뢰도와 근거를 제시해주세요.\n</task>\n")

	return sb.String()
}

// ReviewRequest is one classification submitted for a second opinion.
type ReviewRequest struct {
	Date        time.Time
	Amount      decimal.Decimal
	RawMerchant string
	Category    string
	Source      string
	Confidence  float64
}

// BuildReviewSystemPrompt describes the reviewer role and its decision types.
func BuildReviewSystemPrompt(tax *model.Taxonomy) string {
	return fmt.Sprintf(`당신은 법인카드 사용용도 자동 분류 결과를 검토하는 전문가입니다.

<review_criteria>
1. 가맹점명과 사용용도의 일치성
2. 신뢰도와 실제 분류 정확성의 일관성
3. 규칙과 AI 예측 간 충돌
</review_criteria>

<categories>
%s
</categories>

<decision_types>
- CONFIRM: 분류가 적절함
- MODIFY: 분류 수정 필요, 위 카테고리 중 하나를 제안
- REVIEW: 수동 검토 필요
</decision_types>

<output_format>
<review>
  <decision>CONFIRM|MODIFY|REVIEW</decision>
  <final_category>최종 사용용도</final_category>
  <final_confidence>0.0~1.0</final_confidence>
  <reason>결정 근거 1-2문장</reason>
</review>
</output_format>
`, strings.Join(tax.Names(), "\n"))
}

// BuildReviewPrompt renders one classification for review.
func BuildReviewPrompt(req ReviewRequest) string {
	var sb strings.Builder
	sb.WriteString("다음 거래의 분류 결과를 검토하고 결정을 내려주세요:\n\n<transaction>\n")
	fmt.Fprintf(&sb, "  <merchant>%s</merchant>\n", html.EscapeString(req.RawMerchant))
	fmt.Fprintf(&sb, "  <predicted_category>%s</predicted_category>\n", html.EscapeString(req.Category))
	fmt.Fprintf(&sb, "  <confidence>%.2f</confidence>\n", req.Confidence)
	fmt.Fprintf(&sb, "  <source>%s</source>\n", req.Source)
	if !req.Date.IsZero() {
		fmt.Fprintf(&sb, "  <date>%s</date>\n", req.Date.Format("2006-01-02"))
	}
	if req.Amount.IsPositive() {
		fmt.Fprintf(&sb, "  <amount>%s</amount>\n", req.Amount.StringFixed(0))
	}
	sb.WriteString("</transaction>\n")
	return sb.String()
}
