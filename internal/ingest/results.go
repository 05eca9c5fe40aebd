package ingest

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/Veraticus/card-purpose/internal/common"
	"github.com/Veraticus/card-purpose/internal/model"
	"github.com/Veraticus/card-purpose/internal/normalize"
)

// ResultRow is one line of the classification output. The 확정용도 column is
// left blank for a reviewer to fill in; the same file is read back as feedback.
type ResultRow struct {
	ID         string `csv:"거래ID"`
	Date       string `csv:"결제일자"`
	Merchant   string `csv:"가맹점명"`
	Amount     string `csv:"이용금액"`
	Key        string `csv:"정규화가맹점명"`
	Category   string `csv:"사용용도"`
	Confidence string `csv:"신뢰도"`
	Source     string `csv:"라벨출처"`
	State      string `csv:"최종확정"`
	Rationale  string `csv:"검토의견"`
	Confirmed  string `csv:"확정용도"`
}

// NewResultRow flattens a reviewed transaction.
func NewResultRow(txn model.Transaction, d model.ReviewDecision) *ResultRow {
	row := baseRow(txn)
	row.Key = d.Result.MerchantKey
	row.Category = d.FinalCategory()
	row.Confidence = strconv.FormatFloat(d.FinalConfidence(), 'f', 2, 64)
	row.Source = string(d.Result.Source)
	row.State = string(d.State)
	row.Rationale = joinRationale(d.Result.Rationale, d.Rationale)
	if d.State == model.ReviewAIRevised && d.Reviewer != "" {
		row.Source = string(d.Result.Source) + "/" + d.Reviewer
	}
	return row
}

// NewPendingRow flattens a transaction the batch never reached.
func NewPendingRow(txn model.Transaction) *ResultRow {
	row := baseRow(txn)
	row.Key = txn.MerchantKey
	row.State = string(model.ReviewPending)
	row.Rationale = "not processed"
	return row
}

func baseRow(txn model.Transaction) *ResultRow {
	row := &ResultRow{
		ID:       txn.ID,
		Merchant: txn.RawMerchant,
		Amount:   txn.Amount.String(),
	}
	if !txn.Date.IsZero() {
		row.Date = txn.Date.Format("2006-01-02")
	}
	return row
}

func joinRationale(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " | ")
}

// WriteResults writes rows with a header line.
func WriteResults(w io.Writer, rows []*ResultRow) error {
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}

// ReadFeedback reads a reviewed results file and returns a record for every
// row with a confirmed category. Rows left blank are not feedback.
func ReadFeedback(r io.Reader) ([]model.FeedbackRecord, error) {
	var rows []*ResultRow
	if err := gocsv.UnmarshalCSV(newHeaderReader(r, ColumnMerchant, ColumnConfirmed), &rows); err != nil {
		return nil, fmt.Errorf("failed to read feedback: %w", err)
	}

	var records []model.FeedbackRecord
	for i, row := range rows {
		confirmed := strings.TrimSpace(row.Confirmed)
		if confirmed == "" {
			continue
		}
		rec := model.FeedbackRecord{
			TransactionID:     row.ID,
			MerchantKey:       strings.TrimSpace(row.Key),
			RawMerchant:       strings.TrimSpace(row.Merchant),
			OriginalCategory:  strings.TrimSpace(row.Category),
			ConfirmedCategory: confirmed,
			OriginalSource:    model.LabelSource(strings.SplitN(row.Source, "/", 2)[0]),
		}
		if s := strings.TrimSpace(row.Confidence); s != "" {
			c, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w: confidence %q", i+2, common.ErrInvalidInput, row.Confidence)
			}
			rec.OriginalConfidence = c
		}
		records = append(records, rec)
	}
	return records, nil
}

// ReferenceRow is one line of a curated master list.
type ReferenceRow struct {
	Merchant string `csv:"가맹점명"`
	Category string `csv:"사용용도"`
}

// ReadReference reads a master list into reference entries keyed by the
// normalized merchant name. Later rows win over earlier ones for the same key.
// Rows without a usable merchant or category are counted in skipped.
func ReadReference(r io.Reader) (entries []model.ReferenceEntry, skipped int, err error) {
	var rows []*ReferenceRow
	if err := gocsv.UnmarshalCSV(newHeaderReader(r, ColumnMerchant, ColumnCategory), &rows); err != nil {
		return nil, 0, fmt.Errorf("failed to read reference list: %w", err)
	}

	index := make(map[string]int, len(rows))
	for _, row := range rows {
		key := normalize.Normalize(row.Merchant)
		category := strings.TrimSpace(row.Category)
		if normalize.IsUnknown(key) || category == "" {
			skipped++
			continue
		}
		entry := model.ReferenceEntry{Key: key, Category: category, Provenance: model.ProvenanceManual}
		if i, ok := index[key]; ok {
			entries[i] = entry
			continue
		}
		index[key] = len(entries)
		entries = append(entries, entry)
	}
	return entries, skipped, nil
}
