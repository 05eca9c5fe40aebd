// Package ingest reads card-company exports and writes classification results
// as CSV.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/Veraticus/card-purpose/internal/common"
)

// Canonical column names.
const (
	ColumnDate       = "결제일자"
	ColumnMerchant   = "가맹점명"
	ColumnAmount     = "이용금액"
	ColumnCategory   = "사용용도"
	ColumnConfirmed  = "확정용도"
	ColumnID         = "거래ID"
	ColumnKey        = "정규화가맹점명"
	ColumnConfidence = "신뢰도"
	ColumnSource     = "라벨출처"
	ColumnState      = "최종확정"
	ColumnRationale  = "검토의견"
)

// Card companies label the same column differently.
var columnAliases = map[string]string{
	"가맹점명/국가명": ColumnMerchant,
	"상호명":      ColumnMerchant,
	"거래처":      ColumnMerchant,
	"거래금액":     ColumnAmount,
	"사용금액":     ColumnAmount,
	"청구금액":     ColumnAmount,
}

// Date columns in order of preference. Only the first one present is used.
var dateColumns = []string{ColumnDate, "승인일자", "거래일자", "사용일자", "일자"}

const bom = "\ufeff"

// headerReader rewrites the header row of a CSV stream to canonical names
// before gocsv maps it onto struct tags.
type headerReader struct {
	r        *csv.Reader
	required []string
	header   bool
}

func newHeaderReader(in io.Reader, required ...string) *headerReader {
	r := csv.NewReader(in)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	return &headerReader{r: r, required: required}
}

// Read implements gocsv.CSVReader.
func (h *headerReader) Read() ([]string, error) {
	record, err := h.r.Read()
	if err != nil || h.header {
		return record, err
	}
	h.header = true
	return canonicalHeader(record, h.required)
}

// ReadAll implements gocsv.CSVReader.
func (h *headerReader) ReadAll() ([][]string, error) {
	var records [][]string
	for {
		record, err := h.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, record)
	}
}

func canonicalHeader(header, required []string) ([]string, error) {
	out := make([]string, len(header))
	for i, col := range header {
		col = strings.TrimSpace(strings.TrimPrefix(col, bom))
		if canon, ok := columnAliases[col]; ok && !slices.Contains(header, canon) {
			col = canon
		}
		out[i] = col
	}

	if !slices.Contains(out, ColumnDate) {
		for _, alt := range dateColumns[1:] {
			if i := slices.Index(out, alt); i >= 0 {
				out[i] = ColumnDate
				break
			}
		}
	}

	var missing []string
	for _, col := range required {
		if !slices.Contains(out, col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %s", common.ErrInvalidInput, strings.Join(missing, ", "))
	}
	return out, nil
}
