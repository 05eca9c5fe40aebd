package ingest

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/card-purpose/internal/common"
	"github.com/Veraticus/card-purpose/internal/model"
)

// TransactionRow is one line of a card-company export.
type TransactionRow struct {
	Date     string `csv:"결제일자"`
	Merchant string `csv:"가맹점명"`
	Amount   string `csv:"이용금액"`
	Category string `csv:"사용용도"`
}

var dateLayouts = []string{
	"2006-01-02",
	"2006.01.02",
	"2006/01/02",
	"20060102",
	"2006-01-02 15:04:05",
	"2006.01.02 15:04",
}

// ReadTransactions parses an export into transactions in file order. Rows with
// an empty merchant are kept; the engine routes them to manual review.
func ReadTransactions(r io.Reader) ([]model.Transaction, error) {
	var rows []*TransactionRow
	if err := gocsv.UnmarshalCSV(newHeaderReader(r, ColumnMerchant, ColumnDate, ColumnAmount), &rows); err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}

	txns := make([]model.Transaction, 0, len(rows))
	seen := make(map[string]int, len(rows))
	for i, row := range rows {
		line := i + 2
		date, err := ParseDate(row.Date)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		amount, err := ParseAmount(row.Amount)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		txn := model.Transaction{
			Date:          date,
			Amount:        amount,
			RawMerchant:   strings.TrimSpace(row.Merchant),
			PriorCategory: strings.TrimSpace(row.Category),
		}
		txn.ID = txn.GenerateID()
		// Identical rows on one statement are separate charges.
		if n := seen[txn.ID]; n > 0 {
			seen[txn.ID] = n + 1
			txn.ID = fmt.Sprintf("%s-%d", txn.ID, n)
		} else {
			seen[txn.ID] = 1
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

// ParseAmount accepts amounts as printed on statements, e.g. "149,900원".
// An empty amount is zero.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.NewReplacer(",", "", "원", "", "₩", "", " ", "").Replace(strings.TrimSpace(raw))
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q", common.ErrInvalidInput, raw)
	}
	return d, nil
}

// ParseDate accepts the date layouts Korean card companies export. An empty
// date is the zero time.
func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: date %q", common.ErrInvalidInput, raw)
}
