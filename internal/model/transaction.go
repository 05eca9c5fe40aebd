package model

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction represents a single card transaction from an export file.
type Transaction struct {
	Date          time.Time
	Amount        decimal.Decimal
	ID            string
	RawMerchant   string // Merchant name as printed on the statement
	MerchantKey   string // Normalized merchant key
	PriorCategory string // Category already present in the input, if any
}

// GenerateID creates a stable identifier for the transaction.
func (t *Transaction) GenerateID() string {
	data := fmt.Sprintf("%s:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Amount.StringFixed(0),
		t.RawMerchant)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash[:12])
}
