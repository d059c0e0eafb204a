package enums

import (
	"fmt"
	"strings"
)

// StockTransactionType labels a single ledger mutation.
type StockTransactionType string

const (
	StockTransactionIn         StockTransactionType = "IN"
	StockTransactionOut        StockTransactionType = "OUT"
	StockTransactionAdjustment StockTransactionType = "ADJUSTMENT"
	StockTransactionReserved   StockTransactionType = "RESERVED"
	StockTransactionReleased   StockTransactionType = "RELEASED"
)

var validStockTransactionTypes = []StockTransactionType{
	StockTransactionIn,
	StockTransactionOut,
	StockTransactionAdjustment,
	StockTransactionReserved,
	StockTransactionReleased,
}

// IsValid reports whether the value matches a known transaction type.
func (t StockTransactionType) IsValid() bool {
	for _, candidate := range validStockTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseStockTransactionType converts raw input into StockTransactionType.
func ParseStockTransactionType(value string) (StockTransactionType, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validStockTransactionTypes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock transaction type %q", value)
}
