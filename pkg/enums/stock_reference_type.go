package enums

import (
	"fmt"
	"strings"
)

// StockReferenceType records the business event behind a stock transaction.
type StockReferenceType string

const (
	StockReferencePurchase   StockReferenceType = "PURCHASE"
	StockReferenceSale       StockReferenceType = "SALE"
	StockReferenceAdjustment StockReferenceType = "ADJUSTMENT"
	StockReferenceReturn     StockReferenceType = "RETURN"
)

var validStockReferenceTypes = []StockReferenceType{
	StockReferencePurchase,
	StockReferenceSale,
	StockReferenceAdjustment,
	StockReferenceReturn,
}

func (r StockReferenceType) IsValid() bool {
	for _, candidate := range validStockReferenceTypes {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseStockReferenceType converts raw input into StockReferenceType.
func ParseStockReferenceType(value string) (StockReferenceType, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validStockReferenceTypes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock reference type %q", value)
}
