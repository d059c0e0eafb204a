package stock

import (
	"time"

	"github.com/google/uuid"

	"github.com/ombhut175/RetailFlow-sub002/pkg/db/models"
	"github.com/ombhut175/RetailFlow-sub002/pkg/enums"
)

// StockDTO is the API representation of a stock row.
type StockDTO struct {
	ProductID         uuid.UUID  `json:"product_id"`
	SKU               string     `json:"sku,omitempty"`
	ProductName       string     `json:"product_name,omitempty"`
	QuantityAvailable int        `json:"quantity_available"`
	QuantityReserved  int        `json:"quantity_reserved"`
	QuantityTotal     int        `json:"quantity_total"`
	MinimumStockLevel int        `json:"minimum_stock_level"`
	IsLowStock        bool       `json:"is_low_stock"`
	Version           int64      `json:"version"`
	CreatedBy         uuid.UUID  `json:"created_by"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedBy         uuid.UUID  `json:"updated_by"`
	UpdatedAt         time.Time  `json:"updated_at"`
	DeletedAt         *time.Time `json:"deleted_at,omitempty"`
	DeletedBy         *uuid.UUID `json:"deleted_by,omitempty"`
}

// SummaryDTO is the derived view returned by the summary endpoint.
type SummaryDTO struct {
	ProductID         uuid.UUID `json:"product_id"`
	SKU               string    `json:"sku,omitempty"`
	ProductName       string    `json:"product_name,omitempty"`
	QuantityAvailable int       `json:"quantity_available"`
	QuantityReserved  int       `json:"quantity_reserved"`
	QuantityTotal     int       `json:"quantity_total"`
	MinimumStockLevel int       `json:"minimum_stock_level"`
	IsLowStock        bool      `json:"is_low_stock"`
	Version           int64     `json:"version"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TransactionDTO is the API representation of a ledger entry.
type TransactionDTO struct {
	ID              uuid.UUID                  `json:"id"`
	ProductID       uuid.UUID                  `json:"product_id"`
	Sequence        int64                      `json:"sequence"`
	TransactionType enums.StockTransactionType `json:"transaction_type"`
	Quantity        int                        `json:"quantity"`
	AvailableDelta  int                        `json:"available_delta"`
	ReservedDelta   int                        `json:"reserved_delta"`
	AvailableAfter  int                        `json:"available_after"`
	ReservedAfter   int                        `json:"reserved_after"`
	ReferenceType   enums.StockReferenceType   `json:"reference_type"`
	ReferenceID     *uuid.UUID                 `json:"reference_id,omitempty"`
	Notes           *string                    `json:"notes,omitempty"`
	CreatedBy       uuid.UUID                  `json:"created_by"`
	CreatedAt       time.Time                  `json:"created_at"`
}

// IsLowStock reports whether on-hand quantity is below the product minimum.
func (v StockView) IsLowStock() bool {
	return isLow(v.QuantityTotal(), v.MinimumStockLevel)
}

func isLow(total, minimum int) bool {
	return total < minimum
}

func toStockDTO(v StockView) StockDTO {
	dto := StockDTO{
		ProductID:         v.ProductID,
		SKU:               v.SKU,
		ProductName:       v.ProductName,
		QuantityAvailable: v.QuantityAvailable,
		QuantityReserved:  v.QuantityReserved,
		QuantityTotal:     v.QuantityTotal(),
		MinimumStockLevel: v.MinimumStockLevel,
		IsLowStock:        v.IsLowStock(),
		Version:           v.Version,
		CreatedBy:         v.CreatedBy,
		CreatedAt:         v.CreatedAt,
		UpdatedBy:         v.UpdatedBy,
		UpdatedAt:         v.UpdatedAt,
		DeletedBy:         v.DeletedBy,
	}
	if v.DeletedAt.Valid {
		deletedAt := v.DeletedAt.Time
		dto.DeletedAt = &deletedAt
	}
	return dto
}

func toSummaryDTO(v StockView) SummaryDTO {
	return SummaryDTO{
		ProductID:         v.ProductID,
		SKU:               v.SKU,
		ProductName:       v.ProductName,
		QuantityAvailable: v.QuantityAvailable,
		QuantityReserved:  v.QuantityReserved,
		QuantityTotal:     v.QuantityTotal(),
		MinimumStockLevel: v.MinimumStockLevel,
		IsLowStock:        v.IsLowStock(),
		Version:           v.Version,
		UpdatedAt:         v.UpdatedAt,
	}
}

func toTransactionDTO(t models.StockTransaction) TransactionDTO {
	return TransactionDTO{
		ID:              t.ID,
		ProductID:       t.ProductID,
		Sequence:        t.Sequence,
		TransactionType: t.TransactionType,
		Quantity:        t.Quantity,
		AvailableDelta:  t.AvailableDelta,
		ReservedDelta:   t.ReservedDelta,
		AvailableAfter:  t.AvailableAfter,
		ReservedAfter:   t.ReservedAfter,
		ReferenceType:   t.ReferenceType,
		ReferenceID:     t.ReferenceID,
		Notes:           t.Notes,
		CreatedBy:       t.CreatedBy,
		CreatedAt:       t.CreatedAt,
	}
}
