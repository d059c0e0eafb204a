package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ombhut175/RetailFlow-sub002/pkg/enums"
)

// StockTransaction is an immutable record of a single stock mutation.
type StockTransaction struct {
	ID              uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	ProductID       uuid.UUID                  `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_stock_transactions_product_sequence,priority:1"`
	Sequence        int64                      `gorm:"column:sequence;not null;uniqueIndex:ux_stock_transactions_product_sequence,priority:2"`
	TransactionType enums.StockTransactionType `gorm:"column:transaction_type;type:varchar(16);not null"`
	Quantity        int                        `gorm:"column:quantity;not null"`
	AvailableDelta  int                        `gorm:"column:available_delta;not null"`
	ReservedDelta   int                        `gorm:"column:reserved_delta;not null"`
	AvailableAfter  int                        `gorm:"column:available_after;not null;check:stock_transactions_available_after_check,available_after >= 0"`
	ReservedAfter   int                        `gorm:"column:reserved_after;not null;check:stock_transactions_reserved_after_check,reserved_after >= 0"`
	ReferenceType   enums.StockReferenceType   `gorm:"column:reference_type;type:varchar(16);not null"`
	ReferenceID     *uuid.UUID                 `gorm:"column:reference_id;type:uuid"`
	Notes           *string                    `gorm:"column:notes"`
	CreatedBy       uuid.UUID                  `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt       time.Time                  `gorm:"column:created_at;autoCreateTime"`
}

func (t *StockTransaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
