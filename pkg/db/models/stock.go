package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Stock holds the available and reserved counters for one product.
type Stock struct {
	ProductID         uuid.UUID      `gorm:"column:product_id;type:uuid;primaryKey"`
	QuantityAvailable int            `gorm:"column:quantity_available;not null;default:0;check:stocks_quantity_available_check,quantity_available >= 0"`
	QuantityReserved  int            `gorm:"column:quantity_reserved;not null;default:0;check:stocks_quantity_reserved_check,quantity_reserved >= 0"`
	InitialAvailable  int            `gorm:"column:initial_available;not null;default:0;check:stocks_initial_available_check,initial_available >= 0"`
	Version           int64          `gorm:"column:version;not null;default:0"`
	CreatedBy         uuid.UUID      `gorm:"column:created_by;type:uuid;not null"`
	UpdatedBy         uuid.UUID      `gorm:"column:updated_by;type:uuid;not null"`
	CreatedAt         time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt         gorm.DeletedAt `gorm:"column:deleted_at;index"`
	DeletedBy         *uuid.UUID     `gorm:"column:deleted_by;type:uuid"`
}

// QuantityTotal is the on-hand quantity.
func (s Stock) QuantityTotal() int {
	return s.QuantityAvailable + s.QuantityReserved
}
