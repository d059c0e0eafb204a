package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is the catalogue entry stock is tracked against.
type Product struct {
	ID                uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	SKU               string         `gorm:"column:sku;not null;uniqueIndex:products_sku_key"`
	Name              string         `gorm:"column:name;not null"`
	Description       *string        `gorm:"column:description"`
	MinimumStockLevel int            `gorm:"column:minimum_stock_level;not null;default:0;check:products_minimum_stock_level_check,minimum_stock_level >= 0"`
	CreatedBy         uuid.UUID      `gorm:"column:created_by;type:uuid;not null"`
	UpdatedBy         uuid.UUID      `gorm:"column:updated_by;type:uuid;not null"`
	CreatedAt         time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt         gorm.DeletedAt `gorm:"column:deleted_at;index"`
	DeletedBy         *uuid.UUID     `gorm:"column:deleted_by;type:uuid"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
