package product

import (
	"time"

	"github.com/google/uuid"

	"github.com/ombhut175/RetailFlow-sub002/pkg/db/models"
)

// ProductDTO represents the catalogue product payload returned to clients.
type ProductDTO struct {
	ID                uuid.UUID  `json:"id"`
	SKU               string     `json:"sku"`
	Name              string     `json:"name"`
	Description       *string    `json:"description,omitempty"`
	MinimumStockLevel int        `json:"minimum_stock_level"`
	CreatedBy         uuid.UUID  `json:"created_by"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedBy         uuid.UUID  `json:"updated_by"`
	UpdatedAt         time.Time  `json:"updated_at"`
	DeletedAt         *time.Time `json:"deleted_at,omitempty"`
	DeletedBy         *uuid.UUID `json:"deleted_by,omitempty"`
}

// NewProductDTO maps the model into its API representation.
func NewProductDTO(product *models.Product) *ProductDTO {
	if product == nil {
		return nil
	}
	dto := &ProductDTO{
		ID:                product.ID,
		SKU:               product.SKU,
		Name:              product.Name,
		Description:       product.Description,
		MinimumStockLevel: product.MinimumStockLevel,
		CreatedBy:         product.CreatedBy,
		CreatedAt:         product.CreatedAt,
		UpdatedBy:         product.UpdatedBy,
		UpdatedAt:         product.UpdatedAt,
		DeletedBy:         product.DeletedBy,
	}
	if product.DeletedAt.Valid {
		deletedAt := product.DeletedAt.Time
		dto.DeletedAt = &deletedAt
	}
	return dto
}
