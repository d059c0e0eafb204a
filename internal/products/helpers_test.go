package product

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ombhut175/RetailFlow-sub002/pkg/db/models"
)

func mustCreateTestProduct(t *testing.T, tx *gorm.DB, actor uuid.UUID) *models.Product {
	t.Helper()
	product := &models.Product{
		SKU:               fmt.Sprintf("SKU-%s", uuid.NewString()),
		Name:              "Test Product",
		MinimumStockLevel: 5,
		CreatedBy:         actor,
		UpdatedBy:         actor,
	}
	if err := tx.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

func stringPtr(v string) *string {
	return &v
}

func intPtr(v int) *int {
	return &v
}
