package product

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ombhut175/RetailFlow-sub002/pkg/db/models"
	"github.com/ombhut175/RetailFlow-sub002/pkg/pagination"
)

// ProductRepository defines CRUD operations for catalogue products.
type ProductRepository interface {
	CreateProduct(context.Context, *models.Product) (*models.Product, error)
	UpdateProduct(context.Context, *models.Product) (*models.Product, error)
	SoftDeleteProduct(ctx context.Context, id, actor uuid.UUID, at time.Time) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID, withDeleted bool) (*models.Product, error)
	FindBySKU(ctx context.Context, sku string) (*models.Product, error)
	ListProducts(ctx context.Context, filters ProductListFilters, params pagination.Params) ([]models.Product, int64, error)
}

// Repository wires together product persistence helpers.
type Repository struct {
	db *gorm.DB
}

var _ ProductRepository = (*Repository)(nil)

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByID loads the product. Soft-deleted rows are only returned when withDeleted is set.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID, withDeleted bool) (*models.Product, error) {
	query := r.db.WithContext(ctx)
	if withDeleted {
		query = query.Unscoped()
	}
	var product models.Product
	if err := query.First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindBySKU looks up a SKU across live and soft-deleted products, since the
// unique index spans both.
func (r *Repository) FindBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Unscoped().First(&product, "sku = ?", sku).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// CreateProduct inserts a new product row.
func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// UpdateProduct updates an existing product row.
func (r *Repository) UpdateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Save(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// SoftDeleteProduct stamps deleted_at/deleted_by. It reports false when no live row matched.
func (r *Repository) SoftDeleteProduct(ctx context.Context, id, actor uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"deleted_at": at,
			"deleted_by": actor,
			"updated_by": actor,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListProducts pages products ordered by SKU.
func (r *Repository) ListProducts(ctx context.Context, filters ProductListFilters, params pagination.Params) ([]models.Product, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Product{})
	if filters.WithDeleted {
		query = query.Unscoped()
	}
	if q := strings.TrimSpace(filters.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(sku) LIKE ? OR LOWER(name) LIKE ?", like, like)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	params = params.Normalize()
	var rows []models.Product
	if err := query.
		Order("sku ASC").
		Limit(params.Limit).
		Offset(params.Offset()).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
