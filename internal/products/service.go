package product

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ombhut175/RetailFlow-sub002/pkg/db"
	"github.com/ombhut175/RetailFlow-sub002/pkg/db/models"
	pkgerrors "github.com/ombhut175/RetailFlow-sub002/pkg/errors"
	"github.com/ombhut175/RetailFlow-sub002/pkg/pagination"
)

const skuConstraint = "products_sku_key"

// Service exposes catalogue product management operations.
type Service interface {
	CreateProduct(ctx context.Context, actor uuid.UUID, input CreateProductInput) (*ProductDTO, error)
	GetProduct(ctx context.Context, productID uuid.UUID, withDeleted bool) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, actor, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, actor, productID uuid.UUID) error
	ListProducts(ctx context.Context, input ListProductsInput) (pagination.Page[ProductDTO], error)
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	SKU               string
	Name              string
	Description       *string
	MinimumStockLevel *int
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	SKU               *string
	Name              *string
	Description       *string
	MinimumStockLevel *int
}

// service implements the product service.
type service struct {
	repo                *Repository
	dbClient            *db.Client
	defaultMinimumLevel int
	now                 func() time.Time
}

// NewService constructs a product service instance.
func NewService(repo *Repository, dbClient *db.Client, defaultMinimumLevel int) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if defaultMinimumLevel < 0 {
		return nil, fmt.Errorf("default minimum stock level must be non-negative")
	}
	return &service{
		repo:                repo,
		dbClient:            dbClient,
		defaultMinimumLevel: defaultMinimumLevel,
		now:                 time.Now,
	}, nil
}

// CreateProduct registers a new SKU.
func (s *service) CreateProduct(ctx context.Context, actor uuid.UUID, input CreateProductInput) (*ProductDTO, error) {
	if err := validateActor(actor); err != nil {
		return nil, err
	}
	sku := strings.TrimSpace(input.SKU)
	name := strings.TrimSpace(input.Name)
	if sku == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku is required")
	}
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	minimum := s.defaultMinimumLevel
	if input.MinimumStockLevel != nil {
		minimum = *input.MinimumStockLevel
	}
	if err := validateMinimumStockLevel(minimum); err != nil {
		return nil, err
	}

	var created *models.Product
	if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := ensureSKUAvailable(ctx, txRepo, sku, uuid.Nil); err != nil {
			return err
		}

		product, err := txRepo.CreateProduct(ctx, &models.Product{
			SKU:               sku,
			Name:              name,
			Description:       input.Description,
			MinimumStockLevel: minimum,
			CreatedBy:         actor,
			UpdatedBy:         actor,
		})
		if err != nil {
			if db.IsUniqueViolation(err, skuConstraint) || db.IsUniqueViolation(err, "") {
				return skuConflict(sku)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert product")
		}
		created = product
		return nil
	}); err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}

	return NewProductDTO(created), nil
}

// GetProduct loads a single product.
func (s *service) GetProduct(ctx context.Context, productID uuid.UUID, withDeleted bool) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, productID, withDeleted)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return NewProductDTO(product), nil
}

// UpdateProduct applies a partial update.
func (s *service) UpdateProduct(ctx context.Context, actor, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	if err := validateActor(actor); err != nil {
		return nil, err
	}
	if input.SKU != nil && strings.TrimSpace(*input.SKU) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku must not be empty")
	}
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name must not be empty")
	}
	if input.MinimumStockLevel != nil {
		if err := validateMinimumStockLevel(*input.MinimumStockLevel); err != nil {
			return nil, err
		}
	}

	var updated *models.Product
	if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		product, err := txRepo.FindByID(ctx, productID, false)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}

		if input.SKU != nil {
			sku := strings.TrimSpace(*input.SKU)
			if sku != product.SKU {
				if err := ensureSKUAvailable(ctx, txRepo, sku, product.ID); err != nil {
					return err
				}
			}
		}
		applyUpdateToProduct(product, input)
		product.UpdatedBy = actor

		saved, err := txRepo.UpdateProduct(ctx, product)
		if err != nil {
			if db.IsUniqueViolation(err, skuConstraint) || db.IsUniqueViolation(err, "") {
				return skuConflict(product.SKU)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
		}
		updated = saved
		return nil
	}); err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}

	return NewProductDTO(updated), nil
}

// DeleteProduct soft-deletes the product. Its stock row and history are left untouched.
func (s *service) DeleteProduct(ctx context.Context, actor, productID uuid.UUID) error {
	if err := validateActor(actor); err != nil {
		return err
	}
	ok, err := s.repo.SoftDeleteProduct(ctx, productID, actor, s.now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

// ListProducts pages the catalogue.
func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (pagination.Page[ProductDTO], error) {
	params := input.Pagination.Normalize()
	rows, total, err := s.repo.ListProducts(ctx, input.Filters, params)
	if err != nil {
		return pagination.Page[ProductDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	items := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		items = append(items, *NewProductDTO(&rows[i]))
	}
	return pagination.NewPage(items, total, params), nil
}

func ensureSKUAvailable(ctx context.Context, repo *Repository, sku string, self uuid.UUID) error {
	existing, err := repo.FindBySKU(ctx, sku)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check sku")
	}
	if existing.ID == self {
		return nil
	}
	return skuConflict(sku)
}

func skuConflict(sku string) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "sku already exists").
		WithDetails(map[string]any{"sku": sku})
}

func validateActor(actor uuid.UUID) error {
	if actor == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "actor is required")
	}
	return nil
}

func validateMinimumStockLevel(value int) error {
	if value < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "minimum_stock_level must be non-negative")
	}
	return nil
}

func applyUpdateToProduct(product *models.Product, input UpdateProductInput) {
	if input.SKU != nil {
		product.SKU = strings.TrimSpace(*input.SKU)
	}
	if input.Name != nil {
		product.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		product.Description = input.Description
	}
	if input.MinimumStockLevel != nil {
		product.MinimumStockLevel = *input.MinimumStockLevel
	}
}
