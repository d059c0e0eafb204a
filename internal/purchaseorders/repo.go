package purchaseorders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ombhut175/RetailFlow-sub002/pkg/db/models"
	"github.com/ombhut175/RetailFlow-sub002/pkg/enums"
	"github.com/ombhut175/RetailFlow-sub002/pkg/pagination"
)

// Repository persists purchase orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.PurchaseOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.PurchaseOrder, int64, error)
	ExistingProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error)
	Transition(ctx context.Context, change StatusChange) (bool, error)
	Touch(ctx context.Context, orderID uuid.UUID, status enums.PurchaseOrderStatus, actor uuid.UUID, at time.Time) (bool, error)
	IncrementReceived(ctx context.Context, orderID, itemID uuid.UUID, qty int) (bool, error)
}

// ListFilter narrows purchase order listings.
type ListFilter struct {
	Status *enums.PurchaseOrderStatus
}

// StatusChange moves an order to Status when it is currently in one of From.
// The matching timestamp column is stamped for ORDERED, RECEIVED and CANCELLED.
type StatusChange struct {
	OrderID uuid.UUID
	From    []enums.PurchaseOrderStatus
	Status  enums.PurchaseOrderStatus
	Actor   uuid.UUID
	At      time.Time
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds a purchase order repository to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.PurchaseOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error) {
	var order models.PurchaseOrder
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.PurchaseOrder, int64, error) {
	base := func() *gorm.DB {
		query := r.db.WithContext(ctx).Model(&models.PurchaseOrder{})
		if filter.Status != nil {
			query = query.Where("status = ?", *filter.Status)
		}
		return query
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	params = params.Normalize()
	var rows []models.PurchaseOrder
	err := base().
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Order("created_at DESC").
		Order("id DESC").
		Limit(params.Limit).
		Offset(params.Offset()).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *repository) ExistingProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	found := make(map[uuid.UUID]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	var rows []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id IN ?", ids).
		Pluck("id", &rows).Error
	if err != nil {
		return nil, err
	}
	for _, id := range rows {
		found[id] = true
	}
	return found, nil
}

func (r *repository) Transition(ctx context.Context, change StatusChange) (bool, error) {
	updates := map[string]any{
		"status":     change.Status,
		"updated_by": change.Actor,
		"updated_at": change.At,
	}
	switch change.Status {
	case enums.PurchaseOrderStatusOrdered:
		updates["ordered_at"] = change.At
	case enums.PurchaseOrderStatusReceived:
		updates["received_at"] = change.At
	case enums.PurchaseOrderStatusCancelled:
		updates["cancelled_at"] = change.At
	}

	res := r.db.WithContext(ctx).
		Model(&models.PurchaseOrder{}).
		Where("id = ? AND status IN ?", change.OrderID, change.From).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Touch stamps the audit columns while the order is still in status.
func (r *repository) Touch(ctx context.Context, orderID uuid.UUID, status enums.PurchaseOrderStatus, actor uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PurchaseOrder{}).
		Where("id = ? AND status = ?", orderID, status).
		Updates(map[string]any{"updated_by": actor, "updated_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// IncrementReceived books qty against an item only while enough is still outstanding.
func (r *repository) IncrementReceived(ctx context.Context, orderID, itemID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PurchaseOrderItem{}).
		Where("id = ? AND purchase_order_id = ?", itemID, orderID).
		Where("quantity_ordered - quantity_received >= ?", qty).
		Updates(map[string]any{
			"quantity_received": gorm.Expr("quantity_received + ?", qty),
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
