package stock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ombhut175/RetailFlow-sub002/pkg/db/models"
	"github.com/ombhut175/RetailFlow-sub002/pkg/enums"
	"github.com/ombhut175/RetailFlow-sub002/pkg/pagination"
)

// Repository persists stock rows and their transaction log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ProductExists(ctx context.Context, productID uuid.UUID) (bool, error)
	Create(ctx context.Context, stock *models.Stock) error
	FindView(ctx context.Context, productID uuid.UUID, withDeleted bool) (*StockView, error)
	ApplyDelta(ctx context.Context, change Delta) (bool, error)
	SetQuantities(ctx context.Context, change Absolute) (bool, error)
	SoftDelete(ctx context.Context, productID, actor uuid.UUID, at time.Time) (bool, error)
	AppendTransaction(ctx context.Context, txn *models.StockTransaction) error
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]StockView, int64, error)
	ListLow(ctx context.Context, limit int) ([]StockView, error)
	ListProductIDs(ctx context.Context, afterID *uuid.UUID, limit int) ([]uuid.UUID, error)
	ListTransactions(ctx context.Context, filter TransactionFilter, params pagination.Params) ([]models.StockTransaction, int64, error)
	TransactionsBefore(ctx context.Context, filter TransactionFilter, cursor *pagination.Cursor, limit int) ([]models.StockTransaction, error)
	TransactionsBySequence(ctx context.Context, productID uuid.UUID, afterSequence int64, limit int) ([]models.StockTransaction, error)
}

// StockView is a stock row joined with the catalogue fields the ledger reports on.
type StockView struct {
	models.Stock      `gorm:"embedded"`
	SKU               string `gorm:"column:sku"`
	ProductName       string `gorm:"column:product_name"`
	MinimumStockLevel int    `gorm:"column:minimum_stock_level"`
}

// Delta is a guarded relative change to both counters.
type Delta struct {
	ProductID      uuid.UUID
	AvailableDelta int
	ReservedDelta  int
	Actor          uuid.UUID
	At             time.Time
}

// Absolute overwrites both counters when the row is still at ExpectedVersion.
type Absolute struct {
	ProductID         uuid.UUID
	QuantityAvailable int
	QuantityReserved  int
	ExpectedVersion   int64
	Actor             uuid.UUID
	At                time.Time
}

// ListFilter narrows stock listings.
type ListFilter struct {
	ProductID   *uuid.UUID
	LowStock    *bool
	WithDeleted bool
}

// TransactionFilter narrows transaction history queries.
type TransactionFilter struct {
	ProductID       *uuid.UUID
	TransactionType *enums.StockTransactionType
	ReferenceType   *enums.StockReferenceType
	ReferenceID     *uuid.UUID
	CreatedBy       *uuid.UUID
	From            *time.Time
	To              *time.Time
}

const viewColumns = "stocks.*, COALESCE(products.sku, '') AS sku, COALESCE(products.name, '') AS product_name, COALESCE(products.minimum_stock_level, 0) AS minimum_stock_level"

const lowStockCondition = "(stocks.quantity_available + stocks.quantity_reserved) < COALESCE(products.minimum_stock_level, 0)"

type repository struct {
	db *gorm.DB
}

// NewRepository returns a stock repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ProductExists(ctx context.Context, productID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) Create(ctx context.Context, stock *models.Stock) error {
	return r.db.WithContext(ctx).Create(stock).Error
}

func (r *repository) FindView(ctx context.Context, productID uuid.UUID, withDeleted bool) (*StockView, error) {
	query := r.viewQuery(ctx).Select(viewColumns).Where("stocks.product_id = ?", productID)
	if !withDeleted {
		query = query.Where("stocks.deleted_at IS NULL")
	}
	var view StockView
	if err := query.Take(&view).Error; err != nil {
		return nil, err
	}
	return &view, nil
}

// ApplyDelta performs the guarded counter update. It reports false when the
// row is missing, soft-deleted, or either counter would leave [0, MaxQuantity].
func (r *repository) ApplyDelta(ctx context.Context, change Delta) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Stock{}).
		Where("product_id = ?", change.ProductID).
		Where("quantity_available + ? >= 0", change.AvailableDelta).
		Where("quantity_reserved + ? >= 0", change.ReservedDelta).
		Where("quantity_available + ? <= ?", change.AvailableDelta, MaxQuantity).
		Where("quantity_reserved + ? <= ?", change.ReservedDelta, MaxQuantity).
		Updates(map[string]any{
			"quantity_available": gorm.Expr("quantity_available + ?", change.AvailableDelta),
			"quantity_reserved":  gorm.Expr("quantity_reserved + ?", change.ReservedDelta),
			"version":            gorm.Expr("version + 1"),
			"updated_by":         change.Actor,
			"updated_at":         change.At,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) SetQuantities(ctx context.Context, change Absolute) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Stock{}).
		Where("product_id = ? AND version = ?", change.ProductID, change.ExpectedVersion).
		Updates(map[string]any{
			"quantity_available": change.QuantityAvailable,
			"quantity_reserved":  change.QuantityReserved,
			"version":            gorm.Expr("version + 1"),
			"updated_by":         change.Actor,
			"updated_at":         change.At,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) SoftDelete(ctx context.Context, productID, actor uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Stock{}).
		Where("product_id = ?", productID).
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

func (r *repository) AppendTransaction(ctx context.Context, txn *models.StockTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]StockView, int64, error) {
	query := r.viewQuery(ctx)
	if !filter.WithDeleted {
		query = query.Where("stocks.deleted_at IS NULL")
	}
	if filter.ProductID != nil {
		query = query.Where("stocks.product_id = ?", *filter.ProductID)
	}
	if filter.LowStock != nil {
		if *filter.LowStock {
			query = query.Where(lowStockCondition)
		} else {
			query = query.Where("NOT " + lowStockCondition)
		}
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	params = params.Normalize()
	var rows []StockView
	if err := query.
		Select(viewColumns).
		Order("stocks.updated_at DESC").
		Order("stocks.product_id ASC").
		Limit(params.Limit).
		Offset(params.Offset()).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *repository) ListLow(ctx context.Context, limit int) ([]StockView, error) {
	query := r.viewQuery(ctx).
		Select(viewColumns).
		Where("stocks.deleted_at IS NULL").
		Where(lowStockCondition).
		Order("(stocks.quantity_available + stocks.quantity_reserved) ASC").
		Order("stocks.product_id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []StockView
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListProductIDs walks live stock rows in product id order for batch jobs.
func (r *repository) ListProductIDs(ctx context.Context, afterID *uuid.UUID, limit int) ([]uuid.UUID, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Stock{}).
		Order("product_id ASC").
		Limit(limit)
	if afterID != nil {
		query = query.Where("product_id > ?", *afterID)
	}
	var ids []uuid.UUID
	if err := query.Pluck("product_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) ListTransactions(ctx context.Context, filter TransactionFilter, params pagination.Params) ([]models.StockTransaction, int64, error) {
	query := applyTransactionFilter(r.db.WithContext(ctx).Model(&models.StockTransaction{}), filter)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	params = params.Normalize()
	var rows []models.StockTransaction
	if err := orderNewestFirst(query).
		Limit(params.Limit).
		Offset(params.Offset()).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// TransactionsBefore returns the next keyset page strictly after cursor in
// newest-first order. A nil cursor starts from the newest row.
func (r *repository) TransactionsBefore(ctx context.Context, filter TransactionFilter, cursor *pagination.Cursor, limit int) ([]models.StockTransaction, error) {
	query := applyTransactionFilter(r.db.WithContext(ctx).Model(&models.StockTransaction{}), filter)
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND sequence < ?) OR (created_at = ? AND sequence = ? AND id < ?)",
			cursor.CreatedAt,
			cursor.CreatedAt, cursor.Sequence,
			cursor.CreatedAt, cursor.Sequence, cursor.ID,
		)
	}
	var rows []models.StockTransaction
	if err := orderNewestFirst(query).Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// TransactionsBySequence returns one product's log in commit order.
func (r *repository) TransactionsBySequence(ctx context.Context, productID uuid.UUID, afterSequence int64, limit int) ([]models.StockTransaction, error) {
	var rows []models.StockTransaction
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND sequence > ?", productID, afterSequence).
		Order("sequence ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) viewQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Unscoped().
		Table("stocks").
		Joins("LEFT JOIN products ON products.id = stocks.product_id")
}

func applyTransactionFilter(query *gorm.DB, filter TransactionFilter) *gorm.DB {
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}
	if filter.TransactionType != nil {
		query = query.Where("transaction_type = ?", *filter.TransactionType)
	}
	if filter.ReferenceType != nil {
		query = query.Where("reference_type = ?", *filter.ReferenceType)
	}
	if filter.ReferenceID != nil {
		query = query.Where("reference_id = ?", *filter.ReferenceID)
	}
	if filter.CreatedBy != nil {
		query = query.Where("created_by = ?", *filter.CreatedBy)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}
	return query
}

func orderNewestFirst(query *gorm.DB) *gorm.DB {
	return query.
		Order("created_at DESC").
		Order("sequence DESC").
		Order("id DESC")
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
