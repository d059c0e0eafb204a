package stock

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ombhut175/RetailFlow-sub002/pkg/config"
	"github.com/ombhut175/RetailFlow-sub002/pkg/db"
	"github.com/ombhut175/RetailFlow-sub002/pkg/db/models"
	"github.com/ombhut175/RetailFlow-sub002/pkg/enums"
	pkgerrors "github.com/ombhut175/RetailFlow-sub002/pkg/errors"
	"github.com/ombhut175/RetailFlow-sub002/pkg/logger"
	"github.com/ombhut175/RetailFlow-sub002/pkg/metrics"
	"github.com/ombhut175/RetailFlow-sub002/pkg/outbox"
	"github.com/ombhut175/RetailFlow-sub002/pkg/pagination"
)

// Service is the stock ledger. Every mutation updates the counters and appends
// exactly one StockTransaction inside a single database transaction.
type Service interface {
	CreateStock(ctx context.Context, input CreateStockInput) (*StockDTO, error)
	GetStock(ctx context.Context, productID uuid.UUID, withDeleted bool) (*StockDTO, error)
	GetStockSummary(ctx context.Context, productID uuid.UUID) (*SummaryDTO, error)
	ListStock(ctx context.Context, filter ListFilter, params pagination.Params) (pagination.Page[StockDTO], error)
	ListLowStock(ctx context.Context, limit int) ([]SummaryDTO, error)
	UpdateStock(ctx context.Context, productID uuid.UUID, input UpdateStockInput) (*StockDTO, error)
	AdjustStock(ctx context.Context, productID uuid.UUID, input AdjustStockInput) (*StockDTO, error)
	ReserveStock(ctx context.Context, productID uuid.UUID, input MovementInput) (*StockDTO, error)
	ReleaseStock(ctx context.Context, productID uuid.UUID, input MovementInput) (*StockDTO, error)
	ReceiveStock(ctx context.Context, productID uuid.UUID, input MovementInput) (*StockDTO, error)
	ReceiveStockTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, input MovementInput) (*TransactionDTO, error)
	ConsumeStock(ctx context.Context, productID uuid.UUID, input ConsumeInput) (*StockDTO, error)
	DeleteStock(ctx context.Context, productID, actor uuid.UUID) error
	RecordTransaction(ctx context.Context, input RecordTransactionInput) (*TransactionDTO, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) (iter.Seq2[TransactionDTO, error], error)
	ListTransactionsPage(ctx context.Context, filter TransactionFilter, params pagination.Params) (pagination.Page[TransactionDTO], error)
	Reconcile(ctx context.Context, productID uuid.UUID) (*ReconcileReport, error)
	ForEachProduct(ctx context.Context, fn func(productID uuid.UUID) error) error
}

// CreateStockInput opens a stock row for a product. A non-zero
// QuantityReserved is booked as an immediate reservation.
type CreateStockInput struct {
	ProductID         uuid.UUID
	QuantityAvailable int
	QuantityReserved  int
	Notes             *string
	Actor             uuid.UUID
}

// MovementInput carries the common fields of reserve, release, receive and consume.
type MovementInput struct {
	Quantity      int
	ReferenceType *enums.StockReferenceType
	ReferenceID   *uuid.UUID
	Notes         *string
	Actor         uuid.UUID
}

// AdjustStockInput applies a signed correction to the available counter.
type AdjustStockInput struct {
	Delta         int
	ReferenceType *enums.StockReferenceType
	ReferenceID   *uuid.UUID
	Notes         *string
	Actor         uuid.UUID
}

// ConsumeInput depletes stock. Source overrides the configured default counter.
type ConsumeInput struct {
	MovementInput
	Source *enums.ConsumeSource
}

// UpdateStockInput sets absolute counter values. When ExpectedVersion is set
// the update only applies if the row is still at that version.
type UpdateStockInput struct {
	QuantityAvailable *int
	QuantityReserved  *int
	ExpectedVersion   *int64
	Notes             *string
	Actor             uuid.UUID
}

// RecordTransactionInput is a typed ledger entry routed to the matching operation.
type RecordTransactionInput struct {
	ProductID       uuid.UUID
	TransactionType enums.StockTransactionType
	Quantity        int
	ReferenceType   *enums.StockReferenceType
	ReferenceID     *uuid.UUID
	Notes           *string
	Source          *enums.ConsumeSource
	Actor           uuid.UUID
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wires the ledger dependencies.
type ServiceParams struct {
	Tx      txRunner
	Repo    Repository
	Outbox  outbox.Emitter
	Metrics *metrics.LedgerMetrics
	Logger  *logger.Logger
	Config  config.StockConfig
	Clock   func() time.Time
}

type service struct {
	tx            txRunner
	repo          Repository
	outbox        outbox.Emitter
	metrics       *metrics.LedgerMetrics
	logg          *logger.Logger
	consumeSource enums.ConsumeSource
	batchSize     int
	now           func() time.Time
}

// NewService builds the stock ledger service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}

	source := enums.ConsumeFromAvailable
	if params.Config.ConsumeSource != "" {
		parsed, err := enums.ParseConsumeSource(params.Config.ConsumeSource)
		if err != nil {
			return nil, err
		}
		source = parsed
	}

	batchSize := params.Config.TransactionPageLimit
	if batchSize <= 0 {
		batchSize = pagination.MaxLimit
	}

	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}

	return &service{
		tx:            params.Tx,
		repo:          params.Repo,
		outbox:        params.Outbox,
		metrics:       params.Metrics,
		logg:          params.Logger,
		consumeSource: source,
		batchSize:     batchSize,
		now:           clock,
	}, nil
}

func (s *service) CreateStock(ctx context.Context, input CreateStockInput) (*StockDTO, error) {
	start := time.Now()
	if err := validateCreate(input); err != nil {
		s.observe("create", start, err)
		return nil, err
	}

	var created *StockView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		exists, err := repo.ProductExists(ctx, input.ProductID)
		if err != nil {
			return wrapDBError(err, "check product")
		}
		if !exists {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": input.ProductID})
		}

		if _, err := repo.FindView(ctx, input.ProductID, true); err == nil {
			return duplicateStockError(input.ProductID)
		} else if !isNotFound(err) {
			return wrapDBError(err, "check existing stock")
		}

		now := s.timestamp()
		opening := input.QuantityAvailable + input.QuantityReserved
		row := &models.Stock{
			ProductID:         input.ProductID,
			QuantityAvailable: opening,
			InitialAvailable:  opening,
			CreatedBy:         input.Actor,
			UpdatedBy:         input.Actor,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := repo.Create(ctx, row); err != nil {
			if db.IsUniqueViolation(err, "") {
				return duplicateStockError(input.ProductID)
			}
			return wrapDBError(err, "create stock")
		}

		if input.QuantityReserved > 0 {
			res, err := s.apply(ctx, tx, mutation{
				operation:      "reserve",
				productID:      input.ProductID,
				txType:         enums.StockTransactionReserved,
				quantity:       input.QuantityReserved,
				availableDelta: -input.QuantityReserved,
				reservedDelta:  input.QuantityReserved,
				referenceType:  enums.StockReferenceSale,
				notes:          input.Notes,
				actor:          input.Actor,
			})
			if err != nil {
				return err
			}
			created = &res.view
			return nil
		}

		view, err := repo.FindView(ctx, input.ProductID, false)
		if err != nil {
			return wrapDBError(err, "reload stock")
		}
		created = view
		return nil
	})
	s.observe("create", start, err)
	if err != nil {
		return nil, wrapDBError(err, "create stock")
	}

	s.logMutation(ctx, "create", created, nil)
	dto := toStockDTO(*created)
	return &dto, nil
}

func (s *service) GetStock(ctx context.Context, productID uuid.UUID, withDeleted bool) (*StockDTO, error) {
	view, err := s.load(ctx, productID, withDeleted)
	if err != nil {
		return nil, err
	}
	dto := toStockDTO(*view)
	return &dto, nil
}

func (s *service) GetStockSummary(ctx context.Context, productID uuid.UUID) (*SummaryDTO, error) {
	view, err := s.load(ctx, productID, false)
	if err != nil {
		return nil, err
	}
	dto := toSummaryDTO(*view)
	return &dto, nil
}

func (s *service) ListStock(ctx context.Context, filter ListFilter, params pagination.Params) (pagination.Page[StockDTO], error) {
	params = params.Normalize()
	rows, total, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return pagination.Page[StockDTO]{}, wrapDBError(err, "list stock")
	}
	items := make([]StockDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, toStockDTO(row))
	}
	return pagination.NewPage(items, total, params), nil
}

func (s *service) ListLowStock(ctx context.Context, limit int) ([]SummaryDTO, error) {
	rows, err := s.repo.ListLow(ctx, limit)
	if err != nil {
		return nil, wrapDBError(err, "list low stock")
	}
	out := make([]SummaryDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toSummaryDTO(row))
	}
	return out, nil
}

func (s *service) UpdateStock(ctx context.Context, productID uuid.UUID, input UpdateStockInput) (*StockDTO, error) {
	start := time.Now()
	if err := validateUpdate(productID, input); err != nil {
		s.observe("update", start, err)
		return nil, err
	}

	var (
		updated *StockView
		changed *result
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindView(ctx, productID, false)
		if err != nil {
			if isNotFound(err) {
				return stockNotFound(productID)
			}
			return wrapDBError(err, "load stock")
		}
		if input.ExpectedVersion != nil && *input.ExpectedVersion != current.Version {
			return versionConflict(productID, *input.ExpectedVersion, current.Version)
		}

		available := current.QuantityAvailable
		if input.QuantityAvailable != nil {
			available = *input.QuantityAvailable
		}
		reserved := current.QuantityReserved
		if input.QuantityReserved != nil {
			reserved = *input.QuantityReserved
		}
		m := mutation{
			operation:      "update",
			productID:      productID,
			txType:         enums.StockTransactionAdjustment,
			quantity:       available - current.QuantityAvailable,
			availableDelta: available - current.QuantityAvailable,
			reservedDelta:  reserved - current.QuantityReserved,
			referenceType:  enums.StockReferenceAdjustment,
			notes:          input.Notes,
			actor:          input.Actor,
		}
		if m.availableDelta == 0 && m.reservedDelta == 0 {
			updated = current
			return nil
		}

		now := s.timestamp()
		ok, err := repo.SetQuantities(ctx, Absolute{
			ProductID:         productID,
			QuantityAvailable: available,
			QuantityReserved:  reserved,
			ExpectedVersion:   current.Version,
			Actor:             input.Actor,
			At:                now,
		})
		if err != nil {
			return wrapDBError(err, "update stock counters")
		}
		if !ok {
			return versionConflict(productID, current.Version, -1)
		}
		res, err := s.record(ctx, tx, m, now)
		if err != nil {
			return err
		}
		changed = res
		updated = &res.view
		return nil
	})
	s.observe("update", start, err)
	if err != nil {
		return nil, wrapDBError(err, "update stock")
	}
	if changed != nil {
		s.afterCommit(ctx, "update", changed)
	}
	dto := toStockDTO(*updated)
	return &dto, nil
}

func (s *service) AdjustStock(ctx context.Context, productID uuid.UUID, input AdjustStockInput) (*StockDTO, error) {
	res, err := s.run(ctx, "adjust", func() (mutation, error) {
		return adjustMutation(productID, input)
	})
	if err != nil {
		return nil, err
	}
	dto := toStockDTO(res.view)
	return &dto, nil
}

func (s *service) ReserveStock(ctx context.Context, productID uuid.UUID, input MovementInput) (*StockDTO, error) {
	res, err := s.run(ctx, "reserve", func() (mutation, error) {
		return reserveMutation(productID, input)
	})
	if err != nil {
		return nil, err
	}
	dto := toStockDTO(res.view)
	return &dto, nil
}

func (s *service) ReleaseStock(ctx context.Context, productID uuid.UUID, input MovementInput) (*StockDTO, error) {
	res, err := s.run(ctx, "release", func() (mutation, error) {
		return releaseMutation(productID, input)
	})
	if err != nil {
		return nil, err
	}
	dto := toStockDTO(res.view)
	return &dto, nil
}

func (s *service) ReceiveStock(ctx context.Context, productID uuid.UUID, input MovementInput) (*StockDTO, error) {
	res, err := s.run(ctx, "receive", func() (mutation, error) {
		return receiveMutation(productID, input)
	})
	if err != nil {
		return nil, err
	}
	dto := toStockDTO(res.view)
	return &dto, nil
}

// ReceiveStockTx books a receipt inside the caller's transaction. The caller
// owns commit and rollback.
func (s *service) ReceiveStockTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, input MovementInput) (*TransactionDTO, error) {
	start := time.Now()
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	m, err := receiveMutation(productID, input)
	if err != nil {
		s.observe("receive", start, err)
		return nil, err
	}
	res, err := s.apply(ctx, tx, m)
	s.observe("receive", start, err)
	if err != nil {
		return nil, err
	}
	dto := toTransactionDTO(res.txn)
	return &dto, nil
}

func (s *service) ConsumeStock(ctx context.Context, productID uuid.UUID, input ConsumeInput) (*StockDTO, error) {
	res, err := s.run(ctx, "consume", func() (mutation, error) {
		return consumeMutation(productID, input, s.consumeSource)
	})
	if err != nil {
		return nil, err
	}
	dto := toStockDTO(res.view)
	return &dto, nil
}

// DeleteStock soft-deletes the row. Transactions are kept.
func (s *service) DeleteStock(ctx context.Context, productID, actor uuid.UUID) error {
	start := time.Now()
	if err := validateProductID(productID); err != nil {
		return err
	}
	if err := validateActor(actor); err != nil {
		return err
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).SoftDelete(ctx, productID, actor, s.timestamp())
		if err != nil {
			return wrapDBError(err, "delete stock")
		}
		if !ok {
			return stockNotFound(productID)
		}
		return nil
	})
	s.observe("delete", start, err)
	if err != nil {
		return wrapDBError(err, "delete stock")
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"product_id": productID.String(),
			"actor_id":   actor.String(),
		})
		s.logg.Info(logCtx, "stock soft deleted")
	}
	return nil
}

// RecordTransaction routes a typed ledger entry to the operation that owns
// its counter movement, so the counters always follow the log.
func (s *service) RecordTransaction(ctx context.Context, input RecordTransactionInput) (*TransactionDTO, error) {
	movement := MovementInput{
		Quantity:      input.Quantity,
		ReferenceType: input.ReferenceType,
		ReferenceID:   input.ReferenceID,
		Notes:         input.Notes,
		Actor:         input.Actor,
	}

	var (
		operation string
		build     func() (mutation, error)
	)
	switch input.TransactionType {
	case enums.StockTransactionIn:
		operation = "receive"
		build = func() (mutation, error) { return receiveMutation(input.ProductID, movement) }
	case enums.StockTransactionOut:
		operation = "consume"
		build = func() (mutation, error) {
			return consumeMutation(input.ProductID, ConsumeInput{MovementInput: movement, Source: input.Source}, s.consumeSource)
		}
	case enums.StockTransactionAdjustment:
		operation = "adjust"
		build = func() (mutation, error) {
			return adjustMutation(input.ProductID, AdjustStockInput{
				Delta:         input.Quantity,
				ReferenceType: input.ReferenceType,
				ReferenceID:   input.ReferenceID,
				Notes:         input.Notes,
				Actor:         input.Actor,
			})
		}
	case enums.StockTransactionReserved:
		operation = "reserve"
		build = func() (mutation, error) { return reserveMutation(input.ProductID, movement) }
	case enums.StockTransactionReleased:
		operation = "release"
		build = func() (mutation, error) { return releaseMutation(input.ProductID, movement) }
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction_type %q", input.TransactionType))
	}

	res, err := s.run(ctx, operation, build)
	if err != nil {
		return nil, err
	}
	dto := toTransactionDTO(res.txn)
	return &dto, nil
}

// ListTransactions returns a lazy newest-first stream over matching
// transactions. Each range over the sequence restarts from the newest row and
// pages through the table with a keyset cursor.
func (s *service) ListTransactions(ctx context.Context, filter TransactionFilter) (iter.Seq2[TransactionDTO, error], error) {
	if err := validateTransactionFilter(filter); err != nil {
		return nil, err
	}
	batchSize := s.batchSize
	return func(yield func(TransactionDTO, error) bool) {
		var cursor *pagination.Cursor
		for {
			rows, err := s.repo.TransactionsBefore(ctx, filter, cursor, batchSize)
			if err != nil {
				yield(TransactionDTO{}, wrapDBError(err, "list stock transactions"))
				return
			}
			for _, row := range rows {
				if !yield(toTransactionDTO(row), nil) {
					return
				}
			}
			if len(rows) < batchSize {
				return
			}
			last := rows[len(rows)-1]
			cursor = &pagination.Cursor{CreatedAt: last.CreatedAt, Sequence: last.Sequence, ID: last.ID}
		}
	}, nil
}

func (s *service) ListTransactionsPage(ctx context.Context, filter TransactionFilter, params pagination.Params) (pagination.Page[TransactionDTO], error) {
	if err := validateTransactionFilter(filter); err != nil {
		return pagination.Page[TransactionDTO]{}, err
	}
	params = params.Normalize()
	rows, total, err := s.repo.ListTransactions(ctx, filter, params)
	if err != nil {
		return pagination.Page[TransactionDTO]{}, wrapDBError(err, "list stock transactions")
	}
	items := make([]TransactionDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, toTransactionDTO(row))
	}
	return pagination.NewPage(items, total, params), nil
}

// ForEachProduct visits every live stock row in product id order.
func (s *service) ForEachProduct(ctx context.Context, fn func(productID uuid.UUID) error) error {
	var after *uuid.UUID
	for {
		ids, err := s.repo.ListProductIDs(ctx, after, s.batchSize)
		if err != nil {
			return wrapDBError(err, "list stock products")
		}
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(id); err != nil {
				return err
			}
		}
		if len(ids) < s.batchSize {
			return nil
		}
		last := ids[len(ids)-1]
		after = &last
	}
}

func (s *service) load(ctx context.Context, productID uuid.UUID, withDeleted bool) (*StockView, error) {
	if err := validateProductID(productID); err != nil {
		return nil, err
	}
	view, err := s.repo.FindView(ctx, productID, withDeleted)
	if err != nil {
		if isNotFound(err) {
			return nil, stockNotFound(productID)
		}
		return nil, wrapDBError(err, "load stock")
	}
	return view, nil
}

func (s *service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *service) observe(operation string, start time.Time, err error) {
	s.metrics.Observe(operation, outcomeFor(err), time.Since(start))
}

func outcomeFor(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		return metrics.OutcomeError
	}
	switch typed.Code() {
	case pkgerrors.CodeInternal, pkgerrors.CodeDependency:
		return metrics.OutcomeError
	default:
		return metrics.OutcomeRejected
	}
}
