package purchaseorders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ombhut175/RetailFlow-sub002/internal/stock"
	"github.com/ombhut175/RetailFlow-sub002/pkg/db/models"
	"github.com/ombhut175/RetailFlow-sub002/pkg/enums"
	pkgerrors "github.com/ombhut175/RetailFlow-sub002/pkg/errors"
	"github.com/ombhut175/RetailFlow-sub002/pkg/logger"
	"github.com/ombhut175/RetailFlow-sub002/pkg/outbox"
	"github.com/ombhut175/RetailFlow-sub002/pkg/outbox/payloads"
	"github.com/ombhut175/RetailFlow-sub002/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// StockReceiver books goods receipts into the stock ledger inside the caller's transaction.
type StockReceiver interface {
	ReceiveStockTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, input stock.MovementInput) (*stock.TransactionDTO, error)
}

// Service manages the purchase order lifecycle.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*PurchaseOrderDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*PurchaseOrderDTO, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) (pagination.Page[PurchaseOrderDTO], error)
	Submit(ctx context.Context, id, actor uuid.UUID) (*PurchaseOrderDTO, error)
	Receive(ctx context.Context, input ReceiveInput) (*PurchaseOrderDTO, error)
	Cancel(ctx context.Context, id, actor uuid.UUID) (*PurchaseOrderDTO, error)
}

// CreateInput describes a new purchase order. Submit places it immediately.
type CreateInput struct {
	SupplierReference *string
	Notes             *string
	ExpectedAt        *time.Time
	Items             []ItemInput
	Submit            bool
	Actor             uuid.UUID
}

// ItemInput is a requested line. UnitCost is a decimal string such as "12.50".
type ItemInput struct {
	ProductID       uuid.UUID
	QuantityOrdered int
	UnitCost        string
}

// ReceiveInput books delivered quantities against order items.
type ReceiveInput struct {
	PurchaseOrderID uuid.UUID
	Lines           []ReceiveLine
	Notes           *string
	Actor           uuid.UUID
}

// ReceiveLine is the quantity delivered for one item.
type ReceiveLine struct {
	ItemID   uuid.UUID
	Quantity int
}

// ServiceParams wires purchase order dependencies.
type ServiceParams struct {
	Tx      txRunner
	Repo    Repository
	Stock   StockReceiver
	Outbox  outbox.Emitter
	Numbers NumberGenerator
	Logger  *logger.Logger
	Clock   func() time.Time
}

type service struct {
	tx      txRunner
	repo    Repository
	stock   StockReceiver
	outbox  outbox.Emitter
	numbers NumberGenerator
	logg    *logger.Logger
	now     func() time.Time
}

var (
	receivableStatuses  = []enums.PurchaseOrderStatus{enums.PurchaseOrderStatusOrdered, enums.PurchaseOrderStatusPartiallyReceived}
	cancellableStatuses = []enums.PurchaseOrderStatus{enums.PurchaseOrderStatusDraft, enums.PurchaseOrderStatusOrdered}
)

// NewService builds a purchase order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("purchase order repository required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock receiver required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Numbers == nil {
		return nil, fmt.Errorf("number generator required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		tx:      params.Tx,
		repo:    params.Repo,
		stock:   params.Stock,
		outbox:  params.Outbox,
		numbers: params.Numbers,
		logg:    params.Logger,
		now:     clock,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*PurchaseOrderDTO, error) {
	if input.Actor == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor is required")
	}
	items, err := buildItems(input.Items)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	order := &models.PurchaseOrder{
		Number:            s.numbers.Next(),
		SupplierReference: trimmed(input.SupplierReference),
		Status:            enums.PurchaseOrderStatusDraft,
		Notes:             input.Notes,
		ExpectedAt:        input.ExpectedAt,
		CreatedBy:         input.Actor,
		UpdatedBy:         input.Actor,
		Items:             items,
	}
	if input.Submit {
		order.Status = enums.PurchaseOrderStatusOrdered
		order.OrderedAt = &now
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		ids := make([]uuid.UUID, 0, len(items))
		for _, item := range items {
			ids = append(ids, item.ProductID)
		}
		existing, err := repo.ExistingProducts(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check products")
		}
		for _, id := range ids {
			if !existing[id] {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
					WithDetails(map[string]any{"product_id": id})
			}
		}

		if err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create purchase order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, order.ID)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*PurchaseOrderDTO, error) {
	order, err := s.load(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	return toPurchaseOrderDTO(order), nil
}

func (s *service) List(ctx context.Context, filter ListFilter, params pagination.Params) (pagination.Page[PurchaseOrderDTO], error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return pagination.Page[PurchaseOrderDTO]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	params = params.Normalize()
	rows, total, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return pagination.Page[PurchaseOrderDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list purchase orders")
	}
	out := make([]PurchaseOrderDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *toPurchaseOrderDTO(&rows[i]))
	}
	return pagination.NewPage(out, total, params), nil
}

// Submit places a draft order with the supplier.
func (s *service) Submit(ctx context.Context, id, actor uuid.UUID) (*PurchaseOrderDTO, error) {
	return s.transition(ctx, id, actor, enums.PurchaseOrderStatusOrdered,
		[]enums.PurchaseOrderStatus{enums.PurchaseOrderStatusDraft}, "purchase order can only be submitted from DRAFT")
}

// Cancel closes an order that has not received any goods.
func (s *service) Cancel(ctx context.Context, id, actor uuid.UUID) (*PurchaseOrderDTO, error) {
	return s.transition(ctx, id, actor, enums.PurchaseOrderStatusCancelled,
		cancellableStatuses, "purchase order cannot be cancelled in current state")
}

func (s *service) transition(ctx context.Context, id, actor uuid.UUID, target enums.PurchaseOrderStatus, from []enums.PurchaseOrderStatus, conflict string) (*PurchaseOrderDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase order id required")
	}
	if actor == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor is required")
	}

	var result *models.PurchaseOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.Transition(ctx, StatusChange{OrderID: id, From: from, Status: target, Actor: actor, At: s.timestamp()})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update purchase order status")
		}
		order, err := s.load(ctx, repo, id)
		if err != nil {
			return err
		}
		if !ok && order.Status != target {
			return pkgerrors.New(pkgerrors.CodeStateConflict, conflict).
				WithDetails(map[string]any{"status": order.Status})
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toPurchaseOrderDTO(result), nil
}

// Receive books delivered quantities. Item counters, stock receipts, the
// status move and the receipt event commit or roll back together.
func (s *service) Receive(ctx context.Context, input ReceiveInput) (*PurchaseOrderDTO, error) {
	if err := validateReceive(input); err != nil {
		return nil, err
	}

	var result *models.PurchaseOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.timestamp()

		order, err := s.load(ctx, repo, input.PurchaseOrderID)
		if err != nil {
			return err
		}
		if !order.Status.CanReceive() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "purchase order is not open for receipt").
				WithDetails(map[string]any{"status": order.Status})
		}
		// Touch takes the row lock, so a concurrent cancel or receipt either
		// waits for this one or makes it fail here.
		ok, err := repo.Touch(ctx, order.ID, order.Status, input.Actor, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock purchase order")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConcurrentModification, "purchase order changed concurrently")
		}

		items := make(map[uuid.UUID]models.PurchaseOrderItem, len(order.Items))
		for _, item := range order.Items {
			items[item.ID] = item
		}

		reference := enums.StockReferencePurchase
		received := make([]payloads.ReceivedLine, 0, len(input.Lines))
		for _, line := range input.Lines {
			item, found := items[line.ItemID]
			if !found {
				return pkgerrors.New(pkgerrors.CodeNotFound, "purchase order item not found").
					WithDetails(map[string]any{"item_id": line.ItemID})
			}
			ok, err := repo.IncrementReceived(ctx, order.ID, item.ID, line.Quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update received quantity")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity exceeds outstanding amount").
					WithDetails(map[string]any{
						"item_id":     item.ID,
						"requested":   line.Quantity,
						"outstanding": item.Outstanding(),
					})
			}
			orderID := order.ID
			if _, err := s.stock.ReceiveStockTx(ctx, tx, item.ProductID, stock.MovementInput{
				Quantity:      line.Quantity,
				ReferenceType: &reference,
				ReferenceID:   &orderID,
				Notes:         receiptNote(order.Number, input.Notes),
				Actor:         input.Actor,
			}); err != nil {
				return err
			}
			received = append(received, payloads.ReceivedLine{
				ItemID:    item.ID,
				ProductID: item.ProductID,
				Quantity:  line.Quantity,
			})
		}

		updated, err := s.load(ctx, repo, order.ID)
		if err != nil {
			return err
		}
		next := enums.PurchaseOrderStatusReceived
		for _, item := range updated.Items {
			if item.Outstanding() > 0 {
				next = enums.PurchaseOrderStatusPartiallyReceived
				break
			}
		}
		if next != updated.Status {
			if _, err := repo.Transition(ctx, StatusChange{
				OrderID: order.ID,
				From:    receivableStatuses,
				Status:  next,
				Actor:   input.Actor,
				At:      now,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update purchase order status")
			}
			if updated, err = s.load(ctx, repo, order.ID); err != nil {
				return err
			}
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventPurchaseOrderReceived,
			AggregateType: enums.AggregatePurchaseOrder,
			AggregateID:   order.ID,
			ActorID:       input.Actor,
			OccurredAt:    now,
			Data: payloads.PurchaseOrderReceivedEvent{
				PurchaseOrderID: order.ID,
				Number:          order.Number,
				Status:          updated.Status,
				Lines:           received,
				ReceivedAt:      now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit purchase order received event")
		}
		result = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"purchase_order_id": result.ID.String(),
			"number":            result.Number,
			"status":            result.Status,
			"lines":             len(input.Lines),
		})
		s.logg.Info(logCtx, "purchase order received")
	}
	return toPurchaseOrderDTO(result), nil
}

func (s *service) load(ctx context.Context, repo Repository, id uuid.UUID) (*models.PurchaseOrder, error) {
	order, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchase order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase order")
	}
	return order, nil
}

func (s *service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func buildItems(inputs []ItemInput) ([]models.PurchaseOrderItem, error) {
	if len(inputs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	seen := make(map[uuid.UUID]bool, len(inputs))
	items := make([]models.PurchaseOrderItem, 0, len(inputs))
	for i, in := range inputs {
		if in.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required").
				WithDetails(map[string]any{"item": i})
		}
		if seen[in.ProductID] {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate product on purchase order").
				WithDetails(map[string]any{"product_id": in.ProductID})
		}
		seen[in.ProductID] = true
		if in.QuantityOrdered <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity_ordered must be positive").
				WithDetails(map[string]any{"item": i, "quantity_ordered": in.QuantityOrdered})
		}
		if in.QuantityOrdered > stock.MaxQuantity {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, fmt.Sprintf("quantity_ordered exceeds %d", stock.MaxQuantity)).
				WithDetails(map[string]any{"item": i, "quantity_ordered": in.QuantityOrdered})
		}
		cost, err := decimal.NewFromString(strings.TrimSpace(in.UnitCost))
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit_cost must be a decimal amount").
				WithDetails(map[string]any{"item": i, "unit_cost": in.UnitCost})
		}
		if cost.IsNegative() || cost.Exponent() < -2 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit_cost must be non-negative with at most two decimals").
				WithDetails(map[string]any{"item": i, "unit_cost": in.UnitCost})
		}
		items = append(items, models.PurchaseOrderItem{
			ProductID:       in.ProductID,
			Position:        i + 1,
			QuantityOrdered: in.QuantityOrdered,
			UnitCost:        cost,
		})
	}
	return items, nil
}

func validateReceive(input ReceiveInput) error {
	if input.PurchaseOrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "purchase order id required")
	}
	if input.Actor == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "actor is required")
	}
	if len(input.Lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}
	seen := make(map[uuid.UUID]bool, len(input.Lines))
	for _, line := range input.Lines {
		if line.ItemID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "item_id is required")
		}
		if seen[line.ItemID] {
			return pkgerrors.New(pkgerrors.CodeValidation, "duplicate item in receipt").
				WithDetails(map[string]any{"item_id": line.ItemID})
		}
		seen[line.ItemID] = true
		if line.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must be positive").
				WithDetails(map[string]any{"item_id": line.ItemID, "quantity": line.Quantity})
		}
		if line.Quantity > stock.MaxQuantity {
			return pkgerrors.New(pkgerrors.CodeInvalidQuantity, fmt.Sprintf("quantity exceeds %d", stock.MaxQuantity)).
				WithDetails(map[string]any{"item_id": line.ItemID, "quantity": line.Quantity})
		}
	}
	return nil
}

func receiptNote(number string, notes *string) *string {
	text := "received against " + number
	if notes != nil && strings.TrimSpace(*notes) != "" {
		text += ": " + strings.TrimSpace(*notes)
	}
	return &text
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
