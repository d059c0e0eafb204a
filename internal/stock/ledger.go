package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ombhut175/RetailFlow-sub002/pkg/db"
	"github.com/ombhut175/RetailFlow-sub002/pkg/db/models"
	"github.com/ombhut175/RetailFlow-sub002/pkg/enums"
	pkgerrors "github.com/ombhut175/RetailFlow-sub002/pkg/errors"
	"github.com/ombhut175/RetailFlow-sub002/pkg/outbox"
	"github.com/ombhut175/RetailFlow-sub002/pkg/outbox/payloads"
)

const sequenceConstraint = "ux_stock_transactions_product_sequence"

// mutation describes one guarded counter change and the log entry it produces.
type mutation struct {
	operation      string
	productID      uuid.UUID
	txType         enums.StockTransactionType
	quantity       int
	availableDelta int
	reservedDelta  int
	referenceType  enums.StockReferenceType
	referenceID    *uuid.UUID
	notes          *string
	actor          uuid.UUID
	// reservedShortfall is the error raised when the reserved counter would go negative.
	reservedShortfall pkgerrors.Code
}

type result struct {
	view      StockView
	txn       models.StockTransaction
	becameLow bool
}

func reserveMutation(productID uuid.UUID, in MovementInput) (mutation, error) {
	if err := validateMovement(productID, in); err != nil {
		return mutation{}, err
	}
	return mutation{
		operation:      "reserve",
		productID:      productID,
		txType:         enums.StockTransactionReserved,
		quantity:       in.Quantity,
		availableDelta: -in.Quantity,
		reservedDelta:  in.Quantity,
		referenceType:  referenceOrDefault(in.ReferenceType, enums.StockReferenceSale),
		referenceID:    in.ReferenceID,
		notes:          in.Notes,
		actor:          in.Actor,
	}, nil
}

func releaseMutation(productID uuid.UUID, in MovementInput) (mutation, error) {
	if err := validateMovement(productID, in); err != nil {
		return mutation{}, err
	}
	return mutation{
		operation:         "release",
		productID:         productID,
		txType:            enums.StockTransactionReleased,
		quantity:          in.Quantity,
		availableDelta:    in.Quantity,
		reservedDelta:     -in.Quantity,
		referenceType:     referenceOrDefault(in.ReferenceType, enums.StockReferenceSale),
		referenceID:       in.ReferenceID,
		notes:             in.Notes,
		actor:             in.Actor,
		reservedShortfall: pkgerrors.CodeOverRelease,
	}, nil
}

func receiveMutation(productID uuid.UUID, in MovementInput) (mutation, error) {
	if err := validateMovement(productID, in); err != nil {
		return mutation{}, err
	}
	return mutation{
		operation:      "receive",
		productID:      productID,
		txType:         enums.StockTransactionIn,
		quantity:       in.Quantity,
		availableDelta: in.Quantity,
		referenceType:  referenceOrDefault(in.ReferenceType, enums.StockReferencePurchase),
		referenceID:    in.ReferenceID,
		notes:          in.Notes,
		actor:          in.Actor,
	}, nil
}

func consumeMutation(productID uuid.UUID, in ConsumeInput, fallback enums.ConsumeSource) (mutation, error) {
	if err := validateMovement(productID, in.MovementInput); err != nil {
		return mutation{}, err
	}
	source := fallback
	if in.Source != nil {
		if !in.Source.IsValid() {
			return mutation{}, pkgerrors.New(pkgerrors.CodeValidation, "source must be available or reserved")
		}
		source = *in.Source
	}
	m := mutation{
		operation:     "consume",
		productID:     productID,
		txType:        enums.StockTransactionOut,
		quantity:      in.Quantity,
		referenceType: referenceOrDefault(in.ReferenceType, enums.StockReferenceSale),
		referenceID:   in.ReferenceID,
		notes:         in.Notes,
		actor:         in.Actor,
	}
	if source == enums.ConsumeFromReserved {
		m.reservedDelta = -in.Quantity
		m.reservedShortfall = pkgerrors.CodeInsufficientStock
	} else {
		m.availableDelta = -in.Quantity
	}
	return m, nil
}

func adjustMutation(productID uuid.UUID, in AdjustStockInput) (mutation, error) {
	if err := validateAdjust(productID, in); err != nil {
		return mutation{}, err
	}
	return mutation{
		operation:      "adjust",
		productID:      productID,
		txType:         enums.StockTransactionAdjustment,
		quantity:       in.Delta,
		availableDelta: in.Delta,
		referenceType:  referenceOrDefault(in.ReferenceType, enums.StockReferenceAdjustment),
		referenceID:    in.ReferenceID,
		notes:          in.Notes,
		actor:          in.Actor,
	}, nil
}

func referenceOrDefault(ref *enums.StockReferenceType, fallback enums.StockReferenceType) enums.StockReferenceType {
	if ref == nil {
		return fallback
	}
	return *ref
}

// run validates, applies the mutation in its own transaction and records metrics.
func (s *service) run(ctx context.Context, operation string, build func() (mutation, error)) (*result, error) {
	start := time.Now()
	m, err := build()
	if err != nil {
		s.observe(operation, start, err)
		return nil, err
	}

	var res *result
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		applied, err := s.apply(ctx, tx, m)
		if err != nil {
			return err
		}
		res = applied
		return nil
	})
	if err != nil {
		err = wrapDBError(err, "commit stock mutation")
	}
	s.observe(m.operation, start, err)
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, m.operation, res)
	return res, nil
}

// apply performs the guarded update and appends the log entry on tx.
func (s *service) apply(ctx context.Context, tx *gorm.DB, m mutation) (*result, error) {
	repo := s.repo.WithTx(tx)
	now := s.timestamp()

	ok, err := repo.ApplyDelta(ctx, Delta{
		ProductID:      m.productID,
		AvailableDelta: m.availableDelta,
		ReservedDelta:  m.reservedDelta,
		Actor:          m.actor,
		At:             now,
	})
	if err != nil {
		return nil, wrapDBError(err, "update stock counters")
	}
	if !ok {
		return nil, s.rejection(ctx, repo, m)
	}
	return s.record(ctx, tx, m, now)
}

// record reads the updated row back and writes the transaction plus outbox
// events. The row's version is the transaction sequence.
func (s *service) record(ctx context.Context, tx *gorm.DB, m mutation, now time.Time) (*result, error) {
	repo := s.repo.WithTx(tx)
	view, err := repo.FindView(ctx, m.productID, false)
	if err != nil {
		return nil, wrapDBError(err, "reload stock")
	}

	txn := models.StockTransaction{
		ProductID:       m.productID,
		Sequence:        view.Version,
		TransactionType: m.txType,
		Quantity:        m.quantity,
		AvailableDelta:  m.availableDelta,
		ReservedDelta:   m.reservedDelta,
		AvailableAfter:  view.QuantityAvailable,
		ReservedAfter:   view.QuantityReserved,
		ReferenceType:   m.referenceType,
		ReferenceID:     m.referenceID,
		Notes:           m.notes,
		CreatedBy:       m.actor,
		CreatedAt:       now,
	}
	if err := repo.AppendTransaction(ctx, &txn); err != nil {
		if db.IsUniqueViolation(err, sequenceConstraint) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConcurrentModification, err, "stock was modified concurrently; retry")
		}
		return nil, wrapDBError(err, "append stock transaction")
	}

	before := view.QuantityTotal() - m.availableDelta - m.reservedDelta
	becameLow := !isLow(before, view.MinimumStockLevel) && view.IsLowStock()

	if err := s.emit(ctx, tx, *view, txn, becameLow); err != nil {
		return nil, err
	}
	return &result{view: *view, txn: txn, becameLow: becameLow}, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, view StockView, txn models.StockTransaction, becameLow bool) error {
	changed := outbox.DomainEvent{
		EventType:     enums.EventStockChanged,
		AggregateType: enums.AggregateStock,
		AggregateID:   view.ProductID,
		ActorID:       txn.CreatedBy,
		OccurredAt:    txn.CreatedAt,
		Data: payloads.StockChangedEvent{
			ProductID:         view.ProductID,
			TransactionID:     txn.ID,
			Sequence:          txn.Sequence,
			TransactionType:   txn.TransactionType,
			ReferenceType:     txn.ReferenceType,
			ReferenceID:       txn.ReferenceID,
			AvailableDelta:    txn.AvailableDelta,
			ReservedDelta:     txn.ReservedDelta,
			QuantityAvailable: view.QuantityAvailable,
			QuantityReserved:  view.QuantityReserved,
		},
	}
	if !becameLow {
		if err := s.outbox.Emit(ctx, tx, changed); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit stock changed event")
		}
		return nil
	}

	low := outbox.DomainEvent{
		EventType:     enums.EventStockLow,
		AggregateType: enums.AggregateStock,
		AggregateID:   view.ProductID,
		ActorID:       txn.CreatedBy,
		OccurredAt:    txn.CreatedAt,
		Data: payloads.StockLowEvent{
			ProductID:         view.ProductID,
			SKU:               view.SKU,
			QuantityTotal:     view.QuantityTotal(),
			MinimumStockLevel: view.MinimumStockLevel,
			Sequence:          txn.Sequence,
			DetectedAt:        txn.CreatedAt,
		},
	}
	if err := s.outbox.Emit(ctx, tx, changed, low); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit stock events")
	}
	return nil
}

// rejection explains why the guarded update matched no row.
func (s *service) rejection(ctx context.Context, repo Repository, m mutation) error {
	view, err := repo.FindView(ctx, m.productID, false)
	if err != nil {
		if isNotFound(err) {
			return stockNotFound(m.productID)
		}
		return wrapDBError(err, "load stock")
	}

	if view.QuantityAvailable+m.availableDelta < 0 {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient available stock").
			WithDetails(map[string]any{
				"product_id":         m.productID,
				"requested":          -m.availableDelta,
				"quantity_available": view.QuantityAvailable,
			})
	}
	if view.QuantityReserved+m.reservedDelta < 0 {
		code := m.reservedShortfall
		if code == "" {
			code = pkgerrors.CodeInsufficientStock
		}
		message := "insufficient reserved stock"
		if code == pkgerrors.CodeOverRelease {
			message = "release exceeds reserved quantity"
		}
		return pkgerrors.New(code, message).
			WithDetails(map[string]any{
				"product_id":        m.productID,
				"requested":         -m.reservedDelta,
				"quantity_reserved": view.QuantityReserved,
			})
	}

	if view.QuantityAvailable+m.availableDelta > MaxQuantity || view.QuantityReserved+m.reservedDelta > MaxQuantity {
		return pkgerrors.New(pkgerrors.CodeInvalidQuantity, fmt.Sprintf("stock counters cannot exceed %d", MaxQuantity)).
			WithDetails(map[string]any{
				"product_id":         m.productID,
				"quantity_available": view.QuantityAvailable,
				"quantity_reserved":  view.QuantityReserved,
				"available_delta":    m.availableDelta,
				"reserved_delta":     m.reservedDelta,
			})
	}

	// The guard failed against a row that now satisfies it.
	return pkgerrors.New(pkgerrors.CodeConcurrentModification, "stock was modified concurrently; retry").
		WithDetails(map[string]any{"product_id": m.productID})
}

func (s *service) afterCommit(ctx context.Context, operation string, res *result) {
	if res.becameLow {
		s.metrics.IncLowStock()
	}
	s.logMutation(ctx, operation, &res.view, &res.txn)
}

func (s *service) logMutation(ctx context.Context, operation string, view *StockView, txn *models.StockTransaction) {
	if s.logg == nil || view == nil {
		return
	}
	fields := map[string]any{
		"operation":          operation,
		"quantity_available": view.QuantityAvailable,
		"quantity_reserved":  view.QuantityReserved,
		"version":            view.Version,
	}
	if txn != nil {
		fields["transaction_id"] = txn.ID.String()
		fields["transaction_type"] = txn.TransactionType
		fields["sequence"] = txn.Sequence
	}
	logCtx := s.logg.WithProductID(ctx, view.ProductID.String())
	logCtx = s.logg.WithFields(logCtx, fields)
	s.logg.Info(logCtx, "stock ledger updated")
}

func wrapDBError(err error, message string) error {
	if err == nil {
		return nil
	}
	if typed := pkgerrors.As(err); typed != nil {
		return err
	}
	if db.IsSerializationFailure(err) {
		return pkgerrors.Wrap(pkgerrors.CodeConcurrentModification, err, "stock was modified concurrently; retry")
	}
	if db.IsNumericOutOfRange(err) {
		return pkgerrors.Wrap(pkgerrors.CodeInvalidQuantity, err, "quantity out of range")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, message)
}

func stockNotFound(productID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "stock not found").
		WithDetails(map[string]any{"product_id": productID})
}

func duplicateStockError(productID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeDuplicateStock, "stock already exists for product").
		WithDetails(map[string]any{"product_id": productID})
}

func versionConflict(productID uuid.UUID, expected, current int64) error {
	details := map[string]any{
		"product_id":       productID,
		"expected_version": expected,
	}
	if current >= 0 {
		details["current_version"] = current
	}
	return pkgerrors.New(pkgerrors.CodeConcurrentModification, "stock version does not match").WithDetails(details)
}
