package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/ombhut175/RetailFlow-sub002/api/responses"
	"github.com/ombhut175/RetailFlow-sub002/api/validators"
	"github.com/ombhut175/RetailFlow-sub002/internal/stock"
	"github.com/ombhut175/RetailFlow-sub002/pkg/enums"
	pkgerrors "github.com/ombhut175/RetailFlow-sub002/pkg/errors"
	"github.com/ombhut175/RetailFlow-sub002/pkg/logger"
)

type createStockRequest struct {
	ProductID         string  `json:"product_id" validate:"required,uuid"`
	QuantityAvailable *int    `json:"quantity_available" validate:"required,lte=2147483647"`
	QuantityReserved  int     `json:"quantity_reserved,omitempty" validate:"lte=2147483647"`
	Notes             *string `json:"notes,omitempty"`
	CreatedBy         string  `json:"created_by,omitempty" validate:"omitempty,uuid"`
}

type updateStockRequest struct {
	QuantityAvailable *int    `json:"quantity_available,omitempty" validate:"omitempty,lte=2147483647"`
	QuantityReserved  *int    `json:"quantity_reserved,omitempty" validate:"omitempty,lte=2147483647"`
	ExpectedVersion   *int64  `json:"expected_version,omitempty" validate:"omitempty,gte=0"`
	Notes             *string `json:"notes,omitempty"`
	UpdatedBy         string  `json:"updated_by,omitempty" validate:"omitempty,uuid"`
}

type adjustStockRequest struct {
	QuantityChange *int    `json:"quantity_change" validate:"required,gte=-2147483647,lte=2147483647"`
	ReferenceType  *string `json:"reference_type,omitempty"`
	ReferenceID    *string `json:"reference_id,omitempty"`
	Notes          *string `json:"notes,omitempty"`
	UpdatedBy      string  `json:"updated_by,omitempty" validate:"omitempty,uuid"`
}

type movementRequest struct {
	Quantity      *int    `json:"quantity" validate:"required,lte=2147483647"`
	ReferenceType *string `json:"reference_type,omitempty"`
	ReferenceID   *string `json:"reference_id,omitempty"`
	Notes         *string `json:"notes,omitempty"`
	UpdatedBy     string  `json:"updated_by,omitempty" validate:"omitempty,uuid"`
}

type consumeStockRequest struct {
	movementRequest
	Source *string `json:"source,omitempty"`
}

type deleteStockRequest struct {
	DeletedBy string `json:"deleted_by,omitempty" validate:"omitempty,uuid"`
}

func (req movementRequest) toInput(r *http.Request) (stock.MovementInput, error) {
	actor, err := resolveActor(r, "updated_by", req.UpdatedBy)
	if err != nil {
		return stock.MovementInput{}, err
	}
	refType, err := parseOptionalEnum("reference_type", req.ReferenceType, enums.ParseStockReferenceType)
	if err != nil {
		return stock.MovementInput{}, err
	}
	refID, err := parseOptionalUUID("reference_id", req.ReferenceID)
	if err != nil {
		return stock.MovementInput{}, err
	}
	return stock.MovementInput{
		Quantity:      *req.Quantity,
		ReferenceType: refType,
		ReferenceID:   refID,
		Notes:         validators.SanitizeOptional(req.Notes, maxNotesLen),
		Actor:         actor,
	}, nil
}

// StockCreate opens the stock row for a product.
func StockCreate(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := resolveActor(r, "created_by", payload.CreatedBy)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.CreateStock(r.Context(), stock.CreateStockInput{
			ProductID:         uuid.MustParse(payload.ProductID),
			QuantityAvailable: *payload.QuantityAvailable,
			QuantityReserved:  payload.QuantityReserved,
			Notes:             validators.SanitizeOptional(payload.Notes, maxNotesLen),
			Actor:             actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, created)
	}
}

// StockList pages stock rows filtered by product_id, low_stock and with_deleted.
func StockList(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := parsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParseQueryUUID(r, "product_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lowStock, err := validators.ParseQueryBool(r, "low_stock")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		withDeleted, err := validators.ParseQueryFlag(r, "with_deleted")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListStock(r.Context(), stock.ListFilter{
			ProductID:   productID,
			LowStock:    lowStock,
			WithDeleted: withDeleted,
		}, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func StockGet(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.URLParamUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		withDeleted, err := validators.ParseQueryFlag(r, "with_deleted")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.GetStock(r.Context(), productID, withDeleted)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func StockSummary(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.URLParamUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.GetStockSummary(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// StockReconcile replays the product's ledger and reports drift.
func StockReconcile(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.URLParamUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		report, err := svc.Reconcile(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

// StockUpdate sets absolute counter values, optionally guarded by expected_version.
func StockUpdate(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.URLParamUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.QuantityAvailable == nil && payload.QuantityReserved == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "quantity_available or quantity_reserved is required"))
			return
		}
		actor, err := resolveActor(r, "updated_by", payload.UpdatedBy)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.UpdateStock(r.Context(), productID, stock.UpdateStockInput{
			QuantityAvailable: payload.QuantityAvailable,
			QuantityReserved:  payload.QuantityReserved,
			ExpectedVersion:   payload.ExpectedVersion,
			Notes:             validators.SanitizeOptional(payload.Notes, maxNotesLen),
			Actor:             actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

func StockAdjust(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.URLParamUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload adjustStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := resolveActor(r, "updated_by", payload.UpdatedBy)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		refType, err := parseOptionalEnum("reference_type", payload.ReferenceType, enums.ParseStockReferenceType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		refID, err := parseOptionalUUID("reference_id", payload.ReferenceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.AdjustStock(r.Context(), productID, stock.AdjustStockInput{
			Delta:         *payload.QuantityChange,
			ReferenceType: refType,
			ReferenceID:   refID,
			Notes:         validators.SanitizeOptional(payload.Notes, maxNotesLen),
			Actor:         actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

type movementFunc func(r *http.Request, productID uuid.UUID, input stock.MovementInput) (*stock.StockDTO, error)

func stockMovement(logg *logger.Logger, apply movementFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.URLParamUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload movementRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		updated, err := apply(r, productID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

func StockReserve(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return stockMovement(logg, func(r *http.Request, productID uuid.UUID, input stock.MovementInput) (*stock.StockDTO, error) {
		return svc.ReserveStock(r.Context(), productID, input)
	})
}

func StockRelease(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return stockMovement(logg, func(r *http.Request, productID uuid.UUID, input stock.MovementInput) (*stock.StockDTO, error) {
		return svc.ReleaseStock(r.Context(), productID, input)
	})
}

// StockConsume depletes stock from the configured counter unless the body
// names a source.
func StockConsume(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.URLParamUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload consumeStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		source, err := parseOptionalEnum("source", payload.Source, enums.ParseConsumeSource)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.ConsumeStock(r.Context(), productID, stock.ConsumeInput{MovementInput: input, Source: source})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

// StockDelete soft deletes a stock row. The actor comes from the deleted_by
// query parameter, an optional JSON body, or the X-Actor-Id header.
func StockDelete(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.URLParamUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		raw := r.URL.Query().Get("deleted_by")
		if raw == "" && r.ContentLength > 0 {
			var payload deleteStockRequest
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			raw = payload.DeletedBy
		}
		actor, err := resolveActor(r, "deleted_by", raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteStock(r.Context(), productID, actor); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}
