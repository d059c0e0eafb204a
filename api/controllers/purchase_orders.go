package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ombhut175/RetailFlow-sub002/api/responses"
	"github.com/ombhut175/RetailFlow-sub002/api/validators"
	"github.com/ombhut175/RetailFlow-sub002/internal/purchaseorders"
	"github.com/ombhut175/RetailFlow-sub002/pkg/enums"
	"github.com/ombhut175/RetailFlow-sub002/pkg/logger"
)

type createPurchaseOrderRequest struct {
	SupplierReference *string                    `json:"supplier_reference,omitempty" validate:"omitempty,max=128"`
	Notes             *string                    `json:"notes,omitempty"`
	ExpectedAt        *time.Time                 `json:"expected_at,omitempty"`
	Submit            bool                       `json:"submit,omitempty"`
	Items             []purchaseOrderItemRequest `json:"items" validate:"required,min=1,dive"`
	CreatedBy         string                     `json:"created_by,omitempty" validate:"omitempty,uuid"`
}

type purchaseOrderItemRequest struct {
	ProductID       string `json:"product_id" validate:"required,uuid"`
	QuantityOrdered int    `json:"quantity_ordered" validate:"lte=2147483647"`
	UnitCost        string `json:"unit_cost" validate:"required,money"`
}

type receivePurchaseOrderRequest struct {
	Lines     []receiveLineRequest `json:"lines" validate:"required,min=1,dive"`
	Notes     *string              `json:"notes,omitempty"`
	UpdatedBy string               `json:"updated_by,omitempty" validate:"omitempty,uuid"`
}

type receiveLineRequest struct {
	ItemID   string `json:"item_id" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"lte=2147483647"`
}

type purchaseOrderActionRequest struct {
	UpdatedBy string `json:"updated_by,omitempty" validate:"omitempty,uuid"`
}

// PurchaseOrderCreate creates a draft order, or an ORDERED one when submit is set.
func PurchaseOrderCreate(svc purchaseorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createPurchaseOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := resolveActor(r, "created_by", payload.CreatedBy)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]purchaseorders.ItemInput, 0, len(payload.Items))
		for _, item := range payload.Items {
			items = append(items, purchaseorders.ItemInput{
				ProductID:       uuid.MustParse(item.ProductID),
				QuantityOrdered: item.QuantityOrdered,
				UnitCost:        item.UnitCost,
			})
		}

		order, err := svc.Create(r.Context(), purchaseorders.CreateInput{
			SupplierReference: payload.SupplierReference,
			Notes:             validators.SanitizeOptional(payload.Notes, maxNotesLen),
			ExpectedAt:        payload.ExpectedAt,
			Items:             items,
			Submit:            payload.Submit,
			Actor:             actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, order)
	}
}

func PurchaseOrderList(svc purchaseorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := parsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := validators.ParseQueryEnum(r, "status", enums.ParsePurchaseOrderStatus)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), purchaseorders.ListFilter{Status: status}, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func PurchaseOrderGet(svc purchaseorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.URLParamUUID(r, "purchaseOrderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// PurchaseOrderReceive books delivered quantities and the matching stock receipts.
func PurchaseOrderReceive(svc purchaseorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.URLParamUUID(r, "purchaseOrderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload receivePurchaseOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := resolveActor(r, "updated_by", payload.UpdatedBy)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines := make([]purchaseorders.ReceiveLine, 0, len(payload.Lines))
		for _, line := range payload.Lines {
			lines = append(lines, purchaseorders.ReceiveLine{
				ItemID:   uuid.MustParse(line.ItemID),
				Quantity: line.Quantity,
			})
		}

		order, err := svc.Receive(r.Context(), purchaseorders.ReceiveInput{
			PurchaseOrderID: orderID,
			Lines:           lines,
			Notes:           validators.SanitizeOptional(payload.Notes, maxNotesLen),
			Actor:           actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type purchaseOrderAction func(r *http.Request, orderID, actor uuid.UUID) (*purchaseorders.PurchaseOrderDTO, error)

func purchaseOrderTransition(logg *logger.Logger, apply purchaseOrderAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.URLParamUUID(r, "purchaseOrderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload purchaseOrderActionRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		actor, err := resolveActor(r, "updated_by", payload.UpdatedBy)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := apply(r, orderID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// PurchaseOrderSubmit moves a draft to ORDERED.
func PurchaseOrderSubmit(svc purchaseorders.Service, logg *logger.Logger) http.HandlerFunc {
	return purchaseOrderTransition(logg, func(r *http.Request, orderID, actor uuid.UUID) (*purchaseorders.PurchaseOrderDTO, error) {
		return svc.Submit(r.Context(), orderID, actor)
	})
}

// PurchaseOrderCancel cancels an order that has not received anything yet.
func PurchaseOrderCancel(svc purchaseorders.Service, logg *logger.Logger) http.HandlerFunc {
	return purchaseOrderTransition(logg, func(r *http.Request, orderID, actor uuid.UUID) (*purchaseorders.PurchaseOrderDTO, error) {
		return svc.Cancel(r.Context(), orderID, actor)
	})
}
