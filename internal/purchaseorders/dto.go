package purchaseorders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ombhut175/RetailFlow-sub002/pkg/db/models"
	"github.com/ombhut175/RetailFlow-sub002/pkg/enums"
)

// PurchaseOrderDTO is the API representation of a purchase order.
type PurchaseOrderDTO struct {
	ID                uuid.UUID                 `json:"id"`
	Number            string                    `json:"number"`
	SupplierReference *string                   `json:"supplier_reference,omitempty"`
	Status            enums.PurchaseOrderStatus `json:"status"`
	Notes             *string                   `json:"notes,omitempty"`
	TotalCost         string                    `json:"total_cost"`
	Items             []ItemDTO                 `json:"items"`
	ExpectedAt        *time.Time                `json:"expected_at,omitempty"`
	OrderedAt         *time.Time                `json:"ordered_at,omitempty"`
	ReceivedAt        *time.Time                `json:"received_at,omitempty"`
	CancelledAt       *time.Time                `json:"cancelled_at,omitempty"`
	CreatedBy         uuid.UUID                 `json:"created_by"`
	CreatedAt         time.Time                 `json:"created_at"`
	UpdatedBy         uuid.UUID                 `json:"updated_by"`
	UpdatedAt         time.Time                 `json:"updated_at"`
}

// ItemDTO is a single purchase order line.
type ItemDTO struct {
	ID               uuid.UUID `json:"id"`
	ProductID        uuid.UUID `json:"product_id"`
	Position         int       `json:"position"`
	QuantityOrdered  int       `json:"quantity_ordered"`
	QuantityReceived int       `json:"quantity_received"`
	Outstanding      int       `json:"outstanding"`
	UnitCost         string    `json:"unit_cost"`
	LineTotal        string    `json:"line_total"`
}

func toPurchaseOrderDTO(order *models.PurchaseOrder) *PurchaseOrderDTO {
	if order == nil {
		return nil
	}
	total := decimal.Zero
	items := make([]ItemDTO, 0, len(order.Items))
	for _, item := range order.Items {
		line := item.UnitCost.Mul(decimal.NewFromInt(int64(item.QuantityOrdered)))
		total = total.Add(line)
		items = append(items, ItemDTO{
			ID:               item.ID,
			ProductID:        item.ProductID,
			Position:         item.Position,
			QuantityOrdered:  item.QuantityOrdered,
			QuantityReceived: item.QuantityReceived,
			Outstanding:      item.Outstanding(),
			UnitCost:         item.UnitCost.StringFixed(2),
			LineTotal:        line.StringFixed(2),
		})
	}
	return &PurchaseOrderDTO{
		ID:                order.ID,
		Number:            order.Number,
		SupplierReference: order.SupplierReference,
		Status:            order.Status,
		Notes:             order.Notes,
		TotalCost:         total.StringFixed(2),
		Items:             items,
		ExpectedAt:        order.ExpectedAt,
		OrderedAt:         order.OrderedAt,
		ReceivedAt:        order.ReceivedAt,
		CancelledAt:       order.CancelledAt,
		CreatedBy:         order.CreatedBy,
		CreatedAt:         order.CreatedAt,
		UpdatedBy:         order.UpdatedBy,
		UpdatedAt:         order.UpdatedAt,
	}
}
