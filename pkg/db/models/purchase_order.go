package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ombhut175/RetailFlow-sub002/pkg/enums"
)

// PurchaseOrder is an order placed with a supplier whose receipts feed stock.
type PurchaseOrder struct {
	ID                uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	Number            string                    `gorm:"column:number;not null;uniqueIndex:purchase_orders_number_key"`
	SupplierReference *string                   `gorm:"column:supplier_reference"`
	Status            enums.PurchaseOrderStatus `gorm:"column:status;type:varchar(32);not null"`
	Notes             *string                   `gorm:"column:notes"`
	ExpectedAt        *time.Time                `gorm:"column:expected_at"`
	OrderedAt         *time.Time                `gorm:"column:ordered_at"`
	ReceivedAt        *time.Time                `gorm:"column:received_at"`
	CancelledAt       *time.Time                `gorm:"column:cancelled_at"`
	CreatedBy         uuid.UUID                 `gorm:"column:created_by;type:uuid;not null"`
	UpdatedBy         uuid.UUID                 `gorm:"column:updated_by;type:uuid;not null"`
	CreatedAt         time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
	Items             []PurchaseOrderItem       `gorm:"foreignKey:PurchaseOrderID;constraint:OnDelete:CASCADE"`
}

func (p *PurchaseOrder) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PurchaseOrderItem is a single product line on a purchase order.
type PurchaseOrderItem struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	PurchaseOrderID  uuid.UUID       `gorm:"column:purchase_order_id;type:uuid;not null;index"`
	ProductID        uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Position         int             `gorm:"column:position;not null"`
	QuantityOrdered  int             `gorm:"column:quantity_ordered;not null;check:purchase_order_items_quantity_ordered_check,quantity_ordered > 0"`
	QuantityReceived int             `gorm:"column:quantity_received;not null;default:0;check:purchase_order_items_received_check,quantity_received >= 0 AND quantity_received <= quantity_ordered"`
	UnitCost         decimal.Decimal `gorm:"column:unit_cost;type:numeric(12,2);not null"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *PurchaseOrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// Outstanding is the quantity still expected from the supplier.
func (i PurchaseOrderItem) Outstanding() int {
	return i.QuantityOrdered - i.QuantityReceived
}
