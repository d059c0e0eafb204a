package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/ombhut175/RetailFlow-sub002/pkg/enums"
)

// StockChangedEvent is emitted for every committed ledger mutation.
type StockChangedEvent struct {
	ProductID         uuid.UUID                  `json:"product_id"`
	TransactionID     uuid.UUID                  `json:"transaction_id"`
	Sequence          int64                      `json:"sequence"`
	TransactionType   enums.StockTransactionType `json:"transaction_type"`
	ReferenceType     enums.StockReferenceType   `json:"reference_type"`
	ReferenceID       *uuid.UUID                 `json:"reference_id,omitempty"`
	AvailableDelta    int                        `json:"available_delta"`
	ReservedDelta     int                        `json:"reserved_delta"`
	QuantityAvailable int                        `json:"quantity_available"`
	QuantityReserved  int                        `json:"quantity_reserved"`
}

// StockLowEvent is emitted when a mutation takes a product below its minimum level.
type StockLowEvent struct {
	ProductID         uuid.UUID `json:"product_id"`
	SKU               string    `json:"sku"`
	QuantityTotal     int       `json:"quantity_total"`
	MinimumStockLevel int       `json:"minimum_stock_level"`
	Sequence          int64     `json:"sequence"`
	DetectedAt        time.Time `json:"detected_at"`
}

// PurchaseOrderReceivedEvent summarises a goods receipt against a purchase order.
type PurchaseOrderReceivedEvent struct {
	PurchaseOrderID uuid.UUID                 `json:"purchase_order_id"`
	Number          string                    `json:"number"`
	Status          enums.PurchaseOrderStatus `json:"status"`
	Lines           []ReceivedLine            `json:"lines"`
	ReceivedAt      time.Time                 `json:"received_at"`
}

type ReceivedLine struct {
	ItemID    uuid.UUID `json:"item_id"`
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}
