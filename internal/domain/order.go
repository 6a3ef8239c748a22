package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Vertical identifies the marketplace order type.
type Vertical string

const (
	VerticalDelivery Vertical = "DELIVERY"
	VerticalFood     Vertical = "FOOD"
	VerticalProduct  Vertical = "PRODUCT"
	VerticalLaundry  Vertical = "LAUNDRY"
	// VerticalTopup is not an order vertical; it routes wallet top-ups
	// through the same ingestion pipeline.
	VerticalTopup Vertical = "TOPUP"
)

// OrderStatus values. One shared enum: each vertical uses a subset governed
// by its transition table in the lifecycle package.
type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusAssigned  OrderStatus = "ASSIGNED"
	StatusAccepted  OrderStatus = "ACCEPTED"
	StatusDeclined  OrderStatus = "DECLINED"
	StatusPickedUp  OrderStatus = "PICKED_UP"
	StatusPreparing OrderStatus = "PREPARING"
	StatusReady     OrderStatus = "READY"
	StatusInTransit OrderStatus = "IN_TRANSIT"
	StatusDelivered OrderStatus = "DELIVERED"
	StatusCompleted OrderStatus = "COMPLETED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// EscrowStatus tracks where the order's money currently sits.
type EscrowStatus string

const (
	EscrowHeld     EscrowStatus = "HELD"
	EscrowReleased EscrowStatus = "RELEASED"
	EscrowRefunded EscrowStatus = "REFUNDED"
)

// Order is the shared order row for all verticals. CustomerID is the payer
// (sender for delivery); VendorID is the counterparty (rider for delivery),
// nullable until assignment. Orders are created only by payment ingestion and
// never hard-deleted.
type Order struct {
	ID              string           `json:"id"`
	Vertical        Vertical         `json:"order_type"`
	CustomerID      string           `json:"customer_id"`
	VendorID        *string          `json:"vendor_id,omitempty"`
	DispatchID      *string          `json:"dispatch_id,omitempty"`
	GrandTotal      decimal.Decimal  `json:"grand_total"`
	AmountDueVendor decimal.Decimal  `json:"amount_due_vendor"`
	DeliveryFee     decimal.Decimal  `json:"delivery_fee"`
	OrderStatus     OrderStatus      `json:"order_status"`
	PaymentStatus   PaymentStatus    `json:"payment_status"`
	EscrowStatus    EscrowStatus     `json:"escrow_status"`
	TxRef           string           `json:"tx_ref"`
	RequiresReturn  bool             `json:"requires_return"`
	CancelReason    *string          `json:"cancellation_reason,omitempty"`
	CancelledBy     *string          `json:"cancelled_by,omitempty"`
	Details         map[string]any   `json:"details,omitempty"`
	Items           []OrderItem      `json:"items,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// OrderItem is a line item on an order.
type OrderItem struct {
	ID       string          `json:"id"`
	OrderID  string          `json:"order_id"`
	ItemID   string          `json:"item_id"`
	Name     string          `json:"name,omitempty"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Extras   map[string]any  `json:"extras,omitempty"`
}

// RiderStats counts provider-reliability penalties outside the ledger.
type RiderStats struct {
	RiderID           string `json:"rider_id"`
	CancellationCount int    `json:"cancellation_count"`
}
