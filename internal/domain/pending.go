package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PendingIntent is the ephemeral pre-payment record of a checkout, keyed by
// tx_ref in the cache with a 30 minute TTL. It is best-effort: the durable
// idempotency guard is the transactions.tx_ref unique constraint, not this
// record.
type PendingIntent struct {
	TxRef       string          `json:"tx_ref"`
	Vertical    Vertical        `json:"order_type"`
	CustomerID  string          `json:"customer_id"`
	VendorID    string          `json:"vendor_id,omitempty"`
	GrandTotal  decimal.Decimal `json:"grand_total"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	// DistanceKM is the durable pricing input for delivery orders: the fee
	// is recomputed from it at ingestion time rather than trusted from the
	// cached quote.
	DistanceKM decimal.Decimal `json:"distance_km,omitempty"`
	Items      []OrderItem     `json:"items,omitempty"`
	Details    map[string]any  `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// PendingTTL is how long an unpaid checkout intent survives in the cache.
const PendingTTL = 30 * time.Minute
