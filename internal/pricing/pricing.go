// Package pricing computes order totals and settlement shares. All functions
// are pure; charge configuration comes in as an argument so ingestion can
// recompute a price and compare it to what the customer actually paid.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"escrow-service/internal/domain"
	"escrow-service/internal/pkg/xerrors"
)

// Quote is the authoritative server-side price of an order.
type Quote struct {
	Subtotal        decimal.Decimal
	DeliveryFee     decimal.Decimal
	GrandTotal      decimal.Decimal
	AmountDueVendor decimal.Decimal
}

// DeliveryFee is base fee plus per-kilometre fee, rounded to 2 decimal
// places.
func DeliveryFee(cfg *domain.ChargeConfig, distanceKM decimal.Decimal) decimal.Decimal {
	return cfg.BaseDeliveryFee.Add(cfg.FeePerKM.Mul(distanceKM)).Round(2)
}

// Subtotal sums quantity * price over the line items.
func Subtotal(items []domain.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// QuoteOrder prices an order from its durable inputs. For delivery the fee
// is recomputed from distance; for the other verticals the subtotal comes
// from the line items.
func QuoteOrder(cfg *domain.ChargeConfig, intent *domain.PendingIntent) (*Quote, error) {
	if cfg.ServiceType != intent.Vertical {
		return nil, fmt.Errorf("%w: charges for %s applied to %s",
			xerrors.ErrCommissionConfig, cfg.ServiceType, intent.Vertical)
	}

	q := &Quote{}
	switch intent.Vertical {
	case domain.VerticalDelivery:
		q.DeliveryFee = DeliveryFee(cfg, intent.DistanceKM)
		q.GrandTotal = q.DeliveryFee
	case domain.VerticalFood, domain.VerticalLaundry, domain.VerticalProduct:
		q.Subtotal = Subtotal(intent.Items).Round(2)
		q.DeliveryFee = intent.DeliveryFee.Round(2)
		q.GrandTotal = q.Subtotal.Add(q.DeliveryFee)
	default:
		return nil, fmt.Errorf("%w: cannot price vertical %s",
			xerrors.ErrInvalidRequest, intent.Vertical)
	}

	one := decimal.NewFromInt(1)
	q.AmountDueVendor = q.GrandTotal.Mul(one.Sub(cfg.CommissionRate)).Round(2)
	return q, nil
}

// Matches reports whether the paid amount equals the expected total after
// rounding both to 2 decimal places.
func Matches(expected, paid decimal.Decimal) bool {
	return expected.Round(2).Equal(paid.Round(2))
}
