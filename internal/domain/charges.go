package domain

import "github.com/shopspring/decimal"

// ChargeConfig is the per-vertical pricing row from charges_and_commissions.
// BaseDeliveryFee and FeePerKM apply only to the delivery vertical.
type ChargeConfig struct {
	ServiceType     Vertical        `json:"service_type"`
	CommissionRate  decimal.Decimal `json:"commission_rate"`
	BaseDeliveryFee decimal.Decimal `json:"base_delivery_fee"`
	FeePerKM        decimal.Decimal `json:"fee_per_km"`
}
