package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"escrow-service/internal/domain"
	"escrow-service/internal/pkg/xerrors"
)

func deliveryCfg() *domain.ChargeConfig {
	return &domain.ChargeConfig{
		ServiceType:     domain.VerticalDelivery,
		CommissionRate:  decimal.NewFromFloat(0.20),
		BaseDeliveryFee: decimal.NewFromInt(500),
		FeePerKM:        decimal.NewFromFloat(75.5),
	}
}

func TestDeliveryFeeFromDistance(t *testing.T) {
	fee := DeliveryFee(deliveryCfg(), decimal.NewFromFloat(12.4))
	// 500 + 75.5 * 12.4 = 1436.20
	assert.True(t, fee.Equal(decimal.NewFromFloat(1436.20)), "fee %s", fee)
}

func TestQuoteDelivery(t *testing.T) {
	q, err := QuoteOrder(deliveryCfg(), &domain.PendingIntent{
		Vertical:   domain.VerticalDelivery,
		DistanceKM: decimal.NewFromInt(10),
	})
	require.NoError(t, err)

	assert.True(t, q.GrandTotal.Equal(decimal.NewFromInt(1255)), "total %s", q.GrandTotal)
	assert.True(t, q.AmountDueVendor.Equal(decimal.NewFromInt(1004)), "due %s", q.AmountDueVendor)
}

func TestQuoteFood(t *testing.T) {
	cfg := &domain.ChargeConfig{
		ServiceType:    domain.VerticalFood,
		CommissionRate: decimal.NewFromFloat(0.10),
	}
	q, err := QuoteOrder(cfg, &domain.PendingIntent{
		Vertical:    domain.VerticalFood,
		DeliveryFee: decimal.NewFromInt(300),
		Items: []domain.OrderItem{
			{Quantity: 2, Price: decimal.NewFromFloat(850.25)},
			{Quantity: 1, Price: decimal.NewFromInt(400)},
		},
	})
	require.NoError(t, err)

	// 2*850.25 + 400 = 2100.50, + 300 fee = 2400.50
	assert.True(t, q.Subtotal.Equal(decimal.NewFromFloat(2100.50)))
	assert.True(t, q.GrandTotal.Equal(decimal.NewFromFloat(2400.50)))
	assert.True(t, q.AmountDueVendor.Equal(decimal.NewFromFloat(2160.45)), "due %s", q.AmountDueVendor)
}

func TestQuoteVerticalMismatch(t *testing.T) {
	_, err := QuoteOrder(deliveryCfg(), &domain.PendingIntent{Vertical: domain.VerticalFood})
	assert.ErrorIs(t, err, xerrors.ErrCommissionConfig)
}

func TestQuoteTopupNotPriceable(t *testing.T) {
	cfg := &domain.ChargeConfig{ServiceType: domain.VerticalTopup}
	_, err := QuoteOrder(cfg, &domain.PendingIntent{Vertical: domain.VerticalTopup})
	assert.ErrorIs(t, err, xerrors.ErrInvalidRequest)
}

func TestMatchesRounds(t *testing.T) {
	assert.True(t, Matches(decimal.NewFromFloat(2400.501), decimal.NewFromFloat(2400.499)))
	assert.True(t, Matches(decimal.NewFromInt(100), decimal.NewFromFloat(100.00)))
	assert.False(t, Matches(decimal.NewFromInt(100), decimal.NewFromFloat(100.01)))
}
