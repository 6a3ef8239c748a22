package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"escrow-service/internal/domain"
	"escrow-service/internal/pkg/xerrors"
)

// ChargesRepository reads the per-vertical charge configuration. A missing
// row is a hard error: settlement must never fall back to a guessed rate.
type ChargesRepository interface {
	Get(ctx context.Context, vertical domain.Vertical) (*domain.ChargeConfig, error)
}

type chargesRepo struct {
	db *pgxpool.Pool
}

func NewChargesRepo(db *pgxpool.Pool) ChargesRepository {
	return &chargesRepo{db: db}
}

func (r *chargesRepo) Get(ctx context.Context, vertical domain.Vertical) (*domain.ChargeConfig, error) {
	var c domain.ChargeConfig
	err := r.db.QueryRow(ctx, `
		SELECT service_type, commission_rate, base_delivery_fee, fee_per_km
		FROM charges_and_commissions WHERE service_type = $1`,
		vertical,
	).Scan(&c.ServiceType, &c.CommissionRate, &c.BaseDeliveryFee, &c.FeePerKM)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: no charges for %s", xerrors.ErrCommissionConfig, vertical)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch charges: %w", err)
	}
	if c.CommissionRate.IsNegative() || c.CommissionRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w: commission rate %s for %s out of range",
			xerrors.ErrCommissionConfig, c.CommissionRate, vertical)
	}
	return &c, nil
}
