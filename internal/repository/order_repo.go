package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"escrow-service/internal/domain"
	"escrow-service/internal/pkg/xerrors"
)

type OrderRepository interface {
	GetByID(ctx context.Context, orderID string) (*domain.Order, error)
	GetByTxRef(ctx context.Context, txRef string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string, vertical domain.Vertical, limit, offset int) ([]*domain.Order, error)
	ListItems(ctx context.Context, orderID string) ([]domain.OrderItem, error)
	GetRiderStats(ctx context.Context, riderID string) (*domain.RiderStats, error)
}

type orderRepo struct {
	db *pgxpool.Pool
}

func NewOrderRepo(db *pgxpool.Pool) OrderRepository {
	return &orderRepo{db: db}
}

const orderColumns = `
	id, order_type, customer_id, vendor_id, dispatch_id,
	grand_total, amount_due_vendor, delivery_fee,
	order_status, payment_status, escrow_status, tx_ref,
	requires_return, cancellation_reason, cancelled_by, details,
	created_at, updated_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID, &o.Vertical, &o.CustomerID, &o.VendorID, &o.DispatchID,
		&o.GrandTotal, &o.AmountDueVendor, &o.DeliveryFee,
		&o.OrderStatus, &o.PaymentStatus, &o.EscrowStatus, &o.TxRef,
		&o.RequiresReturn, &o.CancelReason, &o.CancelledBy, &o.Details,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	return &o, nil
}

func (r *orderRepo) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID))
	if errors.Is(err, xerrors.ErrNotFound) {
		return nil, fmt.Errorf("%w: order %s", xerrors.ErrNotFound, orderID)
	}
	return o, err
}

func (r *orderRepo) GetByTxRef(ctx context.Context, txRef string) (*domain.Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE tx_ref = $1`, txRef))
	if errors.Is(err, xerrors.ErrNotFound) {
		return nil, fmt.Errorf("%w: tx_ref %s", xerrors.ErrNotFound, txRef)
	}
	return o, err
}

func (r *orderRepo) ListByUser(ctx context.Context, userID string, vertical domain.Vertical, limit, offset int) ([]*domain.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE (customer_id = $1 OR vendor_id = $1)`
	args := []any{userID}
	if vertical != "" {
		query += ` AND order_type = $2`
		args = append(args, vertical)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var out []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *orderRepo) ListItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, item_id, name, quantity, price, extras
		FROM order_items WHERE order_id = $1`, orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer rows.Close()

	var out []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ItemID, &it.Name, &it.Quantity, &it.Price, &it.Extras); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *orderRepo) GetRiderStats(ctx context.Context, riderID string) (*domain.RiderStats, error) {
	var s domain.RiderStats
	err := r.db.QueryRow(ctx, `
		SELECT rider_id, cancellation_count FROM rider_stats WHERE rider_id = $1`, riderID,
	).Scan(&s.RiderID, &s.CancellationCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return &domain.RiderStats{RiderID: riderID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rider stats: %w", err)
	}
	return &s, nil
}
