package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"escrow-service/internal/domain"
	"escrow-service/internal/ledger"
	"escrow-service/internal/pkg/xerrors"
)

// LedgerStore is the pgx implementation of ledger.Store. Wallet reads inside
// a unit of work take FOR UPDATE row locks, so concurrent operations on the
// same wallet serialize at the database.
type LedgerStore struct {
	db *pgxpool.Pool
}

func NewLedgerStore(db *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ledger.TxStore) error) error {
	pgtx, err := s.db.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer pgtx.Rollback(ctx)

	if err := fn(ctx, &txStore{tx: pgtx}); err != nil {
		return err
	}
	if err := pgtx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type txStore struct {
	tx pgx.Tx
}

func (t *txStore) GetWalletForUpdate(ctx context.Context, userID string) (*domain.Wallet, error) {
	var w domain.Wallet
	err := t.tx.QueryRow(ctx, `
		SELECT user_id, balance, escrow_balance, created_at, updated_at
		FROM wallets
		WHERE user_id = $1
		FOR UPDATE`, userID,
	).Scan(&w.UserID, &w.Balance, &w.EscrowBalance, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", xerrors.ErrWalletNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch wallet: %w", err)
	}
	return &w, nil
}

func (t *txStore) UpdateWalletBalances(ctx context.Context, w *domain.Wallet) error {
	// CHECK constraints on the table back this up; failing here keeps the
	// error readable.
	if w.Balance.IsNegative() || w.EscrowBalance.IsNegative() {
		return fmt.Errorf("%w: wallet %s would go negative", xerrors.ErrInsufficientBalance, w.UserID)
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE wallets
		SET balance = $2, escrow_balance = $3, updated_at = now()
		WHERE user_id = $1`,
		w.UserID, w.Balance, w.EscrowBalance,
	)
	if err != nil {
		return fmt.Errorf("failed to update wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", xerrors.ErrWalletNotFound, w.UserID)
	}
	return nil
}

func (t *txStore) InsertTransaction(ctx context.Context, tr *domain.Transaction) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO transactions (
			id, tx_ref, amount, from_user_id, to_user_id, order_id, wallet_id,
			transaction_type, payment_status, payment_method, order_type, details, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		tr.ID, tr.TxRef, tr.Amount, tr.FromUserID, tr.ToUserID, tr.OrderID, tr.WalletID,
		tr.TransactionType, tr.PaymentStatus, tr.PaymentMethod, tr.OrderType, tr.Details, tr.CreatedAt,
	)
	if err != nil {
		if xerrors.IsUniqueViolation(err) {
			return fmt.Errorf("%w: tx_ref %s", xerrors.ErrAlreadyProcessed, tr.TxRef)
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (t *txStore) TransactionExists(ctx context.Context, txRef string, types ...domain.TransactionType) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM transactions
			WHERE tx_ref = $1 AND transaction_type = ANY($2)
		)`, txRef, typeStrings(types),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check transaction: %w", err)
	}
	return exists, nil
}

func (t *txStore) OrderTransactionExists(ctx context.Context, orderID string, types ...domain.TransactionType) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM transactions
			WHERE order_id = $1 AND transaction_type = ANY($2)
		)`, orderID, typeStrings(types),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check order transactions: %w", err)
	}
	return exists, nil
}

func (t *txStore) InsertCommission(ctx context.Context, c *domain.PlatformCommission) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO platform_commissions (
			id, order_id, from_user_id, to_user_id, service_type, amount, description, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		c.ID, c.OrderID, c.FromUserID, c.ToUserID, c.ServiceType, c.Amount, c.Description, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert commission: %w", err)
	}
	return nil
}

func (t *txStore) InsertOrder(ctx context.Context, o *domain.Order) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO orders (
			id, order_type, customer_id, vendor_id, dispatch_id,
			grand_total, amount_due_vendor, delivery_fee,
			order_status, payment_status, escrow_status, tx_ref,
			requires_return, details, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		o.ID, o.Vertical, o.CustomerID, o.VendorID, o.DispatchID,
		o.GrandTotal, o.AmountDueVendor, o.DeliveryFee,
		o.OrderStatus, o.PaymentStatus, o.EscrowStatus, o.TxRef,
		o.RequiresReturn, o.Details, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if xerrors.IsUniqueViolation(err) {
			return fmt.Errorf("%w: tx_ref %s", xerrors.ErrAlreadyProcessed, o.TxRef)
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (t *txStore) InsertOrderItems(ctx context.Context, orderID string, items []domain.OrderItem) error {
	for _, it := range items {
		_, err := t.tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, item_id, name, quantity, price, extras)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			it.ID, orderID, it.ItemID, it.Name, it.Quantity, it.Price, it.Extras,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}
	return nil
}

func (t *txStore) GetOrderForUpdate(ctx context.Context, orderID string) (*domain.Order, error) {
	var o domain.Order
	err := t.tx.QueryRow(ctx, `
		SELECT id, order_type, customer_id, vendor_id, dispatch_id,
		       grand_total, amount_due_vendor, delivery_fee,
		       order_status, payment_status, escrow_status, tx_ref,
		       requires_return, cancellation_reason, cancelled_by, details,
		       created_at, updated_at
		FROM orders
		WHERE id = $1
		FOR UPDATE`, orderID,
	).Scan(
		&o.ID, &o.Vertical, &o.CustomerID, &o.VendorID, &o.DispatchID,
		&o.GrandTotal, &o.AmountDueVendor, &o.DeliveryFee,
		&o.OrderStatus, &o.PaymentStatus, &o.EscrowStatus, &o.TxRef,
		&o.RequiresReturn, &o.CancelReason, &o.CancelledBy, &o.Details,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: order %s", xerrors.ErrNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch order: %w", err)
	}
	return &o, nil
}

func (t *txStore) UpdateOrder(ctx context.Context, o *domain.Order) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE orders
		SET vendor_id = $2, order_status = $3, payment_status = $4,
		    escrow_status = $5, requires_return = $6,
		    cancellation_reason = $7, cancelled_by = $8, updated_at = now()
		WHERE id = $1`,
		o.ID, o.VendorID, o.OrderStatus, o.PaymentStatus,
		o.EscrowStatus, o.RequiresReturn, o.CancelReason, o.CancelledBy,
	)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: order %s", xerrors.ErrNotFound, o.ID)
	}
	return nil
}

func (t *txStore) IncrementRiderCancellation(ctx context.Context, riderID string) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO rider_stats (rider_id, cancellation_count)
		VALUES ($1, 1)
		ON CONFLICT (rider_id)
		DO UPDATE SET cancellation_count = rider_stats.cancellation_count + 1`,
		riderID,
	)
	if err != nil {
		return fmt.Errorf("failed to increment cancellation count: %w", err)
	}
	return nil
}

func (t *txStore) InsertAudit(ctx context.Context, e *domain.AuditEntry) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO audit_logs (
			id, entity_type, entity_id, action, old_value, new_value,
			change_amount, actor_id, actor_type, notes, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		e.ID, e.EntityType, e.EntityID, e.Action, e.OldValue, e.NewValue,
		e.ChangeAmount, e.ActorID, e.ActorType, e.Notes, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

func typeStrings(types []domain.TransactionType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
