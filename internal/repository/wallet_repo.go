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

type WalletRepository interface {
	Create(ctx context.Context, userID string) (*domain.Wallet, error)
	GetByUserID(ctx context.Context, userID string) (*domain.Wallet, error)
	ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*domain.Transaction, error)
}

type walletRepo struct {
	db *pgxpool.Pool
}

func NewWalletRepo(db *pgxpool.Pool) WalletRepository {
	return &walletRepo{db: db}
}

func (r *walletRepo) Create(ctx context.Context, userID string) (*domain.Wallet, error) {
	var w domain.Wallet
	err := r.db.QueryRow(ctx, `
		INSERT INTO wallets (user_id, balance, escrow_balance)
		VALUES ($1, 0, 0)
		RETURNING user_id, balance, escrow_balance, created_at, updated_at`, userID,
	).Scan(&w.UserID, &w.Balance, &w.EscrowBalance, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if xerrors.IsUniqueViolation(err) {
			return r.GetByUserID(ctx, userID)
		}
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	return &w, nil
}

func (r *walletRepo) GetByUserID(ctx context.Context, userID string) (*domain.Wallet, error) {
	var w domain.Wallet
	err := r.db.QueryRow(ctx, `
		SELECT user_id, balance, escrow_balance, created_at, updated_at
		FROM wallets WHERE user_id = $1`, userID,
	).Scan(&w.UserID, &w.Balance, &w.EscrowBalance, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", xerrors.ErrWalletNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch wallet: %w", err)
	}
	return &w, nil
}

func (r *walletRepo) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*domain.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, tx_ref, amount, from_user_id, to_user_id, order_id, wallet_id,
		       transaction_type, payment_status, payment_method, order_type, details, created_at
		FROM transactions
		WHERE from_user_id = $1 OR to_user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(
			&t.ID, &t.TxRef, &t.Amount, &t.FromUserID, &t.ToUserID, &t.OrderID, &t.WalletID,
			&t.TransactionType, &t.PaymentStatus, &t.PaymentMethod, &t.OrderType, &t.Details, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
