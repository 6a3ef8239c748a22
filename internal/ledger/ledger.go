// Package ledger implements the escrow money movements. Every operation
// mutates wallet balances and appends immutable transaction rows inside one
// storage transaction; balances are never written from handler code.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"escrow-service/internal/domain"
	"escrow-service/internal/pkg/id"
	"escrow-service/internal/pkg/xerrors"
)

// TxStore is the set of storage primitives a ledger operation needs, scoped
// to one database transaction. Wallet reads take row locks so concurrent
// operations on the same wallet serialize.
type TxStore interface {
	GetWalletForUpdate(ctx context.Context, userID string) (*domain.Wallet, error)
	UpdateWalletBalances(ctx context.Context, w *domain.Wallet) error

	InsertTransaction(ctx context.Context, t *domain.Transaction) error
	// TransactionExists reports whether a row with the given tx_ref and any
	// of the given types already exists.
	TransactionExists(ctx context.Context, txRef string, types ...domain.TransactionType) (bool, error)
	// OrderTransactionExists is the same check keyed by order.
	OrderTransactionExists(ctx context.Context, orderID string, types ...domain.TransactionType) (bool, error)
	InsertCommission(ctx context.Context, c *domain.PlatformCommission) error

	InsertOrder(ctx context.Context, o *domain.Order) error
	InsertOrderItems(ctx context.Context, orderID string, items []domain.OrderItem) error
	GetOrderForUpdate(ctx context.Context, orderID string) (*domain.Order, error)
	UpdateOrder(ctx context.Context, o *domain.Order) error

	IncrementRiderCancellation(ctx context.Context, riderID string) error
	InsertAudit(ctx context.Context, e *domain.AuditEntry) error
}

// Store opens atomic units of work. Everything inside fn commits or rolls
// back as one.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx TxStore) error) error
}

// HoldParams describe an escrow hold.
type HoldParams struct {
	PayerID  string
	Amount   decimal.Decimal
	OrderID  string
	TxRef    string
	Method   domain.PaymentMethod
	Vertical domain.Vertical
	Details  map[string]any
}

// Hold moves Amount into the payer's escrow. Wallet-funded holds debit the
// spendable balance first and reject on insufficient funds; card-funded holds
// represent money that entered from the gateway, so only escrow grows.
// Exactly one ESCROW_HOLD row is appended either way.
func Hold(ctx context.Context, tx TxStore, p HoldParams) (*domain.Transaction, error) {
	if p.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: hold amount must be positive", xerrors.ErrInvalidRequest)
	}

	w, err := tx.GetWalletForUpdate(ctx, p.PayerID)
	if err != nil {
		return nil, err
	}

	if p.Method == domain.MethodWallet {
		if w.Balance.LessThan(p.Amount) {
			return nil, fmt.Errorf("%w: balance %s, need %s",
				xerrors.ErrInsufficientBalance, w.Balance, p.Amount)
		}
		w.Balance = w.Balance.Sub(p.Amount)
	}
	w.EscrowBalance = w.EscrowBalance.Add(p.Amount)

	if err := tx.UpdateWalletBalances(ctx, w); err != nil {
		return nil, err
	}

	t := &domain.Transaction{
		ID:              id.NewULID(),
		TxRef:           p.TxRef,
		Amount:          p.Amount,
		FromUserID:      p.PayerID,
		OrderID:         optional(p.OrderID),
		WalletID:        p.PayerID,
		TransactionType: domain.TxEscrowHold,
		PaymentStatus:   domain.PaymentSuccess,
		PaymentMethod:   p.Method,
		OrderType:       string(p.Vertical),
		Details:         p.Details,
		CreatedAt:       time.Now().UTC(),
	}
	if err := tx.InsertTransaction(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ReleaseParams describe an escrow release on order settlement.
type ReleaseParams struct {
	PayerID    string
	PayeeID    string
	FullAmount decimal.Decimal
	// PayeeShare is what the payee receives; FullAmount - PayeeShare is
	// recorded as platform commission.
	PayeeShare decimal.Decimal
	OrderID    string
	TxRef      string
	Vertical   domain.Vertical
}

// Release settles a held order: the payer's escrow drops by the full amount,
// the payee's spendable balance grows by their share, and the platform's cut
// is recorded as a commission row. Requires a prior unreleased ESCROW_HOLD
// for the order.
func Release(ctx context.Context, tx TxStore, p ReleaseParams) (*domain.Transaction, error) {
	if p.PayeeShare.GreaterThan(p.FullAmount) || p.PayeeShare.LessThan(decimal.Zero) {
		return nil, fmt.Errorf("%w: payee share %s out of range for %s",
			xerrors.ErrInvalidRequest, p.PayeeShare, p.FullAmount)
	}

	held, err := tx.OrderTransactionExists(ctx, p.OrderID, domain.TxEscrowHold)
	if err != nil {
		return nil, err
	}
	if !held {
		// An order only reaches settlement after ingestion recorded its hold,
		// so a missing hold row here is a data inconsistency, not user error.
		return nil, fmt.Errorf("%w: order %s", xerrors.ErrHoldMissing, p.OrderID)
	}
	settled, err := tx.OrderTransactionExists(ctx, p.OrderID, domain.TxEscrowRelease, domain.TxRefunded)
	if err != nil {
		return nil, err
	}
	if settled {
		return nil, fmt.Errorf("%w: order %s", xerrors.ErrEscrowAlreadyReleased, p.OrderID)
	}

	payer, err := tx.GetWalletForUpdate(ctx, p.PayerID)
	if err != nil {
		return nil, err
	}
	if payer.EscrowBalance.LessThan(p.FullAmount) {
		return nil, fmt.Errorf("%w: escrow %s, releasing %s",
			xerrors.ErrInsufficientEscrow, payer.EscrowBalance, p.FullAmount)
	}
	payer.EscrowBalance = payer.EscrowBalance.Sub(p.FullAmount)
	if err := tx.UpdateWalletBalances(ctx, payer); err != nil {
		return nil, err
	}

	payee, err := tx.GetWalletForUpdate(ctx, p.PayeeID)
	if err != nil {
		return nil, err
	}
	payee.Balance = payee.Balance.Add(p.PayeeShare)
	if err := tx.UpdateWalletBalances(ctx, payee); err != nil {
		return nil, err
	}

	t := &domain.Transaction{
		ID:              id.NewULID(),
		TxRef:           p.TxRef,
		Amount:          p.FullAmount,
		FromUserID:      p.PayerID,
		ToUserID:        &p.PayeeID,
		OrderID:         &p.OrderID,
		WalletID:        p.PayerID,
		TransactionType: domain.TxEscrowRelease,
		PaymentStatus:   domain.PaymentSuccess,
		PaymentMethod:   domain.MethodWallet,
		OrderType:       string(p.Vertical),
		Details:         map[string]any{"payee_share": p.PayeeShare.String()},
		CreatedAt:       time.Now().UTC(),
	}
	if err := tx.InsertTransaction(ctx, t); err != nil {
		return nil, err
	}

	if platformShare := p.FullAmount.Sub(p.PayeeShare); platformShare.GreaterThan(decimal.Zero) {
		c := &domain.PlatformCommission{
			ID:          id.NewULID(),
			OrderID:     p.OrderID,
			FromUserID:  p.PayerID,
			ToUserID:    p.PayeeID,
			ServiceType: string(p.Vertical),
			Amount:      platformShare,
			Description: fmt.Sprintf("Commission from order %s", p.OrderID),
			CreatedAt:   time.Now().UTC(),
		}
		if err := tx.InsertCommission(ctx, c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// RefundParams describe an escrow refund back to the payer.
type RefundParams struct {
	PayerID  string
	Amount   decimal.Decimal
	OrderID  string
	TxRef    string
	Vertical domain.Vertical
	Reason   string
}

// Refund returns held funds to the payer's spendable balance. Requires a
// prior unreleased ESCROW_HOLD for the order.
func Refund(ctx context.Context, tx TxStore, p RefundParams) (*domain.Transaction, error) {
	held, err := tx.OrderTransactionExists(ctx, p.OrderID, domain.TxEscrowHold)
	if err != nil {
		return nil, err
	}
	if !held {
		return nil, fmt.Errorf("%w: order %s", xerrors.ErrEscrowNotHeld, p.OrderID)
	}
	settled, err := tx.OrderTransactionExists(ctx, p.OrderID, domain.TxEscrowRelease, domain.TxRefunded)
	if err != nil {
		return nil, err
	}
	if settled {
		return nil, fmt.Errorf("%w: order %s", xerrors.ErrEscrowAlreadyReleased, p.OrderID)
	}

	w, err := tx.GetWalletForUpdate(ctx, p.PayerID)
	if err != nil {
		return nil, err
	}
	if w.EscrowBalance.LessThan(p.Amount) {
		return nil, fmt.Errorf("%w: escrow %s, refunding %s",
			xerrors.ErrInsufficientEscrow, w.EscrowBalance, p.Amount)
	}
	w.EscrowBalance = w.EscrowBalance.Sub(p.Amount)
	w.Balance = w.Balance.Add(p.Amount)
	if err := tx.UpdateWalletBalances(ctx, w); err != nil {
		return nil, err
	}

	t := &domain.Transaction{
		ID:              id.NewULID(),
		TxRef:           p.TxRef,
		Amount:          p.Amount,
		FromUserID:      p.PayerID,
		ToUserID:        &p.PayerID,
		OrderID:         &p.OrderID,
		WalletID:        p.PayerID,
		TransactionType: domain.TxRefunded,
		PaymentStatus:   domain.PaymentSuccess,
		PaymentMethod:   domain.MethodWallet,
		OrderType:       string(p.Vertical),
		Details:         map[string]any{"label": "CREDIT", "reason": p.Reason},
		CreatedAt:       time.Now().UTC(),
	}
	if err := tx.InsertTransaction(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// DepositParams describe a wallet credit.
type DepositParams struct {
	UserID string
	Amount decimal.Decimal
	TxRef  string
	Method domain.PaymentMethod
	// Reversal credits are restorations of funds the user already had, so
	// the top-up ceiling does not apply to them.
	Reversal bool
}

// Deposit credits a spendable balance, enforcing the top-up ceiling.
func Deposit(ctx context.Context, tx TxStore, p DepositParams) (*domain.Transaction, error) {
	if p.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: deposit amount must be positive", xerrors.ErrInvalidRequest)
	}

	w, err := tx.GetWalletForUpdate(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if !p.Reversal && w.Balance.Add(p.Amount).GreaterThan(domain.MaxWalletBalance) {
		return nil, fmt.Errorf("%w: balance %s + %s exceeds %s",
			xerrors.ErrWalletLimitExceeded, w.Balance, p.Amount, domain.MaxWalletBalance)
	}
	w.Balance = w.Balance.Add(p.Amount)
	if err := tx.UpdateWalletBalances(ctx, w); err != nil {
		return nil, err
	}

	t := &domain.Transaction{
		ID:              id.NewULID(),
		TxRef:           p.TxRef,
		Amount:          p.Amount,
		FromUserID:      p.UserID,
		ToUserID:        &p.UserID,
		WalletID:        p.UserID,
		TransactionType: domain.TxDeposit,
		PaymentStatus:   domain.PaymentSuccess,
		PaymentMethod:   p.Method,
		Details:         map[string]any{"label": "CREDIT"},
		CreatedAt:       time.Now().UTC(),
	}
	if err := tx.InsertTransaction(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// WithdrawParams describe a payout of spendable funds.
type WithdrawParams struct {
	UserID string
	Amount decimal.Decimal
	Fee    decimal.Decimal
	TxRef  string
}

// Withdraw debits Amount + Fee from the spendable balance and appends a
// WITHDRAWAL row. The escrow balance is never touched by withdrawals.
func Withdraw(ctx context.Context, tx TxStore, p WithdrawParams) (*domain.Transaction, error) {
	if p.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: withdrawal amount must be positive", xerrors.ErrInvalidRequest)
	}

	w, err := tx.GetWalletForUpdate(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	total := p.Amount.Add(p.Fee)
	if w.Balance.LessThan(total) {
		return nil, fmt.Errorf("%w: balance %s, need %s",
			xerrors.ErrInsufficientBalance, w.Balance, total)
	}
	w.Balance = w.Balance.Sub(total)
	if err := tx.UpdateWalletBalances(ctx, w); err != nil {
		return nil, err
	}

	t := &domain.Transaction{
		ID:              id.NewULID(),
		TxRef:           p.TxRef,
		Amount:          p.Amount,
		FromUserID:      p.UserID,
		WalletID:        p.UserID,
		TransactionType: domain.TxWithdrawal,
		PaymentStatus:   domain.PaymentSuccess,
		PaymentMethod:   domain.MethodWallet,
		Details:         map[string]any{"label": "DEBIT", "fee": p.Fee.String()},
		CreatedAt:       time.Now().UTC(),
	}
	if err := tx.InsertTransaction(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
