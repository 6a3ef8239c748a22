// Package ledgertest provides an in-memory ledger.Store for tests. It is not
// concurrency-safe; tests drive it sequentially.
package ledgertest

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"escrow-service/internal/domain"
	"escrow-service/internal/ledger"
	"escrow-service/internal/pkg/xerrors"
)

type Store struct {
	Wallets       map[string]*domain.Wallet
	Transactions  []*domain.Transaction
	Commissions   []*domain.PlatformCommission
	Orders        map[string]*domain.Order
	Items         map[string][]domain.OrderItem
	Cancellations map[string]int
	Audits        []*domain.AuditEntry
}

func New() *Store {
	return &Store{
		Wallets:       map[string]*domain.Wallet{},
		Orders:        map[string]*domain.Order{},
		Items:         map[string][]domain.OrderItem{},
		Cancellations: map[string]int{},
	}
}

func (s *Store) SeedWallet(userID string, balance, escrow int64) {
	s.Wallets[userID] = &domain.Wallet{
		UserID:        userID,
		Balance:       decimal.NewFromInt(balance),
		EscrowBalance: decimal.NewFromInt(escrow),
	}
}

// TxOfType filters the recorded transaction rows.
func (s *Store) TxOfType(typ domain.TransactionType) []*domain.Transaction {
	var out []*domain.Transaction
	for _, t := range s.Transactions {
		if t.TransactionType == typ {
			out = append(out, t)
		}
	}
	return out
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ledger.TxStore) error) error {
	// Snapshot-and-restore stands in for the database rollback: a failed
	// unit of work leaves no partial writes behind.
	snap := s.snapshot()
	if err := fn(ctx, s); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) snapshot() *Store {
	snap := New()
	for id, w := range s.Wallets {
		cp := *w
		snap.Wallets[id] = &cp
	}
	for id, o := range s.Orders {
		cp := *o
		snap.Orders[id] = &cp
	}
	for id, items := range s.Items {
		snap.Items[id] = append([]domain.OrderItem(nil), items...)
	}
	for id, n := range s.Cancellations {
		snap.Cancellations[id] = n
	}
	snap.Transactions = append([]*domain.Transaction(nil), s.Transactions...)
	snap.Commissions = append([]*domain.PlatformCommission(nil), s.Commissions...)
	snap.Audits = append([]*domain.AuditEntry(nil), s.Audits...)
	return snap
}

func (s *Store) restore(snap *Store) {
	s.Wallets = snap.Wallets
	s.Orders = snap.Orders
	s.Items = snap.Items
	s.Cancellations = snap.Cancellations
	s.Transactions = snap.Transactions
	s.Commissions = snap.Commissions
	s.Audits = snap.Audits
}

func (s *Store) GetWalletForUpdate(_ context.Context, userID string) (*domain.Wallet, error) {
	w, ok := s.Wallets[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", xerrors.ErrWalletNotFound, userID)
	}
	cp := *w
	return &cp, nil
}

func (s *Store) UpdateWalletBalances(_ context.Context, w *domain.Wallet) error {
	if w.Balance.IsNegative() || w.EscrowBalance.IsNegative() {
		return fmt.Errorf("negative balance on wallet %s", w.UserID)
	}
	cp := *w
	s.Wallets[w.UserID] = &cp
	return nil
}

func (s *Store) InsertTransaction(_ context.Context, t *domain.Transaction) error {
	for _, existing := range s.Transactions {
		if existing.TxRef == t.TxRef && existing.TransactionType == t.TransactionType {
			return fmt.Errorf("%w: tx_ref %s", xerrors.ErrAlreadyProcessed, t.TxRef)
		}
	}
	s.Transactions = append(s.Transactions, t)
	return nil
}

func (s *Store) TransactionExists(_ context.Context, txRef string, types ...domain.TransactionType) (bool, error) {
	for _, t := range s.Transactions {
		if t.TxRef != txRef {
			continue
		}
		for _, typ := range types {
			if t.TransactionType == typ {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *Store) OrderTransactionExists(_ context.Context, orderID string, types ...domain.TransactionType) (bool, error) {
	for _, t := range s.Transactions {
		if t.OrderID == nil || *t.OrderID != orderID {
			continue
		}
		for _, typ := range types {
			if t.TransactionType == typ {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *Store) InsertCommission(_ context.Context, c *domain.PlatformCommission) error {
	s.Commissions = append(s.Commissions, c)
	return nil
}

func (s *Store) InsertOrder(_ context.Context, o *domain.Order) error {
	if _, ok := s.Orders[o.ID]; ok {
		return fmt.Errorf("duplicate order %s", o.ID)
	}
	for _, existing := range s.Orders {
		if existing.TxRef == o.TxRef {
			return fmt.Errorf("%w: tx_ref %s", xerrors.ErrAlreadyProcessed, o.TxRef)
		}
	}
	cp := *o
	s.Orders[o.ID] = &cp
	return nil
}

func (s *Store) InsertOrderItems(_ context.Context, orderID string, items []domain.OrderItem) error {
	s.Items[orderID] = append(s.Items[orderID], items...)
	return nil
}

func (s *Store) GetOrderForUpdate(_ context.Context, orderID string) (*domain.Order, error) {
	o, ok := s.Orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", xerrors.ErrNotFound, orderID)
	}
	cp := *o
	return &cp, nil
}

func (s *Store) UpdateOrder(_ context.Context, o *domain.Order) error {
	if _, ok := s.Orders[o.ID]; !ok {
		return fmt.Errorf("%w: order %s", xerrors.ErrNotFound, o.ID)
	}
	cp := *o
	s.Orders[o.ID] = &cp
	return nil
}

func (s *Store) IncrementRiderCancellation(_ context.Context, riderID string) error {
	s.Cancellations[riderID]++
	return nil
}

func (s *Store) InsertAudit(_ context.Context, e *domain.AuditEntry) error {
	s.Audits = append(s.Audits, e)
	return nil
}
