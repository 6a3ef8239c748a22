package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet holds a user's spendable and escrowed funds. One wallet per user,
// created at onboarding, never deleted. Balances are only mutated through
// the ledger operations, never by handler code.
type Wallet struct {
	UserID        string          `json:"user_id"`
	Balance       decimal.Decimal `json:"balance"`
	EscrowBalance decimal.Decimal `json:"escrow_balance"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// MaxWalletBalance is the top-up ceiling for a spendable balance.
var MaxWalletBalance = decimal.NewFromInt(50000)
