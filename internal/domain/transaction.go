package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger row.
type TransactionType string

const (
	TxDeposit       TransactionType = "DEPOSIT"
	TxWithdrawal    TransactionType = "WITHDRAWAL"
	TxEscrowHold    TransactionType = "ESCROW_HOLD"
	TxEscrowRelease TransactionType = "ESCROW_RELEASE"
	TxRefunded      TransactionType = "REFUNDED"
)

// PaymentMethod identifies how money entered the system.
type PaymentMethod string

const (
	MethodCard   PaymentMethod = "CARD"
	MethodWallet PaymentMethod = "WALLET"
)

// PaymentStatus on a ledger row.
type PaymentStatus string

const (
	PaymentSuccess  PaymentStatus = "SUCCESS"
	PaymentPending  PaymentStatus = "PENDING"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// Transaction is an immutable ledger row. Rows are write-once: corrections
// are recorded by inserting a new compensating row, never by updating an
// existing one. TxRef carries a unique constraint per transaction type and is
// the durable idempotency boundary for payment ingestion.
type Transaction struct {
	ID              string          `json:"id"`
	TxRef           string          `json:"tx_ref"`
	Amount          decimal.Decimal `json:"amount"`
	FromUserID      string          `json:"from_user_id"`
	ToUserID        *string         `json:"to_user_id,omitempty"`
	OrderID         *string         `json:"order_id,omitempty"`
	WalletID        string          `json:"wallet_id"`
	TransactionType TransactionType `json:"transaction_type"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	OrderType       string          `json:"order_type,omitempty"`
	Details         map[string]any  `json:"details,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// PlatformCommission records the platform's cut taken at escrow release.
type PlatformCommission struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	FromUserID  string          `json:"from_user_id"`
	ToUserID    string          `json:"to_user_id"`
	ServiceType string          `json:"service_type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}
