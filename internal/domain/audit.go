package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuditEntry is an append-only forensic record of a state or money change,
// written alongside (never instead of) ledger transactions.
type AuditEntry struct {
	ID           string           `json:"id"`
	EntityType   string           `json:"entity_type"`
	EntityID     string           `json:"entity_id"`
	Action       string           `json:"action"`
	OldValue     map[string]any   `json:"old_value,omitempty"`
	NewValue     map[string]any   `json:"new_value,omitempty"`
	ChangeAmount *decimal.Decimal `json:"change_amount,omitempty"`
	ActorID      string           `json:"actor_id,omitempty"`
	ActorType    string           `json:"actor_type,omitempty"`
	Notes        string           `json:"notes,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}
