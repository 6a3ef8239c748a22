package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"escrow-service/internal/domain"
)

// AuditRepository writes append-only audit rows outside a ledger transaction.
// Used for best-effort records after commit; in-transaction audits go through
// the ledger TxStore.
type AuditRepository interface {
	Insert(ctx context.Context, e *domain.AuditEntry) error
	ListByEntity(ctx context.Context, entityType, entityID string) ([]*domain.AuditEntry, error)
}

type auditRepo struct {
	db *pgxpool.Pool
}

func NewAuditRepo(db *pgxpool.Pool) AuditRepository {
	return &auditRepo{db: db}
}

func (r *auditRepo) Insert(ctx context.Context, e *domain.AuditEntry) error {
	_, err := r.db.Exec(ctx, `
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

func (r *auditRepo) ListByEntity(ctx context.Context, entityType, entityID string) ([]*domain.AuditEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, entity_type, entity_id, action, old_value, new_value,
		       change_amount, actor_id, actor_type, notes, created_at
		FROM audit_logs
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at`, entityType, entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var out []*domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(
			&e.ID, &e.EntityType, &e.EntityID, &e.Action, &e.OldValue, &e.NewValue,
			&e.ChangeAmount, &e.ActorID, &e.ActorType, &e.Notes, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
