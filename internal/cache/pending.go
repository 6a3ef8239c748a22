package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"escrow-service/internal/domain"
	"escrow-service/internal/pkg/xerrors"
)

const pendingNamespace = "payment:pending"

// PendingStore keeps pre-payment checkout intents in redis under a TTL. It
// is deliberately lossy: expiry or redis loss only fails the later ingestion
// step, it never corrupts the ledger.
type PendingStore struct {
	client redis.UniversalClient
}

func NewPendingStore(client redis.UniversalClient) *PendingStore {
	return &PendingStore{client: client}
}

func key(txRef string) string {
	return pendingNamespace + ":" + txRef
}

func (s *PendingStore) Put(ctx context.Context, intent *domain.PendingIntent) error {
	raw, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("failed to marshal pending intent: %w", err)
	}
	if err := s.client.Set(ctx, key(intent.TxRef), raw, domain.PendingTTL).Err(); err != nil {
		return fmt.Errorf("failed to store pending intent: %w", err)
	}
	return nil
}

func (s *PendingStore) Get(ctx context.Context, txRef string) (*domain.PendingIntent, error) {
	raw, err := s.client.Get(ctx, key(txRef)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: tx_ref %s", xerrors.ErrPendingNotFound, txRef)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending intent: %w", err)
	}
	var intent domain.PendingIntent
	if err := json.Unmarshal([]byte(raw), &intent); err != nil {
		return nil, fmt.Errorf("failed to decode pending intent: %w", err)
	}
	return &intent, nil
}

// Delete is best-effort cleanup after a successful ingestion.
func (s *PendingStore) Delete(ctx context.Context, txRef string) error {
	return s.client.Del(ctx, key(txRef)).Err()
}
