package usecase

import (
	"context"

	"escrow-service/internal/domain"
)

// PendingCache stores checkout intents between initiation and ingestion.
// Implemented by cache.PendingStore.
type PendingCache interface {
	Put(ctx context.Context, intent *domain.PendingIntent) error
	Get(ctx context.Context, txRef string) (*domain.PendingIntent, error)
	Delete(ctx context.Context, txRef string) error
}

// EventPublisher fans out domain events. Implemented by pub.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data map[string]any)
}
