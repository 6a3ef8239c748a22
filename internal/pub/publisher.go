package pub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Publisher fans out domain events over redis pub/sub. Delivery is
// best-effort: publish failures are logged and never fail the operation
// that produced the event.
type Publisher struct {
	client redis.UniversalClient
	log    *zap.Logger
}

func NewPublisher(client redis.UniversalClient, log *zap.Logger) *Publisher {
	return &Publisher{client: client, log: log}
}

// Event channel names.
const (
	ChannelOrderCreated   = "orders.created"
	ChannelOrderUpdated   = "orders.status_changed"
	ChannelEscrowSettled  = "escrow.settled"
	ChannelWalletCredited = "wallet.credited"
)

func (p *Publisher) Publish(ctx context.Context, channel string, data map[string]any) {
	data["published_at"] = time.Now().UTC().Format(time.RFC3339)
	payload, err := json.Marshal(data)
	if err != nil {
		p.log.Warn("event marshal failed", zap.String("channel", channel), zap.Error(err))
		return
	}
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		p.log.Warn("event publish failed", zap.String("channel", channel), zap.Error(err))
	}
}
