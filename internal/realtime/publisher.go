// Package realtime implements a non-authoritative fan-out of
// already-committed projection deltas over Redis Pub/Sub and
// WebSocket, mirroring the broadcast service's Redis subscriber and
// WebSocket manager/handler. Nothing in this package participates in
// the write path; a dropped message here never affects committed
// state, only how quickly a watching client learns about it.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/bloomingFlower/auction-service/internal/projection"
)

const channelPrefix = "item_updates:"

func channelFor(itemID int64) string {
	return fmt.Sprintf("%s%d", channelPrefix, itemID)
}

// Publisher publishes PriceUpdate deltas to Redis, implementing
// projection.Publisher. The projection consumer calls it after each
// committed write; it makes one PUBLISH call and never retries.
type Publisher struct {
	client *redis.Client
}

// NewPublisher builds a Publisher over an existing Redis client.
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishPriceUpdate implements projection.Publisher.
func (p *Publisher) PublishPriceUpdate(ctx context.Context, update projection.PriceUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal price update: %w", err)
	}
	if err := p.client.Publish(ctx, channelFor(update.ItemID), payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channelFor(update.ItemID), err)
	}
	return nil
}
