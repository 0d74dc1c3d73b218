package redis

import (
	"context"
	"encoding/json"

	"proxy-bidding/internal/domain"

	"github.com/go-redis/redis/v8"
)

const eventChannel = "auction_events"

// RedisEventPublisher is the fire-and-forget outbound side of the auction
// event channel. Delivery is at-least-once at best; the bid ledger, not the
// channel, is the source of truth.
type RedisEventPublisher struct {
	client *redis.Client
}

func NewRedisEventPublisher(client *redis.Client) *RedisEventPublisher {
	return &RedisEventPublisher{client: client}
}

func (r *RedisEventPublisher) PublishAuctionEvent(ctx context.Context, event *domain.AuctionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, eventChannel, payload).Err()
}
