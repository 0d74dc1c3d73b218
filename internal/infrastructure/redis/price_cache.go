package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

// RedisPriceCache keeps the current price and leader per listing for the
// cheap read path. Refreshed after each committed resolution; the ledger
// remains authoritative.
type RedisPriceCache struct {
	client *redis.Client
}

func NewRedisPriceCache(client *redis.Client) *RedisPriceCache {
	return &RedisPriceCache{client: client}
}

func priceKey(listingID string) string {
	return fmt.Sprintf("listing:%s:price", listingID)
}

func (r *RedisPriceCache) SetCurrentPrice(ctx context.Context, listingID string, price decimal.Decimal, leaderID string) error {
	return r.client.HSet(ctx, priceKey(listingID),
		"current_price", price.StringFixed(2),
		"leader_id", leaderID,
		"last_updated", time.Now().Unix(),
	).Err()
}

func (r *RedisPriceCache) GetCurrentPrice(ctx context.Context, listingID string) (decimal.Decimal, string, bool, error) {
	result, err := r.client.HMGet(ctx, priceKey(listingID), "current_price", "leader_id").Result()
	if err != nil {
		return decimal.Zero, "", false, err
	}
	if result[0] == nil {
		return decimal.Zero, "", false, nil
	}

	price, err := decimal.NewFromString(result[0].(string))
	if err != nil {
		return decimal.Zero, "", false, err
	}
	leaderID := ""
	if result[1] != nil {
		leaderID = result[1].(string)
	}
	return price, leaderID, true, nil
}

func (r *RedisPriceCache) DropListing(ctx context.Context, listingID string) error {
	return r.client.Del(ctx, priceKey(listingID)).Err()
}
