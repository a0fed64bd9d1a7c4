package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tair/payment-reconciler/pkg/logger"
)

const keyPrefix = "webhook:event:"

// RedisEventCache remembers webhook event ids that were fully reconciled so
// redeliveries can be acknowledged without a gateway round trip. The ledger's
// unique session index stays the source of truth; a cache miss is harmless.
type RedisEventCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisEventCache creates a cache with the given retention
func NewRedisEventCache(client *redis.Client, ttl time.Duration) *RedisEventCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisEventCache{client: client, ttl: ttl}
}

// Connect opens a client and verifies the server is reachable
func Connect(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	logger.Logger.Info().
		Str("addr", addr).
		Msg("Redis event cache connected")

	return client, nil
}

// Seen reports whether eventID was marked processed
func (c *RedisEventCache) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := c.client.Exists(ctx, keyPrefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check event cache: %w", err)
	}
	return n > 0, nil
}

// MarkProcessed records eventID with the configured TTL
func (c *RedisEventCache) MarkProcessed(ctx context.Context, eventID string, outcome string) error {
	if err := c.client.Set(ctx, keyPrefix+eventID, outcome, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}
