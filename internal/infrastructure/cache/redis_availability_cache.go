package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisAvailabilityCache caches per-channel availability in Redis. Suitable
// for distributed deployments where several instances serve availability
// reads. One hash per ledger row, keyed by channel, with a TTL on the hash;
// invalidation drops the whole row so every channel is recomputed together.
type RedisAvailabilityCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisAvailabilityCache creates a Redis-backed availability cache
func NewRedisAvailabilityCache(cfg RedisConfig, ttl time.Duration) (*RedisAvailabilityCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisAvailabilityCacheWithClient(client, ttl), nil
}

// NewRedisAvailabilityCacheWithClient creates a cache over an existing
// Redis client. Useful for testing or when sharing a client.
func NewRedisAvailabilityCacheWithClient(client *redis.Client, ttl time.Duration) *RedisAvailabilityCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &RedisAvailabilityCache{
		client:    client,
		keyPrefix: "availability:",
		ttl:       ttl,
	}
}

func (c *RedisAvailabilityCache) rowKey(tenantID, variantID, locationID uuid.UUID) string {
	return c.keyPrefix + tenantID.String() + ":" + variantID.String() + ":" + locationID.String()
}

// Get returns the cached availability for one channel, if present
func (c *RedisAvailabilityCache) Get(ctx context.Context, tenantID, variantID, locationID uuid.UUID, channel string) (int64, bool, error) {
	value, err := c.client.HGet(ctx, c.rowKey(tenantID, variantID, locationID), channel).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read availability cache: %w", err)
	}
	available, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt availability cache entry: %w", err)
	}
	return available, true, nil
}

// Set caches the availability for one channel and refreshes the row's TTL
func (c *RedisAvailabilityCache) Set(ctx context.Context, tenantID, variantID, locationID uuid.UUID, channel string, available int64) error {
	key := c.rowKey(tenantID, variantID, locationID)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, channel, strconv.FormatInt(available, 10))
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write availability cache: %w", err)
	}
	return nil
}

// Invalidate drops all cached channels for one ledger row
func (c *RedisAvailabilityCache) Invalidate(ctx context.Context, tenantID, variantID, locationID uuid.UUID) error {
	if err := c.client.Del(ctx, c.rowKey(tenantID, variantID, locationID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate availability cache: %w", err)
	}
	return nil
}

// Close releases the underlying Redis client
func (c *RedisAvailabilityCache) Close() error {
	return c.client.Close()
}
