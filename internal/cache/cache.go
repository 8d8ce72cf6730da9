// Package cache keeps read-side copies of orders in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"order-service/internal/model"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// KeyOrder holds one order: order:{order_id}
	KeyOrder = "order:%s"

	// KeyUserOrders holds a user's history, newest first: orders:user:{email}
	KeyUserOrders = "orders:user:%s"
)

// OrderCache stores orders and per-user histories.
type OrderCache interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, bool, error)
	SetOrder(ctx context.Context, order *model.Order) error
	GetHistory(ctx context.Context, userEmail string) ([]model.Order, bool, error)
	SetHistory(ctx context.Context, userEmail string, orders []model.Order) error
	InvalidateOrder(ctx context.Context, id uuid.UUID) error
	InvalidateHistory(ctx context.Context, userEmail string) error
}

// RedisOrderCache implements OrderCache with JSON values and a fixed TTL.
type RedisOrderCache struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisOrderCache creates a cache whose entries expire after ttl.
func NewRedisOrderCache(rdb redis.Cmdable, ttl time.Duration, logger zerolog.Logger) *RedisOrderCache {
	return &RedisOrderCache{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.With().Str("component", "order-cache").Logger(),
	}
}

func (c *RedisOrderCache) GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, bool, error) {
	var order model.Order
	found, err := c.get(ctx, fmt.Sprintf(KeyOrder, id), &order)
	if err != nil || !found {
		return nil, found, err
	}
	return &order, true, nil
}

func (c *RedisOrderCache) SetOrder(ctx context.Context, order *model.Order) error {
	return c.set(ctx, fmt.Sprintf(KeyOrder, order.ID), order)
}

func (c *RedisOrderCache) GetHistory(ctx context.Context, userEmail string) ([]model.Order, bool, error) {
	var orders []model.Order
	found, err := c.get(ctx, fmt.Sprintf(KeyUserOrders, userEmail), &orders)
	if err != nil || !found {
		return nil, found, err
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return orders, true, nil
}

func (c *RedisOrderCache) SetHistory(ctx context.Context, userEmail string, orders []model.Order) error {
	return c.set(ctx, fmt.Sprintf(KeyUserOrders, userEmail), orders)
}

func (c *RedisOrderCache) InvalidateOrder(ctx context.Context, id uuid.UUID) error {
	return c.del(ctx, fmt.Sprintf(KeyOrder, id))
}

func (c *RedisOrderCache) InvalidateHistory(ctx context.Context, userEmail string) error {
	return c.del(ctx, fmt.Sprintf(KeyUserOrders, userEmail))
}

func (c *RedisOrderCache) get(ctx context.Context, key string, out any) (bool, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cache key %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		// A corrupt entry is treated as a miss and removed.
		c.logger.Warn().Err(err).Str("key", key).Msg("discarding undecodable cache entry")
		_ = c.rdb.Del(ctx, key).Err()
		return false, nil
	}
	return true, nil
}

func (c *RedisOrderCache) set(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache value for %s: %w", key, err)
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache key %s: %w", key, err)
	}
	return nil
}

func (c *RedisOrderCache) del(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete cache key %s: %w", key, err)
	}
	return nil
}

// NopCache is used when Redis is disabled; every read misses.
type NopCache struct{}

func (NopCache) GetOrder(context.Context, uuid.UUID) (*model.Order, bool, error)  { return nil, false, nil }
func (NopCache) SetOrder(context.Context, *model.Order) error                     { return nil }
func (NopCache) GetHistory(context.Context, string) ([]model.Order, bool, error) { return nil, false, nil }
func (NopCache) SetHistory(context.Context, string, []model.Order) error         { return nil }
func (NopCache) InvalidateOrder(context.Context, uuid.UUID) error                 { return nil }
func (NopCache) InvalidateHistory(context.Context, string) error                  { return nil }
