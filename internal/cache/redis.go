package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/SigNoz/ecommerce-checkout/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisCartCache stores serialized carts under cart:<userID> with a jittered TTL
type RedisCartCache struct {
	client  redis.UniversalClient
	baseTTL time.Duration
}

func NewRedisCartCache(client redis.UniversalClient, baseTTL time.Duration) *RedisCartCache {
	return &RedisCartCache{
		client:  client,
		baseTTL: baseTTL,
	}
}

func (r *RedisCartCache) Get(ctx context.Context, userID string) (*models.Cart, error) {
	data, err := r.client.Get(ctx, cacheKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart models.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &cart, nil
}

func (r *RedisCartCache) Set(ctx context.Context, cart *models.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	if err := r.client.Set(ctx, cacheKey(cart.UserID), data, r.ttl()).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCartCache) SetIfAbsent(ctx context.Context, cart *models.Cart) (bool, error) {
	data, err := json.Marshal(cart)
	if err != nil {
		return false, fmt.Errorf("marshal cart failed: %w", err)
	}

	stored, err := r.client.SetNX(ctx, cacheKey(cart.UserID), data, r.ttl()).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	return stored, nil
}

// ttl adds up to a third of the base TTL so carts written together do not expire together.
func (r *RedisCartCache) ttl() time.Duration {
	return r.baseTTL + time.Duration(rand.Int63n(int64(r.baseTTL/3)+1))
}

func (r *RedisCartCache) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(userID string) string {
	return fmt.Sprintf("cart:%s", userID)
}
