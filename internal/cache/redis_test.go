package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/SigNoz/ecommerce-checkout/internal/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and a RedisCartCache pointing at it
func setupTestRedis(t *testing.T) (*RedisCartCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCartCache(client, 15*time.Minute), mr
}

func TestRedisCartCache_GetHit(t *testing.T) {
	cache, mr := setupTestRedis(t)

	cart := &models.Cart{UserID: "u1", Items: []models.LineItem{{ProductID: "P1", Quantity: 2}}}
	data, err := json.Marshal(cart)
	require.NoError(t, err)
	require.NoError(t, mr.Set(cacheKey("u1"), string(data)))

	got, err := cache.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Len(t, got.Items, 1)
}

func TestRedisCartCache_GetMiss(t *testing.T) {
	cache, _ := setupTestRedis(t)

	got, err := cache.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, got)
}

func TestRedisCartCache_GetInvalidJSON(t *testing.T) {
	cache, mr := setupTestRedis(t)
	require.NoError(t, mr.Set(cacheKey("u1"), `{"user_id":`))

	_, err := cache.Get(context.Background(), "u1")
	assert.ErrorContains(t, err, "unmarshal cart failed")
}

func TestRedisCartCache_SetAppliesJitteredTTL(t *testing.T) {
	cache, mr := setupTestRedis(t)

	require.NoError(t, cache.Set(context.Background(), &models.Cart{UserID: "u2"}))

	ttl := mr.TTL(cacheKey("u2"))
	assert.GreaterOrEqual(t, ttl, 15*time.Minute)
	assert.LessOrEqual(t, ttl, 20*time.Minute)
}

func TestRedisCartCache_SetIfAbsent(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	stored, err := cache.SetIfAbsent(ctx, &models.Cart{UserID: "u4", Items: []models.LineItem{{ProductID: "P1", Quantity: 1}}})
	require.NoError(t, err)
	assert.True(t, stored)
	assert.Greater(t, mr.TTL(cacheKey("u4")), time.Duration(0))

	stored, err = cache.SetIfAbsent(ctx, &models.Cart{UserID: "u4", Items: []models.LineItem{{ProductID: "P1", Quantity: 9}}})
	require.NoError(t, err)
	assert.False(t, stored)

	got, err := cache.Get(ctx, "u4")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Items[0].Quantity)
}

func TestRedisCartCache_Delete(t *testing.T) {
	cache, mr := setupTestRedis(t)
	require.NoError(t, mr.Set(cacheKey("u3"), "{}"))

	require.NoError(t, cache.Delete(context.Background(), "u3"))
	assert.False(t, mr.Exists(cacheKey("u3")))

	assert.NoError(t, cache.Delete(context.Background(), "absent"))
}

func TestCacheKey_Format(t *testing.T) {
	assert.Equal(t, "cart:test123", cacheKey("test123"))
}
