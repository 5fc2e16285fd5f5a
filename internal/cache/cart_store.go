package cache

import (
	"context"
	"errors"
	"time"

	"github.com/SigNoz/ecommerce-checkout/internal/metrics"
	"github.com/SigNoz/ecommerce-checkout/internal/models"
	"github.com/SigNoz/ecommerce-checkout/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CartStore is a read-through cache in front of another store.CartStore. Saves write the new
// cart into the cache after the backing store; fills after a miss only land when no entry
// exists, so a fill carrying an older read never replaces a saved cart. Cache failures never
// fail a call.
type CartStore struct {
	next    store.CartStore
	cache   CartCache
	metrics *metrics.AppMetrics
	logger  *zap.Logger
}

func NewCartStore(next store.CartStore, cache CartCache, m *metrics.AppMetrics, logger *zap.Logger) *CartStore {
	return &CartStore{
		next:    next,
		cache:   cache,
		metrics: m,
		logger:  logger,
	}
}

func (s *CartStore) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	cacheAttrs := s.metrics.Attrs(attribute.String("cache", "cart"))

	cart, err := s.cache.Get(ctx, userID)
	if err == nil {
		s.metrics.CacheHits.Add(ctx, 1, cacheAttrs)
		return cart, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.logger.Warn("cart cache get failed", zap.String("user_id", userID), zap.Error(err))
	}
	s.metrics.CacheMisses.Add(ctx, 1, cacheAttrs)

	cart, err = s.next.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	if _, err := s.cache.SetIfAbsent(ctx, cart); err != nil {
		s.logger.Warn("cart cache fill failed", zap.String("user_id", userID), zap.Error(err))
	}
	return cart, nil
}

func (s *CartStore) SaveCart(ctx context.Context, cart *models.Cart) error {
	if err := s.next.SaveCart(ctx, cart); err != nil {
		return err
	}
	s.writeThrough(ctx, cart)
	return nil
}

func (s *CartStore) writeThrough(ctx context.Context, cart *models.Cart) {
	// the backing write already happened, so a cancelled request must still update the cache
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()

	err := s.cache.Set(ctx, cart)
	if err == nil {
		return
	}
	s.logger.Warn("cart cache write failed", zap.String("user_id", cart.UserID), zap.Error(err))
	if err := s.cache.Delete(ctx, cart.UserID); err != nil {
		s.logger.Warn("cart cache invalidate failed", zap.String("user_id", cart.UserID), zap.Error(err))
	}
}
