package cache

import (
	"context"
	"errors"

	"github.com/SigNoz/ecommerce-checkout/internal/models"
)

type CartCache interface {
	Get(ctx context.Context, userID string) (*models.Cart, error)
	Set(ctx context.Context, cart *models.Cart) error
	// SetIfAbsent stores cart only when no entry exists and reports whether it did.
	SetIfAbsent(ctx context.Context, cart *models.Cart) (bool, error)
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")
