package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/SigNoz/ecommerce-checkout/internal/models"
)

// Common errors returned by the stores
var (
	ErrProductNotFound = errors.New("product not found")
	ErrCartNotFound    = errors.New("cart not found")
	ErrOrderNotFound   = errors.New("order not found")

	// ErrOrderStatusConflict means the order was no longer in the expected status.
	ErrOrderStatusConflict = errors.New("order status changed concurrently")
)

// InsufficientStockError aborts an order placement when a product cannot cover its line.
type InsufficientStockError struct {
	ProductID string
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s (requested %d)", e.ProductID, e.Requested)
}

// ProductStore is the catalog as seen by the checkout core.
type ProductStore interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)

	// GetProductsByIDs omits ids that do not exist.
	GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error)

	// ApplyProductDelta adds the deltas to stock and sold count, clamping both at zero.
	ApplyProductDelta(ctx context.Context, id string, delta models.ProductDelta) error

	UpsertProduct(ctx context.Context, p *models.Product) error
}

// CartStore persists one cart per user. SaveCart is an upsert; the last write wins.
type CartStore interface {
	GetCart(ctx context.Context, userID string) (*models.Cart, error)
	SaveCart(ctx context.Context, cart *models.Cart) error
}

// OrderStore reads and updates persisted orders.
type OrderStore interface {
	GetOrder(ctx context.Context, id string) (*models.Order, error)

	// ListOrdersByUser returns a newest-first window and the user's total order count.
	ListOrdersByUser(ctx context.Context, userID string, offset, limit int) ([]models.Order, int, error)

	// UpdateOrderStatus moves the order to status only if it is still in from.
	UpdateOrderStatus(ctx context.Context, id string, from, to models.OrderStatus) error
}

// OrderPlacer commits a checkout. For every line it decrements stock by the quantity only
// if stock covers it and adds the quantity to sold count, then inserts the order. Either
// all of it happens or none of it does; a short line yields *InsufficientStockError.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, order *models.Order) error
}

// Store is the full persistence surface used by the services.
type Store interface {
	ProductStore
	CartStore
	OrderStore
	OrderPlacer
}
