package services

import (
	"context"
	"testing"

	"github.com/SigNoz/ecommerce-checkout/internal/metrics"
	"github.com/SigNoz/ecommerce-checkout/internal/models"
	"github.com/SigNoz/ecommerce-checkout/internal/store"
	"github.com/SigNoz/ecommerce-checkout/pkg/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fixture struct {
	store    *store.MemoryStore
	catalog  *ProductService
	carts    *CartService
	checkout *CheckoutService
	orders   *OrderService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	m := metrics.NewNoop("test")
	s := store.NewMemoryStore()

	catalog := NewProductService(s, m, logger)
	carts := NewCartService(s, catalog, m, logger)
	return &fixture{
		store:    s,
		catalog:  catalog,
		carts:    carts,
		checkout: NewCheckoutService(s, catalog, carts, config.DefaultCheckoutConfig(), m, logger),
		orders:   NewOrderService(s, catalog, m, logger),
	}
}

func (f *fixture) seed(t *testing.T, id string, price, discountPrice int64, stock int) {
	t.Helper()
	require.NoError(t, f.store.UpsertProduct(context.Background(), &models.Product{
		ID:            id,
		Name:          "Product " + id,
		Slug:          "product-" + id,
		Image:         "/img/" + id + ".png",
		Price:         price,
		DiscountPrice: discountPrice,
		Stock:         stock,
	}))
}

func (f *fixture) product(t *testing.T, id string) *models.Product {
	t.Helper()
	p, err := f.store.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p
}

func validCheckout(items ...models.CheckoutItem) models.CheckoutRequest {
	return models.CheckoutRequest{
		Items: items,
		ShippingAddress: models.ShippingAddress{
			FullName: "Jane Doe",
			Phone:    "0900000000",
			Street:   "1 Main St",
		},
		PaymentMethod: "COD",
	}
}

// sumDiscounted recomputes the final amount straight from the lines.
func sumDiscounted(items []models.CartItemView) int64 {
	var sum int64
	for _, item := range items {
		sum += item.LineDiscountTotal
	}
	return sum
}
