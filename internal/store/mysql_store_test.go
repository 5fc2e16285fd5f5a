package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/SigNoz/ecommerce-checkout/internal/db"
	"github.com/SigNoz/ecommerce-checkout/internal/metrics"
	"github.com/SigNoz/ecommerce-checkout/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	"go.uber.org/zap/zaptest"
)

func setupMySQLStore(t *testing.T) *MySQLStore {
	if testing.Short() {
		t.Skip("skipping MySQL container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := mysql.Run(ctx,
		"mysql:8.0.36",
		mysql.WithDatabase("checkout"),
		mysql.WithUsername("checkout"),
		mysql.WithPassword("checkout"),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "parseTime=true", "charset=utf8mb4")
	require.NoError(t, err)

	logger := zaptest.NewLogger(t)
	database, err := db.NewDB(dsn, "checkout-test", logger)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, database.Migrate())
	return NewMySQLStore(database, metrics.NewNoop("checkout-test"), logger)
}

func TestMySQLStore_ProductsAndDelta(t *testing.T) {
	s := setupMySQLStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertProduct(ctx, &models.Product{ID: "P1", Name: "Tea", Slug: "tea", Price: 100, DiscountPrice: 90, Stock: 3}))
	require.NoError(t, s.UpsertProduct(ctx, &models.Product{ID: "P2", Name: "Cup", Slug: "cup", Price: 50, Stock: 10}))

	products, err := s.GetProductsByIDs(ctx, []string{"P1", "P2", "missing"})
	require.NoError(t, err)
	assert.Len(t, products, 2)

	require.NoError(t, s.ApplyProductDelta(ctx, "P1", models.ProductDelta{StockDelta: -5, SoldCountDelta: 5}))
	p, err := s.GetProduct(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)
	assert.Equal(t, 5, p.SoldCount)
	assert.Equal(t, int64(90), p.DiscountPrice)

	assert.ErrorIs(t, s.ApplyProductDelta(ctx, "missing", models.ProductDelta{StockDelta: 1}), ErrProductNotFound)
	_, err = s.GetProduct(ctx, "missing")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestMySQLStore_CartRoundTrip(t *testing.T) {
	s := setupMySQLStore(t)
	ctx := context.Background()

	_, err := s.GetCart(ctx, "u1")
	assert.ErrorIs(t, err, ErrCartNotFound)

	now := time.Now().UTC().Truncate(time.Microsecond)
	cart := &models.Cart{
		UserID:     "u1",
		Items:      []models.LineItem{{ProductID: "P1", Name: "Tea", UnitPrice: 100, UnitDiscountPrice: 90, Quantity: 2, LineTotal: 200, LineDiscountTotal: 180}},
		CartTotals: models.CartTotals{TotalAmount: 200, TotalDiscountAmount: 20, FinalAmount: 180, TotalItems: 2},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, s.SaveCart(ctx, cart))

	got, err := s.GetCart(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, cart.Items, got.Items)
	assert.Equal(t, cart.CartTotals, got.CartTotals)

	cart.Items = nil
	cart.CartTotals = models.CartTotals{}
	require.NoError(t, s.SaveCart(ctx, cart))
	got, err = s.GetCart(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, got.Items)
	assert.Zero(t, got.TotalItems)
}

func TestMySQLStore_PlaceOrderAndList(t *testing.T) {
	s := setupMySQLStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertProduct(ctx, &models.Product{ID: "P1", Name: "Tea", Slug: "tea", Price: 100, Stock: 5}))

	base := time.Now().UTC().Truncate(time.Microsecond)
	var ids []string
	for i := 0; i < 3; i++ {
		order := &models.Order{
			ID:              uuid.NewString(),
			UserID:          "u1",
			Items:           []models.LineItem{{ProductID: "P1", Quantity: 1, UnitPrice: 100, UnitDiscountPrice: 100, LineTotal: 100, LineDiscountTotal: 100}},
			Subtotal:        100,
			ShippingFee:     30000,
			Total:           30100,
			PaymentMethod:   "COD",
			Status:          models.OrderStatusPending,
			ShippingAddress: models.ShippingAddress{FullName: "Ann", Phone: "1", Street: "Main"},
			CreatedAt:       base.Add(time.Duration(i) * time.Second),
			UpdatedAt:       base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, s.PlaceOrder(ctx, order))
		ids = append(ids, order.ID)
	}

	p, err := s.GetProduct(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Stock)
	assert.Equal(t, 3, p.SoldCount)

	got, err := s.GetOrder(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.ShippingAddress.FullName)
	assert.Equal(t, models.OrderStatusPending, got.Status)

	page, total, err := s.ListOrdersByUser(ctx, "u1", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID)

	require.NoError(t, s.UpdateOrderStatus(ctx, ids[0], models.OrderStatusPending, models.OrderStatusCancelled))
	assert.ErrorIs(t, s.UpdateOrderStatus(ctx, ids[0], models.OrderStatusPending, models.OrderStatusConfirmed), ErrOrderStatusConflict)
	assert.ErrorIs(t, s.UpdateOrderStatus(ctx, "missing", models.OrderStatusPending, models.OrderStatusCancelled), ErrOrderNotFound)
	_, err = s.GetOrder(ctx, "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestMySQLStore_PlaceOrder_ConcurrentLastUnit(t *testing.T) {
	s := setupMySQLStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertProduct(ctx, &models.Product{ID: "P1", Name: "Tea", Slug: "tea", Price: 100, Stock: 1}))

	const n = 8
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.PlaceOrder(ctx, &models.Order{
				ID:            uuid.NewString(),
				UserID:        fmt.Sprintf("u%d", i),
				Items:         []models.LineItem{{ProductID: "P1", Quantity: 1}},
				PaymentMethod: "COD",
				Status:        models.OrderStatusPending,
				CreatedAt:     time.Now().UTC(),
				UpdatedAt:     time.Now().UTC(),
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var stockErr *InsufficientStockError
		assert.ErrorAs(t, err, &stockErr)
	}
	assert.Equal(t, 1, succeeded)

	p, err := s.GetProduct(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)
}

func TestMySQLStore_PlaceOrder_RollsBackOnShortLine(t *testing.T) {
	s := setupMySQLStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertProduct(ctx, &models.Product{ID: "A", Name: "A", Slug: "a", Price: 1, Stock: 5}))
	require.NoError(t, s.UpsertProduct(ctx, &models.Product{ID: "B", Name: "B", Slug: "b", Price: 1, Stock: 1}))

	order := &models.Order{
		ID:            uuid.NewString(),
		UserID:        "u1",
		Items:         []models.LineItem{{ProductID: "A", Quantity: 2}, {ProductID: "B", Quantity: 2}},
		PaymentMethod: "COD",
		Status:        models.OrderStatusPending,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	var stockErr *InsufficientStockError
	require.ErrorAs(t, s.PlaceOrder(ctx, order), &stockErr)
	assert.Equal(t, "B", stockErr.ProductID)

	a, err := s.GetProduct(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 5, a.Stock)
	_, err = s.GetOrder(ctx, order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
