package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/SigNoz/ecommerce-checkout/internal/apperr"
	"github.com/SigNoz/ecommerce-checkout/internal/metrics"
	"github.com/SigNoz/ecommerce-checkout/internal/models"
	"github.com/SigNoz/ecommerce-checkout/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCartService_GetCartCreatesEmptyCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.carts.GetCart(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", view.UserID)
	assert.Empty(t, view.Items)
	assert.Equal(t, models.CartTotals{}, view.CartTotals)

	_, err = f.store.GetCart(ctx, "u1")
	assert.NoError(t, err)
}

func TestCartService_AddToCart(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "P1", 100, 90, 10)

	view, err := f.carts.AddToCart(context.Background(), "u1", models.AddToCartRequest{ProductID: "P1", Quantity: 2})
	require.NoError(t, err)

	require.Len(t, view.Items, 1)
	item := view.Items[0]
	assert.Equal(t, 2, item.Quantity)
	assert.Equal(t, int64(200), item.LineTotal)
	assert.Equal(t, int64(180), item.LineDiscountTotal)
	assert.Equal(t, "Product P1", item.Name)
	assert.Equal(t, "product-P1", item.Slug)
	assert.True(t, item.InStock)
	assert.Equal(t, 10, item.AvailableStock)

	assert.Equal(t, int64(200), view.TotalAmount)
	assert.Equal(t, int64(20), view.TotalDiscountAmount)
	assert.Equal(t, int64(180), view.FinalAmount)
	assert.Equal(t, 2, view.TotalItems)
	assert.Equal(t, sumDiscounted(view.Items), view.FinalAmount)
}

func TestCartService_AddToCartSumsQuantityAndRefreshesPrice(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "P1", 100, 90, 10)
	ctx := context.Background()

	_, err := f.carts.AddToCart(ctx, "u1", models.AddToCartRequest{ProductID: "P1", Quantity: 2})
	require.NoError(t, err)

	f.seed(t, "P1", 120, 0, 10)
	view, err := f.carts.AddToCart(ctx, "u1", models.AddToCartRequest{ProductID: "P1", Quantity: 3})
	require.NoError(t, err)

	require.Len(t, view.Items, 1)
	assert.Equal(t, 5, view.Items[0].Quantity)
	assert.Equal(t, int64(120), view.Items[0].UnitPrice)
	assert.Equal(t, int64(120), view.Items[0].UnitDiscountPrice)
	assert.Equal(t, int64(600), view.FinalAmount)
}

func TestCartService_AddToCartErrors(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "P1", 100, 0, 10)
	ctx := context.Background()

	tests := []struct {
		name string
		req  models.AddToCartRequest
		code apperr.Code
	}{
		{"zero quantity", models.AddToCartRequest{ProductID: "P1", Quantity: 0}, apperr.CodeInvalidArgument},
		{"negative quantity", models.AddToCartRequest{ProductID: "P1", Quantity: -1}, apperr.CodeInvalidArgument},
		{"missing product id", models.AddToCartRequest{Quantity: 1}, apperr.CodeInvalidArgument},
		{"unknown product", models.AddToCartRequest{ProductID: "nope", Quantity: 1}, apperr.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.carts.AddToCart(ctx, "u1", tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperr.CodeOf(err))
		})
	}
}

func TestCartService_AddToCartIgnoresStock(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "P1", 100, 0, 1)

	view, err := f.carts.AddToCart(context.Background(), "u1", models.AddToCartRequest{ProductID: "P1", Quantity: 5})
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.False(t, view.Items[0].InStock)
	assert.Equal(t, 1, view.Items[0].AvailableStock)
}

func TestCartService_UpdateCartItemToZeroRemoves(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "P1", 100, 90, 10)
	ctx := context.Background()

	_, err := f.carts.AddToCart(ctx, "u1", models.AddToCartRequest{ProductID: "P1", Quantity: 2})
	require.NoError(t, err)

	view, err := f.carts.UpdateCartItem(ctx, "u1", models.UpdateCartItemRequest{ProductID: "P1", Quantity: 0})
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.Equal(t, models.CartTotals{}, view.CartTotals)
}

func TestCartService_UpdateCartItemSetsQuantity(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "P1", 100, 90, 10)
	ctx := context.Background()

	_, err := f.carts.AddToCart(ctx, "u1", models.AddToCartRequest{ProductID: "P1", Quantity: 2})
	require.NoError(t, err)

	view, err := f.carts.UpdateCartItem(ctx, "u1", models.UpdateCartItemRequest{ProductID: "P1", Quantity: 7})
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 7, view.Items[0].Quantity)
	assert.Equal(t, int64(630), view.FinalAmount)
	assert.Equal(t, 7, view.TotalItems)
}

func TestCartService_UpdateCartItemNotInCart(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "P1", 100, 0, 10)
	ctx := context.Background()

	_, err := f.carts.UpdateCartItem(ctx, "u1", models.UpdateCartItemRequest{ProductID: "P1", Quantity: 1})
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	_, err = f.carts.GetCart(ctx, "u1")
	require.NoError(t, err)
	_, err = f.carts.UpdateCartItem(ctx, "u1", models.UpdateCartItemRequest{ProductID: "P1", Quantity: 1})
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestCartService_RemoveAbsentItemIsNoop(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "P1", 100, 90, 10)
	ctx := context.Background()

	_, err := f.carts.AddToCart(ctx, "u1", models.AddToCartRequest{ProductID: "P1", Quantity: 2})
	require.NoError(t, err)
	before, err := f.store.GetCart(ctx, "u1")
	require.NoError(t, err)

	view, err := f.carts.RemoveFromCart(ctx, "u1", "P2")
	require.NoError(t, err)
	assert.Len(t, view.Items, 1)

	after, err := f.store.GetCart(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestCartService_RemoveFromCart(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "P1", 100, 90, 10)
	f.seed(t, "P2", 50, 0, 10)
	ctx := context.Background()

	_, err := f.carts.AddToCart(ctx, "u1", models.AddToCartRequest{ProductID: "P1", Quantity: 2})
	require.NoError(t, err)
	_, err = f.carts.AddToCart(ctx, "u1", models.AddToCartRequest{ProductID: "P2", Quantity: 1})
	require.NoError(t, err)

	view, err := f.carts.RemoveFromCart(ctx, "u1", "P1")
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "P2", view.Items[0].ProductID)
	assert.Equal(t, int64(50), view.FinalAmount)
	assert.Equal(t, 1, view.TotalItems)
}

func TestCartService_RemoveWithoutCartDoesNotCreateOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.carts.RemoveFromCart(ctx, "u1", "P1")
	require.NoError(t, err)
	assert.Empty(t, view.Items)

	_, err = f.store.GetCart(ctx, "u1")
	assert.ErrorIs(t, err, store.ErrCartNotFound)
}

func TestCartService_ClearCart(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "P1", 100, 90, 10)
	ctx := context.Background()

	require.NoError(t, f.carts.ClearCart(ctx, "nobody"))
	_, err := f.store.GetCart(ctx, "nobody")
	assert.ErrorIs(t, err, store.ErrCartNotFound)

	_, err = f.carts.AddToCart(ctx, "u1", models.AddToCartRequest{ProductID: "P1", Quantity: 2})
	require.NoError(t, err)
	require.NoError(t, f.carts.ClearCart(ctx, "u1"))

	view, err := f.carts.GetCart(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.Equal(t, models.CartTotals{}, view.CartTotals)
}

func TestCartService_ReconcilesPriceChangeOnce(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "P1", 100, 90, 10)
	ctx := context.Background()

	_, err := f.carts.AddToCart(ctx, "u1", models.AddToCartRequest{ProductID: "P1", Quantity: 2})
	require.NoError(t, err)

	f.seed(t, "P1", 150, 120, 10)

	first, err := f.carts.GetCart(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, first.Items, 1)
	assert.Equal(t, int64(150), first.Items[0].UnitPrice)
	assert.Equal(t, int64(120), first.Items[0].UnitDiscountPrice)
	assert.Equal(t, int64(300), first.TotalAmount)
	assert.Equal(t, int64(60), first.TotalDiscountAmount)
	assert.Equal(t, int64(240), first.FinalAmount)

	stored, err := f.store.GetCart(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(240), stored.FinalAmount)

	second, err := f.carts.GetCart(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCartService_ReconcileDropsMissingProducts(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "P1", 100, 0, 10)
	ctx := context.Background()

	p1 := f.product(t, "P1")
	require.NoError(t, f.store.SaveCart(ctx, &models.Cart{
		UserID: "u1",
		Items: []models.LineItem{
			models.NewLineItem(p1, 1),
			{ProductID: "GONE", UnitPrice: 10, UnitDiscountPrice: 10, Quantity: 4, LineTotal: 40, LineDiscountTotal: 40},
		},
	}))

	view, err := f.carts.GetCart(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "P1", view.Items[0].ProductID)
	assert.Equal(t, int64(100), view.FinalAmount)
	assert.Equal(t, 1, view.TotalItems)

	stored, err := f.store.GetCart(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, stored.Items, 1)
}

func TestCartService_ReconcileFixesDriftedTotals(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "P1", 100, 0, 10)
	ctx := context.Background()

	require.NoError(t, f.store.SaveCart(ctx, &models.Cart{
		UserID:     "u1",
		Items:      []models.LineItem{models.NewLineItem(f.product(t, "P1"), 3)},
		CartTotals: models.CartTotals{TotalAmount: 1, FinalAmount: 1, TotalItems: 1},
	}))

	view, err := f.carts.GetCart(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(300), view.FinalAmount)
	assert.Equal(t, 3, view.TotalItems)
}

func TestCartService_ConcurrentReads(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "P1", 100, 0, 10)
	ctx := context.Background()
	_, err := f.carts.AddToCart(ctx, "u1", models.AddToCartRequest{ProductID: "P1", Quantity: 1})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			view, err := f.carts.GetCart(ctx, "u1")
			if err == nil && len(view.Items) != 1 {
				err = assert.AnError
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

// gatedCartStore holds the first GetCart until release is closed, honouring ctx like a real store.
type gatedCartStore struct {
	store.CartStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedCartStore) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.CartStore.GetCart(ctx, userID)
}

func TestCartService_GetCartSurvivesOtherCallerCancel(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "P1", 100, 0, 10)
	_, err := f.carts.AddToCart(context.Background(), "u1", models.AddToCartRequest{ProductID: "P1", Quantity: 2})
	require.NoError(t, err)

	gated := &gatedCartStore{CartStore: f.store, entered: make(chan struct{}), release: make(chan struct{})}
	carts := NewCartService(gated, f.catalog, metrics.NewNoop("test"), zaptest.NewLogger(t))

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := carts.GetCart(ctxA, "u1")
		errA <- err
	}()
	<-gated.entered

	type result struct {
		view *models.CartView
		err  error
	}
	resB := make(chan result, 1)
	go func() {
		view, err := carts.GetCart(context.Background(), "u1")
		resB <- result{view, err}
	}()
	// let B join the in-flight read before A goes away
	time.Sleep(50 * time.Millisecond)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(gated.release)
	b := <-resB
	require.NoError(t, b.err)
	require.Len(t, b.view.Items, 1)
	assert.Equal(t, 2, b.view.Items[0].Quantity)
}
