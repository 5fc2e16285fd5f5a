package services

import (
	"context"
	"errors"
	"time"

	"github.com/SigNoz/ecommerce-checkout/internal/apperr"
	"github.com/SigNoz/ecommerce-checkout/internal/metrics"
	"github.com/SigNoz/ecommerce-checkout/internal/models"
	"github.com/SigNoz/ecommerce-checkout/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CartService handles cart-related operations. Concurrent mutations of one user's cart are
// unguarded read-modify-writes; the last save wins.
type CartService struct {
	carts      store.CartStore
	catalog    *ProductService
	reconciler *Reconciler
	metrics    *metrics.AppMetrics
	logger     *zap.Logger
	sfg        singleflight.Group
	now        func() time.Time
}

// NewCartService creates a new cart service
func NewCartService(carts store.CartStore, catalog *ProductService, m *metrics.AppMetrics, logger *zap.Logger) *CartService {
	return &CartService{
		carts:      carts,
		catalog:    catalog,
		reconciler: NewReconciler(catalog, carts, m, logger),
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// GetCart returns the reconciled cart, creating an empty one on first access.
func (s *CartService) GetCart(ctx context.Context, userID string) (*models.CartView, error) {
	// Concurrent reads of one cart share a flight. The flight outlives any single caller's
	// cancellation, and each caller stops waiting when its own context ends.
	ch := s.sfg.DoChan(userID, func() (interface{}, error) {
		flightCtx := context.WithoutCancel(ctx)
		cart, err := s.loadCart(flightCtx, userID, true)
		if err != nil {
			return nil, err
		}
		return s.reconcileView(flightCtx, cart)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.CartView), nil
	}
}

// AddToCart adds quantity units of a product, summing with an existing line.
func (s *CartService) AddToCart(ctx context.Context, userID string, req models.AddToCartRequest) (*models.CartView, error) {
	if req.ProductID == "" {
		return nil, apperr.InvalidArgument("product_id is required")
	}
	if req.Quantity < 1 {
		return nil, apperr.InvalidArgument("quantity must be at least 1")
	}

	product, err := s.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	cart, err := s.loadCart(ctx, userID, true)
	if err != nil {
		return nil, err
	}

	if idx := cart.FindItem(req.ProductID); idx >= 0 {
		cart.Items[idx] = models.NewLineItem(product, cart.Items[idx].Quantity+req.Quantity)
	} else {
		cart.Items = append(cart.Items, models.NewLineItem(product, req.Quantity))
	}

	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}
	return s.reconcileView(ctx, cart)
}

// UpdateCartItem sets a line's quantity; zero or below removes the line.
func (s *CartService) UpdateCartItem(ctx context.Context, userID string, req models.UpdateCartItemRequest) (*models.CartView, error) {
	if req.ProductID == "" {
		return nil, apperr.InvalidArgument("product_id is required")
	}

	cart, err := s.loadCart(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	idx := -1
	if cart != nil {
		idx = cart.FindItem(req.ProductID)
	}
	if idx < 0 {
		return nil, apperr.NotFound("product %s is not in the cart", req.ProductID)
	}

	if req.Quantity <= 0 {
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	} else {
		product, err := s.catalog.GetProduct(ctx, req.ProductID)
		if err != nil {
			return nil, err
		}
		cart.Items[idx] = models.NewLineItem(product, req.Quantity)
	}

	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}
	return s.reconcileView(ctx, cart)
}

// RemoveFromCart drops a product's line. Removing an absent product changes nothing.
func (s *CartService) RemoveFromCart(ctx context.Context, userID, productID string) (*models.CartView, error) {
	cart, err := s.loadCart(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return emptyView(userID), nil
	}

	if idx := cart.FindItem(productID); idx >= 0 {
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
		if err := s.save(ctx, cart); err != nil {
			return nil, err
		}
	}
	return s.reconcileView(ctx, cart)
}

// ClearCart empties the cart. A user without a cart is left alone.
func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	cart, err := s.loadCart(ctx, userID, false)
	if err != nil {
		return err
	}
	if cart == nil {
		return nil
	}

	cart.Items = []models.LineItem{}
	return s.save(ctx, cart)
}

// loadCart reads the user's cart. A missing cart is created when create is set and
// reported as nil otherwise.
func (s *CartService) loadCart(ctx context.Context, userID string, create bool) (*models.Cart, error) {
	cart, err := s.carts.GetCart(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, store.ErrCartNotFound) {
		return nil, apperr.Internal("failed to get cart", err)
	}
	if !create {
		return nil, nil
	}

	now := s.now()
	cart = &models.Cart{
		UserID:    userID,
		Items:     []models.LineItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.carts.SaveCart(ctx, cart); err != nil {
		return nil, apperr.Internal("failed to create cart", err)
	}
	s.logger.Debug("created cart", zap.String("user_id", userID))
	return cart, nil
}

func (s *CartService) save(ctx context.Context, cart *models.Cart) error {
	cart.CartTotals = CalculateTotals(cart.Items)
	cart.UpdatedAt = s.now()
	if err := s.carts.SaveCart(ctx, cart); err != nil {
		return apperr.Internal("failed to save cart", err)
	}
	return nil
}

func (s *CartService) reconcileView(ctx context.Context, cart *models.Cart) (*models.CartView, error) {
	products, err := s.reconciler.Reconcile(ctx, cart)
	if err != nil {
		return nil, err
	}

	s.metrics.CartItemsCount.Record(ctx, int64(cart.TotalItems), s.metrics.Attrs(
		attribute.String("user_id", cart.UserID),
	))
	return buildView(cart, products), nil
}

func buildView(cart *models.Cart, products map[string]models.Product) *models.CartView {
	view := &models.CartView{
		UserID:     cart.UserID,
		Items:      make([]models.CartItemView, 0, len(cart.Items)),
		CartTotals: cart.CartTotals,
		CreatedAt:  cart.CreatedAt,
		UpdatedAt:  cart.UpdatedAt,
	}
	for _, item := range cart.Items {
		p, ok := products[item.ProductID]
		iv := models.CartItemView{LineItem: item}
		if ok {
			iv.InStock = p.Stock >= item.Quantity
			iv.AvailableStock = p.Stock
		}
		view.Items = append(view.Items, iv)
	}
	return view
}

func emptyView(userID string) *models.CartView {
	return &models.CartView{
		UserID: userID,
		Items:  []models.CartItemView{},
	}
}
