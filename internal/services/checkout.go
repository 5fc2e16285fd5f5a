package services

import (
	"context"
	"errors"
	"time"

	"github.com/SigNoz/ecommerce-checkout/internal/apperr"
	"github.com/SigNoz/ecommerce-checkout/internal/metrics"
	"github.com/SigNoz/ecommerce-checkout/internal/models"
	"github.com/SigNoz/ecommerce-checkout/internal/store"
	"github.com/SigNoz/ecommerce-checkout/pkg/config"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CheckoutService turns a checkout request into a persisted order.
type CheckoutService struct {
	placer  store.OrderPlacer
	catalog *ProductService
	carts   *CartService
	cfg     config.CheckoutConfig
	metrics *metrics.AppMetrics
	logger  *zap.Logger

	newID func() string
	now   func() time.Time
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	placer store.OrderPlacer,
	catalog *ProductService,
	carts *CartService,
	cfg config.CheckoutConfig,
	m *metrics.AppMetrics,
	logger *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		placer:  placer,
		catalog: catalog,
		carts:   carts,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
		newID:   uuid.NewString,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Checkout validates the request against live stock, freezes pricing into a pending order,
// commits the order together with the stock deduction and then empties the user's cart.
// The items come from the request, not from the stored cart.
func (s *CheckoutService) Checkout(ctx context.Context, userID string, req models.CheckoutRequest) (*models.Order, error) {
	order, err := s.checkout(ctx, userID, req)
	if err != nil {
		s.recordOutcome(ctx, outcomeOf(err))
		return nil, err
	}
	s.recordOutcome(ctx, "success")
	return order, nil
}

func (s *CheckoutService) checkout(ctx context.Context, userID string, req models.CheckoutRequest) (*models.Order, error) {
	if req.PaymentMethod != s.cfg.PaymentMethod {
		return nil, apperr.InvalidArgument("unsupported payment method %q", req.PaymentMethod)
	}
	if len(req.Items) == 0 {
		return nil, apperr.InvalidArgument("checkout requires at least one item")
	}
	if !req.ShippingAddress.Complete() {
		return nil, apperr.InvalidArgument("shipping address requires full_name, phone and street")
	}

	lines, err := mergeCheckoutItems(req.Items)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(lines))
	for i, line := range lines {
		ids[i] = line.ProductID
	}
	products, err := s.catalog.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]models.LineItem, 0, len(lines))
	for _, line := range lines {
		p, ok := products[line.ProductID]
		if !ok {
			return nil, apperr.NotFound("product %s not found", line.ProductID)
		}
		if p.Stock < line.Quantity {
			return nil, apperr.FailedPrecondition("insufficient stock for product %s: requested %d, available %d",
				p.ID, line.Quantity, p.Stock)
		}
		items = append(items, models.NewLineItem(&p, line.Quantity))
	}

	subtotal := Subtotal(items)
	shipping := ShippingFee(subtotal, s.cfg)
	now := s.now()
	order := &models.Order{
		ID:              s.newID(),
		UserID:          userID,
		Items:           items,
		Subtotal:        subtotal,
		ShippingFee:     shipping,
		Total:           subtotal + shipping,
		PaymentMethod:   req.PaymentMethod,
		Status:          models.OrderStatusPending,
		ShippingAddress: req.ShippingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.placer.PlaceOrder(ctx, order); err != nil {
		var stockErr *store.InsufficientStockError
		switch {
		case errors.As(err, &stockErr):
			// stock moved between validation and commit
			return nil, apperr.FailedPrecondition("insufficient stock for product %s: requested %d",
				stockErr.ProductID, stockErr.Requested)
		case errors.Is(err, store.ErrProductNotFound):
			return nil, apperr.NotFound("product no longer exists")
		default:
			return nil, apperr.Internal("failed to place order", err)
		}
	}

	// The order is committed; a failed clear only leaves stale lines in the cart.
	if err := s.carts.ClearCart(ctx, userID); err != nil {
		s.logger.Error("failed to clear cart after checkout",
			zap.String("user_id", userID),
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
	}

	s.metrics.OrdersCreated.Add(ctx, 1, s.metrics.Attrs(attribute.String("payment_method", order.PaymentMethod)))
	s.metrics.RevenueTotal.Add(ctx, order.Total, s.metrics.Attrs(attribute.String("payment_method", order.PaymentMethod)))
	for _, item := range order.Items {
		remaining := products[item.ProductID].Stock - item.Quantity
		s.metrics.InventoryLevel.Record(ctx, int64(remaining), s.metrics.Attrs(attribute.String("product_id", item.ProductID)))
	}

	s.logger.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("user_id", userID),
		zap.Int("item_count", order.ItemCount()),
		zap.Int64("total", order.Total),
	)
	return order, nil
}

// mergeCheckoutItems folds repeated products into one line, keeping first-seen order.
func mergeCheckoutItems(items []models.CheckoutItem) ([]models.CheckoutItem, error) {
	merged := make([]models.CheckoutItem, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		if item.ProductID == "" {
			return nil, apperr.InvalidArgument("product_id is required")
		}
		if item.Quantity < 1 {
			return nil, apperr.InvalidArgument("quantity for product %s must be at least 1", item.ProductID)
		}
		if i, ok := index[item.ProductID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged, nil
}

func (s *CheckoutService) recordOutcome(ctx context.Context, outcome string) {
	s.metrics.CheckoutsTotal.Add(ctx, 1, s.metrics.Attrs(attribute.String("outcome", outcome)))
}

func outcomeOf(err error) string {
	switch apperr.CodeOf(err) {
	case apperr.CodeInvalidArgument:
		return "invalid"
	case apperr.CodeNotFound:
		return "not_found"
	case apperr.CodeFailedPrecondition:
		return "out_of_stock"
	default:
		return "error"
	}
}
