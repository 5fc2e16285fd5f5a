package services

import (
	"context"
	"errors"

	"github.com/SigNoz/ecommerce-checkout/internal/apperr"
	"github.com/SigNoz/ecommerce-checkout/internal/metrics"
	"github.com/SigNoz/ecommerce-checkout/internal/models"
	"github.com/SigNoz/ecommerce-checkout/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	defaultOrderPageLimit = 10
	maxOrderPageLimit     = 50
)

// OrderService handles order-related operations
type OrderService struct {
	orders  store.OrderStore
	catalog *ProductService
	metrics *metrics.AppMetrics
	logger  *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(orders store.OrderStore, catalog *ProductService, m *metrics.AppMetrics, logger *zap.Logger) *OrderService {
	return &OrderService{
		orders:  orders,
		catalog: catalog,
		metrics: m,
		logger:  logger,
	}
}

// GetOrderByID returns the order if it belongs to userID.
func (s *OrderService) GetOrderByID(ctx context.Context, userID, orderID string) (*models.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if errors.Is(err, store.ErrOrderNotFound) {
		return nil, apperr.NotFound("order %s not found", orderID)
	}
	if err != nil {
		return nil, apperr.Internal("failed to get order", err)
	}
	if order.UserID != userID {
		return nil, apperr.Forbidden("order %s belongs to another user", orderID)
	}
	return order, nil
}

// ListOrders returns one newest-first page of the user's orders.
func (s *OrderService) ListOrders(ctx context.Context, userID string, page, limit int) (*models.OrderPage, error) {
	page, limit = normalizePage(page, limit)

	orders, total, err := s.orders.ListOrdersByUser(ctx, userID, (page-1)*limit, limit)
	if err != nil {
		return nil, apperr.Internal("failed to list orders", err)
	}

	result := &models.OrderPage{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
		Orders:     make([]models.OrderSummary, 0, len(orders)),
	}
	for i := range orders {
		result.Orders = append(result.Orders, orders[i].Summary())
	}
	return result, nil
}

// UpdateOrderStatus moves the caller's order along pending -> confirmed -> cancelled.
// Cancelling puts the ordered units back into stock.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, userID, orderID string, status models.OrderStatus) (*models.Order, error) {
	switch status {
	case models.OrderStatusPending, models.OrderStatusConfirmed, models.OrderStatusCancelled:
	default:
		return nil, apperr.InvalidArgument("unknown order status %q", status)
	}

	order, err := s.GetOrderByID(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	from := order.Status
	if !from.CanTransitionTo(status) {
		return nil, apperr.FailedPrecondition("order %s cannot move from %s to %s", orderID, from, status)
	}

	err = s.orders.UpdateOrderStatus(ctx, orderID, from, status)
	if errors.Is(err, store.ErrOrderStatusConflict) {
		return nil, apperr.FailedPrecondition("order %s changed concurrently", orderID)
	}
	if err != nil {
		return nil, apperr.Internal("failed to update order status", err)
	}
	order.Status = status

	if status == models.OrderStatusCancelled {
		s.restock(ctx, order)
	}

	s.metrics.OrderStatusChanges.Add(ctx, 1, s.metrics.Attrs(
		attribute.String("from", string(from)),
		attribute.String("to", string(status)),
	))
	s.logger.Info("order status changed",
		zap.String("order_id", orderID),
		zap.String("from", string(from)),
		zap.String("to", string(status)),
	)
	return order, nil
}

func (s *OrderService) restock(ctx context.Context, order *models.Order) {
	for _, item := range order.Items {
		delta := models.ProductDelta{StockDelta: item.Quantity, SoldCountDelta: -item.Quantity}
		if err := s.catalog.ApplyProductDelta(ctx, item.ProductID, delta); err != nil {
			// the status change stands; a product deleted since checkout has nothing to restock
			s.logger.Warn("failed to restock cancelled order item",
				zap.String("order_id", order.ID),
				zap.String("product_id", item.ProductID),
				zap.Error(err),
			)
		}
	}
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit == 0 {
		limit = defaultOrderPageLimit
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxOrderPageLimit {
		limit = maxOrderPageLimit
	}
	return page, limit
}
