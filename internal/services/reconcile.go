package services

import (
	"context"

	"github.com/SigNoz/ecommerce-checkout/internal/apperr"
	"github.com/SigNoz/ecommerce-checkout/internal/metrics"
	"github.com/SigNoz/ecommerce-checkout/internal/models"
	"github.com/SigNoz/ecommerce-checkout/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Reconciler brings a cart's price snapshots back in line with the catalog.
type Reconciler struct {
	catalog *ProductService
	carts   store.CartStore
	metrics *metrics.AppMetrics
	logger  *zap.Logger
}

func NewReconciler(catalog *ProductService, carts store.CartStore, m *metrics.AppMetrics, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		catalog: catalog,
		carts:   carts,
		metrics: m,
		logger:  logger,
	}
}

// Reconcile drops lines whose product is gone, reprices stale lines and recomputes totals.
// The cart is modified in place and saved only when something changed. The products read
// are returned so callers can annotate the view with live stock.
func (r *Reconciler) Reconcile(ctx context.Context, cart *models.Cart) (map[string]models.Product, error) {
	ids := make([]string, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}

	products, err := r.catalog.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	var dropped, repriced int
	kept := cart.Items[:0]
	for _, item := range cart.Items {
		p, ok := products[item.ProductID]
		if !ok {
			dropped++
			r.logger.Info("dropping cart item for missing product",
				zap.String("user_id", cart.UserID),
				zap.String("product_id", item.ProductID),
			)
			continue
		}
		if item.PricingStale(&p) {
			item.ApplyPricing(&p)
			repriced++
		}
		kept = append(kept, item)
	}
	cart.Items = kept

	totals := CalculateTotals(cart.Items)
	if dropped == 0 && repriced == 0 && totals == cart.CartTotals {
		return products, nil
	}
	cart.CartTotals = totals

	if dropped > 0 {
		r.metrics.CartReconciliations.Add(ctx, int64(dropped), r.metrics.Attrs(attribute.String("action", "dropped")))
	}
	if repriced > 0 {
		r.metrics.CartReconciliations.Add(ctx, int64(repriced), r.metrics.Attrs(attribute.String("action", "repriced")))
	}

	if err := r.carts.SaveCart(ctx, cart); err != nil {
		return nil, apperr.Internal("failed to save reconciled cart", err)
	}
	return products, nil
}
