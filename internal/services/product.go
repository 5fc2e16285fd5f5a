package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/SigNoz/ecommerce-checkout/internal/apperr"
	"github.com/SigNoz/ecommerce-checkout/internal/metrics"
	"github.com/SigNoz/ecommerce-checkout/internal/models"
	"github.com/SigNoz/ecommerce-checkout/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ProductService is the checkout core's view of the catalog. It never caches: every read
// goes to the store so reconciliation always sees current prices.
type ProductService struct {
	products store.ProductStore
	metrics  *metrics.AppMetrics
	logger   *zap.Logger
}

// NewProductService creates a new product service
func NewProductService(products store.ProductStore, metrics *metrics.AppMetrics, logger *zap.Logger) *ProductService {
	return &ProductService{
		products: products,
		metrics:  metrics,
		logger:   logger,
	}
}

// GetProduct returns a product by ID
func (s *ProductService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	p, err := s.products.GetProduct(ctx, id)
	if errors.Is(err, store.ErrProductNotFound) {
		return nil, apperr.NotFound("product %s not found", id)
	}
	if err != nil {
		return nil, apperr.Internal("failed to get product", err)
	}
	s.recordInventory(ctx, p)
	return p, nil
}

// GetProductsByIDs returns the products that exist, keyed by id.
func (s *ProductService) GetProductsByIDs(ctx context.Context, ids []string) (map[string]models.Product, error) {
	found := make(map[string]models.Product, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	products, err := s.products.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("failed to get products", err)
	}
	for i := range products {
		found[products[i].ID] = products[i]
		s.recordInventory(ctx, &products[i])
	}
	return found, nil
}

// ApplyProductDelta patches stock and sold count without touching other fields.
func (s *ProductService) ApplyProductDelta(ctx context.Context, id string, delta models.ProductDelta) error {
	err := s.products.ApplyProductDelta(ctx, id, delta)
	if errors.Is(err, store.ErrProductNotFound) {
		return apperr.NotFound("product %s not found", id)
	}
	if err != nil {
		return apperr.Internal("failed to update product counters", err)
	}
	return nil
}

// SeedProducts upserts the JSON array of products found at path.
func (s *ProductService) SeedProducts(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed file: %w", err)
	}

	var products []models.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return 0, fmt.Errorf("failed to parse seed file: %w", err)
	}

	for i := range products {
		p := &products[i]
		if p.ID == "" {
			return i, fmt.Errorf("seed product %d has no id", i)
		}
		if p.Stock < 0 {
			p.Stock = 0
		}
		if err := s.products.UpsertProduct(ctx, p); err != nil {
			return i, fmt.Errorf("failed to seed product %s: %w", p.ID, err)
		}
		s.recordInventory(ctx, p)
	}

	s.logger.Info("seeded products", zap.String("path", path), zap.Int("count", len(products)))
	return len(products), nil
}

func (s *ProductService) recordInventory(ctx context.Context, p *models.Product) {
	s.metrics.InventoryLevel.Record(ctx, int64(p.Stock), s.metrics.Attrs(
		attribute.String("product_id", p.ID),
	))
}
