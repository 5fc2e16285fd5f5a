package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/SigNoz/ecommerce-checkout/internal/models"
)

// MemoryStore implements Store in process memory. One mutex guards products, carts and
// orders so PlaceOrder is atomic with respect to every other call.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]*models.Product
	carts    map[string]*models.Cart
	orders   map[string]*models.Order
	byUser   map[string][]string // userID -> order ids in insertion order
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]*models.Product),
		carts:    make(map[string]*models.Cart),
		orders:   make(map[string]*models.Order),
		byUser:   make(map[string][]string),
	}
}

func (s *MemoryStore) GetProduct(_ context.Context, id string) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) GetProductsByIDs(_ context.Context, ids []string) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.Product, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := s.products[id]; ok {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (s *MemoryStore) ApplyProductDelta(_ context.Context, id string, delta models.ProductDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return ErrProductNotFound
	}
	p.Stock = max(0, p.Stock+delta.StockDelta)
	p.SoldCount = max(0, p.SoldCount+delta.SoldCountDelta)
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) UpsertProduct(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	now := time.Now().UTC()
	if existing, ok := s.products[p.ID]; ok {
		cp.CreatedAt = existing.CreatedAt
	} else if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.products[p.ID] = &cp
	return nil
}

func (s *MemoryStore) GetCart(_ context.Context, userID string) (*models.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.carts[userID]
	if !ok {
		return nil, ErrCartNotFound
	}
	return c.Clone(), nil
}

func (s *MemoryStore) SaveCart(_ context.Context, cart *models.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.carts[cart.UserID] = cart.Clone()
	return nil
}

func (s *MemoryStore) GetOrder(_ context.Context, id string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (s *MemoryStore) ListOrdersByUser(_ context.Context, userID string, offset, limit int) ([]models.Order, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byUser[userID]
	all := make([]*models.Order, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		all = append(all, s.orders[ids[i]])
	}
	// newest first; later inserts win ties
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if offset >= total {
		return []models.Order{}, total, nil
	}
	end := min(offset+limit, total)
	page := make([]models.Order, 0, end-offset)
	for _, o := range all[offset:end] {
		page = append(page, *o.Clone())
	}
	return page, total, nil
}

func (s *MemoryStore) UpdateOrderStatus(_ context.Context, id string, from, to models.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	if o.Status != from {
		return ErrOrderStatusConflict
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// PlaceOrder validates every line first and only then mutates, all under the write lock.
func (s *MemoryStore) PlaceOrder(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: every line must be covered
	for _, item := range order.Items {
		p, ok := s.products[item.ProductID]
		if !ok {
			return ErrProductNotFound
		}
		if p.Stock < item.Quantity {
			return &InsufficientStockError{ProductID: item.ProductID, Requested: item.Quantity}
		}
	}

	// Second pass: deduct and record
	now := time.Now().UTC()
	for _, item := range order.Items {
		p := s.products[item.ProductID]
		p.Stock -= item.Quantity
		p.SoldCount += item.Quantity
		p.UpdatedAt = now
	}

	s.orders[order.ID] = order.Clone()
	s.byUser[order.UserID] = append(s.byUser[order.UserID], order.ID)
	return nil
}
