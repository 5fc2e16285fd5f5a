package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/SigNoz/ecommerce-checkout/internal/db"
	"github.com/SigNoz/ecommerce-checkout/internal/metrics"
	"github.com/SigNoz/ecommerce-checkout/internal/models"
	"go.uber.org/zap"
)

const productColumns = "id, name, slug, image, price, discount_price, discount_percent, stock, sold_count, created_at, updated_at"

const orderColumns = "id, user_id, items, subtotal, shipping_fee, total, payment_method, status, shipping_address, created_at, updated_at"

// MySQLStore implements Store on the instrumented MySQL pool
type MySQLStore struct {
	db      *db.DB
	metrics *metrics.AppMetrics
	logger  *zap.Logger
}

// NewMySQLStore creates a MySQL-backed store
func NewMySQLStore(database *db.DB, m *metrics.AppMetrics, logger *zap.Logger) *MySQLStore {
	return &MySQLStore{
		db:      database,
		metrics: m,
		logger:  logger,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var p models.Product
	err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.Image, &p.Price, &p.DiscountPrice,
		&p.DiscountPercent, &p.Stock, &p.SoldCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *MySQLStore) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	start := time.Now()
	query := "SELECT " + productColumns + " FROM products WHERE id = ?"
	p, err := scanProduct(s.db.QueryRowContext(ctx, query, id))
	s.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil || err == sql.ErrNoRows)

	if err == sql.ErrNoRows {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

func (s *MySQLStore) GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	args := make([]interface{}, len(ids))
	placeholders := make([]string, len(ids))
	for i, id := range ids {
		args[i] = id
		placeholders[i] = "?"
	}

	start := time.Now()
	query := fmt.Sprintf("SELECT %s FROM products WHERE id IN (%s)", productColumns, strings.Join(placeholders, ","))
	rows, err := s.db.QueryContext(ctx, query, args...)
	s.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]models.Product, 0, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *MySQLStore) ApplyProductDelta(ctx context.Context, id string, delta models.ProductDelta) error {
	start := time.Now()
	query := `UPDATE products
		SET stock = GREATEST(stock + ?, 0),
		    sold_count = GREATEST(sold_count + ?, 0),
		    updated_at = CURRENT_TIMESTAMP(6)
		WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, delta.StockDelta, delta.SoldCountDelta, id)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "products", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to update product counters: %w", err)
	}

	// updated_at always changes, so zero rows means no such product
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (s *MySQLStore) UpsertProduct(ctx context.Context, p *models.Product) error {
	start := time.Now()
	query := `INSERT INTO products (id, name, slug, image, price, discount_price, discount_percent, stock, sold_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE name = VALUES(name), slug = VALUES(slug), image = VALUES(image),
		    price = VALUES(price), discount_price = VALUES(discount_price),
		    discount_percent = VALUES(discount_percent), stock = VALUES(stock),
		    sold_count = VALUES(sold_count), updated_at = CURRENT_TIMESTAMP(6)`
	_, err := s.db.ExecContext(ctx, query, p.ID, p.Name, p.Slug, p.Image, p.Price, p.DiscountPrice,
		p.DiscountPercent, p.Stock, p.SoldCount)
	s.metrics.RecordDBQuery(ctx, "INSERT", "products", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}
	return nil
}

func (s *MySQLStore) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	start := time.Now()
	query := `SELECT user_id, items, total_amount, total_discount_amount, final_amount, total_items, created_at, updated_at
		FROM carts WHERE user_id = ?`

	var cart models.Cart
	var items []byte
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&cart.UserID, &items, &cart.TotalAmount, &cart.TotalDiscountAmount,
		&cart.FinalAmount, &cart.TotalItems, &cart.CreatedAt, &cart.UpdatedAt,
	)
	s.metrics.RecordDBQuery(ctx, "SELECT", "carts", query, start, err == nil || err == sql.ErrNoRows)

	if err == sql.ErrNoRows {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	if err := json.Unmarshal(items, &cart.Items); err != nil {
		return nil, fmt.Errorf("failed to decode cart items: %w", err)
	}
	return &cart, nil
}

func (s *MySQLStore) SaveCart(ctx context.Context, cart *models.Cart) error {
	items := cart.Items
	if items == nil {
		items = []models.LineItem{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode cart items: %w", err)
	}

	start := time.Now()
	query := `INSERT INTO carts (user_id, items, total_amount, total_discount_amount, final_amount, total_items, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE items = VALUES(items), total_amount = VALUES(total_amount),
		    total_discount_amount = VALUES(total_discount_amount), final_amount = VALUES(final_amount),
		    total_items = VALUES(total_items), updated_at = VALUES(updated_at)`
	_, err = s.db.ExecContext(ctx, query, cart.UserID, string(itemsJSON), cart.TotalAmount, cart.TotalDiscountAmount,
		cart.FinalAmount, cart.TotalItems, cart.CreatedAt, cart.UpdatedAt)
	s.metrics.RecordDBQuery(ctx, "INSERT", "carts", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var o models.Order
	var items, address []byte
	var status string
	err := row.Scan(&o.ID, &o.UserID, &items, &o.Subtotal, &o.ShippingFee, &o.Total,
		&o.PaymentMethod, &status, &address, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = models.OrderStatus(status)
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("failed to decode order items: %w", err)
	}
	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("failed to decode shipping address: %w", err)
	}
	return &o, nil
}

func (s *MySQLStore) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	start := time.Now()
	query := "SELECT " + orderColumns + " FROM orders WHERE id = ?"
	o, err := scanOrder(s.db.QueryRowContext(ctx, query, id))
	s.metrics.RecordDBQuery(ctx, "SELECT", "orders", query, start, err == nil || errors.Is(err, sql.ErrNoRows))

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

func (s *MySQLStore) ListOrdersByUser(ctx context.Context, userID string, offset, limit int) ([]models.Order, int, error) {
	start := time.Now()
	countQuery := "SELECT COUNT(*) FROM orders WHERE user_id = ?"
	var total int
	err := s.db.QueryRowContext(ctx, countQuery, userID).Scan(&total)
	s.metrics.RecordDBQuery(ctx, "SELECT", "orders", countQuery, start, err == nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	start = time.Now()
	query := "SELECT " + orderColumns + " FROM orders WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, query, userID, limit, offset)
	s.metrics.RecordDBQuery(ctx, "SELECT", "orders", query, start, err == nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, total, rows.Err()
}

func (s *MySQLStore) UpdateOrderStatus(ctx context.Context, id string, from, to models.OrderStatus) error {
	start := time.Now()
	query := "UPDATE orders SET status = ?, updated_at = CURRENT_TIMESTAMP(6) WHERE id = ? AND status = ?"
	result, err := s.db.ExecContext(ctx, query, string(to), id, string(from))
	s.metrics.RecordDBQuery(ctx, "UPDATE", "orders", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	start = time.Now()
	existsQuery := "SELECT EXISTS(SELECT 1 FROM orders WHERE id = ?)"
	var exists bool
	err = s.db.QueryRowContext(ctx, existsQuery, id).Scan(&exists)
	s.metrics.RecordDBQuery(ctx, "SELECT", "orders", existsQuery, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to check order: %w", err)
	}
	if !exists {
		return ErrOrderNotFound
	}
	return ErrOrderStatusConflict
}

// PlaceOrder runs the conditional stock decrements and the order insert in one transaction.
// Rows are touched in product id order so concurrent checkouts lock in the same sequence.
func (s *MySQLStore) PlaceOrder(ctx context.Context, order *models.Order) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to encode order items: %w", err)
	}
	addressJSON, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to encode shipping address: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	lines := append([]models.LineItem(nil), order.Items...)
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

	stockQuery := `UPDATE products
		SET stock = stock - ?, sold_count = sold_count + ?, updated_at = CURRENT_TIMESTAMP(6)
		WHERE id = ? AND stock >= ?`
	for _, item := range lines {
		start := time.Now()
		result, err := tx.ExecContext(ctx, stockQuery, item.Quantity, item.Quantity, item.ProductID, item.Quantity)
		s.metrics.RecordDBQuery(ctx, "UPDATE", "products", stockQuery, start, err == nil)
		if err != nil {
			return fmt.Errorf("failed to deduct stock: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if n == 0 {
			s.logger.Info("stock condition failed inside order transaction",
				zap.String("order_id", order.ID),
				zap.String("product_id", item.ProductID),
				zap.Int("requested", item.Quantity))
			return &InsufficientStockError{ProductID: item.ProductID, Requested: item.Quantity}
		}
	}

	start := time.Now()
	orderQuery := "INSERT INTO orders (" + orderColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	_, err = tx.ExecContext(ctx, orderQuery, order.ID, order.UserID, string(itemsJSON), order.Subtotal,
		order.ShippingFee, order.Total, order.PaymentMethod, string(order.Status), string(addressJSON),
		order.CreatedAt, order.UpdatedAt)
	s.metrics.RecordDBQuery(ctx, "INSERT", "orders", orderQuery, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
