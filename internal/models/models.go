package models

import "time"

// Money amounts are integer minor units of a single currency.

// Product is the catalog record this service reads and patches (stock, sold count).
type Product struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Slug            string    `json:"slug"`
	Image           string    `json:"image"`
	Price           int64     `json:"price"`
	DiscountPrice   int64     `json:"discount_price"`
	DiscountPercent int       `json:"discount_percent"`
	Stock           int       `json:"stock"`
	SoldCount       int       `json:"sold_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// EffectiveDiscountPrice returns the discounted unit price, falling back to Price when unset.
func (p *Product) EffectiveDiscountPrice() int64 {
	if p.DiscountPrice == 0 {
		return p.Price
	}
	return p.DiscountPrice
}

// ProductDelta is a targeted counter update applied to a product.
type ProductDelta struct {
	StockDelta     int
	SoldCountDelta int
}

// LineItem is one product entry inside a cart or an order.
type LineItem struct {
	ProductID         string `json:"product_id"`
	Name              string `json:"name"`
	Slug              string `json:"slug"`
	Image             string `json:"image"`
	UnitPrice         int64  `json:"unit_price"`
	UnitDiscountPrice int64  `json:"unit_discount_price"`
	DiscountPercent   int    `json:"discount_percent"`
	Quantity          int    `json:"quantity"`
	LineTotal         int64  `json:"line_total"`
	LineDiscountTotal int64  `json:"line_discount_total"`
}

// NewLineItem snapshots the product's display and pricing fields.
func NewLineItem(p *Product, quantity int) LineItem {
	item := LineItem{
		ProductID: p.ID,
		Name:      p.Name,
		Slug:      p.Slug,
		Image:     p.Image,
		Quantity:  quantity,
	}
	item.ApplyPricing(p)
	return item
}

// ApplyPricing overwrites the price snapshot from p and recomputes the line totals.
func (li *LineItem) ApplyPricing(p *Product) {
	li.UnitPrice = p.Price
	li.UnitDiscountPrice = p.EffectiveDiscountPrice()
	li.DiscountPercent = p.DiscountPercent
	li.Recompute()
}

// Recompute derives LineTotal and LineDiscountTotal from the unit prices and quantity.
func (li *LineItem) Recompute() {
	li.LineTotal = li.UnitPrice * int64(li.Quantity)
	li.LineDiscountTotal = li.UnitDiscountPrice * int64(li.Quantity)
}

// PricingStale reports whether the snapshot no longer matches p.
func (li *LineItem) PricingStale(p *Product) bool {
	return li.UnitPrice != p.Price || li.UnitDiscountPrice != p.EffectiveDiscountPrice()
}

// CartTotals are the aggregates derived from a cart's line items.
type CartTotals struct {
	TotalAmount         int64 `json:"total_amount"`
	TotalDiscountAmount int64 `json:"total_discount_amount"`
	FinalAmount         int64 `json:"final_amount"`
	TotalItems          int   `json:"total_items"`
}

// Cart is the single cart owned by a shopper.
type Cart struct {
	UserID string     `json:"user_id"`
	Items  []LineItem `json:"items"`
	CartTotals
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers never share the items slice.
func (c *Cart) Clone() *Cart {
	cp := *c
	if c.Items != nil {
		cp.Items = append([]LineItem(nil), c.Items...)
	}
	return &cp
}

// FindItem returns the index of productID in the cart, or -1.
func (c *Cart) FindItem(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// CanTransitionTo reports whether the status may move to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return next == OrderStatusConfirmed || next == OrderStatusCancelled
	case OrderStatusConfirmed:
		return next == OrderStatusCancelled
	default:
		return false
	}
}

// ShippingAddress is copied verbatim from the checkout request.
type ShippingAddress struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Street   string `json:"street"`
}

// Complete reports whether every field is present.
func (a ShippingAddress) Complete() bool {
	return a.FullName != "" && a.Phone != "" && a.Street != ""
}

// Order is an immutable snapshot of a checkout; only Status changes after creation.
type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Items           []LineItem      `json:"items"`
	Subtotal        int64           `json:"subtotal"`
	ShippingFee     int64           `json:"shipping_fee"`
	Total           int64           `json:"total"`
	PaymentMethod   string          `json:"payment_method"`
	Status          OrderStatus     `json:"status"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Clone returns a deep copy of the order.
func (o *Order) Clone() *Order {
	cp := *o
	cp.Items = append([]LineItem(nil), o.Items...)
	return &cp
}

// ItemCount is the sum of line quantities.
func (o *Order) ItemCount() int {
	n := 0
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}

// OrderSummary is the trimmed row returned by order listings.
type OrderSummary struct {
	ID            string      `json:"id"`
	Subtotal      int64       `json:"subtotal"`
	ShippingFee   int64       `json:"shipping_fee"`
	Total         int64       `json:"total"`
	Status        OrderStatus `json:"status"`
	PaymentMethod string      `json:"payment_method"`
	ItemCount     int         `json:"item_count"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Summary trims the order to its listing row.
func (o *Order) Summary() OrderSummary {
	return OrderSummary{
		ID:            o.ID,
		Subtotal:      o.Subtotal,
		ShippingFee:   o.ShippingFee,
		Total:         o.Total,
		Status:        o.Status,
		PaymentMethod: o.PaymentMethod,
		ItemCount:     o.ItemCount(),
		CreatedAt:     o.CreatedAt,
	}
}

// OrderPage is one page of a shopper's order history.
type OrderPage struct {
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	Total      int            `json:"total"`
	TotalPages int            `json:"total_pages"`
	Orders     []OrderSummary `json:"orders"`
}

// CartItemView is a line item annotated with live stock.
type CartItemView struct {
	LineItem
	InStock        bool `json:"in_stock"`
	AvailableStock int  `json:"available_stock"`
}

// CartView is the response shape for cart reads and mutations.
type CartView struct {
	UserID string         `json:"user_id"`
	Items  []CartItemView `json:"items"`
	CartTotals
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AddToCartRequest represents a request to add item to cart
type AddToCartRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// UpdateCartItemRequest sets a line quantity; zero or below removes the line.
type UpdateCartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// CheckoutItem is one requested product line.
type CheckoutItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// CheckoutRequest represents a request to place an order
type CheckoutRequest struct {
	Items           []CheckoutItem  `json:"items"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method"`
}

// UpdateOrderStatusRequest moves an order to a new status.
type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status"`
}
