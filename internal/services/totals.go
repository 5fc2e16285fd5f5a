package services

import (
	"github.com/SigNoz/ecommerce-checkout/internal/models"
	"github.com/SigNoz/ecommerce-checkout/pkg/config"
)

// CalculateTotals derives the cart aggregates from its line items.
func CalculateTotals(items []models.LineItem) models.CartTotals {
	var t models.CartTotals
	for _, item := range items {
		t.TotalAmount += item.LineTotal
		t.TotalDiscountAmount += item.LineTotal - item.LineDiscountTotal
		t.TotalItems += item.Quantity
	}
	t.FinalAmount = t.TotalAmount - t.TotalDiscountAmount
	return t
}

// ShippingFee is free strictly above the threshold and the flat fee otherwise.
func ShippingFee(subtotal int64, cfg config.CheckoutConfig) int64 {
	if subtotal > cfg.FreeShippingThreshold {
		return 0
	}
	return cfg.ShippingFee
}

// Subtotal sums the discounted line totals.
func Subtotal(items []models.LineItem) int64 {
	var subtotal int64
	for _, item := range items {
		subtotal += item.LineDiscountTotal
	}
	return subtotal
}
