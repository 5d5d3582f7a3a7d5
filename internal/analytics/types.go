// Package analytics holds the pure aggregation engine: it turns raw Shopify
// orders and a catalog snapshot into normalized business metrics.
package analytics

import (
	"time"

	"github.com/shopspring/decimal"
)

// Address is the shipping destination of an order.
type Address struct {
	City        string `json:"city"`
	CountryCode string `json:"country_code"`
}

// RawOrder is an order as collected from the commerce platform.
// All amounts are gross (tax included).
type RawOrder struct {
	ID                 string          `json:"id"`
	CreatedAt          time.Time       `json:"created_at"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
	ShippingAddress    *Address        `json:"shipping_address,omitempty"`
	SourceChannel      string          `json:"source_channel,omitempty"`
	CustomerOrderCount int             `json:"customer_order_count,omitempty"`
	SubtotalGross      decimal.Decimal `json:"subtotal_gross"`
	TotalGross         decimal.Decimal `json:"total_gross"`
	TaxGross           decimal.Decimal `json:"tax_gross"`
	ShippingGross      decimal.Decimal `json:"shipping_gross"`
	RefundedGross      decimal.Decimal `json:"refunded_gross"`
	LineItems          []RawLineItem   `json:"line_items"`
}

// IsCancelled reports whether the order was cancelled.
func (o *RawOrder) IsCancelled() bool {
	return o.CancelledAt != nil
}

// RawLineItem is a single sold variant inside an order.
type RawLineItem struct {
	VariantID      string          `json:"variant_id,omitempty"`
	SKU            string          `json:"sku,omitempty"`
	ProductTitle   string          `json:"product_title"`
	VariantTitle   string          `json:"variant_title,omitempty"`
	Quantity       int             `json:"quantity"`
	UnitPriceGross decimal.Decimal `json:"unit_price_gross"`
	UnitCostGross  decimal.Decimal `json:"unit_cost_gross"`
	Vendor         string          `json:"vendor,omitempty"`
}

// CatalogVariant is one row of the current catalog snapshot.
type CatalogVariant struct {
	VariantID     string          `json:"variant_id"`
	ProductTitle  string          `json:"product_title"`
	VariantTitle  string          `json:"variant_title"`
	SKU           string          `json:"sku,omitempty"`
	StockOnHand   int             `json:"stock_on_hand"`
	UnitCostGross decimal.Decimal `json:"unit_cost_gross"`
}

// Name returns the display name "Product (Variant)".
func (v *CatalogVariant) Name() string {
	return v.ProductTitle + " (" + v.VariantTitle + ")"
}

// Metric is a named value fed into rankings.
type Metric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// lineSales is the per-line derived net figures shared by the analyzers.
type lineSales struct {
	Sales  float64
	Cost   float64
	Margin float64
}

func (s *Settings) lineFigures(item *RawLineItem) lineSales {
	price := s.Net(item.UnitPriceGross)
	cost := s.Net(item.UnitCostGross)
	qty := float64(item.Quantity)
	return lineSales{
		Sales:  price * qty,
		Cost:   cost * qty,
		Margin: (price - cost) * qty,
	}
}
