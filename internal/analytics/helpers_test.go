package analytics_test

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/niaga-platform/service-commerce-analytics/internal/analytics"
)

func testSettings() analytics.Settings {
	s := analytics.DefaultSettings()
	s.Location = time.UTC
	return s
}

// gross returns the gross amount whose net value is exactly net.
func gross(net float64) decimal.Decimal {
	return decimal.NewFromFloat(net).Mul(decimal.NewFromFloat(1.19))
}

func item(product, variant string, qty int, netPrice, netCost float64) analytics.RawLineItem {
	return analytics.RawLineItem{
		ProductTitle:   product,
		VariantTitle:   variant,
		Quantity:       qty,
		UnitPriceGross: gross(netPrice),
		UnitCostGross:  gross(netCost),
	}
}

func order(created string, items ...analytics.RawLineItem) analytics.RawOrder {
	t, err := time.Parse(time.RFC3339, created)
	if err != nil {
		panic(err)
	}
	return analytics.RawOrder{CreatedAt: t, LineItems: items}
}

func cancelled(o analytics.RawOrder) analytics.RawOrder {
	at := o.CreatedAt.Add(time.Hour)
	o.CancelledAt = &at
	return o
}

func shippedTo(o analytics.RawOrder, city, country string) analytics.RawOrder {
	o.ShippingAddress = &analytics.Address{City: city, CountryCode: country}
	return o
}
