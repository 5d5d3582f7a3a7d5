package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/niaga-platform/service-commerce-analytics/internal/analytics"
	"github.com/niaga-platform/service-commerce-analytics/internal/collector"
)

const ordersQuery = `
query Orders($cursor: String, $query: String, $first: Int!) {
  orders(first: $first, after: $cursor, sortKey: CREATED_AT, reverse: true, query: $query) {
    pageInfo { hasNextPage endCursor }
    edges {
      node {
        id
        createdAt
        cancelledAt
        sourceName
        customer { numberOfOrders }
        shippingAddress { city countryCodeV2 }
        subtotalPriceSet { shopMoney { amount } }
        totalPriceSet { shopMoney { amount } }
        totalTaxSet { shopMoney { amount } }
        totalShippingPriceSet { shopMoney { amount } }
        totalRefundedSet { shopMoney { amount } }
        lineItems(first: 50) {
          edges {
            node {
              title
              variantTitle
              vendor
              sku
              quantity
              originalUnitPriceSet { shopMoney { amount } }
              product { title vendor }
              variant {
                id
                sku
                title
                product { title vendor }
                inventoryItem { unitCost { amount } }
              }
            }
          }
        }
      }
    }
  }
}`

// OrdersPageSize is the largest page the orders connection serves.
const OrdersPageSize = 250

// OrdersQuery builds the search filter for orders created in [start, end].
// A zero end leaves the range open. Cancelled orders are included so the
// engine can decide on them.
func OrdersQuery(start, end time.Time) string {
	parts := make([]string, 0, 3)
	if !start.IsZero() {
		parts = append(parts, "created_at:>="+start.Format(time.RFC3339))
	}
	if !end.IsZero() {
		parts = append(parts, "created_at:<="+end.Format(time.RFC3339))
	}
	parts = append(parts, "status:any")
	return strings.Join(parts, " ")
}

type money struct {
	ShopMoney struct {
		Amount decimal.Decimal `json:"amount"`
	} `json:"shopMoney"`
}

func (m *money) amount() decimal.Decimal {
	if m == nil {
		return decimal.Zero
	}
	return m.ShopMoney.Amount
}

type productRef struct {
	Title  string `json:"title"`
	Vendor string `json:"vendor"`
}

type lineItemNode struct {
	Title                string      `json:"title"`
	VariantTitle         string      `json:"variantTitle"`
	Vendor               string      `json:"vendor"`
	SKU                  string      `json:"sku"`
	Quantity             int         `json:"quantity"`
	OriginalUnitPriceSet *money      `json:"originalUnitPriceSet"`
	Product              *productRef `json:"product"`
	Variant              *struct {
		ID            string      `json:"id"`
		SKU           string      `json:"sku"`
		Title         string      `json:"title"`
		Product       *productRef `json:"product"`
		InventoryItem *struct {
			UnitCost *struct {
				Amount decimal.Decimal `json:"amount"`
			} `json:"unitCost"`
		} `json:"inventoryItem"`
	} `json:"variant"`
}

type orderNode struct {
	ID          string     `json:"id"`
	CreatedAt   time.Time  `json:"createdAt"`
	CancelledAt *time.Time `json:"cancelledAt"`
	SourceName  string     `json:"sourceName"`
	Customer    *struct {
		NumberOfOrders json.Number `json:"numberOfOrders"`
	} `json:"customer"`
	ShippingAddress *struct {
		City          string `json:"city"`
		CountryCodeV2 string `json:"countryCodeV2"`
	} `json:"shippingAddress"`
	SubtotalPriceSet      *money `json:"subtotalPriceSet"`
	TotalPriceSet         *money `json:"totalPriceSet"`
	TotalTaxSet           *money `json:"totalTaxSet"`
	TotalShippingPriceSet *money `json:"totalShippingPriceSet"`
	TotalRefundedSet      *money `json:"totalRefundedSet"`
	LineItems             struct {
		Edges []struct {
			Node lineItemNode `json:"node"`
		} `json:"edges"`
	} `json:"lineItems"`
}

type ordersResponse struct {
	Orders struct {
		PageInfo pageInfo `json:"pageInfo"`
		Edges    []struct {
			Node orderNode `json:"node"`
		} `json:"edges"`
	} `json:"orders"`
}

// OrderSource pages through the orders connection.
type OrderSource struct {
	client   *Client
	pageSize int
}

// NewOrderSource creates an order page source.
func NewOrderSource(client *Client) *OrderSource {
	return &OrderSource{client: client, pageSize: OrdersPageSize}
}

// FetchPage implements collector.PageSource.
func (s *OrderSource) FetchPage(ctx context.Context, query, cursor string) (*collector.Page[analytics.RawOrder], error) {
	vars := map[string]any{"first": s.pageSize}
	if query != "" {
		vars["query"] = query
	}
	if cursor != "" {
		vars["cursor"] = cursor
	}

	var resp ordersResponse
	if err := s.client.Do(ctx, ordersQuery, vars, &resp); err != nil {
		return nil, fmt.Errorf("fetch orders: %w", err)
	}

	orders := make([]analytics.RawOrder, 0, len(resp.Orders.Edges))
	for _, edge := range resp.Orders.Edges {
		orders = append(orders, edge.Node.toRawOrder())
	}
	return &collector.Page[analytics.RawOrder]{
		Records:     orders,
		HasNextPage: resp.Orders.PageInfo.HasNextPage,
		EndCursor:   resp.Orders.PageInfo.EndCursor,
	}, nil
}

func (n *orderNode) toRawOrder() analytics.RawOrder {
	o := analytics.RawOrder{
		ID:            n.ID,
		CreatedAt:     n.CreatedAt,
		CancelledAt:   n.CancelledAt,
		SourceChannel: n.SourceName,
		SubtotalGross: n.SubtotalPriceSet.amount(),
		TotalGross:    n.TotalPriceSet.amount(),
		TaxGross:      n.TotalTaxSet.amount(),
		ShippingGross: n.TotalShippingPriceSet.amount(),
		RefundedGross: n.TotalRefundedSet.amount(),
		LineItems:     make([]analytics.RawLineItem, 0, len(n.LineItems.Edges)),
	}
	if n.Customer != nil {
		if count, err := strconv.Atoi(n.Customer.NumberOfOrders.String()); err == nil {
			o.CustomerOrderCount = count
		}
	}
	if n.ShippingAddress != nil {
		o.ShippingAddress = &analytics.Address{
			City:        n.ShippingAddress.City,
			CountryCode: n.ShippingAddress.CountryCodeV2,
		}
	}
	for _, edge := range n.LineItems.Edges {
		o.LineItems = append(o.LineItems, edge.Node.toRawLineItem())
	}
	return o
}

// toRawLineItem prefers the live variant and product over the titles frozen
// on the line item; deleted variants fall back to the line item itself.
func (n *lineItemNode) toRawLineItem() analytics.RawLineItem {
	item := analytics.RawLineItem{
		SKU:            n.SKU,
		ProductTitle:   n.Title,
		VariantTitle:   n.VariantTitle,
		Quantity:       n.Quantity,
		UnitPriceGross: n.OriginalUnitPriceSet.amount(),
		Vendor:         n.Vendor,
	}
	if n.Product != nil {
		item.ProductTitle = n.Product.Title
		if n.Product.Vendor != "" {
			item.Vendor = n.Product.Vendor
		}
	}
	if v := n.Variant; v != nil {
		item.VariantID = v.ID
		item.VariantTitle = v.Title
		if v.SKU != "" {
			item.SKU = v.SKU
		}
		if v.Product != nil {
			item.ProductTitle = v.Product.Title
			if v.Product.Vendor != "" {
				item.Vendor = v.Product.Vendor
			}
		}
		if v.InventoryItem != nil && v.InventoryItem.UnitCost != nil {
			item.UnitCostGross = v.InventoryItem.UnitCost.Amount
		}
	}
	return item
}
