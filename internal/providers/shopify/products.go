package shopify

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/niaga-platform/service-commerce-analytics/internal/analytics"
	"github.com/niaga-platform/service-commerce-analytics/internal/collector"
)

const productsQuery = `
query Catalog($cursor: String, $query: String, $first: Int!) {
  products(first: $first, after: $cursor, query: $query) {
    pageInfo { hasNextPage endCursor }
    edges {
      node {
        title
        variants(first: 100) {
          edges {
            node {
              id
              title
              sku
              inventoryQuantity
              inventoryItem { unitCost { amount } }
            }
          }
        }
      }
    }
  }
}`

// ProductsPageSize keeps the nested variants connection under the query
// cost ceiling.
const ProductsPageSize = 50

type productsResponse struct {
	Products struct {
		PageInfo pageInfo `json:"pageInfo"`
		Edges    []struct {
			Node struct {
				Title    string `json:"title"`
				Variants struct {
					Edges []struct {
						Node struct {
							ID                string `json:"id"`
							Title             string `json:"title"`
							SKU               string `json:"sku"`
							InventoryQuantity int    `json:"inventoryQuantity"`
							InventoryItem     *struct {
								UnitCost *struct {
									Amount decimal.Decimal `json:"amount"`
								} `json:"unitCost"`
							} `json:"inventoryItem"`
						} `json:"node"`
					} `json:"edges"`
				} `json:"variants"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"products"`
}

// CatalogSource pages through products and flattens them into variants.
type CatalogSource struct {
	client   *Client
	pageSize int
}

// NewCatalogSource creates a catalog page source.
func NewCatalogSource(client *Client) *CatalogSource {
	return &CatalogSource{client: client, pageSize: ProductsPageSize}
}

// FetchPage implements collector.PageSource.
func (s *CatalogSource) FetchPage(ctx context.Context, query, cursor string) (*collector.Page[analytics.CatalogVariant], error) {
	vars := map[string]any{"first": s.pageSize}
	if query != "" {
		vars["query"] = query
	}
	if cursor != "" {
		vars["cursor"] = cursor
	}

	var resp productsResponse
	if err := s.client.Do(ctx, productsQuery, vars, &resp); err != nil {
		return nil, fmt.Errorf("fetch products: %w", err)
	}

	variants := make([]analytics.CatalogVariant, 0)
	for _, p := range resp.Products.Edges {
		for _, v := range p.Node.Variants.Edges {
			cv := analytics.CatalogVariant{
				VariantID:    v.Node.ID,
				ProductTitle: p.Node.Title,
				VariantTitle: v.Node.Title,
				SKU:          v.Node.SKU,
				StockOnHand:  v.Node.InventoryQuantity,
			}
			if v.Node.InventoryItem != nil && v.Node.InventoryItem.UnitCost != nil {
				cv.UnitCostGross = v.Node.InventoryItem.UnitCost.Amount
			}
			variants = append(variants, cv)
		}
	}
	return &collector.Page[analytics.CatalogVariant]{
		Records:     variants,
		HasNextPage: resp.Products.PageInfo.HasNextPage,
		EndCursor:   resp.Products.PageInfo.EndCursor,
	}, nil
}
