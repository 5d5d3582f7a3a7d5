package analytics

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CityRule folds spelling variants of a metro area into one canonical name.
// Patterns are compared against the accent-folded, uppercased city.
type CityRule struct {
	Canonical string   `json:"canonical" mapstructure:"canonical"`
	Contains  []string `json:"contains" mapstructure:"contains"`
	Exact     []string `json:"exact" mapstructure:"exact"`
}

func (r CityRule) matches(folded string) bool {
	for _, e := range r.Exact {
		if folded == e {
			return true
		}
	}
	return containsAny(folded, r.Contains)
}

// DefaultCityRules covers the main Chilean metro spellings.
func DefaultCityRules() []CityRule {
	return []CityRule{
		{Canonical: "SANTIAGO", Contains: []string{"SANTIAGO"}, Exact: []string{"STGO"}},
		{Canonical: "CONCEPCIÓN", Contains: []string{"CONCEPCI"}},
		{Canonical: "VALPARAÍSO", Contains: []string{"VALPARA"}},
		{Canonical: "VIÑA DEL MAR", Contains: []string{"VINA DEL MAR", "VINA"}},
		{Canonical: "ANTOFAGASTA", Contains: []string{"ANTOFAGASTA"}},
		{Canonical: "TEMUCO", Contains: []string{"TEMUCO"}},
		{Canonical: "PUERTO MONTT", Contains: []string{"PUERTO MONTT"}},
	}
}

var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func foldAccents(s string) string {
	out, _, err := transform.String(accentFolder, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeCity returns the canonical spelling of a city. Unknown cities keep
// their uppercased, trimmed raw value.
func NormalizeCity(raw string, rules []CityRule) string {
	city := strings.ToUpper(strings.TrimSpace(raw))
	folded := foldAccents(city)
	for _, rule := range rules {
		if rule.matches(folded) {
			return rule.Canonical
		}
	}
	return city
}

// ProductSales is a product's contribution inside a city.
type ProductSales struct {
	Name     string  `json:"name"`
	Sales    float64 `json:"sales"`
	Quantity int     `json:"quantity"`
}

// CityStat is the sales rollup of one city.
type CityStat struct {
	Name          string         `json:"name"`
	TotalSales    float64        `json:"total_sales"`
	TotalQuantity int            `json:"total_quantity"`
	SharePercent  float64        `json:"share_percent"`
	TopProducts   []ProductSales `json:"top_products"`
}

// GeographyReport ranks home-country cities by net sales.
type GeographyReport struct {
	TotalSales float64    `json:"total_sales"`
	Cities     []CityStat `json:"cities"`
}

type cityAccumulator struct {
	stat     CityStat
	index    map[string]int
	products []ProductSales
}

// GeographyRollup aggregates net sales per shipping city. Only non-cancelled
// orders shipped to the home country with a non-empty city are counted.
func GeographyRollup(orders []RawOrder, classifier *Classifier, settings Settings) GeographyReport {
	cities := make(map[string]*cityAccumulator)
	order := make([]string, 0)
	grandTotal := 0.0

	for i := range orders {
		o := &orders[i]
		if o.IsCancelled() || o.ShippingAddress == nil {
			continue
		}
		addr := o.ShippingAddress
		if !strings.EqualFold(addr.CountryCode, settings.HomeCountry) || strings.TrimSpace(addr.City) == "" {
			continue
		}

		name := NormalizeCity(addr.City, settings.CityRules)
		acc, ok := cities[name]
		if !ok {
			acc = &cityAccumulator{stat: CityStat{Name: name}, index: make(map[string]int)}
			cities[name] = acc
			order = append(order, name)
		}

		for j := range o.LineItems {
			item := &o.LineItems[j]
			product := classifier.Classify(item).Canonical
			sales := settings.lineFigures(item).Sales

			acc.stat.TotalSales += sales
			acc.stat.TotalQuantity += item.Quantity
			grandTotal += sales

			pos, seen := acc.index[product]
			if !seen {
				pos = len(acc.products)
				acc.index[product] = pos
				acc.products = append(acc.products, ProductSales{Name: product})
			}
			acc.products[pos].Sales += sales
			acc.products[pos].Quantity += item.Quantity
		}
	}

	ranking := make([]CityStat, 0, len(order))
	for _, name := range order {
		acc := cities[name]
		sort.SliceStable(acc.products, func(a, b int) bool {
			return acc.products[a].Sales > acc.products[b].Sales
		})
		stat := acc.stat
		stat.TopProducts = limit(acc.products, settings.CityTopProducts)
		if grandTotal > 0 {
			stat.SharePercent = stat.TotalSales / grandTotal * 100
		}
		ranking = append(ranking, stat)
	}

	sort.SliceStable(ranking, func(a, b int) bool {
		return ranking[a].TotalSales > ranking[b].TotalSales
	})

	return GeographyReport{
		TotalSales: grandTotal,
		Cities:     limit(ranking, settings.CityLimit),
	}
}
