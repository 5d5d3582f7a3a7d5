package analytics

import "sort"

// ParetoEntry is one ranked entity of a concentration analysis.
type ParetoEntry struct {
	Name                   string  `json:"name"`
	MetricValue            float64 `json:"metric_value"`
	CumulativeSharePercent float64 `json:"cumulative_share_percent"`
	IsInTopSet             bool    `json:"is_in_top_set"`
}

// ParetoRank sorts entries descending by value (ties keep input order) and
// flags the prefix whose cumulative share first reaches thresholdPercent.
// The entry that crosses the threshold is part of the top set.
func ParetoRank(entries []Metric, thresholdPercent float64) []ParetoEntry {
	sorted := make([]Metric, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Value > sorted[j].Value
	})

	total := 0.0
	for _, e := range sorted {
		total += e.Value
	}

	result := make([]ParetoEntry, 0, len(sorted))
	cumulative := 0.0
	open := true
	for _, e := range sorted {
		cumulative += e.Value
		share := 0.0
		if total != 0 {
			share = cumulative / total * 100
		}

		result = append(result, ParetoEntry{
			Name:                   e.Name,
			MetricValue:            e.Value,
			CumulativeSharePercent: share,
			IsInTopSet:             open,
		})

		// A zero total never closes the set.
		if total != 0 && share >= thresholdPercent {
			open = false
		}
	}
	return result
}

// TopSet returns the flagged prefix of a ranking.
func TopSet(ranked []ParetoEntry) []ParetoEntry {
	for i, e := range ranked {
		if !e.IsInTopSet {
			return ranked[:i]
		}
	}
	return ranked
}

// ProductStat accumulates sales figures of one canonical product.
type ProductStat struct {
	Name     string  `json:"name"`
	Sales    float64 `json:"sales"`
	Margin   float64 `json:"margin"`
	Quantity int     `json:"quantity"`
}

// ParetoSummary counts the products behind a Pareto report.
type ParetoSummary struct {
	TopProductsCount   int `json:"top_products_count"`
	TotalProductsCount int `json:"total_products_count"`
}

// ParetoReport is the sales and margin concentration of a period.
type ParetoReport struct {
	TotalSales   float64       `json:"total_sales"`
	TotalMargin  float64       `json:"total_margin"`
	ParetoSales  []ParetoEntry `json:"pareto_sales"`
	ParetoMargin []ParetoEntry `json:"pareto_margin"`
	Summary      ParetoSummary `json:"summary"`
}

// AggregateProducts sums net sales, margin and units per canonical product.
// The result keeps first-encounter order.
func AggregateProducts(orders []RawOrder, classifier *Classifier, settings Settings) []ProductStat {
	index := make(map[string]int)
	stats := make([]ProductStat, 0)

	for i := range orders {
		order := &orders[i]
		if order.IsCancelled() {
			continue
		}
		for j := range order.LineItems {
			item := &order.LineItems[j]
			name := classifier.Classify(item).Canonical
			fig := settings.lineFigures(item)

			pos, ok := index[name]
			if !ok {
				pos = len(stats)
				index[name] = pos
				stats = append(stats, ProductStat{Name: name})
			}
			stats[pos].Sales += fig.Sales
			stats[pos].Margin += fig.Margin
			stats[pos].Quantity += item.Quantity
		}
	}
	return stats
}

// BuildParetoReport ranks products by net sales and by net margin.
func BuildParetoReport(orders []RawOrder, classifier *Classifier, settings Settings) ParetoReport {
	stats := AggregateProducts(orders, classifier, settings)

	salesMetrics := make([]Metric, len(stats))
	marginMetrics := make([]Metric, len(stats))
	report := ParetoReport{}
	for i, s := range stats {
		salesMetrics[i] = Metric{Name: s.Name, Value: s.Sales}
		marginMetrics[i] = Metric{Name: s.Name, Value: s.Margin}
		report.TotalSales += s.Sales
		report.TotalMargin += s.Margin
	}

	salesTop := TopSet(ParetoRank(salesMetrics, settings.ParetoThresholdPercent))
	marginTop := TopSet(ParetoRank(marginMetrics, settings.ParetoThresholdPercent))

	report.ParetoSales = limit(salesTop, settings.ReportLimit)
	report.ParetoMargin = limit(marginTop, settings.ReportLimit)
	report.Summary = ParetoSummary{
		TopProductsCount:   len(salesTop),
		TotalProductsCount: len(stats),
	}
	return report
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
