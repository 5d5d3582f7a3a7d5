package analytics

import "sort"

// BrandShare is the sales of one side of the brand mix.
type BrandShare struct {
	Total      float64  `json:"total"`
	Percentage float64  `json:"percentage"`
	Top        []Metric `json:"top"`
}

// BrandMixReport splits net sales between manufactured and resold products.
type BrandMixReport struct {
	TotalSales   float64    `json:"total_sales"`
	Manufactured BrandShare `json:"manufactured"`
	Resold       BrandShare `json:"resold"`
}

// BrandMix attributes every non-cancelled line item to the owner brand or to
// resold stock and ranks the products on each side.
func BrandMix(orders []RawOrder, classifier *Classifier, settings Settings) BrandMixReport {
	owned := newMetricAccumulator()
	resold := newMetricAccumulator()

	for i := range orders {
		order := &orders[i]
		if order.IsCancelled() {
			continue
		}
		for j := range order.LineItems {
			item := &order.LineItems[j]
			class := classifier.Classify(item)
			sales := settings.lineFigures(item).Sales
			if class.Manufactured {
				owned.add(class.Canonical, sales)
			} else {
				resold.add(class.Canonical, sales)
			}
		}
	}

	total := owned.total + resold.total
	return BrandMixReport{
		TotalSales:   total,
		Manufactured: owned.share(total, settings.BrandTopProducts),
		Resold:       resold.share(total, settings.BrandTopProducts),
	}
}

// metricAccumulator sums values by name preserving first-seen order.
type metricAccumulator struct {
	index   map[string]int
	metrics []Metric
	total   float64
}

func newMetricAccumulator() *metricAccumulator {
	return &metricAccumulator{index: make(map[string]int), metrics: make([]Metric, 0)}
}

func (a *metricAccumulator) add(name string, value float64) {
	pos, ok := a.index[name]
	if !ok {
		pos = len(a.metrics)
		a.index[name] = pos
		a.metrics = append(a.metrics, Metric{Name: name})
	}
	a.metrics[pos].Value += value
	a.total += value
}

// ranked returns the metrics sorted descending, ties in insertion order.
func (a *metricAccumulator) ranked() []Metric {
	out := make([]Metric, len(a.metrics))
	copy(out, a.metrics)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	return out
}

func (a *metricAccumulator) share(grandTotal float64, top int) BrandShare {
	pct := 0.0
	if grandTotal > 0 {
		pct = a.total / grandTotal * 100
	}
	return BrandShare{
		Total:      a.total,
		Percentage: pct,
		Top:        limit(a.ranked(), top),
	}
}
