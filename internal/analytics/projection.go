package analytics

import (
	"sort"
	"time"
)

// Projection is a one-step-ahead linear forecast.
type Projection struct {
	Projected float64 `json:"projected"`
	Slope     float64 `json:"slope"`
}

// Project fits an ordinary least squares line over (index, value) pairs and
// evaluates it at the next index. Calendar gaps are ignored: the history is
// treated as consecutive periods. Fitted projections are clamped to 0; a
// single-period history is returned as is.
func Project(history []float64) Projection {
	n := len(history)
	if n == 0 {
		return Projection{}
	}
	if n == 1 {
		return Projection{Projected: history[0]}
	}

	var sumX, sumY float64
	for i, y := range history {
		sumX += float64(i)
		sumY += y
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var sxy, sxx float64
	for i, y := range history {
		dx := float64(i) - meanX
		sxy += dx * (y - meanY)
		sxx += dx * dx
	}

	slope := sxy / sxx
	intercept := meanY - slope*meanX
	return Projection{
		Projected: clampZero(intercept + slope*float64(n)),
		Slope:     slope,
	}
}

func clampZero(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// PeriodValue is one point of a monthly history.
type PeriodValue struct {
	Period string  `json:"period"`
	Value  float64 `json:"value"`
}

// ProjectionSeries is a history plus its projected next period.
type ProjectionSeries struct {
	PeriodKey          string        `json:"period_key"`
	History            []PeriodValue `json:"history"`
	ProjectedNextValue float64       `json:"projected_next_value"`
	TrendSlope         float64       `json:"trend_slope"`
}

// ProductProjection forecasts one top-set product.
type ProductProjection struct {
	Name   string           `json:"name"`
	Sales  ProjectionSeries `json:"sales"`
	Margin ProjectionSeries `json:"margin"`
}

// ProjectionsReport is the trend forecast of the store and its top products.
type ProjectionsReport struct {
	Sales              ProjectionSeries    `json:"sales"`
	Margin             ProjectionSeries    `json:"margin"`
	TopProductsCount   int                 `json:"top_products_count"`
	TotalProductsCount int                 `json:"total_products_count"`
	Products           []ProductProjection `json:"products"`
}

type monthFigures struct {
	sales  float64
	margin float64
}

// BuildProjections aggregates monthly net sales and margin, projects the
// next month overall and for every product in the sales Pareto set. Each
// product history spans every month present in the data, zero-filled.
func BuildProjections(orders []RawOrder, classifier *Classifier, settings Settings, now time.Time) ProjectionsReport {
	months := make(map[string]*monthFigures)
	products := make(map[string]map[string]*monthFigures)
	productTotals := newMetricAccumulator()

	for i := range orders {
		order := &orders[i]
		if order.IsCancelled() {
			continue
		}
		month := settings.PeriodKey(order.CreatedAt)
		if months[month] == nil {
			months[month] = &monthFigures{}
		}
		for j := range order.LineItems {
			item := &order.LineItems[j]
			name := classifier.Classify(item).Canonical
			fig := settings.lineFigures(item)

			months[month].sales += fig.Sales
			months[month].margin += fig.Margin

			if products[name] == nil {
				products[name] = make(map[string]*monthFigures)
			}
			if products[name][month] == nil {
				products[name][month] = &monthFigures{}
			}
			products[name][month].sales += fig.Sales
			products[name][month].margin += fig.Margin
			productTotals.add(name, fig.Sales)
		}
	}

	keys := make([]string, 0, len(months))
	for k := range months {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	next := nextPeriodKey(keys, settings, now)

	series := func(value func(month string) float64) ProjectionSeries {
		history := make([]PeriodValue, len(keys))
		values := make([]float64, len(keys))
		for i, k := range keys {
			v := value(k)
			history[i] = PeriodValue{Period: k, Value: v}
			values[i] = v
		}
		p := Project(values)
		return ProjectionSeries{PeriodKey: next, History: history, ProjectedNextValue: p.Projected, TrendSlope: p.Slope}
	}

	report := ProjectionsReport{
		Sales:    series(func(m string) float64 { return months[m].sales }),
		Margin:   series(func(m string) float64 { return months[m].margin }),
		Products: make([]ProductProjection, 0),
	}

	top := TopSet(ParetoRank(productTotals.metrics, settings.ParetoThresholdPercent))
	report.TopProductsCount = len(top)
	report.TotalProductsCount = len(productTotals.metrics)

	for _, entry := range top {
		byMonth := products[entry.Name]
		report.Products = append(report.Products, ProductProjection{
			Name: entry.Name,
			Sales: series(func(m string) float64 {
				if f := byMonth[m]; f != nil {
					return f.sales
				}
				return 0
			}),
			Margin: series(func(m string) float64 {
				if f := byMonth[m]; f != nil {
					return f.margin
				}
				return 0
			}),
		})
	}
	return report
}

// nextPeriodKey is the month after the last one present, or the current
// month when there is no history.
func nextPeriodKey(keys []string, settings Settings, now time.Time) string {
	if len(keys) == 0 {
		return settings.PeriodKey(now)
	}
	last, err := time.ParseInLocation("2006-01", keys[len(keys)-1], settings.location())
	if err != nil {
		return settings.PeriodKey(now)
	}
	return last.AddDate(0, 1, 0).Format("2006-01")
}
