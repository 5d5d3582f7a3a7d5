package analytics

import (
	"fmt"
	"sort"
	"strconv"
)

// Granularity selects the period view of a P&L rollup.
type Granularity string

const (
	GranularityMonth   Granularity = "month"
	GranularityQuarter Granularity = "quarter"
	GranularityYear    Granularity = "year"
)

// ParseGranularity validates a granularity name; empty means month.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case "", GranularityMonth:
		return GranularityMonth, nil
	case GranularityQuarter, GranularityYear:
		return Granularity(s), nil
	default:
		return "", fmt.Errorf("unknown granularity %q", s)
	}
}

// PeriodBucket accumulates the P&L figures of one period.
type PeriodBucket struct {
	Period     string  `json:"period"`
	NetSales   float64 `json:"net_sales"`
	NetCost    float64 `json:"net_cost"`
	GrossTotal float64 `json:"gross_total"`
	Taxes      float64 `json:"taxes"`
	Shipping   float64 `json:"shipping"`
	Refunds    float64 `json:"refunds"`
	Orders     int     `json:"orders"`
}

func (b *PeriodBucket) add(o *PeriodBucket) {
	b.NetSales += o.NetSales
	b.NetCost += o.NetCost
	b.GrossTotal += o.GrossTotal
	b.Taxes += o.Taxes
	b.Shipping += o.Shipping
	b.Refunds += o.Refunds
	b.Orders += o.Orders
}

// BucketByMonth is the only aggregation path over orders: every non-cancelled
// order lands in the YYYY-MM bucket of its creation date.
func BucketByMonth(orders []RawOrder, settings Settings) map[string]*PeriodBucket {
	buckets := make(map[string]*PeriodBucket)
	for i := range orders {
		order := &orders[i]
		if order.IsCancelled() {
			continue
		}
		key := settings.PeriodKey(order.CreatedAt)
		b, ok := buckets[key]
		if !ok {
			b = &PeriodBucket{Period: key}
			buckets[key] = b
		}

		cost := 0.0
		for j := range order.LineItems {
			cost += settings.lineFigures(&order.LineItems[j]).Cost
		}

		b.NetSales += settings.Net(order.SubtotalGross)
		b.NetCost += cost
		b.GrossTotal += order.TotalGross.InexactFloat64()
		b.Taxes += order.TaxGross.InexactFloat64()
		b.Shipping += order.ShippingGross.InexactFloat64()
		b.Refunds += order.RefundedGross.InexactFloat64()
		b.Orders++
	}
	return buckets
}

// Rollup derives the requested view by summing monthly buckets. Results are
// sorted by period key.
func Rollup(monthly map[string]*PeriodBucket, granularity Granularity) ([]PeriodBucket, error) {
	views := make(map[string]*PeriodBucket)
	for month, bucket := range monthly {
		key, err := periodFor(month, granularity)
		if err != nil {
			return nil, err
		}
		v, ok := views[key]
		if !ok {
			v = &PeriodBucket{Period: key}
			views[key] = v
		}
		v.add(bucket)
	}

	out := make([]PeriodBucket, 0, len(views))
	for _, v := range views {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out, nil
}

func periodFor(month string, granularity Granularity) (string, error) {
	if len(month) != 7 || month[4] != '-' {
		return "", fmt.Errorf("invalid month key %q", month)
	}
	switch granularity {
	case GranularityMonth:
		return month, nil
	case GranularityYear:
		return month[:4], nil
	case GranularityQuarter:
		m, err := strconv.Atoi(month[5:])
		if err != nil || m < 1 || m > 12 {
			return "", fmt.Errorf("invalid month key %q", month)
		}
		return fmt.Sprintf("%s-Q%d", month[:4], (m-1)/3+1), nil
	default:
		return "", fmt.Errorf("unknown granularity %q", granularity)
	}
}

// PnLReport is a P&L view over monthly buckets.
type PnLReport struct {
	Granularity Granularity    `json:"granularity"`
	Periods     []PeriodBucket `json:"periods"`
	Totals      PeriodBucket   `json:"totals"`
}

// BuildPnL rolls monthly buckets up to granularity and totals them.
func BuildPnL(monthly map[string]*PeriodBucket, granularity Granularity) (PnLReport, error) {
	periods, err := Rollup(monthly, granularity)
	if err != nil {
		return PnLReport{}, err
	}
	report := PnLReport{
		Granularity: granularity,
		Periods:     periods,
		Totals:      PeriodBucket{Period: "total"},
	}
	for i := range periods {
		report.Totals.add(&periods[i])
	}
	return report, nil
}
