package analytics

import (
	"fmt"
	"strings"
	"time"
)

// Executive periods.
const (
	PeriodMonthToDate = "mtd"
	PeriodThisWeek    = "this_week"
	PeriodLast7Days   = "last_7d"
)

// Window is a closed time range in the store time zone.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ExecutiveWindows pairs the reported window with its comparison window.
type ExecutiveWindows struct {
	Period   string `json:"period"`
	Current  Window `json:"current"`
	Previous Window `json:"previous"`
}

// WindowsFor resolves an executive period name relative to now.
func WindowsFor(period string, now time.Time, settings Settings) (ExecutiveWindows, error) {
	now = now.In(settings.location())
	y, m, d := now.Date()
	loc := now.Location()
	startOfDay := func(t time.Time) time.Time {
		ty, tm, td := t.Date()
		return time.Date(ty, tm, td, 0, 0, 0, 0, loc)
	}
	endOfDay := func(t time.Time) time.Time {
		ty, tm, td := t.Date()
		return time.Date(ty, tm, td, 23, 59, 59, 0, loc)
	}

	switch period {
	case "", PeriodMonthToDate:
		prevStart := time.Date(y, m-1, 1, 0, 0, 0, 0, loc)
		lastOfPrev := time.Date(y, m, 0, 0, 0, 0, 0, loc).Day()
		prevDay := d
		if prevDay > lastOfPrev {
			prevDay = lastOfPrev
		}
		return ExecutiveWindows{
			Period:   PeriodMonthToDate,
			Current:  Window{Start: time.Date(y, m, 1, 0, 0, 0, 0, loc), End: now},
			Previous: Window{Start: prevStart, End: endOfDay(time.Date(prevStart.Year(), prevStart.Month(), prevDay, 0, 0, 0, 0, loc))},
		}, nil
	case PeriodThisWeek:
		offset := (int(now.Weekday()) + 6) % 7 // days since Monday
		start := startOfDay(now.AddDate(0, 0, -offset))
		return ExecutiveWindows{
			Period:   PeriodThisWeek,
			Current:  Window{Start: start, End: now},
			Previous: Window{Start: start.AddDate(0, 0, -7), End: now.AddDate(0, 0, -7)},
		}, nil
	case PeriodLast7Days:
		start := startOfDay(now.AddDate(0, 0, -7))
		return ExecutiveWindows{
			Period:   PeriodLast7Days,
			Current:  Window{Start: start, End: now},
			Previous: Window{Start: start.AddDate(0, 0, -7), End: start.Add(-time.Second)},
		}, nil
	default:
		return ExecutiveWindows{}, fmt.Errorf("unknown period %q", period)
	}
}

// ShareItem is a labelled percentage.
type ShareItem struct {
	Name    string  `json:"name"`
	Percent float64 `json:"percent"`
}

// ExecutiveSnapshot is the headline view of a period against its predecessor.
type ExecutiveSnapshot struct {
	Windows              ExecutiveWindows `json:"windows"`
	Revenue              float64          `json:"revenue"`
	Orders               int              `json:"orders"`
	AverageTicket        float64          `json:"average_ticket"`
	PreviousRevenue      float64          `json:"previous_revenue"`
	RevenueGrowthPercent float64          `json:"revenue_growth_percent"`
	WebOrders            int              `json:"web_orders"`
	ChannelMix           []ShareItem      `json:"channel_mix"`
	Retention            []ShareItem      `json:"retention"`
	Daily                []PeriodValue    `json:"daily"`
	TopProducts          []ProductSales   `json:"top_products"`
}

// Sales channels.
const (
	ChannelWeb   = "web"
	ChannelPOS   = "pos"
	ChannelOther = "other"
)

// ChannelOf maps a platform source name onto a sales channel.
func ChannelOf(source string) string {
	switch strings.ToLower(strings.TrimSpace(source)) {
	case "web", "online_store", "shopify_draft_order":
		return ChannelWeb
	case "pos", "retail":
		return ChannelPOS
	default:
		return ChannelOther
	}
}

// BuildExecutiveSnapshot summarizes gross revenue of the current window and
// compares it with the previous one. Orders outside a window are ignored.
func BuildExecutiveSnapshot(current, previous []RawOrder, windows ExecutiveWindows, classifier *Classifier, settings Settings) ExecutiveSnapshot {
	snap := ExecutiveSnapshot{
		Windows:     windows,
		ChannelMix:  make([]ShareItem, 0, 3),
		Retention:   make([]ShareItem, 0, 2),
		TopProducts: make([]ProductSales, 0),
	}

	channels := map[string]float64{}
	daily := map[string]float64{}
	var newRevenue, recurringRevenue float64
	products := make(map[string]*ProductSales)
	productOrder := make([]string, 0)

	for i := range current {
		o := &current[i]
		if o.IsCancelled() || !inWindow(o.CreatedAt, windows.Current) {
			continue
		}
		amount := o.TotalGross.InexactFloat64()
		snap.Revenue += amount
		snap.Orders++

		channel := ChannelOf(o.SourceChannel)
		channels[channel] += amount
		if channel == ChannelWeb {
			snap.WebOrders++
		}
		if o.CustomerOrderCount > 1 {
			recurringRevenue += amount
		} else {
			newRevenue += amount
		}
		daily[o.CreatedAt.In(settings.location()).Format("2006-01-02")] += amount

		for j := range o.LineItems {
			item := &o.LineItems[j]
			name := classifier.Classify(item).Canonical
			p, ok := products[name]
			if !ok {
				p = &ProductSales{Name: name}
				products[name] = p
				productOrder = append(productOrder, name)
			}
			p.Quantity += item.Quantity
			p.Sales += item.UnitPriceGross.InexactFloat64() * float64(item.Quantity)
		}
	}

	for i := range previous {
		o := &previous[i]
		if o.IsCancelled() || !inWindow(o.CreatedAt, windows.Previous) {
			continue
		}
		snap.PreviousRevenue += o.TotalGross.InexactFloat64()
	}

	if snap.Orders > 0 {
		snap.AverageTicket = snap.Revenue / float64(snap.Orders)
	}
	if snap.PreviousRevenue > 0 {
		snap.RevenueGrowthPercent = (snap.Revenue - snap.PreviousRevenue) / snap.PreviousRevenue * 100
	}

	if snap.Revenue > 0 {
		for _, ch := range []string{ChannelWeb, ChannelPOS, ChannelOther} {
			if channels[ch] > 0 {
				snap.ChannelMix = append(snap.ChannelMix, ShareItem{Name: ch, Percent: channels[ch] / snap.Revenue * 100})
			}
		}
		snap.Retention = append(snap.Retention,
			ShareItem{Name: "new", Percent: newRevenue / snap.Revenue * 100},
			ShareItem{Name: "recurring", Percent: recurringRevenue / snap.Revenue * 100},
		)
	}

	snap.Daily = dailySeries(windows.Current, daily)

	acc := newMetricAccumulator()
	for _, name := range productOrder {
		acc.add(name, products[name].Sales)
	}
	for _, m := range limit(acc.ranked(), settings.ExecutiveTopProducts) {
		snap.TopProducts = append(snap.TopProducts, *products[m.Name])
	}
	return snap
}

func inWindow(t time.Time, w Window) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func dailySeries(w Window, values map[string]float64) []PeriodValue {
	series := make([]PeriodValue, 0)
	loc := w.Start.Location()
	end := w.End.In(loc)
	for day := w.Start; !day.After(end); day = day.AddDate(0, 0, 1) {
		key := day.Format("2006-01-02")
		series = append(series, PeriodValue{Period: key, Value: values[key]})
	}
	return series
}
