package analytics_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niaga-platform/service-commerce-analytics/internal/analytics"
)

func billed(created string, subtotalNet float64) analytics.RawOrder {
	o := order(created, item("Chupete", "", 1, subtotalNet, subtotalNet/2))
	o.SubtotalGross = gross(subtotalNet)
	o.TotalGross = gross(subtotalNet).Add(decimal.NewFromInt(5))
	o.TaxGross = gross(subtotalNet).Sub(decimal.NewFromFloat(subtotalNet))
	o.ShippingGross = decimal.NewFromInt(5)
	return o
}

func TestParseGranularity(t *testing.T) {
	for in, want := range map[string]analytics.Granularity{
		"":        analytics.GranularityMonth,
		"month":   analytics.GranularityMonth,
		"quarter": analytics.GranularityQuarter,
		"year":    analytics.GranularityYear,
	} {
		got, err := analytics.ParseGranularity(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := analytics.ParseGranularity("week")
	assert.Error(t, err)
}

func TestBucketByMonth(t *testing.T) {
	s := testSettings()
	buckets := analytics.BucketByMonth([]analytics.RawOrder{
		billed("2024-01-05T10:00:00Z", 100),
		billed("2024-01-20T10:00:00Z", 50),
		billed("2024-02-01T10:00:00Z", 10),
		cancelled(billed("2024-01-21T10:00:00Z", 1000)),
	}, s)

	require.Len(t, buckets, 2)
	jan := buckets["2024-01"]
	require.NotNil(t, jan)
	assert.Equal(t, 2, jan.Orders)
	assert.InDelta(t, 150.0, jan.NetSales, 1e-6)
	assert.InDelta(t, 75.0, jan.NetCost, 1e-6)
	assert.InDelta(t, 10.0, jan.Shipping, 1e-9)
	assert.InDelta(t, 150*0.19, jan.Taxes, 1e-6)
}

func TestBucketByMonthUsesStoreTimeZone(t *testing.T) {
	s := testSettings()
	s.Location = time.FixedZone("CLT", -3*3600)

	buckets := analytics.BucketByMonth([]analytics.RawOrder{billed("2024-02-01T02:00:00Z", 100)}, s)

	assert.Contains(t, buckets, "2024-01")
	assert.NotContains(t, buckets, "2024-02")
}

func TestRollupViewsAgree(t *testing.T) {
	s := testSettings()
	monthly := analytics.BucketByMonth([]analytics.RawOrder{
		billed("2024-01-05T10:00:00Z", 100),
		billed("2024-02-05T10:00:00Z", 200),
		billed("2024-04-05T10:00:00Z", 300),
		billed("2024-12-05T10:00:00Z", 400),
		billed("2025-01-05T10:00:00Z", 500),
	}, s)

	months, err := analytics.Rollup(monthly, analytics.GranularityMonth)
	require.NoError(t, err)
	quarters, err := analytics.Rollup(monthly, analytics.GranularityQuarter)
	require.NoError(t, err)
	years, err := analytics.Rollup(monthly, analytics.GranularityYear)
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-01", "2024-02", "2024-04", "2024-12", "2025-01"}, periods(months))
	assert.Equal(t, []string{"2024-Q1", "2024-Q2", "2024-Q4", "2025-Q1"}, periods(quarters))
	assert.Equal(t, []string{"2024", "2025"}, periods(years))

	assert.InDelta(t, 300.0, quarters[0].NetSales, 1e-6)
	assert.Equal(t, 2, quarters[0].Orders)
	assert.InDelta(t, 1000.0, years[0].NetSales, 1e-6)

	assert.InDelta(t, total(months), total(quarters), 1e-6)
	assert.InDelta(t, total(months), total(years), 1e-6)
}

func TestRollupRejectsBadKeys(t *testing.T) {
	_, err := analytics.Rollup(map[string]*analytics.PeriodBucket{"2024": {}}, analytics.GranularityYear)
	assert.Error(t, err)

	_, err = analytics.Rollup(map[string]*analytics.PeriodBucket{"2024-13": {}}, analytics.GranularityQuarter)
	assert.Error(t, err)
}

func periods(buckets []analytics.PeriodBucket) []string {
	out := make([]string, len(buckets))
	for i, b := range buckets {
		out[i] = b.Period
	}
	return out
}

func total(buckets []analytics.PeriodBucket) float64 {
	sum := 0.0
	for _, b := range buckets {
		sum += b.NetSales
	}
	return sum
}

func TestBuildPnL(t *testing.T) {
	s := testSettings()
	monthly := analytics.BucketByMonth([]analytics.RawOrder{
		billed("2024-01-05T10:00:00Z", 100),
		billed("2024-05-05T10:00:00Z", 200),
	}, s)

	report, err := analytics.BuildPnL(monthly, analytics.GranularityQuarter)
	require.NoError(t, err)

	assert.Equal(t, analytics.GranularityQuarter, report.Granularity)
	assert.Equal(t, []string{"2024-Q1", "2024-Q2"}, periods(report.Periods))
	assert.Equal(t, "total", report.Totals.Period)
	assert.Equal(t, 2, report.Totals.Orders)
	assert.InDelta(t, 300.0, report.Totals.NetSales, 1e-6)
	assert.InDelta(t, 10.0, report.Totals.Shipping, 1e-9)
}
