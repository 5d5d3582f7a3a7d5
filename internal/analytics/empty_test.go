package analytics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niaga-platform/service-commerce-analytics/internal/analytics"
)

// Every report over a period without orders is empty and zeroed.
func TestReportsWithoutOrders(t *testing.T) {
	s := testSettings()
	c := analytics.NewClassifier(s)

	pareto := analytics.BuildParetoReport(nil, c, s)
	assert.Zero(t, pareto.TotalSales)
	assert.Zero(t, pareto.TotalMargin)
	assert.Empty(t, pareto.ParetoSales)
	assert.Empty(t, pareto.ParetoMargin)
	assert.Equal(t, analytics.ParetoSummary{}, pareto.Summary)

	brands := analytics.BrandMix(nil, c, s)
	assert.Zero(t, brands.TotalSales)
	assert.Zero(t, brands.Manufactured.Percentage)
	assert.Empty(t, brands.Resold.Top)

	geo := analytics.GeographyRollup(nil, c, s)
	assert.Zero(t, geo.TotalSales)
	assert.NotNil(t, geo.Cities)
	assert.Empty(t, geo.Cities)

	buckets, err := analytics.Rollup(analytics.BucketByMonth(nil, s), analytics.GranularityMonth)
	require.NoError(t, err)
	assert.Empty(t, buckets)

	windows, err := analytics.WindowsFor(analytics.PeriodMonthToDate, time.Date(2024, 3, 3, 9, 0, 0, 0, time.UTC), s)
	require.NoError(t, err)
	snap := analytics.BuildExecutiveSnapshot(nil, nil, windows, c, s)
	assert.Zero(t, snap.Revenue)
	assert.Zero(t, snap.RevenueGrowthPercent)
	assert.Empty(t, snap.ChannelMix)
	assert.Len(t, snap.Daily, 3)
}
