package analytics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niaga-platform/service-commerce-analytics/internal/analytics"
)

func TestProjectLinearHistory(t *testing.T) {
	p := analytics.Project([]float64{100, 200, 300})

	assert.InDelta(t, 400.0, p.Projected, 1e-9)
	assert.InDelta(t, 100.0, p.Slope, 1e-9)
}

func TestProjectTwoPoints(t *testing.T) {
	for _, pair := range [][2]float64{{10, 30}, {500, 520}, {0, 7.5}, {42, 42}} {
		a, b := pair[0], pair[1]
		p := analytics.Project([]float64{a, b})
		assert.InDelta(t, 2*b-a, p.Projected, 1e-9, "history %v", pair)
		assert.InDelta(t, b-a, p.Slope, 1e-9, "history %v", pair)
	}
}

func TestProjectClampsAtZero(t *testing.T) {
	p := analytics.Project([]float64{300, 200, 100})

	assert.Zero(t, p.Projected)
	assert.InDelta(t, -100.0, p.Slope, 1e-9)
}

func TestProjectShortHistory(t *testing.T) {
	assert.Equal(t, analytics.Projection{}, analytics.Project(nil))
	assert.Equal(t, analytics.Projection{Projected: 120}, analytics.Project([]float64{120}))
	assert.Equal(t, analytics.Projection{Projected: -5}, analytics.Project([]float64{-5}))
}

func TestBuildProjectionsMonthlySeries(t *testing.T) {
	s := testSettings()
	c := analytics.NewClassifier(s)
	orders := []analytics.RawOrder{
		order("2024-01-10T10:00:00Z", item("Upa Go! Azul", "", 1, 100, 40)),
		order("2024-02-10T10:00:00Z", item("Upa Go! Azul", "", 2, 100, 40)),
		order("2024-03-10T10:00:00Z", item("Upa Go! Rojo", "", 3, 100, 40)),
		cancelled(order("2024-03-11T10:00:00Z", item("Upa Go! Rojo", "", 50, 100, 40))),
	}

	report := analytics.BuildProjections(orders, c, s, time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, "2024-04", report.Sales.PeriodKey)
	require.Len(t, report.Sales.History, 3)
	assert.Equal(t, "2024-01", report.Sales.History[0].Period)
	assert.InDelta(t, 400.0, report.Sales.ProjectedNextValue, 1e-6)
	assert.InDelta(t, 100.0, report.Sales.TrendSlope, 1e-6)
	assert.InDelta(t, 240.0, report.Margin.ProjectedNextValue, 1e-6)

	assert.Equal(t, 1, report.TopProductsCount)
	assert.Equal(t, 1, report.TotalProductsCount)
	require.Len(t, report.Products, 1)
	assert.Equal(t, "Upa Go! (Total)", report.Products[0].Name)
	assert.InDelta(t, 400.0, report.Products[0].Sales.ProjectedNextValue, 1e-6)
}

func TestBuildProjectionsZeroFillsProductHistory(t *testing.T) {
	s := testSettings()
	c := analytics.NewClassifier(s)
	orders := []analytics.RawOrder{
		order("2024-01-10T10:00:00Z", item("Chupete", "", 1, 100, 0)),
		order("2024-02-10T10:00:00Z", item("Upa Go!", "", 1, 1000, 0)),
		order("2024-03-10T10:00:00Z", item("Chupete", "", 1, 100, 0)),
	}

	report := analytics.BuildProjections(orders, c, s, time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC))

	require.Len(t, report.Products, 1)
	history := report.Products[0].Sales.History
	require.Len(t, history, 3)
	assert.Zero(t, history[0].Value)
	assert.InDelta(t, 1000.0, history[1].Value, 1e-6)
	assert.Zero(t, history[2].Value)
	assert.Equal(t, 2, report.TotalProductsCount)
}

func TestBuildProjectionsWithoutHistory(t *testing.T) {
	s := testSettings()
	report := analytics.BuildProjections(nil, analytics.NewClassifier(s), s, time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, "2024-03", report.Sales.PeriodKey)
	assert.Empty(t, report.Sales.History)
	assert.Zero(t, report.Sales.ProjectedNextValue)
	assert.Empty(t, report.Products)
}
