package analytics

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settings carries every tunable constant of the engine. Analyzers never
// read package-level state, so callers (and tests) can vary any of these.
type Settings struct {
	// TaxRate is the fixed rate included in every gross amount.
	TaxRate float64
	// Location is the store time zone used to bucket orders by date.
	Location *time.Location

	ParetoThresholdPercent float64
	ReportLimit            int

	DefaultVariantTitle string
	OwnerBrandAliases   []string
	AlwaysOwned         []string
	ProductRules        []Rule

	HomeCountry     string
	CityRules       []CityRule
	CityLimit       int
	CityTopProducts int

	VelocityWindowDays int
	CriticalCoverDays  float64
	LowCoverDays       float64
	LowStockThreshold  int
	ExcludedMarkers    []string

	BrandTopProducts     int
	ExecutiveTopProducts int
}

// DefaultSettings returns the production configuration of the engine.
func DefaultSettings() Settings {
	loc, err := time.LoadLocation("America/Santiago")
	if err != nil {
		loc = time.UTC
	}

	return Settings{
		TaxRate:                0.19,
		Location:               loc,
		ParetoThresholdPercent: 80,
		ReportLimit:            30,
		DefaultVariantTitle:    "Default Title",
		OwnerBrandAliases:      []string{"MI CIELO", "MICIELO"},
		AlwaysOwned: []string{
			"Mochila Primera Etapa (Total)",
			"Upa Go! (Total)",
			"Mochila Toddler (Total)",
			"Cubre Porteo (Total)",
		},
		ProductRules:         DefaultProductRules(),
		HomeCountry:          "CL",
		CityRules:            DefaultCityRules(),
		CityLimit:            15,
		CityTopProducts:      3,
		VelocityWindowDays:   90,
		CriticalCoverDays:    15,
		LowCoverDays:         30,
		LowStockThreshold:    5,
		ExcludedMarkers:      []string{"(GB)"},
		BrandTopProducts:     5,
		ExecutiveTopProducts: 5,
	}
}

// Net strips the fixed tax from a gross amount.
func (s *Settings) Net(gross decimal.Decimal) float64 {
	divisor := decimal.NewFromFloat(1 + s.TaxRate)
	return gross.Div(divisor).InexactFloat64()
}

func (s *Settings) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// PeriodKey returns the YYYY-MM bucket of t in the store time zone.
func (s *Settings) PeriodKey(t time.Time) string {
	return t.In(s.location()).Format("2006-01")
}
