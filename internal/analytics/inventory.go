package analytics

import (
	"encoding/json"
	"sort"
)

// MeasureKind tags whether a ratio has a finite value.
type MeasureKind string

const (
	MeasureFinite    MeasureKind = "finite"
	MeasureUnbounded MeasureKind = "unbounded"
)

// Measure is a ratio that may be unbounded (division by a zero rate with a
// non-zero numerator). Value is meaningful only for finite measures.
type Measure struct {
	Kind  MeasureKind `json:"kind"`
	Value float64     `json:"value"`
}

// Finite wraps a finite ratio.
func Finite(v float64) Measure { return Measure{Kind: MeasureFinite, Value: v} }

// Unbounded marks a ratio with no finite value.
func Unbounded() Measure { return Measure{Kind: MeasureUnbounded} }

// IsFinite reports whether the measure carries a usable value.
func (m Measure) IsFinite() bool { return m.Kind == MeasureFinite }

// MarshalJSON keeps unbounded values out of numeric fields.
func (m Measure) MarshalJSON() ([]byte, error) {
	type alias Measure
	if m.Kind == "" {
		m.Kind = MeasureFinite
	}
	return json.Marshal(alias(m))
}

// StockStatus classifies the health of a variant.
type StockStatus string

const (
	StatusCritical StockStatus = "CRITICAL"
	StatusLow      StockStatus = "LOW"
	StatusDead     StockStatus = "DEAD"
	StatusOK       StockStatus = "OK"
)

// VariantSales is the trailing-window sales of one variant.
type VariantSales struct {
	VariantID   string  `json:"variant_id"`
	Name        string  `json:"name"`
	UnitsSold   int     `json:"units_sold"`
	MarginTotal float64 `json:"margin_total"`
}

// VelocityRecord is the inventory health of one variant.
type VelocityRecord struct {
	VariantID         string      `json:"variant_id"`
	Name              string      `json:"name"`
	StockOnHand       int         `json:"stock_on_hand"`
	UnitsSoldTrailing int         `json:"units_sold_trailing"`
	VelocityPerDay    float64     `json:"velocity_per_day"`
	DaysOfCover       Measure     `json:"days_of_cover"`
	TurnoverRatio     Measure     `json:"turnover_ratio"`
	GrossMarginROI    float64     `json:"gross_margin_roi"`
	Status            StockStatus `json:"status"`
}

// InventorySummary aggregates the fleet-wide health figures.
type InventorySummary struct {
	Critical        int     `json:"critical"`
	Low             int     `json:"low"`
	Dead            int     `json:"dead"`
	OK              int     `json:"ok"`
	AverageTurnover float64 `json:"average_turnover"`
	LowStock        int     `json:"low_stock"`
	OutOfStock      int     `json:"out_of_stock"`
}

// InventoryHealthReport is the output of ComputeHealth.
type InventoryHealthReport struct {
	Records []VelocityRecord `json:"records"`
	Summary InventorySummary `json:"summary"`
}

// TrailingSales sums units and net margin per variant over the given orders.
// Line items without a variant cannot be joined to stock and are skipped.
func TrailingSales(orders []RawOrder, settings Settings) map[string]VariantSales {
	sales := make(map[string]VariantSales)
	for i := range orders {
		order := &orders[i]
		if order.IsCancelled() {
			continue
		}
		for j := range order.LineItems {
			item := &order.LineItems[j]
			if item.VariantID == "" {
				continue
			}
			s, ok := sales[item.VariantID]
			if !ok {
				s = VariantSales{
					VariantID: item.VariantID,
					Name:      item.ProductTitle + " (" + item.VariantTitle + ")",
				}
			}
			s.UnitsSold += item.Quantity
			s.MarginTotal += settings.lineFigures(item).Margin
			sales[item.VariantID] = s
		}
	}
	return sales
}

// ClassifyStock applies the status thresholds. Coverage thresholds are strict.
func ClassifyStock(cover Measure, velocity float64, sold, stock int, settings Settings) StockStatus {
	if velocity > 0 && cover.IsFinite() {
		if cover.Value < settings.CriticalCoverDays {
			return StatusCritical
		}
		if cover.Value < settings.LowCoverDays {
			return StatusLow
		}
	}
	if sold == 0 && stock > 0 {
		return StatusDead
	}
	return StatusOK
}

func daysOfCover(stock int, velocity float64) Measure {
	switch {
	case velocity > 0:
		return Finite(float64(stock) / velocity)
	case stock > 0:
		return Unbounded()
	default:
		return Finite(0)
	}
}

func turnover(sold, stock int) Measure {
	switch {
	case stock > 0:
		return Finite(float64(sold) / float64(stock))
	case sold > 0:
		return Unbounded()
	default:
		return Finite(0)
	}
}

func (s *Settings) isExcluded(names ...string) bool {
	for _, name := range names {
		if containsAny(name, s.ExcludedMarkers) {
			return true
		}
	}
	return false
}

// ComputeHealth joins trailing sales with the catalog snapshot on variant ID.
func ComputeHealth(sales map[string]VariantSales, catalog []CatalogVariant, settings Settings) InventoryHealthReport {
	window := float64(settings.VelocityWindowDays)
	records := make([]VelocityRecord, 0, len(catalog))
	summary := InventorySummary{}
	turnoverSum := 0.0
	turnoverCount := 0

	for i := range catalog {
		variant := &catalog[i]
		s, ok := sales[variant.VariantID]
		name := variant.Name()
		if ok && s.Name != "" {
			name = s.Name
		}
		if settings.isExcluded(name, variant.Name()) {
			continue
		}

		stock := variant.StockOnHand
		sold := s.UnitsSold
		velocity := 0.0
		if window > 0 {
			velocity = float64(sold) / window
		}

		cover := daysOfCover(stock, velocity)
		turn := turnover(sold, stock)

		gmroi := 0.0
		if invValue := float64(stock) * settings.Net(variant.UnitCostGross); invValue > 0 {
			gmroi = s.MarginTotal / invValue
		}

		status := ClassifyStock(cover, velocity, sold, stock, settings)
		records = append(records, VelocityRecord{
			VariantID:         variant.VariantID,
			Name:              name,
			StockOnHand:       stock,
			UnitsSoldTrailing: sold,
			VelocityPerDay:    velocity,
			DaysOfCover:       cover,
			TurnoverRatio:     turn,
			GrossMarginROI:    gmroi,
			Status:            status,
		})

		switch status {
		case StatusCritical:
			summary.Critical++
		case StatusLow:
			summary.Low++
		case StatusDead:
			summary.Dead++
		default:
			summary.OK++
		}
		if turn.IsFinite() {
			turnoverSum += turn.Value
			turnoverCount++
		}
		if stock <= 0 {
			summary.OutOfStock++
		} else if stock <= settings.LowStockThreshold {
			summary.LowStock++
		}
	}

	if turnoverCount > 0 {
		summary.AverageTurnover = turnoverSum / float64(turnoverCount)
	}

	sort.SliceStable(records, func(a, b int) bool {
		return records[a].UnitsSoldTrailing > records[b].UnitsSoldTrailing
	})

	return InventoryHealthReport{Records: records, Summary: summary}
}
