package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/niaga-platform/service-commerce-analytics/internal/analytics"
	"github.com/niaga-platform/service-commerce-analytics/internal/collector"
	"github.com/niaga-platform/service-commerce-analytics/internal/config"
	"github.com/niaga-platform/service-commerce-analytics/internal/events"
	"github.com/niaga-platform/service-commerce-analytics/internal/providers/shopify"
)

// Report names, also used as event labels.
const (
	ReportPareto      = "pareto"
	ReportBrands      = "brands"
	ReportGeography   = "geography"
	ReportInventory   = "inventory_health"
	ReportProjections = "projections"
	ReportPnL         = "pnl"
	ReportExecutive   = "executive"
)

const dateLayout = "2006-01-02"

// ErrInvalidParameter marks a request the service cannot compute.
var ErrInvalidParameter = errors.New("invalid parameter")

// ReportPublisher announces freshly computed reports.
type ReportPublisher interface {
	PublishReportComputed(event *events.ReportComputedEvent) error
}

// DateRange bounds an order query. A zero Start falls back to the history
// start; a zero End means now.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// AnalyticsServiceConfig holds pipeline configuration
type AnalyticsServiceConfig struct {
	Pages                   config.PageLimits
	TTL                     config.ReportTTLs
	HistoryStart            time.Time
	WriteTimeout            time.Duration
	DefaultBrandMonths      int
	DefaultProjectionMonths int
}

// AnalyticsService runs the collect, aggregate and cache pipeline for each
// report. Runs share no mutable state besides the pending cache writes.
type AnalyticsService struct {
	orders     collector.PageSource[analytics.RawOrder]
	catalog    collector.PageSource[analytics.CatalogVariant]
	cache      *AnalyticsCacheService
	publisher  ReportPublisher
	classifier *analytics.Classifier
	settings   analytics.Settings
	cfg        AnalyticsServiceConfig
	logger     *zap.Logger
	now        func() time.Time

	pending sync.WaitGroup
}

// NewAnalyticsService creates a new AnalyticsService. publisher may be nil.
func NewAnalyticsService(
	orders collector.PageSource[analytics.RawOrder],
	catalog collector.PageSource[analytics.CatalogVariant],
	cache *AnalyticsCacheService,
	publisher ReportPublisher,
	settings analytics.Settings,
	cfg AnalyticsServiceConfig,
	logger *zap.Logger,
) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = NewAnalyticsCacheService(nil, logger)
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.DefaultBrandMonths <= 0 {
		cfg.DefaultBrandMonths = 12
	}
	if cfg.DefaultProjectionMonths <= 0 {
		cfg.DefaultProjectionMonths = 6
	}
	return &AnalyticsService{
		orders:     orders,
		catalog:    catalog,
		cache:      cache,
		publisher:  publisher,
		classifier: analytics.NewClassifier(settings),
		settings:   settings,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// collectStats describes the upstream work behind one computation.
type collectStats struct {
	records   int
	pages     int
	truncated bool
}

func (c *collectStats) merge(records, pages int, truncated bool) {
	c.records += records
	c.pages += pages
	c.truncated = c.truncated || truncated
}

// cachedReport serves key from cache unless refresh is set, otherwise
// computes the value, stores it in the background and announces it.
func cachedReport[T any](
	ctx context.Context,
	s *AnalyticsService,
	report, key string,
	ttl time.Duration,
	refresh bool,
	compute func(ctx context.Context) (T, collectStats, error),
) (T, bool, error) {
	var value T
	if !refresh {
		hit, err := s.cache.Get(ctx, key, &value)
		if err != nil {
			s.logger.Warn("cache read failed, recomputing", zap.String("key", key), zap.Error(err))
		}
		if hit {
			return value, true, nil
		}
	}

	started := s.now()
	value, stats, err := compute(ctx)
	if err != nil {
		var zero T
		return zero, false, err
	}

	s.storeAsync(ctx, key, value, ttl)
	s.publish(report, key, stats, s.now().Sub(started))

	if stats.truncated {
		s.logger.Warn("report computed from capped collection",
			zap.String("report", report),
			zap.Int("pages", stats.pages),
		)
	}
	return value, false, nil
}

// storeAsync writes value on a context detached from the request so the
// write survives the response.
func (s *AnalyticsService) storeAsync(ctx context.Context, key string, value any, ttl time.Duration) {
	if !s.cache.Enabled() {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.WriteTimeout)
		defer cancel()
		if err := s.cache.Set(wctx, key, value, ttl); err != nil {
			s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
	}()
}

func (s *AnalyticsService) publish(report, key string, stats collectStats, took time.Duration) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishReportComputed(&events.ReportComputedEvent{
		Report:     report,
		CacheKey:   key,
		Records:    stats.records,
		Pages:      stats.pages,
		Truncated:  stats.truncated,
		DurationMs: took.Milliseconds(),
	})
	if err != nil {
		s.logger.Warn("failed to publish report event", zap.String("report", report), zap.Error(err))
	}
}

// Drain waits for pending cache writes or for ctx to end.
func (s *AnalyticsService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *AnalyticsService) collectOrders(ctx context.Context, start, end time.Time, maxPages int, stats *collectStats) ([]analytics.RawOrder, error) {
	res, err := collector.Collect(ctx, s.orders, shopify.OrdersQuery(start, end), maxPages)
	if err != nil {
		return nil, fmt.Errorf("collect orders: %w", err)
	}
	stats.merge(len(res.Records), res.Pages, res.Truncated())
	return res.Records, nil
}

func (s *AnalyticsService) resolve(r DateRange) (start, end time.Time, key string) {
	start = r.Start
	if start.IsZero() {
		start = s.cfg.HistoryStart
	}
	end = r.End
	endKey := "now"
	if end.IsZero() {
		end = s.now()
	} else {
		endKey = end.Format(dateLayout)
	}
	return start, end, start.Format(dateLayout) + "_" + endKey
}

// Pareto ranks products by net sales and net margin over r.
func (s *AnalyticsService) Pareto(ctx context.Context, r DateRange, refresh bool) (analytics.ParetoReport, bool, error) {
	start, end, suffix := s.resolve(r)
	if end.Before(start) {
		return analytics.ParetoReport{}, false, fmt.Errorf("%w: end date before start date", ErrInvalidParameter)
	}
	return cachedReport(ctx, s, ReportPareto, "pareto_"+suffix, s.cfg.TTL.Pareto, refresh,
		func(ctx context.Context) (analytics.ParetoReport, collectStats, error) {
			var stats collectStats
			orders, err := s.collectOrders(ctx, start, end, s.cfg.Pages.Pareto, &stats)
			if err != nil {
				return analytics.ParetoReport{}, stats, err
			}
			return analytics.BuildParetoReport(orders, s.classifier, s.settings), stats, nil
		})
}

// Brands splits net sales of the last months between manufactured and
// resold products. A non-positive months uses the default.
func (s *AnalyticsService) Brands(ctx context.Context, months int, refresh bool) (analytics.BrandMixReport, bool, error) {
	if months <= 0 {
		months = s.cfg.DefaultBrandMonths
	}
	key := fmt.Sprintf("brands_mix_v3_%d", months)
	return cachedReport(ctx, s, ReportBrands, key, s.cfg.TTL.Brands, refresh,
		func(ctx context.Context) (analytics.BrandMixReport, collectStats, error) {
			var stats collectStats
			now := s.now()
			since := now.Add(-time.Duration(months) * 30 * 24 * time.Hour)
			orders, err := s.collectOrders(ctx, since, now, s.cfg.Pages.Brands, &stats)
			if err != nil {
				return analytics.BrandMixReport{}, stats, err
			}
			return analytics.BrandMix(orders, s.classifier, s.settings), stats, nil
		})
}

// Geography ranks home-country cities by net sales over r.
func (s *AnalyticsService) Geography(ctx context.Context, r DateRange, refresh bool) (analytics.GeographyReport, bool, error) {
	start, end, suffix := s.resolve(r)
	if end.Before(start) {
		return analytics.GeographyReport{}, false, fmt.Errorf("%w: end date before start date", ErrInvalidParameter)
	}
	return cachedReport(ctx, s, ReportGeography, "geography_v1_"+suffix, s.cfg.TTL.Geography, refresh,
		func(ctx context.Context) (analytics.GeographyReport, collectStats, error) {
			var stats collectStats
			orders, err := s.collectOrders(ctx, start, end, s.cfg.Pages.Geography, &stats)
			if err != nil {
				return analytics.GeographyReport{}, stats, err
			}
			return analytics.GeographyRollup(orders, s.classifier, s.settings), stats, nil
		})
}

// InventoryHealth joins the trailing sales window with the current catalog.
func (s *AnalyticsService) InventoryHealth(ctx context.Context, refresh bool) (analytics.InventoryHealthReport, bool, error) {
	return cachedReport(ctx, s, ReportInventory, "inventory_health_v1", s.cfg.TTL.Inventory, refresh,
		func(ctx context.Context) (analytics.InventoryHealthReport, collectStats, error) {
			var stats collectStats
			now := s.now()
			since := now.AddDate(0, 0, -s.settings.VelocityWindowDays)
			orders, err := s.collectOrders(ctx, since, now, s.cfg.Pages.InventorySales, &stats)
			if err != nil {
				return analytics.InventoryHealthReport{}, stats, err
			}

			res, err := collector.Collect(ctx, s.catalog, "", s.cfg.Pages.Catalog)
			if err != nil {
				return analytics.InventoryHealthReport{}, stats, fmt.Errorf("collect catalog: %w", err)
			}
			stats.merge(len(res.Records), res.Pages, res.Truncated())

			sales := analytics.TrailingSales(orders, s.settings)
			return analytics.ComputeHealth(sales, res.Records, s.settings), stats, nil
		})
}

// Projections fits a linear trend to the monthly history of the last months.
func (s *AnalyticsService) Projections(ctx context.Context, months int, refresh bool) (analytics.ProjectionsReport, bool, error) {
	if months <= 0 {
		months = s.cfg.DefaultProjectionMonths
	}
	key := fmt.Sprintf("projections_v1_%d", months)
	return cachedReport(ctx, s, ReportProjections, key, s.cfg.TTL.Projections, refresh,
		func(ctx context.Context) (analytics.ProjectionsReport, collectStats, error) {
			var stats collectStats
			now := s.now()
			orders, err := s.collectOrders(ctx, now.AddDate(0, -months, 0), now, s.cfg.Pages.Projections, &stats)
			if err != nil {
				return analytics.ProjectionsReport{}, stats, err
			}
			return analytics.BuildProjections(orders, s.classifier, s.settings, now), stats, nil
		})
}

// PnL returns the period buckets since the history start at the requested
// granularity. Only monthly buckets are cached; coarser views are summed on
// read.
func (s *AnalyticsService) PnL(ctx context.Context, granularity analytics.Granularity, refresh bool) (analytics.PnLReport, bool, error) {
	granularity, err := analytics.ParseGranularity(string(granularity))
	if err != nil {
		return analytics.PnLReport{}, false, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}

	monthly, fromCache, err := cachedReport(ctx, s, ReportPnL, "shopify_pnl_data", s.cfg.TTL.PnL, refresh,
		func(ctx context.Context) (map[string]*analytics.PeriodBucket, collectStats, error) {
			var stats collectStats
			orders, err := s.collectOrders(ctx, s.cfg.HistoryStart, s.now(), s.cfg.Pages.PnL, &stats)
			if err != nil {
				return nil, stats, err
			}
			return analytics.BucketByMonth(orders, s.settings), stats, nil
		})
	if err != nil {
		return analytics.PnLReport{}, false, err
	}

	report, err := analytics.BuildPnL(monthly, granularity)
	if err != nil {
		return analytics.PnLReport{}, fromCache, fmt.Errorf("pnl rollup: %w", err)
	}
	return report, fromCache, nil
}

// Executive compares the requested period with the preceding one. Both
// windows come from a single collection.
func (s *AnalyticsService) Executive(ctx context.Context, period string, refresh bool) (analytics.ExecutiveSnapshot, bool, error) {
	windows, err := analytics.WindowsFor(period, s.now(), s.settings)
	if err != nil {
		return analytics.ExecutiveSnapshot{}, false, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	return cachedReport(ctx, s, ReportExecutive, "executive_"+windows.Period, s.cfg.TTL.Executive, refresh,
		func(ctx context.Context) (analytics.ExecutiveSnapshot, collectStats, error) {
			var stats collectStats
			orders, err := s.collectOrders(ctx, windows.Previous.Start, windows.Current.End, s.cfg.Pages.Executive, &stats)
			if err != nil {
				return analytics.ExecutiveSnapshot{}, stats, err
			}
			return analytics.BuildExecutiveSnapshot(orders, orders, windows, s.classifier, s.settings), stats, nil
		})
}

// InvalidateAll drops every cached report.
func (s *AnalyticsService) InvalidateAll(ctx context.Context) (int64, error) {
	return s.cache.Invalidate(ctx, "")
}

// HandleOrdersChanged implements events.EventHandler. Any order change may
// move every report, so the whole cache is dropped.
func (s *AnalyticsService) HandleOrdersChanged(ctx context.Context, event *events.OrdersChangedEvent) error {
	n, err := s.InvalidateAll(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("invalidated analytics cache after order change",
		zap.String("topic", event.Topic),
		zap.String("order_id", event.OrderID),
		zap.Int64("keys_removed", n),
	)
	return nil
}
