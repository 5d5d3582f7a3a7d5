package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/niaga-platform/service-commerce-analytics/internal/analytics"
	"github.com/niaga-platform/service-commerce-analytics/internal/collector"
	"github.com/niaga-platform/service-commerce-analytics/internal/domain/shopify"
	"github.com/niaga-platform/service-commerce-analytics/internal/services"
)

const dateLayout = "2006-01-02"

// AnalyticsHandler handles commerce analytics endpoints
type AnalyticsHandler struct {
	service  *services.AnalyticsService
	location *time.Location
	logger   *zap.Logger
}

// NewAnalyticsHandler creates a new analytics handler. Dates in query
// parameters are read in loc.
func NewAnalyticsHandler(service *services.AnalyticsService, loc *time.Location, logger *zap.Logger) *AnalyticsHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &AnalyticsHandler{
		service:  service,
		location: loc,
		logger:   logger,
	}
}

// GetPareto returns the 80/20 ranking of products by sales and margin
// @Summary Get Pareto analysis
// @Tags Analytics
// @Param start_date query string false "Start date (YYYY-MM-DD)"
// @Param end_date query string false "End date (YYYY-MM-DD)"
// @Param refresh query bool false "Force refresh (bypass cache)"
// @Success 200 {object} analytics.ParetoReport
// @Router /analytics/pareto [get]
func (h *AnalyticsHandler) GetPareto(c *gin.Context) {
	r, ok := h.dateRange(c)
	if !ok {
		return
	}
	report, fromCache, err := h.service.Pareto(c.Request.Context(), r, isRefresh(c))
	h.respond(c, "pareto", report, fromCache, err)
}

// GetBrands returns the manufactured vs resold sales mix
// @Summary Get brand mix
// @Tags Analytics
// @Param months query int false "Months of history (default 12)"
// @Param refresh query bool false "Force refresh (bypass cache)"
// @Success 200 {object} analytics.BrandMixReport
// @Router /analytics/brands [get]
func (h *AnalyticsHandler) GetBrands(c *gin.Context) {
	months, ok := monthsParam(c)
	if !ok {
		return
	}
	report, fromCache, err := h.service.Brands(c.Request.Context(), months, isRefresh(c))
	h.respond(c, "brands", report, fromCache, err)
}

// GetGeography returns net sales per home-country city
// @Summary Get geographic sales
// @Tags Analytics
// @Param start_date query string false "Start date (YYYY-MM-DD)"
// @Param end_date query string false "End date (YYYY-MM-DD)"
// @Param refresh query bool false "Force refresh (bypass cache)"
// @Success 200 {object} analytics.GeographyReport
// @Router /analytics/geography [get]
func (h *AnalyticsHandler) GetGeography(c *gin.Context) {
	r, ok := h.dateRange(c)
	if !ok {
		return
	}
	report, fromCache, err := h.service.Geography(c.Request.Context(), r, isRefresh(c))
	h.respond(c, "geography", report, fromCache, err)
}

// GetInventoryHealth returns stock velocity and status per variant
// @Summary Get inventory health
// @Tags Analytics
// @Param refresh query bool false "Force refresh (bypass cache)"
// @Success 200 {object} analytics.InventoryHealthReport
// @Router /analytics/inventory-health [get]
func (h *AnalyticsHandler) GetInventoryHealth(c *gin.Context) {
	report, fromCache, err := h.service.InventoryHealth(c.Request.Context(), isRefresh(c))
	h.respond(c, "inventory health", report, fromCache, err)
}

// GetProjections returns next-month sales and margin projections
// @Summary Get projections
// @Tags Analytics
// @Param months query int false "Months of history (default 6)"
// @Param refresh query bool false "Force refresh (bypass cache)"
// @Success 200 {object} analytics.ProjectionsReport
// @Router /analytics/projections [get]
func (h *AnalyticsHandler) GetProjections(c *gin.Context) {
	months, ok := monthsParam(c)
	if !ok {
		return
	}
	report, fromCache, err := h.service.Projections(c.Request.Context(), months, isRefresh(c))
	h.respond(c, "projections", report, fromCache, err)
}

// GetPnL returns P&L buckets by month, quarter or year
// @Summary Get P&L
// @Tags Analytics
// @Param granularity query string false "month, quarter or year"
// @Param refresh query bool false "Force refresh (bypass cache)"
// @Success 200 {object} analytics.PnLReport
// @Router /analytics/pnl [get]
func (h *AnalyticsHandler) GetPnL(c *gin.Context) {
	granularity, err := analytics.ParseGranularity(c.Query("granularity"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid granularity"})
		return
	}
	report, fromCache, err := h.service.PnL(c.Request.Context(), granularity, isRefresh(c))
	h.respond(c, "pnl", report, fromCache, err)
}

// GetExecutive returns the executive snapshot of a period
// @Summary Get executive snapshot
// @Tags Analytics
// @Param period query string false "mtd, this_week or last_7d"
// @Param refresh query bool false "Force refresh (bypass cache)"
// @Success 200 {object} analytics.ExecutiveSnapshot
// @Router /analytics/executive [get]
func (h *AnalyticsHandler) GetExecutive(c *gin.Context) {
	report, fromCache, err := h.service.Executive(c.Request.Context(), c.Query("period"), isRefresh(c))
	h.respond(c, "executive", report, fromCache, err)
}

// ClearCache drops every cached report
// DELETE /api/v1/analytics/cache
func (h *AnalyticsHandler) ClearCache(c *gin.Context) {
	n, err := h.service.InvalidateAll(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to clear analytics cache", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to clear cache"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "keys_removed": n})
}

func (h *AnalyticsHandler) respond(c *gin.Context, report string, data any, fromCache bool, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "data": data, "from_cache": fromCache})
	case errors.Is(err, services.ErrInvalidParameter):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, collector.ErrUpstreamFetch):
		h.logger.Error("Upstream fetch failed",
			zap.String("report", report),
			zap.String("category", string(upstreamCategory(err))),
			zap.Error(err),
		)
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "Failed to fetch data from Shopify: " + err.Error()})
	default:
		h.logger.Error("Failed to compute report", zap.String("report", report), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to compute " + report})
	}
}

// upstreamCategory classifies a failed collection by the Shopify error behind
// it. Transport failures carry no APIError and report as unknown.
func upstreamCategory(err error) shopify.ErrorCategory {
	var apiErr *shopify.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Category()
	}
	return shopify.CategoryUnknown
}

// dateRange reads start_date and end_date (or startDate and endDate). The
// end date is inclusive.
func (h *AnalyticsHandler) dateRange(c *gin.Context) (services.DateRange, bool) {
	var r services.DateRange

	if s := queryAlias(c, "start_date", "startDate"); s != "" {
		start, err := time.ParseInLocation(dateLayout, s, h.location)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid start_date format"})
			return r, false
		}
		r.Start = start
	}
	if s := queryAlias(c, "end_date", "endDate"); s != "" {
		end, err := time.ParseInLocation(dateLayout, s, h.location)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid end_date format"})
			return r, false
		}
		r.End = end.Add(24*time.Hour - time.Second)
	}
	return r, true
}

func monthsParam(c *gin.Context) (int, bool) {
	s := c.Query("months")
	if s == "" {
		return 0, true
	}
	months, err := strconv.Atoi(s)
	if err != nil || months <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid months"})
		return 0, false
	}
	return months, true
}

func queryAlias(c *gin.Context, keys ...string) string {
	for _, k := range keys {
		if v := c.Query(k); v != "" {
			return v
		}
	}
	return ""
}

func isRefresh(c *gin.Context) bool {
	return c.Query("refresh") == "true"
}
