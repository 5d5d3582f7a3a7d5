package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/niaga-platform/service-commerce-analytics/internal/analytics"
	"github.com/niaga-platform/service-commerce-analytics/internal/collector"
	"github.com/niaga-platform/service-commerce-analytics/internal/config"
	"github.com/niaga-platform/service-commerce-analytics/internal/domain/shopify"
	"github.com/niaga-platform/service-commerce-analytics/internal/events"
	"github.com/niaga-platform/service-commerce-analytics/internal/repository"
	"github.com/niaga-platform/service-commerce-analytics/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	FromCache bool            `json:"from_cache"`
	Error     string          `json:"error"`
}

func sampleOrders() []analytics.RawOrder {
	price := decimal.NewFromInt(119)
	return []analytics.RawOrder{{
		CreatedAt:     time.Now().Add(-48 * time.Hour),
		SourceChannel: "web",
		SubtotalGross: price,
		TotalGross:    price,
		LineItems: []analytics.RawLineItem{{
			ProductTitle:   "Chupete",
			Quantity:       1,
			UnitPriceGross: price,
			UnitCostGross:  decimal.NewFromInt(59),
		}},
	}}
}

func newTestRouter(t *testing.T, fetchErr error) (*gin.Engine, *services.AnalyticsService) {
	t.Helper()
	return newTestRouterWithLogger(t, fetchErr, zap.NewNop())
}

func newTestRouterWithLogger(t *testing.T, fetchErr error, logger *zap.Logger) (*gin.Engine, *services.AnalyticsService) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	orders := collector.PageSourceFunc[analytics.RawOrder](func(context.Context, string, string) (*collector.Page[analytics.RawOrder], error) {
		if fetchErr != nil {
			return nil, fetchErr
		}
		return &collector.Page[analytics.RawOrder]{Records: sampleOrders()}, nil
	})
	catalog := collector.PageSourceFunc[analytics.CatalogVariant](func(context.Context, string, string) (*collector.Page[analytics.CatalogVariant], error) {
		return &collector.Page[analytics.CatalogVariant]{}, nil
	})

	settings := analytics.DefaultSettings()
	cache := services.NewAnalyticsCacheService(repository.NewRedisCache(client, "test:"), nil)
	svc := services.NewAnalyticsService(orders, catalog, cache, nil, settings, services.AnalyticsServiceConfig{
		TTL: config.ReportTTLs{
			Pareto:      time.Hour,
			Brands:      time.Hour,
			Geography:   time.Hour,
			Inventory:   time.Hour,
			Projections: time.Hour,
			PnL:         time.Hour,
			Executive:   time.Hour,
		},
		HistoryStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}, nil)

	h := NewAnalyticsHandler(svc, settings.Location, logger)
	router := gin.New()
	group := router.Group("/api/v1/analytics")
	group.GET("/pareto", h.GetPareto)
	group.GET("/brands", h.GetBrands)
	group.GET("/geography", h.GetGeography)
	group.GET("/inventory-health", h.GetInventoryHealth)
	group.GET("/projections", h.GetProjections)
	group.GET("/pnl", h.GetPnL)
	group.GET("/executive", h.GetExecutive)
	group.DELETE("/cache", h.ClearCache)
	return router, svc
}

func do(t *testing.T, router http.Handler, method, path string) (int, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	var body envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return w.Code, body
}

func drain(t *testing.T, svc *services.AnalyticsService) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Drain(ctx))
}

func TestEveryReportEndpointResponds(t *testing.T) {
	router, svc := newTestRouter(t, nil)

	for _, path := range []string{
		"/api/v1/analytics/pareto",
		"/api/v1/analytics/brands?months=3",
		"/api/v1/analytics/geography?startDate=2024-01-01",
		"/api/v1/analytics/inventory-health",
		"/api/v1/analytics/projections",
		"/api/v1/analytics/pnl?granularity=year",
		"/api/v1/analytics/executive?period=last_7d",
	} {
		code, body := do(t, router, http.MethodGet, path)
		assert.Equal(t, http.StatusOK, code, path)
		assert.True(t, body.Success, path)
		assert.False(t, body.FromCache, path)
		assert.NotEmpty(t, body.Data, path)
	}
	drain(t, svc)
}

func TestParetoServedFromCacheUntilRefresh(t *testing.T) {
	router, svc := newTestRouter(t, nil)

	_, first := do(t, router, http.MethodGet, "/api/v1/analytics/pareto?start_date=2024-01-01&end_date=2024-12-31")
	assert.False(t, first.FromCache)
	drain(t, svc)

	_, second := do(t, router, http.MethodGet, "/api/v1/analytics/pareto?start_date=2024-01-01&end_date=2024-12-31")
	assert.True(t, second.FromCache)
	assert.JSONEq(t, string(first.Data), string(second.Data))

	_, refreshed := do(t, router, http.MethodGet, "/api/v1/analytics/pareto?start_date=2024-01-01&end_date=2024-12-31&refresh=true")
	assert.False(t, refreshed.FromCache)
	drain(t, svc)

	var report analytics.ParetoReport
	require.NoError(t, json.Unmarshal(first.Data, &report))
	assert.InDelta(t, 100.0, report.TotalSales, 1e-6)
	require.Len(t, report.ParetoSales, 1)
	assert.Equal(t, "Chupete", report.ParetoSales[0].Name)
}

func TestClearCache(t *testing.T) {
	router, svc := newTestRouter(t, nil)

	do(t, router, http.MethodGet, "/api/v1/analytics/inventory-health")
	do(t, router, http.MethodGet, "/api/v1/analytics/brands")
	drain(t, svc)

	code, _ := do(t, router, http.MethodDelete, "/api/v1/analytics/cache")
	assert.Equal(t, http.StatusOK, code)

	_, body := do(t, router, http.MethodGet, "/api/v1/analytics/brands")
	assert.False(t, body.FromCache)
	drain(t, svc)
}

func TestBadParameters(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	for _, path := range []string{
		"/api/v1/analytics/pareto?start_date=01-02-2024",
		"/api/v1/analytics/geography?end_date=yesterday",
		"/api/v1/analytics/pareto?start_date=2024-05-01&end_date=2024-04-01",
		"/api/v1/analytics/brands?months=abc",
		"/api/v1/analytics/projections?months=-1",
		"/api/v1/analytics/pnl?granularity=week",
		"/api/v1/analytics/executive?period=yesterday",
	} {
		code, body := do(t, router, http.MethodGet, path)
		assert.Equal(t, http.StatusBadRequest, code, path)
		assert.False(t, body.Success, path)
	}
}

func TestUpstreamFailureIsBadGateway(t *testing.T) {
	router, _ := newTestRouter(t, shopify.NewAPIError(shopify.CodeThrottled, "Throttled", http.StatusOK))

	code, body := do(t, router, http.MethodGet, "/api/v1/analytics/geography")

	assert.Equal(t, http.StatusBadGateway, code)
	assert.False(t, body.Success)
	assert.Contains(t, body.Error, "Throttled")
}

func TestUpstreamFailureLogsCategory(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	router, _ := newTestRouterWithLogger(t, shopify.NewAPIError(shopify.CodeThrottled, "Throttled", http.StatusOK), zap.New(core))

	code, _ := do(t, router, http.MethodGet, "/api/v1/analytics/pareto")

	assert.Equal(t, http.StatusBadGateway, code)
	entries := logs.FilterMessage("Upstream fetch failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, string(shopify.CategoryRateLimit), entries[0].ContextMap()["category"])
	assert.Equal(t, "pareto", entries[0].ContextMap()["report"])
}

func TestUpstreamCategoryWithoutAPIError(t *testing.T) {
	assert.Equal(t, shopify.CategoryUnknown, upstreamCategory(errors.New("dial tcp: timeout")))
}

type capturePublisher struct {
	events []*events.OrdersChangedEvent
	err    error
}

func (p *capturePublisher) PublishOrdersChanged(event *events.OrdersChangedEvent) error {
	p.events = append(p.events, event)
	return p.err
}

type captureHandler struct {
	events []*events.OrdersChangedEvent
}

func (h *captureHandler) HandleOrdersChanged(_ context.Context, event *events.OrdersChangedEvent) error {
	h.events = append(h.events, event)
	return nil
}

func postWebhook(router http.Handler, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/shopify/orders", bytes.NewReader(body))
	req.Header.Set(headerShopifyHmac, signature)
	req.Header.Set(headerShopifyTopic, "orders/create")
	req.Header.Set(headerShopifyDomain, "demo.myshopify.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func webhookRouter(h *WebhookHandler) *gin.Engine {
	router := gin.New()
	router.POST("/api/v1/webhooks/shopify/orders", h.HandleOrderWebhook)
	return router
}

func TestWebhookPublishesVerifiedOrders(t *testing.T) {
	pub := &capturePublisher{}
	router := webhookRouter(NewWebhookHandler("s3cret", pub, nil, zap.NewNop()))
	body := []byte(`{"id":820982911946154508,"admin_graphql_api_id":"gid://shopify/Order/820982911946154508"}`)

	w := postWebhook(router, body, shopify.NewSignature("s3cret").Sign(body))

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, pub.events, 1)
	assert.Equal(t, "orders/create", pub.events[0].Topic)
	assert.Equal(t, "gid://shopify/Order/820982911946154508", pub.events[0].OrderID)
	assert.Equal(t, "demo.myshopify.com", pub.events[0].Shop)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	pub := &capturePublisher{}
	router := webhookRouter(NewWebhookHandler("s3cret", pub, nil, zap.NewNop()))
	body := []byte(`{"id":1}`)

	w := postWebhook(router, body, shopify.NewSignature("other").Sign(body))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, pub.events)
}

func TestWebhookFallsBackToInProcessHandler(t *testing.T) {
	fallback := &captureHandler{}
	router := webhookRouter(NewWebhookHandler("s3cret", nil, fallback, zap.NewNop()))
	body := []byte(`{"id":42}`)

	w := postWebhook(router, body, shopify.NewSignature("s3cret").Sign(body))

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, fallback.events, 1)
	assert.Equal(t, "42", fallback.events[0].OrderID)
}

func TestWebhookPublishFailure(t *testing.T) {
	pub := &capturePublisher{err: errors.New("nats: connection closed")}
	router := webhookRouter(NewWebhookHandler("s3cret", pub, nil, zap.NewNop()))
	body := []byte(`{"id":7}`)

	w := postWebhook(router, body, shopify.NewSignature("s3cret").Sign(body))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
