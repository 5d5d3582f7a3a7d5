package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/niaga-platform/service-commerce-analytics/internal/handlers"
)

// RouteConfig holds configuration for routes
type RouteConfig struct {
	ServiceName      string
	AnalyticsHandler *handlers.AnalyticsHandler
	WebhookHandler   *handlers.WebhookHandler
}

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, cfg *RouteConfig) {
	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": cfg.ServiceName,
			"time":    time.Now().UTC(),
		})
	})

	// API v1 routes
	v1 := router.Group("/api/v1")

	// Webhook routes (authenticated by HMAC signature)
	if cfg.WebhookHandler != nil {
		webhooks := v1.Group("/webhooks/shopify")
		webhooks.POST("/orders", cfg.WebhookHandler.HandleOrderWebhook)
	}

	analytics := v1.Group("/analytics")
	{
		analytics.GET("/pareto", cfg.AnalyticsHandler.GetPareto)
		analytics.GET("/brands", cfg.AnalyticsHandler.GetBrands)
		analytics.GET("/geography", cfg.AnalyticsHandler.GetGeography)
		analytics.GET("/inventory-health", cfg.AnalyticsHandler.GetInventoryHealth)
		analytics.GET("/projections", cfg.AnalyticsHandler.GetProjections)
		analytics.GET("/pnl", cfg.AnalyticsHandler.GetPnL)
		analytics.GET("/executive", cfg.AnalyticsHandler.GetExecutive)
		analytics.DELETE("/cache", cfg.AnalyticsHandler.ClearCache)
	}
}
