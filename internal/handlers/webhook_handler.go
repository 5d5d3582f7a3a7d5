package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/niaga-platform/service-commerce-analytics/internal/domain/shopify"
	"github.com/niaga-platform/service-commerce-analytics/internal/events"
)

// Shopify webhook headers
const (
	headerShopifyHmac   = "X-Shopify-Hmac-Sha256"
	headerShopifyTopic  = "X-Shopify-Topic"
	headerShopifyDomain = "X-Shopify-Shop-Domain"
)

const maxWebhookBody = 1 << 20

// OrdersChangedPublisher fans an order change out to subscribers.
type OrdersChangedPublisher interface {
	PublishOrdersChanged(event *events.OrdersChangedEvent) error
}

// WebhookHandler receives Shopify order webhooks
type WebhookHandler struct {
	signature *shopify.Signature
	publisher OrdersChangedPublisher
	fallback  events.EventHandler
	logger    *zap.Logger
}

// NewWebhookHandler creates a new webhook handler. When publisher is nil the
// change is handed to fallback in-process.
func NewWebhookHandler(secret string, publisher OrdersChangedPublisher, fallback events.EventHandler, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		signature: shopify.NewSignature(secret),
		publisher: publisher,
		fallback:  fallback,
		logger:    logger,
	}
}

type orderWebhookPayload struct {
	ID                json.Number `json:"id"`
	AdminGraphQLAPIID string      `json:"admin_graphql_api_id"`
}

// HandleOrderWebhook handles orders/create, orders/updated and
// orders/cancelled webhooks
// POST /api/v1/webhooks/shopify/orders
func (h *WebhookHandler) HandleOrderWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Failed to read body"})
		return
	}

	if !h.signature.VerifyWebhook(body, c.GetHeader(headerShopifyHmac)) {
		h.logger.Warn("Rejected webhook with invalid signature",
			zap.String("topic", c.GetHeader(headerShopifyTopic)),
			zap.String("shop", c.GetHeader(headerShopifyDomain)),
		)
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": shopify.ErrInvalidSignature.Error()})
		return
	}

	var payload orderWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid payload"})
		return
	}

	orderID := payload.AdminGraphQLAPIID
	if orderID == "" {
		orderID = payload.ID.String()
	}
	event := &events.OrdersChangedEvent{
		Topic:   c.GetHeader(headerShopifyTopic),
		OrderID: orderID,
		Shop:    c.GetHeader(headerShopifyDomain),
	}

	if h.publisher != nil {
		if err := h.publisher.PublishOrdersChanged(event); err != nil {
			h.logger.Error("Failed to publish orders changed event", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to publish event"})
			return
		}
	} else if h.fallback != nil {
		if err := h.fallback.HandleOrdersChanged(c.Request.Context(), event); err != nil {
			h.logger.Error("Failed to handle order change", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to handle order change"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "status": "received"})
}
