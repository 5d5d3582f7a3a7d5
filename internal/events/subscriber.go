package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Event subjects
const (
	SubjectOrdersChanged  = "shopify.orders.changed"
	SubjectReportComputed = "analytics.report.computed"
)

// handlerTimeout bounds the work done for one received event.
const handlerTimeout = 30 * time.Second

// OrdersChangedEvent signals that store orders were created, updated or
// cancelled and derived reports are stale.
type OrdersChangedEvent struct {
	EventID   uuid.UUID `json:"event_id"`
	Topic     string    `json:"topic"` // webhook topic, e.g. orders/create
	OrderID   string    `json:"order_id,omitempty"`
	Shop      string    `json:"shop,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ReportComputedEvent is published after a report was computed from
// upstream data rather than served from cache.
type ReportComputedEvent struct {
	EventID    uuid.UUID `json:"event_id"`
	Report     string    `json:"report"`
	CacheKey   string    `json:"cache_key"`
	Records    int       `json:"records"`
	Pages      int       `json:"pages"`
	Truncated  bool      `json:"truncated"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// Subscriber handles NATS event subscriptions
type Subscriber struct {
	nc      *nats.Conn
	logger  *zap.Logger
	handler EventHandler
	subs    []*nats.Subscription
}

// EventHandler defines the interface for handling events
type EventHandler interface {
	HandleOrdersChanged(ctx context.Context, event *OrdersChangedEvent) error
}

// NewSubscriber creates a new NATS subscriber
func NewSubscriber(nc *nats.Conn, handler EventHandler, logger *zap.Logger) *Subscriber {
	return &Subscriber{
		nc:      nc,
		logger:  logger,
		handler: handler,
		subs:    make([]*nats.Subscription, 0),
	}
}

// Start subscribes to all relevant events
func (s *Subscriber) Start() error {
	sub, err := s.nc.Subscribe(SubjectOrdersChanged, s.handleOrdersChanged)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	s.logger.Info("Subscribed to event", zap.String("subject", SubjectOrdersChanged))

	return nil
}

// Stop unsubscribes from all events
func (s *Subscriber) Stop() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	s.logger.Info("NATS subscriber stopped")
}

// handleOrdersChanged processes orders changed events
func (s *Subscriber) handleOrdersChanged(msg *nats.Msg) {
	var event OrdersChangedEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		s.logger.Error("Failed to unmarshal orders changed event", zap.Error(err))
		return
	}

	s.logger.Info("Received orders changed event",
		zap.String("event_id", event.EventID.String()),
		zap.String("topic", event.Topic),
		zap.String("order_id", event.OrderID),
	)

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	if err := s.handler.HandleOrdersChanged(ctx, &event); err != nil {
		s.logger.Error("Failed to handle orders changed event",
			zap.String("event_id", event.EventID.String()),
			zap.Error(err),
		)
	}
}

// Publisher handles publishing events to NATS
type Publisher struct {
	nc     *nats.Conn
	logger *zap.Logger
}

// NewPublisher creates a new NATS publisher
func NewPublisher(nc *nats.Conn, logger *zap.Logger) *Publisher {
	return &Publisher{nc: nc, logger: logger}
}

// PublishOrdersChanged publishes an orders changed event
func (p *Publisher) PublishOrdersChanged(event *OrdersChangedEvent) error {
	stamp(&event.EventID, &event.Timestamp)
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.nc.Publish(SubjectOrdersChanged, data)
}

// PublishReportComputed publishes a report computed event
func (p *Publisher) PublishReportComputed(event *ReportComputedEvent) error {
	stamp(&event.EventID, &event.Timestamp)
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.nc.Publish(SubjectReportComputed, data)
}

func stamp(id *uuid.UUID, ts *time.Time) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
	if ts.IsZero() {
		*ts = time.Now().UTC()
	}
}
