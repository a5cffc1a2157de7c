package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"waypoint/internal/domain"

	amqp "github.com/rabbitmq/amqp091-go"
)

const eventsExchange = "waypoint.events"

// EventBus publishes visit lifecycle events for external journaling or
// accountability tooling. The daemon runs fine without a broker; wiring it
// is opt-in.
type EventBus struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// VisitEvent is one lifecycle event on the events exchange.
type VisitEvent struct {
	Kind      string `json:"kind"` // "visit.granted", "visit.reflected", "site.blocked"
	VisitID   string `json:"visit_id,omitempty"`
	URL       string `json:"url,omitempty"`
	Site      string `json:"site,omitempty"`
	Duration  int    `json:"duration,omitempty"`
	Until     int64  `json:"until,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// NewEventBus connects to the broker and declares the events exchange.
func NewEventBus(url string) (*EventBus, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	bus := &EventBus{conn: conn, channel: ch}
	if err := bus.setup(); err != nil {
		bus.Close()
		return nil, err
	}
	return bus, nil
}

// NewEventBusWithRetry retries the initial connection; brokers often come up
// after the daemon under process supervisors.
func NewEventBusWithRetry(ctx context.Context, url string) (*EventBus, error) {
	backoff := time.Second
	for {
		bus, err := NewEventBus(url)
		if err == nil {
			return bus, nil
		}

		slog.Warn("broker connection failed, retrying",
			slog.String("error", err.Error()),
			slog.Duration("backoff", backoff))

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("gave up connecting to broker: %w", err)
		case <-time.After(backoff):
		}
		if backoff < 10*time.Second {
			backoff *= 2
		}
	}
}

func (b *EventBus) setup() error {
	if err := b.channel.ExchangeDeclare(
		eventsExchange, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	); err != nil {
		return fmt.Errorf("failed to declare events exchange: %w", err)
	}
	return nil
}

// VisitGranted publishes a visit.granted event
func (b *EventBus) VisitGranted(ctx context.Context, visit *domain.VisitRecord) {
	b.publish(ctx, "visit.granted", &VisitEvent{
		Kind:      "visit.granted",
		VisitID:   visit.VisitID,
		URL:       visit.URL,
		Duration:  visit.Duration,
		Timestamp: visit.Timestamp.Unix(),
	})
}

// ReflectionStored publishes a visit.reflected event
func (b *EventBus) ReflectionStored(ctx context.Context, visitID string) {
	b.publish(ctx, "visit.reflected", &VisitEvent{
		Kind:      "visit.reflected",
		VisitID:   visitID,
		Timestamp: time.Now().Unix(),
	})
}

// SiteBlocked publishes a site.blocked event
func (b *EventBus) SiteBlocked(ctx context.Context, site string, until time.Time) {
	b.publish(ctx, "site.blocked", &VisitEvent{
		Kind:      "site.blocked",
		Site:      site,
		Until:     until.Unix(),
		Timestamp: time.Now().Unix(),
	})
}

// publish is fire-and-forget: a down broker must never stall the gate.
func (b *EventBus) publish(ctx context.Context, routingKey string, event *VisitEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal event", slog.String("error", err.Error()))
		return
	}

	err = b.channel.PublishWithContext(
		ctx,
		eventsExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		slog.Warn("failed to publish event",
			slog.String("kind", event.Kind),
			slog.String("error", err.Error()))
		return
	}

	slog.Debug("published event", slog.String("kind", event.Kind))
}

func (b *EventBus) IsClosed() bool {
	return b.conn == nil || b.conn.IsClosed()
}

func (b *EventBus) Close() error {
	if b.channel != nil {
		b.channel.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
