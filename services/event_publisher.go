package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/kendall-kelly/shopfloor-api/models"
	amqp "github.com/rabbitmq/amqp091-go"
)

// PartEventsExchange is the fanout exchange committed part events are published to
const PartEventsExchange = "part_events_fanout"

// EventPublisher announces committed part events to other systems (dashboards, notifiers)
type EventPublisher interface {
	PublishPartEvent(ctx context.Context, event models.PartEvent) error
	Close() error
}

// PartEventMessage is the JSON body published for every part event
type PartEventMessage struct {
	EventID   string                 `json:"event_id"`
	OrderID   string                 `json:"order_id"`
	PartID    string                 `json:"part_id"`
	UserID    *string                `json:"user_id"`
	Type      models.PartEventType   `json:"type"`
	Message   string                 `json:"message"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewPartEventMessage converts a stored event into its published form
func NewPartEventMessage(event models.PartEvent) PartEventMessage {
	return PartEventMessage{
		EventID:   event.ID,
		OrderID:   event.OrderID,
		PartID:    event.PartID,
		UserID:    event.UserID,
		Type:      event.Type,
		Message:   event.Message,
		Meta:      event.Meta,
		Timestamp: event.CreatedAt,
	}
}

var eventPublisherInstance EventPublisher = NoopPublisher{}

// GetEventPublisher returns the configured publisher (a no-op until one is set)
func GetEventPublisher() EventPublisher {
	return eventPublisherInstance
}

// SetEventPublisher replaces the publisher instance (primarily for testing)
func SetEventPublisher(publisher EventPublisher) {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	eventPublisherInstance = publisher
}

// NoopPublisher drops every event; used when AMQP_URL is not configured
type NoopPublisher struct{}

func (NoopPublisher) PublishPartEvent(ctx context.Context, event models.PartEvent) error {
	return nil
}

func (NoopPublisher) Close() error {
	return nil
}

// AMQPPublisher publishes part events to a RabbitMQ fanout exchange
type AMQPPublisher struct {
	conn *amqp.Connection
	mu   sync.Mutex
	ch   *amqp.Channel
}

// NewAMQPPublisher dials RabbitMQ and declares the part events exchange
func NewAMQPPublisher(url string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(PartEventsExchange, "fanout", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &AMQPPublisher{conn: conn, ch: ch}, nil
}

func (p *AMQPPublisher) PublishPartEvent(ctx context.Context, event models.PartEvent) error {
	body, err := json.Marshal(NewPartEventMessage(event))
	if err != nil {
		return fmt.Errorf("failed to marshal part event: %w", err)
	}

	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, PartEventsExchange, string(event.Type), false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    event.ID,
		Timestamp:    event.CreatedAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish part event: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ch.Close(); err != nil && !p.conn.IsClosed() {
		return fmt.Errorf("failed to close channel: %w", err)
	}
	return p.conn.Close()
}
