package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lead-ingest/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher delivers lead events to dashboard consumers.
type Publisher interface {
	Publish(ctx context.Context, event models.LeadEvent) error
	Close() error
}

type RabbitMQ struct {
	conn         *amqp.Connection
	ch           *amqp.Channel
	exchangeName string
	logger       *zap.Logger
}

// NewRabbitMQ connects and declares a durable topic exchange. Routing keys are
// the event types, so consumers can bind to "lead.*" or a single type.
func NewRabbitMQ(url, exchangeName string, logger *zap.Logger) (*RabbitMQ, error) {
	conn, err := NewRabbitMQConnection(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	logger.Info("Connected to RabbitMQ", zap.String("exchange", exchangeName))

	return &RabbitMQ{
		conn:         conn,
		ch:           ch,
		exchangeName: exchangeName,
		logger:       logger,
	}, nil
}

func (r *RabbitMQ) Publish(ctx context.Context, event models.LeadEvent) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	msg, err := newPublishing(event)
	if err != nil {
		return err
	}

	err = r.ch.PublishWithContext(ctx,
		r.exchangeName,
		string(event.Type), // routing key
		false,              // mandatory
		false,              // immediate
		msg)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	return nil
}

func newPublishing(event models.LeadEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	headers := make(amqp.Table)
	headers["user_id"] = event.UserID
	headers["event_type"] = string(event.Type)

	return amqp.Publishing{
		ContentType:  "application/json",
		Headers:      headers,
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
	}, nil
}

func (r *RabbitMQ) Close() error {
	if err := r.ch.Close(); err != nil {
		r.logger.Error("Failed to close channel", zap.Error(err))
	}
	if err := r.conn.Close(); err != nil {
		r.logger.Error("Failed to close connection", zap.Error(err))
	}
	return nil
}

// NopPublisher drops events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, models.LeadEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
