package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher sends worker events to the events exchange
type Publisher struct {
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

// NewPublisher creates a new RabbitMQ publisher
func NewPublisher(conn *Connection, exchange string, logger *zap.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{
		channel:  ch,
		exchange: exchange,
		logger:   logger,
	}, nil
}

// EntryEfficiency is the efficiency of the latest stretch, with its anomaly verdict
type EntryEfficiency struct {
	EntryID       string  `json:"entry_id"`
	Efficiency    float64 `json:"efficiency"`
	Distance      float64 `json:"distance"`
	FuelUsed      float64 `json:"fuel_used"`
	Anomalous     bool    `json:"anomalous"`
	AnomalyReason string  `json:"anomaly_reason,omitempty"`
}

// MetricsEvent is published after every accepted change to the collection.
// Nil aggregates mean there is not enough history yet.
type MetricsEvent struct {
	RequestID              string           `json:"request_id,omitempty"`
	Action                 string           `json:"action"`
	EntryID                string           `json:"entry_id,omitempty"`
	Version                uint64           `json:"version"`
	EntryCount             int              `json:"entry_count"`
	AverageEfficiency      *float64         `json:"average_efficiency"`
	AverageCostPerDistance *float64         `json:"average_cost_per_distance"`
	EstimatedRange         *float64         `json:"estimated_range"`
	EstimatedFullTankCost  *float64         `json:"estimated_full_tank_cost"`
	Latest                 *EntryEfficiency `json:"latest,omitempty"`
	MetricsError           string           `json:"metrics_error,omitempty"`
	OccurredAt             time.Time        `json:"occurred_at"`
}

// RejectedEvent is published when a command fails validation
type RejectedEvent struct {
	RequestID  string    `json:"request_id,omitempty"`
	Action     string    `json:"action"`
	EntryID    string    `json:"entry_id,omitempty"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PublishMetricsEvent publishes recomputed metrics
func (p *Publisher) PublishMetricsEvent(ctx context.Context, event MetricsEvent, routingKey string) error {
	return p.publish(ctx, routingKey, event)
}

// PublishRejectedEvent publishes a rejected command
func (p *Publisher) PublishRejectedEvent(ctx context.Context, event RejectedEvent, routingKey string) error {
	return p.publish(ctx, routingKey, event)
}

func (p *Publisher) publish(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("published event",
		zap.String("exchange", p.exchange),
		zap.String("routing_key", routingKey),
	)
	return nil
}

// Close closes the publisher channel
func (p *Publisher) Close() error {
	if p.channel != nil {
		return p.channel.Close()
	}
	return nil
}
