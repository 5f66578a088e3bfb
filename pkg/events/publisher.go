// Package events publishes advisor artifacts to the wider platform.
// Extracted specialist insights feed the community-learning pipeline that
// produces the ingredient/seasonal/trend aggregates the advisor reads back.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"skinadvisor/pkg/domain"
)

// InsightPublisher emits extracted insights for downstream consumers.
// Publishing is best-effort: callers log failures and move on.
type InsightPublisher interface {
	PublishInsight(ctx context.Context, insight domain.SpecialistInsight) error
}

// AMQPPublisher publishes insights to a RabbitMQ topic exchange with routing
// key "insight.<specialist>".
type AMQPPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// NewAMQPPublisher connects and declares the exchange.
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	if exchange == "" {
		exchange = "skinadvisor.insights"
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPPublisher{conn: conn, channel: channel, exchange: exchange}, nil
}

// PublishInsight emits one insight event.
func (p *AMQPPublisher) PublishInsight(ctx context.Context, insight domain.SpecialistInsight) error {
	body, err := json.Marshal(insight)
	if err != nil {
		return fmt.Errorf("marshal insight: %w", err)
	}
	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		"insight."+insight.Specialist,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			MessageId:   insight.ID,
			Timestamp:   time.Now().UTC(),
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish insight: %w", err)
	}
	return nil
}

// Close releases the channel and connection.
func (p *AMQPPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		_ = p.conn.Close()
		return err
	}
	return p.conn.Close()
}
