package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/serasa-adapter/internal/metrics"
	"github.com/Checker-Finance/serasa-adapter/pkg/model"
)

// amqpChannel is the slice of *amqp.Channel the publisher uses.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitPublisher publishes canonical envelopes to a RabbitMQ exchange, routed by subject.
type RabbitPublisher struct {
	conn     *amqp.Connection
	channel  amqpChannel
	exchange string
	service  string
	logger   *zap.Logger
}

// NewRabbitPublisher dials url and opens a channel. An empty exchange publishes through
// the default exchange, so subjects act as queue names.
func NewRabbitPublisher(url, exchange, service string, logger *zap.Logger) (*RabbitPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	return &RabbitPublisher{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		service:  service,
		logger:   logger,
	}, nil
}

func (p *RabbitPublisher) PublishEnvelope(ctx context.Context, subject string, env *model.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		metrics.IncError("publisher", "marshal_failed")
		return err
	}
	if subject == "" {
		subject = env.Topic
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		subject,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			Body:          body,
			MessageId:     env.ID.String(),
			CorrelationId: env.CorrelationID.String(),
			Type:          env.EventType,
			Timestamp:     env.Timestamp,
			AppId:         p.service,
			Headers: amqp.Table{
				"tenant_id": env.TenantID,
				"client_id": env.ClientID,
			},
		},
	)
	if err != nil {
		p.logger.Error("publisher.rabbit_publish_failed",
			zap.String("routing_key", subject),
			zap.String("event_type", env.EventType),
			zap.Error(err))
		metrics.IncEventPublished("rabbitmq", env.EventType, "error")
		return err
	}

	p.logger.Info("publisher.rabbit_publish_success",
		zap.String("routing_key", subject),
		zap.String("event_type", env.EventType),
		zap.String("client_id", env.ClientID))
	metrics.IncEventPublished("rabbitmq", env.EventType, "ok")
	return nil
}

func (p *RabbitPublisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
