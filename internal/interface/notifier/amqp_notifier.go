package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"leadcall-service/internal/domain/entity"
	"leadcall-service/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AmqpNotifier publishes push events to a topic exchange for out-of-process
// consumers (offline push workers, analytics). Best-effort like every other
// notifier.
type AmqpNotifier struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	logger   logger.Logger
}

// NewAmqpNotifier dials RabbitMQ and declares the topic exchange
func NewAmqpNotifier(url, exchange string, log logger.Logger) (*AmqpNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AmqpNotifier{conn: conn, ch: ch, exchange: exchange, logger: log}, nil
}

// Name identifies the channel in logs and metrics
func (n *AmqpNotifier) Name() string {
	return "amqp"
}

// Push publishes the event with routing key <kind>.<eventType>
func (n *AmqpNotifier) Push(ctx context.Context, to entity.Recipient, event *entity.Event) error {
	body, err := json.Marshal(struct {
		Recipient string        `json:"recipient"`
		Kind      string        `json:"kind"`
		Event     *entity.Event `json:"event"`
	}{
		Recipient: to.ID,
		Kind:      to.Kind.String(),
		Event:     event,
	})
	if err != nil {
		return err
	}

	key := fmt.Sprintf("%s.%s", to.Kind, event.Type)
	return n.ch.PublishWithContext(ctx, n.exchange, key, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

// Close tears down the channel and connection
func (n *AmqpNotifier) Close() error {
	if n.ch != nil {
		_ = n.ch.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}
