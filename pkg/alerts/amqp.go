package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Publisher is the subset of *amqp091.Channel used to publish alerts.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// AMQPNotifier publishes alerts as JSON events to a RabbitMQ exchange.
type AMQPNotifier struct {
	mu         sync.Mutex
	pub        Publisher
	exchange   string
	routingKey string
	closers    []func() error
}

// NewAMQPNotifier wraps an existing publisher.
func NewAMQPNotifier(pub Publisher, exchange, routingKey string) *AMQPNotifier {
	return &AMQPNotifier{pub: pub, exchange: exchange, routingKey: routingKey}
}

// DialAMQP connects to the broker and declares a durable topic exchange.
func DialAMQP(url, exchange, routingKey string) (*AMQPNotifier, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	n := NewAMQPNotifier(ch, exchange, routingKey)
	n.closers = []func() error{ch.Close, conn.Close}
	return n, nil
}

func (a *AMQPNotifier) Name() string { return "amqp" }

func (a *AMQPNotifier) Send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(newEventPayload(alert))
	if err != nil {
		return fmt.Errorf("marshal amqp payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	a.mu.Lock()
	defer a.mu.Unlock()

	err = a.pub.PublishWithContext(ctx,
		a.exchange,   // exchange
		a.routingKey, // routing key
		false,        // mandatory
		false,        // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    alert.NotificationID,
			Type:         EventNotificationCreated,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish amqp alert: %w", err)
	}
	return nil
}

// Close releases the channel and connection opened by DialAMQP.
func (a *AMQPNotifier) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var firstErr error
	for _, c := range a.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}
