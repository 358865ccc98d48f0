package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"webshop/internal/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	exchangeType = "topic"
	dialAttempts = 5
	dialBackoff  = 2 * time.Second
)

// AMQPPublisher writes events to a durable topic exchange.
type AMQPPublisher struct {
	conn     *amqp.Connection
	mu       sync.Mutex
	ch       *amqp.Channel
	exchange string
	logger   *logger.Logger
}

// DialAMQP connects with retries, opens a channel and declares the exchange.
func DialAMQP(ctx context.Context, url, exchange string, log *logger.Logger) (*AMQPPublisher, error) {
	log = logger.OrNop(log).With("component", "amqp_publisher")

	var (
		conn *amqp.Connection
		err  error
	)
	for i := 0; i < dialAttempts; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		log.Warn("amqp dial failed", "attempt", i+1, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(dialBackoff):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("could not connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("could not open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, exchangeType, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("could not declare exchange %s: %w", exchange, err)
	}
	log.Info("amqp publisher ready", "exchange", exchange)
	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange, logger: log}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev OrderEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("could not marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx,
		p.exchange,
		ev.Type,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.OrderID + ":" + ev.Type,
			Timestamp:    ev.OccurredAt,
			Body:         body,
		},
	)
}

// Close releases the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Close(); err != nil {
		p.logger.Warn("close channel failed", "error", err)
	}
	return p.conn.Close()
}
