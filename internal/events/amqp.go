package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQP defaults.
const (
	DefaultExchange   = "attestations"
	DefaultRoutingKey = "attestation.issued"
)

// AMQPOption configures an AMQPPublisher.
type AMQPOption func(*AMQPPublisher)

// WithExchange sets the exchange events are published to.
func WithExchange(name string) AMQPOption {
	return func(p *AMQPPublisher) {
		if name != "" {
			p.exchange = name
		}
	}
}

// WithRoutingKey sets the routing key prefix; the lowercased attestation
// kind is appended per event.
func WithRoutingKey(key string) AMQPOption {
	return func(p *AMQPPublisher) {
		if key != "" {
			p.routingKey = key
		}
	}
}

// AMQPPublisher publishes issuance events to a RabbitMQ topic exchange.
type AMQPPublisher struct {
	conn       *amqp.Connection
	mu         sync.Mutex // channels are not safe for concurrent publish
	ch         *amqp.Channel
	exchange   string
	routingKey string
}

// NewAMQPPublisher connects to the broker and declares the exchange.
func NewAMQPPublisher(url string, opts ...AMQPOption) (*AMQPPublisher, error) {
	p := &AMQPPublisher{
		exchange:   DefaultExchange,
		routingKey: DefaultRoutingKey,
	}
	for _, opt := range opts {
		opt(p)
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("events: dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("events: open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		p.exchange, // name
		"topic",    // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("events: declare exchange %s: %w", p.exchange, err)
	}

	p.conn = conn
	p.ch = ch
	return p, nil
}

// Publish sends one issuance event. The routing key is the configured
// prefix plus the lowercased kind, e.g. attestation.issued.pcs.
func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: encode event: %w", err)
	}

	key := p.routingKey + "." + strings.ToLower(ev.Kind)

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx,
		p.exchange, // exchange
		key,        // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("events: publish %s: %w", key, err)
	}
	return nil
}

// Close releases the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ch.Close(); err != nil {
		p.conn.Close()
		return fmt.Errorf("events: close channel: %w", err)
	}
	if err := p.conn.Close(); err != nil {
		return fmt.Errorf("events: close connection: %w", err)
	}
	return nil
}
