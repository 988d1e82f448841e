package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/streadway/amqp"

	"mithai/internal/models"
)

// Channel is the subset of *amqp.Channel the client uses.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel Channel
	queue   string
	mu      sync.Mutex // amqp channels are not safe for concurrent publishing
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL   string
	Queue string
}

// NewClient connects to RabbitMQ, opens a channel and declares the durable
// inventory event queue.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	client, err := newClient(ch, cfg.Queue)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	client.conn = conn
	return client, nil
}

func newClient(ch Channel, queue string) (*Client, error) {
	if queue == "" {
		queue = "inventory_events"
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare %s: %w", queue, err)
	}
	return &Client{channel: ch, queue: queue}, nil
}

// Close closes the RabbitMQ channel and connection.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}

// PublishInventoryEvent publishes the event as a persistent JSON message.
func (c *Client) PublishInventoryEvent(ctx context.Context, event models.InventoryEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal inventory event: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	err = c.channel.Publish("", c.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Type:         string(event.Type),
		MessageId:    event.ID,
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Handler processes one decoded inventory event. Returning an error requeues
// the message.
type Handler func(ctx context.Context, event models.InventoryEvent) error

// ConsumeInventoryEvents delivers events to handler until ctx is cancelled or
// the broker closes the channel. Undecodable messages are dropped.
func (c *Client) ConsumeInventoryEvents(ctx context.Context, handler Handler) error {
	msgs, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			handle(ctx, msg, handler)
		}
	}
}

func handle(ctx context.Context, msg amqp.Delivery, handler Handler) {
	var event models.InventoryEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		_ = msg.Nack(false, false)
		return
	}
	if err := handler(ctx, event); err != nil {
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}
