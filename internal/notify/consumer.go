// Package notify consumes marketplace notification events from the
// message broker and forwards them to the addressed user's live
// connections. This is the fan-out target behind join_notifications.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	exchange = "tasklane.events"
	queue    = "convo.notifications"
	bindKey  = "notification.user.*"

	dialAttempts = 8
	dialBaseWait = time.Second
	maxDialWait  = 60 * time.Second
)

// UserNotifier pushes a notification record to a user's connections. The
// ws hub implements it.
type UserNotifier interface {
	Notify(userID uuid.UUID, record json.RawMessage)
}

// envelope is the broker message shape: who it is for, plus the record
// forwarded verbatim to the client.
type envelope struct {
	UserID uuid.UUID       `json:"user_id"`
	Record json.RawMessage `json:"record"`
}

// Consumer bridges the broker to the hub.
type Consumer struct {
	url string
	hub UserNotifier
	log zerolog.Logger
}

// NewConsumer creates a consumer for the given AMQP URL.
func NewConsumer(url string, hub UserNotifier, log zerolog.Logger) *Consumer {
	return &Consumer{url: url, hub: hub, log: log}
}

// Run connects, declares the queue and consumes until the context ends.
func (c *Consumer) Run(ctx context.Context) error {
	conn, err := dialWithRetry(ctx, c.url, c.log)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, bindKey, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	deliveries, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	c.log.Info().Str("queue", q.Name).Msg("notification consumer started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.handle(d)
		}
	}
}

func (c *Consumer) handle(d amqp091.Delivery) {
	var env envelope
	if err := json.Unmarshal(d.Body, &env); err != nil || env.UserID == uuid.Nil {
		c.log.Warn().Str("routing_key", d.RoutingKey).Msg("dropping malformed notification")
		_ = d.Nack(false, false)
		return
	}

	record := env.Record
	if len(record) == 0 {
		record = d.Body
	}
	c.hub.Notify(env.UserID, record)
	_ = d.Ack(false)
}

// dialWithRetry connects to the broker with exponential backoff, honoring
// context cancellation for graceful shutdown.
func dialWithRetry(ctx context.Context, url string, log zerolog.Logger) (*amqp091.Connection, error) {
	var lastErr error

	for i := 1; i <= dialAttempts; i++ {
		conn, err := amqp091.Dial(url)
		if err == nil {
			if i > 1 {
				log.Info().Int("attempt", i).Msg("broker connected")
			}
			return conn, nil
		}
		lastErr = err

		sleep := dialBaseWait * time.Duration(math.Pow(2, float64(i-1)))
		if sleep > maxDialWait {
			sleep = maxDialWait
		}
		log.Warn().Int("attempt", i).Dur("sleep", sleep).Err(err).Msg("broker dial failed")

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("failed to connect to broker after %d attempts: %w", dialAttempts, lastErr)
}
