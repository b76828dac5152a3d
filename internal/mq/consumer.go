package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrStopConsuming возвращается обработчиком, чтобы завершить Start без ошибки.
var ErrStopConsuming = errors.New("stop consuming")

// Handler обрабатывает одно сообщение.
type Handler func(ctx context.Context, msg *Message) error

// ConsumerConfig задаёт подписку consumer.
type ConsumerConfig struct {
	// Pattern связывает временную очередь с ExchangeEvents. По умолчанию "#".
	Pattern RoutingKey

	Handler Handler
}

// Consumer читает события из временной эксклюзивной очереди.
// Очередь создаётся заново после каждого переподключения.
type Consumer struct {
	conn    *Connection
	logger  *slog.Logger
	pattern RoutingKey
	handler Handler
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	pattern := cfg.Pattern
	if pattern == "" {
		pattern = RoutingKeyAll
	}

	return &Consumer{
		conn:    conn,
		logger:  logger,
		pattern: pattern,
		handler: cfg.Handler,
	}
}

// Start читает сообщения до отмены ctx или ErrStopConsuming от обработчика.
func (c *Consumer) Start(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		deliveries, err := c.setupConsume()
		if err != nil {
			c.logger.Error("failed to setup consume", "pattern", c.pattern, "error", err)
			if err := c.waitReconnect(ctx); err != nil {
				return err
			}
			continue
		}

		c.logger.Debug("consumer started", "pattern", c.pattern)

		err = c.processDeliveries(ctx, deliveries)
		if errors.Is(err, ErrStopConsuming) {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Warn("deliveries channel closed, reconnecting", "pattern", c.pattern)
		if err := c.waitReconnect(ctx); err != nil {
			return err
		}
	}
}

func (c *Consumer) waitReconnect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.conn.ReconnectNotify():
		return nil
	}
}

func (c *Consumer) setupConsume() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, fmt.Errorf("no channel available")
	}

	q, err := ch.QueueDeclare(
		"",    // name (server-generated)
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("declare tail queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, string(c.pattern), string(ExchangeEvents), false, nil); err != nil {
		return nil, fmt.Errorf("bind tail queue: %w", err)
	}

	deliveries, err := ch.Consume(
		q.Name, // queue
		"",     // consumer tag
		true,   // auto-ack
		true,   // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}
	return deliveries, nil
}

func (c *Consumer) processDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}

			msg, err := DecodeMessage(raw.Body)
			if err != nil {
				c.logger.Warn("skipping malformed message", "error", err)
				continue
			}

			if err := c.handler(ctx, msg); err != nil {
				if errors.Is(err, ErrStopConsuming) {
					return err
				}
				c.logger.Error("handler failed",
					"message_id", msg.ID,
					"type", msg.Type,
					"error", err,
				)
			}
		}
	}
}

// DecodeMessage разбирает тело AMQP сообщения.
func DecodeMessage(body []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("message %q has no type", msg.ID)
	}
	return &msg, nil
}

// ParsePayload приводит payload сообщения к типу T.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	// после DecodeMessage payload лежит как map[string]any
	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}

	if err := json.Unmarshal(payloadBytes, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}
	return result, nil
}
