package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType задаёт тип сообщения; он же ключ маршрутизации.
type MessageType string

// Типы сообщений.
const (
	MessageTypeEndpointPublished MessageType = "endpoint.published"
	MessageTypeRunSubmitted      MessageType = "run.submitted"
	MessageTypeRunFinished       MessageType = "run.finished"
	MessageTypeRunCancelled      MessageType = "run.cancelled"
)

// Message описывает конверт публикуемого события.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// EndpointPublishedPayload описывает публикацию endpoint.
type EndpointPublishedPayload struct {
	Endpoint   string `json:"endpoint"`
	EndpointID string `json:"endpoint_id"`
	Op         string `json:"op"`
	Version    int    `json:"version"`
}

// RunSubmittedPayload описывает отправленный run.
type RunSubmittedPayload struct {
	RunID      string            `json:"run_id"`
	Experiment string            `json:"experiment"`
	EndpointID string            `json:"endpoint_id,omitempty"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// RunFinishedPayload описывает статус, с которым закончилось ожидание run.
type RunFinishedPayload struct {
	RunID      string `json:"run_id"`
	Experiment string `json:"experiment"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// RunCancelledPayload описывает отмену run этим процессом.
type RunCancelledPayload struct {
	RunID      string `json:"run_id"`
	Reason     string `json:"reason"`
	LastStatus string `json:"last_status,omitempty"`
}

// Publisher публикует сообщения в ExchangeEvents.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение с ключом маршрутизации, равным его типу.
func (p *Publisher) Publish(ctx context.Context, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(ExchangeEvents),
			string(msg.Type),
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish %s: %w", msg.Type, err)
		}

		p.logger.Debug("published message",
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// publisher позволяет подменить Publisher в тестах Notifier.
type publisher interface {
	Publish(ctx context.Context, msg *Message) error
}

// Notifier отправляет события жизненного цикла. Nil-Notifier ничего не делает.
type Notifier struct {
	pub    publisher
	logger *slog.Logger
}

// NewNotifier создаёт Notifier поверх Publisher.
func NewNotifier(pub *Publisher, logger *slog.Logger) *Notifier {
	return &Notifier{pub: pub, logger: logger}
}

// EndpointPublished сообщает о публикации endpoint.
func (n *Notifier) EndpointPublished(ctx context.Context, payload EndpointPublishedPayload) {
	n.send(ctx, MessageTypeEndpointPublished, payload)
}

// RunSubmitted сообщает об отправке run.
func (n *Notifier) RunSubmitted(ctx context.Context, payload RunSubmittedPayload) {
	n.send(ctx, MessageTypeRunSubmitted, payload)
}

// RunFinished сообщает об окончании ожидания run.
func (n *Notifier) RunFinished(ctx context.Context, payload RunFinishedPayload) {
	n.send(ctx, MessageTypeRunFinished, payload)
}

// RunCancelled сообщает об отмене run.
func (n *Notifier) RunCancelled(ctx context.Context, payload RunCancelledPayload) {
	n.send(ctx, MessageTypeRunCancelled, payload)
}

// send не возвращает ошибку: событие не должно ронять trigger или run.
func (n *Notifier) send(ctx context.Context, msgType MessageType, payload any) {
	if n == nil || n.pub == nil {
		return
	}

	msg := &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	if err := n.pub.Publish(context.WithoutCancel(ctx), msg); err != nil {
		n.logger.Warn("failed to publish event", "type", msgType, "error", err)
	}
}
