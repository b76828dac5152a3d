package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange задаёт имя обменника.
type Exchange string

// Queue задаёт имя очереди.
type Queue string

// RoutingKey задаёт ключ маршрутизации.
type RoutingKey string

const (
	// ExchangeEvents принимает все события, ключ маршрутизации совпадает с типом сообщения.
	ExchangeEvents Exchange = "forecast.events"

	// QueueAudit получает копию всех событий.
	QueueAudit Queue = "forecast.events.audit"

	// RoutingKeyAll связывает очередь со всеми событиями topic-обменника.
	RoutingKeyAll RoutingKey = "#"
)

// SetupTopology объявляет обменник и очередь аудита.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.ExchangeDeclare(
			string(ExchangeEvents), // name
			"topic",                // type
			true,                   // durable
			false,                  // auto-deleted
			false,                  // internal
			false,                  // no-wait
			nil,                    // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ExchangeEvents, err)
		}

		_, err = ch.QueueDeclare(
			string(QueueAudit), // name
			true,               // durable
			false,              // delete when unused
			false,              // exclusive
			false,              // no-wait
			nil,                // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", QueueAudit, err)
		}

		err = ch.QueueBind(
			string(QueueAudit),
			string(RoutingKeyAll),
			string(ExchangeEvents),
			false,
			nil,
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", QueueAudit, ExchangeEvents, err)
		}
		return nil
	})
}
