package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/krismos64/Staka-livres-sub003/internal/config"
)

// SideEffectsQueue carries wakeup messages for the outbox worker. The
// queue is a nudge, not the source of truth: the worker also polls the
// outbox table, so a lost message only delays a task.
const SideEffectsQueue = "payment_side_effects"

// New opens a RabbitMQ connection.
func New(cfg *config.RabbitMQConfig) (*amqp.Connection, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	return conn, nil
}
