package service

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/krismos64/Staka-livres-sub003/internal/infra/mq"
)

// defaultPollInterval bounds how long a task can wait when no wakeup
// message arrives.
const defaultPollInterval = 30 * time.Second

// OutboxWorker drains payment side-effect tasks. It wakes on RabbitMQ
// nudges and additionally polls the outbox table, so tasks survive both
// a lost message and a dead broker.
type OutboxWorker struct {
	runner       *SideEffectRunner
	conn         *amqp.Connection
	pollInterval time.Duration
}

// NewOutboxWorker creates the worker. A nil connection degrades to
// pure polling.
func NewOutboxWorker(runner *SideEffectRunner, conn *amqp.Connection, pollInterval time.Duration) *OutboxWorker {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &OutboxWorker{runner: runner, conn: conn, pollInterval: pollInterval}
}

// Run blocks until ctx is cancelled.
func (w *OutboxWorker) Run(ctx context.Context) error {
	deliveries := w.consume(ctx)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Pick up anything left over from a previous run before waiting.
	w.drain(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				// Channel closed by the broker; fall back to polling only.
				deliveries = nil
				zap.L().Warn("wakeup queue closed, polling only")
				continue
			}
			w.drain(ctx)
			if err := d.Ack(false); err != nil {
				zap.L().Warn("failed to ack wakeup message", zap.Error(err))
			}
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *OutboxWorker) drain(ctx context.Context) {
	n, err := w.runner.Drain(ctx)
	if err != nil {
		zap.L().Error("outbox drain failed", zap.Error(err))
		return
	}
	if n > 0 {
		zap.L().Info("outbox drained", zap.Int("tasks", n))
	}
}

// consume subscribes to the wakeup queue with manual acks. Returns nil
// when no broker is available.
func (w *OutboxWorker) consume(ctx context.Context) <-chan amqp.Delivery {
	if w.conn == nil {
		return nil
	}
	ch, err := w.conn.Channel()
	if err != nil {
		zap.L().Warn("cannot open mq channel, polling only", zap.Error(err))
		return nil
	}
	if _, err := ch.QueueDeclare(mq.SideEffectsQueue, true, false, false, false, nil); err != nil {
		zap.L().Warn("cannot declare wakeup queue, polling only", zap.Error(err))
		return nil
	}
	deliveries, err := ch.ConsumeWithContext(ctx, mq.SideEffectsQueue, "", false, false, false, false, nil)
	if err != nil {
		zap.L().Warn("cannot consume wakeup queue, polling only", zap.Error(err))
		return nil
	}
	return deliveries
}
