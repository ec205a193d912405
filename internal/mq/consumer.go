package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// resubscribeDelay — пауза перед повторной подпиской, если соединение
// живо, но очередь объявить не удалось (например, нет прав).
const resubscribeDelay = 5 * time.Second

var errDeliveriesClosed = errors.New("deliveries channel closed")

// EventHandler обрабатывает одно событие цикла.
// Ошибка означает nack: первая доставка возвращается в очередь,
// повторная уходит в DLQ.
type EventHandler func(ctx context.Context, d *Delivery) error

// Delivery — событие цикла, полученное из очереди.
type Delivery struct {
	Message Message
	Raw     amqp.Delivery
}

// Ack подтверждает обработку.
func (d *Delivery) Ack() error {
	return d.Raw.Ack(false)
}

// Nack отклоняет событие. requeue=false отправляет его в DLQ.
func (d *Delivery) Nack(requeue bool) error {
	return d.Raw.Nack(false, requeue)
}

// ConsumerConfig — настройки подписки.
type ConsumerConfig struct {
	// Queue — постоянная очередь (например, QueueCyclesCommitted).
	Queue Queue

	// Declare объявляет временную очередь и возвращает её имя.
	// Вызывается перед каждой подпиской, в том числе после reconnect,
	// потому что эксклюзивная очередь умирает вместе с соединением.
	// Если задан, Queue игнорируется.
	Declare func(ctx context.Context) (Queue, error)

	Handler EventHandler

	// Prefetch — сколько неподтверждённых событий держит брокер (по умолчанию 1).
	Prefetch int
}

// Consumer подписывается на события циклов и переживает reconnect.
// Им пользуются CLI watch (tap-очередь) и внешние получатели событий.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    Queue
	declare  func(ctx context.Context) (Queue, error)
	handler  EventHandler
	prefetch int

	cancel context.CancelFunc
}

// NewConsumer создаёт Consumer. Подписка начинается в Start.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	return &Consumer{
		conn:     conn,
		logger:   logger,
		queue:    cfg.Queue,
		declare:  cfg.Declare,
		handler:  cfg.Handler,
		prefetch: max(cfg.Prefetch, 1),
	}
}

// Start читает события, пока не отменят ctx или не вызовут Stop.
// Возвращает ctx.Err().
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)
	defer c.cancel()

	for {
		deliveries, err := c.subscribe(ctx)
		if err != nil {
			c.logger.Error("failed to subscribe", "queue", c.queue, "error", err)
		} else {
			c.logger.Info("consumer started", "queue", c.queue)
			err = c.drain(ctx, deliveries)
			if ctx.Err() == nil {
				c.logger.Warn("subscription interrupted", "queue", c.queue, "error", err)
			}
		}

		if !c.waitResubscribe(ctx) {
			return ctx.Err()
		}
	}
}

// waitResubscribe ждёт reconnect или паузу resubscribeDelay.
func (c *Consumer) waitResubscribe(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-c.conn.ReconnectNotify():
		c.logger.Info("reconnected, resubscribing", "queue", c.queue)
		return true
	case <-time.After(resubscribeDelay):
		return true
	}
}

// subscribe объявляет очередь (если нужно) и начинает потребление.
func (c *Consumer) subscribe(ctx context.Context) (<-chan amqp.Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if c.declare != nil {
		q, err := c.declare(ctx)
		if err != nil {
			return nil, fmt.Errorf("declare queue: %w", err)
		}
		c.queue = q
	}

	ch := c.conn.Channel()
	if ch == nil || ch.IsClosed() {
		return nil, ErrNoChannel
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		string(c.queue), // queue
		"",              // consumer tag (генерирует брокер)
		false,           // auto-ack
		false,           // exclusive
		false,           // no-local
		false,           // no-wait
		nil,             // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}
	return deliveries, nil
}

// drain передаёт доставки обработчику, пока канал открыт.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			c.handleDelivery(ctx, raw)
		}
	}
}

// handleDelivery разбирает событие, вызывает обработчик и отвечает брокеру.
func (c *Consumer) handleDelivery(ctx context.Context, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("malformed event, dead-lettering",
			"queue", c.queue,
			"error", err,
			"body", string(raw.Body),
		)
		c.reply(raw, raw.Nack(false, false))
		return
	}

	log := c.logger.With("queue", c.queue, "message_id", msg.ID, "type", msg.Type)
	log.Debug("event received")

	if err := c.handler(ctx, &Delivery{Message: msg, Raw: raw}); err != nil {
		requeue := !raw.Redelivered
		log.Error("event handler failed", "requeue", requeue, "error", err)
		c.reply(raw, raw.Nack(false, requeue))
		return
	}

	c.reply(raw, raw.Ack(false))
}

func (c *Consumer) reply(raw amqp.Delivery, err error) {
	if err != nil {
		c.logger.Warn("failed to ack event", "queue", c.queue, "delivery_tag", raw.DeliveryTag, "error", err)
	}
}

// Stop прерывает Start.
func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// ParsePayload декодирует payload события (например, CycleCommittedPayload).
// После json.Unmarshal в Message payload лежит как map, поэтому он
// перекодируется в нужный тип.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("unmarshal %s payload: %w", msg.Type, err)
	}
	return result, nil
}
