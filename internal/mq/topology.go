package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeCycles Exchange = "coffee.cycles"
	ExchangeDLQ    Exchange = "coffee.dlq"
)

// Queues — имена очередей.
const (
	QueueCyclesCommitted Queue = "cycles.committed"
	QueueRostersOpened   Queue = "rosters.opened"
	QueueDLQCycles       Queue = "dlq.cycles"
)

// Routing keys.
const (
	RoutingKeyCommitted RoutingKey = "committed"
	RoutingKeyOpened    RoutingKey = "opened"
	RoutingKeyDLQCycles RoutingKey = "cycles"
)

// SetupTopology объявляет exchanges, queues и bindings.
// Все объявления идемпотентны.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	for _, name := range []Exchange{ExchangeCycles, ExchangeDLQ} {
		err := ch.ExchangeDeclare(
			string(name), // name
			"direct",     // type
			true,         // durable
			false,        // auto-deleted
			false,        // internal
			false,        // no-wait
			nil,          // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", name, err)
		}
	}
	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	// Сообщения, которые бот не смог обработать, уходят в DLQ
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQCycles),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// cycles.committed — пары для рассылки
		{QueueCyclesCommitted, dlqArgs},

		// rosters.opened — сигнал опубликовать опрос
		{QueueRostersOpened, dlqArgs},

		// dlq.cycles — сама DLQ очередь
		{QueueDLQCycles, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}
	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueCyclesCommitted, RoutingKeyCommitted, ExchangeCycles},
		{QueueRostersOpened, RoutingKeyOpened, ExchangeCycles},
		{QueueDLQCycles, RoutingKeyDLQCycles, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}
	return nil
}

// DeclareTap создаёт временную эксклюзивную очередь, получающую копии
// всех событий циклов. Очередь удаляется вместе с соединением.
// Используется CLI-командой watch и не забирает сообщения у бота.
func DeclareTap(ctx context.Context, conn *Connection) (Queue, error) {
	var name Queue
	err := conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}

		q, err := ch.QueueDeclare(
			"",    // name (генерирует брокер)
			false, // durable
			true,  // delete when unused
			true,  // exclusive
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			return fmt.Errorf("declare tap queue: %w", err)
		}

		for _, key := range []RoutingKey{RoutingKeyCommitted, RoutingKeyOpened} {
			if err := ch.QueueBind(q.Name, string(key), string(ExchangeCycles), false, nil); err != nil {
				return fmt.Errorf("bind tap queue to %s: %w", key, err)
			}
		}

		name = Queue(q.Name)
		return nil
	})
	return name, err
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Random Coffee RabbitMQ Topology:

    coffee.cycles (direct)
    ├── cycles.committed [routing: committed]
    │       Consumer: chat bot (рассылка пар)
    │       DLQ: dlq.cycles
    └── rosters.opened [routing: opened]
            Consumer: chat bot (опрос участников)
            DLQ: dlq.cycles

    coffee.dlq (direct)
    └── dlq.cycles [routing: cycles]
            Manual processing
  `
}
