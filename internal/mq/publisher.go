package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/randomcoffee/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeCycleCommitted MessageType = "cycle.committed"
	MessageTypeRosterOpened   MessageType = "roster.opened"
)

// Publisher публикует сообщения в RabbitMQ.
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

// Message — сообщение для публикации.
type Message struct {
	// ID — идентификатор сообщения. Для событий цикла детерминирован:
	// повторная отправка того же события имеет тот же ID.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// CycleCommittedPayload — payload события о зафиксированном цикле.
type CycleCommittedPayload struct {
	CycleID      uuid.UUID       `json:"cycle_id"`
	ScopeID      string          `json:"scope_id"`
	ChatID       int64           `json:"chat_id"`
	CycleKey     domain.CycleKey `json:"cycle_key"`
	Insufficient bool            `json:"insufficient"`
	Groups       [][]GroupMember `json:"groups"`
}

// GroupMember — участник группы в payload.
type GroupMember struct {
	ID          domain.ParticipantID `json:"id"`
	DisplayName string               `json:"display_name,omitempty"`
}

// RosterOpenedPayload — payload события об открытии окна сбора согласий.
type RosterOpenedPayload struct {
	CycleID  uuid.UUID       `json:"cycle_id"`
	ScopeID  string          `json:"scope_id"`
	ChatID   int64           `json:"chat_id"`
	CycleKey domain.CycleKey `json:"cycle_key"`
	OpensAt  time.Time       `json:"opens_at"`
	ClosesAt time.Time       `json:"closes_at"`
}

// Publish публикует сообщение и ждёт подтверждения брокера.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		confirm, err := ch.PublishWithDeferredConfirmWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,              // mandatory
			false,              // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		acked, err := confirm.WaitContext(ctx)
		if err != nil {
			return fmt.Errorf("wait confirm %s: %w", msg.ID, err)
		}
		if !acked {
			return fmt.Errorf("message %s nacked by broker", msg.ID)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishCycleCommitted публикует результат цикла.
// Потребитель: чат-бот (рассылка пар участникам).
func (p *Publisher) PublishCycleCommitted(ctx context.Context, chatID int64, cycle *domain.Cycle, groups []domain.Group) error {
	return p.Publish(ctx, ExchangeCycles, RoutingKeyCommitted, NewCycleCommittedMessage(chatID, cycle, groups))
}

// PublishRosterOpened публикует событие об открытии окна.
// Потребитель: чат-бот (публикация опроса).
func (p *Publisher) PublishRosterOpened(ctx context.Context, chatID int64, cycle *domain.Cycle) error {
	return p.Publish(ctx, ExchangeCycles, RoutingKeyOpened, NewRosterOpenedMessage(chatID, cycle))
}

// NewCycleCommittedMessage строит сообщение о зафиксированном цикле.
func NewCycleCommittedMessage(chatID int64, cycle *domain.Cycle, groups []domain.Group) *Message {
	payload := CycleCommittedPayload{
		CycleID:      cycle.ID,
		ScopeID:      cycle.ScopeID,
		ChatID:       chatID,
		CycleKey:     cycle.Key,
		Insufficient: cycle.Insufficient,
		Groups:       make([][]GroupMember, 0, len(groups)),
	}
	for _, g := range groups {
		members := make([]GroupMember, len(g.Members))
		for i, m := range g.Members {
			members[i] = GroupMember{ID: m.ID, DisplayName: m.DisplayName}
		}
		payload.Groups = append(payload.Groups, members)
	}

	return &Message{
		ID:        MessageID(cycle.ID, MessageTypeCycleCommitted),
		Type:      MessageTypeCycleCommitted,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// NewRosterOpenedMessage строит сообщение об открытии окна.
func NewRosterOpenedMessage(chatID int64, cycle *domain.Cycle) *Message {
	return &Message{
		ID:   MessageID(cycle.ID, MessageTypeRosterOpened),
		Type: MessageTypeRosterOpened,
		Payload: RosterOpenedPayload{
			CycleID:  cycle.ID,
			ScopeID:  cycle.ScopeID,
			ChatID:   chatID,
			CycleKey: cycle.Key,
			OpensAt:  cycle.OpensAt,
			ClosesAt: cycle.ClosesAt,
		},
		Timestamp: time.Now(),
	}
}

// MessageID — детерминированный ID события цикла.
// Получатели дедуплицируют повторные отправки из outbox по этому ID.
func MessageID(cycleID uuid.UUID, msgType MessageType) string {
	return uuid.NewSHA1(cycleID, []byte(msgType)).String()
}
