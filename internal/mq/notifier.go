package mq

import (
	"context"

	"github.com/shaiso/randomcoffee/internal/domain"
)

// Notifier передаёт события циклов чат-боту через RabbitMQ.
// Реализует scheduler.Notifier.
type Notifier struct {
	publisher *Publisher
	chats     map[string]int64
}

// NewNotifier создаёт Notifier. chat_id каждого scope берётся из конфигурации.
func NewNotifier(publisher *Publisher, scopes []domain.Scope) *Notifier {
	chats := make(map[string]int64, len(scopes))
	for _, s := range scopes {
		chats[s.ID] = s.ChatID
	}
	return &Notifier{publisher: publisher, chats: chats}
}

// RosterOpened публикует roster.opened.
func (n *Notifier) RosterOpened(ctx context.Context, cycle *domain.Cycle) error {
	return n.publisher.PublishRosterOpened(ctx, n.chats[cycle.ScopeID], cycle)
}

// CycleCommitted публикует cycle.committed.
func (n *Notifier) CycleCommitted(ctx context.Context, cycle *domain.Cycle, groups []domain.Group) error {
	return n.publisher.PublishCycleCommitted(ctx, n.chats[cycle.ScopeID], cycle, groups)
}
