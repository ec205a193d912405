package scheduler

import (
	"context"
	"log/slog"

	"github.com/shaiso/randomcoffee/internal/domain"
)

// Notifier — передача результатов во внешнюю подсистему уведомлений.
type Notifier interface {
	// RosterOpened — окно сбора согласий открыто (бот публикует опрос).
	RosterOpened(ctx context.Context, cycle *domain.Cycle) error

	// CycleCommitted — цикл зафиксирован. groups пустой, если участников
	// было недостаточно.
	CycleCommitted(ctx context.Context, cycle *domain.Cycle, groups []domain.Group) error
}

// LogNotifier пишет события в лог. Используется без RabbitMQ
// (polling-only mode): внешняя подсистема читает результаты из БД.
type LogNotifier struct {
	Logger *slog.Logger
}

// RosterOpened реализует Notifier.
func (n LogNotifier) RosterOpened(_ context.Context, cycle *domain.Cycle) error {
	n.Logger.Info("roster opened",
		"scope_id", cycle.ScopeID,
		"cycle_key", cycle.Key,
		"closes_at", cycle.ClosesAt,
	)
	return nil
}

// CycleCommitted реализует Notifier.
func (n LogNotifier) CycleCommitted(_ context.Context, cycle *domain.Cycle, groups []domain.Group) error {
	for _, g := range groups {
		n.Logger.Info("group formed",
			"scope_id", cycle.ScopeID,
			"cycle_key", cycle.Key,
			"group", g.String(),
		)
	}
	n.Logger.Info("cycle committed",
		"scope_id", cycle.ScopeID,
		"cycle_key", cycle.Key,
		"groups", len(groups),
		"insufficient", cycle.Insufficient,
	)
	return nil
}
