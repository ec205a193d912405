package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CycleKey — естественный ключ идемпотентности цикла.
// Формат: "{scope_id}_{opens_at_unix}".
type CycleKey string

// NewCycleKey строит ключ цикла из scope и времени открытия окна.
func NewCycleKey(scopeID string, opensAt time.Time) CycleKey {
	return CycleKey(fmt.Sprintf("%s_%d", scopeID, opensAt.Unix()))
}

// String возвращает строковое представление ключа.
func (k CycleKey) String() string {
	return string(k)
}

// Split разбирает ключ на scope и время открытия окна.
// Scope может сам содержать "_", поэтому отделяется последний сегмент.
func (k CycleKey) Split() (scopeID string, opensAt time.Time, ok bool) {
	i := strings.LastIndexByte(string(k), '_')
	if i <= 0 {
		return "", time.Time{}, false
	}
	unix, err := strconv.ParseInt(string(k[i+1:]), 10, 64)
	if err != nil {
		return "", time.Time{}, false
	}
	return string(k[:i]), time.Unix(unix, 0).UTC(), true
}

// Cycle — один период планирования (обычно неделя) в рамках scope.
//
// Жизненный цикл:
//
//	(нет записи) → COLLECTING → COMMITTED
//
// Пока цикл в COLLECTING, внешняя подсистема собирает согласия участников.
// Когда наступает ClosesAt, владелец lease вычисляет пары и фиксирует цикл.
type Cycle struct {
	// ID — уникальный идентификатор цикла.
	ID uuid.UUID `json:"id"`

	// ScopeID — чат/сообщество, к которому относится цикл.
	ScopeID string `json:"scope_id"`

	// Key — ключ идемпотентности (уникален в паре с ScopeID).
	Key CycleKey `json:"cycle_key"`

	// OpensAt — когда открылось окно сбора согласий.
	OpensAt time.Time `json:"opens_at"`

	// ClosesAt — когда окно закрывается и запускается распределение.
	ClosesAt time.Time `json:"closes_at"`

	// Status — сохранённый статус цикла.
	Status CycleStatus `json:"status"`

	// GroupCount — количество групп после commit.
	GroupCount int `json:"group_count"`

	// Insufficient — true, если участников было меньше двух.
	Insufficient bool `json:"insufficient"`

	// CommittedAt — время commit. Nil, пока цикл не зафиксирован.
	CommittedAt *time.Time `json:"committed_at,omitempty"`

	// NotifiedAt — когда результат передан в уведомления.
	// Nil означает, что уведомление ещё предстоит отправить.
	NotifiedAt *time.Time `json:"notified_at,omitempty"`

	// CreatedAt — время создания записи.
	CreatedAt time.Time `json:"created_at"`
}

// NewCycle создаёт цикл в статусе COLLECTING.
func NewCycle(scopeID string, opensAt, closesAt time.Time) *Cycle {
	return &Cycle{
		ID:        uuid.New(),
		ScopeID:   scopeID,
		Key:       NewCycleKey(scopeID, opensAt),
		OpensAt:   opensAt,
		ClosesAt:  closesAt,
		Status:    CycleStatusCollecting,
		CreatedAt: time.Now(),
	}
}

// IsCommitted возвращает true для зафиксированного цикла.
func (c *Cycle) IsCommitted() bool {
	return c.Status == CycleStatusCommitted
}

// NeedsNotification возвращает true, если цикл зафиксирован,
// но результат ещё не передан в уведомления.
func (c *Cycle) NeedsNotification() bool {
	return c.IsCommitted() && c.NotifiedAt == nil
}

// Phase вычисляет фазу scope относительно этого цикла на момент now.
func (c *Cycle) Phase(now time.Time) CyclePhase {
	switch {
	case c == nil:
		return PhaseIdle
	case c.IsCommitted():
		return PhaseCommitted
	case now.Before(c.ClosesAt):
		return PhaseCollectingOptIns
	default:
		return PhasePairing
	}
}

// CycleCommit — всё, что записывается одной транзакцией при commit цикла.
type CycleCommit struct {
	Cycle  *Cycle
	Groups []Group

	// OwnerToken — токен lease, от имени которого выполняется commit.
	// Транзакция проверяет, что lease всё ещё принадлежит этому токену.
	OwnerToken uuid.UUID

	CommittedAt time.Time
}

// Meetings разворачивает группы в записи истории.
func (c *CycleCommit) Meetings() []Meeting {
	var meetings []Meeting
	for _, g := range c.Groups {
		for _, p := range g.Pairs() {
			meetings = append(meetings, Meeting{
				ScopeID:  c.Cycle.ScopeID,
				CycleKey: c.Cycle.Key,
				Pair:     p,
				At:       c.CommittedAt,
			})
		}
	}
	return meetings
}
