package domain

import (
	"fmt"
	"slices"
	"time"
)

// ParticipantID — стабильный идентификатор участника (id пользователя в чате).
type ParticipantID int64

// Participant — участник random coffee.
//
// Профилем владеет внешняя подсистема (регистрация, настройки).
// Здесь участник — неизменяемое значение.
type Participant struct {
	// ID — идентификатор участника, стабилен между циклами.
	ID ParticipantID `json:"id"`

	// DisplayName — как показывать участника в уведомлениях.
	DisplayName string `json:"display_name,omitempty"`
}

// String возвращает отображаемое имя или ID, если имени нет.
func (p Participant) String() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return fmt.Sprintf("#%d", p.ID)
}

// Roster — участники, согласившиеся на встречу в одном цикле одного scope.
//
// Инвариант: без дубликатов. После передачи в Pairing Engine не меняется.
type Roster []Participant

// NewRoster создаёт Roster и проверяет отсутствие дубликатов.
func NewRoster(participants ...Participant) (Roster, error) {
	seen := make(map[ParticipantID]struct{}, len(participants))
	for _, p := range participants {
		if _, ok := seen[p.ID]; ok {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateParticipant, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return Roster(slices.Clone(participants)), nil
}

// IDs возвращает идентификаторы участников в порядке Roster.
func (r Roster) IDs() []ParticipantID {
	ids := make([]ParticipantID, len(r))
	for i, p := range r {
		ids[i] = p.ID
	}
	return ids
}

// Pair — неупорядоченная пара участников.
//
// Всегда нормализована: A < B. Поэтому (A,B) и (B,A) — один и тот же ключ.
type Pair struct {
	A ParticipantID `json:"a"`
	B ParticipantID `json:"b"`
}

// NewPair создаёт нормализованную пару.
func NewPair(x, y ParticipantID) Pair {
	if x > y {
		x, y = y, x
	}
	return Pair{A: x, B: y}
}

// Contains возвращает true, если участник входит в пару.
func (p Pair) Contains(id ParticipantID) bool {
	return p.A == id || p.B == id
}

// Meeting — одна запись истории: два участника встретились в цикле.
//
// История только дописывается: строки добавляются при commit цикла
// и больше не меняются.
type Meeting struct {
	ScopeID  string    `json:"scope_id"`
	CycleKey CycleKey  `json:"cycle_key"`
	Pair     Pair      `json:"pair"`
	At       time.Time `json:"at"`
}
