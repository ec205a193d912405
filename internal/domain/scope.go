package domain

import "time"

// Scope — граница изоляции (один чат или сообщество).
// Roster и история ведутся в каждом scope независимо.
type Scope struct {
	// ID — стабильный идентификатор scope, входит в CycleKey.
	ID string `json:"id"`

	// ChatID — id чата, куда внешняя подсистема отправляет опрос и пары.
	ChatID int64 `json:"chat_id"`

	// Name — человекочитаемое имя.
	Name string `json:"name,omitempty"`

	// PollCron — когда открывается окно сбора согласий.
	// Пример: "0 10 * * 1" — понедельник 10:00.
	PollCron string `json:"poll_cron"`

	// PairingCron — когда окно закрывается и запускается распределение.
	// Пример: "0 17 * * 1" — понедельник 17:00.
	PairingCron string `json:"pairing_cron"`

	// Timezone — часовой пояс для cron-выражений. По умолчанию: "UTC".
	Timezone string `json:"timezone"`
}

// Location возвращает часовой пояс scope (UTC, если он некорректный).
func (s *Scope) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
