package domain

import (
	"time"

	"github.com/google/uuid"
)

// Lease — единственная запись, определяющая, какой процесс
// имеет право выполнять изменяющую работу над циклами.
//
// Инвариант: в любой момент существует не более одной неистёкшей Lease.
// Запись продлевается heartbeat'ом владельца и удаляется при graceful
// shutdown. После падения процесса она просто истекает.
type Lease struct {
	// OwnerToken — случайный токен процесса-владельца.
	OwnerToken uuid.UUID `json:"owner_token"`

	// AcquiredAt — когда lease была захвачена этим владельцем.
	AcquiredAt time.Time `json:"acquired_at"`

	// ExpiresAt — после этого момента lease может захватить другой процесс.
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired возвращает true, если lease истекла к моменту now.
func (l *Lease) IsExpired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// Remaining возвращает оставшееся время жизни lease.
func (l *Lease) Remaining(now time.Time) time.Duration {
	if l.IsExpired(now) {
		return 0
	}
	return l.ExpiresAt.Sub(now)
}
