package lease

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/randomcoffee/internal/domain"
)

// errReleased — причина отмены handle при штатном освобождении.
var errReleased = errors.New("lease released")

// Handle — владение lease, полученное через Manager.TryAcquire.
//
// Handle отслеживает срок действия локально: ExpiresAt считается от
// момента отправки запроса, а не от ответа БД, поэтому локальный срок
// никогда не переживает серверную запись.
type Handle struct {
	token      uuid.UUID
	acquiredAt time.Time
	now        func() time.Time

	mu        sync.RWMutex
	expiresAt time.Time

	ctx    context.Context
	cancel context.CancelCauseFunc
}

// newHandle создаёт Handle, контекст которого наследует parent.
func newHandle(parent context.Context, token uuid.UUID, acquiredAt, expiresAt time.Time, now func() time.Time) *Handle {
	ctx, cancel := context.WithCancelCause(parent)
	return &Handle{
		token:      token,
		acquiredAt: acquiredAt,
		expiresAt:  expiresAt,
		now:        now,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Token возвращает owner token.
func (h *Handle) Token() uuid.UUID {
	return h.token
}

// AcquiredAt возвращает время захвата.
func (h *Handle) AcquiredAt() time.Time {
	return h.acquiredAt
}

// ExpiresAt возвращает локально отслеживаемый срок действия.
func (h *Handle) ExpiresAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.expiresAt
}

// Context возвращает контекст, который отменяется при потере lease.
func (h *Handle) Context() context.Context {
	return h.ctx
}

// Done — канал, закрывающийся при потере lease.
func (h *Handle) Done() <-chan struct{} {
	return h.ctx.Done()
}

// Alive возвращает true, если lease не потеряна и не истекла локально.
func (h *Handle) Alive() bool {
	if h == nil || h.ctx.Err() != nil {
		return false
	}
	return h.now().Before(h.ExpiresAt())
}

// Err возвращает причину потери lease или nil, если lease жива.
func (h *Handle) Err() error {
	if h == nil {
		return domain.ErrLeaseLost
	}
	if err := context.Cause(h.ctx); err != nil {
		return err
	}
	if !h.now().Before(h.ExpiresAt()) {
		return domain.ErrLeaseLost
	}
	return nil
}

// extend продлевает локальный срок действия.
func (h *Handle) extend(until time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if until.After(h.expiresAt) {
		h.expiresAt = until
	}
}

// lose помечает lease потерянной.
func (h *Handle) lose(cause error) {
	h.cancel(cause)
}
