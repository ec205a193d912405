package lease

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/randomcoffee/internal/domain"
	"github.com/shaiso/randomcoffee/internal/telemetry"
)

// Default configuration values.
const (
	defaultTTL              = 30 * time.Second
	defaultAcquireTimeout   = 5 * time.Second
	defaultMaxRenewAttempts = 3
)

// Store — хранилище единственной записи lease.
//
// TryAcquire должен быть одной атомарной операцией хранилища
// (условная запись или транзакция), а не чтением с последующей записью.
type Store interface {
	// TryAcquire захватывает lease, если записи нет или она истекла.
	// Возвращает domain.ErrLeaseDenied, если lease жива у другого владельца.
	TryAcquire(ctx context.Context, token uuid.UUID, ttl time.Duration) (*domain.Lease, error)

	// Renew продлевает lease владельца token.
	// Возвращает domain.ErrLeaseLost, если token больше не владелец.
	Renew(ctx context.Context, token uuid.UUID, ttl time.Duration) (*domain.Lease, error)

	// Release удаляет запись владельца token (если она ещё его).
	Release(ctx context.Context, token uuid.UUID) error
}

// Manager — захват, продление и освобождение lease.
type Manager struct {
	store            Store
	ttl              time.Duration
	renewInterval    time.Duration
	acquireTimeout   time.Duration
	maxRenewAttempts int
	retryDelay       time.Duration
	now              func() time.Time
	logger           *slog.Logger
}

// Config — конфигурация Manager.
type Config struct {
	Store Store

	// TTL — время жизни lease без продления (default: 30s).
	TTL time.Duration

	// RenewInterval — период heartbeat (default: TTL/3). Должен быть < TTL.
	RenewInterval time.Duration

	// AcquireTimeout — таймаут одного обращения к хранилищу (default: 5s).
	AcquireTimeout time.Duration

	// MaxRenewAttempts — попыток продления за один heartbeat (default: 3).
	MaxRenewAttempts int

	// RetryDelay — пауза между попытками продления
	// (default: RenewInterval / (MaxRenewAttempts+1)).
	RetryDelay time.Duration

	// Now — источник времени (для тестов).
	Now func() time.Time

	Logger *slog.Logger
}

// NewManager создаёт новый Manager.
func NewManager(cfg Config) *Manager {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	renewInterval := cfg.RenewInterval
	if renewInterval <= 0 || renewInterval >= ttl {
		renewInterval = ttl / 3
	}

	acquireTimeout := cfg.AcquireTimeout
	if acquireTimeout <= 0 {
		acquireTimeout = defaultAcquireTimeout
	}

	maxAttempts := cfg.MaxRenewAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxRenewAttempts
	}

	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = renewInterval / time.Duration(maxAttempts+1)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		store:            cfg.Store,
		ttl:              ttl,
		renewInterval:    renewInterval,
		acquireTimeout:   acquireTimeout,
		maxRenewAttempts: maxAttempts,
		retryDelay:       retryDelay,
		now:              now,
		logger:           logger,
	}
}

// TTL возвращает время жизни lease.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// RenewInterval возвращает период heartbeat.
func (m *Manager) RenewInterval() time.Duration {
	return m.renewInterval
}

// TryAcquire пытается захватить lease со свежим owner token.
//
// Возвращает domain.ErrLeaseDenied, если lease жива у другого процесса.
// При недоступности хранилища возвращает ошибку: процесс не становится
// владельцем (fail closed).
func (m *Manager) TryAcquire(ctx context.Context) (*Handle, error) {
	token := uuid.New()
	start := m.now()

	actx, cancel := context.WithTimeout(ctx, m.acquireTimeout)
	defer cancel()

	l, err := m.store.TryAcquire(actx, token, m.ttl)
	if err != nil {
		if errors.Is(err, domain.ErrLeaseDenied) {
			telemetry.LeaseAcquireTotal.WithLabelValues(telemetry.ResultDenied).Inc()
			return nil, err
		}
		telemetry.LeaseAcquireTotal.WithLabelValues(telemetry.ResultError).Inc()
		return nil, fmt.Errorf("acquire lease: %w", err)
	}

	h := newHandle(ctx, token, start, start.Add(m.ttl), m.now)

	telemetry.LeaseAcquireTotal.WithLabelValues(telemetry.ResultAcquired).Inc()
	telemetry.LeaseHeld.Set(1)

	m.logger.Info("lease acquired",
		"owner_token", token,
		"expires_at", l.ExpiresAt,
		"ttl", m.ttl,
	)

	return h, nil
}

// Renew продлевает lease.
// Возвращает domain.ErrLeaseLost, если lease перешла к другому владельцу.
func (m *Manager) Renew(ctx context.Context, h *Handle) error {
	if err := context.Cause(h.ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrLeaseLost, err)
	}

	start := m.now()

	rctx, cancel := context.WithTimeout(ctx, m.acquireTimeout)
	defer cancel()

	if _, err := m.store.Renew(rctx, h.token, m.ttl); err != nil {
		if errors.Is(err, domain.ErrLeaseLost) {
			telemetry.LeaseRenewTotal.WithLabelValues(telemetry.ResultLost).Inc()
			return err
		}
		telemetry.LeaseRenewTotal.WithLabelValues(telemetry.ResultError).Inc()
		return fmt.Errorf("renew lease: %w", err)
	}

	h.extend(start.Add(m.ttl))
	telemetry.LeaseRenewTotal.WithLabelValues(telemetry.ResultRenewed).Inc()

	m.logger.Debug("lease renewed",
		"owner_token", h.token,
		"expires_at", h.ExpiresAt(),
	)
	return nil
}

// Release освобождает lease (best-effort) и помечает handle неактивным.
// Для корректности не обязателен: истечение TTL покрывает падение процесса.
func (m *Manager) Release(ctx context.Context, h *Handle) error {
	if h == nil {
		return nil
	}
	h.lose(errReleased)
	telemetry.LeaseHeld.Set(0)

	rctx, cancel := context.WithTimeout(ctx, m.acquireTimeout)
	defer cancel()

	if err := m.store.Release(rctx, h.token); err != nil {
		return fmt.Errorf("release lease: %w", err)
	}

	m.logger.Info("lease released", "owner_token", h.token)
	return nil
}

// Keep продлевает lease каждые RenewInterval, пока ctx жив и lease не потеряна.
//
// Если продление не удалось за MaxRenewAttempts попыток (или lease перешла
// к другому владельцу), handle помечается потерянным, h.Context()
// отменяется, и Keep возвращает причину.
func (m *Manager) Keep(ctx context.Context, h *Handle) error {
	ticker := time.NewTicker(m.renewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-h.Done():
			return h.Err()

		case <-ticker.C:
			if err := m.renewWithRetry(ctx, h); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				m.relinquish(h, err)
				return err
			}
		}
	}
}

// renewWithRetry делает до MaxRenewAttempts попыток продления.
// Повторы не выходят за локальный срок действия lease.
func (m *Manager) renewWithRetry(ctx context.Context, h *Handle) error {
	var lastErr error

	for attempt := 1; attempt <= m.maxRenewAttempts; attempt++ {
		err := m.Renew(ctx, h)
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrLeaseLost) {
			return err
		}
		lastErr = err

		m.logger.Warn("lease renewal failed",
			"owner_token", h.token,
			"attempt", attempt,
			"max_attempts", m.maxRenewAttempts,
			"error", err,
		)

		if attempt == m.maxRenewAttempts {
			break
		}
		if !m.now().Add(m.retryDelay).Before(h.ExpiresAt()) {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.retryDelay):
		}
	}

	return fmt.Errorf("%w: renewal failed: %w", domain.ErrLeaseLost, lastErr)
}

// relinquish добровольно отказывается от lease.
func (m *Manager) relinquish(h *Handle, cause error) {
	h.lose(cause)
	telemetry.LeaseHeld.Set(0)

	m.logger.Error("lease relinquished",
		"owner_token", h.token,
		"error", cause,
	)

	// Освобождаем запись, если хранилище ещё отвечает:
	// другой процесс сможет захватить lease, не дожидаясь TTL.
	ctx, cancel := context.WithTimeout(context.Background(), m.acquireTimeout)
	defer cancel()
	if err := m.store.Release(ctx, h.token); err != nil {
		m.logger.Debug("release after relinquish failed", "error", err)
	}
}
