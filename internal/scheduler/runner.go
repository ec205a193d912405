package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/shaiso/randomcoffee/internal/domain"
	"github.com/shaiso/randomcoffee/internal/lease"
	"github.com/shaiso/randomcoffee/internal/telemetry"
)

// Runner — цикл процесса: захват lease, heartbeat и тики Scheduler.
type Runner struct {
	leases    *lease.Manager
	scheduler *Scheduler
	interval  time.Duration
	logger    *slog.Logger

	holding atomic.Bool
}

// RunnerConfig — конфигурация Runner.
type RunnerConfig struct {
	Leases       *lease.Manager
	Scheduler    *Scheduler
	TickInterval time.Duration // default: 1s
	Logger       *slog.Logger
}

// NewRunner создаёт новый Runner.
func NewRunner(cfg RunnerConfig) *Runner {
	interval := cfg.TickInterval
	if interval <= 0 {
		interval = time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		leases:    cfg.Leases,
		scheduler: cfg.Scheduler,
		interval:  interval,
		logger:    logger,
	}
}

// Holding возвращает true, пока процесс владеет lease.
func (r *Runner) Holding() bool {
	return r.holding.Load()
}

// Run крутит тики до отмены ctx.
//
// Без lease каждый тик пытается её захватить; занятая lease — обычная
// ситуация (standby). С lease запускается heartbeat и тики Scheduler.
// Потерянная lease отбрасывается, захват повторяется на следующем тике.
// При остановке lease освобождается.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	var held *heldLease
	defer func() {
		if held != nil {
			r.drop(held)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("runner stopped")
			return nil

		case <-ticker.C:
			if held != nil && !held.h.Alive() {
				r.logger.Warn("lease lost, standing by",
					"owner_token", held.h.Token(),
					"error", held.h.Err(),
				)
				r.drop(held)
				held = nil
			}

			if held == nil {
				h, err := r.leases.TryAcquire(ctx)
				if err != nil {
					if errors.Is(err, domain.ErrLeaseDenied) {
						r.logger.Debug("lease held by another instance")
					} else {
						r.logger.Error("lease acquire failed", "error", err)
					}
					continue
				}
				held = r.keep(ctx, h)
			}

			if err := r.scheduler.Tick(held.ctx, held.h); err != nil {
				if errors.Is(err, domain.ErrLeaseLost) {
					r.logger.Warn("tick aborted: lease lost")
					continue
				}
				r.logger.Error("scheduler tick failed", "error", err)
			}
		}
	}
}

// heldLease — lease и её heartbeat.
type heldLease struct {
	h    *lease.Handle
	done chan struct{}

	// ctx — контекст тиков: отменяется при потере lease и несёт
	// логгер с owner_token.
	ctx context.Context
}

// keep запускает heartbeat для только что захваченной lease.
func (r *Runner) keep(ctx context.Context, h *lease.Handle) *heldLease {
	r.holding.Store(true)

	logger := telemetry.WithOwnerToken(r.logger, h.Token().String())
	held := &heldLease{
		h:    h,
		done: make(chan struct{}),
		ctx:  telemetry.WithLogger(h.Context(), logger),
	}
	go func() {
		defer close(held.done)
		if err := r.leases.Keep(ctx, h); err != nil && ctx.Err() == nil {
			r.logger.Error("lease heartbeat stopped", "error", err)
		}
	}()
	return held
}

// drop освобождает lease (best-effort) и дожидается остановки heartbeat.
func (r *Runner) drop(held *heldLease) {
	releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.leases.Release(releaseCtx, held.h); err != nil {
		r.logger.Warn("failed to release lease", "error", err)
	}
	<-held.done
	r.holding.Store(false)
}
