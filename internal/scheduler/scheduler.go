package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/randomcoffee/internal/domain"
	"github.com/shaiso/randomcoffee/internal/pairing"
	"github.com/shaiso/randomcoffee/internal/telemetry"
)

// CycleStore — хранилище циклов.
type CycleStore interface {
	// Latest возвращает последний цикл scope или (nil, nil).
	Latest(ctx context.Context, scopeID string) (*domain.Cycle, error)

	// Open создаёт цикл в COLLECTING. false — цикл уже существует.
	Open(ctx context.Context, cycle *domain.Cycle) (bool, error)

	// Commit атомарно фиксирует цикл, проверяя владение lease.
	Commit(ctx context.Context, commit *domain.CycleCommit) error

	ListUnnotified(ctx context.Context, limit int) ([]domain.Cycle, error)
	ListGroups(ctx context.Context, cycleID uuid.UUID) ([]domain.Group, error)
	MarkNotified(ctx context.Context, cycleID uuid.UUID, at time.Time) error
}

// RosterProvider — источник согласий участников.
type RosterProvider interface {
	CurrentOptIns(ctx context.Context, scopeID string, key domain.CycleKey) (domain.Roster, error)
}

// HistoryStore — история прошлых встреч.
type HistoryStore interface {
	PastPairings(ctx context.Context, scopeID string) ([]domain.Meeting, error)
}

// Lease — то, что Scheduler знает о владении lease.
// Реализуется *lease.Handle.
type Lease interface {
	Token() uuid.UUID
	Alive() bool
}

// Scheduler — конечный автомат циклов по всем scope.
//
// Для каждого scope за тик выполняется не более одного перехода:
//
//	IDLE → COLLECTING_OPTINS → PAIRING → COMMITTED → IDLE …
type Scheduler struct {
	scopes    []domain.Scope
	schedules map[string]*cycleSchedule
	cycles    CycleStore
	roster    RosterProvider
	history   HistoryStore
	notifier  Notifier
	engine    *pairing.Engine
	logger    *slog.Logger
	now       func() time.Time

	outboxBatch int

	mu        sync.Mutex
	inflight  map[string]bool
	firstSeen map[string]time.Time
}

// Config — конфигурация Scheduler.
type Config struct {
	Scopes   []domain.Scope
	Cycles   CycleStore
	Roster   RosterProvider
	History  HistoryStore
	Notifier Notifier       // опционально (default: LogNotifier)
	Engine   *pairing.Engine // опционально (default: pairing.NewEngine())
	Logger   *slog.Logger
	Now      func() time.Time

	// OutboxBatch — сколько неотправленных циклов переотправлять за тик (default: 50).
	OutboxBatch int
}

// New создаёт новый Scheduler. Возвращает ошибку, если cron-выражение
// какого-либо scope некорректно.
func New(cfg Config) (*Scheduler, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	schedules := make(map[string]*cycleSchedule, len(cfg.Scopes))
	for i := range cfg.Scopes {
		scope := &cfg.Scopes[i]
		cs, err := newCycleSchedule(scope)
		if err != nil {
			return nil, fmt.Errorf("scope %s: %w", scope.ID, err)
		}
		schedules[scope.ID] = cs
	}

	notifier := cfg.Notifier
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}

	engine := cfg.Engine
	if engine == nil {
		engine = pairing.NewEngine()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	outboxBatch := cfg.OutboxBatch
	if outboxBatch <= 0 {
		outboxBatch = 50
	}

	return &Scheduler{
		scopes:      cfg.Scopes,
		schedules:   schedules,
		cycles:      cfg.Cycles,
		roster:      cfg.Roster,
		history:     cfg.History,
		notifier:    notifier,
		engine:      engine,
		logger:      logger,
		now:         now,
		outboxBatch: outboxBatch,
		inflight:    make(map[string]bool),
		firstSeen:   make(map[string]time.Time),
	}, nil
}

// Tick выполняет один тик планировщика от имени владельца lease.
//
// 1. Переотправляет зафиксированные, но не отправленные циклы (outbox)
// 2. Для каждого scope выполняет не более одного перехода фазы
//
// Ошибка одного scope не блокирует остальные и не повторяется
// в пределах тика: неудачное уведомление уходит в outbox следующего тика.
// Потеря lease прерывает тик целиком.
func (s *Scheduler) Tick(ctx context.Context, h Lease) error {
	start := time.Now()
	defer func() {
		telemetry.TickDuration.Observe(time.Since(start).Seconds())
	}()

	var errs []error
	if err := s.flushOutbox(ctx, h); err != nil {
		if errors.Is(err, domain.ErrLeaseLost) {
			return err
		}
		s.log(ctx).Error("outbox flush failed", "error", err)
		errs = append(errs, err)
	}

	for i := range s.scopes {
		scope := &s.scopes[i]

		if !h.Alive() {
			return domain.ErrLeaseLost
		}

		if err := s.tickScope(ctx, scope, h); err != nil {
			if errors.Is(err, domain.ErrLeaseLost) {
				return err
			}
			telemetry.TickErrorsTotal.WithLabelValues(scope.ID).Inc()
			telemetry.WithScopeID(s.log(ctx), scope.ID).Error("scope tick failed", "error", err)
			errs = append(errs, fmt.Errorf("scope %s: %w", scope.ID, err))
		}
	}

	return errors.Join(errs...)
}

// tickScope выполняет один переход фазы для scope.
func (s *Scheduler) tickScope(ctx context.Context, scope *domain.Scope, h Lease) error {
	if !s.enter(scope.ID) {
		s.log(ctx).Debug("scope already in flight, skipping", "scope_id", scope.ID)
		return nil
	}
	defer s.leave(scope.ID)

	now := s.now()

	cycle, err := s.cycles.Latest(ctx, scope.ID)
	if err != nil {
		return fmt.Errorf("latest cycle: %w", err)
	}

	switch cycle.Phase(now) {
	case domain.PhaseIdle, domain.PhaseCommitted:
		return s.openWindow(ctx, scope, cycle, h, now)
	case domain.PhasePairing:
		return s.pair(ctx, scope, cycle, h)
	default:
		// COLLECTING_OPTINS: ждём закрытия окна
		return nil
	}
}

// openWindow открывает новое окно сбора согласий, если poll cron
// сработал после закрытия предыдущего цикла.
func (s *Scheduler) openWindow(ctx context.Context, scope *domain.Scope, last *domain.Cycle, h Lease, now time.Time) error {
	anchor := s.anchor(scope.ID, now)
	if last != nil {
		// Poll может сработать ровно в момент закрытия предыдущего цикла
		anchor = last.ClosesAt.Add(-time.Nanosecond)
	}

	w, ok := s.schedules[scope.ID].latestWindow(anchor, now)
	if !ok {
		return nil
	}
	if !now.Before(w.ClosesAt) {
		// Окно пропущено целиком (процесс не работал) — ждём следующего
		s.log(ctx).Debug("missed window skipped",
			"scope_id", scope.ID,
			"opens_at", w.OpensAt,
			"closes_at", w.ClosesAt,
		)
		return nil
	}

	if !h.Alive() {
		return domain.ErrLeaseLost
	}

	cycle := domain.NewCycle(scope.ID, w.OpensAt, w.ClosesAt)
	cycle.CreatedAt = now

	created, err := s.cycles.Open(ctx, cycle)
	if err != nil {
		return fmt.Errorf("open cycle: %w", err)
	}
	if !created {
		return nil
	}

	telemetry.CyclesOpenedTotal.WithLabelValues(scope.ID).Inc()

	logger := telemetry.WithCycleKey(telemetry.WithScopeID(s.log(ctx), scope.ID), cycle.Key.String())
	logger.Info("opt-in window opened",
		"opens_at", cycle.OpensAt,
		"closes_at", cycle.ClosesAt,
	)

	if err := s.notifier.RosterOpened(ctx, cycle); err != nil {
		telemetry.NotificationsTotal.WithLabelValues(eventRosterOpened, telemetry.ResultError).Inc()
		logger.Warn("failed to notify roster opened", "error", err)
		return nil
	}
	telemetry.NotificationsTotal.WithLabelValues(eventRosterOpened, resultSent).Inc()
	return nil
}

// pair вычисляет и атомарно фиксирует пары закрытого цикла.
func (s *Scheduler) pair(ctx context.Context, scope *domain.Scope, cycle *domain.Cycle, h Lease) error {
	logger := telemetry.WithCycleKey(telemetry.WithScopeID(s.log(ctx), scope.ID), cycle.Key.String())

	// 1. Чтения lease не требуют
	roster, err := s.roster.CurrentOptIns(ctx, scope.ID, cycle.Key)
	if err != nil {
		return fmt.Errorf("current optins: %w", err)
	}
	meetings, err := s.history.PastPairings(ctx, scope.ID)
	if err != nil {
		return fmt.Errorf("past pairings: %w", err)
	}

	// 2. Вычисляем и проверяем результат
	result, err := s.engine.Compute(roster, pairing.NewHistory(meetings))
	if err != nil {
		logger.Error("pairing rejected", "error", err)
		return err
	}
	if err := pairing.Validate(roster, result.Groups); err != nil {
		logger.Error("pairing rejected", "error", err)
		return err
	}

	// 3. Commit только от имени живой lease
	if !h.Alive() {
		return domain.ErrLeaseLost
	}

	commit := &domain.CycleCommit{
		Cycle:       cycle,
		Groups:      result.Groups,
		OwnerToken:  h.Token(),
		CommittedAt: s.now(),
	}
	if err := s.cycles.Commit(ctx, commit); err != nil {
		switch {
		case errors.Is(err, domain.ErrCycleAlreadyCommitted):
			logger.Info("cycle already committed, skipping")
			return nil
		case errors.Is(err, domain.ErrLeaseLost):
			logger.Warn("lease lost before commit, pairing abandoned")
			return err
		default:
			return fmt.Errorf("commit cycle: %w", err)
		}
	}

	outcome := outcomePaired
	if result.Insufficient {
		outcome = outcomeInsufficient
	}
	telemetry.CyclesCommittedTotal.WithLabelValues(scope.ID, outcome).Inc()
	telemetry.CycleGroups.WithLabelValues(scope.ID).Set(float64(len(result.Groups)))
	telemetry.PairingRepeats.Observe(float64(result.Repeats))

	logger.Info("cycle committed",
		"participants", len(roster),
		"groups", len(result.Groups),
		"repeats", result.Repeats,
		"insufficient", result.Insufficient,
	)

	// 4. Уведомление. При ошибке цикл остаётся в outbox
	s.notifyCommitted(ctx, cycle, result.Groups)
	return nil
}

// flushOutbox переотправляет зафиксированные циклы без notified_at.
func (s *Scheduler) flushOutbox(ctx context.Context, h Lease) error {
	pending, err := s.cycles.ListUnnotified(ctx, s.outboxBatch)
	if err != nil {
		return fmt.Errorf("list unnotified: %w", err)
	}

	for i := range pending {
		cycle := &pending[i]

		if !h.Alive() {
			return domain.ErrLeaseLost
		}

		groups, err := s.cycles.ListGroups(ctx, cycle.ID)
		if err != nil {
			return fmt.Errorf("list groups: %w", err)
		}

		s.log(ctx).Info("re-sending committed cycle",
			"scope_id", cycle.ScopeID,
			"cycle_key", cycle.Key,
		)
		s.notifyCommitted(ctx, cycle, groups)
	}
	return nil
}

// notifyCommitted передаёт результат в уведомления и отмечает цикл.
func (s *Scheduler) notifyCommitted(ctx context.Context, cycle *domain.Cycle, groups []domain.Group) {
	logger := telemetry.WithCycleKey(telemetry.WithScopeID(s.log(ctx), cycle.ScopeID), cycle.Key.String())

	if groups == nil {
		groups = []domain.Group{}
	}
	if err := s.notifier.CycleCommitted(ctx, cycle, groups); err != nil {
		telemetry.NotificationsTotal.WithLabelValues(eventCycleCommitted, telemetry.ResultError).Inc()
		logger.Warn("failed to notify cycle committed, will retry", "error", err)
		return
	}
	telemetry.NotificationsTotal.WithLabelValues(eventCycleCommitted, resultSent).Inc()

	if err := s.cycles.MarkNotified(ctx, cycle.ID, s.now()); err != nil {
		// Повторная отправка возможна: получатели дедуплицируют по message id
		logger.Warn("failed to mark cycle notified", "error", err)
	}
}

// --- Helpers ---

// Значения label для метрик.
const (
	eventRosterOpened   = "roster_opened"
	eventCycleCommitted = "cycle_committed"
	resultSent          = "sent"

	outcomePaired       = "paired"
	outcomeInsufficient = "insufficient"
)

// enter помечает scope занятым. false — scope уже обрабатывается.
func (s *Scheduler) enter(scopeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[scopeID] {
		return false
	}
	s.inflight[scopeID] = true
	return true
}

func (s *Scheduler) leave(scopeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, scopeID)
}

// anchor — время, после которого ищется первое окно scope без циклов.
// Первое окно открывается только после старта: уже идущее окно
// не подхватывается.
func (s *Scheduler) anchor(scopeID string, now time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.firstSeen[scopeID]
	if !ok {
		t = now
		s.firstSeen[scopeID] = t
	}
	return t
}

// log возвращает логгер тика: с owner_token, если его положил Runner.
func (s *Scheduler) log(ctx context.Context) *slog.Logger {
	return telemetry.FromContext(ctx, s.logger)
}
