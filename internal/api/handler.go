package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/randomcoffee/internal/domain"
	"github.com/shaiso/randomcoffee/internal/pairing"
	"github.com/shaiso/randomcoffee/internal/repo"
)

// LeaseReader читает текущую запись lease.
type LeaseReader interface {
	Current(ctx context.Context) (*domain.Lease, error)
}

// CycleReader читает циклы и их группы.
type CycleReader interface {
	Latest(ctx context.Context, scopeID string) (*domain.Cycle, error)
	List(ctx context.Context, filter repo.CycleFilter) ([]domain.Cycle, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Cycle, error)
	ListGroups(ctx context.Context, cycleID uuid.UUID) ([]domain.Group, error)
}

// RosterReader возвращает участников, согласившихся на цикл.
type RosterReader interface {
	CurrentOptIns(ctx context.Context, scopeID string, key domain.CycleKey) (domain.Roster, error)
}

// HistoryReader возвращает прошлые встречи scope.
type HistoryReader interface {
	PastPairings(ctx context.Context, scopeID string) ([]domain.Meeting, error)
}

// Handler — главный обработчик API с зависимостями.
//
// API только читает: ни один обработчик не требует lease и ничего
// не записывает. Preview считает распределение, но не фиксирует его.
type Handler struct {
	leases  LeaseReader
	cycles  CycleReader
	roster  RosterReader
	history HistoryReader
	scopes  []domain.Scope
	engine  *pairing.Engine
	logger  *slog.Logger
	now     func() time.Time
}

// Config — конфигурация для создания Handler.
type Config struct {
	Leases  LeaseReader
	Cycles  CycleReader
	Roster  RosterReader
	History HistoryReader

	// Scopes — сконфигурированные scope. API не знает о других.
	Scopes []domain.Scope

	// Engine — алгоритм для preview. По умолчанию pairing.NewEngine().
	Engine *pairing.Engine

	Logger *slog.Logger

	// Now — источник времени (для тестов). По умолчанию time.Now.
	Now func() time.Time
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Engine == nil {
		cfg.Engine = pairing.NewEngine()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Handler{
		leases:  cfg.Leases,
		cycles:  cfg.Cycles,
		roster:  cfg.Roster,
		history: cfg.History,
		scopes:  cfg.Scopes,
		engine:  cfg.Engine,
		logger:  cfg.Logger,
		now:     cfg.Now,
	}
}

// scope ищет сконфигурированный scope по id.
func (h *Handler) scope(id string) (*domain.Scope, bool) {
	for i := range h.scopes {
		if h.scopes[i].ID == id {
			return &h.scopes[i], true
		}
	}
	return nil, false
}
