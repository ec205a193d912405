package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/randomcoffee/internal/domain"
)

// CycleRepo — репозиторий для работы с cycles и cycle_groups.
type CycleRepo struct {
	pool *pgxpool.Pool
}

// NewCycleRepo создаёт новый CycleRepo.
func NewCycleRepo(pool *pgxpool.Pool) *CycleRepo {
	return &CycleRepo{pool: pool}
}

const cycleColumns = `
	id, scope_id, cycle_key, opens_at, closes_at, status, group_count,
	insufficient, committed_at, notified_at, created_at
`

// Open создаёт цикл в статусе COLLECTING.
// Возвращает false, если цикл с таким ключом уже существует.
func (r *CycleRepo) Open(ctx context.Context, cycle *domain.Cycle) (bool, error) {
	query := `
		INSERT INTO cycles (id, scope_id, cycle_key, opens_at, closes_at, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (scope_id, cycle_key) DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query,
		cycle.ID,
		cycle.ScopeID,
		cycle.Key,
		cycle.OpensAt,
		cycle.ClosesAt,
		domain.CycleStatusCollecting,
		cycle.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert cycle: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// GetByID возвращает цикл по ID.
func (r *CycleRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Cycle, error) {
	query := `SELECT ` + cycleColumns + ` FROM cycles WHERE id = $1`
	return scanCycle(r.pool.QueryRow(ctx, query, id))
}

// Latest возвращает последний по времени открытия цикл scope.
// Если циклов ещё не было, возвращает (nil, nil).
func (r *CycleRepo) Latest(ctx context.Context, scopeID string) (*domain.Cycle, error) {
	query := `
		SELECT ` + cycleColumns + `
		FROM cycles
		WHERE scope_id = $1
		ORDER BY opens_at DESC
		LIMIT 1
	`
	cycle, err := scanCycle(r.pool.QueryRow(ctx, query, scopeID))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return cycle, err
}

// List возвращает циклы с фильтрацией, новые первыми.
func (r *CycleRepo) List(ctx context.Context, filter CycleFilter) ([]domain.Cycle, error) {
	query := `
		SELECT ` + cycleColumns + `
		FROM cycles
		WHERE ($1::text IS NULL OR scope_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY opens_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(filter.ScopeID),
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list cycles: %w", err)
	}
	defer rows.Close()

	var cycles []domain.Cycle
	for rows.Next() {
		cycle, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, *cycle)
	}
	return cycles, rows.Err()
}

// ListUnnotified возвращает зафиксированные циклы, результат которых
// ещё не передан в уведомления (outbox).
func (r *CycleRepo) ListUnnotified(ctx context.Context, limit int) ([]domain.Cycle, error) {
	query := `
		SELECT ` + cycleColumns + `
		FROM cycles
		WHERE status = 'COMMITTED' AND notified_at IS NULL
		ORDER BY committed_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list unnotified cycles: %w", err)
	}
	defer rows.Close()

	var cycles []domain.Cycle
	for rows.Next() {
		cycle, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, *cycle)
	}
	return cycles, rows.Err()
}

// ListGroups возвращает группы цикла в порядке вычисления.
func (r *CycleRepo) ListGroups(ctx context.Context, cycleID uuid.UUID) ([]domain.Group, error) {
	query := `
		SELECT members
		FROM cycle_groups
		WHERE cycle_id = $1
		ORDER BY position ASC
	`
	rows, err := r.pool.Query(ctx, query, cycleID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []domain.Group
	for rows.Next() {
		var membersJSON []byte
		if err := rows.Scan(&membersJSON); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		var g domain.Group
		if err := json.Unmarshal(membersJSON, &g.Members); err != nil {
			return nil, fmt.Errorf("unmarshal members: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// MarkNotified отмечает, что результат цикла передан в уведомления.
func (r *CycleRepo) MarkNotified(ctx context.Context, cycleID uuid.UUID, at time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE cycles SET notified_at = $2 WHERE id = $1 AND notified_at IS NULL
	`, cycleID, at)
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Commit атомарно фиксирует цикл: статус, группы и историю встреч.
//
// Всё выполняется в одной транзакции:
//  1. запись lease блокируется и проверяется по owner token (FOR UPDATE),
//     иначе domain.ErrLeaseLost;
//  2. цикл переводится в COMMITTED, если он ещё не зафиксирован,
//     иначе domain.ErrCycleAlreadyCommitted;
//  3. группы и встречи вставляются с ON CONFLICT DO NOTHING.
//
// При успехе commit.Cycle обновляется значениями из БД.
func (r *CycleRepo) Commit(ctx context.Context, commit *domain.CycleCommit) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var held int
	err = tx.QueryRow(ctx, `
		SELECT 1
		FROM instance_lease
		WHERE id = 1 AND owner_token = $1 AND expires_at > now()
		FOR UPDATE
	`, commit.OwnerToken).Scan(&held)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrLeaseLost
	}
	if err != nil {
		return fmt.Errorf("check lease: %w", err)
	}

	cycle := commit.Cycle
	insufficient := len(commit.Groups) == 0

	var cycleID uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO cycles (id, scope_id, cycle_key, opens_at, closes_at, status,
		                    group_count, insufficient, committed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, 'COMMITTED', $6, $7, $8, $9)
		ON CONFLICT (scope_id, cycle_key) DO UPDATE
		SET status       = 'COMMITTED',
		    group_count  = EXCLUDED.group_count,
		    insufficient = EXCLUDED.insufficient,
		    committed_at = EXCLUDED.committed_at
		WHERE cycles.status <> 'COMMITTED'
		RETURNING id
	`,
		cycle.ID,
		cycle.ScopeID,
		cycle.Key,
		cycle.OpensAt,
		cycle.ClosesAt,
		len(commit.Groups),
		insufficient,
		commit.CommittedAt,
		cycle.CreatedAt,
	).Scan(&cycleID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrCycleAlreadyCommitted
	}
	if err != nil {
		return fmt.Errorf("commit cycle: %w", err)
	}

	batch := &pgx.Batch{}
	for i, g := range commit.Groups {
		membersJSON, err := json.Marshal(g.Members)
		if err != nil {
			return fmt.Errorf("marshal members: %w", err)
		}
		batch.Queue(`
			INSERT INTO cycle_groups (cycle_id, position, members)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, cycleID, i, membersJSON)
	}
	for _, m := range commit.Meetings() {
		batch.Queue(`
			INSERT INTO meetings (scope_id, cycle_key, participant_a, participant_b, met_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (scope_id, cycle_key, participant_a, participant_b) DO NOTHING
		`, m.ScopeID, m.CycleKey, m.Pair.A, m.Pair.B, m.At)
	}

	if batch.Len() > 0 {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("insert groups: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("close batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	committedAt := commit.CommittedAt
	cycle.ID = cycleID
	cycle.Status = domain.CycleStatusCommitted
	cycle.GroupCount = len(commit.Groups)
	cycle.Insufficient = insufficient
	cycle.CommittedAt = &committedAt
	return nil
}

// --- Helpers ---

// CycleFilter — параметры фильтрации циклов.
type CycleFilter struct {
	ScopeID string
	Status  domain.CycleStatus
	Limit   int
	Offset  int
}

func scanCycle(row pgx.Row) (*domain.Cycle, error) {
	var c domain.Cycle
	err := row.Scan(
		&c.ID,
		&c.ScopeID,
		&c.Key,
		&c.OpensAt,
		&c.ClosesAt,
		&c.Status,
		&c.GroupCount,
		&c.Insufficient,
		&c.CommittedAt,
		&c.NotifiedAt,
		&c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan cycle: %w", err)
	}
	return &c, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
