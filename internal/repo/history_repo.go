package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/randomcoffee/internal/domain"
)

// HistoryRepo — история встреч из таблицы meetings.
// Строки добавляются только в CycleRepo.Commit.
type HistoryRepo struct {
	pool *pgxpool.Pool
}

// NewHistoryRepo создаёт новый HistoryRepo.
func NewHistoryRepo(pool *pgxpool.Pool) *HistoryRepo {
	return &HistoryRepo{pool: pool}
}

// PastPairings возвращает все прошлые встречи в scope.
func (r *HistoryRepo) PastPairings(ctx context.Context, scopeID string) ([]domain.Meeting, error) {
	query := `
		SELECT scope_id, cycle_key, participant_a, participant_b, met_at
		FROM meetings
		WHERE scope_id = $1
		ORDER BY met_at ASC
	`
	rows, err := r.pool.Query(ctx, query, scopeID)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	defer rows.Close()

	var meetings []domain.Meeting
	for rows.Next() {
		var m domain.Meeting
		var a, b domain.ParticipantID
		if err := rows.Scan(&m.ScopeID, &m.CycleKey, &a, &b, &m.At); err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		m.Pair = domain.NewPair(a, b)
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}
