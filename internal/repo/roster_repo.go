package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/randomcoffee/internal/domain"
)

// RosterRepo — согласия участников из таблицы cycle_optins.
//
// Таблицу заполняет внешняя подсистема (бот) по ответам на опрос.
type RosterRepo struct {
	pool *pgxpool.Pool
}

// NewRosterRepo создаёт новый RosterRepo.
func NewRosterRepo(pool *pgxpool.Pool) *RosterRepo {
	return &RosterRepo{pool: pool}
}

// CurrentOptIns возвращает участников, согласившихся на встречу в цикле.
// Участник, изменивший ответ, учитывается по последнему ответу.
func (r *RosterRepo) CurrentOptIns(ctx context.Context, scopeID string, key domain.CycleKey) (domain.Roster, error) {
	query := `
		SELECT participant_id, display_name
		FROM cycle_optins
		WHERE scope_id = $1 AND cycle_key = $2 AND opted_in
		ORDER BY responded_at ASC, participant_id ASC
	`
	rows, err := r.pool.Query(ctx, query, scopeID, key)
	if err != nil {
		return nil, fmt.Errorf("list optins: %w", err)
	}
	defer rows.Close()

	var participants []domain.Participant
	for rows.Next() {
		var p domain.Participant
		var displayName *string
		if err := rows.Scan(&p.ID, &displayName); err != nil {
			return nil, fmt.Errorf("scan optin: %w", err)
		}
		if displayName != nil {
			p.DisplayName = *displayName
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return domain.NewRoster(participants...)
}

// RecordOptIn сохраняет ответ участника. Повторный ответ заменяет предыдущий.
func (r *RosterRepo) RecordOptIn(ctx context.Context, scopeID string, key domain.CycleKey, p domain.Participant, optedIn bool, at time.Time) error {
	query := `
		INSERT INTO cycle_optins (scope_id, cycle_key, participant_id, display_name, opted_in, responded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (scope_id, cycle_key, participant_id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    opted_in     = EXCLUDED.opted_in,
		    responded_at = EXCLUDED.responded_at
	`
	_, err := r.pool.Exec(ctx, query, scopeID, key, p.ID, nullString(p.DisplayName), optedIn, at)
	if err != nil {
		return fmt.Errorf("upsert optin: %w", err)
	}
	return nil
}
