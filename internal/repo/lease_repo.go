package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/randomcoffee/internal/domain"
)

// LeaseRepo — хранилище lease в таблице instance_lease.
//
// Время истечения считается по часам БД (now()), чтобы расхождение
// часов между процессами не влияло на взаимное исключение.
type LeaseRepo struct {
	pool *pgxpool.Pool
}

// NewLeaseRepo создаёт новый LeaseRepo.
func NewLeaseRepo(pool *pgxpool.Pool) *LeaseRepo {
	return &LeaseRepo{pool: pool}
}

// TryAcquire захватывает lease одним выражением: вставляет запись
// или заменяет истёкшую. Живая запись другого владельца не меняется,
// и RETURNING не возвращает строк.
func (r *LeaseRepo) TryAcquire(ctx context.Context, token uuid.UUID, ttl time.Duration) (*domain.Lease, error) {
	query := `
		INSERT INTO instance_lease (id, owner_token, acquired_at, expires_at)
		VALUES (1, $1, now(), now() + make_interval(secs => $2))
		ON CONFLICT (id) DO UPDATE
		SET owner_token = EXCLUDED.owner_token,
		    acquired_at = EXCLUDED.acquired_at,
		    expires_at  = EXCLUDED.expires_at
		WHERE instance_lease.expires_at <= now()
		RETURNING owner_token, acquired_at, expires_at
	`
	l, err := scanLease(r.pool.QueryRow(ctx, query, token, ttl.Seconds()))
	if errors.Is(err, ErrNotFound) {
		return nil, domain.ErrLeaseDenied
	}
	if err != nil {
		return nil, fmt.Errorf("try acquire: %w", err)
	}
	return l, nil
}

// Renew продлевает lease, если она всё ещё принадлежит token.
func (r *LeaseRepo) Renew(ctx context.Context, token uuid.UUID, ttl time.Duration) (*domain.Lease, error) {
	query := `
		UPDATE instance_lease
		SET expires_at = now() + make_interval(secs => $2)
		WHERE id = 1 AND owner_token = $1
		RETURNING owner_token, acquired_at, expires_at
	`
	l, err := scanLease(r.pool.QueryRow(ctx, query, token, ttl.Seconds()))
	if errors.Is(err, ErrNotFound) {
		return nil, domain.ErrLeaseLost
	}
	if err != nil {
		return nil, fmt.Errorf("renew: %w", err)
	}
	return l, nil
}

// Release удаляет запись, если она принадлежит token.
func (r *LeaseRepo) Release(ctx context.Context, token uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM instance_lease WHERE owner_token = $1`, token); err != nil {
		return fmt.Errorf("release: %w", err)
	}
	return nil
}

// Current возвращает текущую запись lease (в том числе истёкшую).
func (r *LeaseRepo) Current(ctx context.Context) (*domain.Lease, error) {
	query := `
		SELECT owner_token, acquired_at, expires_at
		FROM instance_lease
		WHERE id = 1
	`
	return scanLease(r.pool.QueryRow(ctx, query))
}

func scanLease(row pgx.Row) (*domain.Lease, error) {
	var l domain.Lease
	err := row.Scan(&l.OwnerToken, &l.AcquiredAt, &l.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan lease: %w", err)
	}
	return &l, nil
}
