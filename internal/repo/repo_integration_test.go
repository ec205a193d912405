//go:build integration_pg
// +build integration_pg

package repo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/shaiso/randomcoffee/internal/domain"
)

// --- Helpers ---

func startPostgres(t *testing.T) (dsn string, stop func()) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)

	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "coffee",
			"POSTGRES_PASSWORD": "coffee",
			"POSTGRES_DB":       "coffee",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		).WithDeadline(2 * time.Minute),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		cancel()
		t.Fatalf("failed to start postgres container: %v", err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("failed to get container host: %v", err)
	}
	mapped, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("failed to get mapped port: %v", err)
	}

	dsn = fmt.Sprintf("postgres://coffee:coffee@%s:%s/coffee?sslmode=disable", host, mapped.Port())
	stop = func() {
		_ = c.Terminate(context.Background())
		cancel()
	}
	return dsn, stop
}

func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn, stop := startPostgres(t)
	t.Cleanup(stop)

	ctx := context.Background()
	pool, err := NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// Повторная миграция не должна падать
	if err := Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate twice: %v", err)
	}
	return pool
}

func mustAcquire(t *testing.T, leases *LeaseRepo, ttl time.Duration) uuid.UUID {
	t.Helper()
	token := uuid.New()
	if _, err := leases.TryAcquire(context.Background(), token, ttl); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	return token
}

func newCommit(cycle *domain.Cycle, token uuid.UUID, groups ...domain.Group) *domain.CycleCommit {
	return &domain.CycleCommit{
		Cycle:       cycle,
		Groups:      groups,
		OwnerToken:  token,
		CommittedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func person(id domain.ParticipantID) domain.Participant {
	return domain.Participant{ID: id, DisplayName: fmt.Sprintf("user%d", id)}
}

// --- Lease Tests ---

func TestLeaseRepo_ConcurrentAcquireExactlyOne(t *testing.T) {
	pool := setupDB(t)
	leases := NewLeaseRepo(pool)

	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := leases.TryAcquire(context.Background(), uuid.New(), 30*time.Second)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				granted++
			case errors.Is(err, domain.ErrLeaseDenied):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if granted != 1 {
		t.Errorf("expected exactly one owner, got %d", granted)
	}
}

func TestLeaseRepo_ExpiredRowIsAcquirable(t *testing.T) {
	pool := setupDB(t)
	leases := NewLeaseRepo(pool)
	ctx := context.Background()

	old := mustAcquire(t, leases, 30*time.Second)

	// Имитируем падение владельца: запись осталась, но истекла
	if _, err := pool.Exec(ctx, `UPDATE instance_lease SET expires_at = now() - interval '1 second'`); err != nil {
		t.Fatalf("expire lease: %v", err)
	}

	token := uuid.New()
	l, err := leases.TryAcquire(ctx, token, 30*time.Second)
	if err != nil {
		t.Fatalf("expected expired lease to be acquirable, got %v", err)
	}
	if l.OwnerToken != token {
		t.Errorf("expected owner %s, got %s", token, l.OwnerToken)
	}

	if _, err := leases.Renew(ctx, old, 30*time.Second); !errors.Is(err, domain.ErrLeaseLost) {
		t.Errorf("expected ErrLeaseLost for previous owner, got %v", err)
	}
}

func TestLeaseRepo_LiveRowDenied(t *testing.T) {
	pool := setupDB(t)
	leases := NewLeaseRepo(pool)

	mustAcquire(t, leases, 30*time.Second)

	if _, err := leases.TryAcquire(context.Background(), uuid.New(), 30*time.Second); !errors.Is(err, domain.ErrLeaseDenied) {
		t.Errorf("expected ErrLeaseDenied, got %v", err)
	}
}

func TestLeaseRepo_ReleaseAndCurrent(t *testing.T) {
	pool := setupDB(t)
	leases := NewLeaseRepo(pool)
	ctx := context.Background()

	token := mustAcquire(t, leases, 30*time.Second)

	l, err := leases.Current(ctx)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if l.OwnerToken != token {
		t.Errorf("unexpected owner %s", l.OwnerToken)
	}

	// Чужой токен не удаляет запись
	if err := leases.Release(ctx, uuid.New()); err != nil {
		t.Fatalf("release foreign: %v", err)
	}
	if _, err := leases.Current(ctx); err != nil {
		t.Fatalf("lease should survive foreign release: %v", err)
	}

	if err := leases.Release(ctx, token); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := leases.Current(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after release, got %v", err)
	}
}

// --- Cycle Tests ---

func TestCycleRepo_CommitIsIdempotent(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	leases := NewLeaseRepo(pool)
	cycles := NewCycleRepo(pool)
	history := NewHistoryRepo(pool)

	token := mustAcquire(t, leases, 30*time.Second)

	opensAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	cycle := domain.NewCycle("team", opensAt, opensAt.Add(7*time.Hour))
	created, err := cycles.Open(ctx, cycle)
	if err != nil || !created {
		t.Fatalf("open: created=%v err=%v", created, err)
	}

	groups := []domain.Group{
		domain.NewGroup(person(1), person(2)),
		domain.NewGroup(person(3), person(4), person(5)),
	}
	if err := cycles.Commit(ctx, newCommit(cycle, token, groups...)); err != nil {
		t.Fatalf("commit: %v", err)
	}

	// Повторный commit того же ключа — без новых строк
	again := domain.NewCycle("team", opensAt, opensAt.Add(7*time.Hour))
	err = cycles.Commit(ctx, newCommit(again, token, domain.NewGroup(person(1), person(3))))
	if !errors.Is(err, domain.ErrCycleAlreadyCommitted) {
		t.Fatalf("expected ErrCycleAlreadyCommitted, got %v", err)
	}

	meetings, err := history.PastPairings(ctx, "team")
	if err != nil {
		t.Fatalf("past pairings: %v", err)
	}
	if len(meetings) != 4 {
		t.Errorf("expected 4 meetings (1 pair + 3 from triple), got %d", len(meetings))
	}

	stored, err := cycles.ListGroups(ctx, cycle.ID)
	if err != nil {
		t.Fatalf("list groups: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(stored))
	}
	if !stored[1].IsTriple() {
		t.Error("expected second group to be a triple")
	}

	latest, err := cycles.Latest(ctx, "team")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if !latest.IsCommitted() || latest.GroupCount != 2 || latest.Insufficient {
		t.Errorf("unexpected committed cycle: %+v", latest)
	}
}

func TestCycleRepo_CommitWithoutLease(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	cycles := NewCycleRepo(pool)

	opensAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	cycle := domain.NewCycle("team", opensAt, opensAt.Add(7*time.Hour))

	err := cycles.Commit(ctx, newCommit(cycle, uuid.New(), domain.NewGroup(person(1), person(2))))
	if !errors.Is(err, domain.ErrLeaseLost) {
		t.Fatalf("expected ErrLeaseLost, got %v", err)
	}

	latest, err := cycles.Latest(ctx, "team")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest != nil {
		t.Error("rejected commit must not leave a cycle behind")
	}
}

func TestCycleRepo_InsufficientAndOutbox(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	leases := NewLeaseRepo(pool)
	cycles := NewCycleRepo(pool)

	token := mustAcquire(t, leases, 30*time.Second)

	opensAt := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	cycle := domain.NewCycle("team", opensAt, opensAt.Add(7*time.Hour))
	if err := cycles.Commit(ctx, newCommit(cycle, token)); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if !cycle.Insufficient || cycle.GroupCount != 0 {
		t.Errorf("expected insufficient zero-group cycle, got %+v", cycle)
	}

	pending, err := cycles.ListUnnotified(ctx, 10)
	if err != nil {
		t.Fatalf("list unnotified: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != cycle.ID {
		t.Fatalf("expected cycle in outbox, got %+v", pending)
	}

	if err := cycles.MarkNotified(ctx, cycle.ID, time.Now()); err != nil {
		t.Fatalf("mark notified: %v", err)
	}
	if err := cycles.MarkNotified(ctx, cycle.ID, time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("second mark should report ErrNotFound, got %v", err)
	}

	pending, err = cycles.ListUnnotified(ctx, 10)
	if err != nil {
		t.Fatalf("list unnotified: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected empty outbox, got %d", len(pending))
	}
}

// --- Roster Tests ---

func TestRosterRepo_CurrentOptIns(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	rosters := NewRosterRepo(pool)

	key := domain.CycleKey("team_1772445600")
	at := time.Now()

	for _, p := range []domain.Participant{person(1), person(2), person(3)} {
		if err := rosters.RecordOptIn(ctx, "team", key, p, true, at); err != nil {
			t.Fatalf("record optin: %v", err)
		}
	}
	// Участник 2 передумал
	if err := rosters.RecordOptIn(ctx, "team", key, person(2), false, at.Add(time.Minute)); err != nil {
		t.Fatalf("record optin: %v", err)
	}
	// Другой scope не виден
	if err := rosters.RecordOptIn(ctx, "other", key, person(9), true, at); err != nil {
		t.Fatalf("record optin: %v", err)
	}

	roster, err := rosters.CurrentOptIns(ctx, "team", key)
	if err != nil {
		t.Fatalf("current optins: %v", err)
	}
	ids := roster.IDs()
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 3 {
		t.Errorf("expected [1 3], got %v", ids)
	}
	if roster[0].DisplayName != "user1" {
		t.Errorf("expected display name, got %q", roster[0].DisplayName)
	}
}
