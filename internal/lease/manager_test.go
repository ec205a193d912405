package lease

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/randomcoffee/internal/domain"
	"github.com/shaiso/randomcoffee/internal/telemetry"
)

// --- Fakes ---

// fakeClock — управляемые часы.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeStore — in-memory Store с атомарным захватом под мьютексом.
type fakeStore struct {
	mu  sync.Mutex
	now func() time.Time

	lease *domain.Lease

	acquireErr     error
	renewErrs      []error // возвращаются по очереди, nil — успех
	renewErrAlways error
	releases       int
}

func newFakeStore(now func() time.Time) *fakeStore {
	return &fakeStore{now: now}
}

func (s *fakeStore) TryAcquire(_ context.Context, token uuid.UUID, ttl time.Duration) (*domain.Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.acquireErr != nil {
		return nil, s.acquireErr
	}
	now := s.now()
	if s.lease != nil && now.Before(s.lease.ExpiresAt) {
		return nil, domain.ErrLeaseDenied
	}
	s.lease = &domain.Lease{OwnerToken: token, AcquiredAt: now, ExpiresAt: now.Add(ttl)}
	l := *s.lease
	return &l, nil
}

func (s *fakeStore) Renew(_ context.Context, token uuid.UUID, ttl time.Duration) (*domain.Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.renewErrs) > 0 {
		err := s.renewErrs[0]
		s.renewErrs = s.renewErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if s.renewErrAlways != nil {
		return nil, s.renewErrAlways
	}
	if s.lease == nil || s.lease.OwnerToken != token {
		return nil, domain.ErrLeaseLost
	}
	s.lease.ExpiresAt = s.now().Add(ttl)
	l := *s.lease
	return &l, nil
}

func (s *fakeStore) Release(_ context.Context, token uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.releases++
	if s.lease != nil && s.lease.OwnerToken == token {
		s.lease = nil
	}
	return nil
}

func (s *fakeStore) steal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lease.OwnerToken = uuid.New()
}

func (s *fakeStore) releaseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releases
}

var errStoreDown = errors.New("connection refused")

// --- TryAcquire Tests ---

func TestTryAcquire_EmptyStore(t *testing.T) {
	clock := newFakeClock()
	mgr := NewManager(Config{Store: newFakeStore(clock.Now), TTL: 30 * time.Second, Now: clock.Now, Logger: telemetry.Discard()})

	h, err := mgr.TryAcquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !h.Alive() {
		t.Error("fresh handle should be alive")
	}
	if h.Token() == uuid.Nil {
		t.Error("owner token should be set")
	}
	if !h.ExpiresAt().Equal(clock.Now().Add(30 * time.Second)) {
		t.Errorf("unexpected expiry %v", h.ExpiresAt())
	}
}

func TestTryAcquire_LiveLeaseDenied(t *testing.T) {
	clock := newFakeClock()
	store := newFakeStore(clock.Now)
	first := NewManager(Config{Store: store, Now: clock.Now, Logger: telemetry.Discard()})
	second := NewManager(Config{Store: store, Now: clock.Now, Logger: telemetry.Discard()})

	if _, err := first.TryAcquire(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h, err := second.TryAcquire(context.Background())
	if !errors.Is(err, domain.ErrLeaseDenied) {
		t.Fatalf("expected ErrLeaseDenied, got %v", err)
	}
	if h != nil {
		t.Error("denied acquire should not return a handle")
	}
}

func TestTryAcquire_ConcurrentExactlyOne(t *testing.T) {
	clock := newFakeClock()
	store := newFakeStore(clock.Now)

	const callers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		handles int
		denied  int
	)
	start := make(chan struct{})

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mgr := NewManager(Config{Store: store, Now: clock.Now, Logger: telemetry.Discard()})
			<-start
			h, err := mgr.TryAcquire(context.Background())

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && h != nil:
				handles++
			case errors.Is(err, domain.ErrLeaseDenied):
				denied++
			default:
				t.Errorf("unexpected result: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if handles != 1 {
		t.Errorf("expected exactly 1 handle, got %d", handles)
	}
	if denied != callers-1 {
		t.Errorf("expected %d denied, got %d", callers-1, denied)
	}
}

func TestTryAcquire_ExpiredLeaseIsAcquirable(t *testing.T) {
	clock := newFakeClock()
	store := newFakeStore(clock.Now)
	crashed := NewManager(Config{Store: store, TTL: 30 * time.Second, Now: clock.Now, Logger: telemetry.Discard()})
	successor := NewManager(Config{Store: store, TTL: 30 * time.Second, Now: clock.Now, Logger: telemetry.Discard()})

	old, err := crashed.TryAcquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Процесс "упал": lease не продлевается, запись физически осталась
	clock.Advance(31 * time.Second)

	if old.Alive() {
		t.Error("expired handle should not be alive")
	}

	h, err := successor.TryAcquire(context.Background())
	if err != nil {
		t.Fatalf("expired lease should be acquirable, got %v", err)
	}
	if h.Token() == old.Token() {
		t.Error("successor should get a fresh owner token")
	}

	// Старый владелец не может продлить чужую lease
	if err := crashed.Renew(context.Background(), old); !errors.Is(err, domain.ErrLeaseLost) {
		t.Errorf("expected ErrLeaseLost for old owner, got %v", err)
	}
}

func TestTryAcquire_StoreUnavailableFailsClosed(t *testing.T) {
	clock := newFakeClock()
	store := newFakeStore(clock.Now)
	store.acquireErr = errStoreDown
	mgr := NewManager(Config{Store: store, Now: clock.Now, Logger: telemetry.Discard()})

	h, err := mgr.TryAcquire(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, domain.ErrLeaseDenied) {
		t.Error("store failure should not look like a denial")
	}
	if !errors.Is(err, errStoreDown) {
		t.Errorf("expected wrapped store error, got %v", err)
	}
	if h != nil {
		t.Error("should not become owner when store is unavailable")
	}
}

// --- Renew / Release Tests ---

func TestRenew_ExtendsExpiry(t *testing.T) {
	clock := newFakeClock()
	mgr := NewManager(Config{Store: newFakeStore(clock.Now), TTL: 30 * time.Second, Now: clock.Now, Logger: telemetry.Discard()})

	h, err := mgr.TryAcquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clock.Advance(10 * time.Second)
	if err := mgr.Renew(context.Background(), h); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := clock.Now().Add(30 * time.Second)
	if !h.ExpiresAt().Equal(want) {
		t.Errorf("expected expiry %v, got %v", want, h.ExpiresAt())
	}
}

func TestRelease(t *testing.T) {
	clock := newFakeClock()
	store := newFakeStore(clock.Now)
	mgr := NewManager(Config{Store: store, Now: clock.Now, Logger: telemetry.Discard()})

	h, err := mgr.TryAcquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mgr.Release(context.Background(), h); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if h.Alive() {
		t.Error("released handle should not be alive")
	}
	if h.Err() == nil {
		t.Error("released handle should report a cause")
	}

	// После освобождения lease сразу доступна
	if _, err := mgr.TryAcquire(context.Background()); err != nil {
		t.Errorf("expected lease to be free after release, got %v", err)
	}
}

func TestHandle_ExpiresLocally(t *testing.T) {
	clock := newFakeClock()
	mgr := NewManager(Config{Store: newFakeStore(clock.Now), TTL: 30 * time.Second, Now: clock.Now, Logger: telemetry.Discard()})

	h, err := mgr.TryAcquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clock.Advance(30 * time.Second)
	if h.Alive() {
		t.Error("handle should expire at ExpiresAt")
	}
	if !errors.Is(h.Err(), domain.ErrLeaseLost) {
		t.Errorf("expected ErrLeaseLost, got %v", h.Err())
	}
}

// --- Keep Tests ---

func TestKeep_RelinquishesAfterFailedRetries(t *testing.T) {
	store := newFakeStore(time.Now)
	store.renewErrAlways = errStoreDown
	mgr := NewManager(Config{
		Store:            store,
		TTL:              time.Second,
		RenewInterval:    50 * time.Millisecond,
		MaxRenewAttempts: 3,
		RetryDelay:       10 * time.Millisecond,
		Logger:           telemetry.Discard(),
	})

	h, err := mgr.TryAcquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- mgr.Keep(context.Background(), h) }()

	select {
	case err := <-done:
		if !errors.Is(err, domain.ErrLeaseLost) {
			t.Errorf("expected ErrLeaseLost, got %v", err)
		}
		if !errors.Is(err, errStoreDown) {
			t.Errorf("expected store error in chain, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Keep did not relinquish")
	}

	if h.Alive() {
		t.Error("handle should be lost after relinquish")
	}
	select {
	case <-h.Context().Done():
	default:
		t.Error("handle context should be cancelled")
	}
	if store.releaseCount() != 1 {
		t.Errorf("expected best-effort release, got %d releases", store.releaseCount())
	}
}

func TestKeep_TransientFailureRecovers(t *testing.T) {
	store := newFakeStore(time.Now)
	store.renewErrs = []error{errStoreDown}
	mgr := NewManager(Config{
		Store:            store,
		TTL:              time.Second,
		RenewInterval:    50 * time.Millisecond,
		MaxRenewAttempts: 3,
		RetryDelay:       10 * time.Millisecond,
		Logger:           telemetry.Discard(),
	})

	h, err := mgr.TryAcquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	if err := mgr.Keep(ctx, h); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected Keep to run until ctx deadline, got %v", err)
	}
	if store.releaseCount() != 0 {
		t.Error("transient failure should not release the lease")
	}
}

func TestKeep_LostWhenTokenReplaced(t *testing.T) {
	store := newFakeStore(time.Now)
	mgr := NewManager(Config{
		Store:         store,
		TTL:           time.Second,
		RenewInterval: 30 * time.Millisecond,
		Logger:        telemetry.Discard(),
	})

	h, err := mgr.TryAcquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Другой процесс захватил lease после предполагаемого истечения
	store.steal()

	done := make(chan error, 1)
	go func() { done <- mgr.Keep(context.Background(), h) }()

	select {
	case err := <-done:
		if !errors.Is(err, domain.ErrLeaseLost) {
			t.Errorf("expected ErrLeaseLost, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Keep did not notice lost lease")
	}
	if h.Alive() {
		t.Error("handle should not be alive")
	}
}

func TestNewManager_Defaults(t *testing.T) {
	mgr := NewManager(Config{Store: newFakeStore(time.Now), TTL: 30 * time.Second})

	if mgr.RenewInterval() != 10*time.Second {
		t.Errorf("expected renew interval TTL/3, got %v", mgr.RenewInterval())
	}

	// Интервал не меньше TTL — исправляется на TTL/3
	mgr = NewManager(Config{Store: newFakeStore(time.Now), TTL: 30 * time.Second, RenewInterval: time.Minute})
	if mgr.RenewInterval() != 10*time.Second {
		t.Errorf("expected renew interval TTL/3, got %v", mgr.RenewInterval())
	}
}
