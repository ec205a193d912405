package pairing

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/shaiso/randomcoffee/internal/domain"
)

// --- Helpers ---

func participants(ids ...domain.ParticipantID) domain.Roster {
	roster := make(domain.Roster, len(ids))
	for i, id := range ids {
		roster[i] = domain.Participant{ID: id}
	}
	return roster
}

func rosterOfSize(n int) domain.Roster {
	ids := make([]domain.ParticipantID, n)
	for i := range ids {
		ids[i] = domain.ParticipantID(i + 1)
	}
	return participants(ids...)
}

func met(pairs ...[2]domain.ParticipantID) *History {
	meetings := make([]domain.Meeting, len(pairs))
	for i, p := range pairs {
		meetings[i] = domain.Meeting{Pair: domain.NewPair(p[0], p[1]), At: time.Now()}
	}
	return NewHistory(meetings)
}

func hasGroup(groups []domain.Group, ids ...domain.ParticipantID) bool {
	for _, g := range groups {
		if g.Size() != len(ids) {
			continue
		}
		all := true
		for _, id := range ids {
			if !g.Has(id) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// --- Compute Tests ---

func TestCompute_PartitionCoversRoster(t *testing.T) {
	for n := 2; n <= 25; n++ {
		for seed := uint64(0); seed < 20; seed++ {
			roster := rosterOfSize(n)
			history := met([2]domain.ParticipantID{1, 2}, [2]domain.ParticipantID{2, 3})

			result, err := NewSeededEngine(seed).Compute(roster, history)
			if err != nil {
				t.Fatalf("n=%d seed=%d: unexpected error: %v", n, seed, err)
			}
			if result.Insufficient {
				t.Fatalf("n=%d: should not be insufficient", n)
			}

			seen := make(map[domain.ParticipantID]bool)
			for _, g := range result.Groups {
				if g.Size() < 2 || g.Size() > 3 {
					t.Fatalf("n=%d: group of size %d", n, g.Size())
				}
				for _, m := range g.Members {
					if seen[m.ID] {
						t.Fatalf("n=%d: participant %d in two groups", n, m.ID)
					}
					seen[m.ID] = true
				}
			}
			if len(seen) != n {
				t.Fatalf("n=%d: %d participants grouped", n, len(seen))
			}

			// Тройка появляется только для нечётного Roster
			triples := 0
			for _, g := range result.Groups {
				if g.IsTriple() {
					triples++
				}
			}
			if n%2 == 1 && triples != 1 {
				t.Errorf("n=%d: expected exactly one triple, got %d", n, triples)
			}
			if n%2 == 0 && triples != 0 {
				t.Errorf("n=%d: expected no triples, got %d", n, triples)
			}
		}
	}
}

func TestCompute_InsufficientParticipants(t *testing.T) {
	engine := NewSeededEngine(1)

	empty, err := engine.Compute(domain.Roster{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !empty.Insufficient || !empty.Empty {
		t.Errorf("empty roster: expected insufficient+empty, got %+v", empty)
	}
	if len(empty.Groups) != 0 {
		t.Errorf("empty roster: expected no groups, got %d", len(empty.Groups))
	}

	single, err := engine.Compute(participants(42), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !single.Insufficient {
		t.Error("single participant should be insufficient")
	}
	if single.Empty {
		t.Error("single participant roster is not empty")
	}
	if len(single.Groups) != 0 {
		t.Errorf("single participant: expected no groups, got %d", len(single.Groups))
	}
}

func TestCompute_SaturatedHistory(t *testing.T) {
	roster := rosterOfSize(7)

	var pairs [][2]domain.ParticipantID
	for i := 1; i <= 7; i++ {
		for j := i + 1; j <= 7; j++ {
			pairs = append(pairs, [2]domain.ParticipantID{domain.ParticipantID(i), domain.ParticipantID(j)})
		}
	}
	history := met(pairs...)

	result, err := NewSeededEngine(7).Compute(roster, history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Validate(roster, result.Groups); err != nil {
		t.Fatalf("invalid partition: %v", err)
	}

	// 2 пары + 1 тройка = 1 + 1 + 3 попарных отношения, все повторные
	if result.Repeats != 5 {
		t.Errorf("expected 5 repeats, got %d", result.Repeats)
	}
}

func TestCompute_AvoidsKnownPairs(t *testing.T) {
	const a, b, c, d = 1, 2, 3, 4
	roster := participants(a, b, c, d)
	history := met([2]domain.ParticipantID{a, b}, [2]domain.ParticipantID{c, d})

	for seed := uint64(0); seed < 200; seed++ {
		result, err := NewSeededEngine(seed).Compute(roster, history)
		if err != nil {
			t.Fatalf("seed=%d: unexpected error: %v", seed, err)
		}
		if len(result.Groups) != 2 {
			t.Fatalf("seed=%d: expected 2 groups, got %d", seed, len(result.Groups))
		}
		if hasGroup(result.Groups, a, b) || hasGroup(result.Groups, c, d) {
			t.Fatalf("seed=%d: repeated pair in %v", seed, result.Groups)
		}
		ok := (hasGroup(result.Groups, a, c) && hasGroup(result.Groups, b, d)) ||
			(hasGroup(result.Groups, a, d) && hasGroup(result.Groups, b, c))
		if !ok {
			t.Fatalf("seed=%d: unexpected groups %v", seed, result.Groups)
		}
		if result.Repeats != 0 {
			t.Errorf("seed=%d: expected 0 repeats, got %d", seed, result.Repeats)
		}
	}
}

func TestCompute_PrefersFewerMeetings(t *testing.T) {
	const a, b, c, d = 1, 2, 3, 4
	roster := participants(a, b, c, d)

	// Все уже встречались, но A-B и C-D — трижды
	history := met(
		[2]domain.ParticipantID{a, b}, [2]domain.ParticipantID{a, b}, [2]domain.ParticipantID{a, b},
		[2]domain.ParticipantID{c, d}, [2]domain.ParticipantID{c, d}, [2]domain.ParticipantID{c, d},
		[2]domain.ParticipantID{a, c}, [2]domain.ParticipantID{b, d},
		[2]domain.ParticipantID{a, d}, [2]domain.ParticipantID{b, c},
	)

	for seed := uint64(0); seed < 100; seed++ {
		result, err := NewSeededEngine(seed).Compute(roster, history)
		if err != nil {
			t.Fatalf("seed=%d: unexpected error: %v", seed, err)
		}
		if hasGroup(result.Groups, a, b) || hasGroup(result.Groups, c, d) {
			t.Fatalf("seed=%d: picked most frequent pair: %v", seed, result.Groups)
		}
		if result.Repeats != 2 {
			t.Errorf("seed=%d: expected 2 repeats, got %d", seed, result.Repeats)
		}
	}
}

func TestCompute_OddRosterFormsTriple(t *testing.T) {
	const a, b, c = 1, 2, 3

	result, err := NewSeededEngine(3).Compute(participants(a, b, c), NewHistory(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(result.Groups))
	}
	if !hasGroup(result.Groups, a, b, c) {
		t.Errorf("expected triple {A,B,C}, got %v", result.Groups)
	}
}

func TestCompute_NoHistoryIsRandom(t *testing.T) {
	roster := rosterOfSize(10)

	first, err := NewSeededEngine(1).Compute(roster, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	differs := false
	for seed := uint64(2); seed < 20 && !differs; seed++ {
		other, err := NewSeededEngine(seed).Compute(roster, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for i := range first.Groups {
			if first.Groups[i].String() != other.Groups[i].String() {
				differs = true
				break
			}
		}
	}
	if !differs {
		t.Error("different seeds should produce different pairings")
	}
}

func TestCompute_SameSeedIsReproducible(t *testing.T) {
	roster := rosterOfSize(9)
	history := met([2]domain.ParticipantID{1, 2})

	r1, err := NewSeededEngine(99).Compute(roster, history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r2, err := NewSeededEngine(99).Compute(roster, history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r1.Groups) != len(r2.Groups) {
		t.Fatalf("group count differs: %d vs %d", len(r1.Groups), len(r2.Groups))
	}
	for i := range r1.Groups {
		if r1.Groups[i].String() != r2.Groups[i].String() {
			t.Errorf("group %d differs: %s vs %s", i, r1.Groups[i], r2.Groups[i])
		}
	}
}

func TestCompute_DoesNotMutateRoster(t *testing.T) {
	roster := rosterOfSize(8)
	before := slices.Clone(roster)

	if _, err := NewSeededEngine(5).Compute(roster, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(roster, before) {
		t.Error("roster should not be mutated")
	}
}

// --- Validate Tests ---

func TestValidate(t *testing.T) {
	p := func(id domain.ParticipantID) domain.Participant { return domain.Participant{ID: id} }
	roster := participants(1, 2, 3, 4, 5)

	tests := []struct {
		name    string
		roster  domain.Roster
		groups  []domain.Group
		wantErr bool
	}{
		{
			name:   "valid pair and triple",
			roster: roster,
			groups: []domain.Group{domain.NewGroup(p(1), p(2)), domain.NewGroup(p(3), p(4), p(5))},
		},
		{
			name:    "participant in two groups",
			roster:  roster,
			groups:  []domain.Group{domain.NewGroup(p(1), p(2)), domain.NewGroup(p(2), p(3), p(4))},
			wantErr: true,
		},
		{
			name:    "group of four",
			roster:  roster,
			groups:  []domain.Group{domain.NewGroup(p(1), p(2), p(3), p(4)), domain.NewGroup(p(5))},
			wantErr: true,
		},
		{
			name:    "participant missing",
			roster:  roster,
			groups:  []domain.Group{domain.NewGroup(p(1), p(2)), domain.NewGroup(p(3), p(4))},
			wantErr: true,
		},
		{
			name:    "foreign participant",
			roster:  participants(1, 2),
			groups:  []domain.Group{domain.NewGroup(p(1), p(9))},
			wantErr: true,
		},
		{
			name:    "groups for single participant",
			roster:  participants(1),
			groups:  []domain.Group{domain.NewGroup(p(1))},
			wantErr: true,
		},
		{
			name:   "nothing for empty roster",
			roster: domain.Roster{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.roster, tt.groups)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvariantViolation) {
					t.Errorf("expected ErrInvariantViolation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

// --- History Tests ---

func TestHistory_Symmetric(t *testing.T) {
	h := met([2]domain.ParticipantID{5, 2})

	if h.Count(2, 5) != 1 || h.Count(5, 2) != 1 {
		t.Errorf("expected symmetric count 1, got %d/%d", h.Count(2, 5), h.Count(5, 2))
	}
	if h.Count(2, 3) != 0 {
		t.Error("unknown pair should have count 0")
	}
	if h.Len() != 1 {
		t.Errorf("expected 1 distinct pair, got %d", h.Len())
	}
}

func TestHistory_RecordTripleAddsThreeFacts(t *testing.T) {
	h := NewHistory(nil)
	at := time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC)

	h.Record(domain.NewGroup(
		domain.Participant{ID: 1},
		domain.Participant{ID: 2},
		domain.Participant{ID: 3},
	), at)

	for _, p := range [][2]domain.ParticipantID{{1, 2}, {1, 3}, {2, 3}} {
		if h.Count(p[0], p[1]) != 1 {
			t.Errorf("pair %v: expected count 1, got %d", p, h.Count(p[0], p[1]))
		}
		last, ok := h.LastMet(p[1], p[0])
		if !ok || !last.Equal(at) {
			t.Errorf("pair %v: expected last met %v, got %v", p, at, last)
		}
	}
	if h.Len() != 3 {
		t.Errorf("expected 3 distinct pairs, got %d", h.Len())
	}
}

func TestHistory_NilIsEmpty(t *testing.T) {
	var h *History
	if h.Count(1, 2) != 0 {
		t.Error("nil history should count 0")
	}
	if h.Len() != 0 {
		t.Error("nil history should be empty")
	}
}
