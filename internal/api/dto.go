package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/randomcoffee/internal/domain"
	"github.com/shaiso/randomcoffee/internal/pairing"
)

// Lease DTOs

// LeaseResponse — текущая запись lease.
type LeaseResponse struct {
	OwnerToken       uuid.UUID `json:"owner_token"`
	AcquiredAt       time.Time `json:"acquired_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	Expired          bool      `json:"expired"`
	RemainingSeconds float64   `json:"remaining_seconds"`
}

// LeaseFromDomain конвертирует domain.Lease в LeaseResponse.
func LeaseFromDomain(l *domain.Lease, now time.Time) LeaseResponse {
	return LeaseResponse{
		OwnerToken:       l.OwnerToken,
		AcquiredAt:       l.AcquiredAt,
		ExpiresAt:        l.ExpiresAt,
		Expired:          l.IsExpired(now),
		RemainingSeconds: l.Remaining(now).Seconds(),
	}
}

// Scope DTOs

// ScopeResponse — scope с фазой конечного автомата.
type ScopeResponse struct {
	ID           string         `json:"id"`
	ChatID       int64          `json:"chat_id"`
	Name         string         `json:"name,omitempty"`
	PollCron     string         `json:"poll_cron"`
	PairingCron  string         `json:"pairing_cron"`
	Timezone     string         `json:"timezone"`
	Phase        string         `json:"phase"`
	LatestCycle  *CycleResponse `json:"latest_cycle,omitempty"`
	NextOpensAt  *time.Time     `json:"next_opens_at,omitempty"`
	NextClosesAt *time.Time     `json:"next_closes_at,omitempty"`
}

// Cycle DTOs

// CycleResponse — цикл без групп.
type CycleResponse struct {
	ID           uuid.UUID  `json:"id"`
	ScopeID      string     `json:"scope_id"`
	CycleKey     string     `json:"cycle_key"`
	Status       string     `json:"status"`
	OpensAt      time.Time  `json:"opens_at"`
	ClosesAt     time.Time  `json:"closes_at"`
	GroupCount   int        `json:"group_count"`
	Insufficient bool       `json:"insufficient"`
	CommittedAt  *time.Time `json:"committed_at,omitempty"`
	NotifiedAt   *time.Time `json:"notified_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// CycleFromDomain конвертирует domain.Cycle в CycleResponse.
func CycleFromDomain(c domain.Cycle) CycleResponse {
	return CycleResponse{
		ID:           c.ID,
		ScopeID:      c.ScopeID,
		CycleKey:     c.Key.String(),
		Status:       c.Status.String(),
		OpensAt:      c.OpensAt,
		ClosesAt:     c.ClosesAt,
		GroupCount:   c.GroupCount,
		Insufficient: c.Insufficient,
		CommittedAt:  c.CommittedAt,
		NotifiedAt:   c.NotifiedAt,
		CreatedAt:    c.CreatedAt,
	}
}

// CycleDetailResponse — цикл вместе с группами.
type CycleDetailResponse struct {
	CycleResponse
	Groups []GroupResponse `json:"groups"`
}

// GroupResponse — одна группа.
type GroupResponse struct {
	Members []MemberResponse `json:"members"`
}

// MemberResponse — участник группы.
type MemberResponse struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
}

// GroupsFromDomain конвертирует группы. Пустой результат — пустой
// массив, а не null.
func GroupsFromDomain(groups []domain.Group) []GroupResponse {
	result := make([]GroupResponse, len(groups))
	for i, g := range groups {
		members := make([]MemberResponse, len(g.Members))
		for j, m := range g.Members {
			members[j] = MemberResponse{ID: int64(m.ID), DisplayName: m.DisplayName}
		}
		result[i] = GroupResponse{Members: members}
	}
	return result
}

// History DTOs

// PairCountResponse — сколько раз пара уже встречалась.
type PairCountResponse struct {
	A       int64     `json:"a"`
	B       int64     `json:"b"`
	Count   int       `json:"count"`
	LastMet time.Time `json:"last_met"`
}

// PairCountFromPairing конвертирует pairing.PairCount.
func PairCountFromPairing(pc pairing.PairCount) PairCountResponse {
	return PairCountResponse{
		A:       int64(pc.Pair.A),
		B:       int64(pc.Pair.B),
		Count:   pc.Count,
		LastMet: pc.LastMet,
	}
}

// Preview DTOs

// PreviewRequest — запрос на пробное распределение.
type PreviewRequest struct {
	CycleKey string `json:"cycle_key"`
}

// PreviewResponse — распределение, которое получилось бы сейчас.
// Ничего не записывается: повторный запрос может дать другой результат.
type PreviewResponse struct {
	ScopeID      string          `json:"scope_id"`
	CycleKey     string          `json:"cycle_key"`
	Participants int             `json:"participants"`
	Groups       []GroupResponse `json:"groups"`
	Repeats      int             `json:"repeats"`
}
