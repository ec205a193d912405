package api

import (
	"cmp"
	"encoding/json"
	"net/http"
	"slices"

	"github.com/shaiso/randomcoffee/internal/domain"
	"github.com/shaiso/randomcoffee/internal/pairing"
	"github.com/shaiso/randomcoffee/internal/scheduler"
)

// ListScopes возвращает сконфигурированные scope с текущей фазой.
// GET /api/v1/scopes
func (h *Handler) ListScopes(w http.ResponseWriter, r *http.Request) {
	now := h.now()

	result := make([]ScopeResponse, 0, len(h.scopes))
	for i := range h.scopes {
		scope := &h.scopes[i]

		latest, err := h.cycles.Latest(r.Context(), scope.ID)
		if HandleError(w, r, h.logger, err, "") {
			return
		}

		resp := ScopeResponse{
			ID:          scope.ID,
			ChatID:      scope.ChatID,
			Name:        scope.Name,
			PollCron:    scope.PollCron,
			PairingCron: scope.PairingCron,
			Timezone:    scope.Location().String(),
			Phase:       latest.Phase(now).String(),
		}
		if latest != nil {
			c := CycleFromDomain(*latest)
			resp.LatestCycle = &c
		}

		// Следующее окно имеет смысл, только пока открытого цикла нет
		if latest == nil || latest.IsCommitted() {
			from := now
			if latest != nil && latest.ClosesAt.After(from) {
				from = latest.ClosesAt
			}
			next, err := scheduler.NextWindow(scope, from)
			if err != nil {
				h.logger.Warn("failed to compute next window", "scope_id", scope.ID, "error", err)
			} else {
				resp.NextOpensAt = &next.OpensAt
				resp.NextClosesAt = &next.ClosesAt
			}
		}

		result = append(result, resp)
	}

	List(w, result, len(result))
}

// GetScopeHistory возвращает, какие пары в scope уже встречались.
// GET /api/v1/scopes/{id}/history
func (h *Handler) GetScopeHistory(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(r.PathValue("id"))
	if !ok {
		NotFound(w, "scope not found")
		return
	}

	meetings, err := h.history.PastPairings(r.Context(), scope.ID)
	if HandleError(w, r, h.logger, err, "") {
		return
	}

	counts := pairing.NewHistory(meetings).Counts()
	slices.SortFunc(counts, func(a, b pairing.PairCount) int {
		return cmp.Or(
			cmp.Compare(b.Count, a.Count),
			cmp.Compare(a.Pair.A, b.Pair.A),
			cmp.Compare(a.Pair.B, b.Pair.B),
		)
	})

	result := make([]PairCountResponse, len(counts))
	for i, pc := range counts {
		result[i] = PairCountFromPairing(pc)
	}

	List(w, result, len(result))
}

// PreviewPairing считает распределение для roster цикла без commit.
// Lease не нужна: ничего не записывается.
// POST /api/v1/scopes/{id}/preview
func (h *Handler) PreviewPairing(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(r.PathValue("id"))
	if !ok {
		NotFound(w, "scope not found")
		return
	}

	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.CycleKey == "" {
		BadRequest(w, "cycle_key is required")
		return
	}
	key := domain.CycleKey(req.CycleKey)
	keyScope, _, ok := key.Split()
	if !ok {
		BadRequest(w, "invalid cycle_key")
		return
	}
	if keyScope != scope.ID {
		BadRequest(w, "cycle_key does not belong to scope")
		return
	}

	roster, err := h.roster.CurrentOptIns(r.Context(), scope.ID, key)
	if HandleError(w, r, h.logger, err, "") {
		return
	}

	meetings, err := h.history.PastPairings(r.Context(), scope.ID)
	if HandleError(w, r, h.logger, err, "") {
		return
	}

	result, err := h.engine.Compute(roster, pairing.NewHistory(meetings))
	if err == nil && result.Insufficient {
		err = domain.ErrInsufficientParticipants
	}
	if HandleError(w, r, h.logger, err, "") {
		return
	}

	Success(w, PreviewResponse{
		ScopeID:      scope.ID,
		CycleKey:     key.String(),
		Participants: len(roster),
		Groups:       GroupsFromDomain(result.Groups),
		Repeats:      result.Repeats,
	})
}
