package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/shaiso/randomcoffee/internal/repo"
)

// Лимиты выдачи списка циклов.
const (
	defaultCycleLimit = 20
	maxCycleLimit     = 200
)

// ListScopeCycles возвращает циклы scope, новые первыми.
// GET /api/v1/scopes/{id}/cycles?limit=...&offset=...
func (h *Handler) ListScopeCycles(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(r.PathValue("id"))
	if !ok {
		NotFound(w, "scope not found")
		return
	}

	filter := repo.CycleFilter{ScopeID: scope.ID, Limit: defaultCycleLimit}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			BadRequest(w, "invalid limit")
			return
		}
		filter.Limit = min(limit, maxCycleLimit)
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			BadRequest(w, "invalid offset")
			return
		}
		filter.Offset = offset
	}

	cycles, err := h.cycles.List(r.Context(), filter)
	if HandleError(w, r, h.logger, err, "") {
		return
	}

	result := make([]CycleResponse, len(cycles))
	for i, c := range cycles {
		result[i] = CycleFromDomain(c)
	}

	List(w, result, len(result))
}

// GetCycle возвращает цикл вместе с группами.
// GET /api/v1/cycles/{id}
func (h *Handler) GetCycle(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid cycle id")
		return
	}

	cycle, err := h.cycles.GetByID(r.Context(), id)
	if HandleError(w, r, h.logger, err, "cycle not found") {
		return
	}

	groups, err := h.cycles.ListGroups(r.Context(), id)
	if HandleError(w, r, h.logger, err, "") {
		return
	}

	Success(w, CycleDetailResponse{
		CycleResponse: CycleFromDomain(*cycle),
		Groups:        GroupsFromDomain(groups),
	})
}
