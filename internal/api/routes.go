package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Lease
	mux.Handle("GET /api/v1/lease", chain(http.HandlerFunc(h.GetLease)))

	// Scopes
	mux.Handle("GET /api/v1/scopes", chain(http.HandlerFunc(h.ListScopes)))
	mux.Handle("GET /api/v1/scopes/{id}/cycles", chain(http.HandlerFunc(h.ListScopeCycles)))
	mux.Handle("GET /api/v1/scopes/{id}/history", chain(http.HandlerFunc(h.GetScopeHistory)))
	mux.Handle("POST /api/v1/scopes/{id}/preview", chain(http.HandlerFunc(h.PreviewPairing)))

	// Cycles
	mux.Handle("GET /api/v1/cycles/{id}", chain(http.HandlerFunc(h.GetCycle)))
}
