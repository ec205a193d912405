package api

import (
	"net/http"
)

// GetLease возвращает текущую запись lease, в том числе истёкшую.
// GET /api/v1/lease
func (h *Handler) GetLease(w http.ResponseWriter, r *http.Request) {
	l, err := h.leases.Current(r.Context())
	if HandleError(w, r, h.logger, err, "no scheduler holds the lease") {
		return
	}

	Success(w, LeaseFromDomain(l, h.now()))
}
