package handler

import (
	"net/http"

	"github.com/efreitasn/shareledger/internal/service"
)

// AdminHandler exposes operator endpoints.
type AdminHandler struct {
	svc *service.AdminService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(svc *service.AdminService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

type sweepResponse struct {
	Ran                 bool `json:"ran"`
	HoldsExpired        int  `json:"holds_expired"`
	SellRequestsExpired int  `json:"sell_requests_expired"`
}

// Sweep handles POST /admin/sweep.
func (h *AdminHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	res, ran, err := h.svc.Sweep(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, sweepResponse{
		Ran:                 ran,
		HoldsExpired:        res.HoldsExpired,
		SellRequestsExpired: res.SellRequestsExpired,
	})
}

// RebuildPositions handles POST /admin/positions/rebuild.
func (h *AdminHandler) RebuildPositions(w http.ResponseWriter, r *http.Request) {
	changed, err := h.svc.RebuildPositions(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int{"repaired": changed})
}
