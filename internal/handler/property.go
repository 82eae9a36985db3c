package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/shareledger/internal/domain"
	"github.com/efreitasn/shareledger/internal/service"
)

// PropertyHandler handles HTTP requests for property inventory endpoints.
type PropertyHandler struct {
	svc *service.PropertyService
}

// NewPropertyHandler creates a new PropertyHandler.
func NewPropertyHandler(svc *service.PropertyService) *PropertyHandler {
	return &PropertyHandler{svc: svc}
}

// registerPropertyRequest is the JSON request body for POST /properties.
type registerPropertyRequest struct {
	PropertyID  string          `json:"property_id"`
	TotalShares int64           `json:"total_shares"`
	SharePrice  decimal.Decimal `json:"share_price"`
}

// inventoryResponse is the JSON representation of a property's inventory.
type inventoryResponse struct {
	PropertyID      string `json:"property_id"`
	TotalShares     int64  `json:"total_shares"`
	AvailableShares int64  `json:"available_shares"`
	SharePrice      string `json:"share_price"`
	Status          string `json:"status"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

func toInventoryResponse(inv *domain.PropertyInventory) inventoryResponse {
	return inventoryResponse{
		PropertyID:      inv.PropertyID,
		TotalShares:     inv.TotalShares,
		AvailableShares: inv.AvailableShares,
		SharePrice:      money(inv.SharePrice),
		Status:          string(inv.Status),
		CreatedAt:       formatTime(inv.CreatedAt),
		UpdatedAt:       formatTime(inv.UpdatedAt),
	}
}

// Register handles POST /properties.
func (h *PropertyHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerPropertyRequest
	if err := ParseJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	inv, err := h.svc.Register(r.Context(), service.RegisterPropertyRequest{
		PropertyID:  req.PropertyID,
		TotalShares: req.TotalShares,
		SharePrice:  req.SharePrice,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, toInventoryResponse(inv))
}

// Get handles GET /properties/{property_id}.
func (h *PropertyHandler) Get(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.Get(r.Context(), chi.URLParam(r, "property_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toInventoryResponse(inv))
}
