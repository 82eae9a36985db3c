package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/shareledger/internal/domain"
	"github.com/efreitasn/shareledger/internal/service"
)

// MarketHandler handles HTTP requests for sell requests and holds.
type MarketHandler struct {
	svc *service.MarketService
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(svc *service.MarketService) *MarketHandler {
	return &MarketHandler{svc: svc}
}

type createSellRequestRequest struct {
	SellerID      string          `json:"seller_id"`
	PropertyID    string          `json:"property_id"`
	Shares        int64           `json:"shares"`
	PricePerShare decimal.Decimal `json:"price_per_share"`
	ExpiresAt     *time.Time      `json:"expires_at"`
}

type cancelSellRequestRequest struct {
	SellerID string `json:"seller_id"`
}

type placeHoldRequest struct {
	BuyerID string `json:"buyer_id"`
	Shares  int64  `json:"shares"`
}

type confirmHoldRequest struct {
	UserID string `json:"user_id"`
	Party  string `json:"party"`
}

type cancelHoldRequest struct {
	UserID string `json:"user_id"`
}

type sellRequestResponse struct {
	SellRequestID   string  `json:"sell_request_id"`
	SellerID        string  `json:"seller_id"`
	PropertyID      string  `json:"property_id"`
	SharesToSell    int64   `json:"shares_to_sell"`
	RemainingShares int64   `json:"remaining_shares"`
	PricePerShare   string  `json:"price_per_share"`
	Status          string  `json:"status"`
	ExpiresAt       string  `json:"expires_at"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
	ClosedAt        *string `json:"closed_at"`
}

type holdResponse struct {
	HoldID          string  `json:"hold_id"`
	SellRequestID   string  `json:"sell_request_id"`
	BuyerID         string  `json:"buyer_id"`
	SellerID        string  `json:"seller_id"`
	PropertyID      string  `json:"property_id"`
	SharesHeld      int64   `json:"shares_held"`
	PricePerShare   string  `json:"price_per_share"`
	Amount          string  `json:"amount"`
	BuyerConfirmed  bool    `json:"buyer_confirmed"`
	SellerConfirmed bool    `json:"seller_confirmed"`
	Status          string  `json:"status"`
	HoldExpiresAt   string  `json:"hold_expires_at"`
	CreatedAt       string  `json:"created_at"`
	SettledAt       *string `json:"settled_at"`
}

func toSellRequestResponse(sr *domain.SellRequest) sellRequestResponse {
	return sellRequestResponse{
		SellRequestID:   sr.SellRequestID,
		SellerID:        sr.SellerID,
		PropertyID:      sr.PropertyID,
		SharesToSell:    sr.SharesToSell,
		RemainingShares: sr.RemainingShares,
		PricePerShare:   money(sr.PricePerShare),
		Status:          string(sr.Status),
		ExpiresAt:       formatTime(sr.ExpiresAt),
		CreatedAt:       formatTime(sr.CreatedAt),
		UpdatedAt:       formatTime(sr.UpdatedAt),
		ClosedAt:        formatTimePtr(sr.ClosedAt),
	}
}

func toHoldResponse(h *domain.ShareHold) holdResponse {
	return holdResponse{
		HoldID:          h.HoldID,
		SellRequestID:   h.SellRequestID,
		BuyerID:         h.BuyerID,
		SellerID:        h.SellerID,
		PropertyID:      h.PropertyID,
		SharesHeld:      h.SharesHeld,
		PricePerShare:   money(h.PricePerShare),
		Amount:          money(h.Amount()),
		BuyerConfirmed:  h.BuyerConfirmed,
		SellerConfirmed: h.SellerConfirmed,
		Status:          string(h.Status),
		HoldExpiresAt:   formatTime(h.HoldExpiresAt),
		CreatedAt:       formatTime(h.CreatedAt),
		SettledAt:       formatTimePtr(h.SettledAt),
	}
}

// CreateSellRequest handles POST /sell-requests.
func (h *MarketHandler) CreateSellRequest(w http.ResponseWriter, r *http.Request) {
	var req createSellRequestRequest
	if err := ParseJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	sr, err := h.svc.CreateSellRequest(r.Context(), service.CreateSellRequestRequest{
		SellerID:      req.SellerID,
		PropertyID:    req.PropertyID,
		Shares:        req.Shares,
		PricePerShare: req.PricePerShare,
		ExpiresAt:     req.ExpiresAt,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, toSellRequestResponse(sr))
}

// GetSellRequest handles GET /sell-requests/{sell_request_id}.
func (h *MarketHandler) GetSellRequest(w http.ResponseWriter, r *http.Request) {
	sr, err := h.svc.GetSellRequest(r.Context(), chi.URLParam(r, "sell_request_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toSellRequestResponse(sr))
}

// CancelSellRequest handles POST /sell-requests/{sell_request_id}/cancel.
func (h *MarketHandler) CancelSellRequest(w http.ResponseWriter, r *http.Request) {
	var req cancelSellRequestRequest
	if err := ParseJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	sr, err := h.svc.CancelSellRequest(r.Context(), req.SellerID, chi.URLParam(r, "sell_request_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toSellRequestResponse(sr))
}

// PlaceHold handles POST /sell-requests/{sell_request_id}/holds.
func (h *MarketHandler) PlaceHold(w http.ResponseWriter, r *http.Request) {
	var req placeHoldRequest
	if err := ParseJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	hold, err := h.svc.PlaceHold(r.Context(), service.PlaceHoldRequest{
		BuyerID:       req.BuyerID,
		SellRequestID: chi.URLParam(r, "sell_request_id"),
		Shares:        req.Shares,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, toHoldResponse(hold))
}

// GetHold handles GET /holds/{hold_id}.
func (h *MarketHandler) GetHold(w http.ResponseWriter, r *http.Request) {
	hold, err := h.svc.GetHold(r.Context(), chi.URLParam(r, "hold_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toHoldResponse(hold))
}

// ConfirmHold handles POST /holds/{hold_id}/confirm.
func (h *MarketHandler) ConfirmHold(w http.ResponseWriter, r *http.Request) {
	var req confirmHoldRequest
	if err := ParseJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	hold, err := h.svc.ConfirmHold(r.Context(), service.ConfirmHoldRequest{
		HoldID:  chi.URLParam(r, "hold_id"),
		ActorID: req.UserID,
		Party:   domain.Party(req.Party),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toHoldResponse(hold))
}

// CancelHold handles POST /holds/{hold_id}/cancel.
func (h *MarketHandler) CancelHold(w http.ResponseWriter, r *http.Request) {
	var req cancelHoldRequest
	if err := ParseJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	hold, err := h.svc.CancelHold(r.Context(), chi.URLParam(r, "hold_id"), req.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toHoldResponse(hold))
}
