package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/shareledger/internal/domain"
	"github.com/efreitasn/shareledger/internal/service"
)

// idempotencyHeader carries the caller's idempotency key for POST /investments.
const idempotencyHeader = "Idempotency-Key"

// InvestmentHandler handles HTTP requests for primary-market investments.
type InvestmentHandler struct {
	svc *service.InvestmentService
}

// NewInvestmentHandler creates a new InvestmentHandler.
func NewInvestmentHandler(svc *service.InvestmentService) *InvestmentHandler {
	return &InvestmentHandler{svc: svc}
}

type investRequest struct {
	UserID        string          `json:"user_id"`
	PropertyID    string          `json:"property_id"`
	Shares        int64           `json:"shares"`
	PricePerShare decimal.Decimal `json:"price_per_share"`
}

type investmentResponse struct {
	InvestmentID  string `json:"investment_id"`
	UserID        string `json:"user_id"`
	PropertyID    string `json:"property_id"`
	Shares        int64  `json:"shares"`
	PricePerShare string `json:"price_per_share"`
	TotalAmount   string `json:"total_amount"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
}

func toInvestmentResponse(inv *domain.Investment) investmentResponse {
	return investmentResponse{
		InvestmentID:  inv.InvestmentID,
		UserID:        inv.UserID,
		PropertyID:    inv.PropertyID,
		Shares:        inv.Shares,
		PricePerShare: money(inv.PricePerShare),
		TotalAmount:   money(inv.TotalAmount),
		Status:        string(inv.Status),
		CreatedAt:     formatTime(inv.CreatedAt),
	}
}

// Invest handles POST /investments. A replayed key answers 200 with the
// original investment instead of 201.
func (h *InvestmentHandler) Invest(w http.ResponseWriter, r *http.Request) {
	var req investRequest
	if err := ParseJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	res, err := h.svc.Invest(r.Context(), service.InvestRequest{
		UserID:         req.UserID,
		PropertyID:     req.PropertyID,
		Shares:         req.Shares,
		PricePerShare:  req.PricePerShare,
		IdempotencyKey: r.Header.Get(idempotencyHeader),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		w.Header().Set("Idempotent-Replayed", "true")
		status = http.StatusOK
	}
	WriteJSON(w, status, toInvestmentResponse(res.Investment))
}

// Get handles GET /investments/{investment_id}.
func (h *InvestmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.Get(r.Context(), chi.URLParam(r, "investment_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toInvestmentResponse(inv))
}
