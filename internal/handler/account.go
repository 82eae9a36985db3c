package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/shareledger/internal/domain"
	"github.com/efreitasn/shareledger/internal/service"
)

// AccountHandler handles HTTP requests for escrow accounts, ledger history,
// verification status and positions.
type AccountHandler struct {
	svc *service.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(svc *service.AccountService) *AccountHandler {
	return &AccountHandler{svc: svc}
}

// moneyMovementRequest is the JSON body for deposits and withdrawals.
type moneyMovementRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
}

type verificationRequest struct {
	Status string `json:"status"`
}

type balanceResponse struct {
	UserID           string `json:"user_id"`
	AvailableBalance string `json:"available_balance"`
	PendingBalance   string `json:"pending_balance"`
	TotalInvested    string `json:"total_invested"`
	TotalReturns     string `json:"total_returns"`
	UpdatedAt        string `json:"updated_at"`
}

type transactionResponse struct {
	TransactionID string `json:"transaction_id"`
	Type          string `json:"type"`
	Amount        string `json:"amount"`
	Status        string `json:"status"`
	ReferenceID   string `json:"reference_id,omitempty"`
	CreatedAt     string `json:"created_at"`
}

type transactionListResponse struct {
	Transactions []transactionResponse `json:"transactions"`
	Total        int                   `json:"total"`
	Page         int                   `json:"page"`
	Limit        int                   `json:"limit"`
}

type positionResponse struct {
	UserID     string `json:"user_id"`
	PropertyID string `json:"property_id"`
	Shares     int64  `json:"shares"`
	AvgPrice   string `json:"avg_price"`
	CostBasis  string `json:"cost_basis"`
	UpdatedAt  string `json:"updated_at"`
}

func toBalanceResponse(b *domain.EscrowBalance) balanceResponse {
	return balanceResponse{
		UserID:           b.UserID,
		AvailableBalance: money(b.AvailableBalance),
		PendingBalance:   money(b.PendingBalance),
		TotalInvested:    money(b.TotalInvested),
		TotalReturns:     money(b.TotalReturns),
		UpdatedAt:        formatTime(b.UpdatedAt),
	}
}

// GetBalance handles GET /accounts/{user_id}/balance.
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.Balance(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toBalanceResponse(b))
}

// Deposit handles POST /accounts/{user_id}/deposits.
func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.moveMoney(w, r, h.svc.Deposit)
}

// Withdraw handles POST /accounts/{user_id}/withdrawals.
func (h *AccountHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.moveMoney(w, r, h.svc.Withdraw)
}

func (h *AccountHandler) moveMoney(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, req service.MoneyMovementRequest) (*domain.EscrowBalance, error),
) {
	var req moneyMovementRequest
	if err := ParseJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	b, err := fn(r.Context(), service.MoneyMovementRequest{
		UserID:    chi.URLParam(r, "user_id"),
		Amount:    req.Amount,
		Reference: req.Reference,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toBalanceResponse(b))
}

// SetVerification handles PUT /accounts/{user_id}/verification.
func (h *AccountHandler) SetVerification(w http.ResponseWriter, r *http.Request) {
	var req verificationRequest
	if err := ParseJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	userID := chi.URLParam(r, "user_id")
	if err := h.svc.SetVerification(r.Context(), userID, domain.VerificationStatus(req.Status)); err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"user_id": userID, "status": req.Status})
}

// ListTransactions handles GET /accounts/{user_id}/transactions.
func (h *AccountHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result, err := h.svc.Transactions(r.Context(), chi.URLParam(r, "user_id"), page, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	txns := make([]transactionResponse, len(result.Transactions))
	for i, t := range result.Transactions {
		txns[i] = transactionResponse{
			TransactionID: t.TransactionID,
			Type:          string(t.Type),
			Amount:        money(t.Amount),
			Status:        string(t.Status),
			ReferenceID:   t.ReferenceID,
			CreatedAt:     formatTime(t.CreatedAt),
		}
	}
	WriteJSON(w, http.StatusOK, transactionListResponse{
		Transactions: txns,
		Total:        result.Total,
		Page:         result.Page,
		Limit:        result.Limit,
	})
}

// GetPosition handles GET /accounts/{user_id}/positions/{property_id}.
func (h *AccountHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Position(r.Context(), chi.URLParam(r, "user_id"), chi.URLParam(r, "property_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, positionResponse{
		UserID:     p.UserID,
		PropertyID: p.PropertyID,
		Shares:     p.Shares,
		AvgPrice:   p.AvgPrice.String(),
		CostBasis:  p.CostBasis.String(),
		UpdatedAt:  formatTime(p.UpdatedAt),
	})
}
