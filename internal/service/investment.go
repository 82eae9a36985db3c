package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/shareledger/internal/domain"
	"github.com/efreitasn/shareledger/internal/engine"
	"github.com/efreitasn/shareledger/internal/store"
)

// InvestRequest represents the input for a primary-market investment.
type InvestRequest struct {
	UserID         string
	PropertyID     string
	Shares         int64
	PricePerShare  decimal.Decimal
	IdempotencyKey string
}

// InvestmentService validates and executes primary-market investments.
type InvestmentService struct {
	engine *engine.Engine
	store  store.Reader
}

// NewInvestmentService creates a new InvestmentService.
func NewInvestmentService(eng *engine.Engine, s store.Reader) *InvestmentService {
	return &InvestmentService{engine: eng, store: s}
}

// Invest validates the request shape and hands it to the engine. Replayed
// requests return the original investment with Replayed set.
func (s *InvestmentService) Invest(ctx context.Context, req InvestRequest) (*engine.InvestResult, error) {
	if err := validateID("user_id", req.UserID); err != nil {
		return nil, err
	}
	if err := validateID("property_id", req.PropertyID); err != nil {
		return nil, err
	}
	if err := validateShares("shares", req.Shares); err != nil {
		return nil, err
	}
	if err := domain.ValidateMoney("price_per_share", req.PricePerShare); err != nil {
		return nil, err
	}
	if !idempotencyKeyRegex.MatchString(req.IdempotencyKey) {
		return nil, &domain.ValidationError{
			Message: "Idempotency-Key must be 1 to 128 printable ASCII characters without spaces",
		}
	}

	return s.engine.Invest(ctx, engine.InvestRequest{
		UserID:         req.UserID,
		PropertyID:     req.PropertyID,
		Shares:         req.Shares,
		PricePerShare:  req.PricePerShare,
		IdempotencyKey: req.IdempotencyKey,
	})
}

// Get returns an investment by id.
func (s *InvestmentService) Get(ctx context.Context, investmentID string) (*domain.Investment, error) {
	return s.store.Investment(ctx, investmentID)
}
