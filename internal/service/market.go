package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/shareledger/internal/domain"
	"github.com/efreitasn/shareledger/internal/engine"
)

// CreateSellRequestRequest represents the input for listing owned shares.
type CreateSellRequestRequest struct {
	SellerID      string
	PropertyID    string
	Shares        int64
	PricePerShare decimal.Decimal
	ExpiresAt     *time.Time
}

// PlaceHoldRequest represents a buyer's reservation against a sell request.
type PlaceHoldRequest struct {
	BuyerID       string
	SellRequestID string
	Shares        int64
}

// ConfirmHoldRequest represents one party's confirmation of a hold.
type ConfirmHoldRequest struct {
	HoldID  string
	ActorID string
	Party   domain.Party
}

// MarketService handles the secondary market: sell requests, holds and
// confirmations.
type MarketService struct {
	engine *engine.Engine
}

// NewMarketService creates a new MarketService.
func NewMarketService(eng *engine.Engine) *MarketService {
	return &MarketService{engine: eng}
}

// CreateSellRequest validates the request and opens a sell request.
func (s *MarketService) CreateSellRequest(ctx context.Context, req CreateSellRequestRequest) (*domain.SellRequest, error) {
	if err := validateID("seller_id", req.SellerID); err != nil {
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
	if req.ExpiresAt == nil {
		return nil, &domain.ValidationError{Message: "expires_at is required"}
	}

	return s.engine.CreateSellRequest(ctx, engine.CreateSellRequestInput{
		SellerID:      req.SellerID,
		PropertyID:    req.PropertyID,
		Shares:        req.Shares,
		PricePerShare: req.PricePerShare,
		ExpiresAt:     req.ExpiresAt.UTC(),
	})
}

// GetSellRequest returns a sell request by id.
func (s *MarketService) GetSellRequest(ctx context.Context, id string) (*domain.SellRequest, error) {
	return s.engine.GetSellRequest(ctx, id)
}

// CancelSellRequest withdraws the seller's open sell request.
func (s *MarketService) CancelSellRequest(ctx context.Context, sellerID, id string) (*domain.SellRequest, error) {
	if err := validateID("seller_id", sellerID); err != nil {
		return nil, err
	}
	return s.engine.CancelSellRequest(ctx, sellerID, id)
}

// PlaceHold validates the request and reserves shares for the buyer.
func (s *MarketService) PlaceHold(ctx context.Context, req PlaceHoldRequest) (*domain.ShareHold, error) {
	if err := validateID("buyer_id", req.BuyerID); err != nil {
		return nil, err
	}
	if err := validateShares("shares", req.Shares); err != nil {
		return nil, err
	}
	return s.engine.PlaceHold(ctx, engine.PlaceHoldInput{
		BuyerID:       req.BuyerID,
		SellRequestID: req.SellRequestID,
		Shares:        req.Shares,
	})
}

// GetHold returns a hold by id.
func (s *MarketService) GetHold(ctx context.Context, id string) (*domain.ShareHold, error) {
	return s.engine.GetHold(ctx, id)
}

// ConfirmHold records one party's confirmation. The second confirmation
// settles the trade.
func (s *MarketService) ConfirmHold(ctx context.Context, req ConfirmHoldRequest) (*domain.ShareHold, error) {
	if err := validateID("user_id", req.ActorID); err != nil {
		return nil, err
	}
	if req.Party != domain.PartyBuyer && req.Party != domain.PartySeller {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("Invalid party: '%s'. Must be one of: buyer, seller", req.Party),
		}
	}
	return s.engine.ConfirmHold(ctx, req.HoldID, req.ActorID, req.Party)
}

// CancelHold lets either party abandon a pending hold.
func (s *MarketService) CancelHold(ctx context.Context, holdID, actorID string) (*domain.ShareHold, error) {
	if err := validateID("user_id", actorID); err != nil {
		return nil, err
	}
	return s.engine.CancelHold(ctx, holdID, actorID)
}
