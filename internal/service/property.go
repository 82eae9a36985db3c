package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/shareledger/internal/domain"
	"github.com/efreitasn/shareledger/internal/engine"
)

// RegisterPropertyRequest lists a property's shares for primary sale.
type RegisterPropertyRequest struct {
	PropertyID  string
	TotalShares int64
	SharePrice  decimal.Decimal
}

// PropertyService handles property inventory registration and lookups.
type PropertyService struct {
	engine *engine.Engine
}

// NewPropertyService creates a new PropertyService.
func NewPropertyService(eng *engine.Engine) *PropertyService {
	return &PropertyService{engine: eng}
}

// Register validates the request and creates the property's inventory.
func (s *PropertyService) Register(ctx context.Context, req RegisterPropertyRequest) (*domain.PropertyInventory, error) {
	if err := validateID("property_id", req.PropertyID); err != nil {
		return nil, err
	}
	if err := validateShares("total_shares", req.TotalShares); err != nil {
		return nil, err
	}
	if err := domain.ValidateMoney("share_price", req.SharePrice); err != nil {
		return nil, err
	}
	return s.engine.RegisterProperty(ctx, req.PropertyID, req.TotalShares, req.SharePrice)
}

// Get returns the property's current inventory.
func (s *PropertyService) Get(ctx context.Context, propertyID string) (*domain.PropertyInventory, error) {
	if err := validateID("property_id", propertyID); err != nil {
		return nil, err
	}
	return s.engine.GetInventory(ctx, propertyID)
}
