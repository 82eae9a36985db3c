package engine

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/efreitasn/shareledger/internal/domain"
	"github.com/efreitasn/shareledger/internal/store"
)

// RegisterProperty creates the share inventory of a newly listed property.
// It fails with ErrPropertyAlreadyExists when propertyID is taken.
func (e *Engine) RegisterProperty(ctx context.Context, propertyID string, totalShares int64, sharePrice decimal.Decimal) (*domain.PropertyInventory, error) {
	if propertyID == "" {
		return nil, &domain.ValidationError{Message: "property_id is required"}
	}
	if totalShares <= 0 {
		return nil, &domain.ValidationError{Message: "total_shares must be greater than 0"}
	}
	if err := domain.ValidateMoney("share_price", sharePrice); err != nil {
		return nil, err
	}

	now := e.now()
	inv := &domain.PropertyInventory{
		PropertyID:      propertyID,
		TotalShares:     totalShares,
		AvailableShares: totalShares,
		SharePrice:      sharePrice,
		Status:          domain.PropertyStatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err := e.store.Do(ctx, func(tx store.Tx) error {
		return tx.CreateInventory(inv)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("property registered",
		zap.String("property_id", propertyID),
		zap.Int64("total_shares", totalShares),
	)
	return inv, nil
}

// GetInventory returns the committed inventory of propertyID.
func (e *Engine) GetInventory(ctx context.Context, propertyID string) (*domain.PropertyInventory, error) {
	return e.store.Inventory(ctx, propertyID)
}
