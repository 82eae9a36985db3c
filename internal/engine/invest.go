package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/efreitasn/shareledger/internal/domain"
	"github.com/efreitasn/shareledger/internal/store"
)

// InvestRequest is a primary-market purchase of shares from a property's
// inventory.
type InvestRequest struct {
	UserID         string
	PropertyID     string
	Shares         int64
	PricePerShare  decimal.Decimal
	IdempotencyKey string
}

// hash fingerprints the economic content of the request so that a reused
// idempotency key can be told apart from a genuine retry.
func (r InvestRequest) hash() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%s",
		r.UserID, r.PropertyID, r.Shares, r.PricePerShare.StringFixed(domain.MoneyScale))))
	return hex.EncodeToString(sum[:])
}

// InvestResult is the outcome of Invest. Replayed is true when the
// idempotency key had already been processed and Investment is the
// original record.
type InvestResult struct {
	Investment *domain.Investment
	Replayed   bool
}

// Invest converts cash into a confirmed investment in one unit of work:
// inventory decrement, ledger debit, Investment and Transaction inserts,
// sold-out transition and position refresh all commit together or not at
// all.
func (e *Engine) Invest(ctx context.Context, req InvestRequest) (*InvestResult, error) {
	if req.Shares <= 0 {
		return nil, &domain.ValidationError{Message: "shares must be greater than 0"}
	}
	if err := domain.ValidateMoney("price_per_share", req.PricePerShare); err != nil {
		return nil, err
	}
	if req.IdempotencyKey == "" {
		return nil, &domain.ValidationError{Message: "idempotency key is required"}
	}

	var result InvestResult
	err := e.store.Do(ctx, func(tx store.Tx) error {
		now := e.now()
		hash := req.hash()

		// Step 1: Idempotency.
		rec, err := tx.LockIdempotencyKey(req.IdempotencyKey)
		if err != nil {
			return err
		}
		if rec != nil {
			if rec.RequestHash != hash {
				return domain.ErrIdempotencyConflict
			}
			prior, err := tx.Investment(rec.InvestmentID)
			if err != nil {
				return err
			}
			result = InvestResult{Investment: prior, Replayed: true}
			return nil
		}

		// Step 2: Verification, read server-side.
		status, err := tx.Verification(req.UserID)
		if err != nil {
			return err
		}
		if status != domain.VerificationApproved {
			return domain.ErrVerificationRequired
		}

		// Step 3: Inventory.
		inv, err := tx.LockInventory(req.PropertyID)
		if err != nil {
			return err
		}
		if !req.PricePerShare.Equal(inv.SharePrice) {
			return domain.ErrPriceMismatch
		}
		if inv.AvailableShares < req.Shares {
			return domain.ErrInsufficientShares
		}

		// Step 4: Funds. debit checks and mutates under the balance lock.
		amount := domain.Amount(req.Shares, req.PricePerShare)
		if err := debit(tx, req.UserID, amount, now, addInvested(amount)); err != nil {
			return err
		}

		// Step 5: Inventory decrement plus records.
		inv.AvailableShares -= req.Shares
		inv.UpdatedAt = now
		// Step 6: Sold out.
		if inv.AvailableShares == 0 {
			inv.Status = domain.PropertyStatusSoldOut
		}
		if err := tx.SaveInventory(inv); err != nil {
			return err
		}

		investment := &domain.Investment{
			InvestmentID:   newID(),
			UserID:         req.UserID,
			PropertyID:     req.PropertyID,
			Shares:         req.Shares,
			PricePerShare:  req.PricePerShare,
			TotalAmount:    amount,
			Status:         domain.InvestmentStatusConfirmed,
			IdempotencyKey: req.IdempotencyKey,
			CreatedAt:      now,
		}
		if err := tx.InsertInvestment(investment); err != nil {
			return err
		}
		if err := recordTransaction(tx, req.UserID, domain.TransactionInvestment, amount, investment.InvestmentID, now); err != nil {
			return err
		}
		if err := tx.SaveIdempotencyKey(&domain.IdempotencyRecord{
			Key:          req.IdempotencyKey,
			RequestHash:  hash,
			InvestmentID: investment.InvestmentID,
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		if err := refreshPositions(tx, now, domain.PositionKey{UserID: req.UserID, PropertyID: req.PropertyID}); err != nil {
			return err
		}

		result = InvestResult{Investment: investment}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Replayed {
		e.log.Info("investment replayed",
			zap.String("investment_id", result.Investment.InvestmentID),
			zap.String("idempotency_key", req.IdempotencyKey),
		)
	} else {
		e.log.Info("investment confirmed",
			zap.String("investment_id", result.Investment.InvestmentID),
			zap.String("user_id", req.UserID),
			zap.String("property_id", req.PropertyID),
			zap.Int64("shares", req.Shares),
		)
	}
	return &result, nil
}
