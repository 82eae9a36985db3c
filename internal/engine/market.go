package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/efreitasn/shareledger/internal/domain"
	"github.com/efreitasn/shareledger/internal/store"
)

// CreateSellRequestInput lists shares a seller already owns for sale.
type CreateSellRequestInput struct {
	SellerID      string
	PropertyID    string
	Shares        int64
	PricePerShare decimal.Decimal
	ExpiresAt     time.Time
}

// PlaceHoldInput reserves shares of a sell request for one buyer.
type PlaceHoldInput struct {
	BuyerID       string
	SellRequestID string
	Shares        int64
}

// CreateSellRequest opens a sell request. The seller's position row stays
// locked while the sellable quantity is computed, so two requests racing for
// the same shares cannot both pass the check.
//
// Sellable shares are the snapshot's shares minus everything already
// committed elsewhere: the remaining shares of the seller's open requests
// on the property and the shares of pending holds against any of them.
func (e *Engine) CreateSellRequest(ctx context.Context, in CreateSellRequestInput) (*domain.SellRequest, error) {
	if in.Shares <= 0 {
		return nil, &domain.ValidationError{Message: "shares must be greater than 0"}
	}
	if err := domain.ValidateMoney("price_per_share", in.PricePerShare); err != nil {
		return nil, err
	}

	var sr *domain.SellRequest
	err := e.store.Do(ctx, func(tx store.Tx) error {
		now := e.now()
		if !in.ExpiresAt.After(now) {
			return &domain.ValidationError{Message: "expires_at must be in the future"}
		}

		key := domain.PositionKey{UserID: in.SellerID, PropertyID: in.PropertyID}
		pos, err := tx.LockPosition(key)
		if err != nil {
			return err
		}

		committed, err := committedShares(tx, key)
		if err != nil {
			return err
		}
		if pos.Shares-committed < in.Shares {
			return domain.ErrInsufficientPosition
		}

		sr = &domain.SellRequest{
			SellRequestID:   newID(),
			SellerID:        in.SellerID,
			PropertyID:      in.PropertyID,
			SharesToSell:    in.Shares,
			RemainingShares: in.Shares,
			PricePerShare:   in.PricePerShare,
			Status:          domain.SellRequestStatusActive,
			ExpiresAt:       in.ExpiresAt,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		return tx.SaveSellRequest(sr)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("sell request created",
		zap.String("sell_request_id", sr.SellRequestID),
		zap.String("seller_id", sr.SellerID),
		zap.String("property_id", sr.PropertyID),
		zap.Int64("shares", sr.SharesToSell),
	)
	return sr, nil
}

// committedShares sums the seller's shares that are promised to buyers or
// still offered for sale on key's property.
func committedShares(tx store.Tx, key domain.PositionKey) (int64, error) {
	requests, err := tx.ListSellerSellRequests(key)
	if err != nil {
		return 0, err
	}
	holds, err := tx.ListSellerPendingHolds(key)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, sr := range requests {
		total += sr.Committed()
	}
	for _, h := range holds {
		total += h.SharesHeld
	}
	return total, nil
}

// CancelSellRequest withdraws an open sell request. Pending holds against it
// stay valid and may still settle; their shares come back to the closed
// request if they lapse.
func (e *Engine) CancelSellRequest(ctx context.Context, sellerID, sellRequestID string) (*domain.SellRequest, error) {
	var sr *domain.SellRequest
	err := e.store.Do(ctx, func(tx store.Tx) error {
		var err error
		sr, err = tx.LockSellRequest(sellRequestID)
		if err != nil {
			return err
		}
		if sr.SellerID != sellerID {
			return domain.ErrNotSeller
		}
		if sr.Closed() {
			return domain.ErrSellRequestNotActive
		}
		sr.Close(domain.SellRequestStatusCancelled, e.now())
		return tx.SaveSellRequest(sr)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("sell request cancelled", zap.String("sell_request_id", sellRequestID))
	return sr, nil
}

// GetSellRequest returns the committed sell request id.
func (e *Engine) GetSellRequest(ctx context.Context, id string) (*domain.SellRequest, error) {
	return e.store.SellRequest(ctx, id)
}

// PlaceHold reserves shares out of a sell request's remaining shares for the
// buyer. No money or shares move until both parties confirm.
func (e *Engine) PlaceHold(ctx context.Context, in PlaceHoldInput) (*domain.ShareHold, error) {
	if in.Shares <= 0 {
		return nil, &domain.ValidationError{Message: "shares must be greater than 0"}
	}

	var hold *domain.ShareHold
	err := e.store.Do(ctx, func(tx store.Tx) error {
		now := e.now()

		sr, err := tx.LockSellRequest(in.SellRequestID)
		if err != nil {
			return err
		}
		if sr.SellerID == in.BuyerID {
			return domain.ErrSelfTrade
		}

		status, err := tx.Verification(in.BuyerID)
		if err != nil {
			return err
		}
		if status != domain.VerificationApproved {
			return domain.ErrVerificationRequired
		}

		if err := sr.Reserve(in.Shares, now); err != nil {
			return err
		}
		if err := tx.SaveSellRequest(sr); err != nil {
			return err
		}

		hold = &domain.ShareHold{
			HoldID:        newID(),
			SellRequestID: sr.SellRequestID,
			BuyerID:       in.BuyerID,
			SellerID:      sr.SellerID,
			PropertyID:    sr.PropertyID,
			SharesHeld:    in.Shares,
			PricePerShare: sr.PricePerShare,
			Status:        domain.HoldStatusPending,
			HoldExpiresAt: now.Add(e.holdTTL),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		return tx.SaveHold(hold)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("hold placed",
		zap.String("hold_id", hold.HoldID),
		zap.String("sell_request_id", hold.SellRequestID),
		zap.String("buyer_id", hold.BuyerID),
		zap.Int64("shares", hold.SharesHeld),
	)
	return hold, nil
}

// GetHold returns the committed hold id.
func (e *Engine) GetHold(ctx context.Context, id string) (*domain.ShareHold, error) {
	return e.store.Hold(ctx, id)
}

// ConfirmHold records party's confirmation of a pending hold. The
// confirmation that completes the pair settles the trade in the same unit of
// work: if settlement fails (typically ErrInsufficientFunds on the buyer),
// the confirmation is not recorded either.
func (e *Engine) ConfirmHold(ctx context.Context, holdID, actorID string, party domain.Party) (*domain.ShareHold, error) {
	hold, err := e.withHold(ctx, holdID, func(tx store.Tx, sr *domain.SellRequest, h *domain.ShareHold, now time.Time) error {
		if err := h.Confirm(party, actorID, now); err != nil {
			return err
		}
		if h.ReadyToSettle() {
			return e.settle(tx, h, now)
		}
		return tx.SaveHold(h)
	})
	if err != nil {
		return nil, err
	}

	if hold.Status == domain.HoldStatusSettled {
		e.log.Info("hold settled",
			zap.String("hold_id", hold.HoldID),
			zap.String("buyer_id", hold.BuyerID),
			zap.String("seller_id", hold.SellerID),
			zap.Int64("shares", hold.SharesHeld),
			zap.String("amount", hold.Amount().String()),
		)
	} else {
		e.log.Debug("hold confirmed",
			zap.String("hold_id", hold.HoldID),
			zap.String("party", string(party)),
		)
	}
	return hold, nil
}

// CancelHold lets either party abandon a pending hold. Its shares return to
// the sell request.
func (e *Engine) CancelHold(ctx context.Context, holdID, actorID string) (*domain.ShareHold, error) {
	hold, err := e.withHold(ctx, holdID, func(tx store.Tx, sr *domain.SellRequest, h *domain.ShareHold, now time.Time) error {
		if actorID != h.BuyerID && actorID != h.SellerID {
			return domain.ErrNotHoldParty
		}
		if h.Status != domain.HoldStatusPending {
			return domain.ErrHoldNotPending
		}
		if h.Lapsed(now) {
			return domain.ErrHoldExpired
		}

		return releaseHold(tx, sr, h, domain.HoldStatusCancelled, now)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("hold cancelled", zap.String("hold_id", holdID), zap.String("actor_id", actorID))
	return hold, nil
}

// withHold runs fn with the hold and its sell request locked, in lock order.
// The sell request id is immutable, so reading it before taking any lock is
// safe.
func (e *Engine) withHold(ctx context.Context, holdID string, fn func(tx store.Tx, sr *domain.SellRequest, h *domain.ShareHold, now time.Time) error) (*domain.ShareHold, error) {
	peek, err := e.store.Hold(ctx, holdID)
	if err != nil {
		return nil, err
	}

	var hold *domain.ShareHold
	err = e.store.Do(ctx, func(tx store.Tx) error {
		sr, err := tx.LockSellRequest(peek.SellRequestID)
		if err != nil {
			return err
		}
		h, err := tx.LockHold(holdID)
		if err != nil {
			return err
		}
		if err := fn(tx, sr, h, e.now()); err != nil {
			return err
		}
		hold = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hold, nil
}

// releaseHold resolves a pending hold to status and hands its shares back to
// sr. The seller's position row is locked first: CreateSellRequest counts
// the seller's commitments under that lock, and moving shares from the hold
// to the request must not interleave with that count.
func releaseHold(tx store.Tx, sr *domain.SellRequest, h *domain.ShareHold, status domain.HoldStatus, now time.Time) error {
	if _, err := tx.LockPosition(domain.PositionKey{UserID: h.SellerID, PropertyID: h.PropertyID}); err != nil {
		return err
	}

	h.Resolve(status, now)
	if err := tx.SaveHold(h); err != nil {
		return err
	}
	sr.Release(h.SharesHeld, now)
	return tx.SaveSellRequest(sr)
}

// settle moves money and shares for a fully confirmed hold.
func (e *Engine) settle(tx store.Tx, h *domain.ShareHold, now time.Time) error {
	gross := h.Amount()
	fee := domain.FeeFor(gross, e.feeBPS)
	net := gross.Sub(fee)

	// Step 1: Lock both balances in id order, then move the cash.
	if err := lockBalances(tx, h.BuyerID, h.SellerID); err != nil {
		return err
	}
	if err := debit(tx, h.BuyerID, gross, now, addInvested(gross)); err != nil {
		return err
	}
	if err := credit(tx, h.SellerID, net, now, addReturns(net)); err != nil {
		return err
	}

	// Step 2: Ledger entries.
	if err := recordTransaction(tx, h.BuyerID, domain.TransactionSharePurchase, gross, h.HoldID, now); err != nil {
		return err
	}
	if err := recordTransaction(tx, h.SellerID, domain.TransactionShareSale, gross, h.HoldID, now); err != nil {
		return err
	}
	if fee.IsPositive() {
		if err := recordTransaction(tx, h.SellerID, domain.TransactionFee, fee, h.HoldID, now); err != nil {
			return err
		}
	}

	// Step 3: The seller must still own what was promised.
	sellerKey := domain.PositionKey{UserID: h.SellerID, PropertyID: h.PropertyID}
	buyerKey := domain.PositionKey{UserID: h.BuyerID, PropertyID: h.PropertyID}
	if err := lockPositions(tx, buyerKey, sellerKey); err != nil {
		return err
	}
	sellerPos, err := tx.LockPosition(sellerKey)
	if err != nil {
		return err
	}
	if sellerPos.Shares < h.SharesHeld {
		return domain.ErrInsufficientPosition
	}

	// Step 4: Transfer ownership. Positions are derived from settled holds,
	// so the hold is saved before the snapshots are rebuilt.
	h.Settle(now)
	if err := tx.SaveHold(h); err != nil {
		return err
	}
	return refreshPositions(tx, now, buyerKey, sellerKey)
}
