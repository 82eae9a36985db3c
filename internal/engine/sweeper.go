package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/efreitasn/shareledger/internal/domain"
	"github.com/efreitasn/shareledger/internal/store"
)

// SweepResult counts what one sweep expired.
type SweepResult struct {
	HoldsExpired        int
	SellRequestsExpired int
}

// Sweep expires pending holds past hold_expires_at, returning their shares
// to the parent sell request, and then expires sell requests past
// expires_at that still have remaining shares and no pending holds. No cash
// moves: holds that never settled never touched the ledger.
//
// Every row is expired in its own unit of work after re-checking its state
// under lock, so concurrent sweeps (or a sweep racing a settlement) expire
// each row at most once. Failures on individual rows are logged and
// returned joined; the sweep carries on with the rest.
func (e *Engine) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	now := e.now()

	holdIDs, err := e.store.ExpiredHoldIDs(ctx, now, sweepBatch)
	if err != nil {
		return result, err
	}

	var errs []error
	for _, id := range holdIDs {
		expired, err := e.expireHold(ctx, id, now)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			e.log.Warn("expire hold failed", zap.String("hold_id", id), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if expired {
			result.HoldsExpired++
		}
	}

	srIDs, err := e.store.ExpiredSellRequestIDs(ctx, now, sweepBatch)
	if err != nil {
		return result, err
	}
	for _, id := range srIDs {
		expired, err := e.expireSellRequest(ctx, id, now)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			e.log.Warn("expire sell request failed", zap.String("sell_request_id", id), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if expired {
			result.SellRequestsExpired++
		}
	}

	if result.HoldsExpired > 0 || result.SellRequestsExpired > 0 {
		e.log.Info("sweep completed",
			zap.Int("holds_expired", result.HoldsExpired),
			zap.Int("sell_requests_expired", result.SellRequestsExpired),
		)
	}
	return result, errors.Join(errs...)
}

// expireHold expires one hold. The hold's status is re-checked under the
// sell request and hold locks; it may have settled, been cancelled, or been
// expired by another sweeper since it was listed.
func (e *Engine) expireHold(ctx context.Context, holdID string, now time.Time) (bool, error) {
	expired := false
	_, err := e.withHold(ctx, holdID, func(tx store.Tx, sr *domain.SellRequest, h *domain.ShareHold, _ time.Time) error {
		if !h.Lapsed(now) {
			return nil
		}

		if err := releaseHold(tx, sr, h, domain.HoldStatusExpired, now); err != nil {
			return err
		}
		expired = true
		return nil
	})
	if errors.Is(err, domain.ErrHoldNotFound) {
		return false, nil
	}
	return expired, err
}

// expireSellRequest expires one sell request if, under its lock, it is still
// open, past its deadline, has remaining shares and no pending holds.
func (e *Engine) expireSellRequest(ctx context.Context, id string, now time.Time) (bool, error) {
	expired := false
	err := e.store.Do(ctx, func(tx store.Tx) error {
		sr, err := tx.LockSellRequest(id)
		if err != nil {
			return err
		}
		if sr.Closed() || now.Before(sr.ExpiresAt) || sr.RemainingShares == 0 {
			return nil
		}

		pending, err := tx.ListPendingHolds(id)
		if err != nil {
			return err
		}
		if len(pending) > 0 {
			return nil
		}

		sr.Close(domain.SellRequestStatusExpired, now)
		if err := tx.SaveSellRequest(sr); err != nil {
			return err
		}
		expired = true
		return nil
	})
	if errors.Is(err, domain.ErrSellRequestNotFound) {
		return false, nil
	}
	return expired, err
}
