package engine

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/efreitasn/shareledger/internal/domain"
	"github.com/efreitasn/shareledger/internal/store"
)

// refreshPositions recomputes the snapshots of keys from history visible to
// tx, locking them in ascending key order.
func refreshPositions(tx store.Tx, now time.Time, keys ...domain.PositionKey) error {
	sorted := append([]domain.PositionKey(nil), keys...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	for _, key := range sorted {
		if _, _, err := refreshPosition(tx, key, now); err != nil {
			return err
		}
	}
	return nil
}

// lockPositions locks keys in ascending order.
func lockPositions(tx store.Tx, keys ...domain.PositionKey) error {
	sorted := append([]domain.PositionKey(nil), keys...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })
	for _, key := range sorted {
		if _, err := tx.LockPosition(key); err != nil {
			return err
		}
	}
	return nil
}

// refreshPosition rebuilds one snapshot and reports whether it changed.
func refreshPosition(tx store.Tx, key domain.PositionKey, now time.Time) (*domain.PositionSnapshot, bool, error) {
	stored, err := tx.LockPosition(key)
	if err != nil {
		return nil, false, err
	}
	investments, err := tx.ListInvestments(key)
	if err != nil {
		return nil, false, err
	}
	holds, err := tx.ListSettledHolds(key)
	if err != nil {
		return nil, false, err
	}

	snap := domain.ComputePosition(key, investments, holds, now)
	if snap.SameAs(stored) {
		return stored, false, nil
	}
	if err := tx.SavePosition(snap); err != nil {
		return nil, false, err
	}
	return snap, true, nil
}

// GetPosition returns the current snapshot for (userID, propertyID).
func (e *Engine) GetPosition(ctx context.Context, userID, propertyID string) (*domain.PositionSnapshot, error) {
	return e.store.Position(ctx, domain.PositionKey{UserID: userID, PropertyID: propertyID})
}

// RebuildPositions recomputes every snapshot from durable history and
// returns how many differed from what was stored.
func (e *Engine) RebuildPositions(ctx context.Context) (int, error) {
	keys, err := e.store.PositionKeys(ctx)
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, key := range keys {
		var updated bool
		err := e.store.Do(ctx, func(tx store.Tx) error {
			var err error
			_, updated, err = refreshPosition(tx, key, e.now())
			return err
		})
		if err != nil {
			return changed, err
		}
		if updated {
			changed++
			e.log.Warn("position snapshot repaired",
				zap.String("user_id", key.UserID),
				zap.String("property_id", key.PropertyID),
			)
		}
	}

	e.log.Info("positions rebuilt", zap.Int("keys", len(keys)), zap.Int("changed", changed))
	return changed, nil
}
