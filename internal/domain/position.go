package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// PositionKey identifies a (user, property) pair.
type PositionKey struct {
	UserID     string
	PropertyID string
}

// Less orders keys by user then property. Lock acquisition over several
// positions follows this order.
func (k PositionKey) Less(o PositionKey) bool {
	if k.UserID != o.UserID {
		return k.UserID < o.UserID
	}
	return k.PropertyID < o.PropertyID
}

// PositionSnapshot is the derived holding of one user in one property.
// It is a cache over Investment and settled ShareHold history and is only
// ever written with the output of ComputePosition.
type PositionSnapshot struct {
	UserID     string
	PropertyID string
	Shares     int64
	AvgPrice   decimal.Decimal
	CostBasis  decimal.Decimal
	UpdatedAt  time.Time
}

// NewPositionSnapshot returns an empty position.
func NewPositionSnapshot(key PositionKey, now time.Time) *PositionSnapshot {
	return &PositionSnapshot{
		UserID:     key.UserID,
		PropertyID: key.PropertyID,
		AvgPrice:   decimal.Zero,
		CostBasis:  decimal.Zero,
		UpdatedAt:  now,
	}
}

// Key returns the snapshot's (user, property) pair.
func (p *PositionSnapshot) Key() PositionKey {
	return PositionKey{UserID: p.UserID, PropertyID: p.PropertyID}
}

// Clone returns a copy safe to mutate independently.
func (p *PositionSnapshot) Clone() *PositionSnapshot {
	c := *p
	return &c
}

// SameAs reports whether two snapshots hold the same figures.
func (p *PositionSnapshot) SameAs(o *PositionSnapshot) bool {
	return p.Shares == o.Shares && p.CostBasis.Equal(o.CostBasis) && p.AvgPrice.Equal(o.AvgPrice)
}

type positionEvent struct {
	at     time.Time
	id     string
	shares int64 // negative for disposals
	price  decimal.Decimal
}

// ComputePosition folds the durable history of key into a snapshot.
// Acquisitions are confirmed investments and settled holds where the user
// bought; disposals are settled holds where the user sold. Disposals remove
// cost basis at the running average cost. The function is pure: the same
// history always yields the same snapshot.
func ComputePosition(key PositionKey, investments []*Investment, holds []*ShareHold, now time.Time) *PositionSnapshot {
	events := make([]positionEvent, 0, len(investments)+len(holds))
	for _, inv := range investments {
		if inv.Status != InvestmentStatusConfirmed || inv.UserID != key.UserID || inv.PropertyID != key.PropertyID {
			continue
		}
		events = append(events, positionEvent{at: inv.CreatedAt, id: inv.InvestmentID, shares: inv.Shares, price: inv.PricePerShare})
	}
	for _, h := range holds {
		if h.Status != HoldStatusSettled || h.PropertyID != key.PropertyID || h.SettledAt == nil {
			continue
		}
		switch key.UserID {
		case h.BuyerID:
			events = append(events, positionEvent{at: *h.SettledAt, id: h.HoldID, shares: h.SharesHeld, price: h.PricePerShare})
		case h.SellerID:
			events = append(events, positionEvent{at: *h.SettledAt, id: h.HoldID, shares: -h.SharesHeld, price: h.PricePerShare})
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].at.Equal(events[j].at) {
			return events[i].at.Before(events[j].at)
		}
		// Same instant: acquisitions before disposals.
		if (events[i].shares > 0) != (events[j].shares > 0) {
			return events[i].shares > 0
		}
		return events[i].id < events[j].id
	})

	snap := NewPositionSnapshot(key, now)
	for _, e := range events {
		if e.shares > 0 {
			snap.Shares += e.shares
			snap.CostBasis = snap.CostBasis.Add(Amount(e.shares, e.price))
			continue
		}
		sold := -e.shares
		if sold >= snap.Shares {
			snap.Shares = 0
			snap.CostBasis = decimal.Zero
			continue
		}
		removed := snap.CostBasis.Mul(decimal.NewFromInt(sold)).DivRound(decimal.NewFromInt(snap.Shares), priceScale)
		snap.Shares -= sold
		snap.CostBasis = snap.CostBasis.Sub(removed)
	}
	if snap.Shares > 0 {
		snap.AvgPrice = snap.CostBasis.DivRound(decimal.NewFromInt(snap.Shares), priceScale)
	}
	return snap
}
