package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// HoldStatus represents the lifecycle state of a share hold.
type HoldStatus string

const (
	HoldStatusPending HoldStatus = "pending"
	// HoldStatusConfirmed is never persisted: a hold whose two flags are set
	// settles within the same unit of work.
	HoldStatusConfirmed HoldStatus = "confirmed"
	HoldStatusSettled   HoldStatus = "settled"
	HoldStatusExpired   HoldStatus = "expired"
	HoldStatusCancelled HoldStatus = "cancelled"
)

// Party identifies which side of a hold is acting.
type Party string

const (
	PartyBuyer  Party = "buyer"
	PartySeller Party = "seller"
)

// ShareHold reserves shares of a sell request for one buyer until both
// parties confirm or the hold expires. Seller, property and price are copied
// from the sell request when the hold is placed.
type ShareHold struct {
	HoldID          string
	SellRequestID   string
	BuyerID         string
	SellerID        string
	PropertyID      string
	SharesHeld      int64
	PricePerShare   decimal.Decimal
	BuyerConfirmed  bool
	SellerConfirmed bool
	Status          HoldStatus
	HoldExpiresAt   time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	SettledAt       *time.Time
}

// Clone returns a copy safe to mutate independently.
func (h *ShareHold) Clone() *ShareHold {
	c := *h
	if h.SettledAt != nil {
		t := *h.SettledAt
		c.SettledAt = &t
	}
	return &c
}

// Amount is the gross cash that changes hands on settlement.
func (h *ShareHold) Amount() decimal.Decimal {
	return Amount(h.SharesHeld, h.PricePerShare)
}

// Lapsed reports whether a pending hold has passed its deadline.
func (h *ShareHold) Lapsed(now time.Time) bool {
	return h.Status == HoldStatusPending && !now.Before(h.HoldExpiresAt)
}

// ReadyToSettle is the single guard for settlement: both parties confirmed.
func (h *ShareHold) ReadyToSettle() bool {
	return h.Status == HoldStatusPending && h.BuyerConfirmed && h.SellerConfirmed
}

// Confirm records actorID's confirmation as party.
func (h *ShareHold) Confirm(party Party, actorID string, now time.Time) error {
	if h.Status != HoldStatusPending {
		return ErrHoldNotPending
	}
	if h.Lapsed(now) {
		return ErrHoldExpired
	}
	switch party {
	case PartyBuyer:
		if actorID != h.BuyerID {
			return ErrNotHoldParty
		}
		h.BuyerConfirmed = true
	case PartySeller:
		if actorID != h.SellerID {
			return ErrNotHoldParty
		}
		h.SellerConfirmed = true
	default:
		return ErrNotHoldParty
	}
	h.UpdatedAt = now
	return nil
}

// Settle marks the hold settled.
func (h *ShareHold) Settle(now time.Time) {
	h.Status = HoldStatusSettled
	h.UpdatedAt = now
	h.SettledAt = &now
}

// Resolve moves a pending hold to expired or cancelled.
func (h *ShareHold) Resolve(status HoldStatus, now time.Time) {
	h.Status = status
	h.UpdatedAt = now
}
