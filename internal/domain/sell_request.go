package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SellRequestStatus represents the lifecycle state of a sell request.
type SellRequestStatus string

const (
	SellRequestStatusActive        SellRequestStatus = "active"
	SellRequestStatusPartiallyHeld SellRequestStatus = "partially_held"
	SellRequestStatusSoldOut       SellRequestStatus = "sold_out"
	SellRequestStatusExpired       SellRequestStatus = "expired"
	SellRequestStatusCancelled     SellRequestStatus = "cancelled"
)

// SellRequest is a seller's offer of shares on the secondary market.
// RemainingShares shrinks as holds are placed and grows back when holds
// expire or are cancelled; it never goes negative.
type SellRequest struct {
	SellRequestID   string
	SellerID        string
	PropertyID      string
	SharesToSell    int64
	RemainingShares int64
	PricePerShare   decimal.Decimal
	Status          SellRequestStatus
	ExpiresAt       time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ClosedAt        *time.Time
}

// Clone returns a copy safe to mutate independently.
func (s *SellRequest) Clone() *SellRequest {
	c := *s
	if s.ClosedAt != nil {
		t := *s.ClosedAt
		c.ClosedAt = &t
	}
	return &c
}

// Closed reports whether the request reached a terminal state.
func (s *SellRequest) Closed() bool {
	return s.Status == SellRequestStatusExpired || s.Status == SellRequestStatusCancelled
}

// Committed returns how many unheld shares the request still pledges out of
// the seller's position. Shares inside pending holds are counted by the holds.
func (s *SellRequest) Committed() int64 {
	if s.Closed() {
		return 0
	}
	return s.RemainingShares
}

// Reserve takes shares out of RemainingShares for a new hold. It fails
// without partially filling when fewer than shares remain.
func (s *SellRequest) Reserve(shares int64, now time.Time) error {
	if s.Closed() || !now.Before(s.ExpiresAt) {
		return ErrSellRequestNotActive
	}
	if shares > s.RemainingShares {
		return ErrInsufficientRemainingShares
	}
	s.RemainingShares -= shares
	s.UpdatedAt = now
	s.refreshStatus()
	return nil
}

// Release returns shares from an expired or cancelled hold. Closed requests
// take the shares back into RemainingShares but keep their terminal status.
func (s *SellRequest) Release(shares int64, now time.Time) {
	s.RemainingShares += shares
	s.UpdatedAt = now
	if !s.Closed() {
		s.refreshStatus()
	}
}

// Close moves the request into a terminal status.
func (s *SellRequest) Close(status SellRequestStatus, now time.Time) {
	s.Status = status
	s.UpdatedAt = now
	s.ClosedAt = &now
}

func (s *SellRequest) refreshStatus() {
	switch {
	case s.RemainingShares == 0:
		s.Status = SellRequestStatusSoldOut
	case s.RemainingShares < s.SharesToSell:
		s.Status = SellRequestStatusPartiallyHeld
	default:
		s.Status = SellRequestStatusActive
	}
}
