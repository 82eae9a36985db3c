package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EscrowBalance is a user's cash position in the escrow ledger.
// AvailableBalance never goes below zero; only the ledger's Debit and
// Credit primitives mutate it.
type EscrowBalance struct {
	UserID           string
	AvailableBalance decimal.Decimal
	PendingBalance   decimal.Decimal
	TotalInvested    decimal.Decimal
	TotalReturns     decimal.Decimal
	UpdatedAt        time.Time
}

// NewEscrowBalance returns an empty balance row for userID.
func NewEscrowBalance(userID string, now time.Time) *EscrowBalance {
	return &EscrowBalance{
		UserID:           userID,
		AvailableBalance: decimal.Zero,
		PendingBalance:   decimal.Zero,
		TotalInvested:    decimal.Zero,
		TotalReturns:     decimal.Zero,
		UpdatedAt:        now,
	}
}

// Clone returns a copy safe to mutate independently.
func (b *EscrowBalance) Clone() *EscrowBalance {
	c := *b
	return &c
}
