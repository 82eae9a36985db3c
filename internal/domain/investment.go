package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvestmentStatus is the lifecycle state of a primary-market purchase.
type InvestmentStatus string

const (
	InvestmentStatusPending   InvestmentStatus = "pending"
	InvestmentStatusConfirmed InvestmentStatus = "confirmed"
	InvestmentStatusCancelled InvestmentStatus = "cancelled"
)

// Investment is the immutable record of a confirmed primary-market purchase.
// Corrections are new records, never edits.
type Investment struct {
	InvestmentID   string
	UserID         string
	PropertyID     string
	Shares         int64
	PricePerShare  decimal.Decimal
	TotalAmount    decimal.Decimal
	Status         InvestmentStatus
	IdempotencyKey string
	CreatedAt      time.Time
}

// Clone returns a copy safe to mutate independently.
func (i *Investment) Clone() *Investment {
	c := *i
	return &c
}
