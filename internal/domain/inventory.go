package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PropertyStatus is the listing state the core maintains as a side effect
// of inventory changes.
type PropertyStatus string

const (
	PropertyStatusActive  PropertyStatus = "active"
	PropertyStatusSoldOut PropertyStatus = "sold_out"
)

// PropertyInventory holds the primary-market share counters of one property.
// Invariant: 0 <= AvailableShares <= TotalShares.
type PropertyInventory struct {
	PropertyID      string
	TotalShares     int64
	AvailableShares int64
	SharePrice      decimal.Decimal
	Status          PropertyStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Clone returns a copy safe to mutate independently.
func (p *PropertyInventory) Clone() *PropertyInventory {
	c := *p
	return &c
}
