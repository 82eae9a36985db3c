package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

var testKey = PositionKey{UserID: "alice", PropertyID: "prop"}

func confirmedInvestment(id string, shares int64, price string, at time.Time) *Investment {
	return &Investment{
		InvestmentID:  id,
		UserID:        testKey.UserID,
		PropertyID:    testKey.PropertyID,
		Shares:        shares,
		PricePerShare: decimal.RequireFromString(price),
		Status:        InvestmentStatusConfirmed,
		CreatedAt:     at,
	}
}

func settledHold(id, buyer, seller string, shares int64, price string, at time.Time) *ShareHold {
	return &ShareHold{
		HoldID:        id,
		BuyerID:       buyer,
		SellerID:      seller,
		PropertyID:    testKey.PropertyID,
		SharesHeld:    shares,
		PricePerShare: decimal.RequireFromString(price),
		Status:        HoldStatusSettled,
		SettledAt:     &at,
	}
}

func TestComputePosition_Empty(t *testing.T) {
	snap := ComputePosition(testKey, nil, nil, time.Now())
	assert.Equal(t, int64(0), snap.Shares)
	assert.True(t, snap.CostBasis.IsZero())
	assert.True(t, snap.AvgPrice.IsZero())
}

func TestComputePosition_Acquisitions(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	investments := []*Investment{
		confirmedInvestment("i1", 10, "100", t0),
		confirmedInvestment("i2", 30, "120", t0.Add(time.Hour)),
	}
	holds := []*ShareHold{
		settledHold("h1", "alice", "bob", 10, "90", t0.Add(2*time.Hour)),
	}

	snap := ComputePosition(testKey, investments, holds, t0)

	// 10×100 + 30×120 + 10×90 = 5500 over 50 shares.
	assert.Equal(t, int64(50), snap.Shares)
	assert.True(t, snap.CostBasis.Equal(decimal.NewFromInt(5500)), "cost basis %s", snap.CostBasis)
	assert.True(t, snap.AvgPrice.Equal(decimal.NewFromInt(110)), "avg %s", snap.AvgPrice)
}

func TestComputePosition_IgnoresOtherRecords(t *testing.T) {
	t0 := time.Now()
	other := confirmedInvestment("i1", 10, "100", t0)
	other.UserID = "bob"
	cancelled := confirmedInvestment("i2", 10, "100", t0)
	cancelled.Status = InvestmentStatusCancelled
	pending := settledHold("h1", "alice", "bob", 5, "100", t0)
	pending.Status = HoldStatusPending

	snap := ComputePosition(testKey, []*Investment{other, cancelled}, []*ShareHold{pending}, t0)
	assert.Equal(t, int64(0), snap.Shares)
}

func TestComputePosition_DisposalAtAverageCost(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	investments := []*Investment{
		confirmedInvestment("i1", 10, "100", t0),
		confirmedInvestment("i2", 10, "200", t0.Add(time.Minute)),
	}
	holds := []*ShareHold{
		settledHold("h1", "bob", "alice", 5, "999", t0.Add(time.Hour)),
	}

	snap := ComputePosition(testKey, investments, holds, t0)

	// Average cost stays 150; 15 shares remain at 2250 basis.
	assert.Equal(t, int64(15), snap.Shares)
	assert.True(t, snap.CostBasis.Equal(decimal.NewFromInt(2250)), "cost basis %s", snap.CostBasis)
	assert.True(t, snap.AvgPrice.Equal(decimal.NewFromInt(150)), "avg %s", snap.AvgPrice)
}

func TestComputePosition_FullDisposal(t *testing.T) {
	t0 := time.Now()
	snap := ComputePosition(testKey,
		[]*Investment{confirmedInvestment("i1", 3, "33.33", t0)},
		[]*ShareHold{settledHold("h1", "bob", "alice", 3, "40", t0.Add(time.Second))},
		t0)
	assert.Equal(t, int64(0), snap.Shares)
	assert.True(t, snap.CostBasis.IsZero())
	assert.True(t, snap.AvgPrice.IsZero())
}

func TestProperty_ComputePositionIsOrderIndependent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		n := rapid.IntRange(1, 12).Draw(t, "n")
		investments := make([]*Investment, n)
		var totalShares int64
		totalCost := decimal.Zero
		for i := 0; i < n; i++ {
			shares := rapid.Int64Range(1, 1000).Draw(t, fmt.Sprintf("shares-%d", i))
			cents := rapid.Int64Range(1, 1_000_000).Draw(t, fmt.Sprintf("cents-%d", i))
			price := decimal.New(cents, -2)
			investments[i] = confirmedInvestment(fmt.Sprintf("i%02d", i), shares, price.String(), t0.Add(time.Duration(i)*time.Minute))
			totalShares += shares
			totalCost = totalCost.Add(Amount(shares, price))
		}

		forward := ComputePosition(testKey, investments, nil, t0)

		reversed := make([]*Investment, n)
		for i := range investments {
			reversed[n-1-i] = investments[i]
		}
		backward := ComputePosition(testKey, reversed, nil, t0)

		if !forward.SameAs(backward) {
			t.Fatalf("snapshot depends on input order: %+v vs %+v", forward, backward)
		}
		if forward.Shares != totalShares {
			t.Fatalf("shares = %d, want %d", forward.Shares, totalShares)
		}
		if !forward.CostBasis.Equal(totalCost) {
			t.Fatalf("cost basis = %s, want %s", forward.CostBasis, totalCost)
		}
	})
}
