package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/efreitasn/shareledger/internal/domain"
	"github.com/efreitasn/shareledger/internal/store"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	ctx   context.Context
	eng   *Engine
	store *store.Memory
	clock *testClock
}

func newTestEnv(t *testing.T, opts ...func(*Options)) *testEnv {
	t.Helper()
	clock := &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	s := store.NewMemory(5 * time.Second)
	opt := Options{HoldTTL: 30 * time.Minute, Clock: clock.Now}
	for _, fn := range opts {
		fn(&opt)
	}
	return &testEnv{
		ctx:   context.Background(),
		eng:   New(s, opt),
		store: s,
		clock: clock,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// user creates an approved user holding amount in escrow.
func (env *testEnv) user(t *testing.T, id, amount string) {
	t.Helper()
	require.NoError(t, env.store.SetVerification(env.ctx, id, domain.VerificationApproved))
	if amount != "0" {
		_, err := env.eng.Deposit(env.ctx, id, dec(amount), "seed-"+id)
		require.NoError(t, err)
	}
}

func (env *testEnv) property(t *testing.T, id string, totalShares int64, price string) {
	t.Helper()
	_, err := env.eng.RegisterProperty(env.ctx, id, totalShares, dec(price))
	require.NoError(t, err)
}

func (env *testEnv) invest(t *testing.T, userID, propertyID string, shares int64) *domain.Investment {
	t.Helper()
	inv, err := env.store.Inventory(env.ctx, propertyID)
	require.NoError(t, err)
	res, err := env.eng.Invest(env.ctx, InvestRequest{
		UserID:         userID,
		PropertyID:     propertyID,
		Shares:         shares,
		PricePerShare:  inv.SharePrice,
		IdempotencyKey: fmt.Sprintf("%s-%s-%d-%d", userID, propertyID, shares, time.Now().UnixNano()),
	})
	require.NoError(t, err)
	return res.Investment
}

func (env *testEnv) balance(t *testing.T, userID string) *domain.EscrowBalance {
	t.Helper()
	b, err := env.store.Balance(env.ctx, userID)
	require.NoError(t, err)
	return b
}

func (env *testEnv) position(t *testing.T, userID, propertyID string) *domain.PositionSnapshot {
	t.Helper()
	p, err := env.eng.GetPosition(env.ctx, userID, propertyID)
	require.NoError(t, err)
	return p
}

func (env *testEnv) transactions(t *testing.T, userID string) []*domain.Transaction {
	t.Helper()
	txns, _, err := env.store.Transactions(env.ctx, userID, 1, 100)
	require.NoError(t, err)
	return txns
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s %v", want, got, msgAndArgs)
}

// requireInventoryInvariant checks that confirmed investments plus available
// shares account for every share of the property.
func (env *testEnv) requireInventoryInvariant(t *testing.T, propertyID string) {
	t.Helper()
	inv, err := env.store.Inventory(env.ctx, propertyID)
	require.NoError(t, err)

	var sold int64
	for _, i := range env.store.Investments(propertyID) {
		if i.Status == domain.InvestmentStatusConfirmed {
			sold += i.Shares
		}
	}
	require.Equal(t, inv.TotalShares, sold+inv.AvailableShares, "sold %d + available %d", sold, inv.AvailableShares)
	require.GreaterOrEqual(t, inv.AvailableShares, int64(0))
}
