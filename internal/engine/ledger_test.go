package engine

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efreitasn/shareledger/internal/domain"
)

func TestDeposit_CreditsAndRecords(t *testing.T) {
	env := newTestEnv(t)

	b, err := env.eng.Deposit(env.ctx, "alice", dec("250.50"), "wire-1")
	require.NoError(t, err)
	requireDecimal(t, "250.50", b.AvailableBalance)

	txns := env.transactions(t, "alice")
	require.Len(t, txns, 1)
	assert.Equal(t, domain.TransactionDeposit, txns[0].Type)
	assert.Equal(t, "wire-1", txns[0].ReferenceID)
	requireDecimal(t, "250.50", txns[0].Amount)
}

func TestDeposit_RejectsBadAmounts(t *testing.T) {
	env := newTestEnv(t)

	for _, amount := range []string{"0", "-5", "1.001"} {
		_, err := env.eng.Deposit(env.ctx, "alice", dec(amount), "")
		var ve *domain.ValidationError
		require.ErrorAs(t, err, &ve, "amount %s", amount)
	}
	assert.Empty(t, env.transactions(t, "alice"))
}

func TestWithdraw_InsufficientFundsLeavesBalance(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "alice", "100")

	_, err := env.eng.Withdraw(env.ctx, "alice", dec("100.01"), "")
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	requireDecimal(t, "100", env.balance(t, "alice").AvailableBalance)
	assert.Len(t, env.transactions(t, "alice"), 1)

	b, err := env.eng.Withdraw(env.ctx, "alice", dec("100"), "payout-1")
	require.NoError(t, err)
	assert.True(t, b.AvailableBalance.IsZero())
}

func TestWithdraw_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "alice", "100")

	const n = 20
	var ok, insufficient atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.eng.Withdraw(env.ctx, "alice", dec("60"), "")
			switch {
			case err == nil:
				ok.Add(1)
			case assert.ErrorIs(t, err, domain.ErrInsufficientFunds):
				insufficient.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), ok.Load())
	assert.Equal(t, int64(n-1), insufficient.Load())
	requireDecimal(t, "40", env.balance(t, "alice").AvailableBalance)
	assert.Equal(t, 0, env.store.LockedRows())
}
