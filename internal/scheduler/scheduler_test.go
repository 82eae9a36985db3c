package scheduler

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efreitasn/shareledger/internal/domain"
	"github.com/efreitasn/shareledger/internal/engine"
	"github.com/efreitasn/shareledger/internal/store"
)

type fakeSweeper struct {
	calls   atomic.Int64
	block   chan struct{}
	err     error
	started chan struct{}
}

func (f *fakeSweeper) Sweep(ctx context.Context) (engine.SweepResult, error) {
	f.calls.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return engine.SweepResult{}, ctx.Err()
		}
	}
	return engine.SweepResult{HoldsExpired: 1}, f.err
}

func TestLocalLock_Exclusive(t *testing.T) {
	l := NewLocalLock()

	release, ok, err := l.TryLock(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, release())
	_, ok, _ = l.TryLock(context.Background())
	assert.True(t, ok)
}

func TestRunOnce_SkipsWhileAnotherSweepRuns(t *testing.T) {
	sw := &fakeSweeper{block: make(chan struct{}), started: make(chan struct{}, 1)}
	r := New(context.Background(), sw, nil, time.Minute, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, ran, err := r.RunOnce(context.Background())
		assert.True(t, ran)
		assert.NoError(t, err)
	}()
	<-sw.started

	_, ran, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)

	close(sw.block)
	wg.Wait()
	assert.Equal(t, int64(1), sw.calls.Load())

	res, ran, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 1, res.HoldsExpired)
}

func TestRunOnce_ReportsSweepError(t *testing.T) {
	sw := &fakeSweeper{err: errors.New("boom")}
	r := New(context.Background(), sw, nil, time.Minute, nil)

	_, ran, err := r.RunOnce(context.Background())
	assert.True(t, ran)
	assert.EqualError(t, err, "boom")

	// The lock is released after a failed run.
	_, ran, _ = r.RunOnce(context.Background())
	assert.True(t, ran)
}

func TestRunOnce_TimeoutBoundsSweep(t *testing.T) {
	sw := &fakeSweeper{block: make(chan struct{})}
	r := New(context.Background(), sw, nil, 20*time.Millisecond, nil)

	_, _, err := r.RunOnce(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type failingLock struct{}

func (failingLock) TryLock(context.Context) (func() error, bool, error) {
	return nil, false, errors.New("redis down")
}

func TestRunOnce_LockErrorSkipsSweep(t *testing.T) {
	sw := &fakeSweeper{}
	r := New(context.Background(), sw, failingLock{}, time.Minute, nil)

	_, ran, err := r.RunOnce(context.Background())
	assert.Error(t, err)
	assert.False(t, ran)
	assert.Equal(t, int64(0), sw.calls.Load())
}

func TestSchedule_RejectsBadSpec(t *testing.T) {
	r := New(context.Background(), &fakeSweeper{}, nil, time.Minute, nil)
	assert.Error(t, r.Schedule("every now and then"))
}

func TestSchedule_RunsSweeps(t *testing.T) {
	sw := &fakeSweeper{}
	r := New(context.Background(), sw, nil, time.Minute, nil)
	require.NoError(t, r.Schedule("* * * * * *"))

	r.Start()
	defer r.Stop()

	require.Eventually(t, func() bool { return sw.calls.Load() > 0 }, 3*time.Second, 20*time.Millisecond)
}

func TestRunOnce_ExpiresHoldsThroughEngine(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	s := store.NewMemory(time.Second)
	eng := engine.New(s, engine.Options{HoldTTL: time.Minute, Clock: clock})
	for _, u := range []string{"seller", "buyer"} {
		require.NoError(t, s.SetVerification(ctx, u, domain.VerificationApproved))
		_, err := eng.Deposit(ctx, u, decimal.NewFromInt(1000), "seed")
		require.NoError(t, err)
	}
	_, err := eng.RegisterProperty(ctx, "prop-1", 100, decimal.NewFromInt(10))
	require.NoError(t, err)
	_, err = eng.Invest(ctx, engine.InvestRequest{
		UserID: "seller", PropertyID: "prop-1", Shares: 10,
		PricePerShare: decimal.NewFromInt(10), IdempotencyKey: "k1",
	})
	require.NoError(t, err)
	sr, err := eng.CreateSellRequest(ctx, engine.CreateSellRequestInput{
		SellerID: "seller", PropertyID: "prop-1", Shares: 10,
		PricePerShare: decimal.NewFromInt(11), ExpiresAt: now.Add(time.Hour),
	})
	require.NoError(t, err)
	_, err = eng.PlaceHold(ctx, engine.PlaceHoldInput{BuyerID: "buyer", SellRequestID: sr.SellRequestID, Shares: 10})
	require.NoError(t, err)

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	r := New(ctx, eng, NewLocalLock(), time.Minute, nil)
	res, ran, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 1, res.HoldsExpired)

	got, err := eng.GetSellRequest(ctx, sr.SellRequestID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.RemainingShares)
}

func TestRedisLock_Exclusive(t *testing.T) {
	url := os.Getenv("SHARELEDGER_TEST_REDIS_URL")
	if url == "" {
		t.Skip("SHARELEDGER_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := ConnectRedis(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	key := "shareledger:test-lock:" + t.Name()
	a := NewRedisLock(client, key, 5*time.Second)
	b := NewRedisLock(client, key, 5*time.Second)

	release, ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, release())
	releaseB, ok, err := b.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, releaseB())
}
