// Package scheduler runs the expiry sweep on a cron schedule.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/efreitasn/shareledger/internal/config"
	"github.com/efreitasn/shareledger/internal/engine"
)

// Sweeper is the engine operation the scheduler drives.
type Sweeper interface {
	Sweep(ctx context.Context) (engine.SweepResult, error)
}

// Runner triggers Sweep on a schedule. Each run is bounded by timeout and
// skipped when the sweep lock is held elsewhere.
type Runner struct {
	cron    *cron.Cron
	sweeper Sweeper
	lock    SweepLock
	log     *zap.Logger
	baseCtx context.Context
	timeout time.Duration
}

// New creates a Runner. A nil lock selects a LocalLock; a timeout <= 0
// leaves runs bounded only by baseCtx.
func New(baseCtx context.Context, sweeper Sweeper, lock SweepLock, timeout time.Duration, logger *zap.Logger) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if lock == nil {
		lock = NewLocalLock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cron:    cron.New(cron.WithParser(config.CronParser())),
		sweeper: sweeper,
		lock:    lock,
		log:     logger,
		baseCtx: baseCtx,
		timeout: timeout,
	}
}

// Schedule registers the sweep under spec (seconds field optional).
func (r *Runner) Schedule(spec string) error {
	_, err := r.cron.AddFunc(spec, func() {
		_, _, _ = r.RunOnce(r.baseCtx)
	})
	return err
}

// RunOnce performs a single guarded sweep. ran is false when another sweep
// held the lock.
func (r *Runner) RunOnce(ctx context.Context) (result engine.SweepResult, ran bool, err error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	release, ok, err := r.lock.TryLock(ctx)
	if err != nil {
		r.log.Warn("sweep lock unavailable", zap.Error(err))
		return result, false, err
	}
	if !ok {
		r.log.Debug("sweep skipped, lock held")
		return result, false, nil
	}
	defer func() {
		if err := release(); err != nil {
			r.log.Warn("sweep lock release failed", zap.Error(err))
		}
	}()

	start := time.Now()
	result, err = r.sweeper.Sweep(ctx)
	if err != nil {
		r.log.Error("sweep failed",
			zap.Error(err),
			zap.Int("holds_expired", result.HoldsExpired),
			zap.Int("sell_requests_expired", result.SellRequestsExpired),
		)
		return result, true, err
	}
	r.log.Debug("sweep finished",
		zap.Int("holds_expired", result.HoldsExpired),
		zap.Int("sell_requests_expired", result.SellRequestsExpired),
		zap.Duration("duration", time.Since(start)),
	)
	return result, true, nil
}

// Start begins running scheduled sweeps in the background.
func (r *Runner) Start() {
	r.log.Info("sweeper started")
	r.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to return.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.log.Info("sweeper stopped")
}
