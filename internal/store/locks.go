package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/efreitasn/shareledger/internal/domain"
)

// rowLock is a mutex that can be waited on with a deadline.
type rowLock struct {
	ch   chan struct{}
	refs int // holders plus waiters; the entry is dropped at zero
}

// lockTable hands out exclusive locks keyed by row.
type lockTable struct {
	mu   sync.Mutex
	rows map[string]*rowLock
}

func newLockTable() *lockTable {
	return &lockTable{rows: make(map[string]*rowLock)}
}

// acquire blocks until key is locked, ctx ends, or timeout elapses.
// A timeout yields domain.ErrLockTimeout; a cancelled ctx yields ctx.Err().
func (t *lockTable) acquire(ctx context.Context, key string, timeout time.Duration) error {
	t.mu.Lock()
	l, ok := t.rows[key]
	if !ok {
		l = &rowLock{ch: make(chan struct{}, 1)}
		t.rows[key] = l
	}
	l.refs++
	t.mu.Unlock()

	// Fast path.
	select {
	case l.ch <- struct{}{}:
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case l.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		t.drop(key, l)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("lock %s: %w", key, domain.ErrLockTimeout)
		}
		return ctx.Err()
	case <-timer.C:
		t.drop(key, l)
		return fmt.Errorf("lock %s: %w", key, domain.ErrLockTimeout)
	}
}

// release unlocks key. The caller must hold it.
func (t *lockTable) release(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.rows[key]
	if !ok {
		return
	}
	<-l.ch
	l.refs--
	if l.refs == 0 {
		delete(t.rows, key)
	}
}

func (t *lockTable) drop(key string, l *rowLock) {
	t.mu.Lock()
	defer t.mu.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(t.rows, key)
	}
}

// size returns the number of tracked rows. Used by tests.
func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rows)
}
