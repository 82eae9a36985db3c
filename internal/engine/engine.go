// Package engine is the settlement core: the escrow ledger primitives, the
// primary investment processor, the secondary market (sell requests, holds
// and dual confirmation), position snapshots and the expiry sweeper.
//
// Every mutating operation runs as exactly one store unit of work, so a
// failure or a caller timeout leaves no partial effects behind.
package engine

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/efreitasn/shareledger/internal/store"
)

// DefaultHoldTTL is how long a hold waits for both confirmations.
const DefaultHoldTTL = 30 * time.Minute

// sweepBatch caps how many rows of each kind one sweep pass visits.
const sweepBatch = 500

// Options tunes an Engine. Zero values select defaults.
type Options struct {
	HoldTTL time.Duration
	// FeeBPS is withheld from the seller on every secondary settlement,
	// in basis points of the gross amount.
	FeeBPS int64
	Clock  func() time.Time
	Logger *zap.Logger
}

// Engine executes settlement operations against a store.
type Engine struct {
	store   store.Store
	holdTTL time.Duration
	feeBPS  int64
	clock   func() time.Time
	log     *zap.Logger
}

// New creates an Engine over s.
func New(s store.Store, opt Options) *Engine {
	e := &Engine{
		store:   s,
		holdTTL: opt.HoldTTL,
		feeBPS:  opt.FeeBPS,
		clock:   opt.Clock,
		log:     opt.Logger,
	}
	if e.holdTTL <= 0 {
		e.holdTTL = DefaultHoldTTL
	}
	if e.clock == nil {
		e.clock = func() time.Time { return time.Now().UTC() }
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	return e
}

func (e *Engine) now() time.Time {
	return e.clock()
}

func newID() string {
	return uuid.NewString()
}
