// Package store defines the unit-of-work contract the settlement engine runs
// on and provides an in-memory implementation of it.
//
// A unit of work takes exclusive row locks on the root resources it touches
// (escrow balances, property inventories, sell requests, holds, positions)
// and keeps them until it ends. Writes are staged and become visible to
// other units of work only on commit; an error discards them all.
//
// Every caller acquires locks in the same order to stay deadlock free:
// sell request, hold, inventory, balances by ascending user id, positions
// by ascending key. Idempotency keys are locked before anything else.
package store

import (
	"context"
	"time"

	"github.com/efreitasn/shareledger/internal/domain"
)

// Tx is the view of storage inside one unit of work. Lock* methods block
// until the row lock is held (or the wait times out) and return a private
// copy; Save* and Insert* stage writes.
type Tx interface {
	// LockBalance returns the user's balance, creating an empty one if the
	// user has none yet.
	LockBalance(userID string) (*domain.EscrowBalance, error)
	SaveBalance(b *domain.EscrowBalance) error

	LockInventory(propertyID string) (*domain.PropertyInventory, error)
	SaveInventory(inv *domain.PropertyInventory) error
	CreateInventory(inv *domain.PropertyInventory) error

	LockSellRequest(id string) (*domain.SellRequest, error)
	SaveSellRequest(sr *domain.SellRequest) error

	LockHold(id string) (*domain.ShareHold, error)
	SaveHold(h *domain.ShareHold) error

	// LockPosition returns the stored snapshot, or an empty one.
	LockPosition(key domain.PositionKey) (*domain.PositionSnapshot, error)
	SavePosition(p *domain.PositionSnapshot) error

	// LockIdempotencyKey returns nil when the key was never recorded.
	LockIdempotencyKey(key string) (*domain.IdempotencyRecord, error)
	SaveIdempotencyKey(rec *domain.IdempotencyRecord) error

	InsertInvestment(inv *domain.Investment) error
	InsertTransaction(txn *domain.Transaction) error

	Investment(id string) (*domain.Investment, error)
	Verification(userID string) (domain.VerificationStatus, error)

	// History reads. They include writes staged by this Tx.
	ListInvestments(key domain.PositionKey) ([]*domain.Investment, error)
	ListSettledHolds(key domain.PositionKey) ([]*domain.ShareHold, error)
	ListSellerSellRequests(key domain.PositionKey) ([]*domain.SellRequest, error)
	ListSellerPendingHolds(key domain.PositionKey) ([]*domain.ShareHold, error)
	ListPendingHolds(sellRequestID string) ([]*domain.ShareHold, error)
}

// UnitOfWork runs fn atomically. Row locks taken through tx are released
// when Do returns; staged writes are committed only if fn returns nil and
// ctx is still live.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(tx Tx) error) error
}

// Reader serves committed state outside any unit of work.
type Reader interface {
	Balance(ctx context.Context, userID string) (*domain.EscrowBalance, error)
	Inventory(ctx context.Context, propertyID string) (*domain.PropertyInventory, error)
	SellRequest(ctx context.Context, id string) (*domain.SellRequest, error)
	Hold(ctx context.Context, id string) (*domain.ShareHold, error)
	Investment(ctx context.Context, id string) (*domain.Investment, error)
	Position(ctx context.Context, key domain.PositionKey) (*domain.PositionSnapshot, error)
	// Transactions lists a user's ledger entries newest first. Pagination
	// is 1-based; the total count precedes pagination.
	Transactions(ctx context.Context, userID string, page, limit int) ([]*domain.Transaction, int, error)
	// PositionKeys lists every (user, property) pair with history.
	PositionKeys(ctx context.Context) ([]domain.PositionKey, error)
	// ExpiredHoldIDs lists pending holds whose deadline is at or before now.
	ExpiredHoldIDs(ctx context.Context, now time.Time, limit int) ([]string, error)
	// ExpiredSellRequestIDs lists open sell requests with remaining shares
	// and no pending holds whose deadline is at or before now.
	ExpiredSellRequestIDs(ctx context.Context, now time.Time, limit int) ([]string, error)
}

// Store is the full storage contract.
type Store interface {
	UnitOfWork
	Reader
	SetVerification(ctx context.Context, userID string, status domain.VerificationStatus) error
}
