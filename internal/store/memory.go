package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/efreitasn/shareledger/internal/domain"
)

// DefaultLockTimeout bounds how long a unit of work waits for one row lock.
const DefaultLockTimeout = 5 * time.Second

// Memory is a thread-safe in-memory Store. Committed rows live in maps
// guarded by mu; row locks for units of work live in a separate lock table
// so a long wait on one row never blocks readers of another.
type Memory struct {
	mu sync.RWMutex

	balances    map[string]*domain.EscrowBalance
	inventories map[string]*domain.PropertyInventory
	positions   map[domain.PositionKey]*domain.PositionSnapshot
	idempotency map[string]*domain.IdempotencyRecord

	sellRequests   map[string]*domain.SellRequest
	sellerRequests map[domain.PositionKey][]string // (seller, property) → sell request ids

	holds            map[string]*domain.ShareHold
	sellRequestHolds map[string][]string             // sell request id → hold ids
	partyHolds       map[domain.PositionKey][]string // (buyer or seller, property) → hold ids

	investments      map[string]*domain.Investment
	ownerInvestments map[domain.PositionKey][]string // (user, property) → investment ids (append-only)

	transactions  map[string][]*domain.Transaction // user id → entries (append-only, chronological)
	verifications map[string]domain.VerificationStatus

	holdDeadlines *deadlineIndex // pending holds by hold_expires_at
	sellDeadlines *deadlineIndex // open sell requests with remaining shares, by expires_at

	locks       *lockTable
	lockTimeout time.Duration
}

// NewMemory creates an empty Memory store. A lockTimeout <= 0 selects
// DefaultLockTimeout.
func NewMemory(lockTimeout time.Duration) *Memory {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Memory{
		balances:         make(map[string]*domain.EscrowBalance),
		inventories:      make(map[string]*domain.PropertyInventory),
		positions:        make(map[domain.PositionKey]*domain.PositionSnapshot),
		idempotency:      make(map[string]*domain.IdempotencyRecord),
		sellRequests:     make(map[string]*domain.SellRequest),
		sellerRequests:   make(map[domain.PositionKey][]string),
		holds:            make(map[string]*domain.ShareHold),
		sellRequestHolds: make(map[string][]string),
		partyHolds:       make(map[domain.PositionKey][]string),
		investments:      make(map[string]*domain.Investment),
		ownerInvestments: make(map[domain.PositionKey][]string),
		transactions:     make(map[string][]*domain.Transaction),
		verifications:    make(map[string]domain.VerificationStatus),
		holdDeadlines:    newDeadlineIndex(),
		sellDeadlines:    newDeadlineIndex(),
		locks:            newLockTable(),
		lockTimeout:      lockTimeout,
	}
}

var _ Store = (*Memory)(nil)

// Do runs fn as one unit of work.
func (s *Memory) Do(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := newMemTx(s, ctx)
	defer tx.releaseAll()

	if err := fn(tx); err != nil {
		return err
	}
	// A caller that gave up must not see its effects applied.
	if err := ctx.Err(); err != nil {
		return err
	}
	s.commit(tx)
	return nil
}

// commit publishes every staged write of tx. Row locks are still held.
func (s *Memory) commit(tx *memTx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, b := range tx.balances {
		s.balances[id] = b
	}
	for id, inv := range tx.inventories {
		s.inventories[id] = inv
	}
	for key, p := range tx.positions {
		s.positions[key] = p
	}
	for key, rec := range tx.idempotency {
		s.idempotency[key] = rec
	}
	for id, sr := range tx.sellRequests {
		if _, exists := s.sellRequests[id]; !exists {
			k := domain.PositionKey{UserID: sr.SellerID, PropertyID: sr.PropertyID}
			s.sellerRequests[k] = append(s.sellerRequests[k], id)
		}
		s.sellRequests[id] = sr
		if sr.Closed() || sr.RemainingShares == 0 {
			s.sellDeadlines.Untrack(id)
		} else {
			s.sellDeadlines.Track(id, sr.ExpiresAt)
		}
	}
	for id, h := range tx.holds {
		if _, exists := s.holds[id]; !exists {
			s.sellRequestHolds[h.SellRequestID] = append(s.sellRequestHolds[h.SellRequestID], id)
			bk := domain.PositionKey{UserID: h.BuyerID, PropertyID: h.PropertyID}
			sk := domain.PositionKey{UserID: h.SellerID, PropertyID: h.PropertyID}
			s.partyHolds[bk] = append(s.partyHolds[bk], id)
			s.partyHolds[sk] = append(s.partyHolds[sk], id)
		}
		s.holds[id] = h
		if h.Status == domain.HoldStatusPending {
			s.holdDeadlines.Track(id, h.HoldExpiresAt)
		} else {
			s.holdDeadlines.Untrack(id)
		}
	}
	for _, inv := range tx.investments {
		s.investments[inv.InvestmentID] = inv
		k := domain.PositionKey{UserID: inv.UserID, PropertyID: inv.PropertyID}
		s.ownerInvestments[k] = append(s.ownerInvestments[k], inv.InvestmentID)
	}
	for _, txn := range tx.transactions {
		s.transactions[txn.UserID] = append(s.transactions[txn.UserID], txn)
	}
}

// SetVerification records the KYC outcome for userID.
func (s *Memory) SetVerification(_ context.Context, userID string, status domain.VerificationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verifications[userID] = status
	return nil
}

// Balance returns the committed balance of userID, or an empty one.
func (s *Memory) Balance(_ context.Context, userID string) (*domain.EscrowBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.balances[userID]
	if !ok {
		return domain.NewEscrowBalance(userID, time.Time{}), nil
	}
	return b.Clone(), nil
}

// Inventory returns the committed inventory of propertyID.
func (s *Memory) Inventory(_ context.Context, propertyID string) (*domain.PropertyInventory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.inventories[propertyID]
	if !ok {
		return nil, domain.ErrPropertyNotFound
	}
	return inv.Clone(), nil
}

// SellRequest returns the committed sell request id.
func (s *Memory) SellRequest(_ context.Context, id string) (*domain.SellRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sr, ok := s.sellRequests[id]
	if !ok {
		return nil, domain.ErrSellRequestNotFound
	}
	return sr.Clone(), nil
}

// Hold returns the committed hold id.
func (s *Memory) Hold(_ context.Context, id string) (*domain.ShareHold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.holds[id]
	if !ok {
		return nil, domain.ErrHoldNotFound
	}
	return h.Clone(), nil
}

// Investment returns the committed investment id.
func (s *Memory) Investment(_ context.Context, id string) (*domain.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.investments[id]
	if !ok {
		return nil, domain.ErrInvestmentNotFound
	}
	return inv.Clone(), nil
}

// Position returns the committed snapshot for key, or an empty one.
func (s *Memory) Position(_ context.Context, key domain.PositionKey) (*domain.PositionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[key]
	if !ok {
		return domain.NewPositionSnapshot(key, time.Time{}), nil
	}
	return p.Clone(), nil
}

// Transactions returns a page of userID's ledger entries, newest first.
func (s *Memory) Transactions(_ context.Context, userID string, page, limit int) ([]*domain.Transaction, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.transactions[userID]
	total := len(all)

	start := (page - 1) * limit
	if start >= total {
		return []*domain.Transaction{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}

	result := make([]*domain.Transaction, 0, end-start)
	for i := total - 1 - start; i >= total-end; i-- {
		c := *all[i]
		result = append(result, &c)
	}
	return result, total, nil
}

// PositionKeys lists every (user, property) pair with investment or
// settled-trade history, sorted.
func (s *Memory) PositionKeys(_ context.Context) ([]domain.PositionKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[domain.PositionKey]bool)
	for k := range s.ownerInvestments {
		seen[k] = true
	}
	for k, ids := range s.partyHolds {
		for _, id := range ids {
			if s.holds[id].Status == domain.HoldStatusSettled {
				seen[k] = true
				break
			}
		}
	}
	for k := range s.positions {
		seen[k] = true
	}

	keys := make([]domain.PositionKey, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys, nil
}

// ExpiredHoldIDs lists pending holds due at now.
func (s *Memory) ExpiredHoldIDs(_ context.Context, now time.Time, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.holdDeadlines.Due(now, limit), nil
}

// ExpiredSellRequestIDs lists open sell requests with remaining shares due
// at now. Requests that still have pending holds are left out until those
// holds resolve.
func (s *Memory) ExpiredSellRequestIDs(_ context.Context, now time.Time, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sellDeadlines.DueFunc(now, limit, func(id string) bool {
		return !s.hasPendingHold(id)
	}), nil
}

// hasPendingHold reports whether a committed hold on sellRequestID is still
// pending. The caller holds s.mu.
func (s *Memory) hasPendingHold(sellRequestID string) bool {
	for _, id := range s.sellRequestHolds[sellRequestID] {
		if h, ok := s.holds[id]; ok && h.Status == domain.HoldStatusPending {
			return true
		}
	}
	return false
}

// Investments returns all committed investments in propertyID. Used by
// audits and tests of the inventory invariant.
func (s *Memory) Investments(propertyID string) []*domain.Investment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Investment
	for _, inv := range s.investments {
		if inv.PropertyID == propertyID {
			result = append(result, inv.Clone())
		}
	}
	return result
}

// LockedRows returns the number of rows currently locked or awaited.
func (s *Memory) LockedRows() int {
	return s.locks.size()
}
