package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/efreitasn/shareledger/internal/domain"
)

func balanceLockKey(userID string) string       { return "balance:" + userID }
func inventoryLockKey(propertyID string) string { return "inventory:" + propertyID }
func sellRequestLockKey(id string) string       { return "sell_request:" + id }
func holdLockKey(id string) string              { return "hold:" + id }
func idempotencyLockKey(key string) string      { return "idempotency:" + key }

func positionLockKey(k domain.PositionKey) string {
	return "position:" + k.UserID + "/" + k.PropertyID
}

// memTx is one unit of work against Memory. It is confined to the goroutine
// running Do.
type memTx struct {
	s   *Memory
	ctx context.Context

	held    []string
	heldSet map[string]struct{}

	balances     map[string]*domain.EscrowBalance
	inventories  map[string]*domain.PropertyInventory
	sellRequests map[string]*domain.SellRequest
	holds        map[string]*domain.ShareHold
	positions    map[domain.PositionKey]*domain.PositionSnapshot
	idempotency  map[string]*domain.IdempotencyRecord
	investments  []*domain.Investment
	transactions []*domain.Transaction
}

func newMemTx(s *Memory, ctx context.Context) *memTx {
	return &memTx{
		s:            s,
		ctx:          ctx,
		heldSet:      make(map[string]struct{}),
		balances:     make(map[string]*domain.EscrowBalance),
		inventories:  make(map[string]*domain.PropertyInventory),
		sellRequests: make(map[string]*domain.SellRequest),
		holds:        make(map[string]*domain.ShareHold),
		positions:    make(map[domain.PositionKey]*domain.PositionSnapshot),
		idempotency:  make(map[string]*domain.IdempotencyRecord),
	}
}

var _ Tx = (*memTx)(nil)

// lock acquires key once per unit of work.
func (tx *memTx) lock(key string) error {
	if _, ok := tx.heldSet[key]; ok {
		return nil
	}
	if err := tx.s.locks.acquire(tx.ctx, key, tx.s.lockTimeout); err != nil {
		return err
	}
	tx.held = append(tx.held, key)
	tx.heldSet[key] = struct{}{}
	return nil
}

func (tx *memTx) owns(key string) bool {
	_, ok := tx.heldSet[key]
	return ok
}

// releaseAll drops every row lock, most recent first.
func (tx *memTx) releaseAll() {
	for i := len(tx.held) - 1; i >= 0; i-- {
		tx.s.locks.release(tx.held[i])
	}
	tx.held = nil
}

func (tx *memTx) LockBalance(userID string) (*domain.EscrowBalance, error) {
	if err := tx.lock(balanceLockKey(userID)); err != nil {
		return nil, err
	}
	if b, ok := tx.balances[userID]; ok {
		return b.Clone(), nil
	}

	tx.s.mu.RLock()
	b, ok := tx.s.balances[userID]
	tx.s.mu.RUnlock()
	if !ok {
		return domain.NewEscrowBalance(userID, time.Time{}), nil
	}
	return b.Clone(), nil
}

func (tx *memTx) SaveBalance(b *domain.EscrowBalance) error {
	if !tx.owns(balanceLockKey(b.UserID)) {
		return fmt.Errorf("save balance %s: row not locked", b.UserID)
	}
	tx.balances[b.UserID] = b.Clone()
	return nil
}

func (tx *memTx) LockInventory(propertyID string) (*domain.PropertyInventory, error) {
	if err := tx.lock(inventoryLockKey(propertyID)); err != nil {
		return nil, err
	}
	if inv, ok := tx.inventories[propertyID]; ok {
		return inv.Clone(), nil
	}

	tx.s.mu.RLock()
	inv, ok := tx.s.inventories[propertyID]
	tx.s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrPropertyNotFound
	}
	return inv.Clone(), nil
}

func (tx *memTx) SaveInventory(inv *domain.PropertyInventory) error {
	if !tx.owns(inventoryLockKey(inv.PropertyID)) {
		return fmt.Errorf("save inventory %s: row not locked", inv.PropertyID)
	}
	tx.inventories[inv.PropertyID] = inv.Clone()
	return nil
}

func (tx *memTx) CreateInventory(inv *domain.PropertyInventory) error {
	if err := tx.lock(inventoryLockKey(inv.PropertyID)); err != nil {
		return err
	}
	if _, ok := tx.inventories[inv.PropertyID]; ok {
		return domain.ErrPropertyAlreadyExists
	}

	tx.s.mu.RLock()
	_, exists := tx.s.inventories[inv.PropertyID]
	tx.s.mu.RUnlock()
	if exists {
		return domain.ErrPropertyAlreadyExists
	}
	tx.inventories[inv.PropertyID] = inv.Clone()
	return nil
}

func (tx *memTx) LockSellRequest(id string) (*domain.SellRequest, error) {
	if err := tx.lock(sellRequestLockKey(id)); err != nil {
		return nil, err
	}
	if sr, ok := tx.sellRequests[id]; ok {
		return sr.Clone(), nil
	}

	tx.s.mu.RLock()
	sr, ok := tx.s.sellRequests[id]
	tx.s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSellRequestNotFound
	}
	return sr.Clone(), nil
}

// SaveSellRequest stages sr. A row nobody has committed yet is an insert
// and is locked on the spot.
func (tx *memTx) SaveSellRequest(sr *domain.SellRequest) error {
	key := sellRequestLockKey(sr.SellRequestID)
	if !tx.owns(key) {
		tx.s.mu.RLock()
		_, exists := tx.s.sellRequests[sr.SellRequestID]
		tx.s.mu.RUnlock()
		if exists {
			return fmt.Errorf("save sell request %s: row not locked", sr.SellRequestID)
		}
		if err := tx.lock(key); err != nil {
			return err
		}
	}
	tx.sellRequests[sr.SellRequestID] = sr.Clone()
	return nil
}

func (tx *memTx) LockHold(id string) (*domain.ShareHold, error) {
	if err := tx.lock(holdLockKey(id)); err != nil {
		return nil, err
	}
	if h, ok := tx.holds[id]; ok {
		return h.Clone(), nil
	}

	tx.s.mu.RLock()
	h, ok := tx.s.holds[id]
	tx.s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrHoldNotFound
	}
	return h.Clone(), nil
}

// SaveHold stages h, locking it first when it is new.
func (tx *memTx) SaveHold(h *domain.ShareHold) error {
	key := holdLockKey(h.HoldID)
	if !tx.owns(key) {
		tx.s.mu.RLock()
		_, exists := tx.s.holds[h.HoldID]
		tx.s.mu.RUnlock()
		if exists {
			return fmt.Errorf("save hold %s: row not locked", h.HoldID)
		}
		if err := tx.lock(key); err != nil {
			return err
		}
	}
	tx.holds[h.HoldID] = h.Clone()
	return nil
}

func (tx *memTx) LockPosition(key domain.PositionKey) (*domain.PositionSnapshot, error) {
	if err := tx.lock(positionLockKey(key)); err != nil {
		return nil, err
	}
	if p, ok := tx.positions[key]; ok {
		return p.Clone(), nil
	}

	tx.s.mu.RLock()
	p, ok := tx.s.positions[key]
	tx.s.mu.RUnlock()
	if !ok {
		return domain.NewPositionSnapshot(key, time.Time{}), nil
	}
	return p.Clone(), nil
}

func (tx *memTx) SavePosition(p *domain.PositionSnapshot) error {
	if !tx.owns(positionLockKey(p.Key())) {
		return fmt.Errorf("save position %s/%s: row not locked", p.UserID, p.PropertyID)
	}
	tx.positions[p.Key()] = p.Clone()
	return nil
}

func (tx *memTx) LockIdempotencyKey(key string) (*domain.IdempotencyRecord, error) {
	if err := tx.lock(idempotencyLockKey(key)); err != nil {
		return nil, err
	}
	if rec, ok := tx.idempotency[key]; ok {
		c := *rec
		return &c, nil
	}

	tx.s.mu.RLock()
	rec, ok := tx.s.idempotency[key]
	tx.s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	c := *rec
	return &c, nil
}

func (tx *memTx) SaveIdempotencyKey(rec *domain.IdempotencyRecord) error {
	if !tx.owns(idempotencyLockKey(rec.Key)) {
		return fmt.Errorf("save idempotency key %s: row not locked", rec.Key)
	}
	c := *rec
	tx.idempotency[rec.Key] = &c
	return nil
}

func (tx *memTx) InsertInvestment(inv *domain.Investment) error {
	tx.investments = append(tx.investments, inv.Clone())
	return nil
}

func (tx *memTx) InsertTransaction(txn *domain.Transaction) error {
	c := *txn
	tx.transactions = append(tx.transactions, &c)
	return nil
}

func (tx *memTx) Investment(id string) (*domain.Investment, error) {
	for _, inv := range tx.investments {
		if inv.InvestmentID == id {
			return inv.Clone(), nil
		}
	}

	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	inv, ok := tx.s.investments[id]
	if !ok {
		return nil, domain.ErrInvestmentNotFound
	}
	return inv.Clone(), nil
}

// Verification returns pending for users without a recorded outcome.
func (tx *memTx) Verification(userID string) (domain.VerificationStatus, error) {
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	status, ok := tx.s.verifications[userID]
	if !ok {
		return domain.VerificationPending, nil
	}
	return status, nil
}

func (tx *memTx) ListInvestments(key domain.PositionKey) ([]*domain.Investment, error) {
	tx.s.mu.RLock()
	ids := tx.s.ownerInvestments[key]
	result := make([]*domain.Investment, 0, len(ids))
	for _, id := range ids {
		result = append(result, tx.s.investments[id].Clone())
	}
	tx.s.mu.RUnlock()

	for _, inv := range tx.investments {
		if inv.UserID == key.UserID && inv.PropertyID == key.PropertyID {
			result = append(result, inv.Clone())
		}
	}
	return result, nil
}

func (tx *memTx) ListSettledHolds(key domain.PositionKey) ([]*domain.ShareHold, error) {
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	return tx.mergedHolds(tx.s.partyHolds[key], func(h *domain.ShareHold) bool {
		return h.Status == domain.HoldStatusSettled && h.PropertyID == key.PropertyID &&
			(h.BuyerID == key.UserID || h.SellerID == key.UserID)
	}), nil
}

func (tx *memTx) ListSellerPendingHolds(key domain.PositionKey) ([]*domain.ShareHold, error) {
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	return tx.mergedHolds(tx.s.partyHolds[key], func(h *domain.ShareHold) bool {
		return h.Status == domain.HoldStatusPending && h.PropertyID == key.PropertyID && h.SellerID == key.UserID
	}), nil
}

func (tx *memTx) ListPendingHolds(sellRequestID string) ([]*domain.ShareHold, error) {
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	return tx.mergedHolds(tx.s.sellRequestHolds[sellRequestID], func(h *domain.ShareHold) bool {
		return h.Status == domain.HoldStatusPending && h.SellRequestID == sellRequestID
	}), nil
}

func (tx *memTx) ListSellerSellRequests(key domain.PositionKey) ([]*domain.SellRequest, error) {
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()

	match := func(sr *domain.SellRequest) bool {
		return sr.SellerID == key.UserID && sr.PropertyID == key.PropertyID
	}
	seen := make(map[string]bool)
	var result []*domain.SellRequest
	for _, id := range tx.s.sellerRequests[key] {
		seen[id] = true
		sr, ok := tx.sellRequests[id]
		if !ok {
			sr = tx.s.sellRequests[id]
		}
		result = append(result, sr.Clone())
	}
	for id, sr := range tx.sellRequests {
		if !seen[id] && match(sr) {
			result = append(result, sr.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].SellRequestID < result[j].SellRequestID
	})
	return result, nil
}

// mergedHolds overlays staged holds on the committed holds named by ids and
// adds staged inserts. The caller holds s.mu for reading.
func (tx *memTx) mergedHolds(ids []string, match func(*domain.ShareHold) bool) []*domain.ShareHold {
	seen := make(map[string]bool, len(ids))
	var result []*domain.ShareHold
	for _, id := range ids {
		seen[id] = true
		h, ok := tx.holds[id]
		if !ok {
			h = tx.s.holds[id]
		}
		if match(h) {
			result = append(result, h.Clone())
		}
	}
	for id, h := range tx.holds {
		if !seen[id] && match(h) {
			result = append(result, h.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].HoldID < result[j].HoldID
	})
	return result
}
