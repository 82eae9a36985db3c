package postgres

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/efreitasn/shareledger/internal/domain"
	"github.com/efreitasn/shareledger/internal/store"
)

// pgTx is one database transaction. Writes go straight to the transaction;
// atomicity comes from the enclosing COMMIT.
type pgTx struct {
	db *gorm.DB
}

var _ store.Tx = (*pgTx)(nil)

func (tx *pgTx) forUpdate() *gorm.DB {
	return tx.db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (tx *pgTx) LockBalance(userID string) (*domain.EscrowBalance, error) {
	seed := balanceFromDomain(domain.NewEscrowBalance(userID, time.Now().UTC()))
	if err := tx.db.Clauses(clause.OnConflict{DoNothing: true}).Create(seed).Error; err != nil {
		return nil, classify(err)
	}

	var row balanceRow
	if err := tx.forUpdate().Where("user_id = ?", userID).Take(&row).Error; err != nil {
		return nil, classify(err)
	}
	return row.toDomain(), nil
}

func (tx *pgTx) SaveBalance(b *domain.EscrowBalance) error {
	return classify(tx.db.Save(balanceFromDomain(b)).Error)
}

func (tx *pgTx) LockInventory(propertyID string) (*domain.PropertyInventory, error) {
	var row inventoryRow
	if err := tx.forUpdate().Where("property_id = ?", propertyID).Take(&row).Error; err != nil {
		return nil, notFound(err, domain.ErrPropertyNotFound)
	}
	return row.toDomain(), nil
}

func (tx *pgTx) SaveInventory(inv *domain.PropertyInventory) error {
	return classify(tx.db.Save(inventoryFromDomain(inv)).Error)
}

func (tx *pgTx) CreateInventory(inv *domain.PropertyInventory) error {
	res := tx.db.Clauses(clause.OnConflict{DoNothing: true}).Create(inventoryFromDomain(inv))
	if res.Error != nil {
		return classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrPropertyAlreadyExists
	}
	return nil
}

func (tx *pgTx) LockSellRequest(id string) (*domain.SellRequest, error) {
	var row sellRequestRow
	if err := tx.forUpdate().Where("sell_request_id = ?", id).Take(&row).Error; err != nil {
		return nil, notFound(err, domain.ErrSellRequestNotFound)
	}
	return row.toDomain(), nil
}

func (tx *pgTx) SaveSellRequest(sr *domain.SellRequest) error {
	return classify(tx.db.Save(sellRequestFromDomain(sr)).Error)
}

func (tx *pgTx) LockHold(id string) (*domain.ShareHold, error) {
	var row holdRow
	if err := tx.forUpdate().Where("hold_id = ?", id).Take(&row).Error; err != nil {
		return nil, notFound(err, domain.ErrHoldNotFound)
	}
	return row.toDomain(), nil
}

func (tx *pgTx) SaveHold(h *domain.ShareHold) error {
	return classify(tx.db.Save(holdFromDomain(h)).Error)
}

func (tx *pgTx) LockPosition(key domain.PositionKey) (*domain.PositionSnapshot, error) {
	seed := positionFromDomain(domain.NewPositionSnapshot(key, time.Now().UTC()))
	if err := tx.db.Clauses(clause.OnConflict{DoNothing: true}).Create(seed).Error; err != nil {
		return nil, classify(err)
	}

	var row positionRow
	err := tx.forUpdate().
		Where("user_id = ? AND property_id = ?", key.UserID, key.PropertyID).
		Take(&row).Error
	if err != nil {
		return nil, classify(err)
	}
	return row.toDomain(), nil
}

func (tx *pgTx) SavePosition(p *domain.PositionSnapshot) error {
	return classify(tx.db.Save(positionFromDomain(p)).Error)
}

func (tx *pgTx) LockIdempotencyKey(key string) (*domain.IdempotencyRecord, error) {
	if err := tx.db.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", "idempotency:"+key).Error; err != nil {
		return nil, classify(err)
	}

	var row idempotencyRow
	err := tx.db.Where("idempotency_key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	return &domain.IdempotencyRecord{
		Key:          row.Key,
		RequestHash:  row.RequestHash,
		InvestmentID: row.InvestmentID,
		CreatedAt:    row.CreatedAt,
	}, nil
}

func (tx *pgTx) SaveIdempotencyKey(rec *domain.IdempotencyRecord) error {
	row := idempotencyRow{
		Key:          rec.Key,
		RequestHash:  rec.RequestHash,
		InvestmentID: rec.InvestmentID,
		CreatedAt:    rec.CreatedAt,
	}
	return classify(tx.db.Save(&row).Error)
}

func (tx *pgTx) InsertInvestment(inv *domain.Investment) error {
	return classify(tx.db.Create(investmentFromDomain(inv)).Error)
}

func (tx *pgTx) InsertTransaction(txn *domain.Transaction) error {
	return classify(tx.db.Create(transactionFromDomain(txn)).Error)
}

func (tx *pgTx) Investment(id string) (*domain.Investment, error) {
	var row investmentRow
	if err := tx.db.Where("investment_id = ?", id).Take(&row).Error; err != nil {
		return nil, notFound(err, domain.ErrInvestmentNotFound)
	}
	return row.toDomain(), nil
}

func (tx *pgTx) Verification(userID string) (domain.VerificationStatus, error) {
	var row verificationRow
	err := tx.db.Where("user_id = ?", userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.VerificationPending, nil
	}
	if err != nil {
		return "", classify(err)
	}
	return domain.VerificationStatus(row.Status), nil
}

func (tx *pgTx) ListInvestments(key domain.PositionKey) ([]*domain.Investment, error) {
	var rows []investmentRow
	err := tx.db.
		Where("user_id = ? AND property_id = ?", key.UserID, key.PropertyID).
		Order("created_at").Order("investment_id").
		Find(&rows).Error
	if err != nil {
		return nil, classify(err)
	}

	result := make([]*domain.Investment, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].toDomain())
	}
	return result, nil
}

func (tx *pgTx) ListSettledHolds(key domain.PositionKey) ([]*domain.ShareHold, error) {
	return tx.findHolds(tx.db.
		Where("property_id = ? AND status = ?", key.PropertyID, domain.HoldStatusSettled).
		Where("buyer_id = ? OR seller_id = ?", key.UserID, key.UserID))
}

func (tx *pgTx) ListSellerPendingHolds(key domain.PositionKey) ([]*domain.ShareHold, error) {
	return tx.findHolds(tx.db.Where("seller_id = ? AND property_id = ? AND status = ?",
		key.UserID, key.PropertyID, domain.HoldStatusPending))
}

func (tx *pgTx) ListPendingHolds(sellRequestID string) ([]*domain.ShareHold, error) {
	return tx.findHolds(tx.db.Where("sell_request_id = ? AND status = ?",
		sellRequestID, domain.HoldStatusPending))
}

func (tx *pgTx) findHolds(query *gorm.DB) ([]*domain.ShareHold, error) {
	var rows []holdRow
	if err := query.Order("created_at").Order("hold_id").Find(&rows).Error; err != nil {
		return nil, classify(err)
	}

	result := make([]*domain.ShareHold, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].toDomain())
	}
	return result, nil
}

func (tx *pgTx) ListSellerSellRequests(key domain.PositionKey) ([]*domain.SellRequest, error) {
	var rows []sellRequestRow
	err := tx.db.
		Where("seller_id = ? AND property_id = ?", key.UserID, key.PropertyID).
		Order("created_at").Order("sell_request_id").
		Find(&rows).Error
	if err != nil {
		return nil, classify(err)
	}

	result := make([]*domain.SellRequest, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].toDomain())
	}
	return result, nil
}
