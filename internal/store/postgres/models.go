package postgres

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/shareledger/internal/domain"
)

type balanceRow struct {
	UserID           string          `gorm:"type:varchar(64);primaryKey"`
	AvailableBalance decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0"`
	PendingBalance   decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0"`
	TotalInvested    decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0"`
	TotalReturns     decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0"`
	UpdatedAt        time.Time       `gorm:"type:timestamptz;not null;autoUpdateTime:false"`
}

func (balanceRow) TableName() string { return "escrow_balances" }

func (r *balanceRow) toDomain() *domain.EscrowBalance {
	return &domain.EscrowBalance{
		UserID:           r.UserID,
		AvailableBalance: r.AvailableBalance,
		PendingBalance:   r.PendingBalance,
		TotalInvested:    r.TotalInvested,
		TotalReturns:     r.TotalReturns,
		UpdatedAt:        r.UpdatedAt,
	}
}

func balanceFromDomain(b *domain.EscrowBalance) *balanceRow {
	return &balanceRow{
		UserID:           b.UserID,
		AvailableBalance: b.AvailableBalance,
		PendingBalance:   b.PendingBalance,
		TotalInvested:    b.TotalInvested,
		TotalReturns:     b.TotalReturns,
		UpdatedAt:        b.UpdatedAt,
	}
}

type inventoryRow struct {
	PropertyID      string          `gorm:"type:varchar(64);primaryKey"`
	TotalShares     int64           `gorm:"not null"`
	AvailableShares int64           `gorm:"not null;check:available_shares >= 0"`
	SharePrice      decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	Status          string          `gorm:"type:varchar(16);not null"`
	CreatedAt       time.Time       `gorm:"type:timestamptz;not null;autoCreateTime:false"`
	UpdatedAt       time.Time       `gorm:"type:timestamptz;not null;autoUpdateTime:false"`
}

func (inventoryRow) TableName() string { return "property_inventory" }

func (r *inventoryRow) toDomain() *domain.PropertyInventory {
	return &domain.PropertyInventory{
		PropertyID:      r.PropertyID,
		TotalShares:     r.TotalShares,
		AvailableShares: r.AvailableShares,
		SharePrice:      r.SharePrice,
		Status:          domain.PropertyStatus(r.Status),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func inventoryFromDomain(p *domain.PropertyInventory) *inventoryRow {
	return &inventoryRow{
		PropertyID:      p.PropertyID,
		TotalShares:     p.TotalShares,
		AvailableShares: p.AvailableShares,
		SharePrice:      p.SharePrice,
		Status:          string(p.Status),
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

type investmentRow struct {
	InvestmentID   string          `gorm:"type:varchar(64);primaryKey"`
	UserID         string          `gorm:"type:varchar(64);not null;index:idx_investments_owner,priority:1"`
	PropertyID     string          `gorm:"type:varchar(64);not null;index:idx_investments_owner,priority:2"`
	Shares         int64           `gorm:"not null"`
	PricePerShare  decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	TotalAmount    decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	Status         string          `gorm:"type:varchar(16);not null"`
	IdempotencyKey string          `gorm:"type:varchar(128);not null;uniqueIndex"`
	CreatedAt      time.Time       `gorm:"type:timestamptz;not null;autoCreateTime:false"`
}

func (investmentRow) TableName() string { return "investments" }

func (r *investmentRow) toDomain() *domain.Investment {
	return &domain.Investment{
		InvestmentID:   r.InvestmentID,
		UserID:         r.UserID,
		PropertyID:     r.PropertyID,
		Shares:         r.Shares,
		PricePerShare:  r.PricePerShare,
		TotalAmount:    r.TotalAmount,
		Status:         domain.InvestmentStatus(r.Status),
		IdempotencyKey: r.IdempotencyKey,
		CreatedAt:      r.CreatedAt,
	}
}

func investmentFromDomain(i *domain.Investment) *investmentRow {
	return &investmentRow{
		InvestmentID:   i.InvestmentID,
		UserID:         i.UserID,
		PropertyID:     i.PropertyID,
		Shares:         i.Shares,
		PricePerShare:  i.PricePerShare,
		TotalAmount:    i.TotalAmount,
		Status:         string(i.Status),
		IdempotencyKey: i.IdempotencyKey,
		CreatedAt:      i.CreatedAt,
	}
}

type transactionRow struct {
	TransactionID string          `gorm:"type:varchar(64);primaryKey"`
	UserID        string          `gorm:"type:varchar(64);not null;index:idx_transactions_user,priority:1"`
	Type          string          `gorm:"type:varchar(32);not null"`
	Amount        decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	Status        string          `gorm:"type:varchar(16);not null"`
	ReferenceID   string          `gorm:"type:varchar(128);index"`
	CreatedAt     time.Time       `gorm:"type:timestamptz;not null;index:idx_transactions_user,priority:2;autoCreateTime:false"`
}

func (transactionRow) TableName() string { return "transactions" }

func (r *transactionRow) toDomain() *domain.Transaction {
	return &domain.Transaction{
		TransactionID: r.TransactionID,
		UserID:        r.UserID,
		Type:          domain.TransactionType(r.Type),
		Amount:        r.Amount,
		Status:        domain.TransactionStatus(r.Status),
		ReferenceID:   r.ReferenceID,
		CreatedAt:     r.CreatedAt,
	}
}

func transactionFromDomain(t *domain.Transaction) *transactionRow {
	return &transactionRow{
		TransactionID: t.TransactionID,
		UserID:        t.UserID,
		Type:          string(t.Type),
		Amount:        t.Amount,
		Status:        string(t.Status),
		ReferenceID:   t.ReferenceID,
		CreatedAt:     t.CreatedAt,
	}
}

type sellRequestRow struct {
	SellRequestID   string          `gorm:"type:varchar(64);primaryKey"`
	SellerID        string          `gorm:"type:varchar(64);not null;index:idx_sell_requests_seller,priority:1"`
	PropertyID      string          `gorm:"type:varchar(64);not null;index:idx_sell_requests_seller,priority:2"`
	SharesToSell    int64           `gorm:"not null"`
	RemainingShares int64           `gorm:"not null;check:remaining_shares >= 0"`
	PricePerShare   decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	Status          string          `gorm:"type:varchar(16);not null;index:idx_sell_requests_expiry,priority:1"`
	ExpiresAt       time.Time       `gorm:"type:timestamptz;not null;index:idx_sell_requests_expiry,priority:2"`
	CreatedAt       time.Time       `gorm:"type:timestamptz;not null;autoCreateTime:false"`
	UpdatedAt       time.Time       `gorm:"type:timestamptz;not null;autoUpdateTime:false"`
	ClosedAt        *time.Time      `gorm:"type:timestamptz"`
}

func (sellRequestRow) TableName() string { return "sell_requests" }

func (r *sellRequestRow) toDomain() *domain.SellRequest {
	return &domain.SellRequest{
		SellRequestID:   r.SellRequestID,
		SellerID:        r.SellerID,
		PropertyID:      r.PropertyID,
		SharesToSell:    r.SharesToSell,
		RemainingShares: r.RemainingShares,
		PricePerShare:   r.PricePerShare,
		Status:          domain.SellRequestStatus(r.Status),
		ExpiresAt:       r.ExpiresAt,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		ClosedAt:        r.ClosedAt,
	}
}

func sellRequestFromDomain(s *domain.SellRequest) *sellRequestRow {
	return &sellRequestRow{
		SellRequestID:   s.SellRequestID,
		SellerID:        s.SellerID,
		PropertyID:      s.PropertyID,
		SharesToSell:    s.SharesToSell,
		RemainingShares: s.RemainingShares,
		PricePerShare:   s.PricePerShare,
		Status:          string(s.Status),
		ExpiresAt:       s.ExpiresAt,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
		ClosedAt:        s.ClosedAt,
	}
}

type holdRow struct {
	HoldID          string          `gorm:"type:varchar(64);primaryKey"`
	SellRequestID   string          `gorm:"type:varchar(64);not null;index"`
	BuyerID         string          `gorm:"type:varchar(64);not null;index:idx_share_holds_buyer,priority:1"`
	SellerID        string          `gorm:"type:varchar(64);not null;index:idx_share_holds_seller,priority:1"`
	PropertyID      string          `gorm:"type:varchar(64);not null;index:idx_share_holds_buyer,priority:2;index:idx_share_holds_seller,priority:2"`
	SharesHeld      int64           `gorm:"not null"`
	PricePerShare   decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	BuyerConfirmed  bool            `gorm:"not null;default:false"`
	SellerConfirmed bool            `gorm:"not null;default:false"`
	Status          string          `gorm:"type:varchar(16);not null;index:idx_share_holds_expiry,priority:1"`
	HoldExpiresAt   time.Time       `gorm:"type:timestamptz;not null;index:idx_share_holds_expiry,priority:2"`
	CreatedAt       time.Time       `gorm:"type:timestamptz;not null;autoCreateTime:false"`
	UpdatedAt       time.Time       `gorm:"type:timestamptz;not null;autoUpdateTime:false"`
	SettledAt       *time.Time      `gorm:"type:timestamptz"`
}

func (holdRow) TableName() string { return "share_holds" }

func (r *holdRow) toDomain() *domain.ShareHold {
	return &domain.ShareHold{
		HoldID:          r.HoldID,
		SellRequestID:   r.SellRequestID,
		BuyerID:         r.BuyerID,
		SellerID:        r.SellerID,
		PropertyID:      r.PropertyID,
		SharesHeld:      r.SharesHeld,
		PricePerShare:   r.PricePerShare,
		BuyerConfirmed:  r.BuyerConfirmed,
		SellerConfirmed: r.SellerConfirmed,
		Status:          domain.HoldStatus(r.Status),
		HoldExpiresAt:   r.HoldExpiresAt,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		SettledAt:       r.SettledAt,
	}
}

func holdFromDomain(h *domain.ShareHold) *holdRow {
	return &holdRow{
		HoldID:          h.HoldID,
		SellRequestID:   h.SellRequestID,
		BuyerID:         h.BuyerID,
		SellerID:        h.SellerID,
		PropertyID:      h.PropertyID,
		SharesHeld:      h.SharesHeld,
		PricePerShare:   h.PricePerShare,
		BuyerConfirmed:  h.BuyerConfirmed,
		SellerConfirmed: h.SellerConfirmed,
		Status:          string(h.Status),
		HoldExpiresAt:   h.HoldExpiresAt,
		CreatedAt:       h.CreatedAt,
		UpdatedAt:       h.UpdatedAt,
		SettledAt:       h.SettledAt,
	}
}

type positionRow struct {
	UserID     string          `gorm:"type:varchar(64);primaryKey"`
	PropertyID string          `gorm:"type:varchar(64);primaryKey"`
	Shares     int64           `gorm:"not null;default:0;check:shares >= 0"`
	AvgPrice   decimal.Decimal `gorm:"type:numeric(28,8);not null;default:0"`
	CostBasis  decimal.Decimal `gorm:"type:numeric(28,8);not null;default:0"`
	UpdatedAt  time.Time       `gorm:"type:timestamptz;not null;autoUpdateTime:false"`
}

func (positionRow) TableName() string { return "position_snapshots" }

func (r *positionRow) toDomain() *domain.PositionSnapshot {
	return &domain.PositionSnapshot{
		UserID:     r.UserID,
		PropertyID: r.PropertyID,
		Shares:     r.Shares,
		AvgPrice:   r.AvgPrice,
		CostBasis:  r.CostBasis,
		UpdatedAt:  r.UpdatedAt,
	}
}

func positionFromDomain(p *domain.PositionSnapshot) *positionRow {
	return &positionRow{
		UserID:     p.UserID,
		PropertyID: p.PropertyID,
		Shares:     p.Shares,
		AvgPrice:   p.AvgPrice,
		CostBasis:  p.CostBasis,
		UpdatedAt:  p.UpdatedAt,
	}
}

type idempotencyRow struct {
	Key          string    `gorm:"column:idempotency_key;type:varchar(128);primaryKey"`
	RequestHash  string    `gorm:"type:char(64);not null"`
	InvestmentID string    `gorm:"type:varchar(64);not null"`
	CreatedAt    time.Time `gorm:"type:timestamptz;not null;autoCreateTime:false"`
}

func (idempotencyRow) TableName() string { return "idempotency_keys" }

type verificationRow struct {
	UserID    string    `gorm:"type:varchar(64);primaryKey"`
	Status    string    `gorm:"type:varchar(16);not null"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null;autoUpdateTime:false"`
}

func (verificationRow) TableName() string { return "user_verifications" }

func allModels() []any {
	return []any{
		&balanceRow{},
		&inventoryRow{},
		&investmentRow{},
		&transactionRow{},
		&sellRequestRow{},
		&holdRow{},
		&positionRow{},
		&idempotencyRow{},
		&verificationRow{},
	}
}
