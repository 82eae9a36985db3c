package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TransactionDeposit       TransactionType = "deposit"
	TransactionWithdrawal    TransactionType = "withdrawal"
	TransactionInvestment    TransactionType = "investment"
	TransactionShareSale     TransactionType = "share_sale"
	TransactionSharePurchase TransactionType = "share_purchase"
	TransactionFee           TransactionType = "fee"
)

// TransactionStatus is the state of a ledger entry. Entries written by the
// core are always completed: they are created in the same unit of work as the
// balance mutation they describe.
type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "completed"
)

// Transaction is an append-only ledger entry. ReferenceID points at the
// investment, hold or external reference that caused it.
type Transaction struct {
	TransactionID string
	UserID        string
	Type          TransactionType
	Amount        decimal.Decimal
	Status        TransactionStatus
	ReferenceID   string
	CreatedAt     time.Time
}
