package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/shareledger/internal/domain"
	"github.com/efreitasn/shareledger/internal/engine"
	"github.com/efreitasn/shareledger/internal/store"
)

// MoneyMovementRequest is a deposit into or withdrawal from escrow, reported
// by the external payments process.
type MoneyMovementRequest struct {
	UserID    string
	Amount    decimal.Decimal
	Reference string
}

// TransactionPage is one page of a user's ledger history.
type TransactionPage struct {
	Transactions []*domain.Transaction
	Total        int
	Page         int
	Limit        int
}

// AccountService serves escrow balances, ledger history, verification
// status and positions.
type AccountService struct {
	engine *engine.Engine
	store  store.Store
}

// NewAccountService creates a new AccountService.
func NewAccountService(eng *engine.Engine, s store.Store) *AccountService {
	return &AccountService{engine: eng, store: s}
}

func (s *AccountService) validateMovement(req MoneyMovementRequest) error {
	if err := validateID("user_id", req.UserID); err != nil {
		return err
	}
	if err := domain.ValidateMoney("amount", req.Amount); err != nil {
		return err
	}
	if !referenceRegex.MatchString(req.Reference) {
		return &domain.ValidationError{Message: "reference must be at most 128 printable ASCII characters"}
	}
	return nil
}

// Deposit credits escrow.
func (s *AccountService) Deposit(ctx context.Context, req MoneyMovementRequest) (*domain.EscrowBalance, error) {
	if err := s.validateMovement(req); err != nil {
		return nil, err
	}
	return s.engine.Deposit(ctx, req.UserID, req.Amount, req.Reference)
}

// Withdraw debits escrow, failing with ErrInsufficientFunds when short.
func (s *AccountService) Withdraw(ctx context.Context, req MoneyMovementRequest) (*domain.EscrowBalance, error) {
	if err := s.validateMovement(req); err != nil {
		return nil, err
	}
	return s.engine.Withdraw(ctx, req.UserID, req.Amount, req.Reference)
}

// Balance returns the user's escrow balance; users without one read as zero.
func (s *AccountService) Balance(ctx context.Context, userID string) (*domain.EscrowBalance, error) {
	if err := validateID("user_id", userID); err != nil {
		return nil, err
	}
	return s.store.Balance(ctx, userID)
}

// SetVerification records the KYC outcome for userID.
func (s *AccountService) SetVerification(ctx context.Context, userID string, status domain.VerificationStatus) error {
	if err := validateID("user_id", userID); err != nil {
		return err
	}
	switch status {
	case domain.VerificationPending, domain.VerificationApproved, domain.VerificationRejected:
	default:
		return &domain.ValidationError{
			Message: fmt.Sprintf("Invalid verification status: '%s'. Must be one of: pending, approved, rejected", status),
		}
	}
	return s.store.SetVerification(ctx, userID, status)
}

// Transactions lists the user's ledger entries newest first.
func (s *AccountService) Transactions(ctx context.Context, userID string, page, limit int) (*TransactionPage, error) {
	if err := validateID("user_id", userID); err != nil {
		return nil, err
	}
	if err := validatePage(page, limit); err != nil {
		return nil, err
	}
	txns, total, err := s.store.Transactions(ctx, userID, page, limit)
	if err != nil {
		return nil, err
	}
	return &TransactionPage{Transactions: txns, Total: total, Page: page, Limit: limit}, nil
}

// Position returns the user's snapshot for propertyID.
func (s *AccountService) Position(ctx context.Context, userID, propertyID string) (*domain.PositionSnapshot, error) {
	if err := validateID("user_id", userID); err != nil {
		return nil, err
	}
	if err := validateID("property_id", propertyID); err != nil {
		return nil, err
	}
	return s.engine.GetPosition(ctx, userID, propertyID)
}
