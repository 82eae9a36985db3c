package engine

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/efreitasn/shareledger/internal/domain"
	"github.com/efreitasn/shareledger/internal/store"
)

// balanceAdjust updates a balance's running aggregates alongside a posting.
type balanceAdjust func(b *domain.EscrowBalance)

func addInvested(amount decimal.Decimal) balanceAdjust {
	return func(b *domain.EscrowBalance) { b.TotalInvested = b.TotalInvested.Add(amount) }
}

func addReturns(amount decimal.Decimal) balanceAdjust {
	return func(b *domain.EscrowBalance) { b.TotalReturns = b.TotalReturns.Add(amount) }
}

// debit locks userID's balance and removes amount from available funds.
// The check and the mutation happen under the same row lock; a short
// balance fails with ErrInsufficientFunds and stages nothing.
func debit(tx store.Tx, userID string, amount decimal.Decimal, now time.Time, adjust ...balanceAdjust) error {
	b, err := tx.LockBalance(userID)
	if err != nil {
		return err
	}
	if b.AvailableBalance.LessThan(amount) {
		return domain.ErrInsufficientFunds
	}

	b.AvailableBalance = b.AvailableBalance.Sub(amount)
	for _, fn := range adjust {
		fn(b)
	}
	b.UpdatedAt = now
	return tx.SaveBalance(b)
}

// credit locks userID's balance and adds amount to available funds.
func credit(tx store.Tx, userID string, amount decimal.Decimal, now time.Time, adjust ...balanceAdjust) error {
	b, err := tx.LockBalance(userID)
	if err != nil {
		return err
	}

	b.AvailableBalance = b.AvailableBalance.Add(amount)
	for _, fn := range adjust {
		fn(b)
	}
	b.UpdatedAt = now
	return tx.SaveBalance(b)
}

// lockBalances takes the balance locks of every user up front, in ascending
// id order. Later debit/credit calls on the same users reuse the locks.
func lockBalances(tx store.Tx, userIDs ...string) error {
	ids := append([]string(nil), userIDs...)
	sort.Strings(ids)
	for _, id := range ids {
		if _, err := tx.LockBalance(id); err != nil {
			return err
		}
	}
	return nil
}

func recordTransaction(tx store.Tx, userID string, typ domain.TransactionType, amount decimal.Decimal, referenceID string, now time.Time) error {
	return tx.InsertTransaction(&domain.Transaction{
		TransactionID: newID(),
		UserID:        userID,
		Type:          typ,
		Amount:        amount,
		Status:        domain.TransactionStatusCompleted,
		ReferenceID:   referenceID,
		CreatedAt:     now,
	})
}

// Deposit credits funds that the external money-movement process has already
// settled into escrow.
func (e *Engine) Deposit(ctx context.Context, userID string, amount decimal.Decimal, reference string) (*domain.EscrowBalance, error) {
	return e.post(ctx, userID, amount, reference, domain.TransactionDeposit)
}

// Withdraw debits funds on behalf of the external money-movement process.
func (e *Engine) Withdraw(ctx context.Context, userID string, amount decimal.Decimal, reference string) (*domain.EscrowBalance, error) {
	return e.post(ctx, userID, amount, reference, domain.TransactionWithdrawal)
}

func (e *Engine) post(ctx context.Context, userID string, amount decimal.Decimal, reference string, typ domain.TransactionType) (*domain.EscrowBalance, error) {
	if err := domain.ValidateMoney("amount", amount); err != nil {
		return nil, err
	}

	var result *domain.EscrowBalance
	err := e.store.Do(ctx, func(tx store.Tx) error {
		now := e.now()

		var err error
		if typ == domain.TransactionWithdrawal {
			err = debit(tx, userID, amount, now)
		} else {
			err = credit(tx, userID, amount, now)
		}
		if err != nil {
			return err
		}
		if err := recordTransaction(tx, userID, typ, amount, reference, now); err != nil {
			return err
		}

		result, err = tx.LockBalance(userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.log.Debug("ledger posting",
		zap.String("user_id", userID),
		zap.String("type", string(typ)),
		zap.String("amount", amount.String()),
	)
	return result, nil
}
