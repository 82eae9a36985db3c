package domain

import (
	"context"
	"errors"
)

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	// State conflicts: rejected inside the unit of work with no side effects.
	ErrInsufficientShares          = errors.New("insufficient_shares")
	ErrInsufficientFunds           = errors.New("insufficient_funds")
	ErrVerificationRequired        = errors.New("verification_required")
	ErrInsufficientPosition        = errors.New("insufficient_position")
	ErrInsufficientRemainingShares = errors.New("insufficient_remaining_shares")
	ErrSellRequestNotActive        = errors.New("sell_request_not_active")
	ErrHoldExpired                 = errors.New("hold_expired")
	ErrHoldNotPending              = errors.New("hold_not_pending")
	ErrNotHoldParty                = errors.New("not_hold_party")
	ErrNotSeller                   = errors.New("not_seller")
	ErrSelfTrade                   = errors.New("self_trade")
	ErrPriceMismatch               = errors.New("price_mismatch")
	ErrIdempotencyConflict         = errors.New("idempotency_conflict")
	ErrPropertyAlreadyExists       = errors.New("property_already_exists")

	// Lookups.
	ErrPropertyNotFound    = errors.New("property_not_found")
	ErrSellRequestNotFound = errors.New("sell_request_not_found")
	ErrHoldNotFound        = errors.New("hold_not_found")
	ErrInvestmentNotFound  = errors.New("investment_not_found")

	// Infrastructure: safe for the caller to retry.
	ErrLockTimeout        = errors.New("lock_timeout")
	ErrStorageUnavailable = errors.New("storage_unavailable")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsRetryable reports whether err is an infrastructure failure that left no
// state behind, so repeating the call (with the same idempotency key) is safe.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockTimeout) ||
		errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, context.DeadlineExceeded)
}

// IsStateConflict reports whether err is a precondition that failed against
// current state. Retrying cannot succeed without an external state change.
func IsStateConflict(err error) bool {
	for _, target := range []error{
		ErrInsufficientShares,
		ErrInsufficientFunds,
		ErrVerificationRequired,
		ErrInsufficientPosition,
		ErrInsufficientRemainingShares,
		ErrSellRequestNotActive,
		ErrHoldExpired,
		ErrHoldNotPending,
		ErrNotHoldParty,
		ErrNotSeller,
		ErrSelfTrade,
		ErrPriceMismatch,
		ErrIdempotencyConflict,
		ErrPropertyAlreadyExists,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
