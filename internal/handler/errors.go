package handler

import (
	"errors"
	"net/http"

	"github.com/efreitasn/shareledger/internal/domain"
)

// retryAfterSeconds is advertised on 503 responses for retryable failures.
const retryAfterSeconds = "1"

var notFoundErrors = []error{
	domain.ErrPropertyNotFound,
	domain.ErrSellRequestNotFound,
	domain.ErrHoldNotFound,
	domain.ErrInvestmentNotFound,
}

// writeDomainError maps a service error to an HTTP response. Sentinel
// errors use their own text as the error code.
func writeDomainError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			WriteError(w, http.StatusNotFound, target.Error(), err.Error())
			return
		}
	}

	if domain.IsStateConflict(err) {
		WriteError(w, http.StatusConflict, conflictCode(err), err.Error())
		return
	}

	if domain.IsRetryable(err) {
		code := "storage_unavailable"
		if errors.Is(err, domain.ErrLockTimeout) {
			code = "lock_timeout"
		}
		w.Header().Set("Retry-After", retryAfterSeconds)
		WriteError(w, http.StatusServiceUnavailable, code, "The request could not be completed, retry later")
		return
	}

	WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
}

// conflictCode unwraps err down to the sentinel it wraps.
func conflictCode(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
