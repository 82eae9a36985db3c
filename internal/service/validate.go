package service

import (
	"fmt"
	"regexp"

	"github.com/efreitasn/shareledger/internal/domain"
)

var (
	idRegex             = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	idempotencyKeyRegex = regexp.MustCompile(`^[\x21-\x7e]{1,128}$`)
	referenceRegex      = regexp.MustCompile(`^[\x20-\x7e]{0,128}$`)
)

const maxPageLimit = 100

func validateID(field, v string) error {
	if !idRegex.MatchString(v) {
		return &domain.ValidationError{
			Message: fmt.Sprintf("%s must match ^[a-zA-Z0-9_-]{1,64}$", field),
		}
	}
	return nil
}

func validateShares(field string, shares int64) error {
	if shares <= 0 {
		return &domain.ValidationError{
			Message: fmt.Sprintf("%s must be a positive integer", field),
		}
	}
	return nil
}

func validatePage(page, limit int) error {
	if page < 1 {
		return &domain.ValidationError{
			Message: "page must be >= 1",
		}
	}
	if limit < 1 || limit > maxPageLimit {
		return &domain.ValidationError{
			Message: fmt.Sprintf("limit must be between 1 and %d", maxPageLimit),
		}
	}
	return nil
}
