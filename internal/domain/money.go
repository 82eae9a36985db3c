package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places accepted for monetary input.
const MoneyScale = 2

// priceScale bounds the precision of derived per-share values such as
// average cost.
const priceScale = 8

// ValidateMoney checks that d is strictly positive and has at most
// MoneyScale decimal places.
func ValidateMoney(field string, d decimal.Decimal) error {
	if !d.IsPositive() {
		return &ValidationError{Message: fmt.Sprintf("%s must be greater than 0", field)}
	}
	if !d.Equal(d.Truncate(MoneyScale)) {
		return &ValidationError{Message: fmt.Sprintf("%s must have at most %d decimal places", field, MoneyScale)}
	}
	return nil
}

// Amount returns shares × pricePerShare.
func Amount(shares int64, pricePerShare decimal.Decimal) decimal.Decimal {
	return pricePerShare.Mul(decimal.NewFromInt(shares))
}

// FeeFor returns the fee on gross charged at bps basis points, rounded down
// to MoneyScale so the fee never exceeds the stated rate.
func FeeFor(gross decimal.Decimal, bps int64) decimal.Decimal {
	if bps <= 0 {
		return decimal.Zero
	}
	return gross.Mul(decimal.NewFromInt(bps)).Div(decimal.NewFromInt(10_000)).RoundFloor(MoneyScale)
}
