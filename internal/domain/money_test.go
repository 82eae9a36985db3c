package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidateMoney(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"whole", "100", false},
		{"one decimal place", "1.5", false},
		{"two decimal places", "148.50", false},
		{"smallest unit", "0.01", false},
		{"zero", "0", true},
		{"negative", "-50.25", true},
		{"three decimal places", "1.234", true},
		{"trailing zeros are fine", "1.100", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMoney("amount", decimal.RequireFromString(tt.input))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			assert.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
		})
	}
}

func TestAmount(t *testing.T) {
	got := Amount(6, decimal.RequireFromString("100.25"))
	assert.True(t, got.Equal(decimal.RequireFromString("601.50")), "got %s", got)
}

func TestFeeFor(t *testing.T) {
	tests := []struct {
		name  string
		gross string
		bps   int64
		want  string
	}{
		{"no fee", "5000", 0, "0"},
		{"one percent", "5000", 100, "50"},
		{"rounds down", "0.99", 150, "0.01"},
		{"full rate", "12.34", 10_000, "12.34"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FeeFor(decimal.RequireFromString(tt.gross), tt.bps)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}
