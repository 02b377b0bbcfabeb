package vault

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// DefaultDecimals is the scale of the vault's stablecoin.
const DefaultDecimals int32 = 6

// ToBaseUnits converts a human amount into integer base units. Amounts that
// are not positive or carry more precision than decimals are rejected.
func ToBaseUnits(amount decimal.Decimal, decimals int32) (*big.Int, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: %s must be positive", ErrInvalidAmount, amount)
	}
	shifted := amount.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, amount, decimals)
	}
	return shifted.BigInt(), nil
}

// FromBaseUnits is the exact inverse of ToBaseUnits.
func FromBaseUnits(units *big.Int, decimals int32) decimal.Decimal {
	if units == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(units, -decimals)
}

// ParseAmount parses a decimal string and converts it to base units.
func ParseAmount(raw string, decimals int32) (decimal.Decimal, *big.Int, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, nil, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	units, err := ToBaseUnits(amount, decimals)
	if err != nil {
		return decimal.Decimal{}, nil, err
	}
	return amount, units, nil
}
