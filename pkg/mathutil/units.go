package mathutil

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// DefaultDecimals is the precision of native EVM currencies, also assumed
// for tokens not reporting their own.
const DefaultDecimals = 18

// FormatUnits formats an amount in base units as a decimal number of whole
// units, like 1500000000000000000 with 18 decimals to "1.5". Trailing zeros
// are dropped.
func FormatUnits(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	if decimals <= 0 {
		decimals = DefaultDecimals
	}
	return decimal.NewFromBigInt(amount, int32(-decimals)).String()
}

// ParseUnits is the inverse of FormatUnits. Amounts with more fractional
// digits than decimals are rejected.
func ParseUnits(amount string, decimals int) (*big.Int, error) {
	if decimals <= 0 {
		decimals = DefaultDecimals
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("invalid amount %q: must not be negative", amount)
	}

	shifted := d.Shift(int32(decimals))
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf(
			"invalid amount %q: more than %d decimals", amount, decimals,
		)
	}
	return shifted.BigInt(), nil
}
