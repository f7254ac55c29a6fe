package main

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
)

var maxUint64 = decimal.NewFromInt(math.MaxInt64).Mul(decimal.NewFromInt(2)).Add(decimal.NewFromInt(1))

// toBaseUnits reads a human amount such as "1.25" into the smallest unit of a
// mint with the given decimals. Fractions finer than the mint allows are
// rejected rather than rounded.
func toBaseUnits(amount string, decimals uint8) (uint64, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", amount, ErrInvalidAmount)
	}

	units := d.Shift(int32(decimals))
	if units.IsNegative() || !units.Equal(units.Truncate(0)) || units.GreaterThan(maxUint64) {
		return 0, fmt.Errorf("%q at %d decimals: %w", amount, decimals, ErrInvalidAmount)
	}

	return units.BigInt().Uint64(), nil
}

func fromBaseUnits(units uint64, decimals uint8) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(units), -int32(decimals)).String()
}
