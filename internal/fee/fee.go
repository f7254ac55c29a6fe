// Package fee holds the basis-point fee arithmetic shared by every fee site of
// the marketplace.
package fee

import (
	"errors"
	"math/bits"
)

// MaxBps is 100% expressed in basis points.
const MaxBps uint16 = 10_000

var (
	ErrMathOverflow = errors.New("math overflow")
)

// Split is the result of skimming a fee off an amount.
type Split struct {
	Amount   uint64 `json:"amount"`
	Fee      uint64 `json:"fee"`
	Residual uint64 `json:"residual"`
}

// Compute returns floor(amount*bps/10000) and the remainder of amount. The
// product is formed in 128 bits so no input in range can wrap; a rate above
// MaxBps fails closed with ErrMathOverflow.
func Compute(amount uint64, bps uint16) (Split, error) {
	if bps > MaxBps {
		return Split{}, ErrMathOverflow
	}

	hi, lo := bits.Mul64(amount, uint64(bps))
	if hi >= uint64(MaxBps) {
		return Split{}, ErrMathOverflow
	}
	fee, _ := bits.Div64(hi, lo, uint64(MaxBps))

	residual, borrow := bits.Sub64(amount, fee, 0)
	if borrow != 0 {
		return Split{}, ErrMathOverflow
	}

	return Split{Amount: amount, Fee: fee, Residual: residual}, nil
}

// Delta is after-before, floored at zero.
func Delta(before, after uint64) uint64 {
	if after < before {
		return 0
	}
	return after - before
}
