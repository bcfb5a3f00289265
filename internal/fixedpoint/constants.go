// Package fixedpoint implements the Q64.96 square-root price arithmetic used by the
// pool engine: tick/price conversion, token amount deltas and the single swap step.
//
// Unsigned values are 256-bit words from holiman/uint256. Every operation that can
// exceed its target width returns an error wrapping ErrArithmeticOverflow.
package fixedpoint

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

const (
	// MinTick is the lowest tick whose sqrt price is representable as a uint160.
	MinTick int32 = -887272
	// MaxTick is the highest tick whose sqrt price is representable as a uint160.
	MaxTick int32 = -MinTick

	// FeeDenominator is the denominator of pool fees expressed in pips.
	FeeDenominator uint32 = 1_000_000

	// Resolution is the number of fractional bits of a Q64.96 value.
	Resolution = 96
)

var (
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
	ErrLiquidityOverflow  = errors.New("liquidity overflow")
	ErrDivisionByZero     = errors.New("division by zero")

	ErrTickOutOfBounds      = fmt.Errorf("tick out of bounds: %w", ErrArithmeticOverflow)
	ErrSqrtPriceOutOfBounds = fmt.Errorf("sqrt price out of bounds: %w", ErrArithmeticOverflow)
	ErrZeroLiquidity        = errors.New("zero liquidity")
	ErrZeroPrice            = errors.New("zero sqrt price")
	ErrInvalidFee           = errors.New("fee must be below 1000000 pips")
)

var (
	one = uint256.NewInt(1)

	// Q96 is 2^96, the Q64.96 unit.
	Q96 = new(uint256.Int).Lsh(uint256.NewInt(1), 96)
	// Q128 is 2^128, the unit of the X128 fee growth accumulators.
	Q128 = new(uint256.Int).Lsh(uint256.NewInt(1), 128)

	MaxUint128 = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))
	MaxUint160 = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 160), uint256.NewInt(1))

	// MinSqrtRatio is SqrtRatioAtTick(MinTick).
	MinSqrtRatio = uint256.NewInt(4295128739)
	// MaxSqrtRatio is SqrtRatioAtTick(MaxTick).
	MaxSqrtRatio = uint256.MustFromDecimal("1461446703485210103287273052203988822378723970342")

	MaxInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	MinInt128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	MaxInt256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(1))
	MinInt256 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 255))
)

// FitsInt128 reports whether v is representable as an int128.
func FitsInt128(v *big.Int) bool {
	return v.Cmp(MinInt128) >= 0 && v.Cmp(MaxInt128) <= 0
}

// FitsInt256 reports whether v is representable as an int256.
func FitsInt256(v *big.Int) bool {
	return v.Cmp(MinInt256) >= 0 && v.Cmp(MaxInt256) <= 0
}

// ToInt256 converts an unsigned word into a signed value, failing above MaxInt256.
func ToInt256(v *uint256.Int) (*big.Int, error) {
	out := v.ToBig()
	if out.Cmp(MaxInt256) > 0 {
		return nil, fmt.Errorf("int256 cast of %s: %w", v.Dec(), ErrArithmeticOverflow)
	}
	return out, nil
}

// Abs returns |v| as a 256-bit word.
func Abs(v *big.Int) (*uint256.Int, error) {
	out, overflow := uint256.FromBig(new(big.Int).Abs(v))
	if overflow {
		return nil, fmt.Errorf("abs of %s: %w", v.String(), ErrArithmeticOverflow)
	}
	return out, nil
}

func toUint160(v *uint256.Int) (*uint256.Int, error) {
	if v.Gt(MaxUint160) {
		return nil, fmt.Errorf("uint160 cast of %s: %w", v.Dec(), ErrArithmeticOverflow)
	}
	return v, nil
}

// WrapUint160 reduces v modulo 2^160 in place and returns it.
func WrapUint160(v *uint256.Int) *uint256.Int {
	return v.And(v, MaxUint160)
}
