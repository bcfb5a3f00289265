package fixedpoint

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// NextSqrtPriceFromAmount0RoundingUp returns the price after adding (add) or removing
// amount of token0. The result is rounded up so the price moves no further than the
// exact value in either direction.
func NextSqrtPriceFromAmount0RoundingUp(sqrtPX96, liquidity, amount *uint256.Int, add bool) (*uint256.Int, error) {
	if amount.IsZero() {
		return new(uint256.Int).Set(sqrtPX96), nil
	}
	numerator1 := new(uint256.Int).Lsh(liquidity, Resolution)

	product, mulOverflow := new(uint256.Int).MulOverflow(amount, sqrtPX96)
	if add {
		if !mulOverflow {
			denominator, addOverflow := new(uint256.Int).AddOverflow(numerator1, product)
			if !addOverflow {
				return MulDivRoundingUp(numerator1, sqrtPX96, denominator)
			}
		}
		// liquidity / (liquidity/sqrtP + amount), avoiding the overflowing product
		denominator, overflow := new(uint256.Int).AddOverflow(new(uint256.Int).Div(numerator1, sqrtPX96), amount)
		if overflow {
			return nil, fmt.Errorf("next price from amount0: %w", ErrArithmeticOverflow)
		}
		return DivRoundingUp(numerator1, denominator)
	}

	if mulOverflow || !numerator1.Gt(product) {
		return nil, fmt.Errorf("next price from amount0 output %s: %w", amount.Dec(), ErrArithmeticOverflow)
	}
	denominator := new(uint256.Int).Sub(numerator1, product)
	next, err := MulDivRoundingUp(numerator1, sqrtPX96, denominator)
	if err != nil {
		return nil, err
	}
	return toUint160(next)
}

// NextSqrtPriceFromAmount1RoundingDown returns the price after adding (add) or removing
// amount of token1, rounded down.
func NextSqrtPriceFromAmount1RoundingDown(sqrtPX96, liquidity, amount *uint256.Int, add bool) (*uint256.Int, error) {
	if add {
		quotient, err := MulDiv(amount, Q96, liquidity)
		if err != nil {
			return nil, err
		}
		next, overflow := new(uint256.Int).AddOverflow(sqrtPX96, quotient)
		if overflow {
			return nil, fmt.Errorf("next price from amount1: %w", ErrArithmeticOverflow)
		}
		return toUint160(next)
	}

	quotient, err := MulDivRoundingUp(amount, Q96, liquidity)
	if err != nil {
		return nil, err
	}
	if !sqrtPX96.Gt(quotient) {
		return nil, fmt.Errorf("next price from amount1 output %s: %w", amount.Dec(), ErrArithmeticOverflow)
	}
	return new(uint256.Int).Sub(sqrtPX96, quotient), nil
}

// NextSqrtPriceFromInput returns the price after swapping amountIn of token0
// (zeroForOne) or token1 into the pool.
func NextSqrtPriceFromInput(sqrtPX96, liquidity, amountIn *uint256.Int, zeroForOne bool) (*uint256.Int, error) {
	if sqrtPX96.IsZero() {
		return nil, ErrZeroPrice
	}
	if liquidity.IsZero() {
		return nil, ErrZeroLiquidity
	}
	if zeroForOne {
		return NextSqrtPriceFromAmount0RoundingUp(sqrtPX96, liquidity, amountIn, true)
	}
	return NextSqrtPriceFromAmount1RoundingDown(sqrtPX96, liquidity, amountIn, true)
}

// NextSqrtPriceFromOutput returns the price after taking amountOut of token1
// (zeroForOne) or token0 out of the pool.
func NextSqrtPriceFromOutput(sqrtPX96, liquidity, amountOut *uint256.Int, zeroForOne bool) (*uint256.Int, error) {
	if sqrtPX96.IsZero() {
		return nil, ErrZeroPrice
	}
	if liquidity.IsZero() {
		return nil, ErrZeroLiquidity
	}
	if zeroForOne {
		return NextSqrtPriceFromAmount1RoundingDown(sqrtPX96, liquidity, amountOut, false)
	}
	return NextSqrtPriceFromAmount0RoundingUp(sqrtPX96, liquidity, amountOut, false)
}

// Amount0Delta returns liquidity * (sqrtB - sqrtA) / (sqrtA * sqrtB), the token0
// amount between two prices. Argument order does not matter.
func Amount0Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	a, b := sqrtRatioAX96, sqrtRatioBX96
	if a.Gt(b) {
		a, b = b, a
	}
	if a.IsZero() {
		return nil, ErrZeroPrice
	}

	numerator1 := new(uint256.Int).Lsh(liquidity, Resolution)
	numerator2 := new(uint256.Int).Sub(b, a)

	if roundUp {
		inner, err := MulDivRoundingUp(numerator1, numerator2, b)
		if err != nil {
			return nil, err
		}
		return DivRoundingUp(inner, a)
	}
	inner, err := MulDiv(numerator1, numerator2, b)
	if err != nil {
		return nil, err
	}
	return inner.Div(inner, a), nil
}

// Amount1Delta returns liquidity * (sqrtB - sqrtA), the token1 amount between two prices.
func Amount1Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	a, b := sqrtRatioAX96, sqrtRatioBX96
	if a.Gt(b) {
		a, b = b, a
	}
	diff := new(uint256.Int).Sub(b, a)
	if roundUp {
		return MulDivRoundingUp(liquidity, diff, Q96)
	}
	return MulDiv(liquidity, diff, Q96)
}

// Amount0DeltaSigned is Amount0Delta for a signed liquidity change. Added liquidity
// rounds up (owed to the pool), removed liquidity rounds down and is negative.
func Amount0DeltaSigned(sqrtRatioAX96, sqrtRatioBX96 *uint256.Int, liquidity *big.Int) (*big.Int, error) {
	return signedDelta(sqrtRatioAX96, sqrtRatioBX96, liquidity, Amount0Delta)
}

// Amount1DeltaSigned is Amount1Delta for a signed liquidity change.
func Amount1DeltaSigned(sqrtRatioAX96, sqrtRatioBX96 *uint256.Int, liquidity *big.Int) (*big.Int, error) {
	return signedDelta(sqrtRatioAX96, sqrtRatioBX96, liquidity, Amount1Delta)
}

type deltaFunc func(a, b, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error)

func signedDelta(a, b *uint256.Int, liquidity *big.Int, fn deltaFunc) (*big.Int, error) {
	if !FitsInt128(liquidity) {
		return nil, fmt.Errorf("liquidity delta %s: %w", liquidity.String(), ErrArithmeticOverflow)
	}
	abs, err := Abs(liquidity)
	if err != nil {
		return nil, err
	}
	amount, err := fn(a, b, abs, liquidity.Sign() >= 0)
	if err != nil {
		return nil, err
	}
	out, err := ToInt256(amount)
	if err != nil {
		return nil, err
	}
	if liquidity.Sign() < 0 {
		out.Neg(out)
	}
	return out, nil
}
