package fixedpoint

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// SwapStep is the outcome of swapping within a single price range.
type SwapStep struct {
	SqrtRatioNextX96 *uint256.Int
	AmountIn         *uint256.Int
	AmountOut        *uint256.Int
	FeeAmount        *uint256.Int
}

// ComputeSwapStep swaps against constant liquidity from sqrtRatioCurrentX96 towards
// sqrtRatioTargetX96. A non-negative amountRemaining is an exact input (fee included),
// a negative one an exact output. The direction is implied by the two prices.
func ComputeSwapStep(
	sqrtRatioCurrentX96 *uint256.Int,
	sqrtRatioTargetX96 *uint256.Int,
	liquidity *uint256.Int,
	amountRemaining *big.Int,
	feePips uint32,
) (SwapStep, error) {
	if feePips >= FeeDenominator {
		return SwapStep{}, ErrInvalidFee
	}
	remaining, err := Abs(amountRemaining)
	if err != nil {
		return SwapStep{}, err
	}

	zeroForOne := !sqrtRatioCurrentX96.Lt(sqrtRatioTargetX96)
	exactIn := amountRemaining.Sign() >= 0
	feeDen := uint256.NewInt(uint64(FeeDenominator))
	feeRest := uint256.NewInt(uint64(FeeDenominator - feePips))

	var (
		next      *uint256.Int
		amountIn  *uint256.Int
		amountOut *uint256.Int
	)

	if exactIn {
		remainingLessFee, err := MulDiv(remaining, feeRest, feeDen)
		if err != nil {
			return SwapStep{}, err
		}
		if zeroForOne {
			amountIn, err = Amount0Delta(sqrtRatioTargetX96, sqrtRatioCurrentX96, liquidity, true)
		} else {
			amountIn, err = Amount1Delta(sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, true)
		}
		if err != nil {
			return SwapStep{}, err
		}
		if !remainingLessFee.Lt(amountIn) {
			next = new(uint256.Int).Set(sqrtRatioTargetX96)
		} else {
			next, err = NextSqrtPriceFromInput(sqrtRatioCurrentX96, liquidity, remainingLessFee, zeroForOne)
			if err != nil {
				return SwapStep{}, err
			}
		}
	} else {
		var err error
		if zeroForOne {
			amountOut, err = Amount1Delta(sqrtRatioTargetX96, sqrtRatioCurrentX96, liquidity, false)
		} else {
			amountOut, err = Amount0Delta(sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, false)
		}
		if err != nil {
			return SwapStep{}, err
		}
		if !remaining.Lt(amountOut) {
			next = new(uint256.Int).Set(sqrtRatioTargetX96)
		} else {
			next, err = NextSqrtPriceFromOutput(sqrtRatioCurrentX96, liquidity, remaining, zeroForOne)
			if err != nil {
				return SwapStep{}, err
			}
		}
	}

	reachedTarget := next.Eq(sqrtRatioTargetX96)

	if zeroForOne {
		if !reachedTarget || !exactIn {
			if amountIn, err = Amount0Delta(next, sqrtRatioCurrentX96, liquidity, true); err != nil {
				return SwapStep{}, err
			}
		}
		if !reachedTarget || exactIn {
			if amountOut, err = Amount1Delta(next, sqrtRatioCurrentX96, liquidity, false); err != nil {
				return SwapStep{}, err
			}
		}
	} else {
		if !reachedTarget || !exactIn {
			if amountIn, err = Amount1Delta(sqrtRatioCurrentX96, next, liquidity, true); err != nil {
				return SwapStep{}, err
			}
		}
		if !reachedTarget || exactIn {
			if amountOut, err = Amount0Delta(sqrtRatioCurrentX96, next, liquidity, false); err != nil {
				return SwapStep{}, err
			}
		}
	}

	// exact output never pays out more than requested
	if !exactIn && amountOut.Gt(remaining) {
		amountOut = new(uint256.Int).Set(remaining)
	}

	var feeAmount *uint256.Int
	if exactIn && !reachedTarget {
		// the remainder of the input is the fee
		if remaining.Lt(amountIn) {
			return SwapStep{}, fmt.Errorf("swap step input %s above remaining %s: %w", amountIn.Dec(), remaining.Dec(), ErrArithmeticOverflow)
		}
		feeAmount = new(uint256.Int).Sub(remaining, amountIn)
	} else {
		feeAmount, err = MulDivRoundingUp(amountIn, uint256.NewInt(uint64(feePips)), feeRest)
		if err != nil {
			return SwapStep{}, err
		}
	}

	return SwapStep{
		SqrtRatioNextX96: next,
		AmountIn:         amountIn,
		AmountOut:        amountOut,
		FeeAmount:        feeAmount,
	}, nil
}
