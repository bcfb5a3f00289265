package fixedpoint

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// AddDelta applies a signed int128 delta to a uint128 liquidity value.
func AddDelta(liquidity *uint256.Int, delta *big.Int) (*uint256.Int, error) {
	if !FitsInt128(delta) {
		return nil, fmt.Errorf("liquidity delta %s: %w", delta.String(), ErrArithmeticOverflow)
	}
	abs, err := Abs(delta)
	if err != nil {
		return nil, err
	}
	if delta.Sign() < 0 {
		if liquidity.Lt(abs) {
			return nil, fmt.Errorf("liquidity %s minus %s: %w", liquidity.Dec(), abs.Dec(), ErrLiquidityOverflow)
		}
		return new(uint256.Int).Sub(liquidity, abs), nil
	}
	out := new(uint256.Int).Add(liquidity, abs)
	if out.Gt(MaxUint128) {
		return nil, fmt.Errorf("liquidity %s plus %s: %w", liquidity.Dec(), abs.Dec(), ErrLiquidityOverflow)
	}
	return out, nil
}
