package fixedpoint

import (
	"fmt"

	"github.com/holiman/uint256"
)

// MulDiv returns floor(a*b/denominator) computed with a 512-bit intermediate product.
func MulDiv(a, b, denominator *uint256.Int) (*uint256.Int, error) {
	if denominator.IsZero() {
		return nil, ErrDivisionByZero
	}
	z, overflow := new(uint256.Int).MulDivOverflow(a, b, denominator)
	if overflow {
		return nil, fmt.Errorf("mul div %s*%s/%s: %w", a.Dec(), b.Dec(), denominator.Dec(), ErrArithmeticOverflow)
	}
	return z, nil
}

// MulDivRoundingUp returns ceil(a*b/denominator).
func MulDivRoundingUp(a, b, denominator *uint256.Int) (*uint256.Int, error) {
	z, err := MulDiv(a, b, denominator)
	if err != nil {
		return nil, err
	}
	if new(uint256.Int).MulMod(a, b, denominator).IsZero() {
		return z, nil
	}
	if _, overflow := z.AddOverflow(z, one); overflow {
		return nil, fmt.Errorf("mul div rounding up: %w", ErrArithmeticOverflow)
	}
	return z, nil
}

// DivRoundingUp returns ceil(a/b).
func DivRoundingUp(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, ErrDivisionByZero
	}
	quo, rem := new(uint256.Int).DivMod(a, b, new(uint256.Int))
	if !rem.IsZero() {
		quo.Add(quo, one)
	}
	return quo, nil
}
