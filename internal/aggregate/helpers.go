package aggregate

import (
	"fmt"
	"math/big"
)

// rateDigits is the number of decimals fee rates and APR are rendered with.
const rateDigits = 18

var secondsPerYear = big.NewRat(365*24*60*60, 1)

func parseAmount(value string) (*big.Int, error) {
	if value == "" {
		return new(big.Int), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return parsed, nil
}

func addAbs(total, value *big.Int) {
	if total == nil || value == nil {
		return
	}
	total.Add(total, new(big.Int).Abs(value))
}

// tierFee estimates the fee inside an input amount from the fee tier, in hundredths
// of a bip.
func tierFee(amountIn *big.Int, fee uint32) *big.Int {
	out := new(big.Int)
	if amountIn == nil || fee == 0 {
		return out
	}
	out.Abs(amountIn)
	out.Mul(out, big.NewInt(int64(fee)))
	return out.Quo(out, big.NewInt(1_000_000))
}

// feeRate is fee/tvl for one token, nil when either side is zero.
func feeRate(fee, tvl *big.Int) *big.Rat {
	if fee == nil || fee.Sign() == 0 || tvl == nil || tvl.Sign() == 0 {
		return nil
	}
	return new(big.Rat).SetFrac(fee, tvl)
}

// annualRate scales a single-sided fee rate to a year. Rates on both sides are in
// different units, so no APR is given for them.
func annualRate(rate0, rate1 *big.Rat, windowSeconds uint64) *big.Rat {
	if windowSeconds == 0 {
		return nil
	}
	rate := rate0
	switch {
	case rate0 != nil && rate1 == nil:
	case rate1 != nil && rate0 == nil:
		rate = rate1
	default:
		return nil
	}
	apr := new(big.Rat).Mul(rate, secondsPerYear)
	return apr.Quo(apr, new(big.Rat).SetInt64(int64(windowSeconds)))
}

func ratText(r *big.Rat) *string {
	if r == nil {
		return nil
	}
	text := r.FloatString(rateDigits)
	return &text
}

func intText(value *big.Int) *string {
	if value == nil {
		return nil
	}
	text := value.String()
	return &text
}
