package sim

import (
	"errors"

	"liquidityCore/internal/pool"
	"liquidityCore/internal/token"
)

// ErrBadOperation marks a script line that could not be turned into a pool call.
var ErrBadOperation = errors.New("bad operation")

// KindUnknown is reported for errors outside the known taxonomy.
const KindUnknown = "unknown"

// kinds is checked in order; the first match names the error. Pool failures come
// before the arithmetic errors they may wrap.
var kinds = []struct {
	name string
	err  error
}{
	{"locked", pool.ErrLocked},
	{"not_initialized", pool.ErrNotInitialized},
	{"already_initialized", pool.ErrAlreadyInitialized},
	{"invalid_range", pool.ErrInvalidRange},
	{"invalid_amount", pool.ErrInvalidAmount},
	{"invalid_price_limit", pool.ErrInvalidPriceLimit},
	{"invalid_fee_protocol", pool.ErrInvalidFeeProtocol},
	{"unauthorized", pool.ErrUnauthorized},
	{"no_position", pool.ErrNoPosition},
	{"no_liquidity", pool.ErrNoLiquidity},
	{"swap_step_limit", pool.ErrSwapStepLimit},
	{"missing_callback", pool.ErrMissingCallback},
	{"insufficient_balance", token.ErrInsufficientBalance},
	{"insufficient_input", pool.ErrInsufficientInput},
	{"stale_oracle_query", pool.ErrStaleOracleQuery},
	{"liquidity_overflow", pool.ErrLiquidityOverflow},
	{"arithmetic_overflow", pool.ErrArithmeticOverflow},
	{"bad_operation", ErrBadOperation},
}

// ErrorKind returns the snake_case name scripts use in expect_error.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return KindUnknown
}
