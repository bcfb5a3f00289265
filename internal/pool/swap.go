package pool

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityCore/internal/fixedpoint"
	"liquidityCore/internal/model"
)

// SwapParams are the arguments of Swap. A positive AmountSpecified is an exact input,
// a negative one an exact output. A nil SqrtPriceLimitX96 lets the price run to the
// edge of the tick range.
type SwapParams struct {
	Sender            common.Address
	Recipient         common.Address
	ZeroForOne        bool
	AmountSpecified   *big.Int
	SqrtPriceLimitX96 *uint256.Int
	Callback          SwapCallback
	Data              []byte
}

// SwapResult reports a committed swap. Positive amounts were paid into the pool,
// negative amounts paid out to the recipient.
type SwapResult struct {
	Amount0      *big.Int
	Amount1      *big.Int
	SqrtPriceX96 *uint256.Int
	Tick         int32
	Liquidity    *uint256.Int
	// FeeAmount is the total input-token fee including ProtocolFee.
	FeeAmount   *uint256.Int
	ProtocolFee *uint256.Int
	Steps       int
}

type swapState struct {
	remaining     *big.Int
	calculated    *big.Int
	sqrtPriceX96  *uint256.Int
	tick          int32
	feeGrowthX128 *uint256.Int
	protocolFee   *uint256.Int
	feeAmount     *uint256.Int
	liquidity     *uint256.Int
	steps         int
}

// cumulatives at the start of the swap, computed on the first initialized tick crossed
type swapCache struct {
	liquidityStart      *uint256.Int
	feeProtocol         uint8
	computed            bool
	tickCumulative      int64
	secondsPerLiquidity *uint256.Int
}

// Swap trades one token for the other along the liquidity curve.
func (p *Pool) Swap(ctx context.Context, params SwapParams) (SwapResult, error) {
	if params.AmountSpecified == nil || params.AmountSpecified.Sign() == 0 {
		return SwapResult{}, fmt.Errorf("swap amount must be nonzero: %w", ErrInvalidAmount)
	}
	if !fixedpoint.FitsInt256(params.AmountSpecified) || params.AmountSpecified.Cmp(fixedpoint.MinInt256) == 0 {
		return SwapResult{}, fmt.Errorf("swap amount %s out of int256 range: %w", params.AmountSpecified, ErrInvalidAmount)
	}
	if params.Callback == nil {
		return SwapResult{}, fmt.Errorf("swap: %w", ErrMissingCallback)
	}

	tx, err := p.begin("swap")
	if err != nil {
		return SwapResult{}, err
	}
	defer p.abort(ctx, tx)
	res, err := p.swap(ctx, tx, params)
	if err = p.end(ctx, tx, err); err != nil {
		return SwapResult{}, err
	}
	return res, nil
}

func (p *Pool) priceLimit(params SwapParams) (*uint256.Int, error) {
	limit := params.SqrtPriceLimitX96
	if limit == nil {
		if params.ZeroForOne {
			return new(uint256.Int).AddUint64(fixedpoint.MinSqrtRatio, 1), nil
		}
		return new(uint256.Int).SubUint64(fixedpoint.MaxSqrtRatio, 1), nil
	}
	current := p.slot0.SqrtPriceX96
	if params.ZeroForOne {
		if !limit.Lt(current) || !limit.Gt(fixedpoint.MinSqrtRatio) {
			return nil, fmt.Errorf("limit %s must be in (%s, %s): %w",
				limit.Dec(), fixedpoint.MinSqrtRatio.Dec(), current.Dec(), ErrInvalidPriceLimit)
		}
		return limit, nil
	}
	if !limit.Gt(current) || !limit.Lt(fixedpoint.MaxSqrtRatio) {
		return nil, fmt.Errorf("limit %s must be in (%s, %s): %w",
			limit.Dec(), current.Dec(), fixedpoint.MaxSqrtRatio.Dec(), ErrInvalidPriceLimit)
	}
	return limit, nil
}

func (p *Pool) swap(ctx context.Context, tx *txn, params SwapParams) (SwapResult, error) {
	limit, err := p.priceLimit(params)
	if err != nil {
		return SwapResult{}, err
	}

	zeroForOne := params.ZeroForOne
	exactInput := params.AmountSpecified.Sign() > 0

	cache := swapCache{liquidityStart: new(uint256.Int).Set(p.liquidity)}
	if zeroForOne {
		cache.feeProtocol = p.slot0.FeeProtocol % 16
	} else {
		cache.feeProtocol = p.slot0.FeeProtocol >> 4
	}

	state := swapState{
		remaining:    new(big.Int).Set(params.AmountSpecified),
		calculated:   new(big.Int),
		sqrtPriceX96: new(uint256.Int).Set(p.slot0.SqrtPriceX96),
		tick:         p.slot0.Tick,
		protocolFee:  new(uint256.Int),
		feeAmount:    new(uint256.Int),
		liquidity:    new(uint256.Int).Set(p.liquidity),
	}
	if zeroForOne {
		state.feeGrowthX128 = new(uint256.Int).Set(p.feeGrowthGlobal0X128)
	} else {
		state.feeGrowthX128 = new(uint256.Int).Set(p.feeGrowthGlobal1X128)
	}

	for state.remaining.Sign() != 0 && !state.sqrtPriceX96.Eq(limit) {
		state.steps++
		if p.cfg.MaxSwapSteps > 0 && state.steps > p.cfg.MaxSwapSteps {
			return SwapResult{}, fmt.Errorf("swap crossed more than %d steps: %w", p.cfg.MaxSwapSteps, ErrSwapStepLimit)
		}
		if err := p.swapStep(tx, &state, &cache, limit, zeroForOne, exactInput); err != nil {
			return SwapResult{}, err
		}
	}

	if state.tick != p.slot0.Tick {
		p.slot0.ObservationIndex, p.slot0.ObservationCardinality = p.oracle.Write(
			p.slot0.ObservationIndex,
			tx.now,
			p.slot0.Tick,
			cache.liquidityStart,
			p.slot0.ObservationCardinality,
			p.slot0.ObservationCardinalityNext,
		)
		p.slot0.Tick = state.tick
	}
	p.slot0.SqrtPriceX96 = state.sqrtPriceX96
	p.liquidity = state.liquidity

	if zeroForOne {
		p.feeGrowthGlobal0X128 = state.feeGrowthX128
		fees, err := addUint128(p.protocolFees.Token0, state.protocolFee)
		if err != nil {
			return SwapResult{}, fmt.Errorf("protocol fees token0: %w", err)
		}
		p.protocolFees.Token0 = fees
	} else {
		p.feeGrowthGlobal1X128 = state.feeGrowthX128
		fees, err := addUint128(p.protocolFees.Token1, state.protocolFee)
		if err != nil {
			return SwapResult{}, fmt.Errorf("protocol fees token1: %w", err)
		}
		p.protocolFees.Token1 = fees
	}

	used := new(big.Int).Sub(params.AmountSpecified, state.remaining)
	amount0, amount1 := state.calculated, used
	if zeroForOne == exactInput {
		amount0, amount1 = used, state.calculated
	}
	if amount0.Sign() == 0 && amount1.Sign() == 0 {
		return SwapResult{}, fmt.Errorf("price %s with liquidity %s: %w",
			state.sqrtPriceX96.Dec(), state.liquidity.Dec(), ErrNoLiquidity)
	}

	owed0, owed1 := positivePart(amount0), positivePart(amount1)
	err = p.settle("swap", owed0, owed1, func() error {
		return params.Callback(ctx, new(big.Int).Set(amount0), new(big.Int).Set(amount1), params.Data)
	})
	if err != nil {
		return SwapResult{}, err
	}

	p.record(tx, model.EventSwap, model.SwapEventData{
		Sender:       params.Sender.Hex(),
		Recipient:    params.Recipient.Hex(),
		Amount0:      amount0.String(),
		Amount1:      amount1.String(),
		SqrtPriceX96: state.sqrtPriceX96.Dec(),
		Liquidity:    state.liquidity.Dec(),
		Tick:         state.tick,
		FeeAmount:    state.feeAmount.Dec(),
		ProtocolFee:  state.protocolFee.Dec(),
		ZeroForOne:   zeroForOne,
	})
	if err := p.persist(ctx, tx); err != nil {
		return SwapResult{}, err
	}
	if err := p.payout(params.Recipient, negativePart(amount0), negativePart(amount1)); err != nil {
		return SwapResult{}, err
	}

	return SwapResult{
		Amount0:      amount0,
		Amount1:      amount1,
		SqrtPriceX96: new(uint256.Int).Set(state.sqrtPriceX96),
		Tick:         state.tick,
		Liquidity:    new(uint256.Int).Set(state.liquidity),
		FeeAmount:    state.feeAmount,
		ProtocolFee:  state.protocolFee,
		Steps:        state.steps,
	}, nil
}

// swapStep swaps up to the next initialized tick, the word boundary or the limit,
// whichever comes first, and crosses the tick if the price reached it.
func (p *Pool) swapStep(tx *txn, state *swapState, cache *swapCache, limit *uint256.Int, zeroForOne, exactInput bool) error {
	sqrtPriceStart := state.sqrtPriceX96

	tickNext, initialized := p.ticks.NextInitializedTickWithinOneWord(state.tick, p.cfg.TickSpacing, zeroForOne)
	if tickNext < fixedpoint.MinTick {
		tickNext = fixedpoint.MinTick
	} else if tickNext > fixedpoint.MaxTick {
		tickNext = fixedpoint.MaxTick
	}
	sqrtPriceNext, err := fixedpoint.SqrtRatioAtTick(tickNext)
	if err != nil {
		return err
	}

	target := sqrtPriceNext
	if (zeroForOne && sqrtPriceNext.Lt(limit)) || (!zeroForOne && sqrtPriceNext.Gt(limit)) {
		target = limit
	}

	step, err := fixedpoint.ComputeSwapStep(state.sqrtPriceX96, target, state.liquidity, state.remaining, p.cfg.Fee)
	if err != nil {
		return fmt.Errorf("swap step at tick %d: %w", state.tick, err)
	}
	state.sqrtPriceX96 = step.SqrtRatioNextX96

	if exactInput {
		state.remaining.Sub(state.remaining, step.AmountIn.ToBig())
		state.remaining.Sub(state.remaining, step.FeeAmount.ToBig())
		state.calculated.Sub(state.calculated, step.AmountOut.ToBig())
	} else {
		state.remaining.Add(state.remaining, step.AmountOut.ToBig())
		state.calculated.Add(state.calculated, step.AmountIn.ToBig())
		state.calculated.Add(state.calculated, step.FeeAmount.ToBig())
	}
	if !fixedpoint.FitsInt256(state.remaining) || !fixedpoint.FitsInt256(state.calculated) {
		return fmt.Errorf("swap amounts exceed int256: %w", ErrArithmeticOverflow)
	}

	state.feeAmount.Add(state.feeAmount, step.FeeAmount)
	fee := new(uint256.Int).Set(step.FeeAmount)
	if cache.feeProtocol > 0 {
		delta := new(uint256.Int).Div(fee, uint256.NewInt(uint64(cache.feeProtocol)))
		fee.Sub(fee, delta)
		state.protocolFee.Add(state.protocolFee, delta)
	}
	if state.liquidity.IsZero() {
		// nobody is in range to earn it
		state.protocolFee.Add(state.protocolFee, fee)
	} else {
		growth, err := fixedpoint.MulDiv(fee, fixedpoint.Q128, state.liquidity)
		if err != nil {
			return err
		}
		state.feeGrowthX128.Add(state.feeGrowthX128, growth)
	}

	if state.sqrtPriceX96.Eq(sqrtPriceNext) {
		if initialized {
			if err := p.crossTick(tx, state, cache, tickNext, zeroForOne); err != nil {
				return err
			}
		}
		state.tick = tickNext
		if zeroForOne {
			state.tick = tickNext - 1
		}
		return nil
	}
	if !state.sqrtPriceX96.Eq(sqrtPriceStart) {
		tick, err := fixedpoint.TickAtSqrtRatio(state.sqrtPriceX96)
		if err != nil {
			return err
		}
		state.tick = tick
	}
	return nil
}

func (p *Pool) crossTick(tx *txn, state *swapState, cache *swapCache, tickNext int32, zeroForOne bool) error {
	if !cache.computed {
		tickCumulative, secondsPerLiquidity, err := p.oracle.ObserveSingle(
			tx.now, 0, p.slot0.Tick, p.slot0.ObservationIndex, cache.liquidityStart, p.slot0.ObservationCardinality)
		if err != nil {
			return err
		}
		cache.tickCumulative = tickCumulative
		cache.secondsPerLiquidity = secondsPerLiquidity
		cache.computed = true
	}

	feeGrowth0, feeGrowth1 := p.feeGrowthGlobal0X128, state.feeGrowthX128
	if zeroForOne {
		feeGrowth0, feeGrowth1 = state.feeGrowthX128, p.feeGrowthGlobal1X128
	}
	net := p.ticks.Cross(tickNext, feeGrowth0, feeGrowth1, cache.secondsPerLiquidity, cache.tickCumulative, tx.now)
	if zeroForOne {
		net.Neg(net)
	}
	liquidity, err := fixedpoint.AddDelta(state.liquidity, net)
	if err != nil {
		return fmt.Errorf("cross tick %d: %w", tickNext, err)
	}
	state.liquidity = liquidity
	return nil
}

func positivePart(v *big.Int) *uint256.Int {
	if v.Sign() <= 0 {
		return new(uint256.Int)
	}
	out, _ := uint256.FromBig(v)
	return out
}

func negativePart(v *big.Int) *uint256.Int {
	if v.Sign() >= 0 {
		return new(uint256.Int)
	}
	out, _ := uint256.FromBig(new(big.Int).Neg(v))
	return out
}

func addUint128(a, b *uint256.Int) (*uint256.Int, error) {
	sum := new(uint256.Int).Add(a, b)
	if sum.Gt(fixedpoint.MaxUint128) {
		return nil, fmt.Errorf("%s plus %s: %w", a.Dec(), b.Dec(), ErrArithmeticOverflow)
	}
	return sum, nil
}
