package pool

import (
	"fmt"

	"github.com/holiman/uint256"

	"liquidityCore/internal/fixedpoint"
)

// Observe returns the tick and seconds-per-liquidity cumulatives as of each of the
// given lookbacks from now.
func (p *Pool) Observe(secondsAgos []uint32) ([]int64, []*uint256.Int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.initialized() {
		return nil, nil, ErrNotInitialized
	}
	return p.oracle.Observe(
		p.cfg.Clock(),
		secondsAgos,
		p.slot0.Tick,
		p.slot0.ObservationIndex,
		p.liquidity,
		p.slot0.ObservationCardinality,
	)
}

// CumulativesInside are the time accumulators of a tick range. They are only
// meaningful as differences between two snapshots taken while a position existed.
type CumulativesInside struct {
	TickCumulative          int64
	SecondsPerLiquidityX128 *uint256.Int
	Seconds                 uint32
}

// SnapshotCumulativesInside reads the accumulators inside [tickLower, tickUpper]. Both
// ticks must be initialized.
func (p *Pool) SnapshotCumulativesInside(tickLower, tickUpper int32) (CumulativesInside, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.initialized() {
		return CumulativesInside{}, ErrNotInitialized
	}
	if err := p.checkTicks(tickLower, tickUpper); err != nil {
		return CumulativesInside{}, err
	}
	if !p.ticks.Has(tickLower) || !p.ticks.Has(tickUpper) {
		return CumulativesInside{}, fmt.Errorf("ticks %d and %d must both be initialized: %w", tickLower, tickUpper, ErrInvalidRange)
	}
	lower := p.ticks.Get(tickLower)
	upper := p.ticks.Get(tickUpper)

	splInside := func(total *uint256.Int) *uint256.Int {
		out := new(uint256.Int).Sub(total, lower.SecondsPerLiquidityOutsideX128)
		out.Sub(out, upper.SecondsPerLiquidityOutsideX128)
		return fixedpoint.WrapUint160(out)
	}

	switch {
	case p.slot0.Tick < tickLower:
		return CumulativesInside{
			TickCumulative: lower.TickCumulativeOutside - upper.TickCumulativeOutside,
			SecondsPerLiquidityX128: fixedpoint.WrapUint160(new(uint256.Int).Sub(
				lower.SecondsPerLiquidityOutsideX128, upper.SecondsPerLiquidityOutsideX128)),
			Seconds: lower.SecondsOutside - upper.SecondsOutside,
		}, nil
	case p.slot0.Tick < tickUpper:
		now := p.cfg.Clock()
		tickCumulative, secondsPerLiquidity, err := p.oracle.ObserveSingle(
			now, 0, p.slot0.Tick, p.slot0.ObservationIndex, p.liquidity, p.slot0.ObservationCardinality)
		if err != nil {
			return CumulativesInside{}, err
		}
		return CumulativesInside{
			TickCumulative:          tickCumulative - lower.TickCumulativeOutside - upper.TickCumulativeOutside,
			SecondsPerLiquidityX128: splInside(secondsPerLiquidity),
			Seconds:                 now - lower.SecondsOutside - upper.SecondsOutside,
		}, nil
	default:
		return CumulativesInside{
			TickCumulative: upper.TickCumulativeOutside - lower.TickCumulativeOutside,
			SecondsPerLiquidityX128: fixedpoint.WrapUint160(new(uint256.Int).Sub(
				upper.SecondsPerLiquidityOutsideX128, lower.SecondsPerLiquidityOutsideX128)),
			Seconds: upper.SecondsOutside - lower.SecondsOutside,
		}, nil
	}
}
