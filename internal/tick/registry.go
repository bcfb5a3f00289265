// Package tick keeps the per-tick liquidity and outside accumulators of a pool together
// with the bitmap used to find the next initialized tick.
package tick

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/holiman/uint256"

	"liquidityCore/internal/fixedpoint"
	"liquidityCore/internal/journal"
)

// Info is the state stored for an initialized tick. The outside accumulators are
// relative to the side of the tick opposite the current pool tick.
type Info struct {
	LiquidityGross                 *uint256.Int
	LiquidityNet                   *big.Int
	FeeGrowthOutside0X128          *uint256.Int
	FeeGrowthOutside1X128          *uint256.Int
	TickCumulativeOutside          int64
	SecondsPerLiquidityOutsideX128 *uint256.Int
	SecondsOutside                 uint32
	Initialized                    bool
}

// EmptyInfo returns the state of a tick nothing references.
func EmptyInfo() Info {
	return Info{
		LiquidityGross:                 new(uint256.Int),
		LiquidityNet:                   new(big.Int),
		FeeGrowthOutside0X128:          new(uint256.Int),
		FeeGrowthOutside1X128:          new(uint256.Int),
		SecondsPerLiquidityOutsideX128: new(uint256.Int),
	}
}

// Clone returns a deep copy.
func (i Info) Clone() Info {
	return Info{
		LiquidityGross:                 new(uint256.Int).Set(i.LiquidityGross),
		LiquidityNet:                   new(big.Int).Set(i.LiquidityNet),
		FeeGrowthOutside0X128:          new(uint256.Int).Set(i.FeeGrowthOutside0X128),
		FeeGrowthOutside1X128:          new(uint256.Int).Set(i.FeeGrowthOutside1X128),
		TickCumulativeOutside:          i.TickCumulativeOutside,
		SecondsPerLiquidityOutsideX128: new(uint256.Int).Set(i.SecondsPerLiquidityOutsideX128),
		SecondsOutside:                 i.SecondsOutside,
		Initialized:                    i.Initialized,
	}
}

// UpdateParams carries the arguments of Registry.Update.
type UpdateParams struct {
	Tick                              int32
	TickCurrent                       int32
	LiquidityDelta                    *big.Int
	FeeGrowthGlobal0X128              *uint256.Int
	FeeGrowthGlobal1X128              *uint256.Int
	SecondsPerLiquidityCumulativeX128 *uint256.Int
	TickCumulative                    int64
	Time                              uint32
	Upper                             bool
	MaxLiquidity                      *uint256.Int
}

// Registry is the sparse tick map of one pool. Every write is journaled until Reset
// so that a failed call can be reverted.
type Registry struct {
	ticks map[int32]Info
	words map[int16]Word

	tickLog journal.Journal[int32, Info]
	wordLog journal.Journal[int16, Word]
}

func NewRegistry() *Registry {
	return &Registry{
		ticks: make(map[int32]Info),
		words: make(map[int16]Word),
	}
}

// Get returns a copy of the tick state. Absent ticks are empty.
func (r *Registry) Get(tick int32) Info {
	info, ok := r.ticks[tick]
	if !ok {
		return EmptyInfo()
	}
	return info.Clone()
}

// Update adds LiquidityDelta to a boundary tick and reports whether the tick flipped
// between initialized and uninitialized.
func (r *Registry) Update(p UpdateParams) (bool, error) {
	info := r.Get(p.Tick)

	grossBefore := info.LiquidityGross
	grossAfter, err := fixedpoint.AddDelta(grossBefore, p.LiquidityDelta)
	if err != nil {
		return false, fmt.Errorf("tick %d gross liquidity: %w", p.Tick, err)
	}
	if p.MaxLiquidity != nil && grossAfter.Gt(p.MaxLiquidity) {
		return false, fmt.Errorf("tick %d gross liquidity %s above %s: %w",
			p.Tick, grossAfter.Dec(), p.MaxLiquidity.Dec(), fixedpoint.ErrLiquidityOverflow)
	}

	flipped := grossAfter.IsZero() != grossBefore.IsZero()

	if grossBefore.IsZero() {
		// by convention all growth before a tick was initialized happened below it
		if p.Tick <= p.TickCurrent {
			info.FeeGrowthOutside0X128 = new(uint256.Int).Set(p.FeeGrowthGlobal0X128)
			info.FeeGrowthOutside1X128 = new(uint256.Int).Set(p.FeeGrowthGlobal1X128)
			info.SecondsPerLiquidityOutsideX128 = new(uint256.Int).Set(p.SecondsPerLiquidityCumulativeX128)
			info.TickCumulativeOutside = p.TickCumulative
			info.SecondsOutside = p.Time
		}
		info.Initialized = true
	}

	net := new(big.Int)
	if p.Upper {
		net.Sub(info.LiquidityNet, p.LiquidityDelta)
	} else {
		net.Add(info.LiquidityNet, p.LiquidityDelta)
	}
	if !fixedpoint.FitsInt128(net) {
		return false, fmt.Errorf("tick %d net liquidity %s: %w", p.Tick, net.String(), fixedpoint.ErrLiquidityOverflow)
	}

	info.LiquidityGross = grossAfter
	info.LiquidityNet = net
	r.put(p.Tick, info)

	return flipped, nil
}

// Cross transitions the tick as the price moves across it and returns the liquidity
// to add when moving left to right.
func (r *Registry) Cross(
	tick int32,
	feeGrowthGlobal0X128 *uint256.Int,
	feeGrowthGlobal1X128 *uint256.Int,
	secondsPerLiquidityCumulativeX128 *uint256.Int,
	tickCumulative int64,
	time uint32,
) *big.Int {
	info := r.Get(tick)

	info.FeeGrowthOutside0X128 = new(uint256.Int).Sub(feeGrowthGlobal0X128, info.FeeGrowthOutside0X128)
	info.FeeGrowthOutside1X128 = new(uint256.Int).Sub(feeGrowthGlobal1X128, info.FeeGrowthOutside1X128)
	info.SecondsPerLiquidityOutsideX128 = fixedpoint.WrapUint160(
		new(uint256.Int).Sub(secondsPerLiquidityCumulativeX128, info.SecondsPerLiquidityOutsideX128))
	info.TickCumulativeOutside = tickCumulative - info.TickCumulativeOutside
	info.SecondsOutside = time - info.SecondsOutside

	r.put(tick, info)
	return new(big.Int).Set(info.LiquidityNet)
}

// Clear deletes the state of a tick no position references any more.
func (r *Registry) Clear(tick int32) {
	old, ok := r.ticks[tick]
	if !ok {
		return
	}
	r.tickLog.Record(tick, old.Clone(), true)
	delete(r.ticks, tick)
}

// FeeGrowthInside returns the all-time fee growth per unit of liquidity between the two
// ticks, relying on wrapping subtraction.
func (r *Registry) FeeGrowthInside(
	tickLower int32,
	tickUpper int32,
	tickCurrent int32,
	feeGrowthGlobal0X128 *uint256.Int,
	feeGrowthGlobal1X128 *uint256.Int,
) (*uint256.Int, *uint256.Int) {
	lower := r.Get(tickLower)
	upper := r.Get(tickUpper)

	below0, below1 := lower.FeeGrowthOutside0X128, lower.FeeGrowthOutside1X128
	if tickCurrent < tickLower {
		below0 = new(uint256.Int).Sub(feeGrowthGlobal0X128, lower.FeeGrowthOutside0X128)
		below1 = new(uint256.Int).Sub(feeGrowthGlobal1X128, lower.FeeGrowthOutside1X128)
	}

	above0, above1 := upper.FeeGrowthOutside0X128, upper.FeeGrowthOutside1X128
	if tickCurrent >= tickUpper {
		above0 = new(uint256.Int).Sub(feeGrowthGlobal0X128, upper.FeeGrowthOutside0X128)
		above1 = new(uint256.Int).Sub(feeGrowthGlobal1X128, upper.FeeGrowthOutside1X128)
	}

	inside0 := new(uint256.Int).Sub(feeGrowthGlobal0X128, below0)
	inside0.Sub(inside0, above0)
	inside1 := new(uint256.Int).Sub(feeGrowthGlobal1X128, below1)
	inside1.Sub(inside1, above1)
	return inside0, inside1
}

// Set installs tick state without journaling. Used when loading a pool from a store.
func (r *Registry) Set(tick int32, info Info) {
	r.ticks[tick] = info.Clone()
}

// Ticks returns all stored ticks in ascending order.
func (r *Registry) Ticks() []int32 {
	out := make([]int32, 0, len(r.ticks))
	for t := range r.ticks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Has reports whether the tick has stored state.
func (r *Registry) Has(tick int32) bool {
	_, ok := r.ticks[tick]
	return ok
}

// Touched returns the ticks and bitmap words written since the last Reset.
func (r *Registry) Touched() ([]int32, []int16) {
	return r.tickLog.Keys(), r.wordLog.Keys()
}

// Revert restores every tick and word written since the last Reset.
func (r *Registry) Revert() {
	r.tickLog.Revert(func(tick int32, info Info, existed bool) {
		if !existed {
			delete(r.ticks, tick)
			return
		}
		r.ticks[tick] = info
	})
	r.wordLog.Revert(func(pos int16, word Word, existed bool) {
		if !existed {
			delete(r.words, pos)
			return
		}
		r.words[pos] = word
	})
}

// Reset drops the journal, making the current state final.
func (r *Registry) Reset() {
	r.tickLog.Reset()
	r.wordLog.Reset()
}

func (r *Registry) put(tick int32, info Info) {
	old, ok := r.ticks[tick]
	if ok {
		old = old.Clone()
	}
	r.tickLog.Record(tick, old, ok)
	r.ticks[tick] = info
}

// MaxLiquidityPerTick derives the per-tick gross liquidity cap from the tick spacing
// so that the sum over every usable tick cannot overflow a uint128.
func MaxLiquidityPerTick(tickSpacing int32) *uint256.Int {
	minTick := (fixedpoint.MinTick / tickSpacing) * tickSpacing
	maxTick := (fixedpoint.MaxTick / tickSpacing) * tickSpacing
	numTicks := uint64((maxTick-minTick)/tickSpacing) + 1
	return new(uint256.Int).Div(fixedpoint.MaxUint128, uint256.NewInt(numTicks))
}
