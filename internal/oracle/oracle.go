// Package oracle stores the pool's price and liquidity observations in a growable
// ring buffer and answers time-weighted lookups against it.
package oracle

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"liquidityCore/internal/fixedpoint"
	"liquidityCore/internal/journal"
)

// MaxCardinality is the largest number of observations a pool can retain.
const MaxCardinality = 65535

var (
	ErrStaleObservation = errors.New("observation does not exist yet")
	ErrNotInitialized   = errors.New("oracle not initialized")
)

// Observation is one slot of the ring.
type Observation struct {
	BlockTimestamp                    uint32
	TickCumulative                    int64
	SecondsPerLiquidityCumulativeX128 *uint256.Int
	Initialized                       bool
}

// Clone returns a deep copy.
func (o Observation) Clone() Observation {
	out := o
	out.SecondsPerLiquidityCumulativeX128 = new(uint256.Int)
	if o.SecondsPerLiquidityCumulativeX128 != nil {
		out.SecondsPerLiquidityCumulativeX128.Set(o.SecondsPerLiquidityCumulativeX128)
	}
	return out
}

// transform extrapolates last to time assuming tick and liquidity held since then.
func transform(last Observation, time uint32, tick int32, liquidity *uint256.Int) Observation {
	delta := time - last.BlockTimestamp

	divisor := liquidity
	if liquidity.IsZero() {
		divisor = uint256.NewInt(1)
	}
	growth := new(uint256.Int).Lsh(uint256.NewInt(uint64(delta)), 128)
	growth.Div(growth, divisor)
	spl := new(uint256.Int).Add(last.SecondsPerLiquidityCumulativeX128, growth)

	return Observation{
		BlockTimestamp:                    time,
		TickCumulative:                    last.TickCumulative + int64(tick)*int64(delta),
		SecondsPerLiquidityCumulativeX128: fixedpoint.WrapUint160(spl),
		Initialized:                       true,
	}
}

// Oracle is the observation ring of one pool. Writes are journaled like the tick registry.
type Oracle struct {
	observations []Observation
	log          journal.Journal[uint16, Observation]
}

func New() *Oracle {
	return &Oracle{}
}

// Initialize writes the first observation and returns the initial cardinality and
// cardinalityNext, both 1.
func (o *Oracle) Initialize(time uint32) (uint16, uint16) {
	o.set(0, Observation{
		BlockTimestamp:                    time,
		SecondsPerLiquidityCumulativeX128: new(uint256.Int),
		Initialized:                       true,
	})
	return 1, 1
}

// Write appends an observation at most once per timestamp and returns the new index
// and cardinality. The ring grows to cardinalityNext when the cursor reaches its end.
func (o *Oracle) Write(
	index uint16,
	time uint32,
	tick int32,
	liquidity *uint256.Int,
	cardinality uint16,
	cardinalityNext uint16,
) (uint16, uint16) {
	last := o.At(index)
	if last.BlockTimestamp == time {
		return index, cardinality
	}

	cardinalityUpdated := cardinality
	if cardinalityNext > cardinality && index == cardinality-1 {
		cardinalityUpdated = cardinalityNext
	}
	indexUpdated := uint16((uint32(index) + 1) % uint32(cardinalityUpdated))
	o.set(indexUpdated, transform(last, time, tick, liquidity))
	return indexUpdated, cardinalityUpdated
}

// Grow prepares slots up to next and returns the new cardinalityNext. Capacity never
// shrinks; a smaller next is a no-op.
func (o *Oracle) Grow(current, next uint16) (uint16, error) {
	if current == 0 {
		return 0, ErrNotInitialized
	}
	if next <= current {
		return current, nil
	}
	for i := len(o.observations); i < int(next); i++ {
		o.set(uint16(i), Observation{SecondsPerLiquidityCumulativeX128: new(uint256.Int)})
	}
	return next, nil
}

// ObserveSingle returns the cumulative values secondsAgo before time, interpolating
// between the two surrounding observations or extrapolating from the newest one.
func (o *Oracle) ObserveSingle(
	time uint32,
	secondsAgo uint32,
	tick int32,
	index uint16,
	liquidity *uint256.Int,
	cardinality uint16,
) (int64, *uint256.Int, error) {
	if cardinality == 0 {
		return 0, nil, ErrNotInitialized
	}
	if secondsAgo == 0 {
		last := o.At(index)
		if last.BlockTimestamp != time {
			last = transform(last, time, tick, liquidity)
		}
		return last.TickCumulative, last.SecondsPerLiquidityCumulativeX128, nil
	}

	target := time - secondsAgo
	beforeOrAt, atOrAfter, err := o.surrounding(time, target, tick, index, liquidity, cardinality)
	if err != nil {
		return 0, nil, err
	}

	switch target {
	case beforeOrAt.BlockTimestamp:
		return beforeOrAt.TickCumulative, beforeOrAt.SecondsPerLiquidityCumulativeX128, nil
	case atOrAfter.BlockTimestamp:
		return atOrAfter.TickCumulative, atOrAfter.SecondsPerLiquidityCumulativeX128, nil
	}

	observationDelta := atOrAfter.BlockTimestamp - beforeOrAt.BlockTimestamp
	targetDelta := target - beforeOrAt.BlockTimestamp

	tickCumulative := beforeOrAt.TickCumulative +
		((atOrAfter.TickCumulative-beforeOrAt.TickCumulative)/int64(observationDelta))*int64(targetDelta)

	diff := fixedpoint.WrapUint160(new(uint256.Int).Sub(
		atOrAfter.SecondsPerLiquidityCumulativeX128, beforeOrAt.SecondsPerLiquidityCumulativeX128))
	diff.Mul(diff, uint256.NewInt(uint64(targetDelta)))
	diff.Div(diff, uint256.NewInt(uint64(observationDelta)))
	spl := fixedpoint.WrapUint160(diff.Add(diff, beforeOrAt.SecondsPerLiquidityCumulativeX128))

	return tickCumulative, spl, nil
}

// Observe runs ObserveSingle for every lookback.
func (o *Oracle) Observe(
	time uint32,
	secondsAgos []uint32,
	tick int32,
	index uint16,
	liquidity *uint256.Int,
	cardinality uint16,
) ([]int64, []*uint256.Int, error) {
	if cardinality == 0 {
		return nil, nil, ErrNotInitialized
	}
	tickCumulatives := make([]int64, len(secondsAgos))
	secondsPerLiquidity := make([]*uint256.Int, len(secondsAgos))
	for i, ago := range secondsAgos {
		tc, spl, err := o.ObserveSingle(time, ago, tick, index, liquidity, cardinality)
		if err != nil {
			return nil, nil, fmt.Errorf("observe %d seconds ago: %w", ago, err)
		}
		tickCumulatives[i] = tc
		secondsPerLiquidity[i] = spl
	}
	return tickCumulatives, secondsPerLiquidity, nil
}

func (o *Oracle) surrounding(
	time uint32,
	target uint32,
	tick int32,
	index uint16,
	liquidity *uint256.Int,
	cardinality uint16,
) (Observation, Observation, error) {
	beforeOrAt := o.At(index)
	if lte(time, beforeOrAt.BlockTimestamp, target) {
		if beforeOrAt.BlockTimestamp == target {
			return beforeOrAt, Observation{SecondsPerLiquidityCumulativeX128: new(uint256.Int)}, nil
		}
		return beforeOrAt, transform(beforeOrAt, target, tick, liquidity), nil
	}

	beforeOrAt = o.At(uint16((uint32(index) + 1) % uint32(cardinality)))
	if !beforeOrAt.Initialized {
		beforeOrAt = o.At(0)
	}
	if !lte(time, beforeOrAt.BlockTimestamp, target) {
		return Observation{}, Observation{}, fmt.Errorf("target %d before oldest %d: %w",
			target, beforeOrAt.BlockTimestamp, ErrStaleObservation)
	}

	before, after := o.binarySearch(time, target, index, cardinality)
	return before, after, nil
}

// binarySearch finds the observations bracketing target. The caller guarantees that
// target lies within the retained history.
func (o *Oracle) binarySearch(time, target uint32, index, cardinality uint16) (Observation, Observation) {
	card := int(cardinality)
	l := (int(index) + 1) % card
	r := l + card - 1

	for {
		i := (l + r) / 2
		beforeOrAt := o.At(uint16(i % card))
		if !beforeOrAt.Initialized {
			l = i + 1
			continue
		}
		atOrAfter := o.At(uint16((i + 1) % card))

		targetAtOrAfter := lte(time, beforeOrAt.BlockTimestamp, target)
		if targetAtOrAfter && lte(time, target, atOrAfter.BlockTimestamp) {
			return beforeOrAt, atOrAfter
		}
		if !targetAtOrAfter {
			r = i - 1
		} else {
			l = i + 1
		}
	}
}

// lte compares two timestamps that are both at or before time, allowing for one
// uint32 overflow of the clock.
func lte(time, a, b uint32) bool {
	if a <= time && b <= time {
		return a <= b
	}
	aAdj, bAdj := uint64(a), uint64(b)
	if a <= time {
		aAdj += 1 << 32
	}
	if b <= time {
		bAdj += 1 << 32
	}
	return aAdj <= bAdj
}

// At returns a copy of the observation at index. Unallocated slots read as empty.
func (o *Oracle) At(index uint16) Observation {
	if int(index) >= len(o.observations) {
		return Observation{SecondsPerLiquidityCumulativeX128: new(uint256.Int)}
	}
	return o.observations[index].Clone()
}

// Len returns the number of allocated slots.
func (o *Oracle) Len() int {
	return len(o.observations)
}

// Set installs an observation without journaling. Used when loading from a store.
func (o *Oracle) Set(index uint16, obs Observation) {
	o.ensure(index)
	o.observations[index] = obs.Clone()
}

// Touched returns the slots written since the last Reset.
func (o *Oracle) Touched() []uint16 {
	return o.log.Keys()
}

// Revert restores all slots written since the last Reset.
func (o *Oracle) Revert() {
	o.log.Revert(func(index uint16, obs Observation, existed bool) {
		if !existed {
			if int(index) < len(o.observations) {
				o.observations = o.observations[:index]
			}
			return
		}
		o.observations[index] = obs
	})
}

// Reset drops the journal.
func (o *Oracle) Reset() {
	o.log.Reset()
}

func (o *Oracle) set(index uint16, obs Observation) {
	existed := int(index) < len(o.observations)
	var prev Observation
	if existed {
		prev = o.observations[index].Clone()
	}
	o.log.Record(index, prev, existed)
	o.ensure(index)
	o.observations[index] = obs
}

func (o *Oracle) ensure(index uint16) {
	for len(o.observations) <= int(index) {
		o.observations = append(o.observations, Observation{SecondsPerLiquidityCumulativeX128: new(uint256.Int)})
	}
}
