package tick

import (
	"errors"
	"math/big"
	"testing"

	"github.com/holiman/uint256"

	"liquidityCore/internal/fixedpoint"
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func update(t *testing.T, r *Registry, tick, current int32, delta int64, upper bool, max *uint256.Int) bool {
	t.Helper()
	flipped, err := r.Update(UpdateParams{
		Tick:                              tick,
		TickCurrent:                       current,
		LiquidityDelta:                    big.NewInt(delta),
		FeeGrowthGlobal0X128:              u(0),
		FeeGrowthGlobal1X128:              u(0),
		SecondsPerLiquidityCumulativeX128: u(0),
		Upper:                             upper,
		MaxLiquidity:                      max,
	})
	if err != nil {
		t.Fatalf("update tick %d: %v", tick, err)
	}
	return flipped
}

func TestMaxLiquidityPerTick(t *testing.T) {
	cases := map[int32]string{
		10:     "1917569901783203986719870431555990",
		60:     "11505743598341114571880798222544994",
		200:    "38350317471085141830651933667504588",
		2302:   "441351967472034323558203122479595605",
		887272: "113427455640312821154458202477256070485",
	}
	for spacing, want := range cases {
		if got := MaxLiquidityPerTick(spacing).Dec(); got != want {
			t.Fatalf("spacing %d: got %s, want %s", spacing, got, want)
		}
	}
}

func TestUpdateFlips(t *testing.T) {
	r := NewRegistry()
	max := u(3)

	if !update(t, r, 0, 0, 1, false, max) {
		t.Fatalf("expected flip from zero")
	}
	if update(t, r, 0, 0, 1, false, max) {
		t.Fatalf("unexpected flip from nonzero to nonzero")
	}
	if !update(t, r, 0, 0, -2, false, max) {
		t.Fatalf("expected flip back to zero")
	}
}

func TestUpdateRejectsAboveMax(t *testing.T) {
	r := NewRegistry()
	update(t, r, 0, 0, 2, false, u(3))
	update(t, r, 0, 0, 1, true, u(3))

	_, err := r.Update(UpdateParams{
		LiquidityDelta:                    big.NewInt(1),
		FeeGrowthGlobal0X128:              u(0),
		FeeGrowthGlobal1X128:              u(0),
		SecondsPerLiquidityCumulativeX128: u(0),
		MaxLiquidity:                      u(3),
	})
	if !errors.Is(err, fixedpoint.ErrLiquidityOverflow) {
		t.Fatalf("expected liquidity overflow, got %v", err)
	}
}

func TestUpdateNetsByBoundary(t *testing.T) {
	r := NewRegistry()
	max := u(10)
	update(t, r, 0, 0, 2, false, max)
	update(t, r, 0, 0, 1, true, max)
	update(t, r, 0, 0, 3, true, max)
	update(t, r, 0, 0, 1, false, max)

	info := r.Get(0)
	if info.LiquidityGross.Uint64() != 7 {
		t.Fatalf("gross mismatch: %s", info.LiquidityGross.Dec())
	}
	if info.LiquidityNet.Int64() != -1 {
		t.Fatalf("net mismatch: %s", info.LiquidityNet.String())
	}
}

func TestUpdateAdoptsGlobalsAtOrBelowCurrent(t *testing.T) {
	r := NewRegistry()
	params := UpdateParams{
		Tick:                              1,
		TickCurrent:                       1,
		LiquidityDelta:                    big.NewInt(1),
		FeeGrowthGlobal0X128:              u(1),
		FeeGrowthGlobal1X128:              u(2),
		SecondsPerLiquidityCumulativeX128: u(3),
		TickCumulative:                    4,
		Time:                              5,
		MaxLiquidity:                      u(10),
	}
	if _, err := r.Update(params); err != nil {
		t.Fatalf("update: %v", err)
	}
	info := r.Get(1)
	if info.FeeGrowthOutside0X128.Uint64() != 1 || info.FeeGrowthOutside1X128.Uint64() != 2 ||
		info.SecondsPerLiquidityOutsideX128.Uint64() != 3 || info.TickCumulativeOutside != 4 ||
		info.SecondsOutside != 5 || !info.Initialized {
		t.Fatalf("outside values not adopted: %+v", info)
	}

	// already initialized: accumulators stay put
	params.FeeGrowthGlobal0X128 = u(6)
	if _, err := r.Update(params); err != nil {
		t.Fatalf("update: %v", err)
	}
	if r.Get(1).FeeGrowthOutside0X128.Uint64() != 1 {
		t.Fatalf("outside overwritten on second update")
	}

	params.Tick = 2
	if _, err := r.Update(params); err != nil {
		t.Fatalf("update: %v", err)
	}
	above := r.Get(2)
	if !above.FeeGrowthOutside0X128.IsZero() || above.SecondsOutside != 0 || !above.Initialized {
		t.Fatalf("tick above current must start with zero outside: %+v", above)
	}
}

func TestFeeGrowthInside(t *testing.T) {
	global := u(15)

	r := NewRegistry()
	in0, in1 := r.FeeGrowthInside(-2, 2, 0, global, global)
	if in0.Uint64() != 15 || in1.Uint64() != 15 {
		t.Fatalf("uninitialized inside: %s %s", in0.Dec(), in1.Dec())
	}
	in0, _ = r.FeeGrowthInside(-2, 2, 4, global, global)
	if !in0.IsZero() {
		t.Fatalf("uninitialized above: %s", in0.Dec())
	}
	in0, _ = r.FeeGrowthInside(-2, 2, -4, global, global)
	if !in0.IsZero() {
		t.Fatalf("uninitialized below: %s", in0.Dec())
	}

	r.Set(-2, Info{
		LiquidityGross:                 u(1),
		LiquidityNet:                   big.NewInt(0),
		FeeGrowthOutside0X128:          u(2),
		FeeGrowthOutside1X128:          u(3),
		SecondsPerLiquidityOutsideX128: u(0),
		Initialized:                    true,
	})
	r.Set(2, Info{
		LiquidityGross:                 u(1),
		LiquidityNet:                   big.NewInt(0),
		FeeGrowthOutside0X128:          u(4),
		FeeGrowthOutside1X128:          u(1),
		SecondsPerLiquidityOutsideX128: u(0),
		Initialized:                    true,
	})
	in0, in1 = r.FeeGrowthInside(-2, 2, 0, global, global)
	if in0.Uint64() != 9 || in1.Uint64() != 11 {
		t.Fatalf("inside with both ticks: %s %s", in0.Dec(), in1.Dec())
	}
}

func TestFeeGrowthInsideWraps(t *testing.T) {
	maxU := new(uint256.Int).SetAllOne()
	r := NewRegistry()
	r.Set(-2, Info{
		LiquidityGross:                 u(1),
		LiquidityNet:                   big.NewInt(0),
		FeeGrowthOutside0X128:          new(uint256.Int).Sub(maxU, u(3)),
		FeeGrowthOutside1X128:          new(uint256.Int).Sub(maxU, u(2)),
		SecondsPerLiquidityOutsideX128: u(0),
		Initialized:                    true,
	})
	r.Set(2, Info{
		LiquidityGross:                 u(1),
		LiquidityNet:                   big.NewInt(0),
		FeeGrowthOutside0X128:          u(3),
		FeeGrowthOutside1X128:          u(5),
		SecondsPerLiquidityOutsideX128: u(0),
		Initialized:                    true,
	})
	in0, in1 := r.FeeGrowthInside(-2, 2, 0, u(15), u(15))
	if in0.Uint64() != 16 || in1.Uint64() != 13 {
		t.Fatalf("wrapping inside: %s %s", in0.Dec(), in1.Dec())
	}
}

func TestCrossFlipsOutside(t *testing.T) {
	r := NewRegistry()
	r.Set(2, Info{
		LiquidityGross:                 u(3),
		LiquidityNet:                   big.NewInt(4),
		FeeGrowthOutside0X128:          u(1),
		FeeGrowthOutside1X128:          u(2),
		SecondsPerLiquidityOutsideX128: u(3),
		TickCumulativeOutside:          4,
		SecondsOutside:                 5,
		Initialized:                    true,
	})

	net := r.Cross(2, u(7), u(9), u(8), 15, 10)
	if net.Int64() != 4 {
		t.Fatalf("net mismatch: %s", net.String())
	}
	info := r.Get(2)
	if info.FeeGrowthOutside0X128.Uint64() != 6 || info.FeeGrowthOutside1X128.Uint64() != 7 ||
		info.SecondsPerLiquidityOutsideX128.Uint64() != 5 || info.TickCumulativeOutside != 11 ||
		info.SecondsOutside != 5 {
		t.Fatalf("cross mismatch: %+v", info)
	}

	r.Revert()
	if r.Get(2).FeeGrowthOutside0X128.Uint64() != 1 {
		t.Fatalf("revert must restore the pre-cross state")
	}
}

func TestClear(t *testing.T) {
	r := NewRegistry()
	update(t, r, 2, 0, 3, false, u(10))
	r.Reset()

	r.Clear(2)
	if r.Has(2) {
		t.Fatalf("tick not cleared")
	}
	ticks, _ := r.Touched()
	if len(ticks) != 1 || ticks[0] != 2 {
		t.Fatalf("clear must be journaled: %v", ticks)
	}
	r.Revert()
	if !r.Has(2) || r.Get(2).LiquidityGross.Uint64() != 3 {
		t.Fatalf("revert must bring the tick back")
	}
}
