package oracle

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var q128 = new(uint256.Int).Lsh(uint256.NewInt(1), 128)

func times(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(q128, uint256.NewInt(n))
}

// seeded returns an oracle with observations at 100, 110 and 130 and cardinality 4.
func seeded(t *testing.T) (*Oracle, uint16, uint16) {
	t.Helper()
	o := New()
	card, next := o.Initialize(100)
	require.Equal(t, uint16(1), card)
	require.Equal(t, uint16(1), next)

	next, err := o.Grow(card, 4)
	require.NoError(t, err)
	require.Equal(t, uint16(4), next)

	index, card := o.Write(0, 110, 5, uint256.NewInt(10), card, next)
	require.Equal(t, uint16(1), index)
	require.Equal(t, uint16(4), card)

	index, card = o.Write(index, 130, -2, uint256.NewInt(20), card, next)
	require.Equal(t, uint16(2), index)
	o.Reset()
	return o, index, card
}

func TestInitialize(t *testing.T) {
	o := New()
	o.Initialize(7)
	obs := o.At(0)
	require.Equal(t, uint32(7), obs.BlockTimestamp)
	require.Equal(t, int64(0), obs.TickCumulative)
	require.True(t, obs.SecondsPerLiquidityCumulativeX128.IsZero())
	require.True(t, obs.Initialized)
}

func TestWriteSingleSlotOverwrites(t *testing.T) {
	o := New()
	card, next := o.Initialize(0)

	index, card := o.Write(0, 1, 2, uint256.NewInt(5), card, next)
	require.Equal(t, uint16(0), index)
	require.Equal(t, uint16(1), card)

	obs := o.At(0)
	require.Equal(t, uint32(1), obs.BlockTimestamp)
	require.Equal(t, int64(2), obs.TickCumulative)
	require.Equal(t, "68056473384187692692674921486353642291", obs.SecondsPerLiquidityCumulativeX128.Dec())
}

func TestWriteSameTimestampIsNoop(t *testing.T) {
	o, index, card := seeded(t)
	before := o.At(index)

	gotIndex, gotCard := o.Write(index, 130, 99, uint256.NewInt(1), card, card)
	require.Equal(t, index, gotIndex)
	require.Equal(t, card, gotCard)
	require.Equal(t, before, o.At(index))
	require.Empty(t, o.Touched())
}

func TestWriteZeroLiquidityCountsAsOne(t *testing.T) {
	o := New()
	card, next := o.Initialize(0)
	o.Write(0, 6, 0, new(uint256.Int), card, next)
	require.Equal(t, "2041694201525630780780247644590609268736", o.At(0).SecondsPerLiquidityCumulativeX128.Dec())
}

func TestGrow(t *testing.T) {
	o := New()
	_, err := o.Grow(0, 5)
	require.ErrorIs(t, err, ErrNotInitialized)

	card, _ := o.Initialize(0)
	next, err := o.Grow(card, 5)
	require.NoError(t, err)
	require.Equal(t, uint16(5), next)
	require.Equal(t, 5, o.Len())
	require.True(t, o.At(0).Initialized)
	require.False(t, o.At(4).Initialized)

	next, err = o.Grow(5, 3)
	require.NoError(t, err)
	require.Equal(t, uint16(5), next)
	require.Equal(t, 5, o.Len())
}

func TestObserveSingle(t *testing.T) {
	o, index, card := seeded(t)
	liquidity := uint256.NewInt(5)

	cases := []struct {
		name       string
		secondsAgo uint32
		wantTick   int64
		wantSPL    *uint256.Int
	}{
		{name: "current extrapolates", secondsAgo: 0, wantTick: 80, wantSPL: times(4)},
		{name: "after newest", secondsAgo: 5, wantTick: 45, wantSPL: times(3)},
		{name: "exactly newest", secondsAgo: 10, wantTick: 10, wantSPL: times(2)},
		{name: "interpolated", secondsAgo: 20, wantTick: 30, wantSPL: new(uint256.Int).Add(q128, new(uint256.Int).Rsh(q128, 1))},
		{name: "exactly second", secondsAgo: 30, wantTick: 50, wantSPL: times(1)},
		{name: "oldest", secondsAgo: 40, wantTick: 0, wantSPL: new(uint256.Int)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tickCumulative, spl, err := o.ObserveSingle(140, tc.secondsAgo, 7, index, liquidity, card)
			require.NoError(t, err)
			require.Equal(t, tc.wantTick, tickCumulative)
			require.True(t, spl.Eq(tc.wantSPL), "spl %s want %s", spl.Dec(), tc.wantSPL.Dec())
		})
	}
}

func TestObserveStale(t *testing.T) {
	o, index, card := seeded(t)
	_, _, err := o.ObserveSingle(140, 41, 7, index, uint256.NewInt(5), card)
	require.ErrorIs(t, err, ErrStaleObservation)

	_, _, err = o.Observe(140, []uint32{0, 41}, 7, index, uint256.NewInt(5), card)
	require.ErrorIs(t, err, ErrStaleObservation)

	_, _, err = New().Observe(140, []uint32{0}, 0, 0, uint256.NewInt(1), 0)
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestObserveAfterWrapAround(t *testing.T) {
	o := New()
	card, _ := o.Initialize(0)
	next, err := o.Grow(card, 2)
	require.NoError(t, err)

	index, card := o.Write(0, 10, 1, uint256.NewInt(1), card, next)
	index, card = o.Write(index, 20, 1, uint256.NewInt(1), card, next)
	require.Equal(t, uint16(0), index)
	require.Equal(t, uint16(2), card)

	_, _, err = o.ObserveSingle(20, 15, 1, index, uint256.NewInt(1), card)
	require.ErrorIs(t, err, ErrStaleObservation)

	tickCumulative, _, err := o.ObserveSingle(20, 10, 1, index, uint256.NewInt(1), card)
	require.NoError(t, err)
	require.Equal(t, int64(10), tickCumulative)

	tickCumulatives, _, err := o.Observe(25, []uint32{0, 5, 10}, 1, index, uint256.NewInt(1), card)
	require.NoError(t, err)
	require.Equal(t, []int64{25, 20, 15}, tickCumulatives)
}

func TestRevertRestoresRing(t *testing.T) {
	o, index, card := seeded(t)
	before := o.At(index + 1)

	newIndex, _ := o.Write(index, 150, 1, uint256.NewInt(1), card, card)
	require.Equal(t, index+1, newIndex)
	next, err := o.Grow(card, 8)
	require.NoError(t, err)
	require.Equal(t, uint16(8), next)

	o.Revert()
	o.Reset()
	require.Equal(t, 4, o.Len())
	require.Equal(t, before, o.At(index+1))
}

func TestLteAcrossOverflow(t *testing.T) {
	require.True(t, lte(10, 5, 10))
	require.False(t, lte(10, 10, 5))
	// a was written before the clock wrapped
	require.True(t, lte(10, 4294967290, 5))
	require.False(t, lte(10, 5, 4294967290))
}
