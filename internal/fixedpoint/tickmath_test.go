package fixedpoint

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestSqrtRatioAtTickBounds(t *testing.T) {
	got, err := SqrtRatioAtTick(MinTick)
	require.NoError(t, err)
	require.True(t, got.Eq(MinSqrtRatio), "min tick: %s", got.Dec())

	got, err = SqrtRatioAtTick(MaxTick)
	require.NoError(t, err)
	require.True(t, got.Eq(MaxSqrtRatio), "max tick: %s", got.Dec())

	got, err = SqrtRatioAtTick(0)
	require.NoError(t, err)
	require.True(t, got.Eq(Q96), "tick 0: %s", got.Dec())

	for _, tick := range []int32{MinTick - 1, MaxTick + 1} {
		_, err := SqrtRatioAtTick(tick)
		require.ErrorIs(t, err, ErrTickOutOfBounds)
		require.True(t, errors.Is(err, ErrArithmeticOverflow))
	}
}

func TestSqrtRatioAtTickKnownValues(t *testing.T) {
	cases := []struct {
		tick int32
		want string
	}{
		{tick: 1, want: "79232123823359799118286999568"},
		{tick: -1, want: "79224201403219477170569942574"},
		{tick: 50, want: "79426470787362580746886972461"},
		{tick: 60, want: "79466191966197645195421774833"},
		{tick: 600, want: "81640896826356156310682304526"},
		{tick: -600, want: "76886731765546235930195592750"},
		{tick: -50000, want: "6504256538020985011912221507"},
		{tick: 150000, want: "143194173941309278083010301478497"},
	}

	for _, tc := range cases {
		got, err := SqrtRatioAtTick(tc.tick)
		require.NoError(t, err)
		require.Equal(t, tc.want, got.Dec(), "tick %d", tc.tick)
	}
}

func TestTickAtSqrtRatioBounds(t *testing.T) {
	tick, err := TickAtSqrtRatio(MinSqrtRatio)
	require.NoError(t, err)
	require.Equal(t, MinTick, tick)

	tick, err = TickAtSqrtRatio(new(uint256.Int).Sub(MaxSqrtRatio, uint256.NewInt(1)))
	require.NoError(t, err)
	require.Equal(t, MaxTick-1, tick)

	_, err = TickAtSqrtRatio(new(uint256.Int).Sub(MinSqrtRatio, uint256.NewInt(1)))
	require.ErrorIs(t, err, ErrSqrtPriceOutOfBounds)

	_, err = TickAtSqrtRatio(MaxSqrtRatio)
	require.ErrorIs(t, err, ErrSqrtPriceOutOfBounds)
}

func TestTickAtSqrtRatioRoundTrip(t *testing.T) {
	ticks := []int32{MinTick, -887000, -50000, -601, -600, -1, 0, 1, 59, 60, 600, 150000, 887000, MaxTick - 1}
	for _, tick := range ticks {
		price, err := SqrtRatioAtTick(tick)
		require.NoError(t, err)

		got, err := TickAtSqrtRatio(price)
		require.NoError(t, err)
		require.Equal(t, tick, got, "exact price of tick %d", tick)

		above := new(uint256.Int).Add(price, uint256.NewInt(1))
		got, err = TickAtSqrtRatio(above)
		require.NoError(t, err)
		require.Equal(t, tick, got, "price just above tick %d", tick)

		floor, err := SqrtRatioAtTick(got)
		require.NoError(t, err)
		require.False(t, floor.Gt(above), "floor price above input for tick %d", tick)

		if tick > MinTick {
			below := new(uint256.Int).Sub(price, uint256.NewInt(1))
			got, err = TickAtSqrtRatio(below)
			require.NoError(t, err)
			require.Equal(t, tick-1, got, "price just below tick %d", tick)
		}
	}
}

func TestMulDiv(t *testing.T) {
	maxU := new(uint256.Int).SetAllOne()

	got, err := MulDiv(maxU, maxU, maxU)
	require.NoError(t, err)
	require.True(t, got.Eq(maxU))

	_, err = MulDiv(maxU, maxU, uint256.NewInt(1))
	require.ErrorIs(t, err, ErrArithmeticOverflow)

	_, err = MulDiv(uint256.NewInt(1), uint256.NewInt(1), new(uint256.Int))
	require.ErrorIs(t, err, ErrDivisionByZero)

	got, err = MulDivRoundingUp(uint256.NewInt(7), uint256.NewInt(3), uint256.NewInt(2))
	require.NoError(t, err)
	require.Equal(t, uint64(11), got.Uint64())

	got, err = MulDivRoundingUp(uint256.NewInt(6), uint256.NewInt(3), uint256.NewInt(2))
	require.NoError(t, err)
	require.Equal(t, uint64(9), got.Uint64())

	_, err = MulDivRoundingUp(maxU, maxU, new(uint256.Int).Sub(maxU, uint256.NewInt(1)))
	require.ErrorIs(t, err, ErrArithmeticOverflow)

	got, err = DivRoundingUp(uint256.NewInt(10), uint256.NewInt(4))
	require.NoError(t, err)
	require.Equal(t, uint64(3), got.Uint64())
}
