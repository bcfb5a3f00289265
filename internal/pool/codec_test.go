package pool

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"liquidityCore/internal/fixedpoint"
	"liquidityCore/internal/oracle"
	"liquidityCore/internal/position"
	"liquidityCore/internal/tick"
)

func TestTickRecordKeepsSignedFields(t *testing.T) {
	info := tick.Info{
		LiquidityGross:                 uint256.NewInt(42),
		LiquidityNet:                   new(big.Int).Set(fixedpoint.MinInt128),
		FeeGrowthOutside0X128:          new(uint256.Int).SetAllOne(),
		FeeGrowthOutside1X128:          uint256.NewInt(7),
		TickCumulativeOutside:          -123456789,
		SecondsPerLiquidityOutsideX128: new(uint256.Int).Set(fixedpoint.MaxUint160),
		SecondsOutside:                 4294967295,
		Initialized:                    true,
	}
	raw, err := encodeTick(info)
	require.NoError(t, err)
	require.Len(t, raw, 8*32)

	got, err := decodeTick(raw)
	require.NoError(t, err)
	require.Equal(t, info.LiquidityNet.String(), got.LiquidityNet.String())
	require.True(t, info.FeeGrowthOutside0X128.Eq(got.FeeGrowthOutside0X128))
	require.True(t, info.SecondsPerLiquidityOutsideX128.Eq(got.SecondsPerLiquidityOutsideX128))
	require.Equal(t, info.TickCumulativeOutside, got.TickCumulativeOutside)
	require.Equal(t, info.SecondsOutside, got.SecondsOutside)
	require.True(t, got.Initialized)
}

func TestRecordWidthsAreEnforced(t *testing.T) {
	// slot0 holds a uint160 price
	_, err := encodeSlot0(Slot0{SqrtPriceX96: new(uint256.Int).Lsh(uint256.NewInt(1), 160)})
	require.Error(t, err)

	_, err = encodePosition(position.Entry{
		Owner:     alice,
		TickLower: -887272,
		TickUpper: 887272,
		Info: position.Info{
			Liquidity:                new(uint256.Int).Lsh(uint256.NewInt(1), 128),
			FeeGrowthInside0LastX128: new(uint256.Int),
			FeeGrowthInside1LastX128: new(uint256.Int),
			TokensOwed0:              new(uint256.Int),
			TokensOwed1:              new(uint256.Int),
		},
	})
	require.Error(t, err)

	_, err = decodeObservation([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestSlot0AndObservationRecords(t *testing.T) {
	s := Slot0{
		SqrtPriceX96:               new(uint256.Int).Set(fixedpoint.MinSqrtRatio),
		Tick:                       fixedpoint.MinTick,
		ObservationIndex:           3,
		ObservationCardinality:     9,
		ObservationCardinalityNext: 65535,
		FeeProtocol:                4 + 6<<4,
		Unlocked:                   true,
	}
	raw, err := encodeSlot0(s)
	require.NoError(t, err)
	got, err := decodeSlot0(raw)
	require.NoError(t, err)
	require.Equal(t, s, got)

	obs := oracle.Observation{
		BlockTimestamp:                    1700000000,
		TickCumulative:                    -99,
		SecondsPerLiquidityCumulativeX128: uint256.NewInt(12345),
		Initialized:                       true,
	}
	raw, err = encodeObservation(obs)
	require.NoError(t, err)
	gotObs, err := decodeObservation(raw)
	require.NoError(t, err)
	require.Equal(t, obs, gotObs)

	id := poolIdentity{Token0: common.HexToAddress("0x01"), Token1: common.HexToAddress("0x02"), Fee: 10000, TickSpacing: 200}
	raw, err = encodeIdentity(id)
	require.NoError(t, err)
	gotID, err := decodeIdentity(raw)
	require.NoError(t, err)
	require.Equal(t, id, gotID)
}
