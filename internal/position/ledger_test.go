package position

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"liquidityCore/internal/fixedpoint"
)

var (
	alice = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob   = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func q128Times(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(fixedpoint.Q128, uint256.NewInt(n))
}

func TestKeyOfPacksInt24(t *testing.T) {
	a := KeyOf(alice, -600, 600)
	require.Equal(t, a, KeyOf(alice, -600, 600))
	require.NotEqual(t, a, KeyOf(bob, -600, 600))
	require.NotEqual(t, a, KeyOf(alice, -600, 660))
	require.NotEqual(t, a, KeyOf(alice, 600, -600))

	buf := appendInt24(nil, -1)
	require.Equal(t, []byte{0xff, 0xff, 0xff}, buf)
	buf = appendInt24(nil, 600)
	require.Equal(t, []byte{0x00, 0x02, 0x58}, buf)
}

func TestUpdateAccruesFees(t *testing.T) {
	l := NewLedger()

	info, err := l.Update(alice, -60, 60, big.NewInt(100), new(uint256.Int), new(uint256.Int))
	require.NoError(t, err)
	require.Equal(t, uint64(100), info.Liquidity.Uint64())
	require.True(t, info.TokensOwed0.IsZero())

	info, err = l.Update(alice, -60, 60, big.NewInt(50), q128Times(3), q128Times(7))
	require.NoError(t, err)
	require.Equal(t, uint64(150), info.Liquidity.Uint64())
	require.Equal(t, uint64(300), info.TokensOwed0.Uint64())
	require.Equal(t, uint64(700), info.TokensOwed1.Uint64())
	require.True(t, info.FeeGrowthInside0LastX128.Eq(q128Times(3)))

	// poke credits the new liquidity
	info, err = l.Update(alice, -60, 60, new(big.Int), q128Times(4), q128Times(7))
	require.NoError(t, err)
	require.Equal(t, uint64(450), info.TokensOwed0.Uint64())
	require.Equal(t, uint64(700), info.TokensOwed1.Uint64())
}

func TestUpdateWrappingGrowth(t *testing.T) {
	l := NewLedger()
	last := new(uint256.Int).Sub(new(uint256.Int), q128Times(2))

	_, err := l.Update(alice, 0, 60, big.NewInt(10), last, new(uint256.Int))
	require.NoError(t, err)

	info, err := l.Update(alice, 0, 60, new(big.Int), q128Times(1), new(uint256.Int))
	require.NoError(t, err)
	require.Equal(t, uint64(30), info.TokensOwed0.Uint64())
}

func TestUpdateRejections(t *testing.T) {
	l := NewLedger()

	_, err := l.Update(alice, 0, 60, new(big.Int), new(uint256.Int), new(uint256.Int))
	require.ErrorIs(t, err, ErrNoPosition)

	_, err = l.Update(alice, 0, 60, big.NewInt(5), new(uint256.Int), new(uint256.Int))
	require.NoError(t, err)

	_, err = l.Update(alice, 0, 60, big.NewInt(-6), new(uint256.Int), new(uint256.Int))
	require.ErrorIs(t, err, fixedpoint.ErrLiquidityOverflow)
	require.Equal(t, uint64(5), l.Get(alice, 0, 60).Liquidity.Uint64())
}

func TestUpdateOwedOverflow(t *testing.T) {
	l := NewLedger()
	l.Set(Entry{Owner: alice, TickLower: 0, TickUpper: 60, Info: Info{
		Liquidity:                uint256.NewInt(1),
		FeeGrowthInside0LastX128: new(uint256.Int),
		FeeGrowthInside1LastX128: new(uint256.Int),
		TokensOwed0:              new(uint256.Int).Set(fixedpoint.MaxUint128),
		TokensOwed1:              new(uint256.Int),
	}})

	_, err := l.Update(alice, 0, 60, new(big.Int), q128Times(1), new(uint256.Int))
	require.ErrorIs(t, err, fixedpoint.ErrArithmeticOverflow)
}

func TestCollect(t *testing.T) {
	l := NewLedger()
	_, err := l.Update(alice, 0, 60, big.NewInt(10), new(uint256.Int), new(uint256.Int))
	require.NoError(t, err)
	_, err = l.Update(alice, 0, 60, big.NewInt(-10), q128Times(2), q128Times(1))
	require.NoError(t, err)
	l.Reset()

	amount0, amount1 := l.Collect(alice, 0, 60, new(uint256.Int), new(uint256.Int))
	require.True(t, amount0.IsZero())
	require.True(t, amount1.IsZero())
	require.Empty(t, l.Touched())

	amount0, amount1 = l.Collect(alice, 0, 60, uint256.NewInt(5), uint256.NewInt(100))
	require.Equal(t, uint64(5), amount0.Uint64())
	require.Equal(t, uint64(10), amount1.Uint64())

	info := l.Get(alice, 0, 60)
	require.Equal(t, uint64(15), info.TokensOwed0.Uint64())
	require.True(t, info.TokensOwed1.IsZero())
	require.Len(t, l.Touched(), 1)
}

func TestRevert(t *testing.T) {
	l := NewLedger()
	_, err := l.Update(alice, 0, 60, big.NewInt(10), new(uint256.Int), new(uint256.Int))
	require.NoError(t, err)
	l.Reset()

	_, err = l.Update(alice, 0, 60, big.NewInt(5), new(uint256.Int), new(uint256.Int))
	require.NoError(t, err)
	_, err = l.Update(bob, 0, 60, big.NewInt(5), new(uint256.Int), new(uint256.Int))
	require.NoError(t, err)

	l.Revert()
	l.Reset()
	require.Equal(t, uint64(10), l.Get(alice, 0, 60).Liquidity.Uint64())
	_, ok := l.Lookup(KeyOf(bob, 0, 60))
	require.False(t, ok)
	require.Len(t, l.Entries(), 1)
}

func TestCredit(t *testing.T) {
	l := NewLedger()
	require.NoError(t, l.Credit(alice, 0, 60, new(uint256.Int), new(uint256.Int)))
	require.Empty(t, l.Touched())

	require.NoError(t, l.Credit(alice, 0, 60, uint256.NewInt(4), uint256.NewInt(9)))
	info := l.Get(alice, 0, 60)
	require.Equal(t, uint64(4), info.TokensOwed0.Uint64())
	require.Equal(t, uint64(9), info.TokensOwed1.Uint64())

	err := l.Credit(alice, 0, 60, new(uint256.Int).Set(fixedpoint.MaxUint128), new(uint256.Int))
	require.ErrorIs(t, err, fixedpoint.ErrArithmeticOverflow)
}
