package fixedpoint

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

// sqrt(1.01) * 2^96
var priceOnePointZeroOne = uint256.MustFromDecimal("79623317895830914510639640423")

func TestComputeSwapStep(t *testing.T) {
	twoE18 := new(uint256.Int).Mul(e18, uint256.NewInt(2))

	cases := []struct {
		name      string
		target    *uint256.Int
		remaining *big.Int
		wantNext  string
		wantIn    string
		wantOut   string
		wantFee   string
	}{
		{
			name:      "exact in capped at target",
			target:    priceOnePointZeroOne,
			remaining: e18.ToBig(),
			wantNext:  priceOnePointZeroOne.Dec(),
			wantIn:    "9975124224178055",
			wantOut:   "9925619580021728",
			wantFee:   "5988667735148",
		},
		{
			name:      "exact out capped at target",
			target:    priceOnePointZeroOne,
			remaining: new(big.Int).Neg(e18.ToBig()),
			wantNext:  priceOnePointZeroOne.Dec(),
			wantIn:    "9975124224178055",
			wantOut:   "9925619580021728",
			wantFee:   "5988667735148",
		},
		{
			name:      "exact in fully spent",
			target:    uint256.MustFromDecimal("250541448375047931186413801569"),
			remaining: e18.ToBig(),
			wantNext:  "118818475322642227089037862318",
			wantIn:    "999400000000000000",
			wantOut:   "666399946655997866",
			wantFee:   "600000000000000",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			step, err := ComputeSwapStep(Q96, tc.target, twoE18, tc.remaining, 600)
			require.NoError(t, err)
			require.Equal(t, tc.wantNext, step.SqrtRatioNextX96.Dec())
			require.Equal(t, tc.wantIn, step.AmountIn.Dec())
			require.Equal(t, tc.wantOut, step.AmountOut.Dec())
			require.Equal(t, tc.wantFee, step.FeeAmount.Dec())
		})
	}
}

func TestComputeSwapStepExactInConservesInput(t *testing.T) {
	remaining := big.NewInt(1_000_000_000)
	target, err := SqrtRatioAtTick(-600)
	require.NoError(t, err)

	step, err := ComputeSwapStep(Q96, target, e18, remaining, 3000)
	require.NoError(t, err)
	require.True(t, step.SqrtRatioNextX96.Lt(Q96))
	require.True(t, step.SqrtRatioNextX96.Gt(target))

	spent := new(uint256.Int).Add(step.AmountIn, step.FeeAmount)
	require.Equal(t, remaining.String(), spent.Dec())
}

func TestComputeSwapStepZeroLiquidityJumpsToTarget(t *testing.T) {
	target, err := SqrtRatioAtTick(60)
	require.NoError(t, err)

	step, err := ComputeSwapStep(Q96, target, new(uint256.Int), big.NewInt(1000), 3000)
	require.NoError(t, err)
	require.True(t, step.SqrtRatioNextX96.Eq(target))
	require.True(t, step.AmountIn.IsZero())
	require.True(t, step.AmountOut.IsZero())
	require.True(t, step.FeeAmount.IsZero())
}

func TestComputeSwapStepRejectsFullFee(t *testing.T) {
	_, err := ComputeSwapStep(Q96, priceOnePointZeroOne, e18, big.NewInt(1), FeeDenominator)
	require.ErrorIs(t, err, ErrInvalidFee)
}
