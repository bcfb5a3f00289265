package pool

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityCore/internal/fixedpoint"
	"liquidityCore/internal/oracle"
	"liquidityCore/internal/position"
	"liquidityCore/internal/tick"
)

// Records are ABI-encoded tuples with fields in the order of the on-chain structs.
type recordLayouts struct {
	config      abi.Arguments
	slot0       abi.Arguments
	globals     abi.Arguments
	tick        abi.Arguments
	word        abi.Arguments
	position    abi.Arguments
	observation abi.Arguments
}

var (
	layouts     recordLayouts
	layoutsOnce sync.Once
	layoutsErr  error
)

func arguments(types ...string) (abi.Arguments, error) {
	args := make(abi.Arguments, 0, len(types))
	for _, t := range types {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			return nil, fmt.Errorf("abi type %s: %w", t, err)
		}
		args = append(args, abi.Argument{Type: typ})
	}
	return args, nil
}

func codec() (*recordLayouts, error) {
	layoutsOnce.Do(func() {
		build := func(dst *abi.Arguments, types ...string) {
			if layoutsErr != nil {
				return
			}
			*dst, layoutsErr = arguments(types...)
		}
		build(&layouts.config, "address", "address", "uint24", "int24")
		build(&layouts.slot0, "uint160", "int24", "uint16", "uint16", "uint16", "uint8", "bool")
		build(&layouts.globals, "uint256", "uint256", "uint128", "uint128", "uint128", "uint64")
		build(&layouts.tick, "uint128", "int128", "uint256", "uint256", "int64", "uint160", "uint32", "bool")
		build(&layouts.word, "uint256")
		build(&layouts.position, "address", "int24", "int24", "uint128", "uint256", "uint256", "uint128", "uint128")
		build(&layouts.observation, "uint32", "int64", "uint160", "bool")
	})
	return &layouts, layoutsErr
}

type poolIdentity struct {
	Token0      common.Address
	Token1      common.Address
	Fee         uint32
	TickSpacing int32
}

type globals struct {
	FeeGrowthGlobal0X128 *uint256.Int
	FeeGrowthGlobal1X128 *uint256.Int
	ProtocolFees         ProtocolFees
	Liquidity            *uint256.Int
	Seq                  uint64
}

func encodeIdentity(id poolIdentity) ([]byte, error) {
	c, err := codec()
	if err != nil {
		return nil, err
	}
	return c.config.Pack(id.Token0, id.Token1, new(big.Int).SetUint64(uint64(id.Fee)), big.NewInt(int64(id.TickSpacing)))
}

func decodeIdentity(data []byte) (poolIdentity, error) {
	c, err := codec()
	if err != nil {
		return poolIdentity{}, err
	}
	values, err := c.config.Unpack(data)
	if err != nil {
		return poolIdentity{}, fmt.Errorf("unpack pool identity: %w", err)
	}
	return poolIdentity{
		Token0:      values[0].(common.Address),
		Token1:      values[1].(common.Address),
		Fee:         uint32(values[2].(*big.Int).Uint64()),
		TickSpacing: int32(values[3].(*big.Int).Int64()),
	}, nil
}

func encodeSlot0(s Slot0) ([]byte, error) {
	if err := checkWidth("sqrt price", s.SqrtPriceX96, 160); err != nil {
		return nil, err
	}
	c, err := codec()
	if err != nil {
		return nil, err
	}
	return c.slot0.Pack(
		s.SqrtPriceX96.ToBig(),
		big.NewInt(int64(s.Tick)),
		s.ObservationIndex,
		s.ObservationCardinality,
		s.ObservationCardinalityNext,
		s.FeeProtocol,
		s.Unlocked,
	)
}

func decodeSlot0(data []byte) (Slot0, error) {
	c, err := codec()
	if err != nil {
		return Slot0{}, err
	}
	values, err := c.slot0.Unpack(data)
	if err != nil {
		return Slot0{}, fmt.Errorf("unpack slot0: %w", err)
	}
	return Slot0{
		SqrtPriceX96:               mustWord(values[0]),
		Tick:                       int32(values[1].(*big.Int).Int64()),
		ObservationIndex:           values[2].(uint16),
		ObservationCardinality:     values[3].(uint16),
		ObservationCardinalityNext: values[4].(uint16),
		FeeProtocol:                values[5].(uint8),
		Unlocked:                   values[6].(bool),
	}, nil
}

func encodeGlobals(g globals) ([]byte, error) {
	for name, v := range map[string]*uint256.Int{
		"protocol fees token0": g.ProtocolFees.Token0,
		"protocol fees token1": g.ProtocolFees.Token1,
		"liquidity":            g.Liquidity,
	} {
		if err := checkWidth(name, v, 128); err != nil {
			return nil, err
		}
	}
	c, err := codec()
	if err != nil {
		return nil, err
	}
	return c.globals.Pack(
		g.FeeGrowthGlobal0X128.ToBig(),
		g.FeeGrowthGlobal1X128.ToBig(),
		g.ProtocolFees.Token0.ToBig(),
		g.ProtocolFees.Token1.ToBig(),
		g.Liquidity.ToBig(),
		g.Seq,
	)
}

func decodeGlobals(data []byte) (globals, error) {
	c, err := codec()
	if err != nil {
		return globals{}, err
	}
	values, err := c.globals.Unpack(data)
	if err != nil {
		return globals{}, fmt.Errorf("unpack globals: %w", err)
	}
	return globals{
		FeeGrowthGlobal0X128: mustWord(values[0]),
		FeeGrowthGlobal1X128: mustWord(values[1]),
		ProtocolFees: ProtocolFees{
			Token0: mustWord(values[2]),
			Token1: mustWord(values[3]),
		},
		Liquidity: mustWord(values[4]),
		Seq:       values[5].(uint64),
	}, nil
}

func encodeTick(info tick.Info) ([]byte, error) {
	if err := checkWidth("liquidity gross", info.LiquidityGross, 128); err != nil {
		return nil, err
	}
	if !fixedpoint.FitsInt128(info.LiquidityNet) {
		return nil, fmt.Errorf("liquidity net %s exceeds int128: %w", info.LiquidityNet, ErrArithmeticOverflow)
	}
	if err := checkWidth("seconds per liquidity outside", info.SecondsPerLiquidityOutsideX128, 160); err != nil {
		return nil, err
	}
	c, err := codec()
	if err != nil {
		return nil, err
	}
	return c.tick.Pack(
		info.LiquidityGross.ToBig(),
		new(big.Int).Set(info.LiquidityNet),
		info.FeeGrowthOutside0X128.ToBig(),
		info.FeeGrowthOutside1X128.ToBig(),
		info.TickCumulativeOutside,
		info.SecondsPerLiquidityOutsideX128.ToBig(),
		info.SecondsOutside,
		info.Initialized,
	)
}

func decodeTick(data []byte) (tick.Info, error) {
	c, err := codec()
	if err != nil {
		return tick.Info{}, err
	}
	values, err := c.tick.Unpack(data)
	if err != nil {
		return tick.Info{}, fmt.Errorf("unpack tick: %w", err)
	}
	return tick.Info{
		LiquidityGross:                 mustWord(values[0]),
		LiquidityNet:                   new(big.Int).Set(values[1].(*big.Int)),
		FeeGrowthOutside0X128:          mustWord(values[2]),
		FeeGrowthOutside1X128:          mustWord(values[3]),
		TickCumulativeOutside:          values[4].(int64),
		SecondsPerLiquidityOutsideX128: mustWord(values[5]),
		SecondsOutside:                 values[6].(uint32),
		Initialized:                    values[7].(bool),
	}, nil
}

func encodeWord(w tick.Word) ([]byte, error) {
	c, err := codec()
	if err != nil {
		return nil, err
	}
	return c.word.Pack(w.Uint256().ToBig())
}

func decodeWord(data []byte) (tick.Word, error) {
	c, err := codec()
	if err != nil {
		return tick.Word{}, err
	}
	values, err := c.word.Unpack(data)
	if err != nil {
		return tick.Word{}, fmt.Errorf("unpack bitmap word: %w", err)
	}
	return tick.WordFromUint256(mustWord(values[0])), nil
}

func encodePosition(e position.Entry) ([]byte, error) {
	for name, v := range map[string]*uint256.Int{
		"liquidity":    e.Info.Liquidity,
		"tokens owed0": e.Info.TokensOwed0,
		"tokens owed1": e.Info.TokensOwed1,
	} {
		if err := checkWidth(name, v, 128); err != nil {
			return nil, err
		}
	}
	c, err := codec()
	if err != nil {
		return nil, err
	}
	return c.position.Pack(
		e.Owner,
		big.NewInt(int64(e.TickLower)),
		big.NewInt(int64(e.TickUpper)),
		e.Info.Liquidity.ToBig(),
		e.Info.FeeGrowthInside0LastX128.ToBig(),
		e.Info.FeeGrowthInside1LastX128.ToBig(),
		e.Info.TokensOwed0.ToBig(),
		e.Info.TokensOwed1.ToBig(),
	)
}

func decodePosition(data []byte) (position.Entry, error) {
	c, err := codec()
	if err != nil {
		return position.Entry{}, err
	}
	values, err := c.position.Unpack(data)
	if err != nil {
		return position.Entry{}, fmt.Errorf("unpack position: %w", err)
	}
	return position.Entry{
		Owner:     values[0].(common.Address),
		TickLower: int32(values[1].(*big.Int).Int64()),
		TickUpper: int32(values[2].(*big.Int).Int64()),
		Info: position.Info{
			Liquidity:                mustWord(values[3]),
			FeeGrowthInside0LastX128: mustWord(values[4]),
			FeeGrowthInside1LastX128: mustWord(values[5]),
			TokensOwed0:              mustWord(values[6]),
			TokensOwed1:              mustWord(values[7]),
		},
	}, nil
}

func encodeObservation(o oracle.Observation) ([]byte, error) {
	if err := checkWidth("seconds per liquidity", o.SecondsPerLiquidityCumulativeX128, 160); err != nil {
		return nil, err
	}
	c, err := codec()
	if err != nil {
		return nil, err
	}
	return c.observation.Pack(
		o.BlockTimestamp,
		o.TickCumulative,
		o.SecondsPerLiquidityCumulativeX128.ToBig(),
		o.Initialized,
	)
}

func decodeObservation(data []byte) (oracle.Observation, error) {
	c, err := codec()
	if err != nil {
		return oracle.Observation{}, err
	}
	values, err := c.observation.Unpack(data)
	if err != nil {
		return oracle.Observation{}, fmt.Errorf("unpack observation: %w", err)
	}
	return oracle.Observation{
		BlockTimestamp:                    values[0].(uint32),
		TickCumulative:                    values[1].(int64),
		SecondsPerLiquidityCumulativeX128: mustWord(values[2]),
		Initialized:                       values[3].(bool),
	}, nil
}

// checkWidth rejects values the ABI packer would silently widen.
func checkWidth(name string, v *uint256.Int, bits int) error {
	if v.BitLen() > bits {
		return fmt.Errorf("%s %s exceeds uint%d: %w", name, v.Dec(), bits, ErrArithmeticOverflow)
	}
	return nil
}

// mustWord converts an unpacked unsigned ABI value. The ABI decoder has already
// bounded it to its declared width.
func mustWord(v interface{}) *uint256.Int {
	out, _ := uint256.FromBig(v.(*big.Int))
	return out
}
