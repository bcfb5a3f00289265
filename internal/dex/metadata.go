package dex

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"liquidityCore/internal/model"
)

// PoolMetaCache caches pool metadata by address.
type PoolMetaCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.PoolMeta
}

func NewPoolMetaCache() *PoolMetaCache {
	return &PoolMetaCache{data: make(map[common.Address]model.PoolMeta)}
}

func (c *PoolMetaCache) Get(address common.Address) (model.PoolMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *PoolMetaCache) Set(address common.Address, meta model.PoolMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// FetchPoolMeta loads the immutable pool identity: tokens, fee and tick spacing.
func FetchPoolMeta(ctx context.Context, caller ContractCaller, pool common.Address) (model.PoolMeta, error) {
	if caller == nil {
		return model.PoolMeta{}, fmt.Errorf("contract caller is nil")
	}

	parsed, err := PoolABI()
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("parse pool abi: %w", err)
	}

	values, err := callPoolMethod(ctx, caller, pool, parsed, "token0", nil)
	if err != nil {
		return model.PoolMeta{}, err
	}
	token0, err := asAddress(values[0])
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("token0: %w", err)
	}

	values, err = callPoolMethod(ctx, caller, pool, parsed, "token1", nil)
	if err != nil {
		return model.PoolMeta{}, err
	}
	token1, err := asAddress(values[0])
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("token1: %w", err)
	}

	values, err = callPoolMethod(ctx, caller, pool, parsed, "fee", nil)
	if err != nil {
		return model.PoolMeta{}, err
	}
	feeInt, err := asBigInt(values[0])
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("fee: %w", err)
	}
	if !feeInt.IsUint64() || feeInt.Uint64() >= 1<<24 {
		return model.PoolMeta{}, fmt.Errorf("fee out of range: %s", feeInt)
	}

	values, err = callPoolMethod(ctx, caller, pool, parsed, "tickSpacing", nil)
	if err != nil {
		return model.PoolMeta{}, err
	}
	tickSpacingInt, err := asBigInt(values[0])
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("tick spacing: %w", err)
	}
	tickSpacing, err := int24FromBig(tickSpacingInt)
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("tick spacing: %w", err)
	}

	return model.PoolMeta{
		Address:     pool.Hex(),
		Token0:      token0.Hex(),
		Token1:      token1.Hex(),
		Fee:         uint32(feeInt.Uint64()),
		TickSpacing: tickSpacing,
	}, nil
}

// FetchPoolState reads slot0 and liquidity at blockNumber, or at the head when it is 0.
// Only Address, Liquidity and Slot0 are set on the result.
func FetchPoolState(ctx context.Context, caller ContractCaller, pool common.Address, blockNumber uint64) (model.PoolMeta, error) {
	if caller == nil {
		return model.PoolMeta{}, fmt.Errorf("contract caller is nil")
	}

	parsed, err := PoolABI()
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("parse pool abi: %w", err)
	}

	var blockPtr *big.Int
	if blockNumber > 0 {
		blockPtr = new(big.Int).SetUint64(blockNumber)
	}

	values, err := callPoolMethod(ctx, caller, pool, parsed, "liquidity", blockPtr)
	if err != nil {
		return model.PoolMeta{}, err
	}
	liquidity, err := asBigInt(values[0])
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("liquidity: %w", err)
	}

	values, err = callPoolMethod(ctx, caller, pool, parsed, "slot0", blockPtr)
	if err != nil {
		return model.PoolMeta{}, err
	}
	reader := &fieldReader{event: "slot0", values: make(map[string]interface{}, len(values))}
	for i, output := range parsed.Methods["slot0"].Outputs {
		if i < len(values) {
			reader.values[output.Name] = values[i]
		}
	}
	slot0 := &model.PoolSlot0{
		SqrtPriceX96:               reader.decimal("sqrtPriceX96"),
		Tick:                       reader.tick("tick"),
		ObservationIndex:           reader.uint16("observationIndex"),
		ObservationCardinality:     reader.uint16("observationCardinality"),
		ObservationCardinalityNext: reader.uint16("observationCardinalityNext"),
		FeeProtocol:                reader.uint8("feeProtocol"),
	}
	if unlocked, ok := reader.values["unlocked"].(bool); ok {
		slot0.Unlocked = unlocked
	}
	if reader.err != nil {
		return model.PoolMeta{}, reader.err
	}

	return model.PoolMeta{
		Address:   pool.Hex(),
		Liquidity: liquidity.String(),
		Slot0:     slot0,
	}, nil
}

func callPoolMethod(ctx context.Context, caller ContractCaller, pool common.Address, parsed abi.ABI, method string, block *big.Int) ([]interface{}, error) {
	data, err := parsed.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &pool, Data: data}
	resp, err := caller.CallContract(ctx, msg, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: no values", method)
	}
	return values, nil
}
