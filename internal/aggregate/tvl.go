package aggregate

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"liquidityCore/internal/dex"
	"liquidityCore/internal/model"
)

const (
	TVLMethodBlock  = "balance_of_block"
	TVLMethodLatest = "balance_of_latest"
	TVLMethodLedger = "ledger"
	TVLMethodNone   = "unavailable"
)

// TVLSource reports the pool's token balances at the close of a window. blockNumber
// is zero for engine windows.
type TVLSource interface {
	Balances(ctx context.Context, meta model.PoolMeta, blockNumber uint64) (*big.Int, *big.Int, string, error)
}

const erc20BalanceOfABIJSON = `[
  {"inputs": [{"internalType": "address", "name": "account", "type": "address"}], "name": "balanceOf", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

var (
	balanceOfABI    abi.ABI
	balanceOfOnce   sync.Once
	balanceOfABIErr error
)

func getBalanceOfABI() (abi.ABI, error) {
	balanceOfOnce.Do(func() {
		balanceOfABI, balanceOfABIErr = abi.JSON(strings.NewReader(erc20BalanceOfABIJSON))
	})
	return balanceOfABI, balanceOfABIErr
}

// BalanceOfSource reads ERC20 balances of the pool over RPC, at the window's last block
// when the node still has that state and at the latest block otherwise.
type BalanceOfSource struct {
	Caller dex.ContractCaller
}

func (s *BalanceOfSource) Balances(ctx context.Context, meta model.PoolMeta, blockNumber uint64) (*big.Int, *big.Int, string, error) {
	if !common.IsHexAddress(meta.Token0) || !common.IsHexAddress(meta.Token1) || !common.IsHexAddress(meta.Address) {
		return nil, nil, TVLMethodNone, fmt.Errorf("invalid address in pool meta")
	}
	token0 := common.HexToAddress(meta.Token0)
	token1 := common.HexToAddress(meta.Token1)
	pool := common.HexToAddress(meta.Address)

	if blockNumber > 0 {
		blockPtr := new(big.Int).SetUint64(blockNumber)
		bal0, err0 := s.balanceOf(ctx, token0, pool, blockPtr)
		bal1, err1 := s.balanceOf(ctx, token1, pool, blockPtr)
		if err0 == nil && err1 == nil {
			return bal0, bal1, TVLMethodBlock, nil
		}
	}

	bal0, err := s.balanceOf(ctx, token0, pool, nil)
	if err != nil {
		return nil, nil, TVLMethodNone, err
	}
	bal1, err := s.balanceOf(ctx, token1, pool, nil)
	if err != nil {
		return nil, nil, TVLMethodNone, err
	}
	return bal0, bal1, TVLMethodLatest, nil
}

func (s *BalanceOfSource) balanceOf(ctx context.Context, token common.Address, owner common.Address, blockNumber *big.Int) (*big.Int, error) {
	if s.Caller == nil {
		return nil, fmt.Errorf("contract caller is nil")
	}
	balanceABI, err := getBalanceOfABI()
	if err != nil {
		return nil, err
	}

	data, err := balanceABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}

	resp, err := s.Caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("call balanceOf: %w", err)
	}

	values, err := balanceABI.Unpack("balanceOf", resp)
	if err != nil {
		return nil, fmt.Errorf("unpack balanceOf: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("balanceOf return size %d", len(values))
	}
	bal, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf unexpected type %T", values[0])
	}
	return bal, nil
}
