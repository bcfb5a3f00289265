// Package chain reads pool logs and pool views from an Ethereum JSON-RPC endpoint.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"liquidityCore/internal/model"
)

// maxCachedHeaders bounds the block timestamp cache. Replay walks blocks forward, so
// the cache is simply dropped when full.
const maxCachedHeaders = 4096

// Client is the RPC view replay and statistics need: logs with their block times and
// eth_call against pool and token contracts.
type Client struct {
	rpc *rpc.Client
	eth *ethclient.Client

	chainIDOnce sync.Once
	chainID     uint64
	chainIDErr  error

	mu         sync.Mutex
	timestamps map[uint64]uint64
}

func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	return &Client{
		rpc:        rpcClient,
		eth:        ethclient.NewClient(rpcClient),
		timestamps: make(map[uint64]uint64),
	}, nil
}

func (c *Client) Close() {
	if c.rpc != nil {
		c.rpc.Close()
	}
}

// ChainID is fetched on first use and remembered, errors included.
func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	c.chainIDOnce.Do(func() {
		id, err := c.eth.ChainID(ctx)
		switch {
		case err != nil:
			c.chainIDErr = fmt.Errorf("get chain id: %w", err)
		case !id.IsUint64():
			c.chainIDErr = fmt.Errorf("chain id does not fit in uint64: %s", id)
		default:
			c.chainID = id.Uint64()
		}
	})
	return c.chainID, c.chainIDErr
}

func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.eth.BlockNumber(ctx)
}

// BlockTimestamp returns the header time of block number.
func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	c.mu.Lock()
	ts, ok := c.timestamps[number]
	c.mu.Unlock()
	if ok {
		return ts, nil
	}

	header, err := c.eth.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0, fmt.Errorf("header %d: %w", number, err)
	}

	c.mu.Lock()
	if len(c.timestamps) >= maxCachedHeaders {
		c.timestamps = make(map[uint64]uint64)
	}
	c.timestamps[number] = header.Time
	c.mu.Unlock()
	return header.Time, nil
}

// LogRecords runs eth_getLogs over [fromBlock, toBlock] and stamps every log with its
// block time. Logs removed by a reorg are dropped.
func (c *Client) LogRecords(
	ctx context.Context,
	fromBlock uint64,
	toBlock uint64,
	addresses []common.Address,
	topic0 []common.Hash,
) ([]model.LogRecord, error) {
	chainID, err := c.ChainID(ctx)
	if err != nil {
		return nil, err
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: addresses,
	}
	if len(topic0) > 0 {
		query.Topics = [][]common.Hash{topic0}
	}
	logs, err := c.eth.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get logs %d-%d: %w", fromBlock, toBlock, err)
	}

	ingestedAt := time.Now().UTC()
	records := make([]model.LogRecord, 0, len(logs))
	for _, log := range logs {
		if log.Removed {
			continue
		}
		ts, err := c.BlockTimestamp(ctx, log.BlockNumber)
		if err != nil {
			return nil, err
		}
		records = append(records, model.NewLogRecord(chainID, log, ts, ingestedAt))
	}
	return records, nil
}

// CallContract performs an eth_call at blockNumber, or at the latest block when nil.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.eth.CallContract(ctx, msg, blockNumber)
}
