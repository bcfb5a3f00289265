package replay

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sugawarayuuta/sonnet"
	"go.uber.org/zap"

	"liquidityCore/internal/model"
	"liquidityCore/internal/storage"
)

// Source delivers the logs of one pool in (block, log index) order, starting at
// fromBlock.
type Source interface {
	Stream(ctx context.Context, fromBlock uint64, fn func(model.LogRecord) error) error
}

// FileSource reads raw logs from a JSONL dump. Logs of other addresses are skipped;
// the dump must already be ordered.
type FileSource struct {
	Path    string
	Pool    common.Address
	ToBlock uint64
}

func (s *FileSource) Stream(ctx context.Context, fromBlock uint64, fn func(model.LogRecord) error) error {
	file, err := os.Open(s.Path)
	if err != nil {
		return fmt.Errorf("open logs: %w", err)
	}
	defer file.Close()

	var prev *model.LogRecord
	return storage.ScanJSONL(file, func(lineNo int, line []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var record model.LogRecord
		if err := sonnet.Unmarshal(line, &record); err != nil {
			return fmt.Errorf("line %d: decode log: %w", lineNo, err)
		}
		if !common.IsHexAddress(record.Address) || common.HexToAddress(record.Address) != s.Pool {
			return nil
		}
		if record.Removed || record.BlockNumber < fromBlock {
			return nil
		}
		if s.ToBlock > 0 && record.BlockNumber > s.ToBlock {
			return nil
		}
		if prev != nil && !before(*prev, record) {
			return fmt.Errorf("line %d: log %s is not after %s", lineNo, record.ID(), prev.ID())
		}
		prev = &record
		return fn(record)
	})
}

// LogClient is the part of chain.Client an RPC source needs.
type LogClient interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	LogRecords(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]model.LogRecord, error)
}

// RPCSource pages eth_getLogs over the block range in batches, retrying each batch.
type RPCSource struct {
	Client       LogClient
	Pool         common.Address
	Topic0       []common.Hash
	ToBlock      uint64
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
	Logger       *zap.Logger
}

func (s *RPCSource) Stream(ctx context.Context, fromBlock uint64, fn func(model.LogRecord) error) error {
	if s.Client == nil {
		return fmt.Errorf("chain client is nil")
	}
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	to := s.ToBlock
	if to == 0 {
		err := withRetry(ctx, logger, "latest_block", s.MaxRetries, s.RetryBackoff, func(ctx context.Context) error {
			latest, err := s.Client.LatestBlockNumber(ctx)
			to = latest
			return err
		})
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
	}
	if fromBlock > to {
		logger.Info("nothing to replay", zap.Uint64("from", fromBlock), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(fromBlock, to, s.BatchSize)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{})
	for _, blockRange := range ranges {
		if err := ctx.Err(); err != nil {
			return err
		}
		logger.Info("fetch logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		var records []model.LogRecord
		err := withRetry(ctx, logger, "filter_logs", s.MaxRetries, s.RetryBackoff, func(ctx context.Context) error {
			var err error
			records, err = s.Client.LogRecords(ctx, blockRange.From, blockRange.To, []common.Address{s.Pool}, s.Topic0)
			return err
		})
		if err != nil {
			return fmt.Errorf("filter logs %d-%d: %w", blockRange.From, blockRange.To, err)
		}

		sort.Slice(records, func(i, j int) bool { return before(records[i], records[j]) })
		delivered := 0
		for _, record := range records {
			id := record.ID()
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if err := fn(record); err != nil {
				return err
			}
			delivered++
		}
		logger.Info("batch complete", zap.Int("logs", delivered), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
	}
	return nil
}

func before(a, b model.LogRecord) bool {
	if a.BlockNumber != b.BlockNumber {
		return a.BlockNumber < b.BlockNumber
	}
	return a.LogIndex < b.LogIndex
}
