// Package aggregate rolls pool swap events up into fixed time windows.
package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sugawarayuuta/sonnet"
	"go.uber.org/zap"

	"liquidityCore/internal/model"
	"liquidityCore/internal/storage"
)

const (
	feeMethodExact  = "exact"
	feeMethodApprox = "approx_from_feeTier"
	feeMethodMixed  = "mixed"
)

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	TVL           TVLSource
}

// Aggregator accumulates swap events per pool window. It is an event sink, so it can
// sit directly behind a pool or a replay runner.
type Aggregator struct {
	cfg    Config
	logger *zap.Logger

	mu           sync.Mutex
	accumulators map[string]*Accumulator
	closed       []*Accumulator
	failed       int
}

func NewAggregator(cfg Config, logger *zap.Logger) (*Aggregator, error) {
	if cfg.WindowSeconds == 0 {
		return nil, fmt.Errorf("window seconds must be > 0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		cfg:          cfg,
		logger:       logger,
		accumulators: make(map[string]*Accumulator),
	}, nil
}

// PutEventBatch adds every event. Events that cannot be aggregated are logged and
// counted, never returned, so statistics cannot fail the operation that emitted them.
func (a *Aggregator) PutEventBatch(events []model.TypedEvent) error {
	for _, event := range events {
		if err := a.AddEvent(event); err != nil {
			a.mu.Lock()
			a.failed++
			a.mu.Unlock()
			a.logger.Warn("aggregate event", zap.Error(err), zap.String("pool", event.Address), zap.String("event", event.EventName))
		}
	}
	return nil
}

// AddEvent folds a swap into its window. Other events are ignored.
func (a *Aggregator) AddEvent(event model.TypedEvent) error {
	if !strings.EqualFold(event.EventName, model.EventSwap) {
		return nil
	}
	swap, err := swapData(event.Decoded)
	if err != nil {
		return err
	}

	start := windowStart(event.Timestamp, a.cfg.WindowSeconds)
	key := poolKey(event.Address)

	a.mu.Lock()
	defer a.mu.Unlock()
	acc := a.accumulators[key]
	if acc == nil || acc.WindowStart != start {
		if acc != nil {
			a.closed = append(a.closed, acc)
		}
		acc = NewAccumulator(event, start, start+a.cfg.WindowSeconds)
		a.accumulators[key] = acc
	}
	return acc.AddSwap(event, swap)
}

// Failed returns how many events could not be aggregated.
func (a *Aggregator) Failed() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failed
}

// Run aggregates a typed events JSONL file.
func (a *Aggregator) Run(ctx context.Context, inputPath string) error {
	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	var total, failed int
	err = storage.ScanJSONL(file, func(lineNo int, line []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		total++

		var record model.TypedEventRecord
		if err := sonnet.Unmarshal(line, &record); err != nil {
			failed++
			a.logger.Warn("decode typed event", zap.Int("line", lineNo), zap.Error(err))
			return nil
		}
		if err := a.AddEvent(fromRecord(record)); err != nil {
			failed++
			a.logger.Warn("aggregate event", zap.Error(err), zap.String("pool", record.Address), zap.String("event", record.EventName))
		}
		return nil
	})
	if err != nil {
		return err
	}

	a.logger.Info("aggregate complete",
		zap.Int("total", total),
		zap.Int("failed", failed),
	)
	return nil
}

// Flush closes every window, open or not, and returns their statistics ordered by
// pool and window start. The aggregator starts empty afterwards.
func (a *Aggregator) Flush(ctx context.Context) []model.WindowStats {
	a.mu.Lock()
	windows := a.closed
	for _, acc := range a.accumulators {
		windows = append(windows, acc)
	}
	a.closed = nil
	a.accumulators = make(map[string]*Accumulator)
	a.mu.Unlock()

	sort.Slice(windows, func(i, j int) bool {
		pi, pj := poolKey(windows[i].PoolAddress), poolKey(windows[j].PoolAddress)
		if pi != pj {
			return pi < pj
		}
		return windows[i].WindowStart < windows[j].WindowStart
	})

	out := make([]model.WindowStats, 0, len(windows))
	for _, acc := range windows {
		out = append(out, a.stats(ctx, acc))
	}
	return out
}

func (a *Aggregator) stats(ctx context.Context, acc *Accumulator) model.WindowStats {
	meta := acc.PoolMeta
	if meta.Address == "" {
		meta.Address = acc.PoolAddress
	}

	tvlMethod := TVLMethodNone
	var tvl0, tvl1 *string
	var rate0, rate1 *big.Rat
	if a.cfg.TVL != nil {
		balance0, balance1, method, err := a.cfg.TVL.Balances(ctx, meta, acc.LastBlock)
		if err != nil {
			a.logger.Warn("tvl fetch failed", zap.String("pool", acc.PoolAddress), zap.Error(err))
		} else {
			tvlMethod = method
			tvl0, tvl1 = intText(balance0), intText(balance1)
			rate0, rate1 = feeRate(acc.Fee0, balance0), feeRate(acc.Fee1, balance1)
		}
	}

	return model.WindowStats{
		PoolAddress:    acc.PoolAddress,
		WindowSizeSecs: int64(a.cfg.WindowSeconds),
		WindowStart:    time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(acc.WindowEnd), 0).UTC(),
		SwapCount:      acc.SwapCount,
		Volume0:        acc.Volume0.String(),
		Volume1:        acc.Volume1.String(),
		Fee0:           acc.Fee0.String(),
		Fee1:           acc.Fee1.String(),
		ProtocolFee0:   acc.ProtocolFee0.String(),
		ProtocolFee1:   acc.ProtocolFee1.String(),
		FeeRate0:       ratText(rate0),
		FeeRate1:       ratText(rate1),
		TVL0:           tvl0,
		TVL1:           tvl1,
		APR:            ratText(annualRate(rate0, rate1, a.cfg.WindowSeconds)),
		CloseTick:      acc.CloseTick,
		CloseSqrtPrice: acc.CloseSqrtPrice,
		FeeMethod:      acc.FeeMethod(),
		TVLMethod:      tvlMethod,
	}
}

func swapData(decoded interface{}) (model.SwapEventData, error) {
	switch v := decoded.(type) {
	case model.SwapEventData:
		return v, nil
	case *model.SwapEventData:
		if v == nil {
			return model.SwapEventData{}, fmt.Errorf("decode swap: nil payload")
		}
		return *v, nil
	case json.RawMessage:
		var swap model.SwapEventData
		if err := sonnet.Unmarshal(v, &swap); err != nil {
			return model.SwapEventData{}, fmt.Errorf("decode swap: %w", err)
		}
		return swap, nil
	default:
		return model.SwapEventData{}, fmt.Errorf("decode swap: unexpected payload %T", decoded)
	}
}

func fromRecord(record model.TypedEventRecord) model.TypedEvent {
	return model.TypedEvent{
		Source:      record.Source,
		Seq:         record.Seq,
		ChainID:     record.ChainID,
		BlockNumber: record.BlockNumber,
		BlockHash:   record.BlockHash,
		TxHash:      record.TxHash,
		LogIndex:    record.LogIndex,
		Address:     record.Address,
		EventName:   record.EventName,
		Timestamp:   record.Timestamp,
		Decoded:     record.Decoded,
		PoolMeta:    record.PoolMeta,
		Raw:         record.Raw,
	}
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func poolKey(address string) string {
	return strings.ToLower(address)
}
