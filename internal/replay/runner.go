// Package replay drives the pool engine with the logs of a deployed pool and reports
// where the two disagree.
package replay

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityCore/internal/dex"
	"liquidityCore/internal/model"
	"liquidityCore/internal/storage"
)

// ErrorSink receives a model.ReplayError for every failed or divergent log.
type ErrorSink interface {
	Write(value interface{}) error
}

// RunConfig holds runtime settings for a replay.
type RunConfig struct {
	Pool              common.Address
	FromBlock         uint64
	CheckpointEnabled bool
	// StopOnError aborts the run at the first decode or apply failure.
	StopOnError bool
	// Observer, when set, receives every decoded event the engine applied.
	Observer storage.EventSink
}

// Report summarises a replay run.
type Report struct {
	Pool         string          `json:"pool"`
	FromBlock    uint64          `json:"from_block"`
	LastBlock    uint64          `json:"last_block"`
	Logs         int             `json:"logs"`
	Resumed      int             `json:"resumed"`
	Applied      int             `json:"applied"`
	Skipped      int             `json:"skipped"`
	DecodeErrors int             `json:"decode_errors"`
	ApplyErrors  int             `json:"apply_errors"`
	Divergences  int             `json:"divergences"`
	ByEvent      map[string]int  `json:"by_event"`
	SqrtPriceX96 string          `json:"sqrt_price_x96"`
	Tick         int32           `json:"tick"`
	Liquidity    string          `json:"liquidity"`
	ChainState   *model.PoolMeta `json:"chain_state,omitempty"`
}

// Runner streams logs from a Source through the decoder into the engine.
type Runner struct {
	cfg        RunConfig
	source     Source
	decoder    dex.Decoder
	decodeCtx  dex.DecodeContext
	engine     *Engine
	checkpoint *CheckpointStore
	errors     ErrorSink
	logger     *zap.Logger
}

// NewRunner builds a Runner with its dependencies. errSink may be nil.
func NewRunner(
	cfg RunConfig,
	source Source,
	decoder dex.Decoder,
	decodeCtx dex.DecodeContext,
	engine *Engine,
	errSink ErrorSink,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := engine.Pool()
	return &Runner{
		cfg:        cfg,
		source:     source,
		decoder:    decoder,
		decodeCtx:  decodeCtx,
		engine:     engine,
		checkpoint: NewCheckpointStore(p.Store(), p.Namespace(), cfg.CheckpointEnabled),
		errors:     errSink,
		logger:     logger.With(zap.String("pool", cfg.Pool.Hex())),
	}
}

// Run replays every log after the checkpoint and returns the report. Per-log failures
// are counted, not returned, unless StopOnError is set.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	report := Report{
		Pool:      r.cfg.Pool.Hex(),
		FromBlock: r.cfg.FromBlock,
		ByEvent:   make(map[string]int),
	}
	if r.source == nil {
		return report, fmt.Errorf("log source is nil")
	}
	if r.decodeCtx.Context == nil {
		r.decodeCtx.Context = ctx
	}

	cp, resumed, err := r.checkpoint.Load(ctx)
	if err != nil {
		return report, err
	}
	from := r.cfg.FromBlock
	if resumed {
		// earlier runs handled cp.Logs logs; only the checkpoint block is streamed again
		report.Resumed = int(cp.Logs)
		if cp.BlockNumber >= from {
			from = cp.BlockNumber
		}
		r.logger.Info("resume from checkpoint",
			zap.Uint64("block", cp.BlockNumber),
			zap.Uint64("log_index", cp.LogIndex),
			zap.Uint64("logs", cp.Logs))
	}

	err = r.source.Stream(ctx, from, func(log model.LogRecord) error {
		if resumed && cp.Covers(log) {
			return nil
		}
		report.Logs++
		report.LastBlock = log.BlockNumber
		if err := r.apply(ctx, log, &report); err != nil {
			return err
		}
		return r.checkpoint.Save(ctx, log, cp.Logs+uint64(report.Logs))
	})

	p := r.engine.Pool()
	slot0 := p.Slot0()
	report.SqrtPriceX96 = slot0.SqrtPriceX96.Dec()
	report.Tick = slot0.Tick
	report.Liquidity = p.Liquidity().Dec()

	r.logger.Info("replay finished",
		zap.Int("logs", report.Logs),
		zap.Int("applied", report.Applied),
		zap.Int("divergences", report.Divergences),
		zap.Int("decode_errors", report.DecodeErrors),
		zap.Int("apply_errors", report.ApplyErrors),
	)
	return report, err
}

func (r *Runner) apply(ctx context.Context, log model.LogRecord, report *Report) error {
	topic0 := ""
	if len(log.Topics) > 0 {
		topic0 = log.Topics[0]
	}
	if !r.decoder.CanDecode(topic0) {
		report.Skipped++
		return nil
	}

	event, err := r.decoder.Decode(log, r.decodeCtx)
	if err != nil {
		report.DecodeErrors++
		if werr := r.fail(log, model.StageDecode, "", err.Error()); werr != nil {
			return werr
		}
		if r.cfg.StopOnError {
			return fmt.Errorf("decode %s: %w", log.ID(), err)
		}
		return nil
	}
	report.ByEvent[event.EventName]++

	divergences, err := r.engine.Apply(ctx, event)
	switch {
	case errors.Is(err, ErrUnsupportedEvent):
		report.Skipped++
		r.logger.Warn("event skipped", zap.String("event", event.EventName), zap.String("log", log.ID()))
		return nil
	case err != nil:
		report.ApplyErrors++
		if werr := r.fail(log, model.StageApply, event.EventName, err.Error()); werr != nil {
			return werr
		}
		if r.cfg.StopOnError {
			return fmt.Errorf("apply %s %s: %w", event.EventName, log.ID(), err)
		}
		return nil
	}

	report.Applied++
	if r.cfg.Observer != nil {
		if err := r.cfg.Observer.PutEventBatch([]model.TypedEvent{*event}); err != nil {
			return fmt.Errorf("observe %s: %w", log.ID(), err)
		}
	}
	for _, d := range divergences {
		report.Divergences++
		r.logger.Warn("divergence",
			zap.String("event", event.EventName),
			zap.String("log", log.ID()),
			zap.String("field", d.Field),
			zap.String("chain", d.Chain),
			zap.String("engine", d.Engine),
		)
		if err := r.fail(log, model.StageCompare, event.EventName, d.String()); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) fail(log model.LogRecord, stage, eventName, msg string) error {
	if r.errors == nil {
		return nil
	}
	topic0 := ""
	if len(log.Topics) > 0 {
		topic0 = log.Topics[0]
	}
	if err := r.errors.Write(model.ReplayError{
		Stage:       stage,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		Address:     log.Address,
		EventName:   eventName,
		Topic0:      topic0,
		Error:       msg,
	}); err != nil {
		return fmt.Errorf("write replay error: %w", err)
	}
	return nil
}
