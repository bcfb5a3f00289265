package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityCore/internal/aggregate"
	"liquidityCore/internal/chain"
	"liquidityCore/internal/config"
	"liquidityCore/internal/dex"
	"liquidityCore/internal/model"
	"liquidityCore/internal/replay"
	"liquidityCore/internal/storage"
)

type replayOutput struct {
	Report  replay.Report       `json:"report"`
	Windows []model.WindowStats `json:"windows,omitempty"`
}

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.In == "" && cfg.RPCURL == "" {
		return fmt.Errorf("either --in or --rpc is required")
	}
	if cfg.IncludeLiveMeta && cfg.RPCURL == "" {
		return fmt.Errorf("include-live-meta requires an rpc url")
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	poolAddr, err := config.ParseAddress("pool", cfg.Pool.Address)
	if err != nil {
		return err
	}
	topic0, err := config.ParseTopic0(cfg.Topic0)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var client *chain.Client
	var caller dex.ContractCaller
	if cfg.RPCURL != "" {
		client, err = chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return err
		}
		defer client.Close()
		caller = client
	}

	meta, err := resolvePoolMeta(ctx, cfg.Pool, poolAddr, caller)
	if err != nil {
		return err
	}
	metaCache := dex.NewPoolMetaCache()
	metaCache.Set(poolAddr, meta)

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	decoder, err := dex.NewPoolDecoder(dex.DecoderConfig{Topic0Map: cfg.Topic0Map})
	if err != nil {
		return err
	}
	if len(topic0) == 0 {
		topic0 = decoder.Topic0s()
	}

	engine, err := replay.NewEngine(ctx, replay.EngineConfig{
		Meta:         meta,
		Store:        store,
		Logger:       logger,
		MaxSwapSteps: cfg.Pool.MaxSwapSteps,
	})
	if err != nil {
		return err
	}

	var source replay.Source
	if cfg.In != "" {
		source = &replay.FileSource{Path: cfg.In, Pool: poolAddr, ToBlock: cfg.ToBlock}
	} else {
		source = &replay.RPCSource{
			Client:       client,
			Pool:         poolAddr,
			Topic0:       topic0,
			ToBlock:      cfg.ToBlock,
			BatchSize:    cfg.BatchSize,
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
			Logger:       logger,
		}
	}

	errorsWriter, err := storage.NewJSONLWriter(cfg.Errors, cfg.CheckpointEnabled)
	if err != nil {
		return fmt.Errorf("open errors output: %w", err)
	}
	defer errorsWriter.Close()

	runCfg := replay.RunConfig{
		Pool:              poolAddr,
		FromBlock:         cfg.FromBlock,
		CheckpointEnabled: cfg.CheckpointEnabled,
		StopOnError:       cfg.StopOnError,
	}

	var aggregator *aggregate.Aggregator
	if cfg.Window > 0 {
		aggCfg := aggregate.Config{WindowSeconds: cfg.Window}
		if caller != nil {
			aggCfg.TVL = &aggregate.BalanceOfSource{Caller: caller}
		}
		aggregator, err = aggregate.NewAggregator(aggCfg, logger)
		if err != nil {
			return err
		}
		runCfg.Observer = aggregator
	}

	decodeCtx := dex.DecodeContext{
		Context:         ctx,
		Caller:          caller,
		PoolMetaCache:   metaCache,
		Logger:          logger,
		IncludeLiveMeta: cfg.IncludeLiveMeta,
	}

	logger.Info("replay started",
		zap.String("pool", poolAddr.Hex()),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Bool("file", cfg.In != ""),
		zap.String("store", cfg.Store.Backend),
	)

	runner := replay.NewRunner(runCfg, source, decoder, decodeCtx, engine, errorsWriter, logger)
	report, runErr := runner.Run(ctx)
	if err := errorsWriter.Flush(); err != nil {
		return err
	}

	if caller != nil && report.LastBlock > 0 {
		state, err := dex.FetchPoolState(ctx, caller, poolAddr, report.LastBlock)
		if err != nil {
			logger.Warn("chain state fetch failed", zap.Uint64("block", report.LastBlock), zap.Error(err))
		} else {
			report.ChainState = &state
		}
	}

	out := replayOutput{Report: report}
	if aggregator != nil {
		windows := aggregator.Flush(ctx)
		if cfg.Stats != "" {
			if err := writeStats(cfg.Stats, windows); err != nil {
				return err
			}
		} else {
			out.Windows = windows
		}
	}
	if err := printJSON(out); err != nil {
		return err
	}
	return runErr
}

// resolvePoolMeta takes the pool identity from config when complete, otherwise reads
// it from the chain.
func resolvePoolMeta(ctx context.Context, cfg config.PoolConfig, pool common.Address, caller dex.ContractCaller) (model.PoolMeta, error) {
	if cfg.Token0 != "" && cfg.Token1 != "" && cfg.Fee != 0 && cfg.TickSpacing != 0 {
		token0, err := config.ParseAddress("token0", cfg.Token0)
		if err != nil {
			return model.PoolMeta{}, err
		}
		token1, err := config.ParseAddress("token1", cfg.Token1)
		if err != nil {
			return model.PoolMeta{}, err
		}
		return model.PoolMeta{
			Address:     pool.Hex(),
			Token0:      token0.Hex(),
			Token1:      token1.Hex(),
			Fee:         cfg.Fee,
			TickSpacing: cfg.TickSpacing,
		}, nil
	}
	if caller == nil {
		return model.PoolMeta{}, fmt.Errorf("token0, token1, fee and tick-spacing are required without an rpc url")
	}
	meta, err := dex.FetchPoolMeta(ctx, caller, pool)
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("fetch pool meta: %w", err)
	}
	meta.Address = pool.Hex()
	return meta, nil
}

func writeStats(path string, windows []model.WindowStats) error {
	writer, err := storage.NewJSONLWriter(path, false)
	if err != nil {
		return fmt.Errorf("open stats output: %w", err)
	}
	defer writer.Close()
	for _, w := range windows {
		if err := writer.Write(w); err != nil {
			return err
		}
	}
	return writer.Flush()
}
