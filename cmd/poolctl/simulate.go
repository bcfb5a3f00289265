package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityCore/internal/aggregate"
	"liquidityCore/internal/config"
	"liquidityCore/internal/dex"
	"liquidityCore/internal/model"
	"liquidityCore/internal/pool"
	"liquidityCore/internal/sim"
	"liquidityCore/internal/storage"
	"liquidityCore/internal/token"
)

type simulateOutput struct {
	Report  sim.Report          `json:"report"`
	Windows []model.WindowStats `json:"windows,omitempty"`
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.Ops == "" {
		return fmt.Errorf("ops file is required")
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	addrs, err := parsePoolAddresses(cfg.Pool)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	// A persistent store resumes the pool, so its event history is appended to.
	appendMode := cfg.Store.Backend != config.StoreMemory
	eventsWriter, err := storage.NewJSONLWriter(cfg.Events, appendMode)
	if err != nil {
		return fmt.Errorf("open events output: %w", err)
	}
	defer eventsWriter.Close()
	sinks := storage.Sinks{eventsWriter}

	if cfg.Logs != "" {
		encoder, err := dex.NewEncoder(cfg.ChainID)
		if err != nil {
			return err
		}
		logsWriter, err := storage.NewJSONLWriter(cfg.Logs, appendMode)
		if err != nil {
			return fmt.Errorf("open logs output: %w", err)
		}
		defer logsWriter.Close()
		sinks = append(sinks, &dex.LogSink{Encoder: encoder, Out: logsWriter})
	}

	tvl := &ledgerTVL{}
	var aggregator *aggregate.Aggregator
	if cfg.Window > 0 {
		aggregator, err = aggregate.NewAggregator(aggregate.Config{WindowSeconds: cfg.Window, TVL: tvl}, logger)
		if err != nil {
			return err
		}
		sinks = append(sinks, aggregator)
	}

	failures, err := storage.NewJSONLWriter(cfg.Failures, false)
	if err != nil {
		return fmt.Errorf("open failures output: %w", err)
	}
	defer failures.Close()

	runner, err := sim.New(ctx, sim.Options{
		Pool: pool.Config{
			Address:      addrs.pool,
			Token0:       addrs.token0,
			Token1:       addrs.token1,
			Fee:          cfg.Pool.Fee,
			TickSpacing:  cfg.Pool.TickSpacing,
			Owner:        addrs.owner,
			Store:        store,
			Events:       sinks,
			MaxSwapSteps: cfg.Pool.MaxSwapSteps,
		},
		StartTime:   uint32(cfg.StartTime),
		StopOnError: cfg.StopOnError,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	tvl.token0, tvl.token1 = runner.Token0(), runner.Token1()

	ops, err := os.Open(cfg.Ops)
	if err != nil {
		return fmt.Errorf("open ops: %w", err)
	}
	defer ops.Close()

	logger.Info("simulation started",
		zap.String("pool", addrs.pool.Hex()),
		zap.String("store", cfg.Store.Backend),
		zap.String("ops", cfg.Ops),
	)

	report, runErr := runner.Run(ctx, ops, failures)

	for _, w := range []*storage.JSONLWriter{eventsWriter, failures} {
		if err := w.Flush(); err != nil {
			return err
		}
	}

	out := simulateOutput{Report: report}
	if aggregator != nil {
		out.Windows = aggregator.Flush(ctx)
	}
	if err := printJSON(out); err != nil {
		return err
	}

	logger.Info("simulation finished",
		zap.Int("ops", report.Ops),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("expected_errors", report.ExpectedErrors),
		zap.Int("failed", report.Failed),
	)
	return runErr
}

// ledgerTVL reads window TVL straight from the simulated token ledgers.
type ledgerTVL struct {
	token0 *token.Ledger
	token1 *token.Ledger
}

func (l *ledgerTVL) Balances(_ context.Context, meta model.PoolMeta, _ uint64) (*big.Int, *big.Int, string, error) {
	if l.token0 == nil || l.token1 == nil {
		return nil, nil, aggregate.TVLMethodNone, fmt.Errorf("ledgers not ready")
	}
	holder := common.HexToAddress(meta.Address)
	return l.token0.BalanceOf(holder).ToBig(), l.token1.BalanceOf(holder).ToBig(), aggregate.TVLMethodLedger, nil
}
