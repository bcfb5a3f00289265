package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityCore/internal/aggregate"
	"liquidityCore/internal/chain"
	"liquidityCore/internal/config"
)

func runStats(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadStats(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.In == "" {
		return fmt.Errorf("input file is required")
	}
	if cfg.Window == 0 {
		return fmt.Errorf("window is required")
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aggCfg := aggregate.Config{WindowSeconds: cfg.Window}
	if cfg.RPCURL != "" {
		client, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return err
		}
		defer client.Close()
		aggCfg.TVL = &aggregate.BalanceOfSource{Caller: client}
	}

	aggregator, err := aggregate.NewAggregator(aggCfg, logger)
	if err != nil {
		return err
	}
	if err := aggregator.Run(ctx, cfg.In); err != nil {
		return err
	}
	windows := aggregator.Flush(ctx)

	logger.Info("stats finished",
		zap.String("input", cfg.In),
		zap.Int("windows", len(windows)),
		zap.Int("failed", aggregator.Failed()),
	)

	if cfg.Out != "" {
		return writeStats(cfg.Out, windows)
	}
	for _, w := range windows {
		if err := printJSON(w); err != nil {
			return err
		}
	}
	return nil
}
