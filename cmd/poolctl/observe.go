package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"liquidityCore/internal/config"
	"liquidityCore/internal/pool"
	"liquidityCore/internal/sim"
)

type observeSnapshot struct {
	TickLower               int32  `json:"tick_lower"`
	TickUpper               int32  `json:"tick_upper"`
	TickCumulativeInside    int64  `json:"tick_cumulative_inside"`
	SecondsPerLiquidityX128 string `json:"seconds_per_liquidity_inside_x128"`
	SecondsInside           uint32 `json:"seconds_inside"`
}

type observeOutput struct {
	Pool                     string           `json:"pool"`
	Time                     uint32           `json:"time"`
	SqrtPriceX96             string           `json:"sqrt_price_x96"`
	Tick                     int32            `json:"tick"`
	Liquidity                string           `json:"liquidity"`
	ObservationIndex         uint16           `json:"observation_index"`
	ObservationCardinality   uint16           `json:"observation_cardinality"`
	SecondsAgos              []uint32         `json:"seconds_agos"`
	TickCumulatives          []int64          `json:"tick_cumulatives"`
	SecondsPerLiquidityX128s []string         `json:"seconds_per_liquidity_cumulative_x128s"`
	Snapshot                 *observeSnapshot `json:"snapshot,omitempty"`
}

func runObserve(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadObserve(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.Store.Backend == config.StoreMemory {
		return fmt.Errorf("observe needs a persistent store (sqlite or postgres)")
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

	runner, err := sim.New(ctx, sim.Options{
		Pool: pool.Config{
			Address:     addrs.pool,
			Token0:      addrs.token0,
			Token1:      addrs.token1,
			Fee:         cfg.Pool.Fee,
			TickSpacing: cfg.Pool.TickSpacing,
			Owner:       addrs.owner,
			Store:       store,
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}
	p := runner.Pool()
	if !p.Initialized() {
		return fmt.Errorf("pool %s is not initialized in the store", addrs.pool.Hex())
	}

	slot0 := p.Slot0()
	switch {
	case cfg.Time != 0:
		runner.Clock().Set(uint32(cfg.Time))
	case runner.Clock().Now() == 0:
		runner.Clock().Set(p.Observation(slot0.ObservationIndex).BlockTimestamp)
	}

	tickCumulatives, spls, err := p.Observe(cfg.SecondsAgos)
	if err != nil {
		return err
	}

	out := observeOutput{
		Pool:                     addrs.pool.Hex(),
		Time:                     runner.Clock().Now(),
		SqrtPriceX96:             slot0.SqrtPriceX96.Dec(),
		Tick:                     slot0.Tick,
		Liquidity:                p.Liquidity().Dec(),
		ObservationIndex:         slot0.ObservationIndex,
		ObservationCardinality:   slot0.ObservationCardinality,
		SecondsAgos:              cfg.SecondsAgos,
		TickCumulatives:          tickCumulatives,
		SecondsPerLiquidityX128s: make([]string, len(spls)),
	}
	for i, spl := range spls {
		out.SecondsPerLiquidityX128s[i] = spl.Dec()
	}

	if cfg.TickLower != nil && cfg.TickUpper != nil {
		inside, err := p.SnapshotCumulativesInside(*cfg.TickLower, *cfg.TickUpper)
		if err != nil {
			return err
		}
		out.Snapshot = &observeSnapshot{
			TickLower:               *cfg.TickLower,
			TickUpper:               *cfg.TickUpper,
			TickCumulativeInside:    inside.TickCumulative,
			SecondsPerLiquidityX128: inside.SecondsPerLiquidityX128.Dec(),
			SecondsInside:           inside.Seconds,
		}
	}
	return printJSON(out)
}
