package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "poolctl",
		Short:        "Concentrated-liquidity pool engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run an operations script against a pool",
		RunE:  runSimulate,
	}

	addPoolFlags(simulateCmd)
	addStoreFlags(simulateCmd)
	simulateCmd.Flags().String("ops", "", "operations JSONL")
	simulateCmd.Flags().String("events", "./data/events.jsonl", "output engine events JSONL")
	simulateCmd.Flags().String("logs", "", "optional output of events encoded as raw pool logs JSONL")
	simulateCmd.Flags().String("failures", "./data/sim_failures.jsonl", "failed operations JSONL")
	simulateCmd.Flags().Uint64("chain-id", 31337, "chain id stamped on encoded logs")
	simulateCmd.Flags().String("start-time", "", "initial clock (unix seconds or RFC3339)")
	simulateCmd.Flags().String("window", "1h", "statistics window (e.g. 5m, 1h), empty disables")
	simulateCmd.Flags().Bool("stop-on-error", false, "stop at the first unexpected result")
	simulateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(simulateCmd)

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay on-chain pool logs through the engine and report divergences",
		RunE:  runReplay,
	}

	addPoolFlags(replayCmd)
	addStoreFlags(replayCmd)
	replayCmd.Flags().String("rpc", "", "RPC URL")
	replayCmd.Flags().String("in", "", "raw logs JSONL (instead of fetching over RPC)")
	replayCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	replayCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	replayCmd.Flags().Uint64("batch-size", 2000, "blocks per eth_getLogs batch")
	replayCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	replayCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	replayCmd.Flags().Bool("checkpoint-enabled", true, "resume from the checkpoint kept in the store")
	replayCmd.Flags().String("errors", "./data/replay_errors.jsonl", "decode, apply and divergence errors JSONL")
	replayCmd.Flags().StringSlice("topic0", nil, "topic0 filter (comma-separated), defaults to every pool event")
	replayCmd.Flags().String("topic0-map", "", "extra topic0->event mappings (comma-separated key=value)")
	replayCmd.Flags().Bool("include-live-meta", false, "attach slot0/liquidity read at each log's block (requires archive RPC)")
	replayCmd.Flags().Bool("stop-on-error", false, "stop at the first decode or apply error")
	replayCmd.Flags().String("window", "", "statistics window (e.g. 5m, 1h), empty disables")
	replayCmd.Flags().String("stats", "", "optional window statistics JSONL output")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(replayCmd)

	observeCmd := &cobra.Command{
		Use:   "observe",
		Short: "Query the oracle of a persisted pool",
		RunE:  runObserve,
	}

	addPoolFlags(observeCmd)
	addStoreFlags(observeCmd)
	observeCmd.Flags().StringSlice("seconds-ago", []string{"0"}, "lookbacks in seconds or durations (comma-separated)")
	observeCmd.Flags().String("time", "", "current time (unix seconds or RFC3339), defaults to the pool's last observation")
	observeCmd.Flags().Int32("tick-lower", 0, "lower tick for a cumulatives-inside snapshot")
	observeCmd.Flags().Int32("tick-upper", 0, "upper tick for a cumulatives-inside snapshot")
	observeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(observeCmd)

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Aggregate a typed events JSONL into window statistics",
		RunE:  runStats,
	}

	statsCmd.Flags().String("rpc", "", "optional RPC URL for balanceOf TVL")
	statsCmd.Flags().String("in", "", "input typed events JSONL")
	statsCmd.Flags().String("out", "", "output window statistics JSONL, stdout when empty")
	statsCmd.Flags().String("window", "5m", "aggregation window (e.g. 1m, 5m, 1h)")
	statsCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(statsCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addPoolFlags(cmd *cobra.Command) {
	cmd.Flags().String("pool", "", "pool address")
	cmd.Flags().String("token0", "", "token0 address")
	cmd.Flags().String("token1", "", "token1 address")
	cmd.Flags().Uint32("fee", 0, "fee in hundredths of a bip")
	cmd.Flags().Int32("tick-spacing", 0, "tick spacing")
	cmd.Flags().String("owner", "", "address allowed to set and collect protocol fees")
	cmd.Flags().Int("max-swap-steps", 0, "cap on swap steps, 0 means unlimited")
}

func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("store", "memory", "state store (memory, sqlite, postgres)")
	cmd.Flags().String("store-path", "./data/pool.db", "sqlite database path")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
