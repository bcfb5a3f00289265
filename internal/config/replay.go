package config

import (
	"time"

	"github.com/spf13/pflag"
)

// ReplayConfig holds configuration for the replay command. Logs come from In when set,
// otherwise from the RPC node.
type ReplayConfig struct {
	Pool              PoolConfig
	Store             StoreConfig
	RPCURL            string
	In                string
	FromBlock         uint64
	ToBlock           uint64
	BatchSize         uint64
	MaxRetries        int
	RetryBackoff      time.Duration
	CheckpointEnabled bool
	Errors            string
	Topic0            []string
	Topic0Map         map[string]string
	IncludeLiveMeta   bool
	StopOnError       bool
	Window            uint64
	Stats             string
	LogLevel          string
}

// LoadReplay merges config file, environment variables, and flags into ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"batch-size":         uint64(2000),
		"max-retries":        5,
		"retry-backoff":      500 * time.Millisecond,
		"checkpoint-enabled": true,
		"errors":             "./data/replay_errors.jsonl",
	})
	if err != nil {
		return ReplayConfig{}, err
	}

	store, err := storeConfig(v)
	if err != nil {
		return ReplayConfig{}, err
	}
	window, err := windowSeconds(v.GetString("window"))
	if err != nil {
		return ReplayConfig{}, err
	}

	return ReplayConfig{
		Pool:              poolConfig(v),
		Store:             store,
		RPCURL:            v.GetString("rpc"),
		In:                v.GetString("in"),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		BatchSize:         v.GetUint64("batch-size"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		Errors:            v.GetString("errors"),
		Topic0:            getStringSlice(v, "topic0"),
		Topic0Map:         getStringMap(v, "topic0-map"),
		IncludeLiveMeta:   v.GetBool("include-live-meta"),
		StopOnError:       v.GetBool("stop-on-error"),
		Window:            window,
		Stats:             v.GetString("stats"),
		LogLevel:          v.GetString("log-level"),
	}, nil
}
