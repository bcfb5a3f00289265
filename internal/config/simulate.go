package config

import (
	"github.com/spf13/pflag"
)

// SimulateConfig holds configuration for the simulate command.
type SimulateConfig struct {
	Pool        PoolConfig
	Store       StoreConfig
	Ops         string
	Events      string
	Logs        string
	Failures    string
	ChainID     uint64
	StartTime   uint64
	Window      uint64
	StopOnError bool
	LogLevel    string
}

// LoadSimulate merges config file, environment variables, and flags into SimulateConfig.
func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"events":   "./data/events.jsonl",
		"failures": "./data/sim_failures.jsonl",
		"chain-id": uint64(31337),
		"window":   "1h",
	})
	if err != nil {
		return SimulateConfig{}, err
	}

	store, err := storeConfig(v)
	if err != nil {
		return SimulateConfig{}, err
	}
	start, err := ParseTimestamp(v.GetString("start-time"))
	if err != nil {
		return SimulateConfig{}, err
	}
	window, err := windowSeconds(v.GetString("window"))
	if err != nil {
		return SimulateConfig{}, err
	}

	return SimulateConfig{
		Pool:        poolConfig(v),
		Store:       store,
		Ops:         v.GetString("ops"),
		Events:      v.GetString("events"),
		Logs:        v.GetString("logs"),
		Failures:    v.GetString("failures"),
		ChainID:     v.GetUint64("chain-id"),
		StartTime:   start,
		Window:      window,
		StopOnError: v.GetBool("stop-on-error"),
		LogLevel:    v.GetString("log-level"),
	}, nil
}
