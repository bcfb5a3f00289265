package config

import (
	"github.com/spf13/pflag"
)

// StatsConfig holds configuration for the stats command.
type StatsConfig struct {
	RPCURL   string
	In       string
	Out      string
	Window   uint64
	LogLevel string
}

// LoadStats merges config file, environment variables, and flags into StatsConfig.
func LoadStats(cfgFile string, flags *pflag.FlagSet) (StatsConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"window": "5m",
	})
	if err != nil {
		return StatsConfig{}, err
	}

	window, err := windowSeconds(v.GetString("window"))
	if err != nil {
		return StatsConfig{}, err
	}
	return StatsConfig{
		RPCURL:   v.GetString("rpc"),
		In:       v.GetString("in"),
		Out:      v.GetString("out"),
		Window:   window,
		LogLevel: v.GetString("log-level"),
	}, nil
}
