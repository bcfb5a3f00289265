package config

import (
	"github.com/spf13/pflag"
)

// ObserveConfig holds configuration for the observe command.
type ObserveConfig struct {
	Pool        PoolConfig
	Store       StoreConfig
	SecondsAgos []uint32
	// Time is the timestamp the lookbacks count back from. Zero uses the time the
	// last simulation left behind.
	Time      uint64
	TickLower *int32
	TickUpper *int32
	LogLevel  string
}

// LoadObserve merges config file, environment variables, and flags into ObserveConfig.
func LoadObserve(cfgFile string, flags *pflag.FlagSet) (ObserveConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"seconds-ago": "0",
	})
	if err != nil {
		return ObserveConfig{}, err
	}

	store, err := storeConfig(v)
	if err != nil {
		return ObserveConfig{}, err
	}
	secondsAgos, err := ParseSecondsAgos(getStringSlice(v, "seconds-ago"))
	if err != nil {
		return ObserveConfig{}, err
	}
	ts, err := ParseTimestamp(v.GetString("time"))
	if err != nil {
		return ObserveConfig{}, err
	}

	cfg := ObserveConfig{
		Pool:        poolConfig(v),
		Store:       store,
		SecondsAgos: secondsAgos,
		Time:        ts,
		LogLevel:    v.GetString("log-level"),
	}
	if v.IsSet("tick-lower") && v.IsSet("tick-upper") {
		lower, upper := v.GetInt32("tick-lower"), v.GetInt32("tick-upper")
		cfg.TickLower, cfg.TickUpper = &lower, &upper
	}
	return cfg, nil
}
