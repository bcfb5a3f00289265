// Package config loads command settings from flags, POOLCTL_* environment variables
// and an optional config file, in that order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// PoolConfig identifies the pool a command works on.
type PoolConfig struct {
	Address      string
	Token0       string
	Token1       string
	Fee          uint32
	TickSpacing  int32
	Owner        string
	MaxSwapSteps int
}

// StoreConfig selects where pool state is persisted.
type StoreConfig struct {
	Backend string
	Path    string
	PGDSN   string
}

// newViper merges the config file, environment and flags. cfgFile may be empty, in
// which case ./config.* is read when present.
func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("POOLCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	v.SetDefault("store", StoreMemory)
	v.SetDefault("store-path", "./data/pool.db")
	v.SetDefault("max-swap-steps", 0)
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func poolConfig(v *viper.Viper) PoolConfig {
	return PoolConfig{
		Address:      v.GetString("pool"),
		Token0:       v.GetString("token0"),
		Token1:       v.GetString("token1"),
		Fee:          v.GetUint32("fee"),
		TickSpacing:  v.GetInt32("tick-spacing"),
		Owner:        v.GetString("owner"),
		MaxSwapSteps: v.GetInt("max-swap-steps"),
	}
}

func storeConfig(v *viper.Viper) (StoreConfig, error) {
	cfg := StoreConfig{
		Backend: strings.ToLower(v.GetString("store")),
		Path:    v.GetString("store-path"),
		PGDSN:   v.GetString("pg-dsn"),
	}
	switch cfg.Backend {
	case StoreMemory:
	case StoreSQLite:
		if cfg.Path == "" {
			return cfg, fmt.Errorf("store-path is required for the sqlite store")
		}
	case StorePostgres:
		if cfg.PGDSN == "" {
			return cfg, fmt.Errorf("pg-dsn is required for the postgres store")
		}
	default:
		return cfg, fmt.Errorf("unknown store %q", cfg.Backend)
	}
	return cfg, nil
}

// windowSeconds parses an aggregation window such as 5m. Empty disables statistics.
func windowSeconds(window string) (uint64, error) {
	if strings.TrimSpace(window) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(window)
	if err != nil {
		return 0, fmt.Errorf("invalid window: %w", err)
	}
	if d < time.Second {
		return 0, fmt.Errorf("window must be at least 1s")
	}
	return uint64(d / time.Second), nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	return cleanStrings(strings.Split(input, ","))
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return map[string]string{}
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case map[string]string:
		return typed
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, v := range typed {
			out[k] = fmt.Sprintf("%v", v)
		}
		return out
	case string:
		return parseStringMap(typed)
	default:
		return map[string]string{}
	}
}

func parseStringMap(input string) map[string]string {
	out := make(map[string]string)
	if strings.TrimSpace(input) == "" {
		return out
	}
	for _, pair := range strings.Split(input, ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}
