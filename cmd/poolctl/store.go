package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sugawarayuuta/sonnet"

	"liquidityCore/internal/config"
	"liquidityCore/internal/storage"
	"liquidityCore/internal/storage/postgres"
	"liquidityCore/internal/storage/sqlite"
)

func openStore(ctx context.Context, cfg config.StoreConfig) (storage.Store, error) {
	switch cfg.Backend {
	case config.StoreSQLite:
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create store dir: %w", err)
			}
		}
		store, err := sqlite.Open(ctx, cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return store, nil
	case config.StorePostgres:
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return store, nil
	default:
		return storage.NewMemoryStore(), nil
	}
}

type poolAddresses struct {
	pool   common.Address
	token0 common.Address
	token1 common.Address
	owner  common.Address
}

func parsePoolAddresses(cfg config.PoolConfig) (poolAddresses, error) {
	var out poolAddresses
	var err error
	if out.pool, err = config.ParseAddress("pool", cfg.Address); err != nil {
		return out, err
	}
	if out.token0, err = config.ParseAddress("token0", cfg.Token0); err != nil {
		return out, err
	}
	if out.token1, err = config.ParseAddress("token1", cfg.Token1); err != nil {
		return out, err
	}
	if cfg.Owner != "" {
		if out.owner, err = config.ParseAddress("owner", cfg.Owner); err != nil {
			return out, err
		}
	}
	return out, nil
}

// printJSON writes value to stdout as one line.
func printJSON(value interface{}) error {
	line, err := sonnet.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	line = append(line, '\n')
	_, err = os.Stdout.Write(line)
	return err
}
