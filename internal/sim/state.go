package sim

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/sugawarayuuta/sonnet"

	"liquidityCore/internal/storage"
	"liquidityCore/internal/token"
)

var stateID = []byte("sim-state")

// snapshot is what the store needs beyond the pool itself to resume a simulation: the
// clock and every token balance, the pool's own vaults included.
type snapshot struct {
	Time      uint32            `json:"time"`
	Balances0 map[string]string `json:"balances0"`
	Balances1 map[string]string `json:"balances1"`
}

func (r *Runner) stateKey() []byte {
	return r.pool.Namespace().Key(storage.KindMeta, stateID)
}

func (r *Runner) loadState(ctx context.Context) (bool, error) {
	store := r.pool.Store()
	if store == nil {
		return false, nil
	}
	data, err := store.Get(ctx, r.stateKey())
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read sim state: %w", err)
	}

	var snap snapshot
	if err := sonnet.Unmarshal(data, &snap); err != nil {
		return false, fmt.Errorf("parse sim state: %w", err)
	}
	if err := restoreBalances(r.token0, snap.Balances0); err != nil {
		return false, err
	}
	if err := restoreBalances(r.token1, snap.Balances1); err != nil {
		return false, err
	}
	r.clock.Set(snap.Time)
	return true, nil
}

func (r *Runner) saveState(ctx context.Context) error {
	store := r.pool.Store()
	if store == nil {
		return nil
	}
	data, err := sonnet.Marshal(snapshot{
		Time:      r.clock.Now(),
		Balances0: balances(r.token0),
		Balances1: balances(r.token1),
	})
	if err != nil {
		return fmt.Errorf("marshal sim state: %w", err)
	}
	var batch storage.Batch
	batch.Put(r.stateKey(), data)
	if err := store.Apply(ctx, &batch); err != nil {
		return fmt.Errorf("save sim state: %w", err)
	}
	return nil
}

func balances(ledger *token.Ledger) map[string]string {
	out := make(map[string]string)
	for _, holder := range ledger.Holders() {
		out[holder.Hex()] = ledger.BalanceOf(holder).Dec()
	}
	return out
}

func restoreBalances(ledger *token.Ledger, saved map[string]string) error {
	for holder, dec := range saved {
		if !common.IsHexAddress(holder) {
			return fmt.Errorf("sim state holder %q: %w", holder, ErrBadOperation)
		}
		amount, err := uint256.FromDecimal(dec)
		if err != nil {
			return fmt.Errorf("sim state balance of %s: %w", holder, err)
		}
		if err := ledger.Mint(common.HexToAddress(holder), amount); err != nil {
			return err
		}
	}
	return nil
}
