package pool

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityCore/internal/model"
)

// header is the pre-image of the pool's scalar state taken when a call begins.
type header struct {
	slot0                Slot0
	liquidity            *uint256.Int
	feeGrowthGlobal0X128 *uint256.Int
	feeGrowthGlobal1X128 *uint256.Int
	protocolFees         ProtocolFees
	seq                  uint64
}

type txn struct {
	op        string
	now       uint32
	prev      header
	persisted bool
	closed    bool
	events    []model.TypedEvent
}

func (p *Pool) snapshot() header {
	return header{
		slot0:                p.slot0.clone(),
		liquidity:            new(uint256.Int).Set(p.liquidity),
		feeGrowthGlobal0X128: new(uint256.Int).Set(p.feeGrowthGlobal0X128),
		feeGrowthGlobal1X128: new(uint256.Int).Set(p.feeGrowthGlobal1X128),
		protocolFees:         p.protocolFees.clone(),
		seq:                  p.seq,
	}
}

func (p *Pool) restore(h header) {
	p.slot0 = h.slot0
	p.liquidity = h.liquidity
	p.feeGrowthGlobal0X128 = h.feeGrowthGlobal0X128
	p.feeGrowthGlobal1X128 = h.feeGrowthGlobal1X128
	p.protocolFees = h.protocolFees
	p.seq = h.seq
}

// begin takes the state lock and marks the pool as locked. On success the caller
// owns p.mu until end.
func (p *Pool) begin(op string) (*txn, error) {
	p.mu.Lock()
	if !p.initialized() {
		p.mu.Unlock()
		return nil, ErrNotInitialized
	}
	if !p.slot0.Unlocked {
		p.mu.Unlock()
		return nil, ErrLocked
	}
	tx := &txn{op: op, now: p.cfg.Clock(), prev: p.snapshot()}
	p.slot0.Unlocked = false
	return tx, nil
}

// end commits the call when err is nil and rolls it back otherwise. It releases p.mu
// and delivers the call's events once the state is final.
func (p *Pool) end(ctx context.Context, tx *txn, err error) error {
	tx.closed = true
	if err != nil {
		p.rollback(ctx, tx)
		p.mu.Unlock()
		p.logger.Debug("pool call reverted", zap.String("op", tx.op), zap.Error(err))
		return err
	}

	p.ticks.Reset()
	p.positions.Reset()
	p.oracle.Reset()
	p.slot0.Unlocked = true
	events := tx.events
	p.mu.Unlock()

	p.logger.Debug("pool call committed", zap.String("op", tx.op), zap.Int("events", len(events)))
	p.emit(events)
	return nil
}

// abort is deferred by every call that opens a txn. When a collaborator panics before
// end runs, it rolls the call back and releases the pool, then lets the panic go on.
func (p *Pool) abort(ctx context.Context, tx *txn) {
	if tx == nil || tx.closed {
		return
	}
	if r := recover(); r != nil {
		tx.closed = true
		p.rollback(ctx, tx)
		p.mu.Unlock()
		p.logger.Error("pool call panicked", zap.String("op", tx.op), zap.Any("panic", r))
		panic(r)
	}
}

func (p *Pool) rollback(ctx context.Context, tx *txn) {
	p.ticks.Revert()
	p.positions.Revert()
	p.oracle.Revert()
	p.restore(tx.prev)

	if tx.persisted {
		// the journals still list every touched key, now holding the restored values
		if err := p.flush(ctx); err != nil {
			p.logger.Error("restore pool records after failed call",
				zap.String("op", tx.op), zap.Error(err))
		}
	}

	p.ticks.Reset()
	p.positions.Reset()
	p.oracle.Reset()
}

// persist writes the staged state. A failure here leaves the store untouched.
func (p *Pool) persist(ctx context.Context, tx *txn) error {
	if err := p.flush(ctx); err != nil {
		return err
	}
	tx.persisted = true
	return nil
}

// settle runs the pay-then-verify sequence shared by mint and swap: the callback must
// raise the vault balances by at least the owed amounts.
func (p *Pool) settle(op string, owed0, owed1 *uint256.Int, pay func() error) error {
	return p.outside(func() error {
		var before0, before1 *uint256.Int
		var err error
		if !owed0.IsZero() {
			if before0, err = p.cfg.Vault0.Balance(); err != nil {
				return fmt.Errorf("%w: read token0 balance: %w", ErrInsufficientInput, err)
			}
		}
		if !owed1.IsZero() {
			if before1, err = p.cfg.Vault1.Balance(); err != nil {
				return fmt.Errorf("%w: read token1 balance: %w", ErrInsufficientInput, err)
			}
		}

		if err := pay(); err != nil {
			return fmt.Errorf("%s callback: %w", op, err)
		}

		if before0 != nil {
			if err := checkPaid("token0", p.cfg.Vault0, before0, owed0); err != nil {
				return err
			}
		}
		if before1 != nil {
			if err := checkPaid("token1", p.cfg.Vault1, before1, owed1); err != nil {
				return err
			}
		}
		return nil
	})
}

func checkPaid(name string, vault Token, before, owed *uint256.Int) error {
	after, err := vault.Balance()
	if err != nil {
		return fmt.Errorf("%w: read %s balance: %w", ErrInsufficientInput, name, err)
	}
	want, overflow := new(uint256.Int).AddOverflow(before, owed)
	if overflow || after.Lt(want) {
		return fmt.Errorf("%s balance %s, want at least %s: %w", name, after.Dec(), want.Dec(), ErrInsufficientInput)
	}
	return nil
}

// payout transfers what the pool owes after its state is persisted. Transfers are
// skipped for zero amounts.
func (p *Pool) payout(recipient common.Address, amount0, amount1 *uint256.Int) error {
	return p.outside(func() error {
		if !amount0.IsZero() {
			if err := p.cfg.Vault0.Transfer(recipient, amount0); err != nil {
				return fmt.Errorf("transfer token0: %w", err)
			}
		}
		if !amount1.IsZero() {
			if err := p.cfg.Vault1.Transfer(recipient, amount1); err != nil {
				return fmt.Errorf("transfer token1: %w", err)
			}
		}
		return nil
	})
}
