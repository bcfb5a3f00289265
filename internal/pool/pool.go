// Package pool is a concentrated-liquidity pool: positions over tick ranges, swaps that
// walk initialized ticks, per-range fee accounting and a price/liquidity oracle.
//
// Every mutating operation runs to completion or leaves the pool exactly as it was,
// including what was already written to the store.
package pool

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityCore/internal/fixedpoint"
	"liquidityCore/internal/model"
	"liquidityCore/internal/oracle"
	"liquidityCore/internal/position"
	"liquidityCore/internal/storage"
	"liquidityCore/internal/tick"
)

// Slot0 is the pool's frequently read state.
type Slot0 struct {
	SqrtPriceX96               *uint256.Int
	Tick                       int32
	ObservationIndex           uint16
	ObservationCardinality     uint16
	ObservationCardinalityNext uint16
	// FeeProtocol packs the token0 denominator in the low nibble and token1 in the high one.
	FeeProtocol uint8
	Unlocked    bool
}

func (s Slot0) clone() Slot0 {
	out := s
	out.SqrtPriceX96 = new(uint256.Int).Set(s.SqrtPriceX96)
	return out
}

// ProtocolFees are the balances owed to the pool owner.
type ProtocolFees struct {
	Token0 *uint256.Int
	Token1 *uint256.Int
}

func (f ProtocolFees) clone() ProtocolFees {
	return ProtocolFees{
		Token0: new(uint256.Int).Set(f.Token0),
		Token1: new(uint256.Int).Set(f.Token1),
	}
}

// Pool is one pool instance. It is safe for use from multiple goroutines; a mutating
// call made while another is in progress fails with ErrLocked.
type Pool struct {
	cfg                 Config
	ns                  storage.Namespace
	logger              *zap.Logger
	maxLiquidityPerTick *uint256.Int

	mu                   sync.RWMutex
	slot0                Slot0
	liquidity            *uint256.Int
	feeGrowthGlobal0X128 *uint256.Int
	feeGrowthGlobal1X128 *uint256.Int
	protocolFees         ProtocolFees
	seq                  uint64

	ticks     *tick.Registry
	positions *position.Ledger
	oracle    *oracle.Oracle
}

// New returns an uninitialized pool. Use Load to resume one from its store.
func New(cfg Config) (*Pool, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("pool config: %w", err)
	}
	return &Pool{
		cfg:                  cfg,
		ns:                   storage.PoolID(cfg.Token0, cfg.Token1, cfg.Fee, cfg.TickSpacing),
		logger:               cfg.Logger.With(zap.String("pool", cfg.Address.Hex())),
		maxLiquidityPerTick:  tick.MaxLiquidityPerTick(cfg.TickSpacing),
		slot0:                Slot0{SqrtPriceX96: new(uint256.Int)},
		liquidity:            new(uint256.Int),
		feeGrowthGlobal0X128: new(uint256.Int),
		feeGrowthGlobal1X128: new(uint256.Int),
		protocolFees:         ProtocolFees{Token0: new(uint256.Int), Token1: new(uint256.Int)},
		ticks:                tick.NewRegistry(),
		positions:            position.NewLedger(),
		oracle:               oracle.New(),
	}, nil
}

func (p *Pool) Address() common.Address {
	return p.cfg.Address
}

func (p *Pool) Fee() uint32 {
	return p.cfg.Fee
}

func (p *Pool) TickSpacing() int32 {
	return p.cfg.TickSpacing
}

// Namespace is the store prefix of this pool's records.
func (p *Pool) Namespace() storage.Namespace {
	return p.ns
}

// Store is where the pool persists, possibly nil.
func (p *Pool) Store() storage.Store {
	return p.cfg.Store
}

func (p *Pool) MaxLiquidityPerTick() *uint256.Int {
	return new(uint256.Int).Set(p.maxLiquidityPerTick)
}

func (p *Pool) Slot0() Slot0 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.slot0.clone()
}

// Liquidity is the in-range liquidity.
func (p *Pool) Liquidity() *uint256.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return new(uint256.Int).Set(p.liquidity)
}

func (p *Pool) FeeGrowthGlobal() (*uint256.Int, *uint256.Int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return new(uint256.Int).Set(p.feeGrowthGlobal0X128), new(uint256.Int).Set(p.feeGrowthGlobal1X128)
}

func (p *Pool) ProtocolFees() ProtocolFees {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.protocolFees.clone()
}

func (p *Pool) Tick(t int32) tick.Info {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ticks.Get(t)
}

// Ticks lists the initialized ticks in ascending order.
func (p *Pool) Ticks() []int32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ticks.Ticks()
}

func (p *Pool) TickBitmap(wordPos int16) tick.Word {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ticks.Word(wordPos)
}

func (p *Pool) Position(owner common.Address, tickLower, tickUpper int32) position.Info {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.positions.Get(owner, tickLower, tickUpper)
}

func (p *Pool) Positions() []position.Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.positions.Entries()
}

func (p *Pool) Observation(index uint16) oracle.Observation {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.oracle.At(index)
}

// Meta describes the pool and its current state the way events carry it.
func (p *Pool) Meta() model.PoolMeta {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.meta()
}

func (p *Pool) meta() model.PoolMeta {
	return model.PoolMeta{
		Address:     p.cfg.Address.Hex(),
		Token0:      p.cfg.Token0.Hex(),
		Token1:      p.cfg.Token1.Hex(),
		Fee:         p.cfg.Fee,
		TickSpacing: p.cfg.TickSpacing,
		Liquidity:   p.liquidity.Dec(),
		Slot0: &model.PoolSlot0{
			SqrtPriceX96:               p.slot0.SqrtPriceX96.Dec(),
			Tick:                       p.slot0.Tick,
			ObservationIndex:           p.slot0.ObservationIndex,
			ObservationCardinality:     p.slot0.ObservationCardinality,
			ObservationCardinalityNext: p.slot0.ObservationCardinalityNext,
			FeeProtocol:                p.slot0.FeeProtocol,
			Unlocked:                   p.slot0.Unlocked,
		},
	}
}

// Initialized reports whether Initialize has run.
func (p *Pool) Initialized() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.initialized()
}

func (p *Pool) initialized() bool {
	return !p.slot0.SqrtPriceX96.IsZero()
}

func (p *Pool) checkTicks(tickLower, tickUpper int32) error {
	if tickLower >= tickUpper {
		return fmt.Errorf("lower %d >= upper %d: %w", tickLower, tickUpper, ErrInvalidRange)
	}
	if tickLower < fixedpoint.MinTick || tickUpper > fixedpoint.MaxTick {
		return fmt.Errorf("range [%d, %d] outside tick bounds: %w", tickLower, tickUpper, ErrInvalidRange)
	}
	if tickLower%p.cfg.TickSpacing != 0 || tickUpper%p.cfg.TickSpacing != 0 {
		return fmt.Errorf("range [%d, %d] not on spacing %d: %w", tickLower, tickUpper, p.cfg.TickSpacing, ErrInvalidRange)
	}
	return nil
}

// outside runs fn with the state lock released so that callbacks and token
// collaborators may call back into the pool. Re-entrant mutations still fail because
// the pool stays marked as locked.
func (p *Pool) outside(fn func() error) error {
	p.mu.Unlock()
	defer p.mu.Lock()
	return fn()
}
