package pool

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityCore/internal/fixedpoint"
	"liquidityCore/internal/model"
	"liquidityCore/internal/tick"
)

// Initialize sets the starting price and opens the pool for business.
func (p *Pool) Initialize(ctx context.Context, sqrtPriceX96 *uint256.Int) error {
	p.mu.Lock()
	if p.initialized() {
		p.mu.Unlock()
		return ErrAlreadyInitialized
	}
	currentTick, err := fixedpoint.TickAtSqrtRatio(sqrtPriceX96)
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("initialize price %s: %w", sqrtPriceX96.Dec(), err)
	}

	tx := &txn{op: "initialize", now: p.cfg.Clock(), prev: p.snapshot()}
	cardinality, cardinalityNext := p.oracle.Initialize(tx.now)
	p.slot0 = Slot0{
		SqrtPriceX96:               new(uint256.Int).Set(sqrtPriceX96),
		Tick:                       currentTick,
		ObservationCardinality:     cardinality,
		ObservationCardinalityNext: cardinalityNext,
	}
	p.record(tx, model.EventInitialize, model.InitializeEventData{
		SqrtPriceX96: sqrtPriceX96.Dec(),
		Tick:         currentTick,
	})
	p.logger.Info("pool initialized",
		zap.String("sqrt_price_x96", sqrtPriceX96.Dec()),
		zap.Int32("tick", currentTick),
	)
	return p.end(ctx, tx, p.persist(ctx, tx))
}

// MintParams are the arguments of Mint. Callback must pay the owed amounts into the
// pool's vaults. A nonzero ObservationCardinalityNext grows the oracle in the same call,
// as IncreaseObservationCardinalityNext would.
type MintParams struct {
	Sender                     common.Address
	Recipient                  common.Address
	TickLower                  int32
	TickUpper                  int32
	Amount                     *uint256.Int
	Callback                   MintCallback
	Data                       []byte
	ObservationCardinalityNext uint16
}

// Mint adds Amount of liquidity to the recipient's position and returns the token
// amounts the callback paid.
func (p *Pool) Mint(ctx context.Context, params MintParams) (*uint256.Int, *uint256.Int, error) {
	if params.Amount == nil || params.Amount.IsZero() {
		return nil, nil, fmt.Errorf("mint amount must be positive: %w", ErrInvalidAmount)
	}
	if params.Callback == nil {
		return nil, nil, fmt.Errorf("mint: %w", ErrMissingCallback)
	}
	delta, err := liquidityDelta(params.Amount)
	if err != nil {
		return nil, nil, err
	}

	tx, err := p.begin("mint")
	if err != nil {
		return nil, nil, err
	}
	defer p.abort(ctx, tx)
	amount0, amount1, err := p.mint(ctx, tx, params, delta)
	if err = p.end(ctx, tx, err); err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

func (p *Pool) mint(ctx context.Context, tx *txn, params MintParams, delta *big.Int) (*uint256.Int, *uint256.Int, error) {
	if err := p.checkTicks(params.TickLower, params.TickUpper); err != nil {
		return nil, nil, err
	}
	if params.ObservationCardinalityNext > 0 {
		if err := p.growOracle(ctx, tx, params.ObservationCardinalityNext); err != nil {
			return nil, nil, err
		}
	}
	signed0, signed1, err := p.modifyPosition(tx, params.Recipient, params.TickLower, params.TickUpper, delta)
	if err != nil {
		return nil, nil, err
	}
	amount0, _ := uint256.FromBig(signed0)
	amount1, _ := uint256.FromBig(signed1)

	err = p.settle("mint", amount0, amount1, func() error {
		return params.Callback(ctx, amount0, amount1, params.Data)
	})
	if err != nil {
		return nil, nil, err
	}

	p.record(tx, model.EventMint, model.MintEventData{
		Sender:    params.Sender.Hex(),
		Owner:     params.Recipient.Hex(),
		TickLower: params.TickLower,
		TickUpper: params.TickUpper,
		Amount:    params.Amount.Dec(),
		Amount0:   amount0.Dec(),
		Amount1:   amount1.Dec(),
	})
	if err := p.persist(ctx, tx); err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// Burn removes liquidity from the owner's position. The released tokens are credited to
// the position and paid out by Collect. Burning zero settles accrued fees only.
func (p *Pool) Burn(ctx context.Context, owner common.Address, tickLower, tickUpper int32, amount *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	if amount == nil {
		amount = new(uint256.Int)
	}
	delta, err := liquidityDelta(amount)
	if err != nil {
		return nil, nil, err
	}

	tx, err := p.begin("burn")
	if err != nil {
		return nil, nil, err
	}
	defer p.abort(ctx, tx)
	amount0, amount1, err := p.burn(ctx, tx, owner, tickLower, tickUpper, amount, delta.Neg(delta))
	if err = p.end(ctx, tx, err); err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

func (p *Pool) burn(
	ctx context.Context,
	tx *txn,
	owner common.Address,
	tickLower int32,
	tickUpper int32,
	amount *uint256.Int,
	delta *big.Int,
) (*uint256.Int, *uint256.Int, error) {
	if err := p.checkTicks(tickLower, tickUpper); err != nil {
		return nil, nil, err
	}
	signed0, signed1, err := p.modifyPosition(tx, owner, tickLower, tickUpper, delta)
	if err != nil {
		return nil, nil, err
	}
	amount0, _ := uint256.FromBig(new(big.Int).Neg(signed0))
	amount1, _ := uint256.FromBig(new(big.Int).Neg(signed1))

	if err := p.positions.Credit(owner, tickLower, tickUpper, amount0, amount1); err != nil {
		return nil, nil, err
	}

	p.record(tx, model.EventBurn, model.BurnEventData{
		Owner:     owner.Hex(),
		TickLower: tickLower,
		TickUpper: tickUpper,
		Amount:    amount.Dec(),
		Amount0:   amount0.Dec(),
		Amount1:   amount1.Dec(),
	})
	if err := p.persist(ctx, tx); err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// Collect pays the recipient up to the requested amounts of what the owner's position
// is owed.
func (p *Pool) Collect(
	ctx context.Context,
	owner common.Address,
	recipient common.Address,
	tickLower int32,
	tickUpper int32,
	requested0 *uint256.Int,
	requested1 *uint256.Int,
) (*uint256.Int, *uint256.Int, error) {
	if requested0 == nil {
		requested0 = new(uint256.Int)
	}
	if requested1 == nil {
		requested1 = new(uint256.Int)
	}

	tx, err := p.begin("collect")
	if err != nil {
		return nil, nil, err
	}
	defer p.abort(ctx, tx)
	amount0, amount1 := p.positions.Collect(owner, tickLower, tickUpper, requested0, requested1)
	if amount0.IsZero() && amount1.IsZero() {
		// nothing owed or nothing requested: no record, no event
		return amount0, amount1, p.end(ctx, tx, nil)
	}
	p.record(tx, model.EventCollect, model.CollectEventData{
		Owner:     owner.Hex(),
		Recipient: recipient.Hex(),
		TickLower: tickLower,
		TickUpper: tickUpper,
		Amount0:   amount0.Dec(),
		Amount1:   amount1.Dec(),
	})

	err = p.persist(ctx, tx)
	if err == nil {
		err = p.payout(recipient, amount0, amount1)
	}
	if err = p.end(ctx, tx, err); err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// modifyPosition applies delta to a position and returns the token amounts it is worth
// at the current price: positive amounts are owed to the pool, negative ones to the owner.
func (p *Pool) modifyPosition(tx *txn, owner common.Address, tickLower, tickUpper int32, delta *big.Int) (*big.Int, *big.Int, error) {
	if err := p.updatePosition(tx, owner, tickLower, tickUpper, delta); err != nil {
		return nil, nil, err
	}

	amount0, amount1 := new(big.Int), new(big.Int)
	if delta.Sign() == 0 {
		return amount0, amount1, nil
	}

	sqrtLower, err := fixedpoint.SqrtRatioAtTick(tickLower)
	if err != nil {
		return nil, nil, err
	}
	sqrtUpper, err := fixedpoint.SqrtRatioAtTick(tickUpper)
	if err != nil {
		return nil, nil, err
	}

	switch {
	case p.slot0.Tick < tickLower:
		// range is above the price: only token0
		if amount0, err = fixedpoint.Amount0DeltaSigned(sqrtLower, sqrtUpper, delta); err != nil {
			return nil, nil, err
		}
	case p.slot0.Tick < tickUpper:
		p.slot0.ObservationIndex, p.slot0.ObservationCardinality = p.oracle.Write(
			p.slot0.ObservationIndex,
			tx.now,
			p.slot0.Tick,
			p.liquidity,
			p.slot0.ObservationCardinality,
			p.slot0.ObservationCardinalityNext,
		)
		if amount0, err = fixedpoint.Amount0DeltaSigned(p.slot0.SqrtPriceX96, sqrtUpper, delta); err != nil {
			return nil, nil, err
		}
		if amount1, err = fixedpoint.Amount1DeltaSigned(sqrtLower, p.slot0.SqrtPriceX96, delta); err != nil {
			return nil, nil, err
		}
		liquidity, err := fixedpoint.AddDelta(p.liquidity, delta)
		if err != nil {
			return nil, nil, fmt.Errorf("pool liquidity: %w", err)
		}
		p.liquidity = liquidity
	default:
		// range is below the price: only token1
		if amount1, err = fixedpoint.Amount1DeltaSigned(sqrtLower, sqrtUpper, delta); err != nil {
			return nil, nil, err
		}
	}
	return amount0, amount1, nil
}

func (p *Pool) updatePosition(tx *txn, owner common.Address, tickLower, tickUpper int32, delta *big.Int) error {
	var flippedLower, flippedUpper bool
	if delta.Sign() != 0 {
		tickCumulative, secondsPerLiquidity, err := p.oracle.ObserveSingle(
			tx.now, 0, p.slot0.Tick, p.slot0.ObservationIndex, p.liquidity, p.slot0.ObservationCardinality)
		if err != nil {
			return err
		}
		params := tick.UpdateParams{
			TickCurrent:                       p.slot0.Tick,
			LiquidityDelta:                    delta,
			FeeGrowthGlobal0X128:              p.feeGrowthGlobal0X128,
			FeeGrowthGlobal1X128:              p.feeGrowthGlobal1X128,
			SecondsPerLiquidityCumulativeX128: secondsPerLiquidity,
			TickCumulative:                    tickCumulative,
			Time:                              tx.now,
			MaxLiquidity:                      p.maxLiquidityPerTick,
		}

		params.Tick = tickLower
		if flippedLower, err = p.ticks.Update(params); err != nil {
			return err
		}
		params.Tick, params.Upper = tickUpper, true
		if flippedUpper, err = p.ticks.Update(params); err != nil {
			return err
		}

		if flippedLower {
			if err := p.ticks.FlipTick(tickLower, p.cfg.TickSpacing); err != nil {
				return err
			}
		}
		if flippedUpper {
			if err := p.ticks.FlipTick(tickUpper, p.cfg.TickSpacing); err != nil {
				return err
			}
		}
	}

	inside0, inside1 := p.ticks.FeeGrowthInside(
		tickLower, tickUpper, p.slot0.Tick, p.feeGrowthGlobal0X128, p.feeGrowthGlobal1X128)
	if _, err := p.positions.Update(owner, tickLower, tickUpper, delta, inside0, inside1); err != nil {
		return err
	}

	// a tick that flipped while removing liquidity is no longer referenced
	if delta.Sign() < 0 {
		if flippedLower {
			p.ticks.Clear(tickLower)
		}
		if flippedUpper {
			p.ticks.Clear(tickUpper)
		}
	}
	return nil
}

// liquidityDelta converts an unsigned liquidity amount into a signed delta, which must
// fit an int128.
func liquidityDelta(amount *uint256.Int) (*big.Int, error) {
	delta := amount.ToBig()
	if !fixedpoint.FitsInt128(delta) {
		return nil, fmt.Errorf("liquidity amount %s exceeds int128: %w", amount.Dec(), ErrLiquidityOverflow)
	}
	return delta, nil
}
