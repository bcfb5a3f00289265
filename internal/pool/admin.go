package pool

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityCore/internal/model"
)

func validFeeProtocol(v uint8) bool {
	return v == 0 || (v >= 4 && v <= 10)
}

// SetFeeProtocol sets the share of swap fees kept for the owner as 1/feeProtocol of the
// fee, per input token. Zero turns the protocol fee off.
func (p *Pool) SetFeeProtocol(ctx context.Context, caller common.Address, feeProtocol0, feeProtocol1 uint8) error {
	tx, err := p.begin("set_fee_protocol")
	if err != nil {
		return err
	}
	defer p.abort(ctx, tx)
	return p.end(ctx, tx, p.setFeeProtocol(ctx, tx, caller, feeProtocol0, feeProtocol1))
}

func (p *Pool) setFeeProtocol(ctx context.Context, tx *txn, caller common.Address, feeProtocol0, feeProtocol1 uint8) error {
	if caller != p.cfg.Owner {
		return fmt.Errorf("set fee protocol from %s: %w", caller.Hex(), ErrUnauthorized)
	}
	if !validFeeProtocol(feeProtocol0) || !validFeeProtocol(feeProtocol1) {
		return fmt.Errorf("fee protocol %d/%d: %w", feeProtocol0, feeProtocol1, ErrInvalidFeeProtocol)
	}

	old := p.slot0.FeeProtocol
	p.slot0.FeeProtocol = feeProtocol0 + feeProtocol1<<4
	p.record(tx, model.EventSetFeeProtocol, model.SetFeeProtocolEventData{
		FeeProtocol0Old: old % 16,
		FeeProtocol1Old: old >> 4,
		FeeProtocol0New: feeProtocol0,
		FeeProtocol1New: feeProtocol1,
	})
	return p.persist(ctx, tx)
}

// CollectProtocol pays the owner's accumulated protocol fees, up to the requested
// amounts, to recipient.
func (p *Pool) CollectProtocol(
	ctx context.Context,
	caller common.Address,
	recipient common.Address,
	requested0 *uint256.Int,
	requested1 *uint256.Int,
) (*uint256.Int, *uint256.Int, error) {
	if requested0 == nil {
		requested0 = new(uint256.Int)
	}
	if requested1 == nil {
		requested1 = new(uint256.Int)
	}

	tx, err := p.begin("collect_protocol")
	if err != nil {
		return nil, nil, err
	}
	defer p.abort(ctx, tx)
	amount0, amount1, err := p.collectProtocol(ctx, tx, caller, recipient, requested0, requested1)
	if err = p.end(ctx, tx, err); err != nil {
		return nil, nil, err
	}
	p.logger.Info("protocol fees collected",
		zap.String("recipient", recipient.Hex()),
		zap.String("amount0", amount0.Dec()),
		zap.String("amount1", amount1.Dec()),
	)
	return amount0, amount1, nil
}

func (p *Pool) collectProtocol(
	ctx context.Context,
	tx *txn,
	caller common.Address,
	recipient common.Address,
	requested0 *uint256.Int,
	requested1 *uint256.Int,
) (*uint256.Int, *uint256.Int, error) {
	if caller != p.cfg.Owner {
		return nil, nil, fmt.Errorf("collect protocol from %s: %w", caller.Hex(), ErrUnauthorized)
	}

	amount0 := minUint(requested0, p.protocolFees.Token0)
	amount1 := minUint(requested1, p.protocolFees.Token1)
	p.protocolFees = ProtocolFees{
		Token0: new(uint256.Int).Sub(p.protocolFees.Token0, amount0),
		Token1: new(uint256.Int).Sub(p.protocolFees.Token1, amount1),
	}

	p.record(tx, model.EventCollectProtocol, model.CollectProtocolEventData{
		Sender:    caller.Hex(),
		Recipient: recipient.Hex(),
		Amount0:   amount0.Dec(),
		Amount1:   amount1.Dec(),
	})
	if err := p.persist(ctx, tx); err != nil {
		return nil, nil, err
	}
	if err := p.payout(recipient, amount0, amount1); err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// IncreaseObservationCardinalityNext grows the oracle so it can retain next
// observations. Smaller values than the current target are ignored.
func (p *Pool) IncreaseObservationCardinalityNext(ctx context.Context, next uint16) error {
	tx, err := p.begin("increase_observation_cardinality_next")
	if err != nil {
		return err
	}
	defer p.abort(ctx, tx)
	return p.end(ctx, tx, p.growOracle(ctx, tx, next))
}

func (p *Pool) growOracle(ctx context.Context, tx *txn, next uint16) error {
	old := p.slot0.ObservationCardinalityNext
	grown, err := p.oracle.Grow(old, next)
	if err != nil {
		return err
	}
	p.slot0.ObservationCardinalityNext = grown
	if grown != old {
		p.record(tx, model.EventIncreaseObservationCardinalityNext, model.IncreaseObservationCardinalityNextEventData{
			ObservationCardinalityNextOld: old,
			ObservationCardinalityNextNew: grown,
		})
	}
	return p.persist(ctx, tx)
}

func minUint(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return new(uint256.Int).Set(a)
	}
	return new(uint256.Int).Set(b)
}
