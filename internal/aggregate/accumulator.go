package aggregate

import (
	"fmt"
	"math/big"

	"liquidityCore/internal/model"
)

// Accumulator holds the running totals of one pool window.
type Accumulator struct {
	PoolAddress  string
	PoolMeta     model.PoolMeta
	WindowStart  uint64
	WindowEnd    uint64
	SwapCount    uint64
	Volume0      *big.Int
	Volume1      *big.Int
	Fee0         *big.Int
	Fee1         *big.Int
	ProtocolFee0 *big.Int
	ProtocolFee1 *big.Int
	// Approximated counts swaps whose fee was estimated from the fee tier.
	Approximated   uint64
	CloseTick      int32
	CloseSqrtPrice string
	LastBlock      uint64
	LastTS         uint64
}

func NewAccumulator(event model.TypedEvent, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		PoolAddress:  event.Address,
		PoolMeta:     event.PoolMeta,
		WindowStart:  windowStart,
		WindowEnd:    windowEnd,
		Volume0:      big.NewInt(0),
		Volume1:      big.NewInt(0),
		Fee0:         big.NewInt(0),
		Fee1:         big.NewInt(0),
		ProtocolFee0: big.NewInt(0),
		ProtocolFee1: big.NewInt(0),
		LastBlock:    event.BlockNumber,
		LastTS:       event.Timestamp,
	}
}

// AddSwap folds one swap into the window.
func (a *Accumulator) AddSwap(event model.TypedEvent, swap model.SwapEventData) error {
	amount0, err := parseAmount(swap.Amount0)
	if err != nil {
		return err
	}
	amount1, err := parseAmount(swap.Amount1)
	if err != nil {
		return err
	}

	if event.Timestamp >= a.LastTS {
		a.LastTS = event.Timestamp
		a.LastBlock = event.BlockNumber
		a.CloseTick = swap.Tick
		a.CloseSqrtPrice = swap.SqrtPriceX96
	}
	if event.PoolMeta.Fee != 0 {
		a.PoolMeta = event.PoolMeta
	}

	addAbs(a.Volume0, amount0)
	addAbs(a.Volume1, amount1)
	a.SwapCount++

	// the fee is charged on the input side
	fee, protocolFee := a.Fee1, a.ProtocolFee1
	amountIn := amount1
	if amount0.Sign() > 0 {
		fee, protocolFee = a.Fee0, a.ProtocolFee0
		amountIn = amount0
	}
	if amountIn.Sign() <= 0 {
		return nil
	}

	if swap.FeeAmount == "" {
		a.Approximated++
		fee.Add(fee, tierFee(amountIn, a.PoolMeta.Fee))
		return nil
	}
	exact, err := parseAmount(swap.FeeAmount)
	if err != nil {
		return fmt.Errorf("fee amount: %w", err)
	}
	toProtocol, err := parseAmount(swap.ProtocolFee)
	if err != nil {
		return fmt.Errorf("protocol fee: %w", err)
	}
	fee.Add(fee, exact)
	protocolFee.Add(protocolFee, toProtocol)
	return nil
}

// FeeMethod tells how Fee0 and Fee1 were obtained.
func (a *Accumulator) FeeMethod() string {
	switch {
	case a.Approximated == 0:
		return feeMethodExact
	case a.Approximated == a.SwapCount:
		return feeMethodApprox
	default:
		return feeMethodMixed
	}
}
