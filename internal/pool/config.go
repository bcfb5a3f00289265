package pool

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityCore/internal/fixedpoint"
	"liquidityCore/internal/storage"
)

// MaxTickSpacing bounds the tick spacing so ticks fit an int24 after compression.
const MaxTickSpacing = 16384

// Token is the pool's holding of one token. Balance reports what the pool holds and
// Transfer pays out of it; both must either succeed fully or fail without effect.
type Token interface {
	Balance() (*uint256.Int, error)
	Transfer(to common.Address, amount *uint256.Int) error
}

// MintCallback must pay the pool at least the owed amounts before returning.
type MintCallback func(ctx context.Context, amount0Owed, amount1Owed *uint256.Int, data []byte) error

// SwapCallback must pay the pool the positive delta before returning. Negative deltas
// are what the pool pays the recipient.
type SwapCallback func(ctx context.Context, amount0Delta, amount1Delta *big.Int, data []byte) error

// Config is everything a pool needs from its environment.
type Config struct {
	Address     common.Address
	Token0      common.Address
	Token1      common.Address
	Vault0      Token
	Vault1      Token
	Fee         uint32
	TickSpacing int32
	// Owner may set and collect protocol fees.
	Owner common.Address
	// Clock returns the current timestamp. Defaults to wall-clock seconds.
	Clock        func() uint32
	Store        storage.Store
	Events       storage.EventSink
	Logger       *zap.Logger
	MaxSwapSteps int
}

func (c *Config) validate() error {
	if c.Vault0 == nil || c.Vault1 == nil {
		return fmt.Errorf("both token vaults are required")
	}
	if c.Fee >= fixedpoint.FeeDenominator {
		return fmt.Errorf("fee %d: %w", c.Fee, fixedpoint.ErrInvalidFee)
	}
	if c.TickSpacing <= 0 || c.TickSpacing >= MaxTickSpacing {
		return fmt.Errorf("tick spacing %d out of range", c.TickSpacing)
	}
	if c.MaxSwapSteps < 0 {
		return fmt.Errorf("max swap steps must be >= 0")
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Clock == nil {
		c.Clock = func() uint32 { return uint32(time.Now().Unix()) }
	}
	return nil
}
