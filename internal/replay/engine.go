package replay

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityCore/internal/model"
	"liquidityCore/internal/pool"
	"liquidityCore/internal/storage"
	"liquidityCore/internal/token"
)

// ErrUnsupportedEvent is returned by Apply for events the engine cannot reproduce.
var ErrUnsupportedEvent = errors.New("event not supported by the engine")

var errQuoteMismatch = errors.New("swap deltas differ from the log")

// Owner stands in for the factory owner, which pool logs never name.
var Owner = common.HexToAddress("0x000000000000000000000000000000000000fee0")

// resumeFloat is credited to the pool vaults of a resumed pool, whose token balances
// are not part of the store.
var resumeFloat = new(uint256.Int).Lsh(uint256.NewInt(1), 192)

// Divergence is one field where the engine disagrees with the log.
type Divergence struct {
	Field  string
	Chain  string
	Engine string
}

func (d Divergence) String() string {
	return fmt.Sprintf("%s: chain %s, engine %s", d.Field, d.Chain, d.Engine)
}

// EngineConfig describes the pool being replayed.
type EngineConfig struct {
	Meta         model.PoolMeta
	Store        storage.Store
	Events       storage.EventSink
	Logger       *zap.Logger
	MaxSwapSteps int
}

// Engine drives a pool with the operations recorded in chain logs. Payers are funded
// on demand, so only the pool's own accounting is checked.
type Engine struct {
	pool   *pool.Pool
	token0 *token.Ledger
	token1 *token.Ledger
	now    uint32
	logger *zap.Logger
}

// NewEngine loads the pool from cfg.Store, or creates it when the store has no record.
func NewEngine(ctx context.Context, cfg EngineConfig) (*Engine, error) {
	meta := cfg.Meta
	for name, addr := range map[string]string{"pool": meta.Address, "token0": meta.Token0, "token1": meta.Token1} {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid %s address: %q", name, addr)
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	address := common.HexToAddress(meta.Address)
	e := &Engine{
		token0: token.NewLedger(common.HexToAddress(meta.Token0), "token0"),
		token1: token.NewLedger(common.HexToAddress(meta.Token1), "token1"),
		logger: logger,
	}
	p, err := pool.Load(ctx, pool.Config{
		Address:      address,
		Token0:       e.token0.Address(),
		Token1:       e.token1.Address(),
		Vault0:       e.token0.Bind(address),
		Vault1:       e.token1.Bind(address),
		Fee:          meta.Fee,
		TickSpacing:  meta.TickSpacing,
		Owner:        Owner,
		Clock:        func() uint32 { return e.now },
		Store:        cfg.Store,
		Events:       cfg.Events,
		Logger:       logger,
		MaxSwapSteps: cfg.MaxSwapSteps,
	})
	if err != nil {
		return nil, err
	}
	e.pool = p

	if p.Initialized() {
		if err := e.token0.Mint(address, resumeFloat); err != nil {
			return nil, err
		}
		if err := e.token1.Mint(address, resumeFloat); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Pool exposes the replayed pool for queries.
func (e *Engine) Pool() *pool.Pool {
	return e.pool
}

// Apply replays one decoded event at its block timestamp and returns the fields where
// the engine's outcome differs from the log.
func (e *Engine) Apply(ctx context.Context, event *model.TypedEvent) ([]Divergence, error) {
	e.now = uint32(event.Timestamp)

	switch d := event.Decoded.(type) {
	case model.InitializeEventData:
		return e.initialize(ctx, d)
	case model.MintEventData:
		return e.mint(ctx, d)
	case model.BurnEventData:
		return e.burn(ctx, d)
	case model.CollectEventData:
		return e.collect(ctx, d)
	case model.SwapEventData:
		return e.swap(ctx, d)
	case model.SetFeeProtocolEventData:
		return e.setFeeProtocol(ctx, d)
	case model.CollectProtocolEventData:
		return e.collectProtocol(ctx, d)
	case model.IncreaseObservationCardinalityNextEventData:
		return e.growOracle(ctx, d)
	case model.FlashEventData:
		return nil, fmt.Errorf("%s: %w", event.EventName, ErrUnsupportedEvent)
	default:
		return nil, fmt.Errorf("%s payload %T: %w", event.EventName, event.Decoded, ErrUnsupportedEvent)
	}
}

func (e *Engine) initialize(ctx context.Context, d model.InitializeEventData) ([]Divergence, error) {
	price, err := parseUint(d.SqrtPriceX96)
	if err != nil {
		return nil, err
	}
	if err := e.pool.Initialize(ctx, price); err != nil {
		return nil, err
	}
	var c comparer
	c.int("tick", int64(d.Tick), int64(e.pool.Slot0().Tick))
	return c.out, nil
}

func (e *Engine) mint(ctx context.Context, d model.MintEventData) ([]Divergence, error) {
	amount, err := parseUint(d.Amount)
	if err != nil {
		return nil, err
	}
	sender := common.HexToAddress(d.Sender)
	amount0, amount1, err := e.pool.Mint(ctx, pool.MintParams{
		Sender:    sender,
		Recipient: common.HexToAddress(d.Owner),
		TickLower: d.TickLower,
		TickUpper: d.TickUpper,
		Amount:    amount,
		Callback: func(_ context.Context, owed0, owed1 *uint256.Int, _ []byte) error {
			return e.pay(sender, owed0, owed1)
		},
	})
	if err != nil {
		return nil, err
	}
	var c comparer
	c.str("amount0", d.Amount0, amount0.Dec())
	c.str("amount1", d.Amount1, amount1.Dec())
	return c.out, nil
}

func (e *Engine) burn(ctx context.Context, d model.BurnEventData) ([]Divergence, error) {
	amount, err := parseUint(d.Amount)
	if err != nil {
		return nil, err
	}
	amount0, amount1, err := e.pool.Burn(ctx, common.HexToAddress(d.Owner), d.TickLower, d.TickUpper, amount)
	if err != nil {
		return nil, err
	}
	var c comparer
	c.str("amount0", d.Amount0, amount0.Dec())
	c.str("amount1", d.Amount1, amount1.Dec())
	return c.out, nil
}

func (e *Engine) collect(ctx context.Context, d model.CollectEventData) ([]Divergence, error) {
	requested0, err := parseUint(d.Amount0)
	if err != nil {
		return nil, err
	}
	requested1, err := parseUint(d.Amount1)
	if err != nil {
		return nil, err
	}
	amount0, amount1, err := e.pool.Collect(ctx, common.HexToAddress(d.Owner), common.HexToAddress(d.Recipient),
		d.TickLower, d.TickUpper, requested0, requested1)
	if err != nil {
		return nil, err
	}
	var c comparer
	c.str("amount0", d.Amount0, amount0.Dec())
	c.str("amount1", d.Amount1, amount1.Dec())
	return c.out, nil
}

type swapAttempt struct {
	amount *big.Int
	limit  *uint256.Int
	strict bool
}

// swap finds the call that produced the log: exact input, then exact output, each kept
// only if it lands exactly where the log says. Failing both, the input is swapped up to the
// logged price.
func (e *Engine) swap(ctx context.Context, d model.SwapEventData) ([]Divergence, error) {
	amount0, ok0 := new(big.Int).SetString(d.Amount0, 10)
	amount1, ok1 := new(big.Int).SetString(d.Amount1, 10)
	if !ok0 || !ok1 {
		return nil, fmt.Errorf("invalid swap amounts %q %q", d.Amount0, d.Amount1)
	}
	zeroForOne := amount0.Sign() > 0
	amountIn, amountOut := amount0, amount1
	if !zeroForOne {
		amountIn, amountOut = amount1, amount0
	}
	if amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("swap log pays nothing in: %s %s", d.Amount0, d.Amount1)
	}
	price, err := parseUint(d.SqrtPriceX96)
	if err != nil {
		return nil, err
	}

	attempts := []swapAttempt{
		{amount: amountIn, strict: true},
		{amount: amountOut, strict: true},
		{amount: amountIn, limit: price},
	}
	sender := common.HexToAddress(d.Sender)

	var result pool.SwapResult
	for i, attempt := range attempts {
		if attempt.amount.Sign() == 0 {
			continue
		}
		result, err = e.pool.Swap(ctx, pool.SwapParams{
			Sender:            sender,
			Recipient:         common.HexToAddress(d.Recipient),
			ZeroForOne:        zeroForOne,
			AmountSpecified:   attempt.amount,
			SqrtPriceLimitX96: attempt.limit,
			Callback: func(_ context.Context, delta0, delta1 *big.Int, _ []byte) error {
				if attempt.strict && !e.reproduces(d, amount0, amount1, delta0, delta1) {
					return errQuoteMismatch
				}
				return e.pay(sender, positive(delta0), positive(delta1))
			},
		})
		if err == nil {
			if i == len(attempts)-1 {
				e.logger.Debug("swap replayed up to logged price", zap.String("sqrt_price_x96", d.SqrtPriceX96))
			}
			break
		}
		if !errors.Is(err, errQuoteMismatch) {
			e.logger.Debug("swap attempt failed", zap.Int("attempt", i), zap.Error(err))
		}
	}
	if err != nil {
		return nil, err
	}

	var c comparer
	c.str("sqrt_price_x96", d.SqrtPriceX96, result.SqrtPriceX96.Dec())
	c.int("tick", int64(d.Tick), int64(result.Tick))
	c.str("liquidity", d.Liquidity, result.Liquidity.Dec())
	return c.out, nil
}

func (e *Engine) setFeeProtocol(ctx context.Context, d model.SetFeeProtocolEventData) ([]Divergence, error) {
	old := e.pool.Slot0().FeeProtocol
	if err := e.pool.SetFeeProtocol(ctx, Owner, d.FeeProtocol0New, d.FeeProtocol1New); err != nil {
		return nil, err
	}
	var c comparer
	c.int("fee_protocol0_old", int64(d.FeeProtocol0Old), int64(old%16))
	c.int("fee_protocol1_old", int64(d.FeeProtocol1Old), int64(old>>4))
	return c.out, nil
}

func (e *Engine) collectProtocol(ctx context.Context, d model.CollectProtocolEventData) ([]Divergence, error) {
	requested0, err := parseUint(d.Amount0)
	if err != nil {
		return nil, err
	}
	requested1, err := parseUint(d.Amount1)
	if err != nil {
		return nil, err
	}
	amount0, amount1, err := e.pool.CollectProtocol(ctx, Owner, common.HexToAddress(d.Recipient), requested0, requested1)
	if err != nil {
		return nil, err
	}
	var c comparer
	c.str("amount0", d.Amount0, amount0.Dec())
	c.str("amount1", d.Amount1, amount1.Dec())
	return c.out, nil
}

func (e *Engine) growOracle(ctx context.Context, d model.IncreaseObservationCardinalityNextEventData) ([]Divergence, error) {
	old := e.pool.Slot0().ObservationCardinalityNext
	if err := e.pool.IncreaseObservationCardinalityNext(ctx, d.ObservationCardinalityNextNew); err != nil {
		return nil, err
	}
	var c comparer
	c.int("observation_cardinality_next_old", int64(d.ObservationCardinalityNextOld), int64(old))
	c.int("observation_cardinality_next", int64(d.ObservationCardinalityNextNew), int64(e.pool.Slot0().ObservationCardinalityNext))
	return c.out, nil
}

// reproduces reports whether the swap being settled matches the log. The pool has
// already staged its post-swap price when the callback runs.
func (e *Engine) reproduces(d model.SwapEventData, amount0, amount1, delta0, delta1 *big.Int) bool {
	if delta0.Cmp(amount0) != 0 || delta1.Cmp(amount1) != 0 {
		return false
	}
	return e.pool.Slot0().SqrtPriceX96.Dec() == d.SqrtPriceX96 && e.pool.Liquidity().Dec() == d.Liquidity
}

// pay mints what payer owes and moves it into the pool.
func (e *Engine) pay(payer common.Address, amount0, amount1 *uint256.Int) error {
	poolAddress := e.pool.Address()
	for _, leg := range []struct {
		ledger *token.Ledger
		amount *uint256.Int
	}{{e.token0, amount0}, {e.token1, amount1}} {
		if leg.amount.IsZero() {
			continue
		}
		if err := leg.ledger.Mint(payer, leg.amount); err != nil {
			return err
		}
		if err := leg.ledger.Transfer(payer, poolAddress, leg.amount); err != nil {
			return err
		}
	}
	return nil
}

type comparer struct {
	out []Divergence
}

func (c *comparer) str(field, chain, engine string) {
	if chain != engine {
		c.out = append(c.out, Divergence{Field: field, Chain: chain, Engine: engine})
	}
}

func (c *comparer) int(field string, chain, engine int64) {
	if chain != engine {
		c.out = append(c.out, Divergence{Field: field, Chain: fmt.Sprint(chain), Engine: fmt.Sprint(engine)})
	}
}

func parseUint(dec string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(dec)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", dec, err)
	}
	return v, nil
}

func positive(v *big.Int) *uint256.Int {
	if v.Sign() <= 0 {
		return new(uint256.Int)
	}
	out, _ := uint256.FromBig(v)
	return out
}
