// Package sim runs scripted operations against a pool settled through in-memory token
// ledgers.
package sim

import (
	"context"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/sugawarayuuta/sonnet"
	"go.uber.org/zap"

	"liquidityCore/internal/fixedpoint"
	"liquidityCore/internal/model"
	"liquidityCore/internal/pool"
	"liquidityCore/internal/storage"
	"liquidityCore/internal/token"
)

// FailureSink receives a Failure for every operation that did not go as scripted.
type FailureSink interface {
	Write(value interface{}) error
}

// Failure describes one operation that failed unexpectedly, or did not fail the way
// the script expected.
type Failure struct {
	Line     int    `json:"line"`
	Op       string `json:"op"`
	Expected string `json:"expected,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Error    string `json:"error"`
}

// Options configure a simulation. Pool vaults and clock are provided by the runner.
type Options struct {
	Pool        pool.Config
	Symbol0     string
	Symbol1     string
	StartTime   uint32
	StopOnError bool
	Logger      *zap.Logger
}

// Report summarises a script run.
type Report struct {
	Ops            int    `json:"ops"`
	Succeeded      int    `json:"succeeded"`
	ExpectedErrors int    `json:"expected_errors"`
	Failed         int    `json:"failed"`
	Resumed        bool   `json:"resumed"`
	Time           uint32 `json:"time"`
	SqrtPriceX96   string `json:"sqrt_price_x96"`
	Tick           int32  `json:"tick"`
	Liquidity      string `json:"liquidity"`
	Balance0       string `json:"pool_balance0"`
	Balance1       string `json:"pool_balance1"`
}

// Result is what a successful operation moved.
type Result struct {
	Amount0 *big.Int
	Amount1 *big.Int
}

// Runner owns a pool, its two token ledgers and the clock they share.
type Runner struct {
	opts    Options
	pool    *pool.Pool
	token0  *token.Ledger
	token1  *token.Ledger
	clock   *Clock
	resumed bool
	logger  *zap.Logger
}

// New builds the pool from opts, loading it and the ledger balances from the store
// when an earlier run left them there.
func New(ctx context.Context, opts Options) (*Runner, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	symbol0, symbol1 := opts.Symbol0, opts.Symbol1
	if symbol0 == "" {
		symbol0 = "TOKEN0"
	}
	if symbol1 == "" {
		symbol1 = "TOKEN1"
	}

	r := &Runner{
		opts:   opts,
		token0: token.NewLedger(opts.Pool.Token0, symbol0),
		token1: token.NewLedger(opts.Pool.Token1, symbol1),
		clock:  NewClock(opts.StartTime),
		logger: logger,
	}

	cfg := opts.Pool
	cfg.Vault0 = r.token0.Bind(cfg.Address)
	cfg.Vault1 = r.token1.Bind(cfg.Address)
	cfg.Clock = r.clock.Now
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
	p, err := pool.Load(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("load pool: %w", err)
	}
	r.pool = p

	resumed, err := r.loadState(ctx)
	if err != nil {
		return nil, err
	}
	r.resumed = resumed
	if resumed {
		logger.Info("simulation resumed", zap.Uint32("time", r.clock.Now()), zap.Bool("initialized", p.Initialized()))
	}
	return r, nil
}

func (r *Runner) Pool() *pool.Pool {
	return r.pool
}

func (r *Runner) Token0() *token.Ledger {
	return r.token0
}

func (r *Runner) Token1() *token.Ledger {
	return r.token1
}

func (r *Runner) Clock() *Clock {
	return r.clock
}

// Run executes an operations JSONL stream line by line.
func (r *Runner) Run(ctx context.Context, in io.Reader, failures FailureSink) (Report, error) {
	report := Report{Resumed: r.resumed}

	err := storage.ScanJSONL(in, func(lineNo int, line []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		report.Ops++

		var op model.Operation
		if err := sonnet.Unmarshal(line, &op); err != nil {
			return r.fail(&report, failures, Failure{
				Line:  lineNo,
				Kind:  ErrorKind(ErrBadOperation),
				Error: fmt.Sprintf("parse operation: %v", err),
			})
		}

		_, opErr := r.Apply(ctx, op)
		kind := ErrorKind(opErr)
		switch {
		case op.ExpectError == "" && opErr == nil:
			report.Succeeded++
		case op.ExpectError != "" && kind == op.ExpectError:
			report.ExpectedErrors++
		default:
			msg := "operation succeeded"
			if opErr != nil {
				msg = opErr.Error()
			}
			if err := r.fail(&report, failures, Failure{
				Line:     lineNo,
				Op:       op.Op,
				Expected: op.ExpectError,
				Kind:     kind,
				Error:    msg,
			}); err != nil {
				return err
			}
		}
		return r.saveState(ctx)
	})

	slot0 := r.pool.Slot0()
	report.Time = r.clock.Now()
	report.SqrtPriceX96 = slot0.SqrtPriceX96.Dec()
	report.Tick = slot0.Tick
	report.Liquidity = r.pool.Liquidity().Dec()
	report.Balance0 = r.token0.BalanceOf(r.pool.Address()).Dec()
	report.Balance1 = r.token1.BalanceOf(r.pool.Address()).Dec()

	r.logger.Info("simulation finished",
		zap.Int("ops", report.Ops),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("expected_errors", report.ExpectedErrors),
		zap.Int("failed", report.Failed),
	)
	return report, err
}

func (r *Runner) fail(report *Report, failures FailureSink, failure Failure) error {
	report.Failed++
	r.logger.Warn("operation failed",
		zap.Int("line", failure.Line),
		zap.String("op", failure.Op),
		zap.String("expected", failure.Expected),
		zap.String("kind", failure.Kind),
		zap.String("error", failure.Error),
	)
	if failures != nil {
		if err := failures.Write(failure); err != nil {
			return fmt.Errorf("write failure: %w", err)
		}
	}
	if r.opts.StopOnError {
		return fmt.Errorf("line %d %s: %s", failure.Line, failure.Op, failure.Error)
	}
	return nil
}

// Apply executes one operation. A nonzero op.Time sets the clock first.
func (r *Runner) Apply(ctx context.Context, op model.Operation) (Result, error) {
	if op.Time != 0 {
		r.clock.Set(op.Time)
	}

	switch op.Op {
	case model.OpFund:
		return r.fund(op)
	case model.OpAdvanceTime:
		r.clock.Advance(op.Seconds)
		return Result{}, nil
	case model.OpInitialize:
		price, err := parseUint("sqrt_price_x96", op.SqrtPriceX96)
		if err != nil {
			return Result{}, err
		}
		return Result{}, r.pool.Initialize(ctx, price)
	case model.OpMint:
		return r.mint(ctx, op)
	case model.OpBurn:
		return r.burn(ctx, op)
	case model.OpCollect:
		return r.collect(ctx, op)
	case model.OpSwap:
		return r.swap(ctx, op)
	case model.OpSetFeeProtocol:
		caller, err := parseAddress("sender", op.Sender)
		if err != nil {
			return Result{}, err
		}
		return Result{}, r.pool.SetFeeProtocol(ctx, caller, op.FeeProtocol0, op.FeeProtocol1)
	case model.OpCollectProtocol:
		return r.collectProtocol(ctx, op)
	case model.OpIncreaseObservationCardinalityNext:
		return Result{}, r.pool.IncreaseObservationCardinalityNext(ctx, op.CardinalityNext)
	default:
		return Result{}, fmt.Errorf("unknown op %q: %w", op.Op, ErrBadOperation)
	}
}

func (r *Runner) fund(op model.Operation) (Result, error) {
	holder, err := parseAddress("recipient", op.Recipient)
	if err != nil {
		return Result{}, err
	}
	amount0, err := parseUint("amount0", op.Amount0)
	if err != nil {
		return Result{}, err
	}
	amount1, err := parseUint("amount1", op.Amount1)
	if err != nil {
		return Result{}, err
	}
	if err := r.token0.Mint(holder, amount0); err != nil {
		return Result{}, err
	}
	if err := r.token1.Mint(holder, amount1); err != nil {
		return Result{}, err
	}
	return Result{Amount0: amount0.ToBig(), Amount1: amount1.ToBig()}, nil
}

func (r *Runner) mint(ctx context.Context, op model.Operation) (Result, error) {
	sender, err := parseAddress("sender", op.Sender)
	if err != nil {
		return Result{}, err
	}
	recipient, err := parseAddress("recipient", op.Recipient)
	if err != nil {
		return Result{}, err
	}
	amount, err := parseUint("amount", op.Amount)
	if err != nil {
		return Result{}, err
	}

	amount0, amount1, err := r.pool.Mint(ctx, pool.MintParams{
		Sender:    sender,
		Recipient: recipient,
		TickLower: op.TickLower,
		TickUpper: op.TickUpper,
		Amount:    amount,
		Callback: func(_ context.Context, owed0, owed1 *uint256.Int, _ []byte) error {
			return r.pay(sender, owed0, owed1)
		},
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Amount0: amount0.ToBig(), Amount1: amount1.ToBig()}, nil
}

func (r *Runner) burn(ctx context.Context, op model.Operation) (Result, error) {
	owner, err := parseAddress("owner", op.Owner)
	if err != nil {
		return Result{}, err
	}
	amount, err := parseUint("amount", op.Amount)
	if err != nil {
		return Result{}, err
	}
	amount0, amount1, err := r.pool.Burn(ctx, owner, op.TickLower, op.TickUpper, amount)
	if err != nil {
		return Result{}, err
	}
	return Result{Amount0: amount0.ToBig(), Amount1: amount1.ToBig()}, nil
}

func (r *Runner) collect(ctx context.Context, op model.Operation) (Result, error) {
	owner, err := parseAddress("owner", op.Owner)
	if err != nil {
		return Result{}, err
	}
	recipient, err := parseAddress("recipient", op.Recipient)
	if err != nil {
		return Result{}, err
	}
	requested0, requested1, err := requested(op)
	if err != nil {
		return Result{}, err
	}
	amount0, amount1, err := r.pool.Collect(ctx, owner, recipient, op.TickLower, op.TickUpper, requested0, requested1)
	if err != nil {
		return Result{}, err
	}
	return Result{Amount0: amount0.ToBig(), Amount1: amount1.ToBig()}, nil
}

func (r *Runner) collectProtocol(ctx context.Context, op model.Operation) (Result, error) {
	caller, err := parseAddress("sender", op.Sender)
	if err != nil {
		return Result{}, err
	}
	recipient, err := parseAddress("recipient", op.Recipient)
	if err != nil {
		return Result{}, err
	}
	requested0, requested1, err := requested(op)
	if err != nil {
		return Result{}, err
	}
	amount0, amount1, err := r.pool.CollectProtocol(ctx, caller, recipient, requested0, requested1)
	if err != nil {
		return Result{}, err
	}
	return Result{Amount0: amount0.ToBig(), Amount1: amount1.ToBig()}, nil
}

func (r *Runner) swap(ctx context.Context, op model.Operation) (Result, error) {
	sender, err := parseAddress("sender", op.Sender)
	if err != nil {
		return Result{}, err
	}
	recipient, err := parseAddress("recipient", op.Recipient)
	if err != nil {
		return Result{}, err
	}
	amountSpecified, ok := new(big.Int).SetString(op.AmountSpecified, 10)
	if !ok {
		return Result{}, fmt.Errorf("amount_specified %q: %w", op.AmountSpecified, ErrBadOperation)
	}
	var limit *uint256.Int
	if op.SqrtPriceLimitX96 != "" {
		if limit, err = parseUint("sqrt_price_limit_x96", op.SqrtPriceLimitX96); err != nil {
			return Result{}, err
		}
	}

	res, err := r.pool.Swap(ctx, pool.SwapParams{
		Sender:            sender,
		Recipient:         recipient,
		ZeroForOne:        op.ZeroForOne,
		AmountSpecified:   amountSpecified,
		SqrtPriceLimitX96: limit,
		Callback: func(_ context.Context, delta0, delta1 *big.Int, _ []byte) error {
			return r.pay(sender, positive(delta0), positive(delta1))
		},
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Amount0: res.Amount0, Amount1: res.Amount1}, nil
}

// pay settles a callback out of the payer's ledger balances.
func (r *Runner) pay(payer common.Address, amount0, amount1 *uint256.Int) error {
	poolAddr := r.pool.Address()
	if !amount0.IsZero() {
		if err := r.token0.Transfer(payer, poolAddr, amount0); err != nil {
			return err
		}
	}
	if !amount1.IsZero() {
		if err := r.token1.Transfer(payer, poolAddr, amount1); err != nil {
			return err
		}
	}
	return nil
}

// requested reads collect amounts; an omitted amount asks for everything owed.
func requested(op model.Operation) (*uint256.Int, *uint256.Int, error) {
	requested0 := new(uint256.Int).Set(fixedpoint.MaxUint128)
	requested1 := new(uint256.Int).Set(fixedpoint.MaxUint128)
	var err error
	if op.Amount0 != "" {
		if requested0, err = parseUint("amount0", op.Amount0); err != nil {
			return nil, nil, err
		}
	}
	if op.Amount1 != "" {
		if requested1, err = parseUint("amount1", op.Amount1); err != nil {
			return nil, nil, err
		}
	}
	return requested0, requested1, nil
}

func parseAddress(field, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s %q: %w", field, value, ErrBadOperation)
	}
	return common.HexToAddress(value), nil
}

func parseUint(field, value string) (*uint256.Int, error) {
	if value == "" {
		return new(uint256.Int), nil
	}
	out, err := uint256.FromDecimal(value)
	if err != nil {
		return nil, fmt.Errorf("%s %q: %w", field, value, ErrBadOperation)
	}
	return out, nil
}

func positive(v *big.Int) *uint256.Int {
	if v.Sign() <= 0 {
		return new(uint256.Int)
	}
	out, _ := uint256.FromBig(v)
	return out
}
