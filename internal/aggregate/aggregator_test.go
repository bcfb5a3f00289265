package aggregate

import (
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"liquidityCore/internal/model"
	"liquidityCore/internal/storage"
)

const testPool = "0x8ad599c3a0ff1de082011efddc58f1908eb6e6d8"

var testMeta = model.PoolMeta{
	Address:     testPool,
	Token0:      "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
	Token1:      "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
	Fee:         3000,
	TickSpacing: 60,
}

func swapEvent(ts uint64, swap model.SwapEventData) model.TypedEvent {
	return model.TypedEvent{
		Source:    model.SourceEngine,
		Address:   testPool,
		EventName: model.EventSwap,
		Timestamp: ts,
		Decoded:   swap,
		PoolMeta:  testMeta,
	}
}

type fixedTVL struct {
	balance0, balance1 int64
	err                error
}

func (f fixedTVL) Balances(context.Context, model.PoolMeta, uint64) (*big.Int, *big.Int, string, error) {
	if f.err != nil {
		return nil, nil, TVLMethodNone, f.err
	}
	return big.NewInt(f.balance0), big.NewInt(f.balance1), TVLMethodLedger, nil
}

func TestAggregatorWindows(t *testing.T) {
	agg, err := NewAggregator(Config{WindowSeconds: 60, TVL: fixedTVL{balance0: 100_000, balance1: 0}}, nil)
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}

	events := []model.TypedEvent{
		swapEvent(10, model.SwapEventData{Amount0: "1000", Amount1: "-990", FeeAmount: "3", ProtocolFee: "0", Tick: -1, SqrtPriceX96: "100"}),
		swapEvent(50, model.SwapEventData{Amount0: "2000", Amount1: "-1980", FeeAmount: "6", ProtocolFee: "1", Tick: -3, SqrtPriceX96: "99"}),
		swapEvent(61, model.SwapEventData{Amount0: "-500", Amount1: "505", FeeAmount: "2", ProtocolFee: "0", Tick: 2, SqrtPriceX96: "101"}),
		{Address: testPool, EventName: model.EventMint, Timestamp: 62},
	}
	if err := agg.PutEventBatch(events); err != nil {
		t.Fatalf("put events: %v", err)
	}

	stats := agg.Flush(context.Background())
	if len(stats) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(stats))
	}

	first := stats[0]
	if first.WindowStart.Unix() != 0 || first.WindowEnd.Unix() != 60 {
		t.Fatalf("unexpected first window: %v - %v", first.WindowStart, first.WindowEnd)
	}
	if first.SwapCount != 2 || first.Volume0 != "3000" || first.Volume1 != "2970" {
		t.Fatalf("unexpected volumes: %+v", first)
	}
	if first.Fee0 != "9" || first.Fee1 != "0" || first.ProtocolFee0 != "1" {
		t.Fatalf("unexpected fees: %+v", first)
	}
	if first.CloseTick != -3 || first.CloseSqrtPrice != "99" {
		t.Fatalf("unexpected close: %d %s", first.CloseTick, first.CloseSqrtPrice)
	}
	if first.FeeMethod != feeMethodExact || first.TVLMethod != TVLMethodLedger {
		t.Fatalf("unexpected methods: %s %s", first.FeeMethod, first.TVLMethod)
	}
	if first.FeeRate0 == nil || *first.FeeRate0 != "0.000090000000000000" {
		t.Fatalf("unexpected fee rate: %v", first.FeeRate0)
	}
	if first.FeeRate1 != nil || first.APR == nil {
		t.Fatalf("expected a single-sided apr")
	}

	second := stats[1]
	if second.Fee1 != "2" || second.Fee0 != "0" || second.SwapCount != 1 {
		t.Fatalf("unexpected second window: %+v", second)
	}

	if len(agg.Flush(context.Background())) != 0 {
		t.Fatalf("flush must reset the aggregator")
	}
}

func TestAggregatorApproximatesChainFees(t *testing.T) {
	agg, err := NewAggregator(Config{WindowSeconds: 3600}, nil)
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}

	chainSwap := swapEvent(100, model.SwapEventData{Amount0: "-1000", Amount1: "1000000"})
	chainSwap.Source = model.SourceChain
	engineSwap := swapEvent(200, model.SwapEventData{Amount0: "10", Amount1: "-9", FeeAmount: "1", ProtocolFee: "0"})
	for _, event := range []model.TypedEvent{chainSwap, engineSwap} {
		if err := agg.AddEvent(event); err != nil {
			t.Fatalf("add event: %v", err)
		}
	}

	stats := agg.Flush(context.Background())
	if len(stats) != 1 {
		t.Fatalf("expected 1 window, got %d", len(stats))
	}
	if stats[0].Fee1 != "3000" || stats[0].Fee0 != "1" {
		t.Fatalf("unexpected fees: %s %s", stats[0].Fee0, stats[0].Fee1)
	}
	if stats[0].FeeMethod != feeMethodMixed || stats[0].TVLMethod != TVLMethodNone {
		t.Fatalf("unexpected methods: %s %s", stats[0].FeeMethod, stats[0].TVLMethod)
	}
}

func TestAggregatorCountsBadPayloads(t *testing.T) {
	agg, err := NewAggregator(Config{WindowSeconds: 60, TVL: fixedTVL{err: errors.New("rpc down")}}, nil)
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}
	bad := swapEvent(1, model.SwapEventData{Amount0: "one"})
	wrong := swapEvent(2, model.SwapEventData{})
	wrong.Decoded = nil
	if err := agg.PutEventBatch([]model.TypedEvent{bad, wrong}); err != nil {
		t.Fatalf("sink must not fail: %v", err)
	}
	if agg.Failed() != 2 {
		t.Fatalf("expected 2 failures, got %d", agg.Failed())
	}

	if err := agg.AddEvent(swapEvent(3, model.SwapEventData{Amount0: "1", Amount1: "-1", FeeAmount: "0"})); err != nil {
		t.Fatalf("add event: %v", err)
	}
	stats := agg.Flush(context.Background())
	if len(stats) != 1 || stats[0].TVLMethod != TVLMethodNone || stats[0].TVL0 != nil {
		t.Fatalf("tvl failure must leave tvl unset: %+v", stats)
	}

	if _, err := NewAggregator(Config{}, nil); err == nil {
		t.Fatalf("expected error for zero window")
	}
}

func TestAggregatorRunReadsJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	writer, err := storage.NewJSONLWriter(path, false)
	if err != nil {
		t.Fatalf("writer: %v", err)
	}
	err = writer.PutEventBatch([]model.TypedEvent{
		swapEvent(5, model.SwapEventData{Amount0: "100", Amount1: "-99", FeeAmount: "1", ProtocolFee: "0"}),
		swapEvent(6, model.SwapEventData{Amount0: "100", Amount1: "-99", FeeAmount: "1", ProtocolFee: "0"}),
	})
	if err != nil {
		t.Fatalf("write events: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteString("{not json}\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	f.Close()

	agg, err := NewAggregator(Config{WindowSeconds: 60}, nil)
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}
	if err := agg.Run(context.Background(), path); err != nil {
		t.Fatalf("run: %v", err)
	}
	stats := agg.Flush(context.Background())
	if len(stats) != 1 || stats[0].SwapCount != 2 || stats[0].Fee0 != "2" {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

type balanceCaller struct {
	failAtBlock bool
	calls       int
}

func (c *balanceCaller) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	c.calls++
	if c.failAtBlock && block != nil {
		return nil, errors.New("missing trie node")
	}
	if !strings.HasPrefix(common.Bytes2Hex(msg.Data), "70a08231") {
		return nil, errors.New("unexpected selector")
	}
	balance := big.NewInt(1000)
	if *msg.To == common.HexToAddress(testMeta.Token1) {
		balance = big.NewInt(2000)
	}
	return common.LeftPadBytes(balance.Bytes(), 32), nil
}

func TestBalanceOfSource(t *testing.T) {
	caller := &balanceCaller{}
	source := &BalanceOfSource{Caller: caller}
	bal0, bal1, method, err := source.Balances(context.Background(), testMeta, 12)
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	if bal0.Int64() != 1000 || bal1.Int64() != 2000 || method != TVLMethodBlock {
		t.Fatalf("unexpected balances: %s %s %s", bal0, bal1, method)
	}

	caller = &balanceCaller{failAtBlock: true}
	source.Caller = caller
	_, _, method, err = source.Balances(context.Background(), testMeta, 12)
	if err != nil || method != TVLMethodLatest {
		t.Fatalf("expected latest fallback, got %s %v", method, err)
	}
	if caller.calls != 4 {
		t.Fatalf("expected 4 calls, got %d", caller.calls)
	}

	if _, _, _, err := source.Balances(context.Background(), model.PoolMeta{}, 0); err == nil {
		t.Fatalf("expected error for empty meta")
	}
}
