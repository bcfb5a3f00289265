package dex

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"liquidityCore/internal/model"
)

func newTestDecoder(t *testing.T) *PoolDecoder {
	t.Helper()
	decoder, err := NewPoolDecoder(DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	return decoder
}

func TestPoolDecoderSwap(t *testing.T) {
	poolABI, err := PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")
	poolMetaCache := NewPoolMetaCache()
	poolMetaCache.Set(pool, model.PoolMeta{
		Token0:      "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		Token1:      "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		Fee:         2500,
		TickSpacing: 60,
	})

	decoder := newTestDecoder(t)
	ctx := DecodeContext{
		PoolMetaCache: poolMetaCache,
		Logger:        zap.NewNop(),
	}

	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	recipient := common.HexToAddress("0x3333333333333333333333333333333333333333")

	data, err := poolABI.Events["Swap"].Inputs.NonIndexed().Pack(
		big.NewInt(-1000),
		big.NewInt(2000),
		big.NewInt(123456789),
		big.NewInt(987654321),
		big.NewInt(-15),
	)
	if err != nil {
		t.Fatalf("pack swap: %v", err)
	}

	logRecord := buildLogRecord(pool, poolABI.Events["Swap"].ID, data, []common.Hash{
		topicFromAddress(sender),
		topicFromAddress(recipient),
	})

	event, err := decoder.Decode(logRecord, ctx)
	if err != nil {
		t.Fatalf("decode swap: %v", err)
	}

	swap, ok := event.Decoded.(model.SwapEventData)
	if !ok {
		t.Fatalf("decoded type mismatch")
	}

	if swap.Amount0 != "-1000" || swap.Amount1 != "2000" {
		t.Fatalf("amounts mismatch: %+v", swap)
	}
	if swap.ZeroForOne {
		t.Fatalf("negative amount0 is a one-for-zero swap")
	}
	if swap.Tick != -15 {
		t.Fatalf("tick mismatch: %d", swap.Tick)
	}
	if swap.Sender != sender.Hex() || swap.Recipient != recipient.Hex() {
		t.Fatalf("address mismatch")
	}
	if event.Source != model.SourceChain {
		t.Fatalf("source mismatch: %s", event.Source)
	}
	if event.PoolMeta.Fee != 2500 || event.PoolMeta.TickSpacing != 60 || event.PoolMeta.Address != pool.Hex() {
		t.Fatalf("pool meta mismatch: %+v", event.PoolMeta)
	}
}

func TestPoolDecoderMintBurnCollect(t *testing.T) {
	poolABI, err := PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	pool := common.HexToAddress("0x9999999999999999999999999999999999999999")
	decoder := newTestDecoder(t)
	ctx := DecodeContext{Logger: zap.NewNop()}

	sender := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	owner := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	recipient := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")

	mintData, err := poolABI.Events["Mint"].Inputs.NonIndexed().Pack(
		sender,
		big.NewInt(5000),
		big.NewInt(100),
		big.NewInt(200),
	)
	if err != nil {
		t.Fatalf("pack mint: %v", err)
	}

	mintEvent, err := decoder.Decode(buildLogRecord(pool, poolABI.Events["Mint"].ID, mintData, []common.Hash{
		topicFromAddress(owner),
		topicFromInt24(-120),
		topicFromInt24(120),
	}), ctx)
	if err != nil {
		t.Fatalf("decode mint: %v", err)
	}

	mint, ok := mintEvent.Decoded.(model.MintEventData)
	if !ok {
		t.Fatalf("mint type mismatch")
	}
	if mint.TickLower != -120 || mint.TickUpper != 120 {
		t.Fatalf("mint tick mismatch: %+v", mint)
	}
	if mint.Sender != sender.Hex() || mint.Owner != owner.Hex() || mint.Amount != "5000" {
		t.Fatalf("mint fields mismatch: %+v", mint)
	}
	if mintEvent.PoolMeta.Address != pool.Hex() || mintEvent.PoolMeta.Token0 != "" {
		t.Fatalf("uncached pool without caller should carry only its address: %+v", mintEvent.PoolMeta)
	}

	burnData, err := poolABI.Events["Burn"].Inputs.NonIndexed().Pack(
		big.NewInt(7000),
		big.NewInt(300),
		big.NewInt(400),
	)
	if err != nil {
		t.Fatalf("pack burn: %v", err)
	}

	burnEvent, err := decoder.Decode(buildLogRecord(pool, poolABI.Events["Burn"].ID, burnData, []common.Hash{
		topicFromAddress(owner),
		topicFromInt24(-60),
		topicFromInt24(60),
	}), ctx)
	if err != nil {
		t.Fatalf("decode burn: %v", err)
	}

	burn, ok := burnEvent.Decoded.(model.BurnEventData)
	if !ok {
		t.Fatalf("burn type mismatch")
	}
	if burn.Amount != "7000" || burn.Amount0 != "300" || burn.TickLower != -60 {
		t.Fatalf("burn mismatch: %+v", burn)
	}

	collectData, err := poolABI.Events["Collect"].Inputs.NonIndexed().Pack(
		recipient,
		big.NewInt(900),
		big.NewInt(1000),
	)
	if err != nil {
		t.Fatalf("pack collect: %v", err)
	}

	collectEvent, err := decoder.Decode(buildLogRecord(pool, poolABI.Events["Collect"].ID, collectData, []common.Hash{
		topicFromAddress(owner),
		topicFromInt24(-10),
		topicFromInt24(10),
	}), ctx)
	if err != nil {
		t.Fatalf("decode collect: %v", err)
	}

	collect, ok := collectEvent.Decoded.(model.CollectEventData)
	if !ok {
		t.Fatalf("collect type mismatch")
	}
	if collect.Amount0 != "900" || collect.Amount1 != "1000" {
		t.Fatalf("collect amount mismatch: %+v", collect)
	}
	if collect.Recipient != recipient.Hex() {
		t.Fatalf("collect recipient mismatch")
	}
}

func TestPoolDecoderAdminEvents(t *testing.T) {
	poolABI, err := PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	pool := common.HexToAddress("0x4444444444444444444444444444444444444444")
	decoder := newTestDecoder(t)
	ctx := DecodeContext{}

	sqrtPrice, _ := new(big.Int).SetString("79228162514264337593543950336", 10)
	initData, err := poolABI.Events["Initialize"].Inputs.NonIndexed().Pack(sqrtPrice, big.NewInt(-7))
	if err != nil {
		t.Fatalf("pack initialize: %v", err)
	}
	event, err := decoder.Decode(buildLogRecord(pool, poolABI.Events["Initialize"].ID, initData, nil), ctx)
	if err != nil {
		t.Fatalf("decode initialize: %v", err)
	}
	initialize := event.Decoded.(model.InitializeEventData)
	if initialize.SqrtPriceX96 != sqrtPrice.String() || initialize.Tick != -7 {
		t.Fatalf("initialize mismatch: %+v", initialize)
	}

	feeData, err := poolABI.Events["SetFeeProtocol"].Inputs.NonIndexed().Pack(uint8(0), uint8(0), uint8(4), uint8(10))
	if err != nil {
		t.Fatalf("pack set fee protocol: %v", err)
	}
	event, err = decoder.Decode(buildLogRecord(pool, poolABI.Events["SetFeeProtocol"].ID, feeData, nil), ctx)
	if err != nil {
		t.Fatalf("decode set fee protocol: %v", err)
	}
	fee := event.Decoded.(model.SetFeeProtocolEventData)
	if fee.FeeProtocol0New != 4 || fee.FeeProtocol1New != 10 || fee.FeeProtocol0Old != 0 {
		t.Fatalf("fee protocol mismatch: %+v", fee)
	}

	growData, err := poolABI.Events["IncreaseObservationCardinalityNext"].Inputs.NonIndexed().Pack(uint16(1), uint16(50))
	if err != nil {
		t.Fatalf("pack cardinality: %v", err)
	}
	event, err = decoder.Decode(buildLogRecord(pool, poolABI.Events["IncreaseObservationCardinalityNext"].ID, growData, nil), ctx)
	if err != nil {
		t.Fatalf("decode cardinality: %v", err)
	}
	grow := event.Decoded.(model.IncreaseObservationCardinalityNextEventData)
	if grow.ObservationCardinalityNextOld != 1 || grow.ObservationCardinalityNextNew != 50 {
		t.Fatalf("cardinality mismatch: %+v", grow)
	}

	owner := common.HexToAddress("0x5555555555555555555555555555555555555555")
	flashData, err := poolABI.Events["Flash"].Inputs.NonIndexed().Pack(
		big.NewInt(10), big.NewInt(20), big.NewInt(11), big.NewInt(21))
	if err != nil {
		t.Fatalf("pack flash: %v", err)
	}
	event, err = decoder.Decode(buildLogRecord(pool, poolABI.Events["Flash"].ID, flashData, []common.Hash{
		topicFromAddress(owner),
		topicFromAddress(owner),
	}), ctx)
	if err != nil {
		t.Fatalf("decode flash: %v", err)
	}
	flash := event.Decoded.(model.FlashEventData)
	if flash.Paid0 != "11" || flash.Paid1 != "21" || flash.Sender != owner.Hex() {
		t.Fatalf("flash mismatch: %+v", flash)
	}
}

func TestPoolDecoderRejectsMalformedLogs(t *testing.T) {
	poolABI, err := PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")
	decoder := newTestDecoder(t)

	swapID := poolABI.Events["Swap"].ID
	cases := []struct {
		name string
		log  model.LogRecord
	}{
		{name: "no topics", log: model.LogRecord{Address: pool.Hex(), Data: "0x"}},
		{name: "unknown topic0", log: buildLogRecord(pool, common.HexToHash("0x01"), nil, nil)},
		{name: "missing indexed topic", log: buildLogRecord(pool, swapID, nil, []common.Hash{topicFromAddress(pool)})},
		{name: "short data", log: buildLogRecord(pool, swapID, []byte{1, 2, 3}, []common.Hash{
			topicFromAddress(pool),
			topicFromAddress(pool),
		})},
		{name: "bad address", log: model.LogRecord{Address: "pool", Topics: []string{swapID.Hex()}, Data: "0x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := decoder.Decode(tc.log, DecodeContext{}); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestPoolDecoderTopicAliases(t *testing.T) {
	alias := "0x00000000000000000000000000000000000000000000000000000000000000ff"
	decoder, err := NewPoolDecoder(DecoderConfig{Topic0Map: map[string]string{alias: " swap "}})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	if name, ok := decoder.EventName(alias); !ok || name != model.EventSwap {
		t.Fatalf("alias not registered: %s %v", name, ok)
	}
	if len(decoder.Topic0s()) != len(eventNames)+1 {
		t.Fatalf("topic0 count mismatch: %d", len(decoder.Topic0s()))
	}

	if _, err := NewPoolDecoder(DecoderConfig{Topic0Map: map[string]string{alias: "Sync"}}); err == nil {
		t.Fatalf("expected error for unknown event name")
	}
}

// fakeCaller answers pool view calls from canned ABI outputs.
type fakeCaller struct {
	outputs map[string][]interface{}
	calls   int
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls++
	poolABI, err := PoolABI()
	if err != nil {
		return nil, err
	}
	method, err := poolABI.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	values, ok := f.outputs[method.Name]
	if !ok {
		return nil, fmt.Errorf("execution reverted")
	}
	return method.Outputs.Pack(values...)
}

func TestFetchPoolMetaThroughCaller(t *testing.T) {
	poolABI, err := PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	token0 := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	token1 := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	sqrtPrice, _ := new(big.Int).SetString("79228162514264337593543950336", 10)
	caller := &fakeCaller{outputs: map[string][]interface{}{
		"token0":      {token0},
		"token1":      {token1},
		"fee":         {big.NewInt(3000)},
		"tickSpacing": {big.NewInt(60)},
		"liquidity":   {big.NewInt(42)},
		"slot0":       {sqrtPrice, big.NewInt(0), uint16(3), uint16(8), uint16(16), uint8(0x44), true},
	}}

	pool := common.HexToAddress("0x7777777777777777777777777777777777777777")
	cache := NewPoolMetaCache()
	ctx := DecodeContext{Caller: caller, PoolMetaCache: cache, IncludeLiveMeta: true}

	data, err := poolABI.Events["Initialize"].Inputs.NonIndexed().Pack(sqrtPrice, big.NewInt(0))
	if err != nil {
		t.Fatalf("pack initialize: %v", err)
	}
	event, err := newTestDecoder(t).Decode(buildLogRecord(pool, poolABI.Events["Initialize"].ID, data, nil), ctx)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	meta := event.PoolMeta
	if meta.Token0 != token0.Hex() || meta.Token1 != token1.Hex() || meta.Fee != 3000 || meta.TickSpacing != 60 {
		t.Fatalf("meta mismatch: %+v", meta)
	}
	if meta.Liquidity != "42" || meta.Slot0 == nil {
		t.Fatalf("live meta missing: %+v", meta)
	}
	if meta.Slot0.ObservationCardinality != 8 || meta.Slot0.FeeProtocol != 0x44 || !meta.Slot0.Unlocked {
		t.Fatalf("slot0 mismatch: %+v", meta.Slot0)
	}
	if _, ok := cache.Get(pool); !ok {
		t.Fatalf("meta not cached")
	}

	calls := caller.calls
	if _, err := FetchPoolMeta(context.Background(), caller, pool); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if caller.calls != calls+4 {
		t.Fatalf("expected four view calls, got %d", caller.calls-calls)
	}

	delete(caller.outputs, "fee")
	if _, err := FetchPoolMeta(context.Background(), caller, pool); err == nil {
		t.Fatalf("expected error when a view call reverts")
	}
}

func buildLogRecord(pool common.Address, topic0 common.Hash, data []byte, indexed []common.Hash) model.LogRecord {
	topics := make([]string, 0, len(indexed)+1)
	topics = append(topics, topic0.Hex())
	for _, topic := range indexed {
		topics = append(topics, topic.Hex())
	}

	return model.LogRecord{
		ChainID:     1,
		BlockNumber: 12345,
		BlockHash:   "0xabc",
		TxHash:      "0xdef",
		LogIndex:    1,
		Address:     pool.Hex(),
		Topics:      topics,
		Data:        hexutil.Encode(data),
		Timestamp:   1700000000,
	}
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func topicFromInt24(value int32) common.Hash {
	bigVal := big.NewInt(int64(value))
	if value < 0 {
		bigVal = new(big.Int).Add(bigVal, new(big.Int).Lsh(big.NewInt(1), 256))
	}
	return common.BigToHash(bigVal)
}
