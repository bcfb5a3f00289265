package dex

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"liquidityCore/internal/model"
)

// eventNames lists the pool events the decoder understands.
var eventNames = []string{
	model.EventInitialize,
	model.EventSwap,
	model.EventMint,
	model.EventBurn,
	model.EventCollect,
	model.EventSetFeeProtocol,
	model.EventCollectProtocol,
	model.EventIncreaseObservationCardinalityNext,
	model.EventFlash,
}

var payloadDecoders = map[string]func(*fieldReader) interface{}{
	model.EventInitialize: func(r *fieldReader) interface{} {
		return model.InitializeEventData{
			SqrtPriceX96: r.decimal("sqrtPriceX96"),
			Tick:         r.tick("tick"),
		}
	},
	model.EventSwap: func(r *fieldReader) interface{} {
		amount0 := r.integer("amount0")
		return model.SwapEventData{
			Sender:       r.address("sender"),
			Recipient:    r.address("recipient"),
			Amount0:      amount0.String(),
			Amount1:      r.decimal("amount1"),
			SqrtPriceX96: r.decimal("sqrtPriceX96"),
			Liquidity:    r.decimal("liquidity"),
			Tick:         r.tick("tick"),
			ZeroForOne:   amount0.Sign() > 0,
		}
	},
	model.EventMint: func(r *fieldReader) interface{} {
		return model.MintEventData{
			Sender:    r.address("sender"),
			Owner:     r.address("owner"),
			TickLower: r.tick("tickLower"),
			TickUpper: r.tick("tickUpper"),
			Amount:    r.decimal("amount"),
			Amount0:   r.decimal("amount0"),
			Amount1:   r.decimal("amount1"),
		}
	},
	model.EventBurn: func(r *fieldReader) interface{} {
		return model.BurnEventData{
			Owner:     r.address("owner"),
			TickLower: r.tick("tickLower"),
			TickUpper: r.tick("tickUpper"),
			Amount:    r.decimal("amount"),
			Amount0:   r.decimal("amount0"),
			Amount1:   r.decimal("amount1"),
		}
	},
	model.EventCollect: func(r *fieldReader) interface{} {
		return model.CollectEventData{
			Owner:     r.address("owner"),
			Recipient: r.address("recipient"),
			TickLower: r.tick("tickLower"),
			TickUpper: r.tick("tickUpper"),
			Amount0:   r.decimal("amount0"),
			Amount1:   r.decimal("amount1"),
		}
	},
	model.EventSetFeeProtocol: func(r *fieldReader) interface{} {
		return model.SetFeeProtocolEventData{
			FeeProtocol0Old: r.uint8("feeProtocol0Old"),
			FeeProtocol1Old: r.uint8("feeProtocol1Old"),
			FeeProtocol0New: r.uint8("feeProtocol0New"),
			FeeProtocol1New: r.uint8("feeProtocol1New"),
		}
	},
	model.EventCollectProtocol: func(r *fieldReader) interface{} {
		return model.CollectProtocolEventData{
			Sender:    r.address("sender"),
			Recipient: r.address("recipient"),
			Amount0:   r.decimal("amount0"),
			Amount1:   r.decimal("amount1"),
		}
	},
	model.EventIncreaseObservationCardinalityNext: func(r *fieldReader) interface{} {
		return model.IncreaseObservationCardinalityNextEventData{
			ObservationCardinalityNextOld: r.uint16("observationCardinalityNextOld"),
			ObservationCardinalityNextNew: r.uint16("observationCardinalityNextNew"),
		}
	},
	model.EventFlash: func(r *fieldReader) interface{} {
		return model.FlashEventData{
			Sender:    r.address("sender"),
			Recipient: r.address("recipient"),
			Amount0:   r.decimal("amount0"),
			Amount1:   r.decimal("amount1"),
			Paid0:     r.decimal("paid0"),
			Paid1:     r.decimal("paid1"),
		}
	},
}

// DecoderConfig configures decoder behavior.
type DecoderConfig struct {
	// Topic0Map adds topic0 aliases for forks that emit the same layout under a
	// different signature.
	Topic0Map map[string]string
}

// PoolDecoder decodes Uniswap V3 style pool events.
type PoolDecoder struct {
	poolABI     abi.ABI
	topicToName map[string]string
}

// NewPoolDecoder builds a pool decoder.
func NewPoolDecoder(cfg DecoderConfig) (*PoolDecoder, error) {
	parsed, err := PoolABI()
	if err != nil {
		return nil, err
	}

	topicToName := make(map[string]string, len(eventNames)+len(cfg.Topic0Map))
	for _, name := range eventNames {
		topicToName[strings.ToLower(parsed.Events[name].ID.Hex())] = name
	}

	for topic0, name := range cfg.Topic0Map {
		original := name
		name = normalizeEventName(name)
		if name == "" {
			return nil, fmt.Errorf("unsupported event name in topic0 map: %s", original)
		}
		if topic0 == "" {
			continue
		}
		topicToName[strings.ToLower(topic0)] = name
	}

	return &PoolDecoder{
		poolABI:     parsed,
		topicToName: topicToName,
	}, nil
}

// Topic0s returns every topic0 the decoder accepts, for log filters.
func (d *PoolDecoder) Topic0s() []common.Hash {
	out := make([]common.Hash, 0, len(d.topicToName))
	for topic := range d.topicToName {
		out = append(out, common.HexToHash(topic))
	}
	return out
}

// EventName returns the event decoded for topic0.
func (d *PoolDecoder) EventName(topic0 string) (string, bool) {
	name, ok := d.topicToName[strings.ToLower(topic0)]
	return name, ok
}

// CanDecode checks if the topic0 is supported.
func (d *PoolDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a TypedEvent.
func (d *PoolDecoder) Decode(log model.LogRecord, ctx DecodeContext) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[strings.ToLower(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}

	if !common.IsHexAddress(log.Address) {
		return nil, fmt.Errorf("invalid pool address: %s", log.Address)
	}
	pool := common.HexToAddress(log.Address)

	values, err := d.unpack(d.poolABI.Events[name], log)
	if err != nil {
		return nil, err
	}
	reader := &fieldReader{event: name, values: values}
	decoded := payloadDecoders[name](reader)
	if reader.err != nil {
		return nil, reader.err
	}

	poolMeta, err := getPoolMeta(ctx, pool, log.BlockNumber)
	if err != nil {
		return nil, err
	}
	return buildTypedEvent(log, name, decoded, poolMeta), nil
}

func (d *PoolDecoder) unpack(event abi.Event, log model.LogRecord) (map[string]interface{}, error) {
	topics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return nil, err
	}
	values := make(map[string]interface{}, len(event.Inputs))
	if err := abi.ParseTopicsIntoMap(values, indexedArguments(event.Inputs), topics); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}

	data, err := hexutil.Decode(log.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	if err := event.Inputs.NonIndexed().UnpackIntoMap(values, data); err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func normalizeEventName(name string) string {
	name = strings.TrimSpace(name)
	for _, known := range eventNames {
		if strings.EqualFold(name, known) {
			return known
		}
	}
	return ""
}

func getPoolMeta(ctx DecodeContext, pool common.Address, blockNumber uint64) (model.PoolMeta, error) {
	var meta model.PoolMeta
	var ok bool
	if ctx.PoolMetaCache != nil {
		meta, ok = ctx.PoolMetaCache.Get(pool)
	}
	if !ok && ctx.Caller == nil {
		return model.PoolMeta{Address: pool.Hex()}, nil
	}

	callCtx := ctx.Context
	if callCtx == nil {
		callCtx = context.Background()
	}

	if !ok {
		var err error
		meta, err = FetchPoolMeta(callCtx, ctx.Caller, pool)
		if err != nil {
			return model.PoolMeta{}, err
		}
		if ctx.PoolMetaCache != nil {
			ctx.PoolMetaCache.Set(pool, meta)
		}
	}
	meta.Address = pool.Hex()

	if ctx.IncludeLiveMeta && ctx.Caller != nil {
		live, err := FetchPoolState(callCtx, ctx.Caller, pool, blockNumber)
		if err != nil {
			if ctx.Logger != nil {
				ctx.Logger.Debug("live pool state unavailable", zap.String("pool", pool.Hex()), zap.Error(err))
			}
			return meta, nil
		}
		meta.Liquidity = live.Liquidity
		meta.Slot0 = live.Slot0
	}
	return meta, nil
}

func buildTypedEvent(log model.LogRecord, name string, decoded interface{}, meta model.PoolMeta) *model.TypedEvent {
	raw := &model.RawLogRef{Topic0: log.Topics[0], Data: log.Data}
	return &model.TypedEvent{
		Source:      model.SourceChain,
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		Address:     log.Address,
		EventName:   name,
		Timestamp:   log.Timestamp,
		Decoded:     decoded,
		PoolMeta:    meta,
		Raw:         raw,
	}
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}
