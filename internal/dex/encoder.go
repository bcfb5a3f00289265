package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"liquidityCore/internal/model"
)

// Encoder turns engine events back into the logs an on-chain pool would have emitted.
type Encoder struct {
	poolABI abi.ABI
	chainID uint64
}

func NewEncoder(chainID uint64) (*Encoder, error) {
	parsed, err := PoolABI()
	if err != nil {
		return nil, err
	}
	return &Encoder{poolABI: parsed, chainID: chainID}, nil
}

// Encode builds the log for event. The engine sequence number stands in for the block
// number, one event per block.
func (e *Encoder) Encode(event model.TypedEvent) (model.LogRecord, error) {
	abiEvent, ok := e.poolABI.Events[event.EventName]
	if !ok {
		return model.LogRecord{}, fmt.Errorf("unsupported event name: %s", event.EventName)
	}
	values, err := abiValues(event.Decoded)
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("encode %s: %w", event.EventName, err)
	}

	topics := []string{abiEvent.ID.Hex()}
	nonIndexed := make([]interface{}, 0, len(abiEvent.Inputs))
	for _, input := range abiEvent.Inputs {
		value, ok := values[input.Name]
		if !ok {
			return model.LogRecord{}, fmt.Errorf("encode %s: missing %s", event.EventName, input.Name)
		}
		if !input.Indexed {
			nonIndexed = append(nonIndexed, value)
			continue
		}
		if n, ok := value.(*big.Int); ok {
			value = new(big.Int).Set(n)
		}
		hashes, err := abi.MakeTopics([]interface{}{value})
		if err != nil {
			return model.LogRecord{}, fmt.Errorf("encode %s topic %s: %w", event.EventName, input.Name, err)
		}
		topics = append(topics, hashes[0][0].Hex())
	}

	data, err := abiEvent.Inputs.NonIndexed().Pack(nonIndexed...)
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("pack %s: %w", event.EventName, err)
	}

	return model.LogRecord{
		ChainID:     e.chainID,
		BlockNumber: event.Seq,
		BlockHash:   common.BigToHash(new(big.Int).SetUint64(event.Seq)).Hex(),
		TxHash:      common.BigToHash(new(big.Int).SetUint64(event.Seq)).Hex(),
		Address:     event.Address,
		Topics:      topics,
		Data:        hexutil.Encode(data),
		Timestamp:   event.Timestamp,
	}, nil
}

// LogWriter receives encoded logs, one value per call.
type LogWriter interface {
	Write(value interface{}) error
}

// LogSink is an event sink that writes every engine event as the raw log a deployed
// pool would have emitted, so engine runs can be fed back through replay.
type LogSink struct {
	Encoder *Encoder
	Out     LogWriter
}

func (s *LogSink) PutEventBatch(events []model.TypedEvent) error {
	for _, event := range events {
		record, err := s.Encoder.Encode(event)
		if err != nil {
			return err
		}
		if err := s.Out.Write(record); err != nil {
			return fmt.Errorf("write log %s: %w", record.ID(), err)
		}
	}
	return nil
}

// abiValues maps a decoded payload onto the pool ABI's argument names.
func abiValues(decoded interface{}) (map[string]interface{}, error) {
	var b valueBuilder
	switch d := decoded.(type) {
	case model.InitializeEventData:
		b.integer("sqrtPriceX96", d.SqrtPriceX96)
		b.tick("tick", d.Tick)
	case model.SwapEventData:
		b.address("sender", d.Sender)
		b.address("recipient", d.Recipient)
		b.integer("amount0", d.Amount0)
		b.integer("amount1", d.Amount1)
		b.integer("sqrtPriceX96", d.SqrtPriceX96)
		b.integer("liquidity", d.Liquidity)
		b.tick("tick", d.Tick)
	case model.MintEventData:
		b.address("sender", d.Sender)
		b.address("owner", d.Owner)
		b.tick("tickLower", d.TickLower)
		b.tick("tickUpper", d.TickUpper)
		b.integer("amount", d.Amount)
		b.integer("amount0", d.Amount0)
		b.integer("amount1", d.Amount1)
	case model.BurnEventData:
		b.address("owner", d.Owner)
		b.tick("tickLower", d.TickLower)
		b.tick("tickUpper", d.TickUpper)
		b.integer("amount", d.Amount)
		b.integer("amount0", d.Amount0)
		b.integer("amount1", d.Amount1)
	case model.CollectEventData:
		b.address("owner", d.Owner)
		b.address("recipient", d.Recipient)
		b.tick("tickLower", d.TickLower)
		b.tick("tickUpper", d.TickUpper)
		b.integer("amount0", d.Amount0)
		b.integer("amount1", d.Amount1)
	case model.SetFeeProtocolEventData:
		b.set("feeProtocol0Old", d.FeeProtocol0Old)
		b.set("feeProtocol1Old", d.FeeProtocol1Old)
		b.set("feeProtocol0New", d.FeeProtocol0New)
		b.set("feeProtocol1New", d.FeeProtocol1New)
	case model.CollectProtocolEventData:
		b.address("sender", d.Sender)
		b.address("recipient", d.Recipient)
		b.integer("amount0", d.Amount0)
		b.integer("amount1", d.Amount1)
	case model.IncreaseObservationCardinalityNextEventData:
		b.set("observationCardinalityNextOld", d.ObservationCardinalityNextOld)
		b.set("observationCardinalityNextNew", d.ObservationCardinalityNextNew)
	case model.FlashEventData:
		b.address("sender", d.Sender)
		b.address("recipient", d.Recipient)
		b.integer("amount0", d.Amount0)
		b.integer("amount1", d.Amount1)
		b.integer("paid0", d.Paid0)
		b.integer("paid1", d.Paid1)
	default:
		return nil, fmt.Errorf("unsupported payload %T", decoded)
	}
	return b.values, b.err
}

type valueBuilder struct {
	values map[string]interface{}
	err    error
}

func (b *valueBuilder) set(name string, v interface{}) {
	if b.values == nil {
		b.values = make(map[string]interface{})
	}
	b.values[name] = v
}

func (b *valueBuilder) integer(name, dec string) {
	n, ok := new(big.Int).SetString(dec, 10)
	if !ok {
		if b.err == nil {
			b.err = fmt.Errorf("%s: invalid integer %q", name, dec)
		}
		return
	}
	b.set(name, n)
}

func (b *valueBuilder) tick(name string, t int32) {
	b.set(name, big.NewInt(int64(t)))
}

func (b *valueBuilder) address(name, hex string) {
	if !common.IsHexAddress(hex) {
		if b.err == nil {
			b.err = fmt.Errorf("%s: invalid address %q", name, hex)
		}
		return
	}
	b.set(name, common.HexToAddress(hex))
}
