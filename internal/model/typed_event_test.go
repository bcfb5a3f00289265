package model

import (
	"testing"

	"github.com/sugawarayuuta/sonnet"
)

func TestSwapEventDataJSONStringFields(t *testing.T) {
	payload := SwapEventData{
		Sender:       "0x1111111111111111111111111111111111111111",
		Recipient:    "0x2222222222222222222222222222222222222222",
		Amount0:      "12345678901234567890",
		Amount1:      "-42",
		SqrtPriceX96: "79228162514264337593543950336",
		Liquidity:    "5000000000000000000",
		Tick:         10,
	}

	data, err := sonnet.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := sonnet.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	for _, key := range []string{"amount0", "amount1", "sqrt_price_x96", "liquidity"} {
		if _, ok := decoded[key].(string); !ok {
			t.Fatalf("%s should be string", key)
		}
	}
	if _, ok := decoded["fee_amount"]; ok {
		t.Fatalf("fee_amount should be omitted for decoded logs")
	}
}

func TestEngineEventOmitsLogCoordinates(t *testing.T) {
	event := TypedEvent{
		Source:    SourceEngine,
		Seq:       3,
		Address:   "0x1111111111111111111111111111111111111111",
		EventName: EventInitialize,
		Timestamp: 100,
		Decoded:   InitializeEventData{SqrtPriceX96: "79228162514264337593543950336"},
	}

	data, err := sonnet.Marshal(event)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var record TypedEventRecord
	if err := sonnet.Unmarshal(data, &record); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if record.Source != SourceEngine || record.Seq != 3 || record.EventName != EventInitialize {
		t.Fatalf("record mismatch: %+v", record)
	}

	var fields map[string]interface{}
	if err := sonnet.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, key := range []string{"block_number", "tx_hash", "log_index"} {
		if _, ok := fields[key]; ok {
			t.Fatalf("%s should be omitted", key)
		}
	}

	var payload InitializeEventData
	if err := sonnet.Unmarshal(record.Decoded, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.SqrtPriceX96 != "79228162514264337593543950336" {
		t.Fatalf("payload mismatch: %+v", payload)
	}
}
