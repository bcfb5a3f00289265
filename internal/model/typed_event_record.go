package model

import "encoding/json"

// TypedEventRecord is TypedEvent as read back from JSONL, with the payload left raw
// until the event name is known.
type TypedEventRecord struct {
	Source      string          `json:"source"`
	Seq         uint64          `json:"seq,omitempty"`
	ChainID     uint64          `json:"chain_id,omitempty"`
	BlockNumber uint64          `json:"block_number,omitempty"`
	BlockHash   string          `json:"block_hash,omitempty"`
	TxHash      string          `json:"tx_hash,omitempty"`
	LogIndex    uint64          `json:"log_index,omitempty"`
	Address     string          `json:"address"`
	EventName   string          `json:"event_name"`
	Timestamp   uint64          `json:"timestamp"`
	Decoded     json.RawMessage `json:"decoded"`
	PoolMeta    PoolMeta        `json:"pool_meta"`
	Raw         *RawLogRef      `json:"raw,omitempty"`
}
