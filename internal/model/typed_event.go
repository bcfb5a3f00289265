package model

// Event sources.
const (
	SourceEngine = "engine"
	SourceChain  = "chain"
)

// TypedEvent is a pool event, either decoded from a chain log or emitted by the engine
// after a committed operation. Engine events carry a per-pool sequence number instead
// of log coordinates.
type TypedEvent struct {
	Source      string      `json:"source"`
	Seq         uint64      `json:"seq,omitempty"`
	ChainID     uint64      `json:"chain_id,omitempty"`
	BlockNumber uint64      `json:"block_number,omitempty"`
	BlockHash   string      `json:"block_hash,omitempty"`
	TxHash      string      `json:"tx_hash,omitempty"`
	LogIndex    uint64      `json:"log_index,omitempty"`
	Address     string      `json:"address"`
	EventName   string      `json:"event_name"`
	Timestamp   uint64      `json:"timestamp"`
	Decoded     interface{} `json:"decoded"`
	PoolMeta    PoolMeta    `json:"pool_meta"`
	Raw         *RawLogRef  `json:"raw,omitempty"`
}

// RawLogRef keeps a minimal raw reference for traceability.
type RawLogRef struct {
	Topic0 string `json:"topic0"`
	Data   string `json:"data"`
}
