package model

// Replay failure stages.
const (
	StageDecode  = "decode"
	StageApply   = "apply"
	StageCompare = "compare"
)

// ReplayError records a chain log that could not be decoded or applied to the engine,
// or whose effect on the engine differs from what the log reports.
type ReplayError struct {
	Stage       string `json:"stage"`
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	Address     string `json:"address"`
	EventName   string `json:"event_name,omitempty"`
	Topic0      string `json:"topic0"`
	Error       string `json:"error"`
}
