package model

import "time"

// WindowStats summarises the swaps of one pool inside one time window. Amounts are raw
// token units.
type WindowStats struct {
	PoolAddress    string    `json:"pool_address"`
	WindowSizeSecs int64     `json:"window_size_seconds"`
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
	SwapCount      uint64    `json:"swap_count"`
	Volume0        string    `json:"volume0"`
	Volume1        string    `json:"volume1"`
	Fee0           string    `json:"fee0"`
	Fee1           string    `json:"fee1"`
	ProtocolFee0   string    `json:"protocol_fee0"`
	ProtocolFee1   string    `json:"protocol_fee1"`
	FeeRate0       *string   `json:"fee_rate0,omitempty"`
	FeeRate1       *string   `json:"fee_rate1,omitempty"`
	TVL0           *string   `json:"tvl0,omitempty"`
	TVL1           *string   `json:"tvl1,omitempty"`
	APR            *string   `json:"apr,omitempty"`
	CloseTick      int32     `json:"close_tick"`
	CloseSqrtPrice string    `json:"close_sqrt_price_x96"`
	FeeMethod      string    `json:"fee_method"`
	TVLMethod      string    `json:"tvl_method"`
}
