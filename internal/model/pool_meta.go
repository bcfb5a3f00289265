package model

// PoolMeta identifies a pool and, for engine events, carries its state after the event.
type PoolMeta struct {
	Address     string     `json:"address,omitempty"`
	Token0      string     `json:"token0"`
	Token1      string     `json:"token1"`
	Fee         uint32     `json:"fee"`
	TickSpacing int32      `json:"tick_spacing"`
	Liquidity   string     `json:"liquidity,omitempty"`
	Slot0       *PoolSlot0 `json:"slot0,omitempty"`
}

// PoolSlot0 mirrors the pool's slot0 record.
type PoolSlot0 struct {
	SqrtPriceX96               string `json:"sqrt_price_x96"`
	Tick                       int32  `json:"tick"`
	ObservationIndex           uint16 `json:"observation_index"`
	ObservationCardinality     uint16 `json:"observation_cardinality"`
	ObservationCardinalityNext uint16 `json:"observation_cardinality_next"`
	FeeProtocol                uint8  `json:"fee_protocol"`
	Unlocked                   bool   `json:"unlocked"`
}
