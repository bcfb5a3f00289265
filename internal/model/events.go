package model

// Pool event names shared by the log decoder and the engine.
const (
	EventInitialize                         = "Initialize"
	EventMint                               = "Mint"
	EventBurn                               = "Burn"
	EventCollect                            = "Collect"
	EventSwap                               = "Swap"
	EventSetFeeProtocol                     = "SetFeeProtocol"
	EventCollectProtocol                    = "CollectProtocol"
	EventIncreaseObservationCardinalityNext = "IncreaseObservationCardinalityNext"
	EventFlash                              = "Flash"
)

// SwapEventData is the Swap event payload. FeeAmount and ProtocolFee are only known
// for engine-emitted swaps; decoded chain logs leave them empty.
type SwapEventData struct {
	Sender       string `json:"sender"`
	Recipient    string `json:"recipient"`
	Amount0      string `json:"amount0"`
	Amount1      string `json:"amount1"`
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Liquidity    string `json:"liquidity"`
	Tick         int32  `json:"tick"`
	FeeAmount    string `json:"fee_amount,omitempty"`
	ProtocolFee  string `json:"protocol_fee,omitempty"`
	ZeroForOne   bool   `json:"zero_for_one"`
}

// MintEventData is the Mint event payload.
type MintEventData struct {
	Sender    string `json:"sender"`
	Owner     string `json:"owner"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Amount    string `json:"amount"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// BurnEventData is the Burn event payload.
type BurnEventData struct {
	Owner     string `json:"owner"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Amount    string `json:"amount"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// CollectEventData is the Collect event payload.
type CollectEventData struct {
	Owner     string `json:"owner"`
	Recipient string `json:"recipient"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// InitializeEventData is the Initialize event payload.
type InitializeEventData struct {
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Tick         int32  `json:"tick"`
}

// SetFeeProtocolEventData is the SetFeeProtocol event payload.
type SetFeeProtocolEventData struct {
	FeeProtocol0Old uint8 `json:"fee_protocol0_old"`
	FeeProtocol1Old uint8 `json:"fee_protocol1_old"`
	FeeProtocol0New uint8 `json:"fee_protocol0_new"`
	FeeProtocol1New uint8 `json:"fee_protocol1_new"`
}

// CollectProtocolEventData is the CollectProtocol event payload.
type CollectProtocolEventData struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// IncreaseObservationCardinalityNextEventData is the oracle growth event payload.
type IncreaseObservationCardinalityNextEventData struct {
	ObservationCardinalityNextOld uint16 `json:"observation_cardinality_next_old"`
	ObservationCardinalityNextNew uint16 `json:"observation_cardinality_next_new"`
}

// FlashEventData is decoded from chain logs only. The engine does not lend.
type FlashEventData struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
	Paid0     string `json:"paid0"`
	Paid1     string `json:"paid1"`
}
