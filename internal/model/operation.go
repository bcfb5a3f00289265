package model

// Operation kinds accepted by the simulator.
const (
	OpFund                               = "fund"
	OpAdvanceTime                        = "advance_time"
	OpInitialize                         = "initialize"
	OpMint                               = "mint"
	OpBurn                               = "burn"
	OpCollect                            = "collect"
	OpSwap                               = "swap"
	OpSetFeeProtocol                     = "set_fee_protocol"
	OpCollectProtocol                    = "collect_protocol"
	OpIncreaseObservationCardinalityNext = "increase_observation_cardinality_next"
)

// Operation is one line of a simulation script. Amounts are decimal strings; which
// fields apply depends on Op.
type Operation struct {
	Op                string `json:"op"`
	Time              uint32 `json:"time,omitempty"`
	Seconds           uint32 `json:"seconds,omitempty"`
	Sender            string `json:"sender,omitempty"`
	Owner             string `json:"owner,omitempty"`
	Recipient         string `json:"recipient,omitempty"`
	TickLower         int32  `json:"tick_lower,omitempty"`
	TickUpper         int32  `json:"tick_upper,omitempty"`
	Amount            string `json:"amount,omitempty"`
	Amount0           string `json:"amount0,omitempty"`
	Amount1           string `json:"amount1,omitempty"`
	ZeroForOne        bool   `json:"zero_for_one,omitempty"`
	AmountSpecified   string `json:"amount_specified,omitempty"`
	SqrtPriceX96      string `json:"sqrt_price_x96,omitempty"`
	SqrtPriceLimitX96 string `json:"sqrt_price_limit_x96,omitempty"`
	FeeProtocol0      uint8  `json:"fee_protocol0,omitempty"`
	FeeProtocol1      uint8  `json:"fee_protocol1,omitempty"`
	CardinalityNext   uint16 `json:"cardinality_next,omitempty"`
	ExpectError       string `json:"expect_error,omitempty"`
}
