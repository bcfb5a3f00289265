package dex

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"go.uber.org/zap"

	"liquidityCore/internal/model"
)

// Decoder defines a log decoder.
type Decoder interface {
	CanDecode(topic0 string) bool
	Decode(log model.LogRecord, ctx DecodeContext) (*model.TypedEvent, error)
}

// ContractCaller performs read-only contract calls. *chain.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// DecodeContext provides shared dependencies for decoders. Caller is optional: without
// it, pools missing from PoolMetaCache decode with an address-only PoolMeta.
type DecodeContext struct {
	Context         context.Context
	Caller          ContractCaller
	PoolMetaCache   *PoolMetaCache
	Logger          *zap.Logger
	IncludeLiveMeta bool
}
