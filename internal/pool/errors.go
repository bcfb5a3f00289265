package pool

import (
	"errors"

	"liquidityCore/internal/fixedpoint"
	"liquidityCore/internal/oracle"
	"liquidityCore/internal/position"
)

// Failure kinds. Every error returned by a pool operation matches exactly one of these
// with errors.Is; nested arithmetic errors keep their own identity underneath.
var (
	ErrInvalidRange       = errors.New("invalid tick range")
	ErrLiquidityOverflow  = fixedpoint.ErrLiquidityOverflow
	ErrArithmeticOverflow = fixedpoint.ErrArithmeticOverflow
	ErrInsufficientInput  = errors.New("insufficient input")
	ErrStaleOracleQuery   = oracle.ErrStaleObservation
	ErrLocked             = errors.New("pool locked")
)

var (
	ErrNotInitialized     = errors.New("pool not initialized")
	ErrAlreadyInitialized = errors.New("pool already initialized")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidPriceLimit  = errors.New("invalid price limit")
	ErrNoLiquidity        = errors.New("swap moved no tokens")
	ErrSwapStepLimit      = errors.New("swap step limit exceeded")
	ErrUnauthorized       = errors.New("caller is not the pool owner")
	ErrInvalidFeeProtocol = errors.New("invalid fee protocol")
	ErrNoPosition         = position.ErrNoPosition
	ErrMissingCallback    = errors.New("callback required")
	ErrConfigMismatch     = errors.New("stored pool does not match config")
)
