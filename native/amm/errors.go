package amm

import "errors"

var (
	// ErrUnauthorized indicates the caller is neither the administrator nor
	// the registered relay.
	ErrUnauthorized = errors.New("amm: unauthorized caller")
	// ErrInvalidAdministrator indicates a setter was invoked by a non-admin.
	ErrInvalidAdministrator = errors.New("amm: invalid administrator")
	// ErrInvalidPair indicates the requested asset pair does not match the
	// pool's configured pair.
	ErrInvalidPair = errors.New("amm: invalid pair")
	// ErrInvalidAsset indicates the asset is not one of the pool's two
	// configured assets.
	ErrInvalidAsset = errors.New("amm: invalid asset")
	// ErrInvalidAmount indicates a nil, zero or negative amount.
	ErrInvalidAmount = errors.New("amm: invalid amount")
	// ErrInsufficientBalance indicates the paying account cannot cover the
	// requested amount.
	ErrInsufficientBalance = errors.New("amm: insufficient balance")
	// ErrSlippageExceeded indicates the computed output fell below the
	// requested minimum.
	ErrSlippageExceeded = errors.New("amm: slippage exceeded")
	// ErrInsufficientLiquidity indicates the requested movement would drain
	// or exceed a reserve.
	ErrInsufficientLiquidity = errors.New("amm: insufficient liquidity")
	// ErrInvalidFeeRate indicates a fee rate outside [0, 10000] bps.
	ErrInvalidFeeRate = errors.New("amm: invalid fee rate")
)
