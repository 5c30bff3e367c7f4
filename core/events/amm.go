package events

import (
	"math/big"

	"swaprelay/core/types"
)

const (
	TypeLiquidityAdded   = "amm.liquidity_added"
	TypeLiquidityRemoved = "amm.liquidity_removed"
	TypeSwapSettled      = "amm.swap_settled"
	TypeFeeRateUpdated   = "amm.fee_rate_updated"
)

// LiquidityAdded records an administrator deposit into one side of the pool.
type LiquidityAdded struct {
	Asset  string
	Amount *big.Int
}

func (LiquidityAdded) EventType() string { return TypeLiquidityAdded }

func (e LiquidityAdded) Event() *types.Event {
	return &types.Event{
		Type: TypeLiquidityAdded,
		Attributes: map[string]string{
			"asset":  e.Asset,
			"amount": formatAmount(e.Amount),
		},
	}
}

// LiquidityRemoved records an administrator withdrawal from one side of the
// pool.
type LiquidityRemoved struct {
	Asset  string
	Amount *big.Int
}

func (LiquidityRemoved) EventType() string { return TypeLiquidityRemoved }

func (e LiquidityRemoved) Event() *types.Event {
	return &types.Event{
		Type: TypeLiquidityRemoved,
		Attributes: map[string]string{
			"asset":  e.Asset,
			"amount": formatAmount(e.Amount),
		},
	}
}

// SwapSettled records a completed settlement, including both legs of the
// exchange.
type SwapSettled struct {
	Signer    [20]byte
	AssetIn   string
	AssetOut  string
	AmountIn  *big.Int
	AmountOut *big.Int
}

func (SwapSettled) EventType() string { return TypeSwapSettled }

func (e SwapSettled) Event() *types.Event {
	return &types.Event{
		Type: TypeSwapSettled,
		Attributes: map[string]string{
			"signer":    formatAddress(e.Signer),
			"assetIn":   e.AssetIn,
			"assetOut":  e.AssetOut,
			"amountIn":  formatAmount(e.AmountIn),
			"amountOut": formatAmount(e.AmountOut),
		},
	}
}

// FeeRateUpdated records an administrator fee rate change.
type FeeRateUpdated struct {
	OldRateBps uint32
	NewRateBps uint32
}

func (FeeRateUpdated) EventType() string { return TypeFeeRateUpdated }

func (e FeeRateUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeFeeRateUpdated,
		Attributes: map[string]string{
			"oldRateBps": uintToString(uint64(e.OldRateBps)),
			"newRateBps": uintToString(uint64(e.NewRateBps)),
		},
	}
}
