package events

import (
	"math/big"

	"swaprelay/core/types"
)

const (
	TypeRelayExecuted = "relay.executed"
)

// RelayExecuted records a successful relayed settlement together with the
// nonce consumed by it.
type RelayExecuted struct {
	Signer    [20]byte
	AssetIn   string
	AssetOut  string
	AmountIn  *big.Int
	AmountOut *big.Int
	Nonce     uint64
}

func (RelayExecuted) EventType() string { return TypeRelayExecuted }

func (e RelayExecuted) Event() *types.Event {
	return &types.Event{
		Type: TypeRelayExecuted,
		Attributes: map[string]string{
			"signer":    formatAddress(e.Signer),
			"assetIn":   e.AssetIn,
			"assetOut":  e.AssetOut,
			"amountIn":  formatAmount(e.AmountIn),
			"amountOut": formatAmount(e.AmountOut),
			"nonce":     uintToString(e.Nonce),
		},
	}
}
