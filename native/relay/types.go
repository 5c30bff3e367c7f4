package relay

import "math/big"

// SwapRequest is the typed message a signer authorizes off-chain. The field
// list and order are part of the wire format: any change invalidates all
// previously issued signatures.
type SwapRequest struct {
	Pool         [20]byte `json:"pool"`
	Signer       [20]byte `json:"signer"`
	AssetIn      string   `json:"assetIn"`
	AssetOut     string   `json:"assetOut"`
	AmountIn     *big.Int `json:"amountIn"`
	MinAmountOut *big.Int `json:"minAmountOut"`
	Nonce        uint64   `json:"nonce"`
	Deadline     int64    `json:"deadline"`
}
