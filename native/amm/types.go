package amm

import "math/big"

// Pool describes the two-sided reserve ledger. Reserves are denominated in
// the smallest unit of their respective asset and only change together with a
// matching balance movement on the pool's vault account.
type Pool struct {
	Address   [20]byte `json:"address"`
	AssetA    string   `json:"assetA"`
	AssetB    string   `json:"assetB"`
	DecimalsA uint8    `json:"decimalsA"`
	DecimalsB uint8    `json:"decimalsB"`
	ReserveA  *big.Int `json:"reserveA"`
	ReserveB  *big.Int `json:"reserveB"`
}

// NewPool constructs a pool with zeroed reserves.
func NewPool(address [20]byte, assetA string, decimalsA uint8, assetB string, decimalsB uint8) *Pool {
	return &Pool{
		Address:   address,
		AssetA:    assetA,
		AssetB:    assetB,
		DecimalsA: decimalsA,
		DecimalsB: decimalsB,
		ReserveA:  big.NewInt(0),
		ReserveB:  big.NewInt(0),
	}
}

// HasAsset reports whether the asset is one of the pool's configured pair.
func (p *Pool) HasAsset(asset string) bool {
	if p == nil {
		return false
	}
	return asset == p.AssetA || asset == p.AssetB
}

// Reserve returns the current reserve of the supplied asset, never nil. The
// asset must belong to the pool.
func (p *Pool) Reserve(asset string) *big.Int {
	switch asset {
	case p.AssetA:
		if p.ReserveA == nil {
			return big.NewInt(0)
		}
		return p.ReserveA
	case p.AssetB:
		if p.ReserveB == nil {
			return big.NewInt(0)
		}
		return p.ReserveB
	}
	return big.NewInt(0)
}

// Decimals returns the decimal count configured for the asset.
func (p *Pool) Decimals(asset string) uint8 {
	if asset == p.AssetA {
		return p.DecimalsA
	}
	return p.DecimalsB
}

func (p *Pool) setReserve(asset string, amount *big.Int) {
	value := new(big.Int).Set(amount)
	switch asset {
	case p.AssetA:
		p.ReserveA = value
	case p.AssetB:
		p.ReserveB = value
	}
}

// SettleResult summarises a completed swap settlement.
type SettleResult struct {
	Signer    [20]byte
	AssetIn   string
	AssetOut  string
	AmountIn  *big.Int
	AmountOut *big.Int
	Fee       *big.Int
}
