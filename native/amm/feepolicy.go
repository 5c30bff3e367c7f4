package amm

import (
	"math/big"
	"sync"
)

const feeDenominatorBps = 10_000

// FeePolicy prices the fee owed on a settlement. Implementations must be
// side-effect free: the fee is recomputed from the trade parameters and the
// reserves, never trusted from a caller-supplied output.
type FeePolicy interface {
	// GetFee returns the fee owed on the raw constant-product output for the
	// supplied trade. All amounts share one fractional scale; the returned
	// fee never exceeds the raw output.
	GetFee(assetIn, assetOut string, amountIn, reserveIn, reserveOut *big.Int) *big.Int
	// RateBps reports the currently configured rate in basis points.
	RateBps() uint32
}

// MutableFeePolicy extends FeePolicy with an administrator-driven rate
// update. Rate changes apply to the next settlement, never retroactively.
type MutableFeePolicy interface {
	FeePolicy
	SetRate(rateBps uint32) error
}

// BpsFeePolicy charges a flat basis-point rate on the swap output.
type BpsFeePolicy struct {
	mu      sync.RWMutex
	rateBps uint32
}

// NewBpsFeePolicy constructs a policy with the supplied rate. The rate is
// bounded to [0, 10000] bps.
func NewBpsFeePolicy(rateBps uint32) (*BpsFeePolicy, error) {
	if rateBps > feeDenominatorBps {
		return nil, ErrInvalidFeeRate
	}
	return &BpsFeePolicy{rateBps: rateBps}, nil
}

// RateBps returns the configured rate.
func (p *BpsFeePolicy) RateBps() uint32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rateBps
}

// SetRate updates the rate, bounded to [0, 10000] bps.
func (p *BpsFeePolicy) SetRate(rateBps uint32) error {
	if rateBps > feeDenominatorBps {
		return ErrInvalidFeeRate
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rateBps = rateBps
	return nil
}

// GetFee recomputes the raw output via the constant-product rule and returns
// rawOut * rateBps / 10000, truncating toward zero. Degenerate inputs yield a
// zero fee; the settlement path rejects them before fees matter.
func (p *BpsFeePolicy) GetFee(assetIn, assetOut string, amountIn, reserveIn, reserveOut *big.Int) *big.Int {
	rawOut := rawSwapOutput(amountIn, reserveIn, reserveOut)
	if rawOut.Sign() <= 0 {
		return big.NewInt(0)
	}
	rate := p.RateBps()
	if rate == 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(rawOut, big.NewInt(int64(rate)))
	fee.Quo(fee, big.NewInt(feeDenominatorBps))
	if fee.Cmp(rawOut) > 0 {
		return rawOut
	}
	return fee
}

// rawSwapOutput evaluates amountIn * reserveOut / (reserveIn + amountIn) with
// truncating division. All arguments must share one fractional scale.
func rawSwapOutput(amountIn, reserveIn, reserveOut *big.Int) *big.Int {
	if amountIn == nil || reserveIn == nil || reserveOut == nil {
		return big.NewInt(0)
	}
	if amountIn.Sign() <= 0 || reserveOut.Sign() <= 0 || reserveIn.Sign() < 0 {
		return big.NewInt(0)
	}
	numerator := new(big.Int).Mul(amountIn, reserveOut)
	denominator := new(big.Int).Add(reserveIn, amountIn)
	if denominator.Sign() <= 0 {
		return big.NewInt(0)
	}
	return numerator.Quo(numerator, denominator)
}
