package amm

import (
	"errors"
	"fmt"
	"math/big"

	"swaprelay/core/events"
	"swaprelay/native/common"
)

// ModuleName identifies the engine in the pause switchboard.
const ModuleName = "amm"

// quoteScale is the fixed fractional scale used by QuotePrice.
const quoteScale = 18

var (
	errNilState = errors.New("amm engine: state not configured")
	errNilGate  = errors.New("amm engine: auth gate not configured")
	errNilFees  = errors.New("amm engine: fee policy not configured")
	errNoPool   = errors.New("amm engine: pool not initialised")
)

// State exposes the persistence the engine requires. Begin/Commit/Rollback
// bracket every multi-step mutation so a failure at any step discards all
// prior writes of the same operation.
type State interface {
	Pool() (*Pool, error)
	PutPool(*Pool) error
	BalanceOf(addr [20]byte, asset string) (*big.Int, error)
	Transfer(from, to [20]byte, asset string, amount *big.Int) error
	Begin()
	Commit() error
	Rollback()
}

// Engine owns the pool's reserves and implements liquidity management and
// swap settlement. Settlement is gated: only the administrator (acting for
// itself) or the registered relay (acting for a verified signer) may trigger
// it.
type Engine struct {
	state   State
	gate    AuthGate
	fees    FeePolicy
	emitter events.Emitter
	pauses  common.PauseView
}

// NewEngine creates an engine with a no-op emitter. Callers wire state, gate
// and fee policy via the Set* methods.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state State) { e.state = state }

// SetGate configures the capability checks consulted on every operation.
func (e *Engine) SetGate(gate AuthGate) { e.gate = gate }

// SetPauses configures the pause switchboard. A nil view disables pausing.
func (e *Engine) SetPauses(pauses common.PauseView) { e.pauses = pauses }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetFeePolicyUnchecked installs the initial fee policy during wiring,
// before any administrator exists to authorize the swap. Runtime replacement
// goes through ReplaceFeePolicy.
func (e *Engine) SetFeePolicyUnchecked(policy FeePolicy) { e.fees = policy }

func (e *Engine) emit(event events.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(event)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.gate == nil {
		return errNilGate
	}
	if e.fees == nil {
		return errNilFees
	}
	return nil
}

func (e *Engine) loadPool() (*Pool, error) {
	pool, err := e.state.Pool()
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return nil, errNoPool
	}
	return pool, nil
}

// InitPool persists the pool configuration. It refuses to overwrite an
// existing pool.
func (e *Engine) InitPool(pool *Pool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if pool == nil || pool.AssetA == "" || pool.AssetB == "" || pool.AssetA == pool.AssetB {
		return ErrInvalidPair
	}
	existing, err := e.state.Pool()
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("amm engine: pool already initialised")
	}
	if pool.ReserveA == nil {
		pool.ReserveA = big.NewInt(0)
	}
	if pool.ReserveB == nil {
		pool.ReserveB = big.NewInt(0)
	}
	return e.state.PutPool(pool)
}

// FeeRateBps reports the active fee rate.
func (e *Engine) FeeRateBps() uint32 {
	if e == nil || e.fees == nil {
		return 0
	}
	return e.fees.RateBps()
}

// SetFeeRate updates the fee rate on the installed policy. Administrator
// only; takes effect on the next settlement.
func (e *Engine) SetFeeRate(caller [20]byte, rateBps uint32) error {
	if err := e.ready(); err != nil {
		return err
	}
	if !e.gate.IsAdministrator(caller) {
		return ErrInvalidAdministrator
	}
	mutable, ok := e.fees.(MutableFeePolicy)
	if !ok {
		return fmt.Errorf("amm engine: fee policy is not mutable")
	}
	oldRate := mutable.RateBps()
	if err := mutable.SetRate(rateBps); err != nil {
		return err
	}
	e.emit(events.FeeRateUpdated{OldRateBps: oldRate, NewRateBps: rateBps})
	return nil
}

// ReplaceFeePolicy swaps the policy implementation. Administrator only;
// settlements already committed under the previous policy are unaffected.
func (e *Engine) ReplaceFeePolicy(caller [20]byte, policy FeePolicy) error {
	if err := e.ready(); err != nil {
		return err
	}
	if !e.gate.IsAdministrator(caller) {
		return ErrInvalidAdministrator
	}
	if policy == nil {
		return errNilFees
	}
	e.fees = policy
	return nil
}

// AddLiquidity moves amount of one configured asset from the administrator
// to the pool and grows the matching reserve.
func (e *Engine) AddLiquidity(caller [20]byte, asset string, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	if !e.gate.IsAdministrator(caller) {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	pool, err := e.loadPool()
	if err != nil {
		return err
	}
	if !pool.HasAsset(asset) {
		return ErrInvalidAsset
	}
	balance, err := e.state.BalanceOf(caller, asset)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}

	e.state.Begin()
	if err := e.state.Transfer(caller, pool.Address, asset, amount); err != nil {
		e.state.Rollback()
		return err
	}
	pool.setReserve(asset, new(big.Int).Add(pool.Reserve(asset), amount))
	if err := e.state.PutPool(pool); err != nil {
		e.state.Rollback()
		return err
	}
	if err := e.state.Commit(); err != nil {
		return err
	}
	e.emit(events.LiquidityAdded{Asset: asset, Amount: new(big.Int).Set(amount)})
	return nil
}

// RemoveLiquidity moves amount of one configured asset from the pool back to
// the administrator and shrinks the matching reserve.
func (e *Engine) RemoveLiquidity(caller [20]byte, asset string, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	if !e.gate.IsAdministrator(caller) {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	pool, err := e.loadPool()
	if err != nil {
		return err
	}
	if !pool.HasAsset(asset) {
		return ErrInvalidAsset
	}
	if pool.Reserve(asset).Cmp(amount) < 0 {
		return ErrInsufficientLiquidity
	}

	e.state.Begin()
	if err := e.state.Transfer(pool.Address, caller, asset, amount); err != nil {
		e.state.Rollback()
		return err
	}
	pool.setReserve(asset, new(big.Int).Sub(pool.Reserve(asset), amount))
	if err := e.state.PutPool(pool); err != nil {
		e.state.Rollback()
		return err
	}
	if err := e.state.Commit(); err != nil {
		return err
	}
	e.emit(events.LiquidityRemoved{Asset: asset, Amount: new(big.Int).Set(amount)})
	return nil
}

// QuotePrice returns reserveIn/reserveOut scaled to 18 fractional digits,
// adjusted for each asset's own decimal count so prices stay comparable
// across mismatched denominations.
func (e *Engine) QuotePrice(assetIn, assetOut string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pool, err := e.loadPool()
	if err != nil {
		return nil, err
	}
	if assetIn == assetOut || !pool.HasAsset(assetIn) || !pool.HasAsset(assetOut) {
		return nil, ErrInvalidPair
	}
	reserveIn := pool.Reserve(assetIn)
	reserveOut := pool.Reserve(assetOut)
	if reserveOut.Sign() == 0 {
		return nil, ErrInsufficientLiquidity
	}
	// price = (reserveIn / 10^decIn) / (reserveOut / 10^decOut) * 10^18
	numerator := new(big.Int).Mul(reserveIn, pow10(quoteScale+int(pool.Decimals(assetOut))))
	denominator := new(big.Int).Mul(reserveOut, pow10(int(pool.Decimals(assetIn))))
	return numerator.Quo(numerator, denominator), nil
}

// SettleSwap executes the constant-product exchange for signer. The caller
// must be the registered relay (acting for a verified signer) or the
// administrator acting for itself. All steps commit atomically; any failure
// leaves reserves and balances untouched.
func (e *Engine) SettleSwap(caller, signer [20]byte, assetIn, assetOut string, amountIn, minAmountOut *big.Int) (*SettleResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	switch {
	case e.gate.IsAuthorizedRelay(caller):
		// relay vouches for signer
	case e.gate.IsAdministrator(caller):
		if signer != caller {
			return nil, ErrUnauthorized
		}
	default:
		return nil, ErrUnauthorized
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if minAmountOut == nil {
		minAmountOut = big.NewInt(0)
	}
	if minAmountOut.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	pool, err := e.loadPool()
	if err != nil {
		return nil, err
	}
	if assetIn == assetOut || !pool.HasAsset(assetIn) || !pool.HasAsset(assetOut) {
		return nil, ErrInvalidPair
	}

	reserveIn := pool.Reserve(assetIn)
	reserveOut := pool.Reserve(assetOut)
	if reserveOut.Sign() == 0 {
		return nil, ErrInsufficientLiquidity
	}

	// Normalize to one fractional scale, price the trade, then denormalize
	// the output back to assetOut's native scale.
	decIn := int(pool.Decimals(assetIn))
	decOut := int(pool.Decimals(assetOut))
	scale := decIn
	if decOut > scale {
		scale = decOut
	}
	amountInNorm := scaleUp(amountIn, scale-decIn)
	reserveInNorm := scaleUp(reserveIn, scale-decIn)
	reserveOutNorm := scaleUp(reserveOut, scale-decOut)

	rawOut := rawSwapOutput(amountInNorm, reserveInNorm, reserveOutNorm)
	fee := e.fees.GetFee(assetIn, assetOut, amountInNorm, reserveInNorm, reserveOutNorm)
	if fee == nil {
		fee = big.NewInt(0)
	}
	if fee.Cmp(rawOut) > 0 {
		fee = new(big.Int).Set(rawOut)
	}
	amountOut := new(big.Int).Sub(rawOut, fee)
	amountOut = scaleDown(amountOut, scale-decOut)
	feeNative := scaleDown(new(big.Int).Set(fee), scale-decOut)

	if amountOut.Cmp(minAmountOut) < 0 {
		return nil, ErrSlippageExceeded
	}
	if amountOut.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if amountOut.Cmp(reserveOut) >= 0 {
		return nil, ErrInsufficientLiquidity
	}
	balance, err := e.state.BalanceOf(signer, assetIn)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(amountIn) < 0 {
		return nil, ErrInsufficientBalance
	}

	e.state.Begin()
	if err := e.state.Transfer(signer, pool.Address, assetIn, amountIn); err != nil {
		e.state.Rollback()
		return nil, err
	}
	if err := e.state.Transfer(pool.Address, signer, assetOut, amountOut); err != nil {
		e.state.Rollback()
		return nil, err
	}
	pool.setReserve(assetIn, new(big.Int).Add(reserveIn, amountIn))
	pool.setReserve(assetOut, new(big.Int).Sub(reserveOut, amountOut))
	if err := e.state.PutPool(pool); err != nil {
		e.state.Rollback()
		return nil, err
	}
	if err := e.state.Commit(); err != nil {
		return nil, err
	}

	result := &SettleResult{
		Signer:    signer,
		AssetIn:   assetIn,
		AssetOut:  assetOut,
		AmountIn:  new(big.Int).Set(amountIn),
		AmountOut: new(big.Int).Set(amountOut),
		Fee:       feeNative,
	}
	e.emit(events.SwapSettled{
		Signer:    signer,
		AssetIn:   assetIn,
		AssetOut:  assetOut,
		AmountIn:  result.AmountIn,
		AmountOut: result.AmountOut,
	})
	return result, nil
}

func pow10(n int) *big.Int {
	if n <= 0 {
		return big.NewInt(1)
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

func scaleUp(v *big.Int, digits int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	if digits <= 0 {
		return new(big.Int).Set(v)
	}
	return new(big.Int).Mul(v, pow10(digits))
}

func scaleDown(v *big.Int, digits int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	if digits <= 0 {
		return v
	}
	return v.Quo(v, pow10(digits))
}
