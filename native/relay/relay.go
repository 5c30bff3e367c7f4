package relay

import (
	"errors"
	"math/big"
	"time"

	"swaprelay/core/events"
	"swaprelay/native/amm"
)

var (
	// ErrInvalidSignature indicates the signature is malformed or was not
	// produced by the named signer.
	ErrInvalidSignature = errors.New("relay: invalid signature")
	// ErrInvalidNonce indicates the request nonce does not equal the
	// signer's current nonce exactly.
	ErrInvalidNonce = errors.New("relay: invalid nonce")
	// ErrExpiredRequest indicates the request deadline has passed.
	ErrExpiredRequest = errors.New("relay: request expired")
	// ErrPoolMismatch indicates the request targets a different pool than
	// the one this relay settles against.
	ErrPoolMismatch = errors.New("relay: pool mismatch")

	errNilState  = errors.New("relay: state not configured")
	errNilLedger = errors.New("relay: settlement ledger not configured")
)

// State exposes the nonce table and the transactional boundary the relay
// shares with the settlement it triggers.
type State interface {
	RelayNonce(addr [20]byte) (uint64, error)
	SetRelayNonce(addr [20]byte, nonce uint64) error
	Begin()
	Commit() error
	Rollback()
}

// SettlementLedger is the slice of the exchange engine the relay invokes on
// behalf of verified signers.
type SettlementLedger interface {
	SettleSwap(caller, signer [20]byte, assetIn, assetOut string, amountIn, minAmountOut *big.Int) (*amm.SettleResult, error)
}

// Relay verifies typed swap requests and forwards them to the settlement
// ledger with the signer's identity substituted for its own. The signer's
// nonce advances only when the settlement commits; every failure is a strict
// no-op so an identical resubmission stays valid.
type Relay struct {
	state           State
	ledger          SettlementLedger
	emitter         events.Emitter
	address         [20]byte
	pool            [20]byte
	chainID         *big.Int
	domainSeparator [32]byte
	nowFn           func() int64
}

// NewRelay derives the deployment-bound domain separator and returns a relay
// ready for wiring. The separator never changes for the relay's lifetime.
func NewRelay(address, pool [20]byte, chainID *big.Int) (*Relay, error) {
	separator, err := ComputeDomainSeparator(chainID, address)
	if err != nil {
		return nil, err
	}
	return &Relay{
		emitter:         events.NoopEmitter{},
		address:         address,
		pool:            pool,
		chainID:         new(big.Int).Set(chainID),
		domainSeparator: separator,
		nowFn:           func() int64 { return time.Now().Unix() },
	}, nil
}

// SetState configures the nonce table backend.
func (r *Relay) SetState(state State) { r.state = state }

// SetLedger configures the settlement ledger invoked on verified requests.
func (r *Relay) SetLedger(ledger SettlementLedger) { r.ledger = ledger }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (r *Relay) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// SetNowFunc overrides the clock, primarily for deterministic tests.
func (r *Relay) SetNowFunc(now func() int64) {
	if now == nil {
		r.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	r.nowFn = now
}

// Address returns the relay's own identity, i.e. the caller the exchange
// ledger sees on relayed settlements.
func (r *Relay) Address() [20]byte { return r.address }

// ChainID returns the network identifier baked into the domain separator.
func (r *Relay) ChainID() *big.Int { return new(big.Int).Set(r.chainID) }

// DomainSeparator returns the immutable deployment-bound separator.
func (r *Relay) DomainSeparator() [32]byte { return r.domainSeparator }

// Nonce returns the next expected nonce for the signer.
func (r *Relay) Nonce(signer [20]byte) (uint64, error) {
	if r == nil || r.state == nil {
		return 0, errNilState
	}
	return r.state.RelayNonce(signer)
}

// check runs the full validation suite and maps each failure to its protocol
// error. It never mutates state.
func (r *Relay) check(req *SwapRequest, signature []byte) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if req == nil {
		return ErrInvalidSignature
	}
	if req.Pool != r.pool {
		return ErrPoolMismatch
	}
	digest, err := Digest(r.chainID, r.address, req)
	if err != nil {
		return ErrInvalidSignature
	}
	recovered, err := RecoverSigner(digest, signature)
	if err != nil || recovered != req.Signer {
		return ErrInvalidSignature
	}
	current, err := r.state.RelayNonce(req.Signer)
	if err != nil {
		return err
	}
	if req.Nonce != current {
		return ErrInvalidNonce
	}
	if r.nowFn() > req.Deadline {
		return ErrExpiredRequest
	}
	return nil
}

// Verify reports whether the request would be accepted right now. It never
// returns an error: any mismatch, malformed signature or expiry yields false.
func (r *Relay) Verify(req *SwapRequest, signature []byte) bool {
	return r.check(req, signature) == nil
}

// ExecuteSwap verifies the request and, on success, triggers settlement for
// the signer and advances the signer's nonce by exactly one. Verification or
// settlement failure aborts the whole call with no state change, so the same
// signed payload can be resubmitted safely.
func (r *Relay) ExecuteSwap(req *SwapRequest, signature []byte) (*amm.SettleResult, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	if r.ledger == nil {
		return nil, errNilLedger
	}
	if err := r.check(req, signature); err != nil {
		return nil, err
	}
	r.state.Begin()
	result, err := r.ledger.SettleSwap(r.address, req.Signer, req.AssetIn, req.AssetOut, req.AmountIn, req.MinAmountOut)
	if err != nil {
		r.state.Rollback()
		return nil, err
	}
	if err := r.state.SetRelayNonce(req.Signer, req.Nonce+1); err != nil {
		r.state.Rollback()
		return nil, err
	}
	if err := r.state.Commit(); err != nil {
		return nil, err
	}
	r.emitter.Emit(events.RelayExecuted{
		Signer:    req.Signer,
		AssetIn:   req.AssetIn,
		AssetOut:  req.AssetOut,
		AmountIn:  result.AmountIn,
		AmountOut: result.AmountOut,
		Nonce:     req.Nonce,
	})
	return result, nil
}
