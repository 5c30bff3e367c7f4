package relay

import (
	"bytes"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"swaprelay/native/amm"
)

type nonceSnapshot map[[20]byte]uint64

type mockState struct {
	nonces nonceSnapshot
	snaps  []nonceSnapshot
}

func newMockState() *mockState {
	return &mockState{nonces: make(nonceSnapshot)}
}

func (m *mockState) RelayNonce(addr [20]byte) (uint64, error) { return m.nonces[addr], nil }

func (m *mockState) SetRelayNonce(addr [20]byte, nonce uint64) error {
	m.nonces[addr] = nonce
	return nil
}

func (m *mockState) Begin() {
	snap := make(nonceSnapshot, len(m.nonces))
	for addr, nonce := range m.nonces {
		snap[addr] = nonce
	}
	m.snaps = append(m.snaps, snap)
}

func (m *mockState) Commit() error {
	if len(m.snaps) == 0 {
		return errors.New("mock: no snapshot")
	}
	m.snaps = m.snaps[:len(m.snaps)-1]
	return nil
}

func (m *mockState) Rollback() {
	if len(m.snaps) == 0 {
		return
	}
	m.nonces = m.snaps[len(m.snaps)-1]
	m.snaps = m.snaps[:len(m.snaps)-1]
}

type mockLedger struct {
	calls  int
	err    error
	caller [20]byte
	signer [20]byte
}

func (m *mockLedger) SettleSwap(caller, signer [20]byte, assetIn, assetOut string, amountIn, minAmountOut *big.Int) (*amm.SettleResult, error) {
	m.calls++
	m.caller = caller
	m.signer = signer
	if m.err != nil {
		return nil, m.err
	}
	return &amm.SettleResult{
		Signer:    signer,
		AssetIn:   assetIn,
		AssetOut:  assetOut,
		AmountIn:  new(big.Int).Set(amountIn),
		AmountOut: big.NewInt(177),
		Fee:       big.NewInt(4),
	}, nil
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

var (
	testRelayAddr = newTestAddress(0x02)
	testPoolAddr  = newTestAddress(0xAA)
	testChainID   = big.NewInt(1987)
)

func newSignerKey(t *testing.T) (*ecdsa.PrivateKey, [20]byte) {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var addr [20]byte
	copy(addr[:], ethcrypto.PubkeyToAddress(key.PublicKey).Bytes())
	return key, addr
}

func newTestRelay(t *testing.T, state State, ledger SettlementLedger) *Relay {
	t.Helper()
	r, err := NewRelay(testRelayAddr, testPoolAddr, testChainID)
	if err != nil {
		t.Fatalf("new relay: %v", err)
	}
	r.SetState(state)
	r.SetLedger(ledger)
	r.SetNowFunc(func() int64 { return 1_000 })
	return r
}

func newSignedRequest(t *testing.T, key *ecdsa.PrivateKey, signer [20]byte, nonce uint64) (*SwapRequest, []byte) {
	t.Helper()
	req := &SwapRequest{
		Pool:         testPoolAddr,
		Signer:       signer,
		AssetIn:      "NHB",
		AssetOut:     "USDC",
		AmountIn:     big.NewInt(100),
		MinAmountOut: big.NewInt(170),
		Nonce:        nonce,
		Deadline:     2_000,
	}
	sig, err := SignRequest(key, testChainID, testRelayAddr, req)
	if err != nil {
		t.Fatalf("sign request: %v", err)
	}
	return req, sig
}

func TestExecuteSwapAdvancesNonce(t *testing.T) {
	key, signer := newSignerKey(t)
	state := newMockState()
	ledger := &mockLedger{}
	r := newTestRelay(t, state, ledger)

	req, sig := newSignedRequest(t, key, signer, 0)
	if !r.Verify(req, sig) {
		t.Fatal("verify failed for valid request")
	}
	result, err := r.ExecuteSwap(req, sig)
	if err != nil {
		t.Fatalf("execute swap: %v", err)
	}
	if result.AmountOut.Int64() != 177 {
		t.Fatalf("amountOut = %d, want 177", result.AmountOut.Int64())
	}
	if ledger.caller != testRelayAddr || ledger.signer != signer {
		t.Fatalf("ledger saw caller=%x signer=%x", ledger.caller, ledger.signer)
	}
	nonce, _ := r.Nonce(signer)
	if nonce != 1 {
		t.Fatalf("nonce = %d, want 1", nonce)
	}
}

func TestExecuteSwapRejectsReplay(t *testing.T) {
	key, signer := newSignerKey(t)
	state := newMockState()
	ledger := &mockLedger{}
	r := newTestRelay(t, state, ledger)

	req0, sig0 := newSignedRequest(t, key, signer, 0)
	if _, err := r.ExecuteSwap(req0, sig0); err != nil {
		t.Fatalf("first execute: %v", err)
	}
	req1, sig1 := newSignedRequest(t, key, signer, 1)
	if _, err := r.ExecuteSwap(req1, sig1); err != nil {
		t.Fatalf("second execute: %v", err)
	}

	// Replaying the settled nonce-0 request must fail without touching state.
	if _, err := r.ExecuteSwap(req0, sig0); !errors.Is(err, ErrInvalidNonce) {
		t.Fatalf("expected ErrInvalidNonce, got %v", err)
	}
	nonce, _ := r.Nonce(signer)
	if nonce != 2 {
		t.Fatalf("nonce = %d, want 2", nonce)
	}
	if ledger.calls != 2 {
		t.Fatalf("ledger called %d times, want 2", ledger.calls)
	}
}

func TestExecuteSwapOutOfOrderNonce(t *testing.T) {
	key, signer := newSignerKey(t)
	r := newTestRelay(t, newMockState(), &mockLedger{})

	req, sig := newSignedRequest(t, key, signer, 5)
	if r.Verify(req, sig) {
		t.Fatal("verify accepted future nonce")
	}
	if _, err := r.ExecuteSwap(req, sig); !errors.Is(err, ErrInvalidNonce) {
		t.Fatalf("expected ErrInvalidNonce, got %v", err)
	}
}

func TestExecuteSwapExpired(t *testing.T) {
	key, signer := newSignerKey(t)
	state := newMockState()
	r := newTestRelay(t, state, &mockLedger{})
	r.SetNowFunc(func() int64 { return 3_000 })

	req, sig := newSignedRequest(t, key, signer, 0)
	if r.Verify(req, sig) {
		t.Fatal("verify accepted expired request")
	}
	if _, err := r.ExecuteSwap(req, sig); !errors.Is(err, ErrExpiredRequest) {
		t.Fatalf("expected ErrExpiredRequest, got %v", err)
	}
	nonce, _ := r.Nonce(signer)
	if nonce != 0 {
		t.Fatalf("nonce advanced on failure: %d", nonce)
	}
}

func TestExecuteSwapTamperedRequest(t *testing.T) {
	key, signer := newSignerKey(t)
	r := newTestRelay(t, newMockState(), &mockLedger{})

	req, sig := newSignedRequest(t, key, signer, 0)
	req.AmountIn = big.NewInt(100_000) // inflate after signing
	if r.Verify(req, sig) {
		t.Fatal("verify accepted tampered request")
	}
	if _, err := r.ExecuteSwap(req, sig); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestExecuteSwapWrongSigner(t *testing.T) {
	key, _ := newSignerKey(t)
	_, otherAddr := newSignerKey(t)
	r := newTestRelay(t, newMockState(), &mockLedger{})

	// Signed by key but naming a different signer.
	req, sig := newSignedRequest(t, key, otherAddr, 0)
	if r.Verify(req, sig) {
		t.Fatal("verify accepted signature from wrong key")
	}
	if _, err := r.ExecuteSwap(req, sig); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestExecuteSwapPoolMismatch(t *testing.T) {
	key, signer := newSignerKey(t)
	r := newTestRelay(t, newMockState(), &mockLedger{})

	req, _ := newSignedRequest(t, key, signer, 0)
	req.Pool = newTestAddress(0xBB)
	sig, err := SignRequest(key, testChainID, testRelayAddr, req)
	if err != nil {
		t.Fatalf("sign request: %v", err)
	}
	if r.Verify(req, sig) {
		t.Fatal("verify accepted foreign pool")
	}
	if _, err := r.ExecuteSwap(req, sig); !errors.Is(err, ErrPoolMismatch) {
		t.Fatalf("expected ErrPoolMismatch, got %v", err)
	}
}

func TestExecuteSwapSettlementFailureIsNoop(t *testing.T) {
	key, signer := newSignerKey(t)
	state := newMockState()
	ledger := &mockLedger{err: amm.ErrSlippageExceeded}
	r := newTestRelay(t, state, ledger)

	req, sig := newSignedRequest(t, key, signer, 0)
	if _, err := r.ExecuteSwap(req, sig); !errors.Is(err, amm.ErrSlippageExceeded) {
		t.Fatalf("expected ErrSlippageExceeded, got %v", err)
	}
	nonce, _ := r.Nonce(signer)
	if nonce != 0 {
		t.Fatalf("nonce advanced on failed settlement: %d", nonce)
	}

	// The identical payload stays valid for resubmission.
	ledger.err = nil
	if _, err := r.ExecuteSwap(req, sig); err != nil {
		t.Fatalf("resubmission failed: %v", err)
	}
	nonce, _ = r.Nonce(signer)
	if nonce != 1 {
		t.Fatalf("nonce = %d, want 1", nonce)
	}
}

func TestSignatureNotPortableAcrossDeployments(t *testing.T) {
	key, signer := newSignerKey(t)
	r := newTestRelay(t, newMockState(), &mockLedger{})

	req, sig := newSignedRequest(t, key, signer, 0)
	if !r.Verify(req, sig) {
		t.Fatal("verify failed on home deployment")
	}

	// Different chain id.
	other, err := NewRelay(testRelayAddr, testPoolAddr, big.NewInt(1988))
	if err != nil {
		t.Fatalf("new relay: %v", err)
	}
	other.SetState(newMockState())
	other.SetNowFunc(func() int64 { return 1_000 })
	if other.Verify(req, sig) {
		t.Fatal("signature accepted under foreign chain id")
	}

	// Different relay identity.
	other2, err := NewRelay(newTestAddress(0x0F), testPoolAddr, testChainID)
	if err != nil {
		t.Fatalf("new relay: %v", err)
	}
	other2.SetState(newMockState())
	other2.SetNowFunc(func() int64 { return 1_000 })
	if other2.Verify(req, sig) {
		t.Fatal("signature accepted under foreign relay identity")
	}
}

func TestDomainSeparatorIsDeploymentBound(t *testing.T) {
	sep1, err := ComputeDomainSeparator(big.NewInt(1), testRelayAddr)
	if err != nil {
		t.Fatalf("domain separator: %v", err)
	}
	sep2, err := ComputeDomainSeparator(big.NewInt(2), testRelayAddr)
	if err != nil {
		t.Fatalf("domain separator: %v", err)
	}
	sep3, err := ComputeDomainSeparator(big.NewInt(1), newTestAddress(0x0F))
	if err != nil {
		t.Fatalf("domain separator: %v", err)
	}
	if sep1 == sep2 || sep1 == sep3 {
		t.Fatal("domain separator did not bind chain id and relay identity")
	}
}

func TestRecoverSignerAcceptsBothRecoveryIDForms(t *testing.T) {
	key, signer := newSignerKey(t)
	req, sig := newSignedRequest(t, key, signer, 0)

	digest, err := Digest(testChainID, testRelayAddr, req)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	recovered, err := RecoverSigner(digest, sig)
	if err != nil || recovered != signer {
		t.Fatalf("recover with v=27/28: %x, %v", recovered, err)
	}

	raw := make([]byte, len(sig))
	copy(raw, sig)
	raw[64] -= 27
	recovered, err = RecoverSigner(digest, raw)
	if err != nil || recovered != signer {
		t.Fatalf("recover with v=0/1: %x, %v", recovered, err)
	}

	if _, err := RecoverSigner(digest, raw[:64]); err == nil {
		t.Fatal("expected error for truncated signature")
	}
}
