package relay

import (
	"errors"
	"math/big"
	"testing"

	"swaprelay/core/state"
	"swaprelay/native/amm"
	"swaprelay/storage"
)

// Exercises the full relayed settlement path over the real state manager:
// verify, nested settlement transaction, nonce advance, rollback on failure.
func TestRelayedSettlementEndToEnd(t *testing.T) {
	key, signer := newSignerKey(t)
	adminAddr := newTestAddress(0x01)

	manager := state.NewManager(storage.NewMemDB())
	engine := amm.NewEngine()
	engine.SetState(manager)
	engine.SetGate(amm.NewStaticGate(adminAddr, testRelayAddr))
	policy, err := amm.NewBpsFeePolicy(250)
	if err != nil {
		t.Fatalf("fee policy: %v", err)
	}
	engine.SetFeePolicyUnchecked(policy)

	pool := amm.NewPool(testPoolAddr, "NHB", 6, "USDC", 6)
	if err := engine.InitPool(pool); err != nil {
		t.Fatalf("init pool: %v", err)
	}
	if err := manager.Mint(adminAddr, "NHB", big.NewInt(10_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := manager.Mint(adminAddr, "USDC", big.NewInt(10_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := engine.AddLiquidity(adminAddr, "NHB", big.NewInt(1_000)); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	if err := engine.AddLiquidity(adminAddr, "USDC", big.NewInt(2_000)); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	if err := manager.Mint(signer, "NHB", big.NewInt(500)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	r := newTestRelay(t, manager, engine)

	req, sig := newSignedRequest(t, key, signer, 0)
	result, err := r.ExecuteSwap(req, sig)
	if err != nil {
		t.Fatalf("execute swap: %v", err)
	}
	if result.AmountOut.Int64() != 177 {
		t.Fatalf("amountOut = %d, want 177", result.AmountOut.Int64())
	}
	balance, err := manager.BalanceOf(signer, "USDC")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Int64() != 177 {
		t.Fatalf("signer USDC = %d, want 177", balance.Int64())
	}
	nonce, err := manager.RelayNonce(signer)
	if err != nil {
		t.Fatalf("nonce: %v", err)
	}
	if nonce != 1 {
		t.Fatalf("nonce = %d, want 1", nonce)
	}
	if manager.InTransaction() {
		t.Fatal("transaction left open after execute")
	}

	// A request whose slippage bound cannot be met leaves everything as-is.
	req2 := &SwapRequest{
		Pool:         testPoolAddr,
		Signer:       signer,
		AssetIn:      "NHB",
		AssetOut:     "USDC",
		AmountIn:     big.NewInt(100),
		MinAmountOut: big.NewInt(1_000),
		Nonce:        1,
		Deadline:     2_000,
	}
	sig2, err := SignRequest(key, testChainID, testRelayAddr, req2)
	if err != nil {
		t.Fatalf("sign request: %v", err)
	}
	if _, err := r.ExecuteSwap(req2, sig2); !errors.Is(err, amm.ErrSlippageExceeded) {
		t.Fatalf("expected ErrSlippageExceeded, got %v", err)
	}
	nonce, _ = manager.RelayNonce(signer)
	if nonce != 1 {
		t.Fatalf("nonce changed by failed settlement: %d", nonce)
	}
	pool2, err := manager.Pool()
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if pool2.ReserveA.Int64() != 1_100 || pool2.ReserveB.Int64() != 1_823 {
		t.Fatalf("reserves changed by failed settlement: %s/%s", pool2.ReserveA, pool2.ReserveB)
	}
	if manager.InTransaction() {
		t.Fatal("transaction left open after failed execute")
	}
}
