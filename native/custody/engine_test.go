package custody_test

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"swaprelay/core/state"
	"swaprelay/native/custody"
	"swaprelay/storage"
)

func testAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

var (
	vaultAddr = testAddress(0xCC)
	ownerA    = testAddress(0x01)
	ownerB    = testAddress(0x02)
	ownerC    = testAddress(0x03)
	outsider  = testAddress(0x0F)
	payee     = testAddress(0x10)
)

func newTestEngine(t *testing.T) (*custody.Engine, *state.Manager) {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	engine, err := custody.NewEngine(vaultAddr, [][20]byte{ownerA, ownerB, ownerC}, 2)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	engine.SetState(manager)
	engine.SetNowFunc(func() int64 { return 1_000 })
	if err := manager.Mint(vaultAddr, "NHB", big.NewInt(1_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	return engine, manager
}

func TestNewEngineValidatesQuorum(t *testing.T) {
	if _, err := custody.NewEngine(vaultAddr, nil, 1); !errors.Is(err, custody.ErrInvalidQuorum) {
		t.Fatalf("expected ErrInvalidQuorum for empty owners, got %v", err)
	}
	if _, err := custody.NewEngine(vaultAddr, [][20]byte{ownerA}, 2); !errors.Is(err, custody.ErrInvalidQuorum) {
		t.Fatalf("expected ErrInvalidQuorum for quorum > owners, got %v", err)
	}
	if _, err := custody.NewEngine(vaultAddr, [][20]byte{ownerA, ownerA}, 2); !errors.Is(err, custody.ErrInvalidQuorum) {
		t.Fatalf("expected ErrInvalidQuorum for duplicate owners, got %v", err)
	}
}

func TestWithdrawalLifecycle(t *testing.T) {
	engine, manager := newTestEngine(t)

	if _, err := engine.Propose(outsider, "NHB", payee, big.NewInt(100)); !errors.Is(err, custody.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if _, err := engine.Propose(ownerA, "NHB", payee, nil); !errors.Is(err, custody.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	id, err := engine.Propose(ownerA, "NHB", payee, big.NewInt(100))
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	// Proposer counts as the first confirmation; quorum of 2 is not yet met.
	if err := engine.Execute(ownerA, id); !errors.Is(err, custody.ErrQuorumNotReached) {
		t.Fatalf("expected ErrQuorumNotReached, got %v", err)
	}
	if err := engine.Confirm(ownerA, id); !errors.Is(err, custody.ErrAlreadyConfirmed) {
		t.Fatalf("expected ErrAlreadyConfirmed, got %v", err)
	}
	if err := engine.Confirm(ownerB, id); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if err := engine.Execute(ownerB, id); err != nil {
		t.Fatalf("execute: %v", err)
	}
	balance, _ := manager.BalanceOf(payee, "NHB")
	if balance.Int64() != 100 {
		t.Fatalf("payee balance = %d, want 100", balance.Int64())
	}
	vaultBalance, _ := manager.BalanceOf(vaultAddr, "NHB")
	if vaultBalance.Int64() != 900 {
		t.Fatalf("vault balance = %d, want 900", vaultBalance.Int64())
	}

	// Re-execution and late votes are rejected.
	if err := engine.Execute(ownerC, id); !errors.Is(err, custody.ErrAlreadyExecuted) {
		t.Fatalf("expected ErrAlreadyExecuted, got %v", err)
	}
	if err := engine.Confirm(ownerC, id); !errors.Is(err, custody.ErrAlreadyExecuted) {
		t.Fatalf("expected ErrAlreadyExecuted, got %v", err)
	}
}

func TestExecuteRollsBackOnInsufficientVault(t *testing.T) {
	engine, manager := newTestEngine(t)

	id, err := engine.Propose(ownerA, "NHB", payee, big.NewInt(5_000))
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if err := engine.Confirm(ownerB, id); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := engine.Execute(ownerA, id); err == nil {
		t.Fatal("expected execute to fail on insufficient vault balance")
	}

	// The proposal stays executable once the vault is topped up.
	proposal, ok, err := manager.CustodyProposal(id)
	if err != nil || !ok {
		t.Fatalf("proposal lookup: ok=%v err=%v", ok, err)
	}
	if proposal.Executed {
		t.Fatal("proposal marked executed after failed transfer")
	}
	if err := manager.Mint(vaultAddr, "NHB", big.NewInt(10_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := engine.Execute(ownerA, id); err != nil {
		t.Fatalf("execute after top-up: %v", err)
	}
}

func TestProposalIDsAreSequential(t *testing.T) {
	engine, _ := newTestEngine(t)

	first, err := engine.Propose(ownerA, "NHB", payee, big.NewInt(1))
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	second, err := engine.Propose(ownerB, "NHB", payee, big.NewInt(2))
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if first != 0 || second != 1 {
		t.Fatalf("ids = %d,%d, want 0,1", first, second)
	}
}

func TestConfirmUnknownProposal(t *testing.T) {
	engine, _ := newTestEngine(t)
	if err := engine.Confirm(ownerA, 42); !errors.Is(err, custody.ErrProposalNotFound) {
		t.Fatalf("expected ErrProposalNotFound, got %v", err)
	}
	if err := engine.Execute(ownerA, 42); !errors.Is(err, custody.ErrProposalNotFound) {
		t.Fatalf("expected ErrProposalNotFound, got %v", err)
	}
}
