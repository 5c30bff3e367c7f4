package custody

import (
	"errors"
	"math/big"
	"time"

	"swaprelay/core/events"
)

var (
	// ErrNotOwner indicates the caller is not one of the vault owners.
	ErrNotOwner = errors.New("custody: not a vault owner")
	// ErrProposalNotFound indicates an unknown proposal id.
	ErrProposalNotFound = errors.New("custody: proposal not found")
	// ErrAlreadyConfirmed indicates the owner has already voted.
	ErrAlreadyConfirmed = errors.New("custody: already confirmed")
	// ErrAlreadyExecuted indicates the proposal was executed before.
	ErrAlreadyExecuted = errors.New("custody: already executed")
	// ErrQuorumNotReached indicates the proposal lacks confirmations.
	ErrQuorumNotReached = errors.New("custody: quorum not reached")
	// ErrInvalidAmount indicates a nil, zero or negative withdrawal amount.
	ErrInvalidAmount = errors.New("custody: invalid amount")
	// ErrInvalidQuorum indicates a quorum outside [1, len(owners)].
	ErrInvalidQuorum = errors.New("custody: invalid quorum")

	errNilState = errors.New("custody engine: state not configured")
)

// State exposes the persistence the custody engine requires.
type State interface {
	CustodyProposal(id uint64) (*Proposal, bool, error)
	PutCustodyProposal(*Proposal) error
	CustodyProposalCount() (uint64, error)
	SetCustodyProposalCount(uint64) error
	BalanceOf(addr [20]byte, asset string) (*big.Int, error)
	Transfer(from, to [20]byte, asset string, amount *big.Int) error
	Begin()
	Commit() error
	Rollback()
}

// Engine implements a quorum-gated withdrawal workflow over a vault account.
// Owners propose a withdrawal, vote once each, and any owner may execute a
// proposal once confirmations reach the quorum. It is deliberately
// independent of the swap settlement engine.
type Engine struct {
	state   State
	emitter events.Emitter
	vault   [20]byte
	owners  [][20]byte
	quorum  int
	nowFn   func() int64
}

// NewEngine validates the owner set and quorum and returns a wired engine.
func NewEngine(vault [20]byte, owners [][20]byte, quorum int) (*Engine, error) {
	unique := make([][20]byte, 0, len(owners))
	seen := make(map[[20]byte]struct{}, len(owners))
	for _, owner := range owners {
		if _, ok := seen[owner]; ok {
			continue
		}
		seen[owner] = struct{}{}
		unique = append(unique, owner)
	}
	if len(unique) == 0 || quorum < 1 || quorum > len(unique) {
		return nil, ErrInvalidQuorum
	}
	return &Engine{
		emitter: events.NoopEmitter{},
		vault:   vault,
		owners:  unique,
		quorum:  quorum,
		nowFn:   func() int64 { return time.Now().Unix() },
	}, nil
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state State) { e.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the clock, primarily for deterministic tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Vault returns the vault account address funds are held under.
func (e *Engine) Vault() [20]byte { return e.vault }

// Quorum returns the number of confirmations required to execute.
func (e *Engine) Quorum() int { return e.quorum }

func (e *Engine) isOwner(addr [20]byte) bool {
	for _, owner := range e.owners {
		if owner == addr {
			return true
		}
	}
	return false
}

// Propose records a new withdrawal proposal. The proposer's confirmation is
// counted immediately.
func (e *Engine) Propose(owner [20]byte, asset string, to [20]byte, amount *big.Int) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if !e.isOwner(owner) {
		return 0, ErrNotOwner
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	count, err := e.state.CustodyProposalCount()
	if err != nil {
		return 0, err
	}
	proposal := &Proposal{
		ID:            count,
		Proposer:      owner,
		Asset:         asset,
		To:            to,
		Amount:        new(big.Int).Set(amount),
		Confirmations: [][20]byte{owner},
		CreatedAt:     e.nowFn(),
	}

	e.state.Begin()
	if err := e.state.PutCustodyProposal(proposal); err != nil {
		e.state.Rollback()
		return 0, err
	}
	if err := e.state.SetCustodyProposalCount(count + 1); err != nil {
		e.state.Rollback()
		return 0, err
	}
	if err := e.state.Commit(); err != nil {
		return 0, err
	}
	e.emitter.Emit(events.CustodyProposed{
		ID:       proposal.ID,
		Proposer: owner,
		Asset:    asset,
		To:       to,
		Amount:   new(big.Int).Set(amount),
	})
	return proposal.ID, nil
}

// Confirm records the owner's vote on a pending proposal. Each owner may
// vote exactly once.
func (e *Engine) Confirm(owner [20]byte, id uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if !e.isOwner(owner) {
		return ErrNotOwner
	}
	proposal, ok, err := e.state.CustodyProposal(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrProposalNotFound
	}
	if proposal.Executed {
		return ErrAlreadyExecuted
	}
	if proposal.ConfirmedBy(owner) {
		return ErrAlreadyConfirmed
	}
	proposal.Confirmations = append(proposal.Confirmations, owner)
	if err := e.state.PutCustodyProposal(proposal); err != nil {
		return err
	}
	e.emitter.Emit(events.CustodyConfirmed{
		ID:            id,
		Owner:         owner,
		Confirmations: len(proposal.Confirmations),
	})
	return nil
}

// Execute moves the proposed amount out of the vault once quorum is reached.
// Execution is atomic with marking the proposal executed, so a re-run fails
// with ErrAlreadyExecuted and funds move at most once.
func (e *Engine) Execute(caller [20]byte, id uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if !e.isOwner(caller) {
		return ErrNotOwner
	}
	proposal, ok, err := e.state.CustodyProposal(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrProposalNotFound
	}
	if proposal.Executed {
		return ErrAlreadyExecuted
	}
	if len(proposal.Confirmations) < e.quorum {
		return ErrQuorumNotReached
	}

	e.state.Begin()
	if err := e.state.Transfer(e.vault, proposal.To, proposal.Asset, proposal.Amount); err != nil {
		e.state.Rollback()
		return err
	}
	proposal.Executed = true
	if err := e.state.PutCustodyProposal(proposal); err != nil {
		e.state.Rollback()
		return err
	}
	if err := e.state.Commit(); err != nil {
		return err
	}
	e.emitter.Emit(events.CustodyExecuted{
		ID:     id,
		Asset:  proposal.Asset,
		To:     proposal.To,
		Amount: new(big.Int).Set(proposal.Amount),
	})
	return nil
}
