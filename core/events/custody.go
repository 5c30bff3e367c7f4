package events

import (
	"math/big"

	"swaprelay/core/types"
)

const (
	TypeCustodyProposed  = "custody.proposed"
	TypeCustodyConfirmed = "custody.confirmed"
	TypeCustodyExecuted  = "custody.executed"
)

// CustodyProposed records a new withdrawal proposal against the custody vault.
type CustodyProposed struct {
	ID       uint64
	Proposer [20]byte
	Asset    string
	To       [20]byte
	Amount   *big.Int
}

func (CustodyProposed) EventType() string { return TypeCustodyProposed }

func (e CustodyProposed) Event() *types.Event {
	return &types.Event{
		Type: TypeCustodyProposed,
		Attributes: map[string]string{
			"id":       uintToString(e.ID),
			"proposer": formatAddress(e.Proposer),
			"asset":    e.Asset,
			"to":       formatAddress(e.To),
			"amount":   formatAmount(e.Amount),
		},
	}
}

// CustodyConfirmed records an owner vote on a pending proposal.
type CustodyConfirmed struct {
	ID            uint64
	Owner         [20]byte
	Confirmations int
}

func (CustodyConfirmed) EventType() string { return TypeCustodyConfirmed }

func (e CustodyConfirmed) Event() *types.Event {
	return &types.Event{
		Type: TypeCustodyConfirmed,
		Attributes: map[string]string{
			"id":            uintToString(e.ID),
			"owner":         formatAddress(e.Owner),
			"confirmations": intToString(int64(e.Confirmations)),
		},
	}
}

// CustodyExecuted records a quorum-approved withdrawal leaving the vault.
type CustodyExecuted struct {
	ID     uint64
	Asset  string
	To     [20]byte
	Amount *big.Int
}

func (CustodyExecuted) EventType() string { return TypeCustodyExecuted }

func (e CustodyExecuted) Event() *types.Event {
	return &types.Event{
		Type: TypeCustodyExecuted,
		Attributes: map[string]string{
			"id":     uintToString(e.ID),
			"asset":  e.Asset,
			"to":     formatAddress(e.To),
			"amount": formatAmount(e.Amount),
		},
	}
}
