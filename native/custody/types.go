package custody

import "math/big"

// Proposal is a pending withdrawal from the custody vault. It collects one
// confirmation per owner and becomes executable once confirmations reach the
// configured quorum.
type Proposal struct {
	ID            uint64     `json:"id"`
	Proposer      [20]byte   `json:"proposer"`
	Asset         string     `json:"asset"`
	To            [20]byte   `json:"to"`
	Amount        *big.Int   `json:"amount"`
	Confirmations [][20]byte `json:"confirmations"`
	Executed      bool       `json:"executed"`
	CreatedAt     int64      `json:"createdAt"`
}

// ConfirmedBy reports whether the owner has already voted on the proposal.
func (p *Proposal) ConfirmedBy(owner [20]byte) bool {
	if p == nil {
		return false
	}
	for _, confirmed := range p.Confirmations {
		if confirmed == owner {
			return true
		}
	}
	return false
}
