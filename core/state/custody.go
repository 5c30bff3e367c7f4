package state

import (
	"errors"
	"strconv"

	"swaprelay/native/custody"
)

// CustodyProposal loads a stored withdrawal proposal by id.
func (m *Manager) CustodyProposal(id uint64) (*custody.Proposal, bool, error) {
	proposal := &custody.Proposal{}
	ok, err := m.getJSON(custodyProposalKey(id), proposal)
	if err != nil || !ok {
		return nil, false, err
	}
	return proposal, true, nil
}

// PutCustodyProposal persists a withdrawal proposal.
func (m *Manager) PutCustodyProposal(proposal *custody.Proposal) error {
	if proposal == nil {
		return errors.New("state: proposal required")
	}
	return m.putJSON(custodyProposalKey(proposal.ID), proposal)
}

// CustodyProposalCount returns the number of proposals created so far, which
// doubles as the next proposal id.
func (m *Manager) CustodyProposalCount() (uint64, error) {
	raw, ok, err := m.get([]byte(custodyCountKey))
	if err != nil || !ok {
		return 0, err
	}
	count, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// SetCustodyProposalCount stores the proposal counter.
func (m *Manager) SetCustodyProposalCount(count uint64) error {
	return m.put([]byte(custodyCountKey), []byte(strconv.FormatUint(count, 10)))
}
