package state

import (
	"errors"
	"math/big"

	"swaprelay/native/amm"
)

// Pool loads the persisted pool record, or nil when no pool has been
// initialised yet.
func (m *Manager) Pool() (*amm.Pool, error) {
	pool := &amm.Pool{}
	ok, err := m.getJSON(poolKey(), pool)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	if pool.ReserveA == nil {
		pool.ReserveA = big.NewInt(0)
	}
	if pool.ReserveB == nil {
		pool.ReserveB = big.NewInt(0)
	}
	return pool, nil
}

// PutPool persists the pool record.
func (m *Manager) PutPool(pool *amm.Pool) error {
	if pool == nil {
		return errors.New("state: pool required")
	}
	return m.putJSON(poolKey(), pool)
}
