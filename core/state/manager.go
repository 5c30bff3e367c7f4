package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"

	"swaprelay/core/types"
	"swaprelay/storage"
)

var (
	// ErrInvalidAmount indicates a nil, zero or negative amount was supplied
	// to a balance movement.
	ErrInvalidAmount = errors.New("state: invalid amount")
	// ErrInsufficientBalance indicates the debited account cannot cover the
	// requested movement.
	ErrInsufficientBalance = errors.New("state: insufficient balance")
	// ErrNoTransaction indicates Commit or Rollback was called without a
	// matching Begin.
	ErrNoTransaction = errors.New("state: no open transaction")
)

type overlayEntry struct {
	value   []byte
	deleted bool
}

// Manager binds accounts, the pool record, relay nonces and custody proposals
// to a key-value database. Multi-step operations open a transaction with
// Begin and either Commit every buffered write at once or Rollback to discard
// them, reconstructing the all-or-nothing semantics the engines rely on.
// Transactions nest: an inner Commit folds into the enclosing transaction and
// only the outermost Commit reaches the database.
type Manager struct {
	db       storage.Database
	mu       sync.Mutex
	overlays []map[string]overlayEntry
}

// NewManager wraps the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Begin opens a new (possibly nested) transaction.
func (m *Manager) Begin() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overlays = append(m.overlays, make(map[string]overlayEntry))
}

// Commit folds the innermost transaction into its parent, or flushes it to
// the database when it is the outermost one.
func (m *Manager) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	depth := len(m.overlays)
	if depth == 0 {
		return ErrNoTransaction
	}
	top := m.overlays[depth-1]
	m.overlays = m.overlays[:depth-1]
	if depth > 1 {
		parent := m.overlays[depth-2]
		for key, entry := range top {
			parent[key] = entry
		}
		return nil
	}
	for key, entry := range top {
		if entry.deleted {
			if err := m.db.Delete([]byte(key)); err != nil {
				return fmt.Errorf("state: commit delete %q: %w", key, err)
			}
			continue
		}
		if err := m.db.Put([]byte(key), entry.value); err != nil {
			return fmt.Errorf("state: commit put %q: %w", key, err)
		}
	}
	return nil
}

// Rollback discards every write buffered by the innermost transaction.
func (m *Manager) Rollback() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.overlays) == 0 {
		return
	}
	m.overlays = m.overlays[:len(m.overlays)-1]
}

// InTransaction reports whether a transaction is currently open.
func (m *Manager) InTransaction() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.overlays) > 0
}

func (m *Manager) get(key []byte) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.overlays) - 1; i >= 0; i-- {
		if entry, ok := m.overlays[i][string(key)]; ok {
			if entry.deleted {
				return nil, false, nil
			}
			return entry.value, true, nil
		}
	}
	value, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (m *Manager) put(key []byte, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.overlays) > 0 {
		m.overlays[len(m.overlays)-1][string(key)] = overlayEntry{value: value}
		return nil
	}
	return m.db.Put(key, value)
}

func (m *Manager) getJSON(key []byte, out interface{}) (bool, error) {
	raw, ok, err := m.get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", string(key), err)
	}
	return true, nil
}

func (m *Manager) putJSON(key []byte, in interface{}) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", string(key), err)
	}
	return m.put(key, raw)
}

// --- Accounts ---

// GetAccount loads the account stored for the address. Unknown addresses
// yield a zero-balance account.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	account := &types.Account{Balances: make(map[string]*big.Int)}
	if _, err := m.getJSON(accountKey(addr), account); err != nil {
		return nil, err
	}
	if account.Balances == nil {
		account.Balances = make(map[string]*big.Int)
	}
	return account, nil
}

// PutAccount persists the account record.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	if account == nil {
		return errors.New("state: account required")
	}
	return m.putJSON(accountKey(addr), account)
}

// BalanceOf returns the balance the address holds in the supplied asset.
func (m *Manager) BalanceOf(addr [20]byte, asset string) (*big.Int, error) {
	account, err := m.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return account.Balance(asset), nil
}

// Transfer moves an exact amount of one asset between two accounts. It fails
// without side effects when the amount is not positive or the sender cannot
// cover it.
func (m *Manager) Transfer(from, to [20]byte, asset string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	sender, err := m.GetAccount(from)
	if err != nil {
		return err
	}
	balance := sender.Balance(asset)
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if from == to {
		return nil
	}
	receiver, err := m.GetAccount(to)
	if err != nil {
		return err
	}
	sender.SetBalance(asset, new(big.Int).Sub(balance, amount))
	receiver.SetBalance(asset, new(big.Int).Add(receiver.Balance(asset), amount))
	if err := m.PutAccount(from, sender); err != nil {
		return err
	}
	return m.PutAccount(to, receiver)
}

// Mint credits freshly issued units of an asset to an account. Used by
// genesis seeding and tests.
func (m *Manager) Mint(addr [20]byte, asset string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	account, err := m.GetAccount(addr)
	if err != nil {
		return err
	}
	account.SetBalance(asset, new(big.Int).Add(account.Balance(asset), amount))
	return m.PutAccount(addr, account)
}

// --- Relay nonces ---

// RelayNonce returns the next expected relay nonce for the signer. Unknown
// signers start at zero.
func (m *Manager) RelayNonce(addr [20]byte) (uint64, error) {
	raw, ok, err := m.get(relayNonceKey(addr))
	if err != nil || !ok {
		return 0, err
	}
	nonce, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("state: decode relay nonce: %w", err)
	}
	return nonce, nil
}

// SetRelayNonce stores the next expected relay nonce for the signer.
func (m *Manager) SetRelayNonce(addr [20]byte, nonce uint64) error {
	return m.put(relayNonceKey(addr), []byte(strconv.FormatUint(nonce, 10)))
}
