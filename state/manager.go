package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"hagglex/native/stake"
	"hagglex/native/token"
	"hagglex/storage"
)

// Manager is the persistence backend shared by the staking engine and the
// token ledger. Records live in the key-value store RLP encoded; the
// authoritative id -> position map and its six derived orderings are held in
// memory, rebuilt deterministically from the primary records at startup and
// mutated in the same critical section as every primary write.
type Manager struct {
	mu        sync.RWMutex
	db        storage.Database
	positions map[uint64]*stake.Position
	index     *stake.PositionIndex
	nextID    uint64
}

// NewManager opens a manager over the database and rebuilds the position
// indexes from the stored records.
func NewManager(db storage.Database) (*Manager, error) {
	m := &Manager{
		db:        db,
		positions: make(map[uint64]*stake.Position),
		index:     stake.NewPositionIndex(),
		nextID:    1,
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) load() error {
	var scanErr error
	err := m.db.Iterate(stakePositionPrefix, func(key, value []byte) bool {
		var stored storedPosition
		if decodeErr := rlp.DecodeBytes(value, &stored); decodeErr != nil {
			scanErr = fmt.Errorf("state: corrupt position record %x: %w", key, decodeErr)
			return false
		}
		position := stored.position()
		m.positions[position.ID] = position
		m.index.Insert(position)
		if position.ID >= m.nextID {
			m.nextID = position.ID + 1
		}
		return true
	})
	if err != nil {
		return err
	}
	if scanErr != nil {
		return scanErr
	}
	raw, err := m.db.Get(stakeNextIDKey)
	switch {
	case errors.Is(err, storage.ErrKeyNotFound):
	case err != nil:
		return err
	case len(raw) == 8:
		if stored := binary.BigEndian.Uint64(raw); stored > m.nextID {
			m.nextID = stored
		}
	}
	return nil
}

func (m *Manager) put(key []byte, record interface{}) error {
	encoded, err := rlp.EncodeToBytes(record)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

func (m *Manager) get(key []byte, record interface{}) (bool, error) {
	raw, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, rlp.DecodeBytes(raw, record)
}

// --- stake engine state ---

// Config returns the stored configuration, or nil when none was written yet.
func (m *Manager) Config() (*stake.Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var stored storedConfig
	found, err := m.get(stakeConfigKey, &stored)
	if err != nil || !found {
		return nil, err
	}
	return stored.config()
}

// PutConfig persists the singleton configuration.
func (m *Manager) PutConfig(cfg *stake.Config) error {
	if cfg == nil {
		return fmt.Errorf("state: nil config")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.put(stakeConfigKey, toStoredConfig(cfg))
}

// Position returns a copy of the stored position, or nil when absent.
func (m *Manager) Position(id uint64) (*stake.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.positions[id].Clone(), nil
}

// PutPosition writes the record and re-keys all six orderings in the same
// critical section, so the indexes never diverge from the primary store.
func (m *Manager) PutPosition(p *stake.Position) error {
	if p == nil {
		return fmt.Errorf("state: nil position")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.put(positionKey(p.ID), toStoredPosition(p)); err != nil {
		return err
	}
	stored := p.Clone()
	if prev, ok := m.positions[p.ID]; ok {
		m.index.Update(prev, stored)
	} else {
		m.index.Insert(stored)
	}
	m.positions[p.ID] = stored
	if p.ID >= m.nextID {
		m.nextID = p.ID + 1
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, m.nextID)
		if err := m.db.Put(stakeNextIDKey, buf); err != nil {
			return err
		}
	}
	return nil
}

// DeletePosition erases the record and every index entry.
func (m *Manager) DeletePosition(id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.positions[id]
	if !ok {
		return nil
	}
	if err := m.db.Delete(positionKey(id)); err != nil {
		return err
	}
	m.index.Remove(prev)
	delete(m.positions, id)
	return nil
}

// NextPositionID returns the next available primary key. The id is consumed
// when the position is first written.
func (m *Manager) NextPositionID() (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nextID, nil
}

// OwnerPositions resolves the owner ordering into position copies.
func (m *Manager) OwnerPositions(owner string) ([]*stake.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.resolve(m.index.OwnerIDs(owner)), nil
}

// DurationPositions resolves the duration ordering for one total duration.
func (m *Manager) DurationPositions(seconds int64) ([]*stake.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.resolve(m.index.DurationIDs(seconds)), nil
}

// PositionIDs lists every live position id in the requested ordering.
func (m *Manager) PositionIDs(ordering stake.Ordering) ([]uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.index.IDs(ordering), nil
}

func (m *Manager) resolve(ids []uint64) []*stake.Position {
	positions := make([]*stake.Position, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.positions[id]; ok {
			positions = append(positions, p.Clone())
		}
	}
	return positions
}

// Balance returns the deposited-funds row for (owner, symbol), nil if absent.
func (m *Manager) Balance(owner, symbolCode string) (*stake.Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var stored storedBalance
	found, err := m.get(stakeBalanceKey(owner, symbolCode), &stored)
	if err != nil || !found {
		return nil, err
	}
	return stored.balance(), nil
}

// PutBalance persists a deposited-funds row.
func (m *Manager) PutBalance(b *stake.Balance) error {
	if b == nil {
		return fmt.Errorf("state: nil balance")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.put(stakeBalanceKey(b.Owner, b.Funds.Symbol.Code), toStoredBalance(b))
}

// --- token ledger state ---

// TokenStat returns the issuance row for (contract, symbol), nil if absent.
func (m *Manager) TokenStat(contract, symbolCode string) (*token.Stat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var stored storedTokenStat
	found, err := m.get(tokenStatKey(contract, symbolCode), &stored)
	if err != nil || !found {
		return nil, err
	}
	return stored.stat(), nil
}

// PutTokenStat persists an issuance row.
func (m *Manager) PutTokenStat(contract string, stat *token.Stat) error {
	if stat == nil {
		return fmt.Errorf("state: nil token stat")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.put(tokenStatKey(contract, stat.Supply.Symbol.Code), toStoredTokenStat(stat))
}

// TokenBalance returns the holder's balance for (contract, owner, symbol).
func (m *Manager) TokenBalance(contract, owner, symbolCode string) (*token.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var stored storedAsset
	found, err := m.get(tokenBalanceKey(contract, owner, symbolCode), &stored)
	if err != nil || !found {
		return nil, err
	}
	asset := stored.asset()
	return &asset, nil
}

// PutTokenBalance persists a holder balance.
func (m *Manager) PutTokenBalance(contract, owner string, balance token.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.put(tokenBalanceKey(contract, owner, balance.Symbol.Code), toStoredAsset(balance))
}

// DeleteTokenBalance removes a holder balance row.
func (m *Manager) DeleteTokenBalance(contract, owner, symbolCode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db.Delete(tokenBalanceKey(contract, owner, symbolCode))
}

// TokenBlacklisted reports whether the account is barred from transfers.
func (m *Manager) TokenBlacklisted(contract, account string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db.Has(tokenBlacklistKey(contract, account))
}

// PutTokenBlacklist adds or removes an account from the blacklist.
func (m *Manager) PutTokenBlacklist(contract, account string, listed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tokenBlacklistKey(contract, account)
	if !listed {
		return m.db.Delete(key)
	}
	return m.db.Put(key, []byte{1})
}

// TokenBlacklist lists every blacklisted account for the contract.
func (m *Manager) TokenBlacklist(contract string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	prefix := tokenBlacklistScanPrefix(contract)
	var accounts []string
	err := m.db.Iterate(prefix, func(key, _ []byte) bool {
		accounts = append(accounts, string(key[len(prefix):]))
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(accounts)
	return accounts, nil
}
