package token

import (
	"errors"
	"fmt"
	"sync"
)

var ErrContractNotFound = errors.New("token registry: contract not found")

// Registry routes transfer requests to the ledger acting as the named
// contract. It doubles as the account-existence oracle for configuration
// validation: a name is an account when a ledger or known account carries it.
type Registry struct {
	mu      sync.RWMutex
	ledgers map[string]*Ledger
	known   map[string]struct{}
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		ledgers: make(map[string]*Ledger),
		known:   make(map[string]struct{}),
	}
}

// Register adds a ledger under its contract name.
func (r *Registry) Register(ledger *Ledger) {
	if ledger == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ledgers[ledger.Name()] = ledger
	r.known[ledger.Name()] = struct{}{}
}

// AddAccount records a plain account so IsAccount can vouch for it.
func (r *Registry) AddAccount(name string) {
	if !ValidName(name) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.known[name] = struct{}{}
}

// Ledger returns the ledger registered under the contract name.
func (r *Registry) Ledger(contract string) (*Ledger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ledger, ok := r.ledgers[contract]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrContractNotFound, contract)
	}
	return ledger, nil
}

// IsAccount reports whether the name refers to a registered contract or
// account.
func (r *Registry) IsAccount(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.known[name]
	return ok
}

// Transfer routes an outbound transfer through the ledger registered as the
// contract. The sending account authorizes itself as caller, matching the
// one-way transfer request semantics of the collaborator interface.
func (r *Registry) Transfer(contract, from, to string, quantity Asset, memo string) error {
	ledger, err := r.Ledger(contract)
	if err != nil {
		return err
	}
	return ledger.Transfer(from, from, to, quantity, memo)
}
