package token

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"
)

var (
	errNilState          = errors.New("token ledger: state not configured")
	ErrSymbolExists      = errors.New("token ledger: symbol already exists")
	ErrSymbolNotFound    = errors.New("token ledger: symbol not found")
	ErrNotIssuer         = errors.New("token ledger: issuer authorization required")
	ErrSupplyExceeded    = errors.New("token ledger: quantity exceeds available supply")
	ErrNoBalance         = errors.New("token ledger: no balance object found")
	ErrOverdrawn         = errors.New("token ledger: overdrawn balance")
	ErrBlacklisted       = errors.New("token ledger: account blacklisted")
	ErrSelfTransfer      = errors.New("token ledger: cannot transfer to self")
	ErrUnknownAccount    = errors.New("token ledger: unknown account")
	ErrBadQuantity       = errors.New("token ledger: invalid quantity")
	ErrMemoTooLong       = errors.New("token ledger: memo has more than 256 bytes")
	ErrPrecisionMismatch = errors.New("token ledger: symbol precision mismatch")
)

// Stat records the issuance state for a single symbol managed by the ledger.
type Stat struct {
	Supply    Asset
	MaxSupply Asset
	Issuer    string
	CreatedAt int64
	LastMint  int64
}

// Clone returns a deep copy of the stat row.
func (s *Stat) Clone() *Stat {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Supply = s.Supply.Clone()
	clone.MaxSupply = s.MaxSupply.Clone()
	return &clone
}

// LedgerState abstracts the persistence required by the token ledger. The
// contract name scopes every row so several ledgers can share one backend.
type LedgerState interface {
	TokenStat(contract, symbolCode string) (*Stat, error)
	PutTokenStat(contract string, stat *Stat) error
	TokenBalance(contract, owner, symbolCode string) (*Asset, error)
	PutTokenBalance(contract, owner string, balance Asset) error
	DeleteTokenBalance(contract, owner, symbolCode string) error
	TokenBlacklisted(contract, account string) (bool, error)
	PutTokenBlacklist(contract, account string, listed bool) error
	TokenBlacklist(contract string) ([]string, error)
}

// Hook receives transfer notifications for accounts that registered interest.
// The notifying contract name is passed so hooks can reject lookalike tokens.
type Hook interface {
	OnTransfer(contract, from, to string, quantity Asset, memo string) error
}

// Ledger implements the fungible-token collaborator: issuance against a fixed
// maximum supply, transfers with blacklist enforcement, and transfer
// notifications delivered to registered hooks.
type Ledger struct {
	mu    sync.Mutex
	name  string
	state LedgerState
	nowFn func() int64
	hooks map[string]Hook
}

// NewLedger constructs a ledger acting as the named token contract.
func NewLedger(name string) *Ledger {
	return &Ledger{
		name:  name,
		nowFn: func() int64 { return time.Now().Unix() },
		hooks: make(map[string]Hook),
	}
}

// Name returns the contract account this ledger acts as.
func (l *Ledger) Name() string { return l.name }

// SetState configures the persistence backend.
func (l *Ledger) SetState(state LedgerState) { l.state = state }

// SetNowFunc overrides the clock, primarily for deterministic tests.
func (l *Ledger) SetNowFunc(now func() int64) {
	if now == nil {
		l.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	l.nowFn = now
}

// Subscribe registers a hook invoked whenever the account appears as the
// sender or recipient of a transfer.
func (l *Ledger) Subscribe(account string, hook Hook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if hook == nil {
		delete(l.hooks, account)
		return
	}
	l.hooks[account] = hook
}

// Create registers a new symbol with its issuer and maximum supply. Only the
// contract authority may create symbols.
func (l *Ledger) Create(caller, issuer string, maxSupply Asset) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == nil {
		return errNilState
	}
	if caller != l.name {
		return fmt.Errorf("%w: create requires %s", ErrNotIssuer, l.name)
	}
	if !ValidName(issuer) {
		return fmt.Errorf("%w: %q", ErrUnknownAccount, issuer)
	}
	if !maxSupply.Valid() || maxSupply.Sign() <= 0 {
		return fmt.Errorf("%w: max supply %s", ErrBadQuantity, maxSupply)
	}
	existing, err := l.state.TokenStat(l.name, maxSupply.Symbol.Code)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: %s", ErrSymbolExists, maxSupply.Symbol.Code)
	}
	stat := &Stat{
		Supply:    ZeroAsset(maxSupply.Symbol),
		MaxSupply: maxSupply.Clone(),
		Issuer:    issuer,
		CreatedAt: l.now(),
	}
	return l.state.PutTokenStat(l.name, stat)
}

// Issue mints quantity to the issuer account, bounded by the symbol's maximum
// supply.
func (l *Ledger) Issue(caller, to string, quantity Asset, memo string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == nil {
		return errNilState
	}
	if err := checkMemo(memo); err != nil {
		return err
	}
	stat, err := l.stat(quantity.Symbol.Code)
	if err != nil {
		return err
	}
	if caller != stat.Issuer {
		return fmt.Errorf("%w: issue requires %s", ErrNotIssuer, stat.Issuer)
	}
	if to != stat.Issuer {
		return fmt.Errorf("%w: tokens can only be issued to issuer account", ErrNotIssuer)
	}
	if !quantity.Valid() || quantity.Sign() <= 0 {
		return fmt.Errorf("%w: %s", ErrBadQuantity, quantity)
	}
	if !quantity.Symbol.Equal(stat.Supply.Symbol) {
		return fmt.Errorf("%w: %s vs %s", ErrPrecisionMismatch, quantity.Symbol, stat.Supply.Symbol)
	}
	remaining := new(big.Int).Sub(stat.MaxSupply.Amount, stat.Supply.Amount)
	if quantity.Amount.Cmp(remaining) > 0 {
		return fmt.Errorf("%w: requested %s, remaining %s", ErrSupplyExceeded, quantity, Asset{Amount: remaining, Symbol: quantity.Symbol})
	}
	supply, err := stat.Supply.Add(quantity)
	if err != nil {
		return err
	}
	stat.Supply = supply
	stat.LastMint = l.now()
	if err := l.addBalance(stat.Issuer, quantity); err != nil {
		return err
	}
	return l.state.PutTokenStat(l.name, stat)
}

// Burn destroys quantity from the issuer's balance and reduces supply.
func (l *Ledger) Burn(caller string, quantity Asset, memo string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == nil {
		return errNilState
	}
	if err := checkMemo(memo); err != nil {
		return err
	}
	stat, err := l.stat(quantity.Symbol.Code)
	if err != nil {
		return err
	}
	if caller != stat.Issuer {
		return fmt.Errorf("%w: burn requires %s", ErrNotIssuer, stat.Issuer)
	}
	if !quantity.Valid() || quantity.Sign() <= 0 {
		return fmt.Errorf("%w: %s", ErrBadQuantity, quantity)
	}
	if !quantity.Symbol.Equal(stat.Supply.Symbol) {
		return fmt.Errorf("%w: %s vs %s", ErrPrecisionMismatch, quantity.Symbol, stat.Supply.Symbol)
	}
	if err := l.subBalance(stat.Issuer, quantity); err != nil {
		return err
	}
	supply, err := stat.Supply.Sub(quantity)
	if err != nil {
		return err
	}
	stat.Supply = supply
	return l.state.PutTokenStat(l.name, stat)
}

// Transfer moves quantity between accounts and notifies hooks registered for
// either side. The caller must be the sending account.
func (l *Ledger) Transfer(caller, from, to string, quantity Asset, memo string) error {
	l.mu.Lock()
	if err := l.transferLocked(caller, from, to, quantity, memo); err != nil {
		l.mu.Unlock()
		return err
	}
	fromHook := l.hooks[from]
	toHook := l.hooks[to]
	l.mu.Unlock()

	// Hooks run outside the ledger lock: a hook may transfer in response.
	if fromHook != nil {
		if err := fromHook.OnTransfer(l.name, from, to, quantity, memo); err != nil {
			return err
		}
	}
	if toHook != nil && to != from {
		if err := toHook.OnTransfer(l.name, from, to, quantity, memo); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) transferLocked(caller, from, to string, quantity Asset, memo string) error {
	if l.state == nil {
		return errNilState
	}
	if caller != from {
		return fmt.Errorf("%w: transfer requires %s", ErrNotIssuer, from)
	}
	if from == to {
		return ErrSelfTransfer
	}
	if !ValidName(from) || !ValidName(to) {
		return fmt.Errorf("%w: %q -> %q", ErrUnknownAccount, from, to)
	}
	if err := checkMemo(memo); err != nil {
		return err
	}
	for _, account := range []string{from, to} {
		listed, err := l.state.TokenBlacklisted(l.name, account)
		if err != nil {
			return err
		}
		if listed {
			return fmt.Errorf("%w: %s", ErrBlacklisted, account)
		}
	}
	stat, err := l.stat(quantity.Symbol.Code)
	if err != nil {
		return err
	}
	if !quantity.Valid() || quantity.Sign() <= 0 {
		return fmt.Errorf("%w: %s", ErrBadQuantity, quantity)
	}
	if !quantity.Symbol.Equal(stat.Supply.Symbol) {
		return fmt.Errorf("%w: %s vs %s", ErrPrecisionMismatch, quantity.Symbol, stat.Supply.Symbol)
	}
	if err := l.subBalance(from, quantity); err != nil {
		return err
	}
	return l.addBalance(to, quantity)
}

// Balance returns the balance row for the owner and symbol, or ErrNoBalance.
func (l *Ledger) Balance(owner, symbolCode string) (Asset, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == nil {
		return Asset{}, errNilState
	}
	bal, err := l.state.TokenBalance(l.name, owner, symbolCode)
	if err != nil {
		return Asset{}, err
	}
	if bal == nil {
		return Asset{}, fmt.Errorf("%w: %s/%s", ErrNoBalance, owner, symbolCode)
	}
	return bal.Clone(), nil
}

// Supply returns the current circulating supply for a symbol.
func (l *Ledger) Supply(symbolCode string) (Asset, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == nil {
		return Asset{}, errNilState
	}
	stat, err := l.stat(symbolCode)
	if err != nil {
		return Asset{}, err
	}
	return stat.Supply.Clone(), nil
}

// Blacklist bars an account from sending or receiving. Issuer-only for every
// symbol this contract manages, so the check is against the contract name.
func (l *Ledger) Blacklist(caller, account, memo string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == nil {
		return errNilState
	}
	if caller != l.name {
		return fmt.Errorf("%w: blacklist requires %s", ErrNotIssuer, l.name)
	}
	if !ValidName(account) {
		return fmt.Errorf("%w: %q", ErrUnknownAccount, account)
	}
	if err := checkMemo(memo); err != nil {
		return err
	}
	return l.state.PutTokenBlacklist(l.name, account, true)
}

// Unblacklist lifts a prior blacklisting.
func (l *Ledger) Unblacklist(caller, account string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == nil {
		return errNilState
	}
	if caller != l.name {
		return fmt.Errorf("%w: unblacklist requires %s", ErrNotIssuer, l.name)
	}
	return l.state.PutTokenBlacklist(l.name, account, false)
}

// ClearBlacklist removes every blacklisted account.
func (l *Ledger) ClearBlacklist(caller string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == nil {
		return errNilState
	}
	if caller != l.name {
		return fmt.Errorf("%w: clrblacklist requires %s", ErrNotIssuer, l.name)
	}
	listed, err := l.state.TokenBlacklist(l.name)
	if err != nil {
		return err
	}
	for _, account := range listed {
		if err := l.state.PutTokenBlacklist(l.name, account, false); err != nil {
			return err
		}
	}
	return nil
}

// Close removes the owner's balance row for a symbol. Only the owner may
// close, and only once the balance is zero.
func (l *Ledger) Close(caller, owner, symbolCode string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == nil {
		return errNilState
	}
	if caller != owner {
		return fmt.Errorf("%w: close requires %s", ErrNotIssuer, owner)
	}
	current, err := l.state.TokenBalance(l.name, owner, symbolCode)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("%w: %s/%s", ErrNoBalance, owner, symbolCode)
	}
	if current.Sign() != 0 {
		return fmt.Errorf("%w: cannot close %s with balance %s", ErrBadQuantity, owner, *current)
	}
	return l.state.DeleteTokenBalance(l.name, owner, symbolCode)
}

func (l *Ledger) stat(symbolCode string) (*Stat, error) {
	stat, err := l.state.TokenStat(l.name, symbolCode)
	if err != nil {
		return nil, err
	}
	if stat == nil {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbolCode)
	}
	return stat, nil
}

func (l *Ledger) addBalance(owner string, quantity Asset) error {
	current, err := l.state.TokenBalance(l.name, owner, quantity.Symbol.Code)
	if err != nil {
		return err
	}
	if current == nil {
		return l.state.PutTokenBalance(l.name, owner, quantity.Clone())
	}
	next, err := current.Add(quantity)
	if err != nil {
		return err
	}
	return l.state.PutTokenBalance(l.name, owner, next)
}

func (l *Ledger) subBalance(owner string, quantity Asset) error {
	current, err := l.state.TokenBalance(l.name, owner, quantity.Symbol.Code)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("%w: %s/%s", ErrNoBalance, owner, quantity.Symbol.Code)
	}
	if current.Cmp(quantity) < 0 {
		return fmt.Errorf("%w: %s holds %s, needs %s", ErrOverdrawn, owner, *current, quantity)
	}
	next, err := current.Sub(quantity)
	if err != nil {
		return err
	}
	return l.state.PutTokenBalance(l.name, owner, next)
}

func (l *Ledger) now() int64 {
	if l.nowFn == nil {
		return time.Now().Unix()
	}
	return l.nowFn()
}

func checkMemo(memo string) error {
	if len(memo) > MaxMemoBytes {
		return ErrMemoTooLong
	}
	return nil
}
