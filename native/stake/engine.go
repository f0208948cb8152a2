package stake

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	nativecommon "hagglex/native/common"
	"hagglex/native/token"
)

const moduleName = "stake"

// DepositBypassMemo marks an inbound transfer as transfer-through: the vault
// receives the funds but no balance is credited.
const DepositBypassMemo = "NODEPOSIT"

var errNilState = errors.New("stake engine: state not configured")

// engineState is the persistence surface the engine depends on. The primary
// position map and its six orderings are maintained by the implementation;
// the engine only ever observes them through these accessors.
type engineState interface {
	Config() (*Config, error)
	PutConfig(*Config) error
	Position(id uint64) (*Position, error)
	PutPosition(*Position) error
	DeletePosition(id uint64) error
	NextPositionID() (uint64, error)
	OwnerPositions(owner string) ([]*Position, error)
	DurationPositions(seconds int64) ([]*Position, error)
	PositionIDs(ordering Ordering) ([]uint64, error)
	Balance(owner, symbolCode string) (*Balance, error)
	PutBalance(*Balance) error
}

// Transferor is the narrow interface onto the fungible-token collaborator.
// Transfer is a one-way request: the engine issues it only after its local
// state is fully validated and ready to commit.
type Transferor interface {
	Transfer(contract, from, to string, quantity token.Asset, memo string) error
}

// AccountChecker verifies that an account name exists on the platform.
type AccountChecker interface {
	IsAccount(name string) bool
}

// Engine orchestrates the staking lifecycle: deposits, stakes, interest
// claims, unstakes and withdrawals, plus the administrative configuration
// surface. A single mutex serializes operations so every one of them is an
// atomic state transition.
type Engine struct {
	mu        sync.Mutex
	state     engineState
	authority string
	emitter   Emitter
	token     Transferor
	accounts  AccountChecker
	nowFn     func() int64
}

// NewEngine constructs an engine whose authority account administers the
// module and acts as the deposit vault.
func NewEngine(authority string) *Engine {
	return &Engine{
		authority: authority,
		emitter:   NoopEmitter{},
		nowFn:     func() int64 { return time.Now().Unix() },
	}
}

// Authority returns the module's admin and vault account.
func (e *Engine) Authority() string { return e.authority }

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTransferor wires the outbound token collaborator.
func (e *Engine) SetTransferor(t Transferor) { e.token = t }

// SetAccountChecker wires the account-existence oracle used by SetConfig.
// When nil, only name well-formedness is validated.
func (e *Engine) SetAccountChecker(a AccountChecker) { e.accounts = a }

// SetNowFunc overrides the time source, primarily for deterministic tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter Emitter) {
	if emitter == nil {
		e.emitter = NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// IsPaused implements the pause view over the module configuration, so the
// shared guard can gate mutating operations.
func (e *Engine) IsPaused(module string) bool {
	if module != moduleName {
		return false
	}
	cfg, err := e.ensureConfig()
	if err != nil {
		return true
	}
	return cfg.IsPaused()
}

func (e *Engine) guard() error {
	if err := nativecommon.Guard(e, moduleName); err != nil {
		return fmt.Errorf("%w: %w", ErrState, err)
	}
	return nil
}

func (e *Engine) now() int64 {
	if e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) emit(event *Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(event)
}

// ensureConfig reads the singleton configuration, creating it lazily with
// documented defaults on first access.
func (e *Engine) ensureConfig() (*Config, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	cfg, err := e.state.Config()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = DefaultConfig()
		if err := e.state.PutConfig(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (e *Engine) requireAuthority(caller string) error {
	if caller != e.authority {
		return fmt.Errorf("%w: requires %s", ErrUnauthorized, e.authority)
	}
	return nil
}

// SetPrice overwrites the staking-to-interest conversion price.
func (e *Engine) SetPrice(caller string, price *big.Rat) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAuthority(caller); err != nil {
		return err
	}
	if price == nil || price.Sign() < 0 {
		return fmt.Errorf("%w: price must be non-negative", ErrInvalid)
	}
	cfg, err := e.ensureConfig()
	if err != nil {
		return err
	}
	next := cfg.Clone()
	next.Price = new(big.Rat).Set(price)
	return e.state.PutConfig(next)
}

// SetConfig replaces both token identities at once. Every identity is
// validated before any field is written, so a rejection leaves no partial
// update behind.
func (e *Engine) SetConfig(caller, stakingContract string, stakingSymbol token.Symbol, interestContract string, interestSymbol token.Symbol) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAuthority(caller); err != nil {
		return err
	}
	for _, contract := range []string{stakingContract, interestContract} {
		if !token.ValidName(contract) {
			return fmt.Errorf("%w: token contract %q is not a valid account name", ErrInvalid, contract)
		}
		if e.accounts != nil && !e.accounts.IsAccount(contract) {
			return fmt.Errorf("%w: token contract %q is not a valid account", ErrInvalid, contract)
		}
	}
	if !stakingSymbol.Valid() {
		return fmt.Errorf("%w: staking token symbol %q is not a valid symbol", ErrInvalid, stakingSymbol.Code)
	}
	if !interestSymbol.Valid() {
		return fmt.Errorf("%w: interest token symbol %q is not a valid symbol", ErrInvalid, interestSymbol.Code)
	}
	cfg, err := e.ensureConfig()
	if err != nil {
		return err
	}
	next := cfg.Clone()
	next.StakingTokenContract = stakingContract
	next.StakingTokenSymbol = stakingSymbol
	next.InterestTokenContract = interestContract
	next.InterestTokenSymbol = interestSymbol
	return e.state.PutConfig(next)
}

// SetSetting writes one entry of the general purpose settings map.
func (e *Engine) SetSetting(caller, name string, value uint8) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.setSettingLocked(caller, name, value)
}

func (e *Engine) setSettingLocked(caller, name string, value uint8) error {
	if err := e.requireAuthority(caller); err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("%w: setting name must not be empty", ErrInvalid)
	}
	cfg, err := e.ensureConfig()
	if err != nil {
		return err
	}
	next := cfg.Clone()
	next.Settings[name] = value
	return e.state.PutConfig(next)
}

// Pause engages the module circuit breaker: stake, claim, withdraw and
// deposit are rejected until Activate.
func (e *Engine) Pause(caller string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.setSettingLocked(caller, SettingActive, 0); err != nil {
		return err
	}
	e.emit(newPauseEvent(false))
	return nil
}

// Activate lifts the pause flag.
func (e *Engine) Activate(caller string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.setSettingLocked(caller, SettingActive, 1); err != nil {
		return err
	}
	e.emit(newPauseEvent(true))
	return nil
}

// Rewind moves a position's staked-at timestamp backward, accelerating its
// accrual for simulation. Expiration is unaffected, so the accrual
// denominator widens by the same stretch.
func (e *Engine) Rewind(caller string, id uint64, days uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAuthority(caller); err != nil {
		return err
	}
	if days == 0 {
		return fmt.Errorf("%w: rewind days must be positive", ErrInvalid)
	}
	position, err := e.position(id)
	if err != nil {
		return err
	}
	next := position.Clone()
	next.StakedAt -= int64(days) * secondsPerDay
	if err := e.state.PutPosition(next); err != nil {
		return err
	}
	e.emit(newRewoundEvent(next, days))
	return nil
}

func (e *Engine) position(id uint64) (*Position, error) {
	if e.state == nil {
		return nil, errNilState
	}
	position, err := e.state.Position(id)
	if err != nil {
		return nil, err
	}
	if position == nil {
		return nil, fmt.Errorf("%w: position %d not found", ErrState, id)
	}
	return position, nil
}

// Config returns a copy of the current configuration.
func (e *Engine) Config() (*Config, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, err := e.ensureConfig()
	if err != nil {
		return nil, err
	}
	return cfg.Clone(), nil
}

// Position returns a copy of the stored position.
func (e *Engine) Position(id uint64) (*Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	position, err := e.position(id)
	if err != nil {
		return nil, err
	}
	return position.Clone(), nil
}

// Positions lists every position id in the requested ordering and resolves
// the records.
func (e *Engine) Positions(ordering Ordering) ([]*Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	ids, err := e.state.PositionIDs(ordering)
	if err != nil {
		return nil, err
	}
	positions := make([]*Position, 0, len(ids))
	for _, id := range ids {
		position, err := e.state.Position(id)
		if err != nil {
			return nil, err
		}
		if position != nil {
			positions = append(positions, position.Clone())
		}
	}
	return positions, nil
}

// TotalStakedForDuration aggregates the staked amounts of every position
// sharing the given total duration, via the duration ordering.
func (e *Engine) TotalStakedForDuration(days uint16) (token.Asset, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, err := e.ensureConfig()
	if err != nil {
		return token.Asset{}, err
	}
	total := token.ZeroAsset(cfg.StakingTokenSymbol)
	siblings, err := e.state.DurationPositions(int64(days) * secondsPerDay)
	if err != nil {
		return token.Asset{}, err
	}
	for _, sibling := range siblings {
		total, err = total.Add(sibling.Staked)
		if err != nil {
			return token.Asset{}, err
		}
	}
	return total, nil
}
