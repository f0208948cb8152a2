package stake

import (
	"fmt"

	"hagglex/native/token"
)

// OnTransfer is the deposit hook driven by the token collaborator's transfer
// notifications. It implements token.Hook. Transfers not addressed to the
// vault, and transfers carrying the bypass memo, are ignored without error.
func (e *Engine) OnTransfer(contract, from, to string, quantity token.Asset, memo string) error {
	if e == nil || to != e.authority || memo == DepositBypassMemo {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return err
	}
	cfg, err := e.ensureConfig()
	if err != nil {
		return err
	}
	if !quantity.Symbol.Equal(cfg.StakingTokenSymbol) {
		return fmt.Errorf("%w: only %s deposits are allowed, you sent %s",
			ErrInvalid, cfg.StakingTokenSymbol.Code, quantity.Symbol.Code)
	}
	if contract != cfg.StakingTokenContract {
		return fmt.Errorf("%w: only deposits from %s are allowed, you sent from %s",
			ErrInvalid, cfg.StakingTokenContract, contract)
	}
	if !quantity.Valid() || quantity.Sign() <= 0 {
		return fmt.Errorf("%w: deposit quantity %s", ErrInvalid, quantity)
	}

	balance, err := e.state.Balance(from, quantity.Symbol.Code)
	if err != nil {
		return err
	}
	if balance == nil {
		balance = &Balance{Owner: from, Funds: quantity.Clone(), TokenContract: contract}
	} else {
		if balance.TokenContract != contract {
			return fmt.Errorf("%w: transfer does not match existing token contract %s",
				ErrInvalid, balance.TokenContract)
		}
		balance = balance.Clone()
		funds, err := balance.Funds.Add(quantity)
		if err != nil {
			return err
		}
		balance.Funds = funds
	}
	if err := e.state.PutBalance(balance); err != nil {
		return err
	}
	e.emit(newDepositedEvent(from, quantity, balance.Funds))
	return nil
}

// StakedBalance sums the staked amounts across the owner's positions via the
// owner ordering. It is derived, never stored.
func (e *Engine) StakedBalance(owner string) (token.Asset, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stakedBalanceLocked(owner)
}

func (e *Engine) stakedBalanceLocked(owner string) (token.Asset, error) {
	cfg, err := e.ensureConfig()
	if err != nil {
		return token.Asset{}, err
	}
	staked := token.ZeroAsset(cfg.StakingTokenSymbol)
	positions, err := e.state.OwnerPositions(owner)
	if err != nil {
		return token.Asset{}, err
	}
	for _, position := range positions {
		staked, err = staked.Add(position.Staked)
		if err != nil {
			return token.Asset{}, err
		}
	}
	return staked, nil
}

// AvailableBalance is the deposited balance minus the staked balance. A
// missing balance row is an error: nothing was ever deposited.
func (e *Engine) AvailableBalance(owner string) (token.Asset, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.availableBalanceLocked(owner)
}

func (e *Engine) availableBalanceLocked(owner string) (token.Asset, error) {
	cfg, err := e.ensureConfig()
	if err != nil {
		return token.Asset{}, err
	}
	balance, err := e.state.Balance(owner, cfg.StakingTokenSymbol.Code)
	if err != nil {
		return token.Asset{}, err
	}
	if balance == nil {
		return token.Asset{}, fmt.Errorf("%w: no deposit on file for %s", ErrState, owner)
	}
	staked, err := e.stakedBalanceLocked(owner)
	if err != nil {
		return token.Asset{}, err
	}
	return balance.Funds.Sub(staked)
}

// Withdraw releases available funds back to the owner through the staking
// token contract. The outbound transfer is issued only once the debit is
// fully validated and staged.
func (e *Engine) Withdraw(caller string, quantity token.Asset) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.withdrawLocked(caller, quantity)
}

// WithdrawAll releases the owner's entire available balance.
func (e *Engine) WithdrawAll(caller string) (token.Asset, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	available, err := e.availableBalanceLocked(caller)
	if err != nil {
		return token.Asset{}, err
	}
	if err := e.withdrawLocked(caller, available); err != nil {
		return token.Asset{}, err
	}
	return available, nil
}

func (e *Engine) withdrawLocked(caller string, quantity token.Asset) error {
	if err := e.guard(); err != nil {
		return err
	}
	cfg, err := e.ensureConfig()
	if err != nil {
		return err
	}
	if !quantity.Valid() || quantity.Sign() <= 0 {
		return fmt.Errorf("%w: withdrawal quantity %s", ErrInvalid, quantity)
	}
	if !quantity.Symbol.Equal(cfg.StakingTokenSymbol) {
		return fmt.Errorf("%w: only %s can be withdrawn, got %s",
			ErrInvalid, cfg.StakingTokenSymbol, quantity.Symbol)
	}
	available, err := e.availableBalanceLocked(caller)
	if err != nil {
		return err
	}
	if available.Cmp(quantity) < 0 {
		return fmt.Errorf("%w: requested %s but available balance is only %s",
			ErrInsufficientFunds, quantity, available)
	}
	balance, err := e.state.Balance(caller, quantity.Symbol.Code)
	if err != nil {
		return err
	}
	next := balance.Clone()
	funds, err := next.Funds.Sub(quantity)
	if err != nil {
		return err
	}
	next.Funds = funds

	// Local state is ready to commit: issue the one-way transfer, then apply
	// the debit. The payout rides the staking token contract, matching the
	// balance being debited.
	if e.token != nil {
		memo := "Withdrawal from " + e.authority
		if err := e.token.Transfer(cfg.StakingTokenContract, e.authority, caller, quantity, memo); err != nil {
			return err
		}
	}
	if err := e.state.PutBalance(next); err != nil {
		return err
	}
	e.emit(newWithdrawnEvent(caller, quantity))
	return nil
}
