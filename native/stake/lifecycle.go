package stake

import (
	"errors"
	"fmt"

	"hagglex/native/token"
)

// Stake records a new commitment against funds already deposited. No token
// moves here: the position locks part of the owner's deposited balance, and
// the engine verifies the available balance covers the quantity before the
// commitment is created.
func (e *Engine) Stake(caller string, quantity token.Asset, durationDays uint16) (*Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return nil, err
	}
	cfg, err := e.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !token.ValidName(caller) {
		return nil, fmt.Errorf("%w: account %q", ErrInvalid, caller)
	}
	rateBps, ok := RateBpsForDuration(durationDays)
	if !ok {
		return nil, fmt.Errorf("%w: can only stake for 90, 180 or 360 days, got %d", ErrInvalid, durationDays)
	}
	if !quantity.Valid() || quantity.Sign() <= 0 {
		return nil, fmt.Errorf("%w: stake quantity %s", ErrInvalid, quantity)
	}
	if !quantity.Symbol.Equal(cfg.StakingTokenSymbol) {
		return nil, fmt.Errorf("%w: only %s can be staked, got %s",
			ErrInvalid, cfg.StakingTokenSymbol.Code, quantity.Symbol.Code)
	}
	available, err := e.availableBalanceLocked(caller)
	if err != nil {
		return nil, err
	}
	if available.Cmp(quantity) < 0 {
		return nil, fmt.Errorf("%w: staking %s but available balance is only %s",
			ErrInsufficientFunds, quantity, available)
	}

	counts, err := e.tierCountsLocked()
	if err != nil {
		return nil, err
	}
	switch durationDays {
	case DurationThreeMonths:
		counts[0]++
	case DurationSixMonths:
		counts[1]++
	case DurationTwelveMonths:
		counts[2]++
	}

	id, err := e.state.NextPositionID()
	if err != nil {
		return nil, err
	}
	now := e.now()
	position := &Position{
		ID:                 id,
		Owner:              caller,
		Staked:             quantity.Clone(),
		RateBps:            rateBps,
		InterestPaid:       token.ZeroAsset(cfg.InterestTokenSymbol),
		StakedAt:           now,
		ExpiresAt:          now + int64(durationDays)*secondsPerDay,
		ThreeMonthStakers:  counts[0],
		SixMonthStakers:    counts[1],
		TwelveMonthStakers: counts[2],
	}
	if err := e.state.PutPosition(position); err != nil {
		return nil, err
	}
	e.emit(newStakedEvent(position))
	return position.Clone(), nil
}

// tierCountsLocked snapshots the number of active positions per tier via the
// duration ordering.
func (e *Engine) tierCountsLocked() ([3]uint64, error) {
	var counts [3]uint64
	for i, days := range []uint16{DurationThreeMonths, DurationSixMonths, DurationTwelveMonths} {
		siblings, err := e.state.DurationPositions(int64(days) * secondsPerDay)
		if err != nil {
			return counts, err
		}
		counts[i] = uint64(len(siblings))
	}
	return counts, nil
}

// Claim pays the interest accrued since the last claim and advances the
// last-paid watermark. Once the watermark reaches expiration the position
// can only be unstaked.
func (e *Engine) Claim(caller string, id uint64) (token.Asset, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.claimLocked(caller, id)
}

func (e *Engine) claimLocked(caller string, id uint64) (token.Asset, error) {
	if err := e.guard(); err != nil {
		return token.Asset{}, err
	}
	cfg, err := e.ensureConfig()
	if err != nil {
		return token.Asset{}, err
	}
	position, err := e.position(id)
	if err != nil {
		return token.Asset{}, err
	}
	if caller != position.Owner {
		return token.Asset{}, fmt.Errorf("%w: position %d belongs to %s", ErrUnauthorized, id, position.Owner)
	}
	if position.FullyPaid() {
		return token.Asset{}, fmt.Errorf("%w: position %d has expired and all interest has been claimed, unstake it",
			ErrState, id)
	}

	now := e.now()
	owed := InterestOwed(position, now, cfg.EffectivePrice(), cfg.InterestTokenSymbol)
	next := position.Clone()
	if next.InterestPaid.Amount == nil || !next.InterestPaid.Symbol.Valid() {
		next.InterestPaid = token.ZeroAsset(owed.Symbol)
	}
	paid, err := next.InterestPaid.Add(owed)
	if err != nil {
		return token.Asset{}, err
	}
	next.InterestPaid = paid
	next.LastPaidAt = now
	if next.LastPaidAt > next.ExpiresAt {
		next.LastPaidAt = next.ExpiresAt
	}

	// State is validated and staged; issue the one-way interest payment,
	// then commit the watermark.
	if owed.Sign() > 0 && e.token != nil {
		memo := fmt.Sprintf("Interest Payment from Position #%d", id)
		if err := e.token.Transfer(cfg.InterestTokenContract, e.authority, position.Owner, owed, memo); err != nil {
			return token.Asset{}, err
		}
	}
	if err := e.state.PutPosition(next); err != nil {
		return token.Asset{}, err
	}
	e.emit(newClaimedEvent(next, owed))
	return owed, nil
}

// ClaimAll claims every position owned by the account. A failing position
// does not abort the sweep: each outcome is reported, and the joined error
// carries every individual failure.
func (e *Engine) ClaimAll(caller string) ([]ClaimResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return nil, err
	}
	positions, err := e.state.OwnerPositions(caller)
	if err != nil {
		return nil, err
	}
	results := make([]ClaimResult, 0, len(positions))
	var errs []error
	for _, position := range positions {
		if position.FullyPaid() {
			continue
		}
		paid, err := e.claimLocked(caller, position.ID)
		results = append(results, ClaimResult{PositionID: position.ID, Paid: paid, Err: err})
		if err != nil {
			errs = append(errs, fmt.Errorf("position %d: %w", position.ID, err))
		}
	}
	return results, errors.Join(errs...)
}

// Unstake erases a matured position, folding any outstanding interest into a
// final claim first. The staked funds become available again because the
// staked balance is derived from live positions.
func (e *Engine) Unstake(caller string, id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return err
	}
	position, err := e.position(id)
	if err != nil {
		return err
	}
	if caller != position.Owner {
		return fmt.Errorf("%w: position %d belongs to %s", ErrUnauthorized, id, position.Owner)
	}
	if !position.Matured(e.now()) {
		return fmt.Errorf("%w: cannot unstake, staking time has not yet expired", ErrState)
	}
	if !position.FullyPaid() {
		if _, err := e.claimLocked(caller, id); err != nil {
			return err
		}
		position, err = e.position(id)
		if err != nil {
			return err
		}
	}
	if err := e.state.DeletePosition(id); err != nil {
		return err
	}
	e.emit(newClosedEvent(position))
	return nil
}
