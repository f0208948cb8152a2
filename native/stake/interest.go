package stake

import (
	"math/big"

	"hagglex/native/token"
)

// Interest accrues proportionally over the position's lifetime: the windows
// paid by successive claims partition [StakedAt, ExpiresAt], so the lifetime
// payout converges on rate x stakedAmount (converted at the configured price)
// regardless of how often the owner claims. The accrual engine is pure; it
// never touches stored state.

// accrualWindow returns the half-open span [from, to) covered by a claim at
// the given time. A zero LastPaidAt means nothing was claimed yet, so accrual
// starts at StakedAt. The window never extends past expiration.
func accrualWindow(p *Position, now int64) (from, to int64) {
	from = p.LastPaidAt
	if from < p.StakedAt {
		from = p.StakedAt
	}
	to = now
	if to > p.ExpiresAt {
		to = p.ExpiresAt
	}
	return from, to
}

// InterestOwed computes the interest payable for a claim at the given time,
// denominated in the interest token. price converts staking-token value into
// interest-token value; callers pass Config.EffectivePrice so an unset price
// reads as 1.
func InterestOwed(p *Position, now int64, price *big.Rat, interestSym token.Symbol) token.Asset {
	owed := token.ZeroAsset(interestSym)
	if p == nil || p.Staked.Amount == nil || p.Staked.Amount.Sign() <= 0 {
		return owed
	}
	total := p.DurationSeconds()
	if total <= 0 {
		return owed
	}
	from, to := accrualWindow(p, now)
	if to <= from {
		return owed
	}

	value := new(big.Rat).SetInt(p.Staked.Amount)
	value.Mul(value, p.Rate())
	value.Mul(value, big.NewRat(to-from, total))
	if price != nil && price.Sign() > 0 {
		value.Mul(value, price)
	}
	// Rescale from staking-token precision into interest-token precision and
	// floor to whole interest units.
	shift := int64(interestSym.Precision) - int64(p.Staked.Symbol.Precision)
	if shift > 0 {
		value.Mul(value, new(big.Rat).SetInt(pow10(shift)))
	} else if shift < 0 {
		value.Quo(value, new(big.Rat).SetInt(pow10(-shift)))
	}
	owed.Amount = new(big.Int).Quo(value.Num(), value.Denom())
	if owed.Amount.Sign() < 0 {
		owed.Amount = big.NewInt(0)
	}
	return owed
}

func pow10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}
