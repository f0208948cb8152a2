package stake

import (
	"math/big"

	"hagglex/native/token"
)

// Staking durations are restricted to three tiers. Values are whole days.
const (
	DurationThreeMonths  uint16 = 90
	DurationSixMonths    uint16 = 180
	DurationTwelveMonths uint16 = 360
)

// Interest rates per tier, in basis points of the staked amount over the full
// term.
const (
	RateThreeMonthsBps  uint64 = 1_500
	RateSixMonthsBps    uint64 = 3_000
	RateTwelveMonthsBps uint64 = 5_500
)

const (
	secondsPerDay  = 24 * 60 * 60
	bpsDenominator = 10_000
	// rateIndexScale converts a fractional rate into the integer key used by
	// the rate ordering (0.15 -> 150_000_000).
	rateIndexScale = 1_000_000_000
)

// Position is a single staking commitment. It exists from the stake operation
// that creates it until a completed unstake erases it; rows are never
// partially deleted.
type Position struct {
	// ID is the monotonically assigned primary key.
	ID uint64
	// Owner is the account the commitment belongs to.
	Owner string
	// Staked is the locked asset, denominated in the staking token.
	Staked token.Asset
	// RateBps is the tier interest rate in basis points (1500, 3000 or 5500).
	RateBps uint64
	// InterestPaid accumulates interest already paid out, in the interest
	// token.
	InterestPaid token.Asset
	// LastPaidAt is the unix timestamp of the last interest payment. Zero
	// means no claim has happened yet and accrual runs from StakedAt.
	LastPaidAt int64
	// StakedAt is the unix timestamp the commitment was recorded.
	StakedAt int64
	// ExpiresAt is StakedAt plus the tier duration at creation time.
	ExpiresAt int64
	// Tier-membership snapshots: the number of active positions in each tier,
	// including this one, captured when the position was created. Used by the
	// aggregate reward-pool queries.
	ThreeMonthStakers  uint64
	SixMonthStakers    uint64
	TwelveMonthStakers uint64
}

// Clone returns a deep copy so callers can mutate the result without
// touching the stored instance.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Staked = p.Staked.Clone()
	clone.InterestPaid = p.InterestPaid.Clone()
	return &clone
}

// DurationSeconds is the accrual denominator: ExpiresAt - StakedAt. Rewind
// widens it by moving StakedAt backward while ExpiresAt stays put.
func (p *Position) DurationSeconds() int64 {
	return p.ExpiresAt - p.StakedAt
}

// Matured reports whether the position has reached its expiration.
func (p *Position) Matured(now int64) bool {
	return now >= p.ExpiresAt
}

// FullyPaid reports whether no further interest remains claimable.
func (p *Position) FullyPaid() bool {
	return p.LastPaidAt >= p.ExpiresAt
}

// rateKey derives the integer ordering key for the rate index.
func (p *Position) rateKey() uint64 {
	return p.RateBps * (rateIndexScale / bpsDenominator)
}

// Rate returns the position's interest rate as an exact fraction.
func (p *Position) Rate() *big.Rat {
	return new(big.Rat).SetFrac64(int64(p.RateBps), bpsDenominator)
}

// RateBpsForDuration maps a staking duration to its fixed tier rate. Any
// duration outside the three tiers is rejected outright.
func RateBpsForDuration(days uint16) (uint64, bool) {
	switch days {
	case DurationThreeMonths:
		return RateThreeMonthsBps, true
	case DurationSixMonths:
		return RateSixMonthsBps, true
	case DurationTwelveMonths:
		return RateTwelveMonthsBps, true
	default:
		return 0, false
	}
}

// Balance is a deposited-funds row, keyed by (owner, symbol code). The
// recording token contract must never change once set.
type Balance struct {
	Owner         string
	Funds         token.Asset
	TokenContract string
}

// Clone returns a deep copy of the balance row.
func (b *Balance) Clone() *Balance {
	if b == nil {
		return nil
	}
	clone := *b
	clone.Funds = b.Funds.Clone()
	return &clone
}

// ClaimResult reports the outcome of one position inside a ClaimAll sweep.
type ClaimResult struct {
	PositionID uint64
	Paid       token.Asset
	Err        error
}
