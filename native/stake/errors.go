package stake

import "errors"

// The staking module groups every failure under four root error kinds. Each
// operation wraps the applicable root with context via fmt.Errorf("%w: ...")
// so callers can classify with errors.Is while still seeing the detail.
var (
	// ErrUnauthorized signals that the required signer did not authorize the
	// operation.
	ErrUnauthorized = errors.New("stake: unauthorized")
	// ErrInvalid signals a malformed argument: bad symbol, disallowed
	// duration, non-positive amount, or unknown account.
	ErrInvalid = errors.New("stake: invalid argument")
	// ErrState signals that the operation is not permitted in the current
	// lifecycle state: module paused, position missing, maturity not reached,
	// or nothing left to claim.
	ErrState = errors.New("stake: invalid state")
	// ErrInsufficientFunds signals that the available balance cannot cover
	// the requested amount.
	ErrInsufficientFunds = errors.New("stake: insufficient funds")
)
