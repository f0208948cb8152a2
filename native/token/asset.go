package token

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// MaxAssetAmount bounds every asset amount so derived index keys and
// precision rescaling stay within 64-bit arithmetic.
const MaxAssetAmount = (1 << 62) - 1

// MaxMemoBytes caps the memo attached to transfers and issuance.
const MaxMemoBytes = 256

var (
	errInvalidSymbol  = errors.New("token: invalid symbol")
	errInvalidAccount = errors.New("token: invalid account name")
	errInvalidAmount  = errors.New("token: invalid amount")
)

// Symbol identifies a fungible token denomination together with the number of
// decimal places used when rendering amounts.
type Symbol struct {
	Code      string
	Precision uint8
}

// NewSymbol validates the code and precision and returns the canonical symbol.
func NewSymbol(code string, precision uint8) (Symbol, error) {
	s := Symbol{Code: strings.ToUpper(strings.TrimSpace(code)), Precision: precision}
	if !s.Valid() {
		return Symbol{}, fmt.Errorf("%w: %q", errInvalidSymbol, code)
	}
	return s, nil
}

// Valid reports whether the symbol code is 1-7 uppercase letters and the
// precision is within the supported range.
func (s Symbol) Valid() bool {
	if len(s.Code) == 0 || len(s.Code) > 7 {
		return false
	}
	for _, r := range s.Code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return s.Precision <= 18
}

// Equal reports whether both the code and precision match.
func (s Symbol) Equal(other Symbol) bool {
	return s.Code == other.Code && s.Precision == other.Precision
}

func (s Symbol) String() string {
	return fmt.Sprintf("%d,%s", s.Precision, s.Code)
}

// unit returns 10^precision as a big integer.
func (s Symbol) unit() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(s.Precision)), nil)
}

// Asset couples an integer amount with its symbol. The amount is expressed in
// the smallest unit, so "500.0000 HAG" carries an amount of 5_000_000.
type Asset struct {
	Amount *big.Int
	Symbol Symbol
}

// NewAsset builds an asset from an amount in smallest units.
func NewAsset(amount int64, sym Symbol) Asset {
	return Asset{Amount: big.NewInt(amount), Symbol: sym}
}

// ZeroAsset returns a zero-valued asset for the symbol.
func ZeroAsset(sym Symbol) Asset {
	return Asset{Amount: big.NewInt(0), Symbol: sym}
}

// Clone returns a deep copy so callers can mutate the result freely.
func (a Asset) Clone() Asset {
	clone := Asset{Symbol: a.Symbol}
	if a.Amount != nil {
		clone.Amount = new(big.Int).Set(a.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return clone
}

// Valid reports whether the symbol is well formed and the amount sits within
// the permitted range.
func (a Asset) Valid() bool {
	if !a.Symbol.Valid() || a.Amount == nil {
		return false
	}
	if a.Amount.Sign() < 0 {
		return false
	}
	return a.Amount.Cmp(big.NewInt(MaxAssetAmount)) <= 0
}

// Sign mirrors big.Int.Sign over the amount, treating nil as zero.
func (a Asset) Sign() int {
	if a.Amount == nil {
		return 0
	}
	return a.Amount.Sign()
}

// Add returns a + b, rejecting symbol mismatches.
func (a Asset) Add(b Asset) (Asset, error) {
	if !a.Symbol.Equal(b.Symbol) {
		return Asset{}, fmt.Errorf("%w: cannot add %s to %s", errInvalidAmount, b.Symbol, a.Symbol)
	}
	out := a.Clone()
	out.Amount.Add(out.Amount, b.Clone().Amount)
	return out, nil
}

// Sub returns a - b, rejecting symbol mismatches and negative results.
func (a Asset) Sub(b Asset) (Asset, error) {
	if !a.Symbol.Equal(b.Symbol) {
		return Asset{}, fmt.Errorf("%w: cannot subtract %s from %s", errInvalidAmount, b.Symbol, a.Symbol)
	}
	out := a.Clone()
	out.Amount.Sub(out.Amount, b.Clone().Amount)
	if out.Amount.Sign() < 0 {
		return Asset{}, fmt.Errorf("%w: result below zero", errInvalidAmount)
	}
	return out, nil
}

// Cmp compares amounts, ignoring symbols. Callers are expected to have
// verified symbol equality beforehand.
func (a Asset) Cmp(b Asset) int {
	av := big.NewInt(0)
	if a.Amount != nil {
		av = a.Amount
	}
	bv := big.NewInt(0)
	if b.Amount != nil {
		bv = b.Amount
	}
	return av.Cmp(bv)
}

// String renders the canonical form, e.g. "500.0000 HAG".
func (a Asset) String() string {
	amount := big.NewInt(0)
	if a.Amount != nil {
		amount = a.Amount
	}
	if a.Symbol.Precision == 0 {
		return fmt.Sprintf("%s %s", amount.String(), a.Symbol.Code)
	}
	unit := a.Symbol.unit()
	whole, frac := new(big.Int).QuoRem(new(big.Int).Abs(amount), unit, new(big.Int))
	sign := ""
	if amount.Sign() < 0 {
		sign = "-"
	}
	return fmt.Sprintf("%s%s.%0*s %s", sign, whole.String(), int(a.Symbol.Precision), frac.String(), a.Symbol.Code)
}

// ParseAsset parses the canonical "500.0000 HAG" form. The fractional part
// fixes the symbol precision, matching the representation used on the wire.
func ParseAsset(s string) (Asset, error) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) != 2 {
		return Asset{}, fmt.Errorf("%w: %q", errInvalidAmount, s)
	}
	numeric, code := fields[0], fields[1]
	negative := strings.HasPrefix(numeric, "-")
	numeric = strings.TrimPrefix(numeric, "-")
	wholePart := numeric
	fracPart := ""
	if idx := strings.IndexByte(numeric, '.'); idx >= 0 {
		wholePart, fracPart = numeric[:idx], numeric[idx+1:]
	}
	if wholePart == "" && fracPart == "" {
		return Asset{}, fmt.Errorf("%w: %q", errInvalidAmount, s)
	}
	if len(fracPart) > 18 {
		return Asset{}, fmt.Errorf("%w: precision of %q exceeds 18", errInvalidAmount, s)
	}
	sym, err := NewSymbol(code, uint8(len(fracPart)))
	if err != nil {
		return Asset{}, err
	}
	digits := wholePart + fracPart
	if digits == "" {
		digits = "0"
	}
	amount, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return Asset{}, fmt.Errorf("%w: %q", errInvalidAmount, s)
	}
	if negative {
		amount.Neg(amount)
	}
	asset := Asset{Amount: amount, Symbol: sym}
	if !asset.Valid() {
		return Asset{}, fmt.Errorf("%w: %q", errInvalidAmount, s)
	}
	return asset, nil
}

// Rescale converts the amount to the target symbol precision, flooring any
// excess fractional units. The symbol code is replaced by the target's.
func (a Asset) Rescale(target Symbol) Asset {
	out := ZeroAsset(target)
	if a.Amount == nil || a.Amount.Sign() == 0 {
		return out
	}
	value := new(big.Int).Mul(a.Amount, target.unit())
	out.Amount = value.Quo(value, a.Symbol.unit())
	return out
}

// ValidName reports whether the account name satisfies the ledger naming
// rules: 1-12 characters drawn from a-z, 1-5 and '.', not starting or ending
// with a dot.
func ValidName(name string) bool {
	if len(name) == 0 || len(name) > 12 {
		return false
	}
	if name[0] == '.' || name[len(name)-1] == '.' {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '1' && c <= '5':
		case c == '.':
		default:
			return false
		}
	}
	return true
}
