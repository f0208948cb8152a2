package stake

import (
	"math/big"

	"hagglex/native/token"
)

// SettingActive is the reserved settings key backing the pause flag. The
// settings map starts empty, and an absent flag reads as zero, so a fresh
// deployment is paused until the admin activates it.
const SettingActive = "active"

// Config is the singleton configuration record read by every operation.
type Config struct {
	// StakingTokenContract and StakingTokenSymbol identify the token accepted
	// for deposits and staking.
	StakingTokenContract string
	StakingTokenSymbol   token.Symbol
	// InterestTokenContract and InterestTokenSymbol identify the token
	// interest is paid in.
	InterestTokenContract string
	InterestTokenSymbol   token.Symbol
	// Price converts staking-token value into interest-token value. A nil or
	// zero price is treated as 1 when computing interest.
	Price *big.Rat
	// Settings is a general purpose name -> flag map.
	Settings map[string]uint8
}

// DefaultConfig mirrors the defaults the contract ships with: HAG staked and
// HAG paid, both at four decimal places.
func DefaultConfig() *Config {
	hag := token.Symbol{Code: "HAG", Precision: 4}
	return &Config{
		StakingTokenContract:  "hagglextoken",
		StakingTokenSymbol:    hag,
		InterestTokenContract: "hagglextoken",
		InterestTokenSymbol:   hag,
		Price:                 new(big.Rat),
		Settings:              map[string]uint8{},
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Price = new(big.Rat)
	if c.Price != nil {
		clone.Price.Set(c.Price)
	}
	clone.Settings = make(map[string]uint8, len(c.Settings))
	for name, value := range c.Settings {
		clone.Settings[name] = value
	}
	return &clone
}

// Setting reads a flag, defaulting to zero when absent.
func (c *Config) Setting(name string) uint8 {
	if c == nil || c.Settings == nil {
		return 0
	}
	return c.Settings[name]
}

// IsPaused reports whether the module should reject mutating operations.
func (c *Config) IsPaused() bool {
	return c.Setting(SettingActive) == 0
}

// EffectivePrice returns the conversion price with the unset-means-one rule
// applied.
func (c *Config) EffectivePrice() *big.Rat {
	if c == nil || c.Price == nil || c.Price.Sign() == 0 {
		return big.NewRat(1, 1)
	}
	return new(big.Rat).Set(c.Price)
}
