package state

import (
	"fmt"
	"math/big"
	"sort"

	"hagglex/native/stake"
	"hagglex/native/token"
)

// Stored records mirror the in-memory types with RLP-friendly field shapes:
// unsigned timestamps, rationals as strings and maps as parallel slices.

type storedSymbol struct {
	Code      string
	Precision uint8
}

func toStoredSymbol(s token.Symbol) storedSymbol {
	return storedSymbol{Code: s.Code, Precision: s.Precision}
}

func (s storedSymbol) symbol() token.Symbol {
	return token.Symbol{Code: s.Code, Precision: s.Precision}
}

type storedAsset struct {
	Amount *big.Int
	Symbol storedSymbol
}

func toStoredAsset(a token.Asset) storedAsset {
	amount := new(big.Int)
	if a.Amount != nil {
		amount.Set(a.Amount)
	}
	return storedAsset{Amount: amount, Symbol: toStoredSymbol(a.Symbol)}
}

func (a storedAsset) asset() token.Asset {
	amount := new(big.Int)
	if a.Amount != nil {
		amount.Set(a.Amount)
	}
	return token.Asset{Amount: amount, Symbol: a.Symbol.symbol()}
}

type storedConfig struct {
	StakingTokenContract  string
	StakingTokenSymbol    storedSymbol
	InterestTokenContract string
	InterestTokenSymbol   storedSymbol
	Price                 string
	SettingNames          []string
	SettingValues         []byte
}

func toStoredConfig(c *stake.Config) *storedConfig {
	out := &storedConfig{
		StakingTokenContract:  c.StakingTokenContract,
		StakingTokenSymbol:    toStoredSymbol(c.StakingTokenSymbol),
		InterestTokenContract: c.InterestTokenContract,
		InterestTokenSymbol:   toStoredSymbol(c.InterestTokenSymbol),
		Price:                 "0",
	}
	if c.Price != nil {
		out.Price = c.Price.RatString()
	}
	names := make([]string, 0, len(c.Settings))
	for name := range c.Settings {
		names = append(names, name)
	}
	sort.Strings(names)
	out.SettingNames = names
	out.SettingValues = make([]byte, len(names))
	for i, name := range names {
		out.SettingValues[i] = c.Settings[name]
	}
	return out
}

func (s *storedConfig) config() (*stake.Config, error) {
	if len(s.SettingNames) != len(s.SettingValues) {
		return nil, fmt.Errorf("state: corrupt config settings")
	}
	price, ok := new(big.Rat).SetString(s.Price)
	if !ok {
		return nil, fmt.Errorf("state: corrupt config price %q", s.Price)
	}
	cfg := &stake.Config{
		StakingTokenContract:  s.StakingTokenContract,
		StakingTokenSymbol:    s.StakingTokenSymbol.symbol(),
		InterestTokenContract: s.InterestTokenContract,
		InterestTokenSymbol:   s.InterestTokenSymbol.symbol(),
		Price:                 price,
		Settings:              make(map[string]uint8, len(s.SettingNames)),
	}
	for i, name := range s.SettingNames {
		cfg.Settings[name] = s.SettingValues[i]
	}
	return cfg, nil
}

type storedPosition struct {
	ID                 uint64
	Owner              string
	Staked             storedAsset
	RateBps            uint64
	InterestPaid       storedAsset
	LastPaidAt         uint64
	StakedAt           uint64
	ExpiresAt          uint64
	ThreeMonthStakers  uint64
	SixMonthStakers    uint64
	TwelveMonthStakers uint64
}

func toStoredPosition(p *stake.Position) *storedPosition {
	return &storedPosition{
		ID:                 p.ID,
		Owner:              p.Owner,
		Staked:             toStoredAsset(p.Staked),
		RateBps:            p.RateBps,
		InterestPaid:       toStoredAsset(p.InterestPaid),
		LastPaidAt:         uint64(p.LastPaidAt),
		StakedAt:           uint64(p.StakedAt),
		ExpiresAt:          uint64(p.ExpiresAt),
		ThreeMonthStakers:  p.ThreeMonthStakers,
		SixMonthStakers:    p.SixMonthStakers,
		TwelveMonthStakers: p.TwelveMonthStakers,
	}
}

func (s *storedPosition) position() *stake.Position {
	return &stake.Position{
		ID:                 s.ID,
		Owner:              s.Owner,
		Staked:             s.Staked.asset(),
		RateBps:            s.RateBps,
		InterestPaid:       s.InterestPaid.asset(),
		LastPaidAt:         int64(s.LastPaidAt),
		StakedAt:           int64(s.StakedAt),
		ExpiresAt:          int64(s.ExpiresAt),
		ThreeMonthStakers:  s.ThreeMonthStakers,
		SixMonthStakers:    s.SixMonthStakers,
		TwelveMonthStakers: s.TwelveMonthStakers,
	}
}

type storedBalance struct {
	Owner         string
	Funds         storedAsset
	TokenContract string
}

func toStoredBalance(b *stake.Balance) *storedBalance {
	return &storedBalance{
		Owner:         b.Owner,
		Funds:         toStoredAsset(b.Funds),
		TokenContract: b.TokenContract,
	}
}

func (s *storedBalance) balance() *stake.Balance {
	return &stake.Balance{
		Owner:         s.Owner,
		Funds:         s.Funds.asset(),
		TokenContract: s.TokenContract,
	}
}

type storedTokenStat struct {
	Supply    storedAsset
	MaxSupply storedAsset
	Issuer    string
	CreatedAt uint64
	LastMint  uint64
}

func toStoredTokenStat(s *token.Stat) *storedTokenStat {
	return &storedTokenStat{
		Supply:    toStoredAsset(s.Supply),
		MaxSupply: toStoredAsset(s.MaxSupply),
		Issuer:    s.Issuer,
		CreatedAt: uint64(s.CreatedAt),
		LastMint:  uint64(s.LastMint),
	}
}

func (s *storedTokenStat) stat() *token.Stat {
	return &token.Stat{
		Supply:    s.Supply.asset(),
		MaxSupply: s.MaxSupply.asset(),
		Issuer:    s.Issuer,
		CreatedAt: int64(s.CreatedAt),
		LastMint:  int64(s.LastMint),
	}
}
