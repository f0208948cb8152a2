package state

import (
	"math/big"
	"testing"

	"hagglex/native/stake"
	"hagglex/native/token"
	"hagglex/storage"
)

var hag = token.Symbol{Code: "HAG", Precision: 4}

func newTestManager(t *testing.T) (*Manager, storage.Database) {
	t.Helper()
	db := storage.NewMemDB()
	m, err := NewManager(db)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m, db
}

func testPosition(id uint64, owner string, amount int64, stakedAt, expiresAt int64) *stake.Position {
	return &stake.Position{
		ID:           id,
		Owner:        owner,
		Staked:       token.Asset{Amount: big.NewInt(amount), Symbol: hag},
		RateBps:      1_500,
		InterestPaid: token.ZeroAsset(hag),
		StakedAt:     stakedAt,
		ExpiresAt:    expiresAt,
	}
}

func TestConfigRoundTrip(t *testing.T) {
	m, _ := newTestManager(t)

	cfg, err := m.Config()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg != nil {
		t.Fatalf("fresh store should have no config, got %+v", cfg)
	}

	want := stake.DefaultConfig()
	want.Price = big.NewRat(3, 2)
	want.Settings[stake.SettingActive] = 1
	want.Settings["maintenance"] = 7
	if err := m.PutConfig(want); err != nil {
		t.Fatalf("put config: %v", err)
	}

	got, err := m.Config()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if got.StakingTokenContract != want.StakingTokenContract {
		t.Fatalf("contract = %s", got.StakingTokenContract)
	}
	if !got.StakingTokenSymbol.Equal(want.StakingTokenSymbol) {
		t.Fatalf("symbol = %v", got.StakingTokenSymbol)
	}
	if got.Price.Cmp(want.Price) != 0 {
		t.Fatalf("price = %s", got.Price.RatString())
	}
	if got.Settings[stake.SettingActive] != 1 || got.Settings["maintenance"] != 7 {
		t.Fatalf("settings = %v", got.Settings)
	}
}

func TestPositionRoundTripAndIndexes(t *testing.T) {
	m, _ := newTestManager(t)

	id, err := m.NextPositionID()
	if err != nil {
		t.Fatalf("next id: %v", err)
	}
	if id != 1 {
		t.Fatalf("fresh store next id = %d", id)
	}

	if err := m.PutPosition(testPosition(1, "bob", 200, 100, 100+90*86400)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := m.PutPosition(testPosition(2, "alice", 100, 200, 200+180*86400)); err != nil {
		t.Fatalf("put: %v", err)
	}

	id, err = m.NextPositionID()
	if err != nil {
		t.Fatalf("next id: %v", err)
	}
	if id != 3 {
		t.Fatalf("next id = %d", id)
	}

	got, err := m.Position(1)
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if got.Owner != "bob" || got.Staked.Amount.Int64() != 200 {
		t.Fatalf("position = %+v", got)
	}
	missing, err := m.Position(99)
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if missing != nil {
		t.Fatalf("missing position = %+v", missing)
	}

	owned, err := m.OwnerPositions("alice")
	if err != nil {
		t.Fatalf("owner positions: %v", err)
	}
	if len(owned) != 1 || owned[0].ID != 2 {
		t.Fatalf("alice positions = %+v", owned)
	}

	byDuration, err := m.DurationPositions(90 * 86400)
	if err != nil {
		t.Fatalf("duration positions: %v", err)
	}
	if len(byDuration) != 1 || byDuration[0].ID != 1 {
		t.Fatalf("duration positions = %+v", byDuration)
	}

	byAmount, err := m.PositionIDs(stake.OrderByAmount)
	if err != nil {
		t.Fatalf("ids: %v", err)
	}
	if len(byAmount) != 2 || byAmount[0] != 2 || byAmount[1] != 1 {
		t.Fatalf("amount ordering = %v", byAmount)
	}
}

func TestPositionUpdateRekeysIndexes(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.PutPosition(testPosition(1, "alice", 100, 500, 500+90*86400)); err != nil {
		t.Fatalf("put: %v", err)
	}

	moved := testPosition(1, "alice", 100, 400, 500+90*86400)
	if err := m.PutPosition(moved); err != nil {
		t.Fatalf("update: %v", err)
	}

	byDuration, err := m.DurationPositions(90*86400 + 100)
	if err != nil {
		t.Fatalf("duration positions: %v", err)
	}
	if len(byDuration) != 1 || byDuration[0].ID != 1 {
		t.Fatalf("re-keyed duration lookup = %+v", byDuration)
	}
	stale, err := m.DurationPositions(90 * 86400)
	if err != nil {
		t.Fatalf("duration positions: %v", err)
	}
	if len(stale) != 0 {
		t.Fatalf("stale duration entry = %+v", stale)
	}
}

func TestDeletePosition(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.PutPosition(testPosition(1, "alice", 100, 100, 100+90*86400)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := m.DeletePosition(1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := m.Position(1)
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if got != nil {
		t.Fatalf("deleted position = %+v", got)
	}
	owned, err := m.OwnerPositions("alice")
	if err != nil {
		t.Fatalf("owner positions: %v", err)
	}
	if len(owned) != 0 {
		t.Fatalf("index entry survived delete: %+v", owned)
	}
	// Deleting a missing id is a no-op.
	if err := m.DeletePosition(42); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestReopenRebuildsIndexes(t *testing.T) {
	m, db := newTestManager(t)
	if err := m.PutPosition(testPosition(1, "bob", 200, 100, 100+90*86400)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := m.PutPosition(testPosition(5, "alice", 100, 200, 200+180*86400)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := m.DeletePosition(1); err != nil {
		t.Fatalf("delete: %v", err)
	}

	reopened, err := NewManager(db)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	id, err := reopened.NextPositionID()
	if err != nil {
		t.Fatalf("next id: %v", err)
	}
	if id != 6 {
		t.Fatalf("next id after reopen = %d", id)
	}
	owned, err := reopened.OwnerPositions("alice")
	if err != nil {
		t.Fatalf("owner positions: %v", err)
	}
	if len(owned) != 1 || owned[0].ID != 5 {
		t.Fatalf("rebuilt index = %+v", owned)
	}
	if ids, err := reopened.PositionIDs(stake.OrderByOwner); err != nil || len(ids) != 1 {
		t.Fatalf("rebuilt ids = %v (%v)", ids, err)
	}
}

func TestBalanceRoundTrip(t *testing.T) {
	m, _ := newTestManager(t)

	missing, err := m.Balance("alice", "HAG")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if missing != nil {
		t.Fatalf("missing balance = %+v", missing)
	}

	row := &stake.Balance{
		Owner:         "alice",
		Funds:         token.Asset{Amount: big.NewInt(5_000_000), Symbol: hag},
		TokenContract: "hagglextoken",
	}
	if err := m.PutBalance(row); err != nil {
		t.Fatalf("put balance: %v", err)
	}
	got, err := m.Balance("alice", "HAG")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if got.Funds.String() != "500.0000 HAG" || got.TokenContract != "hagglextoken" {
		t.Fatalf("balance = %+v", got)
	}
}

func TestTokenRowsRoundTrip(t *testing.T) {
	m, _ := newTestManager(t)
	const contract = "hagglextoken"

	stat := &token.Stat{
		Supply:    token.ZeroAsset(hag),
		MaxSupply: token.Asset{Amount: big.NewInt(1_000_000), Symbol: hag},
		Issuer:    "hagissuer11",
		CreatedAt: 42,
	}
	if err := m.PutTokenStat(contract, stat); err != nil {
		t.Fatalf("put stat: %v", err)
	}
	gotStat, err := m.TokenStat(contract, "HAG")
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if gotStat.Issuer != "hagissuer11" || gotStat.MaxSupply.Amount.Int64() != 1_000_000 {
		t.Fatalf("stat = %+v", gotStat)
	}

	if err := m.PutTokenBalance(contract, "alice", token.NewAsset(77, hag)); err != nil {
		t.Fatalf("put balance: %v", err)
	}
	balance, err := m.TokenBalance(contract, "alice", "HAG")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Amount.Int64() != 77 {
		t.Fatalf("balance = %+v", balance)
	}
	if err := m.DeleteTokenBalance(contract, "alice", "HAG"); err != nil {
		t.Fatalf("delete balance: %v", err)
	}
	balance, err = m.TokenBalance(contract, "alice", "HAG")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != nil {
		t.Fatalf("deleted balance = %+v", balance)
	}

	for _, account := range []string{"mallory", "eve"} {
		if err := m.PutTokenBlacklist(contract, account, true); err != nil {
			t.Fatalf("blacklist: %v", err)
		}
	}
	listed, err := m.TokenBlacklisted(contract, "eve")
	if err != nil || !listed {
		t.Fatalf("eve listed = %v (%v)", listed, err)
	}
	accounts, err := m.TokenBlacklist(contract)
	if err != nil {
		t.Fatalf("blacklist scan: %v", err)
	}
	if len(accounts) != 2 || accounts[0] != "eve" || accounts[1] != "mallory" {
		t.Fatalf("blacklist = %v", accounts)
	}
	if err := m.PutTokenBlacklist(contract, "eve", false); err != nil {
		t.Fatalf("unblacklist: %v", err)
	}
	listed, err = m.TokenBlacklisted(contract, "eve")
	if err != nil || listed {
		t.Fatalf("eve still listed = %v (%v)", listed, err)
	}
}
