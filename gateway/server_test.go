package gateway

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"hagglex/gateway/middleware"
	"hagglex/native/stake"
	"hagglex/native/token"
	"hagglex/state"
	"hagglex/storage"
)

const (
	testAuthority  = "hagglexstake"
	testContract   = "hagglextoken"
	testIssuer     = "hagissuer11"
	testAdminToken = "test-admin-token"
)

// testClock is the engine's time source; tests advance it explicitly.
type testClock struct {
	now int64
}

func (c *testClock) Now() int64 { return c.now }

func (c *testClock) AdvanceDays(days int64) { c.now += days * 86400 }

type fixture struct {
	server *Server
	engine *stake.Engine
	ledger *token.Ledger
	clock  *testClock
}

func mustAsset(t *testing.T, text string) token.Asset {
	t.Helper()
	asset, err := token.ParseAsset(text)
	require.NoError(t, err)
	return asset
}

// newFixture assembles the full stack on an in-memory database: token
// ledger, staking engine and HTTP server, activated and ready for traffic.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := storage.NewMemDB()
	manager, err := state.NewManager(db)
	require.NoError(t, err)

	clock := &testClock{now: 1_700_000_000}

	engine := stake.NewEngine(testAuthority)
	engine.SetState(manager)
	engine.SetNowFunc(clock.Now)

	ledger := token.NewLedger(testContract)
	ledger.SetState(manager)
	ledger.SetNowFunc(clock.Now)
	ledger.Subscribe(testAuthority, engine)

	registry := token.NewRegistry()
	registry.AddAccount(testAuthority)
	registry.Register(ledger)
	engine.SetTransferor(registry)
	engine.SetAccountChecker(registry)

	require.NoError(t, ledger.Create(testContract, testIssuer, mustAsset(t, "1000000.0000 HAG")))
	require.NoError(t, ledger.Issue(testIssuer, testIssuer, mustAsset(t, "100000.0000 HAG"), "genesis"))
	require.NoError(t, engine.Activate(testAuthority))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := New(Config{
		Engine:      engine,
		Registry:    registry,
		Logger:      logger,
		AdminTokens: []string{testAdminToken},
		RateLimit:   middleware.RateLimit{PerSecond: 1000, Burst: 1000},
		ServiceName: "staked-test",
	})

	return &fixture{server: server, engine: engine, ledger: ledger, clock: clock}
}

// fund moves tokens from the issuer to an account so it can deposit.
func (f *fixture) fund(t *testing.T, account, quantity string) {
	t.Helper()
	require.NoError(t, f.ledger.Transfer(testIssuer, testIssuer, account, mustAsset(t, quantity), "funding"))
}

// fundVault tops up the authority account without crediting a deposit, so
// interest payouts have something to draw on.
func (f *fixture) fundVault(t *testing.T, quantity string) {
	t.Helper()
	require.NoError(t, f.ledger.Transfer(testIssuer, testIssuer, testAuthority, mustAsset(t, quantity), stake.DepositBypassMemo))
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (f *fixture) admin(t *testing.T, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return f.do(t, http.MethodPost, path, body, "Authorization", "Bearer "+testAdminToken)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), into))
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestConfigEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]interface{}
	decodeBody(t, rec, &got)
	require.Equal(t, testContract, got["staking_token_contract"])
	require.Equal(t, "HAG", got["staking_token_symbol"])
	require.Equal(t, "1", got["price"])
	require.Equal(t, false, got["paused"])
}

func TestDepositStakeClaimLifecycle(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", "1000.0000 HAG")
	f.fundVault(t, "1000.0000 HAG")

	rec := f.do(t, http.MethodPost, "/deposit", map[string]string{
		"from":     "alice",
		"quantity": "500.0000 HAG",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var deposited map[string]string
	decodeBody(t, rec, &deposited)
	require.Equal(t, "500.0000 HAG", deposited["available"])

	rec = f.do(t, http.MethodPost, "/stake", map[string]interface{}{
		"owner":         "alice",
		"quantity":      "500.0000 HAG",
		"duration_days": 90,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var position positionResponse
	decodeBody(t, rec, &position)
	require.Equal(t, uint64(1), position.ID)
	require.Equal(t, "alice", position.Owner)
	require.Equal(t, "500.0000 HAG", position.Staked)
	require.Equal(t, uint64(1500), position.RateBps)

	rec = f.do(t, http.MethodGet, "/accounts/alice/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var balance map[string]string
	decodeBody(t, rec, &balance)
	require.Equal(t, "0.0000 HAG", balance["available"])
	require.Equal(t, "500.0000 HAG", balance["staked"])
	require.Equal(t, "500.0000 HAG", balance["deposited"])

	rec = f.do(t, http.MethodGet, "/tiers/90/staked", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tier map[string]string
	decodeBody(t, rec, &tier)
	require.Equal(t, "500.0000 HAG", tier["total_staked"])

	f.clock.AdvanceDays(90)

	rec = f.do(t, http.MethodPost, "/claim", map[string]interface{}{
		"owner":       "alice",
		"position_id": 1,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var claimed map[string]string
	decodeBody(t, rec, &claimed)
	require.Equal(t, "75.0000 HAG", claimed["paid"])

	rec = f.do(t, http.MethodPost, "/unstake", map[string]interface{}{
		"owner":       "alice",
		"position_id": 1,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/withdrawall", map[string]string{"owner": "alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	var withdrawn map[string]string
	decodeBody(t, rec, &withdrawn)
	require.Equal(t, "500.0000 HAG", withdrawn["withdrawn"])

	// The staked principal plus the interest are back with the owner.
	got, err := f.ledger.Balance("alice", "HAG")
	require.NoError(t, err)
	require.Equal(t, "1075.0000 HAG", got.String())
}

func TestPositionsOrdering(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", "1000.0000 HAG")
	f.fund(t, "bob", "1000.0000 HAG")

	for _, step := range []struct {
		owner    string
		quantity string
		days     int
	}{
		{"alice", "300.0000 HAG", 90},
		{"bob", "100.0000 HAG", 360},
	} {
		rec := f.do(t, http.MethodPost, "/deposit", map[string]string{"from": step.owner, "quantity": step.quantity})
		require.Equal(t, http.StatusOK, rec.Code)
		rec = f.do(t, http.MethodPost, "/stake", map[string]interface{}{
			"owner":         step.owner,
			"quantity":      step.quantity,
			"duration_days": step.days,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := f.do(t, http.MethodGet, "/positions?ordering=amount", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var positions []positionResponse
	decodeBody(t, rec, &positions)
	require.Len(t, positions, 2)
	require.Equal(t, "bob", positions[0].Owner)
	require.Equal(t, "alice", positions[1].Owner)

	rec = f.do(t, http.MethodGet, "/positions/2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var single positionResponse
	decodeBody(t, rec, &single)
	require.Equal(t, "bob", single.Owner)
	require.Equal(t, uint64(5500), single.RateBps)
}

func TestErrorStatusMapping(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", "1000.0000 HAG")

	cases := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		kind   string
	}{
		{
			name:   "bad ordering",
			method: http.MethodGet,
			path:   "/positions?ordering=age",
			status: http.StatusBadRequest,
			kind:   "invalid",
		},
		{
			name:   "non numeric position id",
			method: http.MethodGet,
			path:   "/positions/abc",
			status: http.StatusBadRequest,
			kind:   "invalid",
		},
		{
			name:   "missing position",
			method: http.MethodGet,
			path:   "/positions/99",
			status: http.StatusConflict,
			kind:   "state",
		},
		{
			name:   "stake with no deposit",
			method: http.MethodPost,
			path:   "/stake",
			body:   map[string]interface{}{"owner": "alice", "quantity": "10.0000 HAG", "duration_days": 90},
			status: http.StatusConflict,
			kind:   "state",
		},
		{
			name:   "stake with bad duration",
			method: http.MethodPost,
			path:   "/stake",
			body:   map[string]interface{}{"owner": "alice", "quantity": "10.0000 HAG", "duration_days": 45},
			status: http.StatusBadRequest,
			kind:   "invalid",
		},
		{
			name:   "deposit overdraws token balance",
			method: http.MethodPost,
			path:   "/deposit",
			body:   map[string]string{"from": "alice", "quantity": "5000.0000 HAG"},
			status: http.StatusUnprocessableEntity,
			kind:   "insufficient_funds",
		},
		{
			name:   "withdraw foreign symbol",
			method: http.MethodPost,
			path:   "/withdraw",
			body:   map[string]string{"owner": "alice", "quantity": "5.0000 FOO"},
			status: http.StatusBadRequest,
			kind:   "invalid",
		},
		{
			name:   "unknown fields rejected",
			method: http.MethodPost,
			path:   "/stake",
			body:   map[string]interface{}{"owner": "alice", "quantity": "10.0000 HAG", "duration_days": 90, "extra": true},
			status: http.StatusBadRequest,
			kind:   "invalid",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, tc.method, tc.path, tc.body)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			var body errorResponse
			decodeBody(t, rec, &body)
			require.Equal(t, tc.kind, body.Kind)
			require.NotEmpty(t, body.Error)
		})
	}
}

func TestAdminRequiresBearerToken(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/admin/pause", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/admin/pause", nil, "Authorization", "Bearer wrong-token")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.admin(t, "/admin/pause", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/config", nil)
	var got map[string]interface{}
	decodeBody(t, rec, &got)
	require.Equal(t, true, got["paused"])

	// Mutations bounce off the circuit breaker while paused.
	f.fund(t, "alice", "100.0000 HAG")
	rec = f.do(t, http.MethodPost, "/deposit", map[string]string{"from": "alice", "quantity": "100.0000 HAG"})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = f.admin(t, "/admin/activate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/deposit", map[string]string{"from": "alice", "quantity": "100.0000 HAG"})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminDisabledWithoutTokens(t *testing.T) {
	f := newFixture(t)
	bare := New(Config{
		Engine:    f.engine,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		RateLimit: middleware.RateLimit{PerSecond: 1000, Burst: 1000},
	})
	req := httptest.NewRequest(http.MethodPost, "/admin/pause", nil)
	rec := httptest.NewRecorder()
	bare.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminSetPrice(t *testing.T) {
	f := newFixture(t)

	rec := f.admin(t, "/admin/price", map[string]string{"price": "1/2"})
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]string
	decodeBody(t, rec, &got)
	require.Equal(t, "1/2", got["price"])

	rec = f.do(t, http.MethodGet, "/config", nil)
	var cfg map[string]interface{}
	decodeBody(t, rec, &cfg)
	require.Equal(t, "1/2", cfg["price"])

	rec = f.admin(t, "/admin/price", map[string]string{"price": "lots"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.admin(t, "/admin/price", map[string]string{"price": "-1/2"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRewindAcceleratesAccrual(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", "1000.0000 HAG")
	f.fundVault(t, "1000.0000 HAG")

	rec := f.do(t, http.MethodPost, "/deposit", map[string]string{"from": "alice", "quantity": "500.0000 HAG"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodPost, "/stake", map[string]interface{}{
		"owner":         "alice",
		"quantity":      "500.0000 HAG",
		"duration_days": 90,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	before := f.positionByID(t, 1)

	rec = f.admin(t, "/admin/rewind", map[string]interface{}{"position_id": 1, "days": 30})
	require.Equal(t, http.StatusOK, rec.Code)

	after := f.positionByID(t, 1)
	require.Equal(t, before.StakedAt-30*86400, after.StakedAt)
	require.Equal(t, before.ExpiresAt, after.ExpiresAt)
}

func (f *fixture) positionByID(t *testing.T, id uint64) positionResponse {
	t.Helper()
	rec := f.do(t, http.MethodGet, "/positions/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got positionResponse
	decodeBody(t, rec, &got)
	require.Equal(t, id, got.ID)
	return got
}

func TestAdminSetConfig(t *testing.T) {
	f := newFixture(t)

	rec := f.admin(t, "/admin/config", map[string]interface{}{
		"staking_contract":   testContract,
		"staking_symbol":     "HAG",
		"staking_precision":  4,
		"interest_contract":  testContract,
		"interest_symbol":    "HAG",
		"interest_precision": 4,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Contracts have to exist on the platform.
	rec = f.admin(t, "/admin/config", map[string]interface{}{
		"staking_contract":   "ghosttoken11",
		"staking_symbol":     "HAG",
		"staking_precision":  4,
		"interest_contract":  testContract,
		"interest_symbol":    "HAG",
		"interest_precision": 4,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClaimAllPartialFailure(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", "1000.0000 HAG")

	rec := f.do(t, http.MethodPost, "/deposit", map[string]string{"from": "alice", "quantity": "400.0000 HAG"})
	require.Equal(t, http.StatusOK, rec.Code)
	for i := 0; i < 2; i++ {
		rec = f.do(t, http.MethodPost, "/stake", map[string]interface{}{
			"owner":         "alice",
			"quantity":      "200.0000 HAG",
			"duration_days": 90,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	f.clock.AdvanceDays(90)

	// Drain the vault down to one payout's worth so the second claim in the
	// sweep fails its transfer. The response turns multi-status.
	require.NoError(t, f.ledger.Transfer(testAuthority, testAuthority, testIssuer, mustAsset(t, "370.0000 HAG"), "drain"))

	rec = f.do(t, http.MethodPost, "/claimall", map[string]string{"owner": "alice"})
	require.Equal(t, http.StatusMultiStatus, rec.Code)

	var entries []struct {
		PositionID uint64 `json:"position_id"`
		Paid       string `json:"paid"`
		Error      string `json:"error"`
	}
	decodeBody(t, rec, &entries)
	require.Len(t, entries, 2)
	require.Equal(t, "30.0000 HAG", entries[0].Paid)
	require.Empty(t, entries[0].Error)
	require.Empty(t, entries[1].Paid)
	require.NotEmpty(t, entries[1].Error)

	f.fundVault(t, "1000.0000 HAG")

	// The first position is settled in full, so the second sweep only
	// touches the one that failed.
	rec = f.do(t, http.MethodPost, "/claimall", map[string]string{"owner": "alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &entries)
	require.Len(t, entries, 1)
	require.Equal(t, uint64(2), entries[0].PositionID)
	require.Equal(t, "30.0000 HAG", entries[0].Paid)
}

func TestRateLimiterThrottles(t *testing.T) {
	f := newFixture(t)
	limited := New(Config{
		Engine:    f.engine,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		RateLimit: middleware.RateLimit{PerSecond: 1, Burst: 2},
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/config", nil)
		req.Header.Set("X-Real-IP", "10.1.2.3")
		rec := httptest.NewRecorder()
		limited.Handler().ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// A different client gets its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	req.Header.Set("X-Real-IP", "10.9.9.9")
	rec := httptest.NewRecorder()
	limited.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
