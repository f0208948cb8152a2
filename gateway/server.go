package gateway

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hagglex/gateway/middleware"
	"hagglex/native/stake"
	"hagglex/native/token"
)

// Config wires the HTTP surface to the staking engine and the token registry.
type Config struct {
	Engine      *stake.Engine
	Registry    *token.Registry
	Logger      *slog.Logger
	AdminTokens []string
	RateLimit   middleware.RateLimit
	CORS        middleware.CORSConfig
	ServiceName string
	LogRequests bool
}

// Server is the HTTP front end. Lifecycle and query routes are open behind
// the rate limiter; administrative routes additionally require a bearer
// token from the configured list.
type Server struct {
	engine   *stake.Engine
	registry *token.Registry
	logger   *slog.Logger
	handler  http.Handler
}

func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine:   cfg.Engine,
		registry: cfg.Registry,
		logger:   logger,
	}

	obs := middleware.NewObservability(middleware.ObservabilityConfig{
		ServiceName: cfg.ServiceName,
		LogRequests: cfg.LogRequests,
	}, logger)
	limiter := middleware.NewRateLimiter(cfg.RateLimit, logger)
	auth := middleware.NewAuthenticator(cfg.AdminTokens, logger)

	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.CORS))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", obs.MetricsHandler())

	r.Group(func(pr chi.Router) {
		pr.Use(limiter.Middleware())
		pr.Use(obs.Middleware("staking"))

		pr.Get("/config", s.handleConfig)
		pr.Get("/positions", s.handlePositions)
		pr.Get("/positions/{id}", s.handlePosition)
		pr.Get("/accounts/{name}/balance", s.handleBalance)
		pr.Get("/tiers/{days}/staked", s.handleTierStaked)

		pr.Post("/deposit", s.handleDeposit)
		pr.Post("/stake", s.handleStake)
		pr.Post("/unstake", s.handleUnstake)
		pr.Post("/claim", s.handleClaim)
		pr.Post("/claimall", s.handleClaimAll)
		pr.Post("/withdraw", s.handleWithdraw)
		pr.Post("/withdrawall", s.handleWithdrawAll)
	})

	r.Route("/admin", func(ar chi.Router) {
		ar.Use(limiter.Middleware())
		ar.Use(auth.Middleware())
		ar.Use(obs.Middleware("admin"))

		ar.Post("/pause", s.handlePause)
		ar.Post("/activate", s.handleActivate)
		ar.Post("/price", s.handleSetPrice)
		ar.Post("/config", s.handleSetConfig)
		ar.Post("/settings", s.handleSetSetting)
		ar.Post("/rewind", s.handleRewind)
	})

	s.handler = r
	return s
}

// Handler returns the composed router.
func (s *Server) Handler() http.Handler {
	return s.handler
}
