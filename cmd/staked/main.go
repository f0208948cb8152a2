package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hagglex/config"
	"hagglex/gateway"
	"hagglex/gateway/middleware"
	"hagglex/native/stake"
	"hagglex/native/token"
	"hagglex/observability/logging"
	"hagglex/state"
	"hagglex/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	memory := flag.Bool("memory", false, "DEV ONLY: keep all state in memory instead of the data directory")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("staked", cfg.Env, cfg.LogLevel)

	var db storage.Database
	if *memory {
		db = storage.NewMemDB()
	} else {
		ldb, err := storage.NewLevelDB(cfg.DataDir)
		if err != nil {
			logger.Error("Failed to open database", slog.Any("error", err))
			os.Exit(1)
		}
		db = ldb
	}
	defer db.Close()

	manager, err := state.NewManager(db)
	if err != nil {
		logger.Error("Failed to load state", slog.Any("error", err))
		os.Exit(1)
	}

	engine := stake.NewEngine(cfg.Authority)
	engine.SetState(manager)
	engine.SetEmitter(&logEmitter{logger: logger})

	moduleCfg, err := engine.Config()
	if err != nil {
		logger.Error("Failed to load module configuration", slog.Any("error", err))
		os.Exit(1)
	}

	registry := token.NewRegistry()
	registry.AddAccount(cfg.Authority)
	if cfg.TokenIssuer != "" {
		registry.AddAccount(cfg.TokenIssuer)
	}
	for _, contract := range dedupe(moduleCfg.StakingTokenContract, moduleCfg.InterestTokenContract) {
		ledger := token.NewLedger(contract)
		ledger.SetState(manager)
		ledger.Subscribe(cfg.Authority, engine)
		registry.Register(ledger)
		if contract == moduleCfg.StakingTokenContract {
			if err := seedToken(ledger, cfg); err != nil {
				logger.Error("Failed to bootstrap staking token", slog.Any("error", err))
				os.Exit(1)
			}
		}
	}
	engine.SetTransferor(registry)
	engine.SetAccountChecker(registry)

	server := gateway.New(gateway.Config{
		Engine:      engine,
		Registry:    registry,
		Logger:      logger,
		AdminTokens: cfg.AdminTokens,
		RateLimit: middleware.RateLimit{
			PerSecond: cfg.RateLimitPerSec,
			Burst:     cfg.RateLimitBurst,
		},
		ServiceName: "hagglex-staked",
		LogRequests: cfg.Env != "prod",
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Staking service listening", slog.String("address", cfg.ListenAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownGraceSec)*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Shutdown did not complete cleanly", slog.Any("error", err))
	}
}

// seedToken bootstraps the staking token on first run: create the symbol and
// mint the initial supply to the configured issuer. A ledger that already
// carries the symbol is left untouched, so restarts are no-ops.
func seedToken(ledger *token.Ledger, cfg *config.Config) error {
	if cfg.TokenMaxSupply == "" {
		return nil
	}
	maxSupply, err := token.ParseAsset(cfg.TokenMaxSupply)
	if err != nil {
		return fmt.Errorf("parse TokenMaxSupply: %w", err)
	}
	if _, err := ledger.Supply(maxSupply.Symbol.Code); err == nil {
		return nil
	} else if !errors.Is(err, token.ErrSymbolNotFound) {
		return err
	}
	if err := ledger.Create(ledger.Name(), cfg.TokenIssuer, maxSupply); err != nil {
		return err
	}
	if cfg.TokenInitialSupply == "" {
		return nil
	}
	initial, err := token.ParseAsset(cfg.TokenInitialSupply)
	if err != nil {
		return fmt.Errorf("parse TokenInitialSupply: %w", err)
	}
	return ledger.Issue(cfg.TokenIssuer, cfg.TokenIssuer, initial, "initial supply")
}

// logEmitter forwards module events into the structured log stream.
type logEmitter struct {
	logger *slog.Logger
}

func (l *logEmitter) Emit(event *stake.Event) {
	if event == nil {
		return
	}
	attrs := make([]any, 0, 2+2*len(event.Attributes))
	attrs = append(attrs, slog.String("event", event.Type))
	for name, value := range event.Attributes {
		attrs = append(attrs, slog.String(name, value))
	}
	l.logger.Info("module event", attrs...)
}

func dedupe(names ...string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok || name == "" {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
