package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the on-disk service configuration.
type Config struct {
	ListenAddress    string   `toml:"ListenAddress"`
	DataDir          string   `toml:"DataDir"`
	Authority        string   `toml:"Authority"`
	Env              string   `toml:"Env"`
	AdminTokens      []string `toml:"AdminTokens"`
	RateLimitPerSec  float64  `toml:"RateLimitPerSec"`
	RateLimitBurst   int      `toml:"RateLimitBurst"`
	LogLevel         string   `toml:"LogLevel"`
	ShutdownGraceSec int      `toml:"ShutdownGraceSec"`

	// Token bootstrap: when TokenMaxSupply is set, the daemon creates the
	// staking token on first run and mints TokenInitialSupply to TokenIssuer,
	// so a fresh deployment can fund accounts and accept deposits. Leave
	// empty when issuance is managed out of band.
	TokenIssuer        string `toml:"TokenIssuer"`
	TokenMaxSupply     string `toml:"TokenMaxSupply"`
	TokenInitialSupply string `toml:"TokenInitialSupply"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8080"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./hagglex-data"
	}
	if strings.TrimSpace(cfg.Authority) == "" {
		cfg.Authority = "hagglexstake"
	}
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if cfg.AdminTokens == nil {
		cfg.AdminTokens = []string{}
	}
	if cfg.RateLimitPerSec <= 0 {
		cfg.RateLimitPerSec = 50
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 100
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	if cfg.ShutdownGraceSec <= 0 {
		cfg.ShutdownGraceSec = 10
	}
}

func validate(cfg *Config) error {
	switch strings.ToLower(cfg.Env) {
	case "dev", "staging", "prod":
	default:
		return fmt.Errorf("config: unknown Env %q", cfg.Env)
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown LogLevel %q", cfg.LogLevel)
	}
	for _, token := range cfg.AdminTokens {
		if strings.TrimSpace(token) == "" {
			return fmt.Errorf("config: empty admin token")
		}
	}
	if cfg.TokenMaxSupply != "" && strings.TrimSpace(cfg.TokenIssuer) == "" {
		return fmt.Errorf("config: TokenMaxSupply requires TokenIssuer")
	}
	if cfg.TokenInitialSupply != "" && cfg.TokenMaxSupply == "" {
		return fmt.Errorf("config: TokenInitialSupply requires TokenMaxSupply")
	}
	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
