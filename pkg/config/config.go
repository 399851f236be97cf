// Package config loads service configuration from a TOML file.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
)

// Config holds the runtime settings of the API server.
type Config struct {
	ListenAddr   string `toml:"listen_addr"`
	DatabasePath string `toml:"database_path"`
	// DefaultPenaltyRate is applied to products created without an explicit
	// penalty rate, as a fraction of overdue outstanding per payment.
	DefaultPenaltyRate decimal.Decimal `toml:"default_penalty_rate"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		ListenAddr:         ":8080",
		DatabasePath:       "loancore.db",
		DefaultPenaltyRate: decimal.Zero,
	}
}

// Load reads a TOML config file, filling unset fields with defaults.
// An empty path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = Default().ListenAddr
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = Default().DatabasePath
	}
	if cfg.DefaultPenaltyRate.IsNegative() {
		return Config{}, fmt.Errorf("default_penalty_rate must not be negative, got %s", cfg.DefaultPenaltyRate)
	}
	return cfg, nil
}
