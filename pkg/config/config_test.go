package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}
	def := Default()
	if cfg.ListenAddr != def.ListenAddr {
		t.Errorf("Expected default listen_addr %s, got %s", def.ListenAddr, cfg.ListenAddr)
	}
	if cfg.DatabasePath != def.DatabasePath {
		t.Errorf("Expected default database_path %s, got %s", def.DatabasePath, cfg.DatabasePath)
	}
	if !cfg.DefaultPenaltyRate.IsZero() {
		t.Errorf("Expected zero default penalty rate, got %s", cfg.DefaultPenaltyRate)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loancore.toml")
	content := "listen_addr = \":9090\"\ndatabase_path = \"/tmp/test.db\"\ndefault_penalty_rate = \"0.05\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Errorf("Expected listen_addr :9090, got %s", cfg.ListenAddr)
	}
	if cfg.DatabasePath != "/tmp/test.db" {
		t.Errorf("Expected database_path /tmp/test.db, got %s", cfg.DatabasePath)
	}
	if cfg.DefaultPenaltyRate.String() != "0.05" {
		t.Errorf("Expected default penalty rate 0.05, got %s", cfg.DefaultPenaltyRate)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.toml")
	if err := os.WriteFile(path, []byte("listen_addr = \":7000\"\n"), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.ListenAddr != ":7000" {
		t.Errorf("Expected listen_addr :7000, got %s", cfg.ListenAddr)
	}
	if cfg.DatabasePath != Default().DatabasePath {
		t.Errorf("Expected default database path, got %s", cfg.DatabasePath)
	}
	if !cfg.DefaultPenaltyRate.IsZero() {
		t.Errorf("Expected zero default penalty rate, got %s", cfg.DefaultPenaltyRate)
	}
}

func TestLoad_RejectsNegativePenaltyRate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "negative.toml")
	if err := os.WriteFile(path, []byte("default_penalty_rate = \"-0.01\"\n"), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Expected an error for a negative default penalty rate")
	}
}

func TestLoad_MissingFileFails(t *testing.T) {
	if _, err := Load("/nonexistent/loancore.toml"); err == nil {
		t.Error("Expected an error for a missing config file")
	}
}
