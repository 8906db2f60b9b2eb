package config

import (
	"strings"
	"testing"
)

type envTestConfig struct {
	Port  int    `env:"SESSIONS_TEST_PORT" envDefault:"123"`
	Store string `env:"SESSIONS_TEST_STORE" envDefault:"sqlite" validate:"oneof=sqlite redis"`
	Path  string `env:"SESSIONS_TEST_PATH" validate:"required"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("expected default port 123, got %d", cfg.Port)
	}
	if cfg.Store != "sqlite" {
		t.Fatalf("expected default store sqlite, got %q", cfg.Store)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("SESSIONS_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestParseAndValidateReportsEnvName(t *testing.T) {
	var cfg envTestConfig

	err := ParseAndValidate(&cfg)
	if err == nil {
		t.Fatal("expected missing path error")
	}
	if !strings.Contains(err.Error(), "SESSIONS_TEST_PATH is required") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseAndValidateRejectsUnknownChoice(t *testing.T) {
	t.Setenv("SESSIONS_TEST_PATH", "data/x.db")
	t.Setenv("SESSIONS_TEST_STORE", "mongo")

	var cfg envTestConfig
	err := ParseAndValidate(&cfg)
	if err == nil {
		t.Fatal("expected oneof error")
	}
	if !strings.Contains(err.Error(), "SESSIONS_TEST_STORE must be one of [sqlite redis]") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseAndValidateAccepts(t *testing.T) {
	t.Setenv("SESSIONS_TEST_PATH", "data/x.db")
	t.Setenv("SESSIONS_TEST_STORE", "redis")

	var cfg envTestConfig
	if err := ParseAndValidate(&cfg); err != nil {
		t.Fatalf("parse and validate: %v", err)
	}
}
