package config

import (
	"testing"
	"time"
)

func TestLoadServerDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost:5432/wagerhouse?sslmode=disable")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.FeedChannel != "wagerhouse.events" {
		t.Fatalf("FeedChannel = %q", cfg.FeedChannel)
	}
}

func TestLoadServerRequiresPostgresDSN(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")

	_, err := LoadServer()
	if err == nil {
		t.Fatal("LoadServer() expected error, got nil")
	}
}

func TestLoadEngineParseTypes(t *testing.T) {
	t.Setenv("FEE_BPS", "250")
	t.Setenv("REVEAL_WINDOW", "90s")
	t.Setenv("EXPOSURE_CAP_PCT", "5")

	cfg, err := LoadEngine()
	if err != nil {
		t.Fatalf("LoadEngine() error = %v", err)
	}
	if cfg.FeeBps != 250 {
		t.Fatalf("FeeBps = %d, want 250", cfg.FeeBps)
	}
	if cfg.RevealWindow != 90*time.Second {
		t.Fatalf("RevealWindow = %v, want 90s", cfg.RevealWindow)
	}
	if cfg.ExposureCapPct != 5 {
		t.Fatalf("ExposureCapPct = %d, want 5", cfg.ExposureCapPct)
	}
	if cfg.StakeMax != 100000 {
		t.Fatalf("StakeMax = %d, want default 100000", cfg.StakeMax)
	}
}
