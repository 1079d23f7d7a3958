package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, "symbols: [SOLUSDT]\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Port != 8080 {
		t.Fatalf("server port = %d, want 8080", c.Server.Port)
	}
	if c.Decision.EnterThreshold != 0.65 {
		t.Fatalf("enter threshold = %v, want 0.65", c.Decision.EnterThreshold)
	}
	if c.Exchange.Type != "paper" {
		t.Fatalf("exchange type = %q, want paper", c.Exchange.Type)
	}
	if c.Analyzers.Volatility.Ceiling != 0.8 {
		t.Fatalf("volatility ceiling = %v, want 0.8", c.Analyzers.Volatility.Ceiling)
	}
	if got := c.Analyzers.Swing.Cadence(); got != 5*time.Second {
		t.Fatalf("swing cadence = %v, want 5s", got)
	}
}

func TestLoadRequiresSymbols(t *testing.T) {
	if _, err := Load(writeConfig(t, "environment: dev\n")); err == nil {
		t.Fatalf("empty symbols must fail validation")
	}
}

func TestLoadCrossFieldChecks(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"leverage inverted", "symbols: [SOLUSDT]\nrisk:\n  l_min: 4\n  l_max: 2\n"},
		{"leverage above absolute bound", "symbols: [SOLUSDT]\nrisk:\n  l_max: 50\n"},
		{"thresholds inverted", "symbols: [SOLUSDT]\ndecision:\n  enter_threshold: 0.4\n  hold_threshold: 0.6\n"},
		{"kafka without brokers", "symbols: [SOLUSDT]\nkafka:\n  enabled: true\n"},
		{"category for unknown symbol", "symbols: [SOLUSDT]\ncategories:\n  WIFUSDT: meme\n"},
		{"bad exchange type", "symbols: [SOLUSDT]\nexchange:\n  type: carrier-pigeon\n"},
	}
	for _, tc := range cases {
		if _, err := Load(writeConfig(t, tc.body)); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("SYMBOLS", "BONKUSDT,WIFUSDT")
	t.Setenv("EXCHANGE_TYPE", "ws")
	t.Setenv("REDIS_ADDR", "redis:6379")

	c, err := LoadWithEnv(writeConfig(t, "symbols: [SOLUSDT]\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Symbols) != 2 || c.Symbols[0] != "BONKUSDT" {
		t.Fatalf("symbols = %v", c.Symbols)
	}
	if c.Exchange.Type != "ws" {
		t.Fatalf("exchange type = %q", c.Exchange.Type)
	}
	if !c.Redis.Enabled || c.Redis.Addr != "redis:6379" {
		t.Fatalf("redis = %+v", c.Redis)
	}
}

func TestAnalyzerFor(t *testing.T) {
	c, err := Load(writeConfig(t, "symbols: [SOLUSDT]\nanalyzers:\n  catalyst:\n    cadence_ms: 12000\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := c.AnalyzerFor("catalyst").Cadence(); got != 12*time.Second {
		t.Fatalf("catalyst cadence = %v", got)
	}
	if got := c.AnalyzerFor("nonsense"); got.CadenceMs != 0 {
		t.Fatalf("unknown domain must return zero config, got %+v", got)
	}
}
