package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	if c.Allocation.MinScore != 0.50 {
		t.Fatalf("unexpected min score %v", c.Allocation.MinScore)
	}
	if c.Allocation.MaxRiskPct != 2.0 {
		t.Fatalf("unexpected max risk %v", c.Allocation.MaxRiskPct)
	}
	if c.Arbiter.LockTimeout != 250*time.Millisecond {
		t.Fatalf("unexpected lock timeout %v", c.Arbiter.LockTimeout)
	}
	if c.Ledger.MaxEntries != 10000 {
		t.Fatalf("unexpected ledger size %v", c.Ledger.MaxEntries)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte(`
environment: production
allocation:
  min_score: 0.6
budget:
  strategy_cap_pct: 7.5
`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Environment != "production" {
		t.Fatalf("unexpected environment %q", c.Environment)
	}
	if c.Allocation.MinScore != 0.6 {
		t.Fatalf("unexpected min score %v", c.Allocation.MinScore)
	}
	if c.Budget.StrategyCapPct != 7.5 {
		t.Fatalf("unexpected strategy cap %v", c.Budget.StrategyCapPct)
	}
	// untouched fields still carry defaults
	if c.Budget.SymbolCapPct != 3.0 {
		t.Fatalf("default symbol cap lost: %v", c.Budget.SymbolCapPct)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte(`
environment: production
allocation:
  min_score: 1.7
`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for min_score > 1")
	}
}

func TestLoadWithEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("environment: staging\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("REDIS_ADDR", "redis:6379")

	c, err := LoadWithEnv(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Audit.Kafka.Brokers) != 2 || c.Audit.Kafka.Brokers[0] != "a:9092" {
		t.Fatalf("env brokers not applied: %v", c.Audit.Kafka.Brokers)
	}
	if c.KillSwitch.Journal.Addr != "redis:6379" {
		t.Fatalf("env redis addr not applied: %v", c.KillSwitch.Journal.Addr)
	}
}
