package config

import (
	"path/filepath"
	"testing"
	"time"
)

func baseConfig() *Config {
	return &Config{
		Environment: EnvironmentConfig{
			Mode:     "paper",
			LogLevel: "info",
		},
		Broker: BrokerConfig{
			Provider:    "gateway",
			APIEndpoint: "https://localhost:5000",
			APIKey:      "test-key",
			AccountID:   "DU12345",
		},
		Schedule: ScheduleConfig{
			Timezone:     "America/New_York",
			EntryTime:    "09:35:00",
			ExitTime:     "15:55:00",
			PollInterval: "10s",
		},
		Strategy: StrategyConfig{
			Instrument:      "SPX",
			Exchange:        "CBOE",
			Expiry:          "20260829",
			CalcValues:      true,
			StrikeIncrement: 5,
			TickSize:        0.05,
			ATMOffset:       0,
			ReentryLimit:    2,
			Call: SideConfig{
				HedgeOffset:     20,
				PositionSize:    1,
				HedgeQuantity:   1,
				StopLossPct:     30,
				TriggerPct:      10,
				TightenPct:      2,
				CheckInterval:   "5s",
				ReentryInterval: "15s",
			},
			Put: SideConfig{
				HedgeOffset:     20,
				PositionSize:    1,
				HedgeQuantity:   1,
				StopLossPct:     30,
				TriggerPct:      10,
				TightenPct:      2,
				CheckInterval:   "5s",
				ReentryInterval: "15s",
			},
		},
		Storage: StorageConfig{Path: "journal.json"},
	}
}

func TestLoad(t *testing.T) {
	configPath := filepath.Join("..", "..", "config.yaml.example")
	_, err := Load(configPath)
	if err != nil {
		t.Errorf("Expected config to load successfully from example file, got error: %v", err)
	}
}

func TestLoad_InvalidPath(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	if err == nil {
		t.Error("Expected error when loading nonexistent config file, got nil")
	}
}

func TestValidate(t *testing.T) {
	if err := baseConfig().Validate(); err != nil {
		t.Fatalf("base config should be valid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad mode", func(c *Config) { c.Environment.Mode = "backtest" }},
		{"missing api key", func(c *Config) { c.Broker.APIKey = "" }},
		{"missing account", func(c *Config) { c.Broker.AccountID = "" }},
		{"missing instrument", func(c *Config) { c.Strategy.Instrument = "" }},
		{"bad expiry", func(c *Config) { c.Strategy.Expiry = "2026-08-29" }},
		{"negative reentry limit", func(c *Config) { c.Strategy.ReentryLimit = -1 }},
		{"zero position size", func(c *Config) { c.Strategy.Call.PositionSize = 0 }},
		{"zero stop pct", func(c *Config) { c.Strategy.Put.StopLossPct = 0 }},
		{"zero trigger pct", func(c *Config) { c.Strategy.Call.TriggerPct = 0 }},
		{"bad check interval", func(c *Config) { c.Strategy.Call.CheckInterval = "five seconds" }},
		{"exit before entry", func(c *Config) { c.Schedule.ExitTime = "09:00:00" }},
		{"bad poll interval", func(c *Config) { c.Schedule.PollInterval = "soon" }},
		{"webhook required", func(c *Config) { c.Notifications.Enabled = true }},
		{"bad dashboard port", func(c *Config) { c.Dashboard.Enabled = true; c.Dashboard.Port = 0 }},
		{"static strikes required", func(c *Config) { c.Strategy.CalcValues = false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error for %s", tt.name)
			}
		})
	}
}

func TestDefaults(t *testing.T) {
	cfg := baseConfig()
	cfg.Schedule.PollInterval = ""
	cfg.Strategy.TickSize = 0
	cfg.Strategy.StrikeIncrement = 0
	cfg.Strategy.Call.CheckInterval = ""
	cfg.Strategy.Call.ReentryInterval = ""

	if got := cfg.PollInterval(); got != 10*time.Second {
		t.Errorf("PollInterval() = %v, want 10s", got)
	}
	if got := cfg.TickSize(); got != 0.05 {
		t.Errorf("TickSize() = %v, want 0.05", got)
	}
	if got := cfg.StrikeIncrement(); got != 5 {
		t.Errorf("StrikeIncrement() = %v, want 5", got)
	}
	if got := cfg.Strategy.Call.CheckIntervalDuration(); got != 5*time.Second {
		t.Errorf("CheckIntervalDuration() = %v, want 5s", got)
	}
	if got := cfg.Strategy.Call.ReentryIntervalDuration(); got != 15*time.Second {
		t.Errorf("ReentryIntervalDuration() = %v, want 15s", got)
	}
}

func TestLocationFallback(t *testing.T) {
	cfg := baseConfig()
	cfg.Schedule.Timezone = "Not/AZone"
	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("Location() error: %v", err)
	}
	if loc == nil {
		t.Fatal("Location() returned nil location")
	}
}

func TestIsPaperTrading(t *testing.T) {
	cfg := baseConfig()
	if !cfg.IsPaperTrading() {
		t.Error("paper mode should report paper trading")
	}
	cfg.Environment.Mode = "live"
	if cfg.IsPaperTrading() {
		t.Error("live mode should not report paper trading")
	}
}
