// Package config provides configuration management for the trading bot.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

const (
	// defaultPollInterval is the wait between session-window checks.
	defaultPollInterval = 10 * time.Second
	// defaultCheckInterval is the wait between monitoring iterations.
	defaultCheckInterval = 5 * time.Second
	// defaultReentryInterval is the wait between re-entry evaluations.
	defaultReentryInterval = 15 * time.Second
	// defaultTickSize is the price increment stops are rounded to.
	defaultTickSize = 0.05
	// defaultStrikeIncrement is the distance between listed strikes.
	defaultStrikeIncrement = 5
	// defaultTimezone is the exchange timezone for the session window.
	defaultTimezone = "America/New_York"
)

// Config represents the complete application configuration.
type Config struct {
	Environment   EnvironmentConfig  `yaml:"environment"`
	Broker        BrokerConfig       `yaml:"broker"`
	Schedule      ScheduleConfig     `yaml:"schedule"`
	Strategy      StrategyConfig     `yaml:"strategy"`
	Notifications NotificationConfig `yaml:"notifications"`
	Storage       StorageConfig      `yaml:"storage"`
	Dashboard     DashboardConfig    `yaml:"dashboard"`
	Toggles       ToggleConfig       `yaml:"toggles"`
}

// EnvironmentConfig defines the environment settings.
type EnvironmentConfig struct {
	Mode     string `yaml:"mode"`      // paper | live
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
	// LogFile is the session log path; empty disables file logging.
	LogFile string `yaml:"log_file"`
}

// BrokerConfig defines gateway API settings.
type BrokerConfig struct {
	Provider    string `yaml:"provider"`
	APIEndpoint string `yaml:"api_endpoint"`
	APIKey      string `yaml:"api_key"`
	AccountID   string `yaml:"account_id"`
	Timeout     string `yaml:"timeout"`
}

// ScheduleConfig defines the session window.
type ScheduleConfig struct {
	Timezone     string `yaml:"timezone"`      // e.g. "America/New_York"
	EntryTime    string `yaml:"entry_time"`    // "HH:MM:SS"
	ExitTime     string `yaml:"exit_time"`     // "HH:MM:SS"
	PollInterval string `yaml:"poll_interval"` // pre-window and watchdog poll
}

// SideConfig holds the per-side leg parameters.
type SideConfig struct {
	// Strike and HedgeStrike are only read when calc_values is false.
	Strike      float64 `yaml:"strike"`
	HedgeStrike float64 `yaml:"hedge_strike"`
	// HedgeOffset is the number of strike increments between ATM and the hedge.
	HedgeOffset     int     `yaml:"hedge_offset"`
	PositionSize    int     `yaml:"position_size"`
	HedgeQuantity   int     `yaml:"hedge_quantity"`
	StopLossPct     float64 `yaml:"stop_loss_pct"`
	TriggerPct      float64 `yaml:"trigger_pct"`
	TightenPct      float64 `yaml:"tighten_pct"`
	CheckInterval   string  `yaml:"check_interval"`
	ReentryInterval string  `yaml:"reentry_interval"`
}

// StrategyConfig defines trading strategy parameters.
type StrategyConfig struct {
	Instrument string `yaml:"instrument"`
	Exchange   string `yaml:"exchange"`
	Expiry     string `yaml:"expiry"` // YYYYMMDD
	// CalcValues derives strikes from the ATM strike; when false the static
	// per-side strikes are used verbatim.
	CalcValues      bool       `yaml:"calc_values"`
	StrikeIncrement int        `yaml:"strike_increment"`
	TickSize        float64    `yaml:"tick_size"`
	ATMOffset       int        `yaml:"atm_offset"`
	Call            SideConfig `yaml:"call"`
	Put             SideConfig `yaml:"put"`
	ReentryLimit    int        `yaml:"reentry_limit"`
	SkipForceClose  bool       `yaml:"skip_force_close"`
}

// NotificationConfig defines the operator notification channel.
type NotificationConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// StorageConfig defines where the session journal is written.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// DashboardConfig defines the optional status server.
type DashboardConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	AuthToken string `yaml:"auth_token"`
}

// ToggleConfig holds the test and diagnostic switches.
type ToggleConfig struct {
	// Testing skips the session-window gate.
	Testing bool `yaml:"testing"`
	// Reset force-closes everything immediately and exits.
	Reset bool `yaml:"reset"`
	// FuncTest cancels hedges and open orders, then exits.
	FuncTest bool `yaml:"func_test"`
}

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate checks that all configuration values are valid and consistent.
func (c *Config) Validate() error {
	if c.Environment.Mode != "paper" && c.Environment.Mode != "live" {
		return fmt.Errorf("environment.mode must be 'paper' or 'live'")
	}

	if c.Broker.APIKey == "" {
		return fmt.Errorf("broker.api_key is required")
	}
	if c.Broker.AccountID == "" {
		return fmt.Errorf("broker.account_id is required")
	}
	if c.Broker.Timeout != "" {
		if _, err := time.ParseDuration(c.Broker.Timeout); err != nil {
			return fmt.Errorf("broker.timeout invalid: %w", err)
		}
	}

	if c.Strategy.Instrument == "" {
		return fmt.Errorf("strategy.instrument is required")
	}
	if c.Strategy.Exchange == "" {
		return fmt.Errorf("strategy.exchange is required")
	}
	if _, err := time.Parse("20060102", c.Strategy.Expiry); err != nil {
		return fmt.Errorf("strategy.expiry must be YYYYMMDD: %w", err)
	}
	if c.Strategy.StrikeIncrement < 0 {
		return fmt.Errorf("strategy.strike_increment must be >= 0")
	}
	if c.Strategy.TickSize < 0 {
		return fmt.Errorf("strategy.tick_size must be >= 0")
	}
	if c.Strategy.ReentryLimit < 0 {
		return fmt.Errorf("strategy.reentry_limit must be >= 0")
	}

	if err := c.Strategy.Call.validate("strategy.call"); err != nil {
		return err
	}
	if err := c.Strategy.Put.validate("strategy.put"); err != nil {
		return err
	}

	if !c.Strategy.CalcValues {
		if c.Strategy.Call.Strike <= 0 || c.Strategy.Call.HedgeStrike <= 0 ||
			c.Strategy.Put.Strike <= 0 || c.Strategy.Put.HedgeStrike <= 0 {
			return fmt.Errorf("static strikes are required on both sides when calc_values is false")
		}
	}

	// Schedule validation: entry must precede exit on the same day.
	loc, err := c.Location()
	if err != nil {
		return fmt.Errorf("schedule.timezone invalid: %w", err)
	}
	entry, err1 := time.ParseInLocation("15:04:05", c.Schedule.EntryTime, loc)
	exit, err2 := time.ParseInLocation("15:04:05", c.Schedule.ExitTime, loc)
	if err1 != nil || err2 != nil || !entry.Before(exit) {
		return fmt.Errorf("schedule entry/exit window invalid (parse/order)")
	}
	if c.Schedule.PollInterval != "" {
		if _, err := time.ParseDuration(c.Schedule.PollInterval); err != nil {
			return fmt.Errorf("schedule.poll_interval invalid: %w", err)
		}
	}

	if c.Notifications.Enabled && c.Notifications.WebhookURL == "" {
		return fmt.Errorf("notifications.webhook_url is required when notifications are enabled")
	}

	if c.Dashboard.Enabled && (c.Dashboard.Port <= 0 || c.Dashboard.Port > 65535) {
		return fmt.Errorf("dashboard.port must be in (0,65535]")
	}

	return nil
}

func (s *SideConfig) validate(prefix string) error {
	if s.PositionSize <= 0 {
		return fmt.Errorf("%s.position_size must be > 0", prefix)
	}
	if s.HedgeQuantity <= 0 {
		return fmt.Errorf("%s.hedge_quantity must be > 0", prefix)
	}
	if s.StopLossPct <= 0 {
		return fmt.Errorf("%s.stop_loss_pct must be > 0", prefix)
	}
	if s.TriggerPct <= 0 {
		return fmt.Errorf("%s.trigger_pct must be > 0", prefix)
	}
	if s.TightenPct <= 0 {
		return fmt.Errorf("%s.tighten_pct must be > 0", prefix)
	}
	if s.CheckInterval != "" {
		if _, err := time.ParseDuration(s.CheckInterval); err != nil {
			return fmt.Errorf("%s.check_interval invalid: %w", prefix, err)
		}
	}
	if s.ReentryInterval != "" {
		if _, err := time.ParseDuration(s.ReentryInterval); err != nil {
			return fmt.Errorf("%s.reentry_interval invalid: %w", prefix, err)
		}
	}
	return nil
}

// IsPaperTrading returns true if the bot is configured for paper trading.
func (c *Config) IsPaperTrading() bool {
	return c.Environment.Mode == "paper"
}

// Location resolves the session timezone, falling back to a fixed Eastern
// offset on minimal containers without tzdata.
func (c *Config) Location() (*time.Location, error) {
	tz := c.Schedule.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err == nil {
		return loc, nil
	}
	if fallback, err2 := time.LoadLocation(defaultTimezone); err2 == nil {
		return fallback, nil
	}
	return time.FixedZone("ET", -5*60*60), nil
}

// PollInterval returns the configured session poll interval.
func (c *Config) PollInterval() time.Duration {
	return parseDurationOr(c.Schedule.PollInterval, defaultPollInterval)
}

// BrokerTimeout returns the configured gateway request timeout.
func (c *Config) BrokerTimeout() time.Duration {
	return parseDurationOr(c.Broker.Timeout, 0)
}

// TickSize returns the configured tick size.
func (c *Config) TickSize() float64 {
	if c.Strategy.TickSize <= 0 {
		return defaultTickSize
	}
	return c.Strategy.TickSize
}

// StrikeIncrement returns the configured strike increment.
func (c *Config) StrikeIncrement() int {
	if c.Strategy.StrikeIncrement <= 0 {
		return defaultStrikeIncrement
	}
	return c.Strategy.StrikeIncrement
}

// CheckIntervalDuration returns the monitoring interval for one side.
func (s *SideConfig) CheckIntervalDuration() time.Duration {
	return parseDurationOr(s.CheckInterval, defaultCheckInterval)
}

// ReentryIntervalDuration returns the re-entry poll interval for one side.
func (s *SideConfig) ReentryIntervalDuration() time.Duration {
	return parseDurationOr(s.ReentryInterval, defaultReentryInterval)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
