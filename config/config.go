package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete paperbroker configuration.
type Config struct {
	Account AccountConfig `json:"account" yaml:"account"`
	Risk    RiskConfig    `json:"risk" yaml:"risk"`
	Feed    FeedConfig    `json:"feed" yaml:"feed"`
	Journal JournalConfig `json:"journal" yaml:"journal"`
	Server  ServerConfig  `json:"server" yaml:"server"`
}

type AccountConfig struct {
	ID               string  `json:"id" yaml:"id"`
	Currency         string  `json:"currency" yaml:"currency"`
	Balance          float64 `json:"balance" yaml:"balance"`
	MarginMultiplier float64 `json:"margin_multiplier" yaml:"margin_multiplier"`
}

type RiskConfig struct {
	MaxDailyLoss     float64 `json:"max_daily_loss" yaml:"max_daily_loss"`
	RiskPerTrade     float64 `json:"risk_per_trade" yaml:"risk_per_trade"` // percent
	KillSwitchActive bool    `json:"kill_switch_active" yaml:"kill_switch_active"`
}

type FeedConfig struct {
	Symbols  []string `json:"symbols" yaml:"symbols"`
	Interval string   `json:"interval" yaml:"interval"` // e.g. "1s", "500ms"
	Seed     int64    `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// ParseInterval converts the feed interval to a time.Duration.
func (f FeedConfig) ParseInterval() (time.Duration, error) {
	if f.Interval == "" {
		return time.Second, nil
	}
	return time.ParseDuration(f.Interval)
}

type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "csv", "sqlite" or "none"
	OrdersFile string `json:"orders_file,omitempty" yaml:"orders_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

type ServerConfig struct {
	Addr           string   `json:"addr" yaml:"addr"`
	AllowedOrigins []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`
	QuoteTimeout   string   `json:"quote_timeout,omitempty" yaml:"quote_timeout,omitempty"`
}

func (s ServerConfig) ParseQuoteTimeout() (time.Duration, error) {
	if s.QuoteTimeout == "" {
		return 5 * time.Second, nil
	}
	return time.ParseDuration(s.QuoteTimeout)
}

// LoadFromFile loads configuration from a file (YAML or JSON based on
// content; YAML is tried first).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension).
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Account.Currency == "" {
		return fmt.Errorf("account.currency is required")
	}
	if c.Account.Balance <= 0 {
		return fmt.Errorf("account.balance must be positive")
	}
	if c.Account.MarginMultiplier < 1 {
		return fmt.Errorf("account.margin_multiplier must be at least 1")
	}
	if c.Risk.MaxDailyLoss <= 0 {
		return fmt.Errorf("risk.max_daily_loss must be positive")
	}
	if c.Risk.RiskPerTrade <= 0 || c.Risk.RiskPerTrade > 100 {
		return fmt.Errorf("risk.risk_per_trade must be between 0 and 100")
	}
	if len(c.Feed.Symbols) == 0 {
		return fmt.Errorf("feed.symbols must not be empty")
	}
	if _, err := c.Feed.ParseInterval(); err != nil {
		return fmt.Errorf("feed.interval: %w", err)
	}
	switch c.Journal.Type {
	case "csv":
		if c.Journal.OrdersFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal orders_file and equity_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	case "none":
	default:
		return fmt.Errorf("journal.type must be 'csv', 'sqlite' or 'none'")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if _, err := c.Server.ParseQuoteTimeout(); err != nil {
		return fmt.Errorf("server.quote_timeout: %w", err)
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			ID:               "PAPER-001",
			Currency:         "USD",
			Balance:          100000,
			MarginMultiplier: 2,
		},
		Risk: RiskConfig{
			MaxDailyLoss:     500,
			RiskPerTrade:     1,
			KillSwitchActive: true,
		},
		Feed: FeedConfig{
			Symbols:  []string{"BTCUSDT", "ETHUSDT", "AAPL", "TSLA", "TATASTEEL", "RELIANCE"},
			Interval: "1s",
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./paperbroker.db",
		},
		Server: ServerConfig{
			Addr:         ":8080",
			QuoteTimeout: "5s",
		},
	}
}
