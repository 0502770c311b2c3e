package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/papertrader/market"
)

// Config is the complete run configuration.
type Config struct {
	Account AccountConfig          `json:"account" yaml:"account"`
	Risk    RiskConfig             `json:"risk" yaml:"risk"`
	Journal JournalConfig          `json:"journal" yaml:"journal"`
	Replay  ReplayConfig           `json:"replay,omitempty" yaml:"replay,omitempty"`
	Symbols map[string]market.Meta `json:"symbols,omitempty" yaml:"symbols,omitempty"`
}

// AccountConfig initializes the paper account.
type AccountConfig struct {
	ID          string  `json:"id" yaml:"id"`
	Cash        float64 `json:"cash" yaml:"cash"`
	Leverage    float64 `json:"leverage" yaml:"leverage"`
	FeeBps      float64 `json:"fee_bps" yaml:"fee_bps"`
	SlippageBps float64 `json:"slippage_bps" yaml:"slippage_bps"`
}

// RiskConfig mirrors risk.Limits with a string staleness for YAML.
type RiskConfig struct {
	MaxDrawdown    float64            `json:"max_drawdown" yaml:"max_drawdown"`
	MaxGross       float64            `json:"max_gross" yaml:"max_gross"`
	MaxSingle      float64            `json:"max_single" yaml:"max_single"`
	CorrelationCap float64            `json:"correlation_cap" yaml:"correlation_cap"`
	Staleness      string             `json:"staleness,omitempty" yaml:"staleness,omitempty"`
	SectorCaps     map[string]float64 `json:"sector_caps,omitempty" yaml:"sector_caps,omitempty"`
	RegionCaps     map[string]float64 `json:"region_caps,omitempty" yaml:"region_caps,omitempty"`
}

// ParseStaleness converts the staleness string to a duration.
func (r RiskConfig) ParseStaleness() (time.Duration, error) {
	if r.Staleness == "" {
		return 0, nil
	}
	return time.ParseDuration(r.Staleness)
}

// JournalConfig selects the persistence backend.
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "csv", "sqlite", or "none"
	FillsFile  string `json:"fills_file,omitempty" yaml:"fills_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// ReplayConfig points at the input scripts.
type ReplayConfig struct {
	EventsFile string  `json:"events_file,omitempty" yaml:"events_file,omitempty"`
	QuotesFile string  `json:"quotes_file,omitempty" yaml:"quotes_file,omitempty"`
	OrdersFile string  `json:"orders_file,omitempty" yaml:"orders_file,omitempty"`
	CostBps    float64 `json:"cost_bps,omitempty" yaml:"cost_bps,omitempty"`
}

// LoadFromFile loads configuration from a file (YAML first, JSON fallback).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile writes the configuration (format chosen by extension).
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

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Account.Cash <= 0 {
		return fmt.Errorf("account.cash must be positive")
	}
	if c.Account.Leverage < 0 {
		return fmt.Errorf("account.leverage must not be negative")
	}
	if c.Account.FeeBps < 0 || c.Account.SlippageBps < 0 {
		return fmt.Errorf("account fee_bps and slippage_bps must not be negative")
	}
	if c.Risk.MaxDrawdown < 0 || c.Risk.MaxDrawdown > 1 {
		return fmt.Errorf("risk.max_drawdown must be between 0 and 1")
	}
	if c.Risk.MaxSingle < 0 {
		return fmt.Errorf("risk.max_single must not be negative")
	}
	if c.Risk.MaxGross < 0 {
		return fmt.Errorf("risk.max_gross must not be negative")
	}
	if _, err := c.Risk.ParseStaleness(); err != nil {
		return fmt.Errorf("risk.staleness: %w", err)
	}
	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.FillsFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal fills_file and equity_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'csv', 'sqlite', or 'none'")
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			ID:          "PAPER-001",
			Cash:        100_000,
			Leverage:    1,
			FeeBps:      1,
			SlippageBps: 2,
		},
		Risk: RiskConfig{
			MaxDrawdown:    0.20,
			MaxGross:       2.0,
			MaxSingle:      0.25,
			CorrelationCap: 0.85,
			Staleness:      "5s",
		},
		Journal: JournalConfig{
			Type:       "csv",
			FillsFile:  "./fills.csv",
			EquityFile: "./equity.csv",
		},
	}
}
