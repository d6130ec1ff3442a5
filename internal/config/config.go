// Package config loads the disciplinator host configuration from a TOML file
// with environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix prefixes every environment override, e.g. DISCIPLINATOR_LOG_LEVEL.
const EnvPrefix = "DISCIPLINATOR_"

// Config holds all configuration for the disciplinator host
type Config struct {
	Node     NodeConfig     `toml:"node" envPrefix:"NODE_"`
	Log      LogConfig      `toml:"log" envPrefix:"LOG_"`
	Protocol ProtocolConfig `toml:"protocol" envPrefix:"PROTOCOL_"`
	Audit    AuditConfig    `toml:"audit" envPrefix:"AUDIT_"`
	Metrics  MetricsConfig  `toml:"metrics" envPrefix:"METRICS_"`
}

// NodeConfig holds where the host keeps its state
type NodeConfig struct {
	DataDir string `toml:"data_dir" env:"DATA_DIR"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `toml:"level" env:"LEVEL"`
	Format string `toml:"format" env:"FORMAT"`
}

// ProtocolConfig holds the parameters the init command passes to the protocol.
type ProtocolConfig struct {
	FeePct     uint8  `toml:"fee_pct" env:"FEE_PCT"`
	RewardPct  uint8  `toml:"reward_pct" env:"REWARD_PCT"`
	CharityPct uint8  `toml:"charity_pct" env:"CHARITY_PCT"`
	MinDeposit uint64 `toml:"min_deposit" env:"MIN_DEPOSIT"`
	MaxDeposit uint64 `toml:"max_deposit" env:"MAX_DEPOSIT"`
	// Asset names the staked asset. Its ledger id is derived from the name.
	Asset         string `toml:"asset" env:"ASSET"`
	AssetDecimals uint8  `toml:"asset_decimals" env:"ASSET_DECIMALS"`
}

// AuditConfig holds the sqlite event log location
type AuditConfig struct {
	SQLitePath string `toml:"sqlite_path" env:"SQLITE_PATH"`
}

// MetricsConfig toggles the prometheus event counters. Each command run
// rewrites Textfile in the text exposition format for a textfile collector.
type MetricsConfig struct {
	Enabled  bool   `toml:"enabled" env:"ENABLED"`
	Textfile string `toml:"textfile" env:"TEXTFILE"`
}

// Load reads the TOML file at path, applies environment overrides and fills
// in defaults. A missing file yields the defaults plus overrides.
func Load(path string) (*Config, error) {
	var config Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	config.setDefaults()

	return &config, nil
}

// ApplyEnv overrides fields from DISCIPLINATOR_* environment variables.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Save saves configuration to TOML file
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// EnsureDirs creates the state directory
func (c *Config) EnsureDirs() error {
	if err := os.MkdirAll(c.Node.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", c.Node.DataDir, err)
	}
	return nil
}

// StorePath is where the pebble store lives.
func (c *Config) StorePath() string {
	return filepath.Join(c.Node.DataDir, "state")
}

func (c *Config) setDefaults() {
	if c.Node.DataDir == "" {
		c.Node.DataDir = "data"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Protocol.FeePct == 0 && c.Protocol.RewardPct == 0 && c.Protocol.CharityPct == 0 {
		c.Protocol.FeePct = 10
		c.Protocol.RewardPct = 60
		c.Protocol.CharityPct = 30
	}
	if c.Protocol.MinDeposit == 0 {
		c.Protocol.MinDeposit = 5_000_000
	}
	if c.Protocol.MaxDeposit == 0 {
		c.Protocol.MaxDeposit = 10_000_000_000
	}
	if c.Protocol.Asset == "" {
		c.Protocol.Asset = "usdc"
	}
	if c.Protocol.AssetDecimals == 0 {
		c.Protocol.AssetDecimals = 6
	}
	if c.Audit.SQLitePath == "" {
		c.Audit.SQLitePath = filepath.Join(c.Node.DataDir, "events.db")
	}
	if c.Metrics.Textfile == "" {
		c.Metrics.Textfile = filepath.Join(c.Node.DataDir, "disciplinator.prom")
	}
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}
