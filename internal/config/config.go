// Package config loads the orchestrator configuration from YAML with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Chain struct {
		HTTPURL               string `yaml:"http_url"`
		WSURL                 string `yaml:"ws_url"`
		ChainID               uint64 `yaml:"chain_id"`
		Account               string `yaml:"account"`
		Confirmations         int    `yaml:"confirmations"`
		ConfirmTimeoutSeconds int    `yaml:"confirm_timeout_seconds"`
	} `yaml:"chain"`
	Contracts struct {
		Token  string `yaml:"token"`
		Raffle string `yaml:"raffle"`
	} `yaml:"contracts"`
	Trading struct {
		DefaultSlippagePct    float64 `yaml:"default_slippage_pct"`
		UnknownRefreshSeconds int     `yaml:"unknown_refresh_seconds"`
	} `yaml:"trading"`
	Lifecycle struct {
		VRFPollSeconds int `yaml:"vrf_poll_seconds"`
	} `yaml:"lifecycle"`
	Sampler struct {
		IntervalSeconds int   `yaml:"interval_seconds"`
		TicketUnit      int64 `yaml:"ticket_unit"`
	} `yaml:"sampler"`
	Database struct {
		PostgresDSN   string `yaml:"postgres_dsn"`
		ClickhouseDSN string `yaml:"clickhouse_dsn"`
	} `yaml:"database"`
	Server struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"server"`
	LogLevel string `yaml:"log_level"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("SOF_HTTP_URL"); v != "" {
		cfg.Chain.HTTPURL = v
	}
	if v := os.Getenv("SOF_WS_URL"); v != "" {
		cfg.Chain.WSURL = v
	}
	if v := os.Getenv("SOF_CHAIN_ID"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Chain.ChainID = id
		}
	}
	if v := os.Getenv("SOF_ACCOUNT"); v != "" {
		cfg.Chain.Account = v
	}
	if v := os.Getenv("SOF_TOKEN_ADDRESS"); v != "" {
		cfg.Contracts.Token = v
	}
	if v := os.Getenv("SOF_RAFFLE_ADDRESS"); v != "" {
		cfg.Contracts.Raffle = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Database.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		cfg.Database.ClickhouseDSN = v
	}
	if v := os.Getenv("SOF_LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	// Defaults
	if cfg.Chain.Confirmations == 0 {
		cfg.Chain.Confirmations = 1
	}
	if cfg.Chain.ConfirmTimeoutSeconds == 0 {
		cfg.Chain.ConfirmTimeoutSeconds = 90
	}
	if cfg.Trading.DefaultSlippagePct == 0 {
		cfg.Trading.DefaultSlippagePct = 1.0
	}
	if cfg.Trading.UnknownRefreshSeconds == 0 {
		cfg.Trading.UnknownRefreshSeconds = 15
	}
	if cfg.Lifecycle.VRFPollSeconds == 0 {
		cfg.Lifecycle.VRFPollSeconds = 10
	}
	if cfg.Sampler.IntervalSeconds == 0 {
		cfg.Sampler.IntervalSeconds = 30
	}
	if cfg.Sampler.TicketUnit == 0 {
		cfg.Sampler.TicketUnit = 1
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// Validate checks that all required fields are set and parseable.
func (c *Config) Validate() error {
	if c.Chain.HTTPURL == "" {
		return fmt.Errorf("chain.http_url is required")
	}
	if c.Chain.Account == "" {
		return fmt.Errorf("chain.account is required")
	}
	if _, err := ethtypes.NewAddress(c.Chain.Account); err != nil {
		return fmt.Errorf("chain.account: %w", err)
	}
	if c.Contracts.Token == "" {
		return fmt.Errorf("contracts.token is required")
	}
	if _, err := ethtypes.NewAddress(c.Contracts.Token); err != nil {
		return fmt.Errorf("contracts.token: %w", err)
	}
	if c.Contracts.Raffle == "" {
		return fmt.Errorf("contracts.raffle is required")
	}
	if _, err := ethtypes.NewAddress(c.Contracts.Raffle); err != nil {
		return fmt.Errorf("contracts.raffle: %w", err)
	}
	if c.Trading.DefaultSlippagePct < 0 || c.Trading.DefaultSlippagePct > 100 {
		return fmt.Errorf("trading.default_slippage_pct must be between 0 and 100")
	}
	return nil
}

// AccountAddress returns the parsed trading account address.
// Call Validate first.
func (c *Config) AccountAddress() *ethtypes.Address0xHex {
	return ethtypes.MustNewAddress(c.Chain.Account)
}

// TokenAddress returns the parsed settlement token address.
// Call Validate first.
func (c *Config) TokenAddress() *ethtypes.Address0xHex {
	return ethtypes.MustNewAddress(c.Contracts.Token)
}

// RaffleAddress returns the parsed raffle manager address.
// Call Validate first.
func (c *Config) RaffleAddress() *ethtypes.Address0xHex {
	return ethtypes.MustNewAddress(c.Contracts.Raffle)
}

// ConfirmTimeout returns the per-transaction confirmation deadline.
func (c *Config) ConfirmTimeout() time.Duration {
	return time.Duration(c.Chain.ConfirmTimeoutSeconds) * time.Second
}

// UnknownRefreshDelay returns the delay before re-checking an
// unknown-outcome trade.
func (c *Config) UnknownRefreshDelay() time.Duration {
	return time.Duration(c.Trading.UnknownRefreshSeconds) * time.Second
}

// VRFPollInterval returns the randomness fulfillment poll cadence.
func (c *Config) VRFPollInterval() time.Duration {
	return time.Duration(c.Lifecycle.VRFPollSeconds) * time.Second
}

// SamplerInterval returns the quote sampling cadence.
func (c *Config) SamplerInterval() time.Duration {
	return time.Duration(c.Sampler.IntervalSeconds) * time.Second
}
