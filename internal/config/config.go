// Package config loads application configuration from an optional YAML file
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Chain    ChainConfig    `yaml:"chain"`
	Economy  EconomyConfig  `yaml:"economy"`
	Admin    AdminConfig    `yaml:"admin"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig configures the PostgreSQL pool. An empty DSN selects the
// in-memory store.
type DatabaseConfig struct {
	Driver          string `yaml:"driver"`
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_seconds"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	FilePrefix string `yaml:"file_prefix"`
}

// ChainConfig configures the deposit chain connection and reconciliation.
type ChainConfig struct {
	RPCURL          string `yaml:"rpc_url"`
	TreasuryAddress string `yaml:"treasury_address"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	Schedule        string `yaml:"reconcile_schedule"`
}

// EconomyConfig carries the token economy parameters.
type EconomyConfig struct {
	TotalSupply       int64            `yaml:"total_supply"`
	InitialAirdrop    int64            `yaml:"initial_airdrop"`
	ReferralBonus     int64            `yaml:"referral_bonus"`
	ReferralBatchSize int64            `yaml:"referral_batch_size"`
	RatePerNative     int64            `yaml:"rate_per_native"`
	FeePercent        int64            `yaml:"fee_percent"`
	PresaleUnitCost   int64            `yaml:"presale_unit_cost"`
	StorageUnitCost   int64            `yaml:"storage_unit_cost"`
	TaskRewards       map[string]int64 `yaml:"task_rewards"`
}

// AdminConfig configures the operator surface.
type AdminConfig struct {
	// Tokens is the bearer token allow-list for /admin endpoints. Empty
	// disables the admin surface entirely.
	Tokens []string `yaml:"tokens"`

	// AuditFile receives the JSONL audit trail of admin actions. Empty
	// keeps the trail in memory only.
	AuditFile string `yaml:"audit_file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Database: DatabaseConfig{
			Driver:          "postgres",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300,
		},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Chain: ChainConfig{
			TimeoutSeconds: 15,
			Schedule:       "@every 30s",
		},
		Economy: EconomyConfig{
			TotalSupply:       1_000_000_000_000,
			InitialAirdrop:    1000,
			ReferralBonus:     50,
			ReferralBatchSize: 10,
			RatePerNative:     10000,
			FeePercent:        5,
			PresaleUnitCost:   1,
			StorageUnitCost:   100,
			TaskRewards:       map[string]int64{},
		},
	}
}

// Load reads configuration from the file named by CONFIG_PATH (if set) and
// applies environment overrides on top of the defaults.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot produce a working ledger.
func (c *Config) Validate() error {
	if c.Economy.TotalSupply <= 0 {
		return fmt.Errorf("total supply must be positive")
	}
	if c.Economy.InitialAirdrop < 0 || c.Economy.ReferralBonus < 0 {
		return fmt.Errorf("airdrop and referral bonus must not be negative")
	}
	if c.Economy.FeePercent < 0 || c.Economy.FeePercent > 100 {
		return fmt.Errorf("fee percent must be between 0 and 100")
	}
	if c.Economy.RatePerNative <= 0 {
		return fmt.Errorf("rate per native must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Host, "SERVER_HOST")
	setInt(&cfg.Server.Port, "SERVER_PORT")

	setString(&cfg.Database.DSN, "DATABASE_DSN")
	setString(&cfg.Database.Driver, "DATABASE_DRIVER")

	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")

	setString(&cfg.Chain.RPCURL, "CHAIN_RPC_URL")
	setString(&cfg.Chain.TreasuryAddress, "CHAIN_TREASURY_ADDRESS")
	setString(&cfg.Chain.Schedule, "CHAIN_RECONCILE_SCHEDULE")

	setInt64(&cfg.Economy.TotalSupply, "ECONOMY_TOTAL_SUPPLY")
	setInt64(&cfg.Economy.InitialAirdrop, "ECONOMY_INITIAL_AIRDROP")
	setInt64(&cfg.Economy.ReferralBonus, "ECONOMY_REFERRAL_BONUS")
	setInt64(&cfg.Economy.ReferralBatchSize, "ECONOMY_REFERRAL_BATCH_SIZE")
	setInt64(&cfg.Economy.RatePerNative, "ECONOMY_RATE_PER_NATIVE")
	setInt64(&cfg.Economy.FeePercent, "ECONOMY_FEE_PERCENT")
	setInt64(&cfg.Economy.PresaleUnitCost, "ECONOMY_PRESALE_UNIT_COST")
	setInt64(&cfg.Economy.StorageUnitCost, "ECONOMY_STORAGE_UNIT_COST")

	if raw := os.Getenv("ADMIN_TOKENS"); raw != "" {
		var tokens []string
		for _, token := range strings.Split(raw, ",") {
			if token = strings.TrimSpace(token); token != "" {
				tokens = append(tokens, token)
			}
		}
		cfg.Admin.Tokens = tokens
	}
	setString(&cfg.Admin.AuditFile, "ADMIN_AUDIT_FILE")
}

func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setInt(dst *int, key string) {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			*dst = n
		}
	}
}
