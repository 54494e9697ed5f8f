package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Storage   StorageConfig   `mapstructure:"storage"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Reward    RewardConfig    `mapstructure:"reward"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"` // postgres, memory
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

type LedgerConfig struct {
	MaxAttempts      int           `mapstructure:"max_attempts"`
	TransientBackoff string        `mapstructure:"transient_backoff"` // comma-separated durations
	IdempotencyTTL   time.Duration `mapstructure:"idempotency_ttl"`
}

// Backoff parses the transient-error retry schedule.
func (l LedgerConfig) Backoff() ([]time.Duration, error) {
	var out []time.Duration
	for _, part := range strings.Split(l.TransientBackoff, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := time.ParseDuration(part)
		if err != nil {
			return nil, fmt.Errorf("ledger.transient_backoff: %w", err)
		}
		out = append(out, d)
	}
	return out, nil
}

type RewardConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Percentage  string        `mapstructure:"percentage"` // fraction of balance, e.g. "0.0005"
	Interval    time.Duration `mapstructure:"interval"`
	Tick        time.Duration `mapstructure:"tick"`
	Concurrency int           `mapstructure:"concurrency"`
	LockTTL     time.Duration `mapstructure:"lock_ttl"`
}

// Rate parses the reward percentage as an exact decimal fraction.
func (r RewardConfig) Rate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(r.Percentage)
	if err != nil {
		return decimal.Zero, fmt.Errorf("reward.percentage: %w", err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("reward.percentage must be within [0, 1], got %s", r.Percentage)
	}
	return rate, nil
}

type ProvidersConfig struct {
	Timeout     time.Duration     `mapstructure:"timeout"`
	Paystack    PaystackConfig    `mapstructure:"paystack"`
	Flutterwave FlutterwaveConfig `mapstructure:"flutterwave"`
}

type PaystackConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	SecretKey string `mapstructure:"secret_key"`
}

type FlutterwaveConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	SecretKey   string `mapstructure:"secret_key"`
	WebhookHash string `mapstructure:"webhook_hash"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Validate checks values that cannot be expressed as viper defaults.
func (c *Config) Validate() error {
	var errs []error
	if c.Storage.Driver != StoragePostgres && c.Storage.Driver != StorageMemory {
		errs = append(errs, fmt.Errorf("storage.driver must be %q or %q, got %q", StoragePostgres, StorageMemory, c.Storage.Driver))
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("server.mode must be debug, release or test, got %q", c.Server.Mode))
	}
	if c.Ledger.MaxAttempts < 1 {
		errs = append(errs, errors.New("ledger.max_attempts must be at least 1"))
	}
	if _, err := c.Ledger.Backoff(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Reward.Rate(); err != nil {
		errs = append(errs, err)
	}
	if c.Reward.Interval <= 0 {
		errs = append(errs, errors.New("reward.interval must be positive"))
	}
	if c.Reward.Tick <= 0 {
		errs = append(errs, errors.New("reward.tick must be positive"))
	}
	if c.Reward.Concurrency < 1 {
		errs = append(errs, errors.New("reward.concurrency must be at least 1"))
	}
	return errors.Join(errs...)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: GLW_.
// Nested keys use underscore: GLW_DATABASE_HOST, GLW_REWARD_PERCENTAGE, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "wallet_ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("storage.driver", StoragePostgres)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "1h")
	v.SetDefault("jwt.issuer", "glotrade-wallet")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("ledger.max_attempts", 5)
	v.SetDefault("ledger.transient_backoff", "50ms,200ms,500ms")
	v.SetDefault("ledger.idempotency_ttl", "24h")
	v.SetDefault("reward.enabled", false)
	v.SetDefault("reward.percentage", "0")
	v.SetDefault("reward.interval", "24h")
	v.SetDefault("reward.tick", "1h")
	v.SetDefault("reward.concurrency", 8)
	v.SetDefault("reward.lock_ttl", "10m")
	v.SetDefault("providers.timeout", "10s")
	v.SetDefault("providers.paystack.base_url", "https://api.paystack.co")
	v.SetDefault("providers.paystack.secret_key", "")
	v.SetDefault("providers.flutterwave.base_url", "https://api.flutterwave.com")
	v.SetDefault("providers.flutterwave.secret_key", "")
	v.SetDefault("providers.flutterwave.webhook_hash", "")
	v.SetDefault("metrics.enabled", true)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("GLW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A config file is optional; env vars can suffice.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
