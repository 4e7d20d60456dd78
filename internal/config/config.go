package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const envPrefix = "BOOKKEEPING"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Migration MigrationConfig `mapstructure:"migration"`
	Log       LogConfig       `mapstructure:"log"`
	Forecast  ForecastConfig  `mapstructure:"forecast"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Lock      LockConfig      `mapstructure:"lock"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
}

type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	Environment  string        `mapstructure:"environment"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	APITokens    []string      `mapstructure:"api_tokens"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	Params   string `mapstructure:"params"`
}

type MigrationConfig struct {
	Dir string `mapstructure:"dir"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ForecastConfig holds the alert thresholds of the cash-flow engine.
type ForecastConfig struct {
	LowBalanceThreshold  float64 `mapstructure:"low_balance_threshold"`
	LargeOutflowFraction float64 `mapstructure:"large_outflow_fraction"`
	DefaultDays          int     `mapstructure:"default_days"`
}

type LedgerConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	AccessToken       string        `mapstructure:"access_token"`
	TenantID          string        `mapstructure:"tenant_id"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	MaxRetries        int           `mapstructure:"max_retries"`
	Timeout           time.Duration `mapstructure:"timeout"`
	SyncLookback      time.Duration `mapstructure:"sync_lookback"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LockConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// LoadConfig reads configuration from defaults, an optional .env file, an
// optional config.yaml and BOOKKEEPING_* environment variables, in increasing
// order of precedence.
func LoadConfig() (*Config, error) {
	loadDotEnv()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Comma-separated list values arrive from the environment as one string.
	cfg.Server.APITokens = splitList(cfg.Server.APITokens)
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadDotEnv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	_ = godotenv.Load(".env")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.api_tokens", []string{})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "bookkeeping")
	v.SetDefault("database.params", "parseTime=true&multiStatements=true")

	v.SetDefault("migration.dir", "migrations")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("forecast.low_balance_threshold", 5000.0)
	v.SetDefault("forecast.large_outflow_fraction", 0.2)
	v.SetDefault("forecast.default_days", 30)

	v.SetDefault("ledger.base_url", "https://api.xero.com/api.xro/2.0")
	v.SetDefault("ledger.access_token", "")
	v.SetDefault("ledger.tenant_id", "")
	v.SetDefault("ledger.requests_per_minute", 60)
	v.SetDefault("ledger.max_retries", 3)
	v.SetDefault("ledger.timeout", 30*time.Second)
	v.SetDefault("ledger.sync_lookback", 90*24*time.Hour)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("lock.ttl", 5*time.Minute)
	v.SetDefault("cache.ttl", 10*time.Minute)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "cashflow.alerts")
}

func (c *Config) validate() error {
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", c.Log.Format)
	}
	if c.Database.Port <= 0 {
		return fmt.Errorf("database.port must be positive, got: %d", c.Database.Port)
	}
	if c.Forecast.LowBalanceThreshold < 0 {
		return fmt.Errorf("forecast.low_balance_threshold must not be negative, got: %f", c.Forecast.LowBalanceThreshold)
	}
	if c.Forecast.LargeOutflowFraction <= 0 || c.Forecast.LargeOutflowFraction > 1 {
		return fmt.Errorf("forecast.large_outflow_fraction must be in (0, 1], got: %f", c.Forecast.LargeOutflowFraction)
	}
	if c.Forecast.DefaultDays < 1 || c.Forecast.DefaultDays > 365 {
		return fmt.Errorf("forecast.default_days must be between 1 and 365, got: %d", c.Forecast.DefaultDays)
	}
	if c.Ledger.RequestsPerMinute < 1 {
		return fmt.Errorf("ledger.requests_per_minute must be at least 1, got: %d", c.Ledger.RequestsPerMinute)
	}
	if c.Ledger.MaxRetries < 0 {
		return fmt.Errorf("ledger.max_retries must not be negative, got: %d", c.Ledger.MaxRetries)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required when kafka is enabled")
	}
	return nil
}

func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// LowBalanceThresholdDecimal returns the threshold as a decimal.
func (f ForecastConfig) LowBalanceThresholdDecimal() decimal.Decimal {
	return decimal.NewFromFloat(f.LowBalanceThreshold)
}

// LargeOutflowFractionDecimal returns the fraction as a decimal.
func (f ForecastConfig) LargeOutflowFractionDecimal() decimal.Decimal {
	return decimal.NewFromFloat(f.LargeOutflowFraction)
}

// GetDSN returns the MySQL DSN string
func (c *Config) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.Params,
	)
}

// GetMigrationDBURL returns the database URL for migrations
func (c *Config) GetMigrationDBURL() string {
	return fmt.Sprintf("mysql://%s:%s@tcp(%s:%d)/%s?%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.Params,
	)
}
