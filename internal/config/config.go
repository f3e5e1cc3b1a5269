package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"p2pwatcher/internal/logging"
)

// Persistence drivers.
const (
	DriverNone     = "none"
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config materialises application configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Logging     logging.Config    `mapstructure:"logging"`
	Bybit       BybitConfig       `mapstructure:"bybit"`
	Sampling    SamplingConfig    `mapstructure:"sampling"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Alerting    AlertingConfig    `mapstructure:"alerting"`
	Export      ExportConfig      `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	// Timezone decides which hour-of-day bucket a sample lands in.
	Timezone string `mapstructure:"timezone"`
}

// BybitConfig captures Bybit P2P connectivity.
type BybitConfig struct {
	BaseURL        string            `mapstructure:"base_url"`
	Token          string            `mapstructure:"token"`
	Currency       string            `mapstructure:"currency"`
	PageSize       int               `mapstructure:"page_size"`
	RequestTimeout time.Duration     `mapstructure:"request_timeout"`
	UserAgent      string            `mapstructure:"user_agent"`
	PaymentMethods map[string]string `mapstructure:"payment_methods"`
}

// SamplingConfig governs the sampling loop.
type SamplingConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	MinAmount       int64         `mapstructure:"min_amount"`
	Bank            string        `mapstructure:"bank"`
	HistoryCapacity int           `mapstructure:"history_capacity"`
	Autostart       bool          `mapstructure:"autostart"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
}

// PersistenceConfig selects the snapshot gateway.
type PersistenceConfig struct {
	Driver        string `mapstructure:"driver"`
	SnapshotEvery int    `mapstructure:"snapshot_every"`
	FilePath      string `mapstructure:"file_path"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig encapsulates Redis connectivity.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	Key          string        `mapstructure:"key"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// HTTPConfig configures the control/reporting API.
type HTTPConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	LatestLimit     int           `mapstructure:"latest_limit"`
}

// AlertingConfig defines spread alert thresholds and routing.
type AlertingConfig struct {
	Enabled      bool           `mapstructure:"enabled"`
	ThresholdPct float64        `mapstructure:"threshold_pct"`
	Cooldown     time.Duration  `mapstructure:"cooldown"`
	Telegram     TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes Telegram alert parameters.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("P2PWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "p2pwatcher")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.timezone", "Local")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("bybit.base_url", "https://api2.bybit.com")
	v.SetDefault("bybit.token", "USDT")
	v.SetDefault("bybit.currency", "UAH")
	v.SetDefault("bybit.page_size", 10)
	v.SetDefault("bybit.request_timeout", "10s")
	v.SetDefault("bybit.user_agent", "p2pwatcher/1.0")
	v.SetDefault("bybit.payment_methods", map[string]string{
		"mono":       "43",
		"privat":     "60",
		"oschadbank": "90",
	})

	v.SetDefault("sampling.interval", "30s")
	v.SetDefault("sampling.min_amount", 5000)
	v.SetDefault("sampling.bank", "")
	v.SetDefault("sampling.history_capacity", 5000)
	v.SetDefault("sampling.autostart", false)
	v.SetDefault("sampling.advisory_lock_key", int64(0))

	v.SetDefault("persistence.driver", DriverFile)
	v.SetDefault("persistence.snapshot_every", 10)
	v.SetDefault("persistence.file_path", "data/price_data.csv")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key", "p2pwatcher:samples")
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	v.SetDefault("http.enabled", true)
	v.SetDefault("http.addr", ":3000")
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("http.shutdown_timeout", "10s")
	v.SetDefault("http.latest_limit", 10)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.threshold_pct", 2.0)
	v.SetDefault("alerting.cooldown", "30m")
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 5000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Sampling.Interval <= 0 {
		return fmt.Errorf("sampling.interval must be greater than zero")
	}
	if c.Sampling.MinAmount <= 0 {
		return fmt.Errorf("sampling.min_amount must be greater than zero")
	}
	if c.Sampling.HistoryCapacity <= 0 {
		return fmt.Errorf("sampling.history_capacity must be greater than zero")
	}
	if c.Persistence.SnapshotEvery <= 0 {
		return fmt.Errorf("persistence.snapshot_every must be greater than zero")
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	switch c.Persistence.Driver {
	case DriverNone:
	case DriverFile:
		if c.Persistence.FilePath == "" {
			return fmt.Errorf("persistence.file_path must be set for the file driver")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn must be set for the postgres driver")
		}
	case DriverRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr must be set for the redis driver")
		}
	default:
		return fmt.Errorf("unknown persistence.driver %q", c.Persistence.Driver)
	}

	if c.Sampling.Bank != "" {
		if _, ok := c.Bybit.PaymentMethods[strings.ToLower(c.Sampling.Bank)]; !ok {
			return fmt.Errorf("sampling.bank %q has no bybit.payment_methods entry", c.Sampling.Bank)
		}
	}

	if c.Alerting.ThresholdPct < 0 {
		return fmt.Errorf("alerting.threshold_pct cannot be negative")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token must be set")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id must be set")
		}
	}
	return nil
}

// Location resolves app.timezone.
func (c *Config) Location() (*time.Location, error) {
	switch c.App.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("app.timezone: %w", err)
	}
	return loc, nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
