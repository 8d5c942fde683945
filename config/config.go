package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Auth          AuthConfig          `yaml:"auth"`
	Calendar      CalendarConfig      `yaml:"calendar"`
	Realtime      RealtimeConfig      `yaml:"realtime"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Autocomplete  AutocompleteConfig  `yaml:"autocomplete"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	LogLevel        string  `yaml:"log_level"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// AuthConfig holds the access token settings.
type AuthConfig struct {
	Secret          string `yaml:"secret"`
	TokenTTLMinutes int    `yaml:"token_ttl_minutes"`
}

// CalendarConfig configures the working day resolver.
type CalendarConfig struct {
	Timezone              string        `yaml:"timezone"`
	OracleURL             string        `yaml:"oracle_url"`
	OracleTimeoutSeconds  int           `yaml:"oracle_timeout_seconds"`
	OracleTimeout         time.Duration `yaml:"-"`
	HTTPProxy             string        `yaml:"http_proxy"`
	PrefetchEnabled       bool          `yaml:"prefetch_enabled"`
	PrefetchIntervalHours int           `yaml:"prefetch_interval_hours"`
	PrefetchInterval      time.Duration `yaml:"-"`
	PrefetchHorizonDays   int           `yaml:"prefetch_horizon_days"`

	// Location is resolved from Timezone by Load.
	Location *time.Location `yaml:"-"`
}

// RealtimeConfig configures the websocket subscription channel.
type RealtimeConfig struct {
	PingIntervalSeconds int           `yaml:"ping_interval_seconds"`
	PingInterval        time.Duration `yaml:"-"`
	WriteTimeoutSeconds int           `yaml:"write_timeout_seconds"`
	WriteTimeout        time.Duration `yaml:"-"`
}

// NotificationsConfig holds the outbound notification settings.
type NotificationsConfig struct {
	EnabledTypes []string         `yaml:"enabled_types"`
	WorkerPool   WorkerPoolConfig `yaml:"worker_pool"`
	Telegram     TelegramConfig   `yaml:"telegram"`
	GreenAPI     GreenAPIConfig   `yaml:"green_api"`
	Push         PushConfig       `yaml:"push"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size      int `yaml:"size"`
	QueueSize int `yaml:"queue_size"`
}

// TelegramConfig configures the telegram bot provider.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BaseURL  string `yaml:"base_url"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// GreenAPIConfig configures the green-api chat provider.
type GreenAPIConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	ChatID  string `yaml:"chat_id"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// AutocompleteConfig limits the responsible-party suggestion scan.
type AutocompleteConfig struct {
	Limit int `yaml:"limit"`
}

// Load reads the configuration from the given path, then applies
// environment overrides and defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	applyEnv(&cfg)
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied, as if an
// empty file had been loaded.
func Default() *Config {
	var cfg Config
	// The default timezone always resolves, so the error is impossible here.
	_ = cfg.applyDefaults()
	return &cfg
}

// FromEnv returns the defaults with environment overrides applied, for
// running without a config file.
func FromEnv() (*Config, error) {
	var cfg Config
	applyEnv(&cfg)
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("SECRET_KEY"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("TIMEZONE"); v != "" {
		cfg.Calendar.Timezone = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		} else {
			slog.Warn("ignoring invalid PORT override", "value", v)
		}
	}
}

func (cfg *Config) applyDefaults() error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 20
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	cfg.Database.Driver = strings.ToLower(cfg.Database.Driver)
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "./data/guests.db"
	}
	if cfg.Database.MaxOpenConns <= 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns <= 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetimeMinutes <= 0 {
		cfg.Database.ConnMaxLifetimeMinutes = 30
	}

	if cfg.Auth.TokenTTLMinutes <= 0 {
		cfg.Auth.TokenTTLMinutes = 1440
	}

	if cfg.Calendar.Timezone == "" {
		cfg.Calendar.Timezone = "Europe/Moscow"
	}
	loc, err := time.LoadLocation(cfg.Calendar.Timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone %q: %w", cfg.Calendar.Timezone, err)
	}
	cfg.Calendar.Location = loc
	if cfg.Calendar.OracleURL == "" {
		cfg.Calendar.OracleURL = "https://isdayoff.ru/api/getdata"
	}
	if cfg.Calendar.OracleTimeoutSeconds <= 0 {
		cfg.Calendar.OracleTimeoutSeconds = 5
	}
	cfg.Calendar.OracleTimeout = time.Duration(cfg.Calendar.OracleTimeoutSeconds) * time.Second
	if cfg.Calendar.PrefetchIntervalHours <= 0 {
		cfg.Calendar.PrefetchIntervalHours = 12
	}
	cfg.Calendar.PrefetchInterval = time.Duration(cfg.Calendar.PrefetchIntervalHours) * time.Hour
	if cfg.Calendar.PrefetchHorizonDays <= 0 {
		cfg.Calendar.PrefetchHorizonDays = 21
	}

	if cfg.Realtime.PingIntervalSeconds <= 0 {
		cfg.Realtime.PingIntervalSeconds = 25
	}
	cfg.Realtime.PingInterval = time.Duration(cfg.Realtime.PingIntervalSeconds) * time.Second
	if cfg.Realtime.WriteTimeoutSeconds <= 0 {
		cfg.Realtime.WriteTimeoutSeconds = 10
	}
	cfg.Realtime.WriteTimeout = time.Duration(cfg.Realtime.WriteTimeoutSeconds) * time.Second

	if cfg.Notifications.WorkerPool.Size <= 0 {
		slog.Debug("notifications.worker_pool.size is not set or invalid; defaulting to 1")
		cfg.Notifications.WorkerPool.Size = 1
	}
	if cfg.Notifications.WorkerPool.QueueSize <= 0 {
		cfg.Notifications.WorkerPool.QueueSize = 64
	}
	if cfg.Notifications.Telegram.BaseURL == "" {
		cfg.Notifications.Telegram.BaseURL = "https://api.telegram.org"
	}
	if cfg.Notifications.Push.TTL <= 0 {
		cfg.Notifications.Push.TTL = 3600
	}

	if cfg.Autocomplete.Limit <= 0 {
		cfg.Autocomplete.Limit = 100
	}
	return nil
}

// SlogLevel maps the configured log level onto slog.
func (s ServerConfig) SlogLevel() slog.Level {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
