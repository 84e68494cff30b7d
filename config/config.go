package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Garage     GarageConfig     `yaml:"garage"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Revenue    RevenueConfig    `yaml:"revenue"`
	Log        LogConfig        `yaml:"log"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
// Notifications are disabled when either key is empty.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether VAPID keys are configured.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// GarageConfig holds garage bootstrap and event interpretation settings.
type GarageConfig struct {
	SimulatorURL     string         `yaml:"simulator_url"`
	LoadTimeoutSecs  int            `yaml:"load_timeout_seconds"`
	LoadTimeout      time.Duration  `yaml:"-"`
	Timezone         string         `yaml:"timezone"`
	Location         *time.Location `yaml:"-"`
	DefaultSector    string         `yaml:"default_sector"`
	TestDataFallback bool           `yaml:"test_data_fallback"`
}

// RevenueConfig holds revenue query settings.
type RevenueConfig struct {
	Currency        string `yaml:"currency"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
}

// LogConfig selects the log level.
type LogConfig struct {
	Env string `yaml:"env"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// Load reads the configuration from the given path, applies environment
// overrides and fills defaults.
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

func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		} else {
			slog.Warn("ignoring invalid SERVER_PORT", "value", v)
		}
	}
	if v := os.Getenv("GARAGE_SIMULATOR_URL"); v != "" {
		cfg.Garage.SimulatorURL = v
	}
}

func (cfg *Config) applyDefaults() error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 3003
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Garage.LoadTimeoutSecs <= 0 {
		cfg.Garage.LoadTimeoutSecs = 10
	}
	cfg.Garage.LoadTimeout = time.Duration(cfg.Garage.LoadTimeoutSecs) * time.Second
	if cfg.Garage.Timezone == "" {
		cfg.Garage.Timezone = "America/Sao_Paulo"
	}
	loc, err := time.LoadLocation(cfg.Garage.Timezone)
	if err != nil {
		return err
	}
	cfg.Garage.Location = loc

	if cfg.Revenue.Currency == "" {
		cfg.Revenue.Currency = "BRL"
	}
	if cfg.Revenue.CacheTTLSeconds <= 0 {
		cfg.Revenue.CacheTTLSeconds = cfg.Server.CacheTTLSeconds
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		slog.Info("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
	return nil
}
