package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
)

// Config holds all runtime configuration for the settlement service.
type Config struct {
	Port int `env:"PORT" envDefault:"8080"`
	Log  LogConfig

	StoreBackend      string        `env:"STORE_BACKEND" envDefault:"memory"`
	DatabaseURL       string        `env:"DATABASE_URL"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	AutoMigrate       bool          `env:"DB_AUTO_MIGRATE" envDefault:"true"`

	SweepSchedule   string        `env:"SWEEP_SCHEDULE" envDefault:"@every 1s"`
	SweepLockTTL    time.Duration `env:"SWEEP_LOCK_TTL" envDefault:"30s"`
	RedisURL        string        `env:"REDIS_URL"`
	HoldTTL         time.Duration `env:"HOLD_TTL" envDefault:"30m"`
	LockTimeout     time.Duration `env:"LOCK_TIMEOUT" envDefault:"5s"`
	SecondaryFeeBPS int64         `env:"SECONDARY_FEE_BPS" envDefault:"0"`

	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `env:"LOG_LEVEL" envDefault:"info"`
	Encoding    string `env:"LOG_ENCODING" envDefault:"json"`
	Development bool   `env:"LOG_DEVELOPMENT" envDefault:"false"`
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. It returns an error for any invalid value.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field and range constraints env parsing cannot.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d, must be between 1 and 65535", c.Port)
	}
	if !isValidLogLevel(c.Log.Level) {
		return fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", c.Log.Level)
	}
	if c.Log.Encoding != "json" && c.Log.Encoding != "console" {
		return fmt.Errorf("invalid LOG_ENCODING: %q, must be one of: json, console", c.Log.Encoding)
	}

	switch c.StoreBackend {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=postgres")
		}
		if c.DBMaxOpenConns <= 0 {
			return fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %d, must be > 0", c.DBMaxOpenConns)
		}
		if c.DBMaxIdleConns < 0 || c.DBMaxIdleConns > c.DBMaxOpenConns {
			return fmt.Errorf("invalid DB_MAX_IDLE_CONNS: %d, must be between 0 and DB_MAX_OPEN_CONNS", c.DBMaxIdleConns)
		}
	default:
		return fmt.Errorf("invalid STORE_BACKEND: %q, must be one of: memory, postgres", c.StoreBackend)
	}

	if _, err := CronParser().Parse(c.SweepSchedule); err != nil {
		return fmt.Errorf("invalid SWEEP_SCHEDULE: %w", err)
	}

	for name, d := range map[string]time.Duration{
		"HOLD_TTL":         c.HoldTTL,
		"LOCK_TIMEOUT":     c.LockTimeout,
		"SWEEP_LOCK_TTL":   c.SweepLockTTL,
		"READ_TIMEOUT":     c.ReadTimeout,
		"WRITE_TIMEOUT":    c.WriteTimeout,
		"IDLE_TIMEOUT":     c.IdleTimeout,
		"SHUTDOWN_TIMEOUT": c.ShutdownTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("invalid %s: %v, must be > 0", name, d)
		}
	}

	if c.SecondaryFeeBPS < 0 || c.SecondaryFeeBPS > 10_000 {
		return fmt.Errorf("invalid SECONDARY_FEE_BPS: %d, must be between 0 and 10000", c.SecondaryFeeBPS)
	}
	return nil
}

// cronFields matches the parser the scheduler uses: seconds first, plus
// descriptors such as @every.
const cronFields = cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor

// CronParser returns the schedule parser shared by validation and the
// scheduler.
func CronParser() cron.Parser {
	return cron.NewParser(cronFields)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
