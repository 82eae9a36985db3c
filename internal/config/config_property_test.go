package config

import (
	"fmt"
	"os"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// validLogLevels are the accepted log level values.
var validLogLevels = []string{"debug", "info", "warn", "error"}

// durationDefaults maps every duration env var to its default.
var durationDefaults = map[string]time.Duration{
	"HOLD_TTL":             30 * time.Minute,
	"LOCK_TIMEOUT":         5 * time.Second,
	"SWEEP_LOCK_TTL":       30 * time.Second,
	"DB_CONN_MAX_LIFETIME": 30 * time.Minute,
	"READ_TIMEOUT":         5 * time.Second,
	"WRITE_TIMEOUT":        10 * time.Second,
	"IDLE_TIMEOUT":         60 * time.Second,
	"SHUTDOWN_TIMEOUT":     10 * time.Second,
}

func durationKeys() []string {
	return []string{
		"HOLD_TTL", "LOCK_TIMEOUT", "SWEEP_LOCK_TTL", "DB_CONN_MAX_LIFETIME",
		"READ_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT", "SHUTDOWN_TIMEOUT",
	}
}

func unsetAllConfigEnv() {
	for _, key := range allEnvKeys {
		os.Unsetenv(key)
	}
}

// genDurationString generates a valid positive Go duration string.
func genDurationString() *rapid.Generator[string] {
	return rapid.Custom(func(t *rapid.T) string {
		unit := rapid.SampledFrom([]string{"ms", "s", "m"}).Draw(t, "unit")
		val := rapid.IntRange(1, 600).Draw(t, "val")
		return fmt.Sprintf("%d%s", val, unit)
	})
}

func durationField(cfg *Config, key string) time.Duration {
	switch key {
	case "HOLD_TTL":
		return cfg.HoldTTL
	case "LOCK_TIMEOUT":
		return cfg.LockTimeout
	case "SWEEP_LOCK_TTL":
		return cfg.SweepLockTTL
	case "DB_CONN_MAX_LIFETIME":
		return cfg.DBConnMaxLifetime
	case "READ_TIMEOUT":
		return cfg.ReadTimeout
	case "WRITE_TIMEOUT":
		return cfg.WriteTimeout
	case "IDLE_TIMEOUT":
		return cfg.IdleTimeout
	default:
		return cfg.ShutdownTimeout
	}
}

func TestProperty_ValidConfigParsing(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		unsetAllConfigEnv()
		defer unsetAllConfigEnv()

		// Empty string means "use default" (env var not set).
		port := rapid.OneOf(rapid.Just(0), rapid.IntRange(1, 65535)).Draw(t, "port")
		logLevel := rapid.OneOf(rapid.Just(""), rapid.SampledFrom(validLogLevels)).Draw(t, "logLevel")
		fee := rapid.OneOf(rapid.Just(int64(-1)), rapid.Int64Range(0, 10_000)).Draw(t, "fee")

		durStrs := make(map[string]string)
		for _, key := range durationKeys() {
			durStrs[key] = rapid.OneOf(rapid.Just(""), genDurationString()).Draw(t, key)
		}

		if port != 0 {
			os.Setenv("PORT", fmt.Sprintf("%d", port))
		}
		if logLevel != "" {
			os.Setenv("LOG_LEVEL", logLevel)
		}
		if fee >= 0 {
			os.Setenv("SECONDARY_FEE_BPS", fmt.Sprintf("%d", fee))
		}
		for key, v := range durStrs {
			if v != "" {
				os.Setenv(key, v)
			}
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() returned error for valid inputs: %v", err)
		}

		wantPort := 8080
		if port != 0 {
			wantPort = port
		}
		if cfg.Port != wantPort {
			t.Fatalf("Port = %d, want %d", cfg.Port, wantPort)
		}

		wantLevel := "info"
		if logLevel != "" {
			wantLevel = logLevel
		}
		if cfg.Log.Level != wantLevel {
			t.Fatalf("Log.Level = %q, want %q", cfg.Log.Level, wantLevel)
		}

		wantFee := int64(0)
		if fee >= 0 {
			wantFee = fee
		}
		if cfg.SecondaryFeeBPS != wantFee {
			t.Fatalf("SecondaryFeeBPS = %d, want %d", cfg.SecondaryFeeBPS, wantFee)
		}

		for _, key := range durationKeys() {
			want := durationDefaults[key]
			if durStrs[key] != "" {
				want, _ = time.ParseDuration(durStrs[key])
			}
			if got := durationField(cfg, key); got != want {
				t.Fatalf("%s = %v, want %v (env=%q)", key, got, want, durStrs[key])
			}
		}
	})
}

func TestProperty_InvalidPortReturnsError(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		unsetAllConfigEnv()
		defer unsetAllConfigEnv()

		invalidPort := rapid.OneOf(
			rapid.StringMatching(`[a-zA-Z]{1,10}`),
			rapid.Just("12.5"),
			rapid.Just("1.0e2"),
			rapid.Map(rapid.IntRange(65536, 1<<20), func(v int) string { return fmt.Sprintf("%d", v) }),
			rapid.Map(rapid.IntRange(-1000, 0), func(v int) string { return fmt.Sprintf("%d", v) }),
		).Draw(t, "invalidPort")

		os.Setenv("PORT", invalidPort)

		if _, err := Load(); err == nil {
			t.Fatalf("Load() should return error for invalid PORT %q", invalidPort)
		}
	})
}

func TestProperty_InvalidLogLevelReturnsError(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		unsetAllConfigEnv()
		defer unsetAllConfigEnv()

		invalidLevel := rapid.StringMatching(`[a-z]{1,20}`).Filter(func(s string) bool {
			for _, v := range validLogLevels {
				if s == v {
					return false
				}
			}
			return s != ""
		}).Draw(t, "invalidLevel")

		os.Setenv("LOG_LEVEL", invalidLevel)

		if _, err := Load(); err == nil {
			t.Fatalf("Load() should return error for invalid LOG_LEVEL %q", invalidLevel)
		}
	})
}

func TestProperty_InvalidDurationReturnsError(t *testing.T) {
	for _, key := range durationKeys() {
		t.Run(key, func(t *testing.T) {
			rapid.Check(t, func(t *rapid.T) {
				unsetAllConfigEnv()
				defer unsetAllConfigEnv()

				invalidDur := rapid.OneOf(
					rapid.StringMatching(`[a-zA-Z]{2,10}`),
					rapid.Just("5x"),
					rapid.Just("abc123"),
				).Filter(func(s string) bool {
					_, err := time.ParseDuration(s)
					return s != "" && err != nil
				}).Draw(t, "invalidDuration")

				os.Setenv(key, invalidDur)

				if _, err := Load(); err == nil {
					t.Fatalf("Load() should return error for invalid %s=%q", key, invalidDur)
				}
			})
		})
	}
}
