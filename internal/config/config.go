// Package config loads agent configuration from the environment, with an
// optional .env file merged in first.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/monstercameron/zerver-probe/internal/probe"
)

// Config holds all agent configuration.
type Config struct {
	// Env selects the runtime environment: local, dev, or prod. It picks
	// the log handler and level.
	Env string

	// Probe target and behavior.
	Host            string
	Port            int
	SettleDelay     time.Duration
	ReadTimeout     time.Duration
	RequireResponse bool

	// Agent surface.
	Listen          string        // API listen address
	WatchInterval   time.Duration // delay between watch-loop probes
	HistoryPath     string        // sqlite file; empty disables persistence
	HistoryTTL      time.Duration // retention window for stored reports
	ShutdownTimeout time.Duration // grace period for API shutdown
}

// Defaults for the agent surface. Probe defaults live in the probe package.
const (
	DefaultEnv             = EnvLocal
	DefaultListen          = "127.0.0.1:8787"
	DefaultWatchInterval   = 30 * time.Second
	DefaultHistoryTTL      = 24 * time.Hour
	DefaultShutdownTimeout = 10 * time.Second
)

// Recognized Env values.
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// Load reads configuration from environment variables, with an optional
// .env file. Unset values fall back to defaults.
func Load() *Config {
	// A missing .env file is fine; the environment alone is a valid source.
	_ = godotenv.Load()

	return &Config{
		Env: getEnv("ZPROBE_ENV", DefaultEnv),

		// Probe
		Host:            getEnv("ZPROBE_HOST", probe.DefaultHost),
		Port:            getEnvAsInt("ZPROBE_PORT", probe.DefaultPort),
		SettleDelay:     getEnvAsDuration("ZPROBE_SETTLE", 0),
		ReadTimeout:     getEnvAsDuration("ZPROBE_READ_TIMEOUT", probe.DefaultReadTimeout),
		RequireResponse: getEnvAsBool("ZPROBE_REQUIRE_RESPONSE", false),

		// Agent
		Listen:          getEnv("ZPROBE_LISTEN", DefaultListen),
		WatchInterval:   getEnvAsDuration("ZPROBE_WATCH_INTERVAL", DefaultWatchInterval),
		HistoryPath:     getEnv("ZPROBE_HISTORY", ""),
		HistoryTTL:      getEnvAsDuration("ZPROBE_HISTORY_TTL", DefaultHistoryTTL),
		ShutdownTimeout: getEnvAsDuration("ZPROBE_SHUTDOWN_TIMEOUT", DefaultShutdownTimeout),
	}
}

// ProbeConfig translates the loaded settings into a probe configuration.
func (c *Config) ProbeConfig() probe.Config {
	return probe.Config{
		Host:            c.Host,
		Port:            c.Port,
		SettleDelay:     c.SettleDelay,
		ReadTimeout:     c.ReadTimeout,
		RequireResponse: c.RequireResponse,
	}
}

// Helper functions for parsing environment variables.
func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	valStr := getEnv(key, "")
	if val, err := strconv.ParseBool(valStr); err == nil {
		return val
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	valStr := getEnv(key, "")
	if val, err := time.ParseDuration(valStr); err == nil {
		return val
	}
	return defaultVal
}
