// Package config loads tracker settings from the environment, with an
// optional .env file for local development.
package config

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all settings for the tracker service.
type Config struct {
	Port         string
	DatabaseURL  string // empty → in-memory store with snapshot persistence
	RedisURL     string // empty → no read-through cache
	SnapshotPath string
	LogLevel     string
	FetchRPS     float64 // Steam web price fetch rate
}

// Load reads the configuration. A missing .env file is not an error;
// real deployments set the environment directly.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "err", err)
	}

	return &Config{
		Port:         getEnv("PORT", "8080"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		RedisURL:     getEnv("REDIS_URL", ""),
		SnapshotPath: getEnv("SNAPSHOT_PATH", "inventory.json"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		FetchRPS:     getEnvFloat("STEAM_FETCH_RPS", 1),
	}
}

// SlogLevel maps the configured level name to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		slog.Warn("invalid numeric environment value, using default", "key", key, "value", value)
		return defaultValue
	}
	return f
}
