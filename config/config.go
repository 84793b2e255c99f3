package config

import (
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	HTTPAddr    string
	ServiceName string
}

// Load reads an optional .env file and resolves server-level settings.
// Package-level settings (database, redis, kafka, JWT secret) are read
// where they are used.
func Load(logger *zap.Logger) *Config {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Failed to load .env file", zap.Error(err))
		}
	}

	return &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		ServiceName: getEnv("SERVICE_NAME", "petpalace-api"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
