package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// parseEnv overlays USER_* environment variables (and .env) onto config.
func parseEnv(config *Config) {
	_ = godotenv.Load()

	if err := env.Parse(config); err != nil {
		panic(err)
	}
}
