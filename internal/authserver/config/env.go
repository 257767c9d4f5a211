package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// parseEnv overlays AUTH_* environment variables onto config. A .env file in
// the working directory is loaded first when present; variables already set
// in the process environment win over it. Unset variables leave the field
// untouched. Malformed values cause a panic.
func parseEnv(config *Config) {
	_ = godotenv.Load()

	if err := env.Parse(config); err != nil {
		panic(err)
	}
}
