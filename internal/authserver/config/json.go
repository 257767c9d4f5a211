package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// JsonConfig is the on-disk shape of the auth server configuration.
// Durations accept either strings such as "30m" or integer nanoseconds.
type JsonConfig struct {
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	SecretKey                    string         `json:"secret_key"`
	Algorithm                    string         `json:"jwt_algorithm"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	StoreBackend                 string         `json:"store_backend"`
	RedisURL                     string         `json:"redis_url"`
	RedisTimeout                 timex.Duration `json:"redis_timeout"`
	SessionKeyPrefix             string         `json:"session_key_prefix"`
	RefreshKeyPrefix             string         `json:"refresh_key_prefix"`
	PasswordKeyPrefix            string         `json:"password_key_prefix"`
	CredentialBackend            string         `json:"credential_backend"`
	DatabaseDSN                  string         `json:"database_dsn"`
	UserServiceURL               string         `json:"user_service_url"`
	UserServiceTimeout           timex.Duration `json:"user_service_timeout"`
	AllowedOrigins               []string       `json:"allowed_origins"`
	BcryptCost                   int            `json:"bcrypt_cost"`
	PasswordMinLength            int            `json:"password_min_length"`
	PasswordRequireSpecial       bool           `json:"password_require_special"`
	PasswordRequireUpper         bool           `json:"password_require_uppercase"`
	PasswordRequireNumbers       bool           `json:"password_require_numbers"`
	LoginRateLimit               int            `json:"login_rate_limit"`
	RegisterRateLimit            int            `json:"register_rate_limit"`
	LogLevel                     string         `json:"log_level"`
}

// parseJson overlays values from a JSON file onto config.
//
// The file path comes from -c/-config or the AUTH_CONFIG variable; when
// neither is set nothing is loaded. Keys missing from the file keep their
// current values. Unreadable files or invalid JSON cause a panic.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFile("AUTH_CONFIG")

	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := fromConfig(config)
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.SecretKey = c.SecretKey
	config.Algorithm = c.Algorithm
	config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	config.StoreBackend = c.StoreBackend
	config.RedisURL = c.RedisURL
	config.RedisTimeout = c.RedisTimeout.Duration
	config.SessionKeyPrefix = c.SessionKeyPrefix
	config.RefreshKeyPrefix = c.RefreshKeyPrefix
	config.PasswordKeyPrefix = c.PasswordKeyPrefix
	config.CredentialBackend = c.CredentialBackend
	config.DatabaseDSN = c.DatabaseDSN
	config.UserServiceURL = c.UserServiceURL
	config.UserServiceTimeout = c.UserServiceTimeout.Duration
	config.AllowedOrigins = c.AllowedOrigins
	config.BcryptCost = c.BcryptCost
	config.PasswordMinLength = c.PasswordMinLength
	config.PasswordRequireSpecial = c.PasswordRequireSpecial
	config.PasswordRequireUpper = c.PasswordRequireUpper
	config.PasswordRequireNumbers = c.PasswordRequireNumbers
	config.LoginRateLimit = c.LoginRateLimit
	config.RegisterRateLimit = c.RegisterRateLimit
	config.LogLevel = c.LogLevel
}

func fromConfig(config *Config) *JsonConfig {
	return &JsonConfig{
		EndpointAddrHTTP:             config.EndpointAddrHTTP,
		SecretKey:                    config.SecretKey,
		Algorithm:                    config.Algorithm,
		AccessTokenValidityDuration:  dur(config.AccessTokenValidityDuration),
		RefreshTokenValidityDuration: dur(config.RefreshTokenValidityDuration),
		StoreBackend:                 config.StoreBackend,
		RedisURL:                     config.RedisURL,
		RedisTimeout:                 dur(config.RedisTimeout),
		SessionKeyPrefix:             config.SessionKeyPrefix,
		RefreshKeyPrefix:             config.RefreshKeyPrefix,
		PasswordKeyPrefix:            config.PasswordKeyPrefix,
		CredentialBackend:            config.CredentialBackend,
		DatabaseDSN:                  config.DatabaseDSN,
		UserServiceURL:               config.UserServiceURL,
		UserServiceTimeout:           dur(config.UserServiceTimeout),
		AllowedOrigins:               config.AllowedOrigins,
		BcryptCost:                   config.BcryptCost,
		PasswordMinLength:            config.PasswordMinLength,
		PasswordRequireSpecial:       config.PasswordRequireSpecial,
		PasswordRequireUpper:         config.PasswordRequireUpper,
		PasswordRequireNumbers:       config.PasswordRequireNumbers,
		LoginRateLimit:               config.LoginRateLimit,
		RegisterRateLimit:            config.RegisterRateLimit,
		LogLevel:                     config.LogLevel,
	}
}

func dur(d time.Duration) timex.Duration { return timex.Duration{Duration: d} }
