// Package config handles configuration for the user server,
// including defaults, JSON overlay, environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Store backends.
const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

// Config holds runtime settings for the user server.
//
// Fields:
//   - EndpointAddrHTTP: bind address for the GraphQL/HTTP endpoint.
//   - StoreBackend: "mongo" (MongoURI/DatabaseName) or "memory".
//   - DefaultPageSize / MaxPageSize: users() pagination bounds.
//   - S3*: object storage for avatar uploads; an empty bucket disables them.
type Config struct {
	EndpointAddrHTTP string `env:"USER_ADDR"`

	StoreBackend string        `env:"USER_STORE_BACKEND"`
	MongoURI     string        `env:"USER_MONGODB_URL"`
	DatabaseName string        `env:"USER_DATABASE_NAME"`
	MongoTimeout time.Duration `env:"USER_MONGODB_TIMEOUT"`

	DefaultPageSize int `env:"USER_DEFAULT_PAGE_SIZE"`
	MaxPageSize     int `env:"USER_MAX_PAGE_SIZE"`

	AllowedOrigins []string `env:"USER_ALLOWED_ORIGINS" envSeparator:","`

	S3Region        string        `env:"USER_S3_REGION"`
	S3AccessKey     string        `env:"USER_S3_ACCESS_KEY"`
	S3SecretKey     string        `env:"USER_S3_SECRET_KEY"`
	S3BaseEndpoint  string        `env:"USER_S3_ENDPOINT"`
	S3Bucket        string        `env:"USER_S3_BUCKET"`
	AvatarURLExpiry time.Duration `env:"USER_AVATAR_URL_EXPIRY"`

	LogLevel string `env:"USER_LOG_LEVEL"`
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":8002"
	c.StoreBackend = StoreMongo
	c.MongoURI = "mongodb://localhost:27017"
	c.DatabaseName = "user_db"
	c.MongoTimeout = 10 * time.Second
	c.DefaultPageSize = 20
	c.MaxPageSize = 100
	c.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	c.S3Region = "us-east-1"
	c.AvatarURLExpiry = 15 * time.Minute
	c.LogLevel = "info"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment (including .env) and finally
// command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.StoreBackend {
	case StoreMongo:
		if c.MongoURI == "" || c.DatabaseName == "" {
			errs = append(errs, errors.New("mongo backend requires a uri and a database name"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.StoreBackend))
	}
	if c.DefaultPageSize <= 0 || c.MaxPageSize < c.DefaultPageSize {
		errs = append(errs, fmt.Errorf("invalid page sizes: default %d, max %d", c.DefaultPageSize, c.MaxPageSize))
	}
	if c.S3Bucket != "" && c.AvatarURLExpiry <= 0 {
		errs = append(errs, errors.New("avatar url expiry must be positive"))
	}
	return errors.Join(errs...)
}

// AvatarsEnabled reports whether avatar uploads are configured.
func (c *Config) AvatarsEnabled() bool {
	return c.S3Bucket != ""
}
