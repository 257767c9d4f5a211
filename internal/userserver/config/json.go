package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// JsonConfig is the on-disk shape of the user server configuration.
type JsonConfig struct {
	EndpointAddrHTTP string         `json:"endpoint_addr_http"`
	StoreBackend     string         `json:"store_backend"`
	MongoURI         string         `json:"mongodb_url"`
	DatabaseName     string         `json:"database_name"`
	MongoTimeout     timex.Duration `json:"mongodb_timeout"`
	DefaultPageSize  int            `json:"default_page_size"`
	MaxPageSize      int            `json:"max_page_size"`
	AllowedOrigins   []string       `json:"allowed_origins"`
	S3Region         string         `json:"s3_region"`
	S3AccessKey      string         `json:"s3_access_key"`
	S3SecretKey      string         `json:"s3_secret_key"`
	S3BaseEndpoint   string         `json:"s3_base_endpoint"`
	S3Bucket         string         `json:"s3_bucket"`
	AvatarURLExpiry  timex.Duration `json:"avatar_url_expiry"`
	LogLevel         string         `json:"log_level"`
}

// parseJson overlays values from the JSON file named by -c/-config or
// USER_CONFIG. Keys missing from the file keep their current values.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFile("USER_CONFIG")

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
	config.StoreBackend = c.StoreBackend
	config.MongoURI = c.MongoURI
	config.DatabaseName = c.DatabaseName
	config.MongoTimeout = c.MongoTimeout.Duration
	config.DefaultPageSize = c.DefaultPageSize
	config.MaxPageSize = c.MaxPageSize
	config.AllowedOrigins = c.AllowedOrigins
	config.S3Region = c.S3Region
	config.S3AccessKey = c.S3AccessKey
	config.S3SecretKey = c.S3SecretKey
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.S3Bucket = c.S3Bucket
	config.AvatarURLExpiry = c.AvatarURLExpiry.Duration
	config.LogLevel = c.LogLevel
}

func fromConfig(config *Config) *JsonConfig {
	return &JsonConfig{
		EndpointAddrHTTP: config.EndpointAddrHTTP,
		StoreBackend:     config.StoreBackend,
		MongoURI:         config.MongoURI,
		DatabaseName:     config.DatabaseName,
		MongoTimeout:     dur(config.MongoTimeout),
		DefaultPageSize:  config.DefaultPageSize,
		MaxPageSize:      config.MaxPageSize,
		AllowedOrigins:   config.AllowedOrigins,
		S3Region:         config.S3Region,
		S3AccessKey:      config.S3AccessKey,
		S3SecretKey:      config.S3SecretKey,
		S3BaseEndpoint:   config.S3BaseEndpoint,
		S3Bucket:         config.S3Bucket,
		AvatarURLExpiry:  dur(config.AvatarURLExpiry),
		LogLevel:         config.LogLevel,
	}
}

func dur(d time.Duration) timex.Duration { return timex.Duration{Duration: d} }
