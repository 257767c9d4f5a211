package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":8001", c.EndpointAddrHTTP)
	assert.Equal(t, "secretKey", c.SecretKey)
	assert.Equal(t, "HS256", c.Algorithm)
	assert.Equal(t, 30*time.Minute, c.AccessTokenValidityDuration)
	assert.Equal(t, 7*24*time.Hour, c.RefreshTokenValidityDuration)
	assert.Equal(t, StoreRedis, c.StoreBackend)
	assert.Equal(t, "auth_token:", c.SessionKeyPrefix)
	assert.Equal(t, "auth_refresh:", c.RefreshKeyPrefix)
	assert.Equal(t, "password:", c.PasswordKeyPrefix)
	assert.Equal(t, CredentialsKV, c.CredentialBackend)
	assert.Equal(t, "http://user-service:8002", c.UserServiceURL)
	assert.Equal(t, bcrypt.DefaultCost, c.BcryptCost)
	assert.Equal(t, 8, c.PasswordMinLength)
	assert.True(t, c.PasswordRequireSpecial)
	assert.Equal(t, 5, c.LoginRateLimit)
	assert.Equal(t, 3, c.RegisterRateLimit)
	assert.Equal(t, "info", c.LogLevel)
	assert.NoError(t, c.Validate())
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	c := LoadConfig()
	require.NotNil(t, c, "LoadConfig must not return nil")

	var d Config
	d.LoadDefaults()
	assert.Equal(t, d.EndpointAddrHTTP, c.EndpointAddrHTTP)
	assert.Equal(t, d.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	assert.Equal(t, d.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "empty secret", mutate: func(c *Config) { c.SecretKey = "" }, wantErr: "secret key"},
		{name: "rsa algorithm", mutate: func(c *Config) { c.Algorithm = "RS256" }, wantErr: "unsupported jwt algorithm"},
		{name: "zero access ttl", mutate: func(c *Config) { c.AccessTokenValidityDuration = 0 }, wantErr: "access token lifetime"},
		{name: "refresh shorter than access", mutate: func(c *Config) { c.RefreshTokenValidityDuration = time.Minute }, wantErr: "refresh token lifetime"},
		{name: "unknown store", mutate: func(c *Config) { c.StoreBackend = "etcd" }, wantErr: "unknown store backend"},
		{name: "postgres without dsn", mutate: func(c *Config) {
			c.CredentialBackend = CredentialsPostgres
			c.DatabaseDSN = ""
		}, wantErr: "database dsn"},
		{name: "unknown credentials", mutate: func(c *Config) { c.CredentialBackend = "ldap" }, wantErr: "unknown credential backend"},
		{name: "bcrypt cost", mutate: func(c *Config) { c.BcryptCost = 99 }, wantErr: "bcrypt cost"},
		{name: "no user service", mutate: func(c *Config) { c.UserServiceURL = "" }, wantErr: "user service url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Config
			c.LoadDefaults()
			tt.mutate(&c)

			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
