package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "all flags", args: []string{"cmd",
			"-a", "127.0.0.1:9090", "-s", "secret", "-t", "1", "-r", "3",
			"-k", "redis://cache:6379/1", "-d", "db", "-u", "http://users:8002", "-l", "debug",
		}, expected: &Config{
			EndpointAddrHTTP:             "127.0.0.1:9090",
			SecretKey:                    "secret",
			AccessTokenValidityDuration:  1 * time.Minute,
			RefreshTokenValidityDuration: 3 * time.Minute,
			RedisURL:                     "redis://cache:6379/1",
			DatabaseDSN:                  "db",
			UserServiceURL:               "http://users:8002",
			LogLevel:                     "debug",
		}},
		{name: "foreign flags ignored", args: []string{"cmd", "-x", "1", "-a", ":1"}, expected: &Config{
			EndpointAddrHTTP: ":1",
		}},
		{name: "bad minutes", args: []string{"cmd", "-t", "soon"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := &Config{}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
