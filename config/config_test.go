package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Queue: DefaultQueueConfig(),
		Store: StoreConfig{Backend: StoreBackendMemory, Key: "txqueue:transactions"},
		Auth:  AuthConfig{AccessSecret: "secret"},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unknown backend", mutate: func(c *Config) { c.Store.Backend = "etcd" }, wantErr: "unknown store backend"},
		{name: "empty key", mutate: func(c *Config) { c.Store.Key = "" }, wantErr: "store key"},
		{name: "postgres without host", mutate: func(c *Config) { c.Store.Backend = StoreBackendPostgres }, wantErr: "database host"},
		{name: "missing secret", mutate: func(c *Config) { c.Auth.AccessSecret = "" }, wantErr: "AUTH_ACCESS_SECRET"},
		{name: "negative retries", mutate: func(c *Config) { c.Queue.MaxRetries = -1 }, wantErr: "max retries"},
		{name: "zero queue size", mutate: func(c *Config) { c.Queue.MaxQueueSize = 0 }, wantErr: "max queue size"},
		{name: "zero poll interval", mutate: func(c *Config) { c.Queue.PollInterval = 0 }, wantErr: "poll interval"},
		{name: "shrinking backoff", mutate: func(c *Config) { c.Queue.RetryBackoff = 0.5 }, wantErr: "retry backoff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseChainURLs(t *testing.T) {
	urls, err := parseChainURLs(" 1=https://eth.example , 137=https://polygon.example,")
	require.NoError(t, err)
	assert.Equal(t, map[uint64]string{
		1:   "https://eth.example",
		137: "https://polygon.example",
	}, urls)

	empty, err := parseChainURLs("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, bad := range []string{"https://no-chain", "0=https://x", "abc=https://x"} {
		_, err := parseChainURLs(bad)
		assert.Error(t, err, bad)
	}
}

func TestLoad_ReadsQueueEnvironment(t *testing.T) {
	t.Setenv("QUEUE_MAX_RETRIES", "5")
	t.Setenv("QUEUE_CONFIRMATION_TIMEOUT", "90s")
	t.Setenv("QUEUE_MAX_SIZE", "250")
	t.Setenv("QUEUE_ENABLE_PERSISTENCE", "false")
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("CHAIN_RPC_URLS", "1=http://localhost:8545")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Queue.MaxRetries)
	assert.Equal(t, 90*time.Second, cfg.Queue.ConfirmationTimeout)
	assert.Equal(t, 250, cfg.Queue.MaxQueueSize)
	assert.False(t, cfg.Queue.EnablePersistence)
	assert.Equal(t, StoreBackendPostgres, cfg.Store.Backend)
	assert.Equal(t, "http://localhost:8545", cfg.Chains.RPCURLs[1])
	assert.Equal(t, DefaultQueueConfig().PollInterval, cfg.Queue.PollInterval)
}

func TestLoad_RejectsBadChainURLs(t *testing.T) {
	t.Setenv("CHAIN_RPC_URLS", "mainnet")
	_, err := Load()
	assert.Error(t, err)
}
