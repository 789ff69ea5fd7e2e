package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, NetworkTestnet, cfg.Network)
	assert.Equal(t, uint64(200), cfg.Sync.BatchSize)
	assert.Equal(t, 5, cfg.Sync.RPCBatchSize)
	assert.Equal(t, 5*time.Second, cfg.Sync.Interval)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8989, cfg.API.Port)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := NewConfig()
		cfg.RPC.Endpoint = "http://localhost:13889"
		cfg.Database.Path = "/tmp/chainsync"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad network", func(c *Config) { c.Network = "devnet" }, "invalid network"},
		{"missing endpoint", func(c *Config) { c.RPC.Endpoint = "" }, "RPC endpoint is required"},
		{"missing db path", func(c *Config) { c.Database.Path = "" }, "database path is required"},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "invalid log level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "invalid log format"},
		{"zero batch", func(c *Config) { c.Sync.BatchSize = 0 }, "batch size must be positive"},
		{"zero interval", func(c *Config) { c.Sync.Interval = 0 }, "interval must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CHAINSYNC_NETWORK", "mainnet")
	t.Setenv("CHAINSYNC_RPC_ENDPOINT", "http://node:13889")
	t.Setenv("CHAINSYNC_SYNC_BATCH_SIZE", "50")
	t.Setenv("CHAINSYNC_SYNC_INTERVAL", "10s")
	t.Setenv("CHAINSYNC_API_ENABLED", "true")

	cfg := NewConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, NetworkMainnet, cfg.Network)
	assert.Equal(t, "http://node:13889", cfg.RPC.Endpoint)
	assert.Equal(t, uint64(50), cfg.Sync.BatchSize)
	assert.Equal(t, 10*time.Second, cfg.Sync.Interval)
	assert.True(t, cfg.API.Enabled)
}

func TestLoadFromEnvInvalid(t *testing.T) {
	t.Setenv("CHAINSYNC_SYNC_BATCH_SIZE", "lots")

	cfg := NewConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHAINSYNC_SYNC_BATCH_SIZE")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	data := `
network: mainnet
rpc:
  endpoint: http://localhost:13889
database:
  path: ` + dir + `
`
	require.NoError(t, os.WriteFile(file, []byte(data), 0o644))

	cfg, err := Load(file)
	require.NoError(t, err)

	assert.Equal(t, NetworkMainnet, cfg.Network)
	require.NotNil(t, cfg.Contracts)
	assert.Equal(t, uint64(556000), cfg.Contracts.ContractDeployedBlock)
	// read-only call sender defaults from metadata
	assert.Equal(t, cfg.Contracts.DefaultSenderAddress, cfg.Sync.SenderAddress)
}

func TestMetadataForNetwork(t *testing.T) {
	mainnet, err := MetadataForNetwork(NetworkMainnet)
	require.NoError(t, err)
	testnet, err := MetadataForNetwork(NetworkTestnet)
	require.NoError(t, err)

	assert.NotEqual(t, mainnet.Exchange.Address, testnet.Exchange.Address)
	// event signatures are network independent
	assert.Equal(t, mainnet.Exchange.Trade, testnet.Exchange.Trade)
	assert.NotEmpty(t, mainnet.PredToken.Address)

	_, err = MetadataForNetwork("devnet")
	assert.Error(t, err)
}
