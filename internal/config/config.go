package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/openpredict/chainsync/internal/constants"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the sync engine
type Config struct {
	Network  string         `yaml:"network"`
	RPC      RPCConfig      `yaml:"rpc"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Sync     SyncConfig     `yaml:"sync"`
	API      APIConfig      `yaml:"api"`

	// Contracts is the static contract metadata for the selected network,
	// resolved once by Load and never mutated afterwards.
	Contracts *ContractMetadata `yaml:"-"`
}

// RPCConfig holds chain node RPC client configuration
type RPCConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
	// RatePerSecond caps outgoing RPC calls; 0 disables limiting
	RatePerSecond int `yaml:"rate_per_second"`
}

// DatabaseConfig holds local store configuration
type DatabaseConfig struct {
	Path     string `yaml:"path"`
	ReadOnly bool   `yaml:"readonly"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SyncConfig holds sync engine configuration
type SyncConfig struct {
	// BatchSize is the number of blocks per sync batch
	BatchSize uint64 `yaml:"batch_size"`
	// RPCBatchSize is the width of balance-reconciliation RPC fan-outs
	RPCBatchSize int `yaml:"rpc_batch_size"`
	// Interval is the sleep between full sync passes
	Interval time.Duration `yaml:"interval"`
	// SenderAddress is the address used for read-only contract calls.
	// Defaults to the network's well-known throwaway address.
	SenderAddress string `yaml:"sender_address"`
}

// APIConfig holds API server configuration
type APIConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	EnableGraphQL   bool     `yaml:"enable_graphql"`
	EnableWebSocket bool     `yaml:"enable_websocket"`
	EnableCORS      bool     `yaml:"enable_cors"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults sets default values for the configuration
func (c *Config) SetDefaults() {
	if c.Network == "" {
		c.Network = NetworkTestnet
	}

	if c.RPC.Timeout == 0 {
		c.RPC.Timeout = constants.DefaultQueryTimeout
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}

	if c.Sync.BatchSize == 0 {
		c.Sync.BatchSize = constants.BlockBatchSize
	}
	if c.Sync.RPCBatchSize == 0 {
		c.Sync.RPCBatchSize = constants.RPCBatchSize
	}
	if c.Sync.Interval == 0 {
		c.Sync.Interval = constants.DefaultSyncInterval
	}

	if c.API.Host == "" {
		c.API.Host = constants.DefaultAPIHost
	}
	if c.API.Port == 0 {
		c.API.Port = constants.DefaultAPIPort
	}
	if c.API.AllowedOrigins == nil {
		c.API.AllowedOrigins = []string{"*"}
	}
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables take precedence over file configuration.
func (c *Config) LoadFromEnv() error {
	if network := os.Getenv("CHAINSYNC_NETWORK"); network != "" {
		c.Network = network
	}
	if endpoint := os.Getenv("CHAINSYNC_RPC_ENDPOINT"); endpoint != "" {
		c.RPC.Endpoint = endpoint
	}
	if timeout := os.Getenv("CHAINSYNC_RPC_TIMEOUT"); timeout != "" {
		duration, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid CHAINSYNC_RPC_TIMEOUT: %w", err)
		}
		c.RPC.Timeout = duration
	}
	if path := os.Getenv("CHAINSYNC_DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if level := os.Getenv("CHAINSYNC_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if format := os.Getenv("CHAINSYNC_LOG_FORMAT"); format != "" {
		c.Log.Format = format
	}
	if batchSize := os.Getenv("CHAINSYNC_SYNC_BATCH_SIZE"); batchSize != "" {
		val, err := strconv.ParseUint(batchSize, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid CHAINSYNC_SYNC_BATCH_SIZE: %w", err)
		}
		c.Sync.BatchSize = val
	}
	if interval := os.Getenv("CHAINSYNC_SYNC_INTERVAL"); interval != "" {
		duration, err := time.ParseDuration(interval)
		if err != nil {
			return fmt.Errorf("invalid CHAINSYNC_SYNC_INTERVAL: %w", err)
		}
		c.Sync.Interval = duration
	}
	if sender := os.Getenv("CHAINSYNC_SENDER_ADDRESS"); sender != "" {
		c.Sync.SenderAddress = sender
	}
	if enabled := os.Getenv("CHAINSYNC_API_ENABLED"); enabled != "" {
		val, err := strconv.ParseBool(enabled)
		if err != nil {
			return fmt.Errorf("invalid CHAINSYNC_API_ENABLED: %w", err)
		}
		c.API.Enabled = val
	}
	if host := os.Getenv("CHAINSYNC_API_HOST"); host != "" {
		c.API.Host = host
	}
	if port := os.Getenv("CHAINSYNC_API_PORT"); port != "" {
		val, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid CHAINSYNC_API_PORT: %w", err)
		}
		c.API.Port = val
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Network != NetworkMainnet && c.Network != NetworkTestnet {
		return fmt.Errorf("invalid network %q, must be one of: %s, %s", c.Network, NetworkMainnet, NetworkTestnet)
	}
	if c.RPC.Endpoint == "" {
		return fmt.Errorf("RPC endpoint is required")
	}
	if c.RPC.Timeout <= 0 {
		return fmt.Errorf("RPC timeout must be positive")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.Log.Level)
	}

	validLogFormats := map[string]bool{
		"json":    true,
		"console": true,
	}
	if !validLogFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format %q, must be one of: json, console", c.Log.Format)
	}

	if c.Sync.BatchSize == 0 {
		return fmt.Errorf("sync batch size must be positive")
	}
	if c.Sync.RPCBatchSize <= 0 {
		return fmt.Errorf("sync rpc batch size must be positive")
	}
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("sync interval must be positive")
	}

	return nil
}

// Load loads configuration in the following order:
// 1. Set defaults
// 2. Load from file (if provided)
// 3. Load from environment variables (override file)
// 4. Resolve contract metadata for the selected network
// 5. Validate
func Load(configFile string) (*Config, error) {
	cfg := NewConfig()

	if configFile != "" {
		if err := cfg.LoadFromFile(configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	cfg.SetDefaults()

	meta, err := MetadataForNetwork(cfg.Network)
	if err != nil {
		return nil, err
	}
	cfg.Contracts = meta
	if cfg.Sync.SenderAddress == "" {
		cfg.Sync.SenderAddress = meta.DefaultSenderAddress
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
