package constants

import "time"

// API Server Constants
const (
	// DefaultAPIHost is the default API server host
	DefaultAPIHost = "localhost"

	// DefaultAPIPort is the default API server port
	DefaultAPIPort = 8989

	// DefaultReadTimeout is the default HTTP read timeout
	DefaultReadTimeout = 15 * time.Second

	// DefaultWriteTimeout is the default HTTP write timeout
	DefaultWriteTimeout = 15 * time.Second

	// DefaultIdleTimeout is the default HTTP idle timeout
	DefaultIdleTimeout = 60 * time.Second

	// DefaultShutdownTimeout is the default graceful shutdown timeout
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultGraphQLPath is the default GraphQL endpoint path
	DefaultGraphQLPath = "/graphql"

	// DefaultWebSocketPath is the default WebSocket endpoint path
	DefaultWebSocketPath = "/ws"
)

// Sync Constants
const (
	// BlockBatchSize is the number of blocks processed per sync batch.
	// Caps the size of a single searchlogs result set.
	BlockBatchSize = 200

	// RPCBatchSize is the number of balance/read RPC calls in flight at once.
	// Batches run strictly sequentially to protect the upstream node.
	RPCBatchSize = 5

	// DefaultSyncInterval is the sleep between full sync passes
	DefaultSyncInterval = 5 * time.Second

	// SyncThresholdSecs is the chain-time staleness beyond which the node is
	// considered not fully synced when no peer headers are available
	SyncThresholdSecs = 1200
)

// Chain Constants
const (
	// FixedPointDecimals is the decimal scale of chain-native amount integers
	FixedPointDecimals = 8

	// DefaultGasLimit is the gas limit for ordinary contract calls
	DefaultGasLimit = 250000

	// CreateOracleGasLimit is the gas limit for votes that cross an oracle's
	// consensus threshold and therefore deploy the next oracle round
	CreateOracleGasLimit = 1500000

	// DefaultGasPrice is the gas price used for fee back-computation on
	// direct-value transfers, in token units per gas
	DefaultGasPrice = "0.0000004"

	// ZeroTokenAddress identifies the native coin on the exchange contract
	ZeroTokenAddress = "0000000000000000000000000000000000000000"
)

// Token symbols
const (
	// NativeToken is the chain's base coin; oracles wagering it are centralized
	NativeToken = "BASE"

	// PredToken is the prediction token; oracles staking it are decentralized
	PredToken = "PRED"
)

// Storage Constants
const (
	// DefaultCacheSize is the default cache size in MB for PebbleDB
	DefaultCacheSize = 64 // MB

	// DefaultMaxOpenFiles is the default maximum number of open files for PebbleDB
	DefaultMaxOpenFiles = 1000

	// DefaultWriteBuffer is the default write buffer size in MB for PebbleDB
	DefaultWriteBuffer = 32 // MB
)

// Pagination Constants
const (
	// DefaultPaginationLimit is the default pagination limit
	DefaultPaginationLimit = 50

	// MaxPaginationLimit is the maximum pagination limit
	MaxPaginationLimit = 500
)

// Query Constants
const (
	// DefaultQueryTimeout is the default timeout for RPC queries
	DefaultQueryTimeout = 30 * time.Second
)
