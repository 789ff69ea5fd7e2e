package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/openpredict/chainsync/api"
	"github.com/openpredict/chainsync/api/graphql"
	"github.com/openpredict/chainsync/chain"
	"github.com/openpredict/chainsync/internal/config"
	"github.com/openpredict/chainsync/internal/logger"
	"github.com/openpredict/chainsync/store"
	"github.com/openpredict/chainsync/sync"
	"github.com/openpredict/chainsync/types"
)

var (
	// Version information (injected at build time)
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to configuration file (YAML)")
		showVersion = flag.Bool("version", false, "Show version information and exit")
		rpcEndpoint = flag.String("rpc", "", "Chain node RPC endpoint URL")
		network     = flag.String("network", "", "Network to sync (mainnet, testnet)")
		dbPath      = flag.String("db", "", "Database path")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error)")
		logFormat   = flag.String("log-format", "", "Log format (json, console)")

		enableAPI = flag.Bool("api", false, "Enable API server")
		apiHost   = flag.String("api-host", "", "API server host")
		apiPort   = flag.Int("api-port", 0, "API server port")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("chainsyncd version %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", buildTime)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configFile, *rpcEndpoint, *network, *dbPath, *logLevel, *logFormat, *enableAPI, *apiHost, *apiPort)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := initLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting chain sync engine",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("network", cfg.Network),
		zap.String("rpc_endpoint", cfg.RPC.Endpoint),
		zap.String("db_path", cfg.Database.Path),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	chainClient, err := chain.Dial(ctx, &chain.Config{
		Endpoint:      cfg.RPC.Endpoint,
		Timeout:       cfg.RPC.Timeout,
		RatePerSecond: cfg.RPC.RatePerSecond,
		SenderAddress: cfg.Sync.SenderAddress,
		Logger:        log,
	})
	if err != nil {
		log.Fatal("Failed to connect to chain node", zap.Error(err))
	}
	defer chainClient.Close()

	head, err := chainClient.GetBlockCount(ctx)
	if err != nil {
		log.Fatal("Failed to query chain tip", zap.Error(err))
	}
	log.Info("Connected to chain node", zap.Uint64("tip", head))

	st, err := store.Open(&store.Config{
		Path:     cfg.Database.Path,
		ReadOnly: cfg.Database.ReadOnly,
	})
	if err != nil {
		log.Fatal("Failed to open store", zap.Error(err))
	}
	st.SetLogger(log)
	defer func() {
		if err := st.Close(); err != nil {
			log.Error("Failed to close store", zap.Error(err))
		}
	}()

	if height, err := st.LatestHeight(); err == nil {
		log.Info("Resuming from synced height", zap.Uint64("height", height))
	} else if errors.Is(err, store.ErrNotFound) {
		log.Info("Fresh database, starting from contract deployment",
			zap.Uint64("deployed_block", cfg.Contracts.ContractDeployedBlock))
	} else {
		log.Warn("Failed to read synced height", zap.Error(err))
	}

	syncer, err := sync.New(chainClient, chainClient, st, cfg.Contracts, sync.Config{
		BatchSize:     cfg.Sync.BatchSize,
		RPCBatchSize:  cfg.Sync.RPCBatchSize,
		Interval:      cfg.Sync.Interval,
		SenderAddress: cfg.Sync.SenderAddress,
	}, log)
	if err != nil {
		log.Fatal("Failed to create syncer", zap.Error(err))
	}
	// export collectors on the default registry so /metrics sees them
	syncer.UseMetrics(sync.NewMetrics())

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiConfig := api.DefaultConfig()
		apiConfig.Host = cfg.API.Host
		apiConfig.Port = cfg.API.Port
		apiConfig.EnableGraphQL = cfg.API.EnableGraphQL
		apiConfig.EnableWebSocket = cfg.API.EnableWebSocket
		apiConfig.EnableCORS = cfg.API.EnableCORS
		apiConfig.AllowedOrigins = cfg.API.AllowedOrigins

		apiServer, err = api.NewServer(apiConfig, graphql.Deps{
			Store:     st,
			Chain:     chainClient,
			Wallet:    chainClient,
			Contracts: cfg.Contracts,
			Sender:    cfg.Sync.SenderAddress,
			Logger:    log,
		})
		if err != nil {
			log.Fatal("Failed to create API server", zap.Error(err))
		}

		syncer.OnSyncInfo(func(info types.SyncInfo) {
			apiServer.BroadcastSyncInfo(info)
		})

		go func() {
			if err := apiServer.Start(); err != nil {
				log.Error("API server failed", zap.Error(err))
			}
		}()
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- syncer.Run(ctx)
	}()

	select {
	case sig := <-sigChan:
		log.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errChan:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Sync loop stopped with error", zap.Error(err))
		}
	}

	log.Info("Shutting down gracefully...")

	if apiServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := apiServer.Stop(shutdownCtx); err != nil {
			log.Error("Failed to stop API server gracefully", zap.Error(err))
		}
	}

	if height, err := st.LatestHeight(); err == nil {
		log.Info("Final statistics", zap.Uint64("synced_height", height))
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Warn("Failed to read final synced height", zap.Error(err))
	}

	log.Info("Chain sync engine stopped")
}

// loadConfig loads configuration from .env, file, environment and flags
func loadConfig(configFile, rpcEndpoint, network, dbPath, logLevel, logFormat string, enableAPI bool, apiHost string, apiPort int) (*config.Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	// flags override environment, so stage them through it before Load
	if network != "" {
		os.Setenv("CHAINSYNC_NETWORK", network)
	}
	if rpcEndpoint != "" {
		os.Setenv("CHAINSYNC_RPC_ENDPOINT", rpcEndpoint)
	}
	if dbPath != "" {
		os.Setenv("CHAINSYNC_DB_PATH", dbPath)
	}
	if logLevel != "" {
		os.Setenv("CHAINSYNC_LOG_LEVEL", logLevel)
	}
	if logFormat != "" {
		os.Setenv("CHAINSYNC_LOG_FORMAT", logFormat)
	}
	if enableAPI {
		os.Setenv("CHAINSYNC_API_ENABLED", "true")
	}
	if apiHost != "" {
		os.Setenv("CHAINSYNC_API_HOST", apiHost)
	}
	if apiPort > 0 {
		os.Setenv("CHAINSYNC_API_PORT", fmt.Sprintf("%d", apiPort))
	}

	return config.Load(configFile)
}

// loadDotEnv loads environment variables from a .env file if it exists.
func loadDotEnv() error {
	info, err := os.Stat(".env")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat .env: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf(".env exists but is a directory")
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// initLogger initializes the logger based on configuration
func initLogger(level, format string) (*zap.Logger, error) {
	cfg := logger.Config{
		Level:       level,
		Encoding:    format,
		Development: format == "console",
	}
	return logger.NewWithConfig(&cfg)
}
