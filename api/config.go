package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/openpredict/chainsync/internal/constants"
)

// Config holds API server configuration
type Config struct {
	// Host is the server host (default: localhost)
	Host string

	// Port is the server port (default: 8989)
	Port int

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes
	WriteTimeout time.Duration

	// IdleTimeout is the maximum duration to wait for the next request
	IdleTimeout time.Duration

	// ShutdownTimeout is the graceful shutdown timeout
	ShutdownTimeout time.Duration

	// EnableCORS enables CORS middleware
	EnableCORS bool

	// AllowedOrigins is a list of allowed CORS origins
	AllowedOrigins []string

	// EnableGraphQL enables the GraphQL API
	EnableGraphQL bool

	// EnableWebSocket enables WebSocket subscriptions
	EnableWebSocket bool

	// GraphQLPath is the GraphQL endpoint path (default: /graphql)
	GraphQLPath string

	// WebSocketPath is the WebSocket endpoint path (default: /ws)
	WebSocketPath string
}

// DefaultConfig returns a default API server configuration
func DefaultConfig() *Config {
	return &Config{
		Host:            constants.DefaultAPIHost,
		Port:            constants.DefaultAPIPort,
		ReadTimeout:     constants.DefaultReadTimeout,
		WriteTimeout:    constants.DefaultWriteTimeout,
		IdleTimeout:     constants.DefaultIdleTimeout,
		ShutdownTimeout: constants.DefaultShutdownTimeout,
		EnableCORS:      true,
		AllowedOrigins:  []string{"*"},
		EnableGraphQL:   true,
		EnableWebSocket: true,
		GraphQLPath:     constants.DefaultGraphQLPath,
		WebSocketPath:   constants.DefaultWebSocketPath,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.ReadTimeout <= 0 {
		return errors.New("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return errors.New("write timeout must be positive")
	}
	if c.IdleTimeout <= 0 {
		return errors.New("idle timeout must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	return nil
}

// Address returns the server address in host:port format
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
