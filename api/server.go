// Package api serves the engine's query and submission surface over HTTP:
// GraphQL, websocket push, health, and prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/openpredict/chainsync/api/graphql"
	"github.com/openpredict/chainsync/api/websocket"
	"github.com/openpredict/chainsync/store"
	"github.com/openpredict/chainsync/types"
)

// Server represents the API server
type Server struct {
	config   *Config
	logger   *zap.Logger
	deps     graphql.Deps
	router   *chi.Mux
	server   *http.Server
	wsServer *websocket.Server
}

// NewServer creates a new API server
func NewServer(config *Config, deps graphql.Deps) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	s := &Server{
		config: config,
		logger: deps.Logger,
		deps:   deps,
		router: chi.NewRouter(),
	}

	s.setupMiddleware()
	if err := s.setupRoutes(); err != nil {
		return nil, err
	}

	s.server = &http.Server{
		Addr:         config.Address(),
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return s, nil
}

// setupMiddleware configures the middleware stack
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)

	// Custom CORS middleware that adds headers to ALL responses
	if s.config.EnableCORS {
		s.router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				origin := r.Header.Get("Origin")
				if origin == "" {
					origin = "*"
				}

				allowed := false
				for _, allowedOrigin := range s.config.AllowedOrigins {
					if allowedOrigin == "*" || allowedOrigin == origin {
						allowed = true
						break
					}
				}

				if allowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, Upgrade, Connection")
					w.Header().Set("Access-Control-Allow-Credentials", "true")
					w.Header().Set("Access-Control-Max-Age", "300")
				}

				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusOK)
					return
				}

				next.ServeHTTP(w, r)
			})
		})
	}
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() error {
	if s.config.EnableWebSocket {
		s.logger.Info("websocket API enabled", zap.String("path", s.config.WebSocketPath))
		s.wsServer = websocket.NewServer(s.logger)
		s.router.Get(s.config.WebSocketPath, s.wsServer.ServeHTTP)
	}

	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	if s.config.EnableGraphQL {
		s.logger.Info("graphql API enabled", zap.String("path", s.config.GraphQLPath))
		handler, err := graphql.NewHandler(s.deps)
		if err != nil {
			return fmt.Errorf("failed to create graphql handler: %w", err)
		}
		s.router.Handle(s.config.GraphQLPath, handler)
	}

	return nil
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string          `json:"status"`
	Timestamp string          `json:"timestamp"`
	SyncInfo  *types.SyncInfo `json:"syncInfo,omitempty"`
	Clients   int             `json:"wsClients"`
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().Format(time.RFC3339),
	}

	info, err := s.deps.Store.GetSyncInfo()
	if err == nil {
		response.SyncInfo = &info
	} else if !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("failed to read sync info for health check", zap.Error(err))
	}
	if s.wsServer != nil {
		response.Clients = s.wsServer.Hub().ClientCount()
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// BroadcastSyncInfo pushes a sync status snapshot to websocket subscribers
func (s *Server) BroadcastSyncInfo(info types.SyncInfo) {
	if s.wsServer != nil {
		s.wsServer.Hub().BroadcastSyncInfo(info)
	}
}

// BroadcastMarkets pushes recomputed market rows to websocket subscribers
func (s *Server) BroadcastMarkets(markets []*types.Market) {
	if s.wsServer != nil {
		s.wsServer.Hub().BroadcastMarkets(markets)
	}
}

// Start starts the API server
func (s *Server) Start() error {
	s.logger.Info("starting API server",
		zap.String("address", s.config.Address()),
		zap.Bool("graphql", s.config.EnableGraphQL),
		zap.Bool("websocket", s.config.EnableWebSocket),
	)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop gracefully stops the API server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping API server")

	if s.wsServer != nil {
		s.wsServer.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("API server stopped gracefully")
	return nil
}

// Router returns the underlying chi router (for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}
