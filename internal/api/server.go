// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/portfolio-importer/internal/logging"
	"github.com/portfolio-importer/internal/models"
	"github.com/portfolio-importer/internal/service"
	"github.com/portfolio-importer/internal/storage"
)

// Service interfaces for dependency injection and testing

// ImportServiceInterface defines the interface for import operations
type ImportServiceInterface interface {
	Import(ctx context.Context, req *service.ImportRequest) (*service.ImportResult, error)
	Monitor() *service.ImportMonitor
}

// AccountServiceInterface defines the interface for platform account operations
type AccountServiceInterface interface {
	CreateAccount(ctx context.Context, input *service.CreateAccountInput) (*models.PlatformAccount, error)
	ListAccounts(ctx context.Context, userID string) ([]*models.PlatformAccount, error)
	ListHoldings(ctx context.Context, userID, platformAccountID string) ([]*models.Holding, error)
	ListImports(ctx context.Context, userID, platformAccountID string, limit int) ([]*models.ImportHistoryRecord, error)
	ListTransactions(ctx context.Context, userID, platformAccountID string, filters *storage.TransactionFilters) ([]*models.Transaction, error)
}

// Pinger is a dependency reported by the health endpoint
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP API server.
type Server struct {
	router         *mux.Router
	handler        http.Handler
	httpServer     *http.Server
	importService  ImportServiceInterface
	accountService AccountServiceInterface
	checks         map[string]Pinger
	uploadLimiter  *RateLimiter
	config         *ServerConfig
	logger         *logging.Logger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host             string
	Port             string
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	ShutdownTimeout  time.Duration
	AllowedOrigins   []string
	MaxUploadBytes   int64
	UploadsPerMinute int // per user and platform account
	UploadBurst      int
}

// NewServer creates a new API server instance. checks maps a component name
// to the dependency pinged by /health.
func NewServer(
	config *ServerConfig,
	importService ImportServiceInterface,
	accountService AccountServiceInterface,
	checks map[string]Pinger,
	logger *logging.Logger,
) *Server {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	s := &Server{
		router:         mux.NewRouter(),
		importService:  importService,
		accountService: accountService,
		checks:         checks,
		config:         config,
		logger:         logger,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	s.uploadLimiter = NewRateLimiter(s.config.UploadsPerMinute, s.config.UploadBurst)

	s.setupRoutes()

	// Middleware wraps the router rather than going through router.Use, so it
	// also runs for OPTIONS preflights and other requests mux does not match.
	// Order matters: outermost first.
	var handler http.Handler = s.router
	handler = CompressionMiddleware(handler)
	handler = CORSMiddleware(s.config.AllowedOrigins)(handler)
	handler = RecoveryMiddleware(handler)
	handler = LoggingMiddleware(s.logger)(handler)
	s.handler = handler

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Platform accounts
	api.HandleFunc("/accounts", s.handleCreateAccount).Methods("POST")
	api.HandleFunc("/accounts", s.handleListAccounts).Methods("GET")
	api.HandleFunc("/accounts/{accountId}/holdings", s.handleListHoldings).Methods("GET")
	api.HandleFunc("/accounts/{accountId}/transactions", s.handleListTransactions).Methods("GET")

	// Imports
	api.Handle("/accounts/{accountId}/imports",
		UploadRateLimitMiddleware(s.uploadLimiter)(http.HandlerFunc(s.handleUpload))).Methods("POST")
	api.HandleFunc("/accounts/{accountId}/imports", s.handleListImports).Methods("GET")
	api.HandleFunc("/stats/imports", s.handleImportStats).Methods("GET")
}

// handleHealth pings every registered dependency
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	components := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check.Ping(ctx); err != nil {
			components[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}
	respondJSON(w, status, map[string]interface{}{
		"status":     state,
		"service":    "portfolio-importer",
		"components": components,
	})
}

// Handler returns the routed handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Infof("Starting API server on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}
