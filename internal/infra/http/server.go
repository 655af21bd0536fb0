package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/openctemio/toolstudio/internal/config"
	"github.com/openctemio/toolstudio/internal/infra/http/middleware"
	"github.com/openctemio/toolstudio/pkg/apierror"
	"github.com/openctemio/toolstudio/pkg/logger"
)

// Server is the API's HTTP server.
type Server struct {
	httpServer   *http.Server
	router       Router
	config       *config.Config
	logger       *logger.Logger
	cleanupFuncs []func()
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithRouter replaces the default chi router.
func WithRouter(r Router) ServerOption {
	return func(s *Server) {
		s.router = r
	}
}

// NewServer builds the server and installs the global middleware chain.
func NewServer(cfg *config.Config, log *logger.Logger, opts ...ServerOption) (*Server, error) {
	s := &Server{
		config: cfg,
		logger: log.With("component", "http"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.router == nil {
		s.router = NewChiRouter()
	}

	rateLimitMw, rateLimitStop := middleware.RateLimitWithStop(&cfg.RateLimit, log)
	s.cleanupFuncs = append(s.cleanupFuncs, rateLimitStop)

	loggerCfg := middleware.DefaultLoggerConfig()
	if !cfg.Log.SkipHealthLogs {
		loggerCfg.SkipPaths = []string{"/metrics"}
	}
	if cfg.Log.SlowRequestSeconds > 0 {
		loggerCfg.SlowRequestThreshold = time.Duration(cfg.Log.SlowRequestSeconds) * time.Second
	}

	mcpPath := cfg.MCP.Path
	if mcpPath == "" {
		mcpPath = "/mcp"
	}

	chain := []Middleware{
		middleware.RecoveryWithConfig(log, cfg.IsProduction()),
		middleware.RequestID(),
		middleware.SecurityHeadersWithConfig(middleware.SecurityHeadersConfig{
			HSTSEnabled:           cfg.IsProduction(),
			HSTSIncludeSubdomains: true,
		}),
		middleware.CORS(&cfg.CORS),
		middleware.BodyLimit(cfg.Server.MaxBodySize),
		middleware.Decompress(middleware.DefaultDecompressConfig()),
		rateLimitMw,
	}
	if cfg.Server.Compression {
		compress, err := middleware.Compress()
		if err != nil {
			return nil, err
		}
		chain = append(chain, compress)
	}
	chain = append(chain,
		middleware.Timeout(cfg.Server.RequestTimeout, mcpPath),
		middleware.Metrics(),
		middleware.LoggerWithConfig(log, loggerCfg),
	)
	s.router.Use(chain...)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apierror.New(http.StatusNotFound, apierror.CodeNotFound, "Route not found").
			WriteJSONWithRequestID(w, middleware.GetRequestID(r.Context()))
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apierror.New(http.StatusMethodNotAllowed, apierror.CodeBadRequest, "Method not allowed").
			WriteJSONWithRequestID(w, middleware.GetRequestID(r.Context()))
	})

	s.httpServer = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           s.router.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       time.Minute,
	}
	return s, nil
}

// Router returns the router for registering handlers.
func (s *Server) Router() Router {
	return s.router
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting HTTP server", "addr", ln.Addr().String())
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	for _, cleanup := range s.cleanupFuncs {
		cleanup()
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}
