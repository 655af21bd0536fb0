// Package routes registers all HTTP routes for the API.
// Routes are organized by domain:
//   - registry.go: tools, versions and tags
//   - executions.go: the execution ledger
//   - mcp.go: MCP transport and its JSON compatibility routes
//   - misc.go: health, info and metrics
package routes

import (
	"net/http"

	"github.com/openctemio/toolstudio/internal/config"
	infrahttp "github.com/openctemio/toolstudio/internal/infra/http"
	"github.com/openctemio/toolstudio/internal/infra/http/handler"
	"github.com/openctemio/toolstudio/pkg/logger"
)

// Middleware is an alias to the http package's Middleware type.
type Middleware = infrahttp.Middleware

// Router is an alias to the http package's Router interface.
type Router = infrahttp.Router

// Handlers holds all HTTP handlers for route registration.
type Handlers struct {
	Health    *handler.HealthHandler
	Info      *handler.InfoHandler
	Tool      *handler.ToolHandler
	Version   *handler.VersionHandler
	Tag       *handler.TagHandler
	Execution *handler.ExecutionHandler

	// MCP compatibility routes; nil when MCP is disabled.
	MCP *handler.MCPHandler
	// MCPTransport is the streamable HTTP MCP endpoint; nil when MCP is disabled.
	MCPTransport http.Handler
	// Metrics exporter; nil disables /metrics.
	Metrics http.Handler
}

// Register registers all application routes.
func Register(router Router, h Handlers, cfg *config.Config, log *logger.Logger) {
	registerHealthRoutes(router, h.Health, h.Metrics)

	if h.Info != nil {
		router.GET("/api/v1", h.Info.Info)
	}

	registerToolRoutes(router, h.Tool, h.Version)
	registerVersionRoutes(router, h.Version)
	registerTagRoutes(router, h.Tag)
	registerExecutionRoutes(router, h.Execution)

	if cfg.MCP.Enabled {
		registerMCPRoutes(router, h.MCP, h.MCPTransport, cfg.MCP.Path)
		log.Info("mcp routes registered", "path", cfg.MCP.Path)
	}
}
