package main

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openctemio/toolstudio/internal/config"
	"github.com/openctemio/toolstudio/internal/infra/http/handler"
	"github.com/openctemio/toolstudio/internal/infra/http/routes"
	"github.com/openctemio/toolstudio/internal/infra/mcp"
	"github.com/openctemio/toolstudio/internal/infra/postgres"
	"github.com/openctemio/toolstudio/internal/infra/redis"
	"github.com/openctemio/toolstudio/pkg/logger"
	"github.com/openctemio/toolstudio/pkg/validator"
)

// HandlerDeps contains dependencies needed to create handlers.
type HandlerDeps struct {
	Config      *config.Config
	Log         *logger.Logger
	Validator   *validator.Validator
	DB          *postgres.DB
	RedisClient *redis.Client // nil when Redis is disabled
	Services    *Services
	MCP         *mcp.Server // nil when MCP is disabled
}

// NewHandlers creates all HTTP handlers.
func NewHandlers(deps *HandlerDeps) routes.Handlers {
	cfg := deps.Config
	log := deps.Log
	v := deps.Validator
	svc := deps.Services

	healthOpts := []handler.HealthHandlerOption{handler.WithDatabase(deps.DB)}
	if deps.RedisClient != nil {
		healthOpts = append(healthOpts, handler.WithRedis(deps.RedisClient))
	}

	mcpPath := ""
	if cfg.MCP.Enabled {
		mcpPath = cfg.MCP.Path
	}

	h := routes.Handlers{
		Health:    handler.NewHealthHandler(healthOpts...),
		Info:      handler.NewInfoHandler(cfg.App.Name, cfg.App.Version, mcpPath),
		Tool:      handler.NewToolHandler(svc.Tool, v, log),
		Version:   handler.NewVersionHandler(svc.Version, v, log),
		Tag:       handler.NewTagHandler(svc.Tag, v, log),
		Execution: handler.NewExecutionHandler(svc.Execution, v, log),
		Metrics:   promhttp.Handler(),
	}

	if cfg.MCP.Enabled {
		h.MCP = handler.NewMCPHandler(svc.Catalog, v, log)
		if deps.MCP != nil {
			h.MCPTransport = deps.MCP.Handler()
		}
	}
	return h
}
