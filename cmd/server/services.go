package main

import (
	"fmt"

	"github.com/openctemio/toolstudio/internal/app"
	"github.com/openctemio/toolstudio/internal/config"
	"github.com/openctemio/toolstudio/internal/infra/redis"
	"github.com/openctemio/toolstudio/pkg/domain/catalog"
	"github.com/openctemio/toolstudio/pkg/domain/tool"
	"github.com/openctemio/toolstudio/pkg/logger"
	"github.com/openctemio/toolstudio/pkg/schema"
)

// Services holds the application services.
type Services struct {
	Tool      *app.ToolService
	Version   *app.VersionService
	Tag       *app.TagService
	Execution *app.ExecutionService
	Catalog   *app.CatalogService
}

// ServiceDeps contains dependencies needed to create services.
type ServiceDeps struct {
	Config      *config.Config
	Log         *logger.Logger
	Repos       *Repositories
	Categories  tool.Categories
	RedisClient *redis.Client // nil when Redis is disabled
}

// NewServices wires the services and, when Redis is available, their caches.
func NewServices(deps *ServiceDeps) (*Services, error) {
	cfg := deps.Config
	log := deps.Log
	repos := deps.Repos

	// One registry so versions and executions share compiled schemas.
	schemas := schema.NewRegistry()

	s := &Services{}
	s.Tool = app.NewToolService(repos.Tool, repos.Version, repos.Tag, deps.Categories, log)
	s.Version = app.NewVersionService(repos.Version, repos.Tool, schemas, cfg.Catalog.VersionDefaultActive, log)
	s.Tag = app.NewTagService(repos.Tag, repos.Tool, log)
	s.Execution = app.NewExecutionService(repos.Execution, repos.Version, schemas, app.ExecutionServiceConfig{
		ValidateInput:  cfg.Execution.ValidateInput,
		StaleAfter:     cfg.Execution.StaleAfter,
		StaleBatchSize: cfg.Execution.StaleBatchSize,
	}, log)
	s.Catalog = app.NewCatalogService(repos.Catalog, s.Execution, log)

	s.Tool.SetCatalogInvalidator(s.Catalog)
	s.Version.SetCatalogInvalidator(s.Catalog)

	if deps.RedisClient != nil {
		if err := s.initCaches(deps.RedisClient, cfg, log); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Services) initCaches(client *redis.Client, cfg *config.Config, log *logger.Logger) error {
	toolCache, err := redis.NewCache[tool.Tool](client, "toolstudio:tool", cfg.Redis.CacheTTL)
	if err != nil {
		return fmt.Errorf("failed to create tool cache: %w", err)
	}
	catalogCache, err := redis.NewCache[[]catalog.Entry](client, "toolstudio:catalog", cfg.Redis.CacheTTL)
	if err != nil {
		return fmt.Errorf("failed to create catalog cache: %w", err)
	}

	s.Tool.SetCache(toolCache)
	s.Tag.SetToolCache(toolCache)
	s.Catalog.SetCache(catalogCache)
	log.Info("redis caches enabled", "ttl", cfg.Redis.CacheTTL)
	return nil
}
