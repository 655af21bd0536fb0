package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openctemio/toolstudio/internal/config"
	"github.com/openctemio/toolstudio/internal/infra/http"
	"github.com/openctemio/toolstudio/internal/infra/http/routes"
	"github.com/openctemio/toolstudio/internal/infra/mcp"
	"github.com/openctemio/toolstudio/internal/infra/postgres"
	"github.com/openctemio/toolstudio/internal/infra/redis"
	"github.com/openctemio/toolstudio/internal/infra/telemetry"
	"github.com/openctemio/toolstudio/pkg/domain/tool"
	"github.com/openctemio/toolstudio/pkg/logger"
	"github.com/openctemio/toolstudio/pkg/migrations"
	"github.com/openctemio/toolstudio/pkg/validator"
)

// Command line flags.
var (
	showRoutes  = flag.Bool("routes", false, "Print all registered routes and exit")
	routeFormat = flag.String("route-format", "table", "Route output format: table, json, csv, simple")
	routeMethod = flag.String("route-method", "", "Filter routes by HTTP method")
	routePath   = flag.String("route-path", "", "Filter routes containing this path")
	routeSort   = flag.String("route-sort", "path", "Sort routes by: path, method, handler")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ==========================================================================
	// Configuration & Logger
	// ==========================================================================
	cfg, err := config.Load()
	if err != nil {
		log := logger.NewProduction()
		log.Error("failed to load configuration", "error", err)
		return 1
	}

	log := initLogger(cfg)
	defer closeWithLog(log, "logger", log)
	log.Info("starting application", "app", cfg.App.Name, "env", cfg.App.Env, "version", cfg.App.Version)

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Tracing, cfg.App, log)
	if err != nil {
		log.Error("failed to initialize tracing", "error", err)
		return 1
	}

	// ==========================================================================
	// Infrastructure
	// ==========================================================================
	db, err := postgres.New(&cfg.Database)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		return 1
	}
	defer closeWithLog(db, "database", log)
	log.Info("database connected")

	if cfg.Database.AutoMigrate {
		applied, err := migrations.NewRunner(db.DB, migrations.FS(), os.Stdout).Up(ctx)
		if err != nil {
			log.Error("failed to apply migrations", "error", err)
			return 1
		}
		log.Info("migrations applied", "count", applied)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.New(&cfg.Redis, log)
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			return 1
		}
		defer closeWithLog(redisClient, "redis", log)
		stopPoolStats := redis.StartPoolStatsCollector(ctx, redisClient, 0)
		defer stopPoolStats()
		log.Info("redis connected")
	}

	// ==========================================================================
	// Repositories & Services
	// ==========================================================================
	repos := NewRepositories(db)

	categories := tool.NewCategories(cfg.Catalog.Categories)
	services, err := NewServices(&ServiceDeps{
		Config:      cfg,
		Log:         log,
		Repos:       repos,
		Categories:  categories,
		RedisClient: redisClient,
	})
	if err != nil {
		log.Error("failed to initialize services", "error", err)
		return 1
	}
	log.Info("services initialized")

	// ==========================================================================
	// Handlers
	// ==========================================================================
	var mcpServer *mcp.Server
	if cfg.MCP.Enabled {
		mcpServer = mcp.NewServer(services.Catalog, mcp.Info{Name: cfg.App.Name, Version: cfg.App.Version}, log)
	}

	v := validator.New(validator.WithCategories(categories))
	handlers := NewHandlers(&HandlerDeps{
		Config:      cfg,
		Log:         log,
		Validator:   v,
		DB:          db,
		RedisClient: redisClient,
		Services:    services,
		MCP:         mcpServer,
	})

	// ==========================================================================
	// HTTP Server
	// ==========================================================================
	server, err := http.NewServer(cfg, log)
	if err != nil {
		log.Error("failed to initialize http server", "error", err)
		return 1
	}
	routes.Register(server.Router(), handlers, cfg, log)

	// Handle --routes flag
	if *showRoutes {
		stats := http.CollectRoutes(server.Router())
		filters := http.RouteFilters{
			Method: *routeMethod,
			Path:   *routePath,
			SortBy: *routeSort,
		}
		if err := http.PrintRoutes(os.Stdout, stats, *routeFormat, filters); err != nil {
			log.Error("failed to print routes", "error", err)
			return 1
		}
		return 0
	}

	// ==========================================================================
	// Workers
	// ==========================================================================
	workers, err := NewWorkers(&WorkerDeps{
		Config:   cfg,
		Log:      log,
		Services: services,
	})
	if err != nil {
		log.Error("failed to initialize workers", "error", err)
		return 1
	}
	defer workers.Close(log)

	// ==========================================================================
	// Start Server
	// ==========================================================================
	g, gctx := errgroup.WithContext(ctx)
	workers.Run(gctx, g, log)

	g.Go(func() error {
		return server.Start()
	})
	log.Info("application started", "http_addr", cfg.Server.Addr())

	// ==========================================================================
	// Graceful Shutdown
	// ==========================================================================
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		if tErr := shutdownTracing(shutdownCtx); tErr != nil {
			log.Warn("failed to flush traces", "error", tErr)
		}
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server error", "error", err)
		return 1
	}

	log.Info("application stopped")
	return 0
}

// =============================================================================
// Helper Functions
// =============================================================================

func initLogger(cfg *config.Config) *logger.Logger {
	lc := logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
		Dir:    cfg.Log.Dir,
		Async:  logger.AsyncConfig{Enabled: cfg.Log.Dir != ""},
	}
	if cfg.IsProduction() {
		//nolint:gosec // G115: validated non-negative in config.Validate()
		lc.Sampling = logger.SamplingConfig{
			Enabled:   cfg.Log.SamplingEnabled,
			Tick:      time.Second,
			Threshold: uint64(cfg.Log.SamplingThreshold),
			Rate:      cfg.Log.SamplingRate,
			ErrorRate: cfg.Log.ErrorSamplingRate,
		}
	}
	log := logger.New(lc)
	log.SetDefault()
	return log
}

type closer interface {
	Close() error
}

func closeWithLog(c closer, name string, log *logger.Logger) {
	if err := c.Close(); err != nil {
		log.Error("failed to close "+name, "error", err)
	}
}
