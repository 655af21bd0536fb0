package routes

import (
	"net/http"

	"github.com/openctemio/toolstudio/internal/infra/http/handler"
)

// registerHealthRoutes registers the probes and the metrics exporter.
// /api/health is kept for clients of the older API layout.
func registerHealthRoutes(router Router, h *handler.HealthHandler, metrics http.Handler) {
	router.GET("/health", h.Health)
	router.GET("/api/health", h.Health)
	router.GET("/ready", h.Ready)
	if metrics != nil {
		router.GET("/metrics", metrics.ServeHTTP)
	}
}
