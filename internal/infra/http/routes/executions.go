package routes

import (
	"github.com/openctemio/toolstudio/internal/infra/http/handler"
)

// registerExecutionRoutes registers the execution ledger. Static segments
// (stats, request) win over {id} in chi.
func registerExecutionRoutes(router Router, h *handler.ExecutionHandler) {
	router.Group("/api/v1/executions", func(r Router) {
		r.GET("/", h.List)
		r.POST("/", h.Create)
		r.GET("/stats", h.Stats)
		r.GET("/request/{requestId}", h.GetByRequestID)
		r.GET("/{id}", h.Get)
		r.PUT("/{id}", h.Update)
	})
}
