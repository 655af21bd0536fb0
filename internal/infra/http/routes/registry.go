package routes

import (
	"github.com/openctemio/toolstudio/internal/infra/http/handler"
)

// registerToolRoutes registers the tool registry and the per-tool version
// collection.
func registerToolRoutes(router Router, h *handler.ToolHandler, vh *handler.VersionHandler) {
	router.Group("/api/v1/tools", func(r Router) {
		r.GET("/", h.List)
		r.POST("/", h.Create)
		r.GET("/slug/{slug}", h.GetBySlug)
		r.GET("/{id}", h.Get)
		r.PUT("/{id}", h.Update)
		r.DELETE("/{id}", h.Delete)
		r.POST("/{id}/tags", h.AssignTags)

		r.GET("/{toolId}/versions", vh.ListByTool)
		r.POST("/{toolId}/versions", vh.Create)
		r.GET("/{toolId}/versions/active", vh.GetActive)
	})
}

func registerVersionRoutes(router Router, h *handler.VersionHandler) {
	router.Group("/api/v1/versions", func(r Router) {
		r.GET("/{id}", h.Get)
		r.PUT("/{id}", h.Update)
		r.DELETE("/{id}", h.Delete)
		r.POST("/{id}/activate", h.Activate)
	})
}

func registerTagRoutes(router Router, h *handler.TagHandler) {
	router.Group("/api/v1/tags", func(r Router) {
		r.GET("/", h.List)
		r.POST("/", h.Create)
		r.GET("/slug/{slug}", h.GetBySlug)
		r.GET("/{id}", h.Get)
		r.PUT("/{id}", h.Update)
		r.DELETE("/{id}", h.Delete)
		r.GET("/{id}/tools", h.ListTools)
	})
}
