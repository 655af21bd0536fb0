package routes

import (
	"net/http"

	"github.com/openctemio/toolstudio/internal/infra/http/handler"
)

// registerMCPRoutes mounts the streamable HTTP transport at path and the JSON
// compatibility routes under /api/mcp.
func registerMCPRoutes(router Router, h *handler.MCPHandler, transport http.Handler, path string) {
	if transport != nil {
		if path == "" {
			path = "/mcp"
		}
		router.Mount(path, transport)
	}
	if h == nil {
		return
	}
	router.Group("/api/mcp", func(r Router) {
		r.POST("/tools/list", h.ListTools)
		r.POST("/tools/execute", h.ExecuteTool)
	})
}
