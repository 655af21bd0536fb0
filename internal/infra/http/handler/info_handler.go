package handler

import "net/http"

// InfoResponse describes the API surface at GET /api/v1.
type InfoResponse struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

// InfoHandler serves the API index.
type InfoHandler struct {
	resp InfoResponse
}

// NewInfoHandler builds the index. mcpPath is omitted from the endpoint list
// when empty.
func NewInfoHandler(name, version, mcpPath string) *InfoHandler {
	endpoints := map[string]string{
		"tools":      "/api/v1/tools",
		"versions":   "/api/v1/versions",
		"tags":       "/api/v1/tags",
		"executions": "/api/v1/executions",
		"health":     "/api/health",
	}
	if mcpPath != "" {
		endpoints["mcp"] = mcpPath
	}
	return &InfoHandler{resp: InfoResponse{
		Success:   true,
		Message:   name + " API v1",
		Version:   version,
		Endpoints: endpoints,
	}}
}

// Info handles GET /api/v1
func (h *InfoHandler) Info(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.resp)
}
