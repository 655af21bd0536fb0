package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// PathParam returns a URL path parameter. Handlers use it instead of calling
// chi directly so the router stays swappable.
func PathParam(r *http.Request, key string) string {
	if val := chi.URLParam(r, key); val != "" {
		return val
	}
	return r.PathValue(key)
}

// QueryParam returns a URL query parameter.
func QueryParam(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}
