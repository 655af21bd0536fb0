package http

import (
	"net/http"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Router is the routing surface the route registrations are written against.
// Route-level middleware runs in the order given, the first one outermost.
type Router interface {
	GET(path string, handler http.HandlerFunc, middlewares ...Middleware)
	POST(path string, handler http.HandlerFunc, middlewares ...Middleware)
	PUT(path string, handler http.HandlerFunc, middlewares ...Middleware)
	PATCH(path string, handler http.HandlerFunc, middlewares ...Middleware)
	DELETE(path string, handler http.HandlerFunc, middlewares ...Middleware)

	// Mount attaches a sub-handler (MCP transport, metrics exporter) that
	// serves every method under pattern.
	Mount(pattern string, handler http.Handler)

	// Group registers routes under prefix with shared middleware.
	Group(prefix string, fn func(Router), middlewares ...Middleware)

	Use(middlewares ...Middleware)
	With(middlewares ...Middleware) Router

	// NotFound and MethodNotAllowed replace the default plain-text responses.
	NotFound(handler http.HandlerFunc)
	MethodNotAllowed(handler http.HandlerFunc)

	Handler() http.Handler

	// Walk visits every registered route.
	Walk(fn func(method, path string, handler http.Handler) error) error
}

// Chain applies middlewares to a handler, the first one outermost.
func Chain(handler http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}
