package middleware

import (
	"errors"
	"net/http"

	"github.com/openctemio/toolstudio/pkg/apierror"
)

// DefaultMaxBodySize is used when no limit is configured.
const DefaultMaxBodySize = 1 << 20

// BodyLimit caps request bodies at maxBytes. Requests that announce a larger
// Content-Length are rejected before the handler runs.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodySize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > maxBytes {
				apierror.RequestTooLarge().WriteJSONWithRequestID(w, GetRequestID(r.Context()))
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// IsBodyTooLarge reports whether err came from a body cut off by BodyLimit.
func IsBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
