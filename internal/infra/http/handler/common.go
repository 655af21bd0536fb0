// Package handler implements the REST handlers of the tool studio API.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openctemio/toolstudio/internal/infra/http/middleware"
	"github.com/openctemio/toolstudio/pkg/apierror"
	"github.com/openctemio/toolstudio/pkg/domain/shared"
	"github.com/openctemio/toolstudio/pkg/pagination"
)

// Response is the success envelope of every JSON endpoint.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// ListResponse is the envelope of a paginated listing.
type ListResponse[T any] struct {
	Success    bool            `json:"success"`
	Data       []T             `json:"data"`
	Pagination pagination.Meta `json:"pagination"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Response{Success: true, Data: data})
}

func writeList[E, T any](w http.ResponseWriter, page pagination.Result[E], mapFn func(E) T) {
	data := make([]T, 0, len(page.Data))
	for _, item := range page.Data {
		data = append(data, mapFn(item))
	}
	writeJSON(w, http.StatusOK, ListResponse[T]{Success: true, Data: data, Pagination: page.Meta})
}

func mapSlice[E, T any](items []E, mapFn func(E) T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		out = append(out, mapFn(item))
	}
	return out
}

// writeError writes e with the request id of r.
func writeError(w http.ResponseWriter, r *http.Request, e *apierror.Error) {
	e.WriteJSONWithRequestID(w, middleware.GetRequestID(r.Context()))
}

// decodeJSON decodes the request body into dst and writes the error response
// itself when it fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return true
	}
	switch {
	case middleware.IsBodyTooLarge(err):
		writeError(w, r, apierror.RequestTooLarge())
	case errors.Is(err, io.EOF):
		writeError(w, r, apierror.BadRequest("Request body is required"))
	default:
		writeError(w, r, apierror.BadRequest("Invalid request body"))
	}
	return false
}

// pathID parses a positive integer path parameter, answering 400 otherwise.
func pathID(w http.ResponseWriter, r *http.Request, key string) (shared.ID, bool) {
	id, err := shared.ParseID(chi.URLParam(r, key))
	if err != nil {
		writeError(w, r, apierror.BadRequest("Invalid "+key))
		return 0, false
	}
	return id, true
}

// parseQueryInt parses an integer query value, returning defaultVal when it
// is empty or malformed.
func parseQueryInt(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return val
}

// parseQueryBool returns nil for an empty value. Anything strconv.ParseBool
// rejects is a validation error on field.
func parseQueryBool(s, field string) (*bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	val, err := strconv.ParseBool(s)
	if err != nil {
		return nil, shared.NewValidationError(field, field+" must be true or false")
	}
	return &val, nil
}

// parseQueryID returns nil for an empty value.
func parseQueryID(s, field string) (*shared.ID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := shared.ParseID(s)
	if err != nil {
		return nil, shared.NewValidationError(field, field+" must be a positive integer")
	}
	return &id, nil
}

// parseQueryTime accepts RFC 3339 timestamps and plain dates.
func parseQueryTime(s, field string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, shared.NewValidationError(field, field+" must be an RFC 3339 timestamp or YYYY-MM-DD date")
}

// pageParams reads page and limit. per_page is accepted as an alias of limit.
func pageParams(r *http.Request) (int, int) {
	q := r.URL.Query()
	limit := q.Get("limit")
	if limit == "" {
		limit = q.Get("per_page")
	}
	return parseQueryInt(q.Get("page"), 1), parseQueryInt(limit, pagination.DefaultLimit)
}
