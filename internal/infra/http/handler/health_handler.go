package handler

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openctemio/toolstudio/pkg/apierror"
)

// Pinger is a dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// readyTimeout bounds one readiness probe.
const readyTimeout = 5 * time.Second

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	checks map[string]Pinger
	now    func() time.Time
}

// HealthHandlerOption configures the health handler.
type HealthHandlerOption func(*HealthHandler)

// WithDatabase adds the database to the readiness checks.
func WithDatabase(db Pinger) HealthHandlerOption {
	return WithCheck("database", db)
}

// WithRedis adds Redis to the readiness checks.
func WithRedis(redis Pinger) HealthHandlerOption {
	return WithCheck("redis", redis)
}

// WithCheck adds a named readiness check. A nil pinger is ignored.
func WithCheck(name string, p Pinger) HealthHandlerOption {
	return func(h *HealthHandler) {
		if p != nil {
			h.checks[name] = p
		}
	}
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(opts ...HealthHandlerOption) *HealthHandler {
	h := &HealthHandler{
		checks: make(map[string]Pinger),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Success   bool      `json:"success"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Health handles /health and /api/health (liveness probe).
// @Summary      Health check
// @Description  Returns 200 while the process is serving
// @Tags         Health
// @Produce      json
// @Success      200  {object}  HealthResponse
// @Router       /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Success:   true,
		Status:    "healthy",
		Message:   "API is running",
		Timestamp: h.now().UTC(),
	})
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Success   bool                   `json:"success"`
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Error     *apierror.Error        `json:"error,omitempty"`
}

// CheckResult represents a single dependency check.
type CheckResult struct {
	Status   string `json:"status"`
	Duration string `json:"duration,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Ready handles /ready (readiness probe). Every check runs concurrently and
// any failure turns the answer into a 503.
// @Summary      Readiness check
// @Description  Pings the database and Redis. Returns 503 if any is unhealthy.
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse
// @Router       /ready [get]
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	var (
		mu     sync.Mutex
		checks = make(map[string]CheckResult, len(h.checks))
	)
	// Check failures are recorded in the result map, never returned, so one
	// slow dependency does not cancel the others.
	var g errgroup.Group
	for name, p := range h.checks {
		g.Go(func() error {
			result := h.check(ctx, p)
			mu.Lock()
			checks[name] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	resp := ReadyResponse{
		Success:   true,
		Status:    "ready",
		Timestamp: h.now().UTC(),
		Checks:    checks,
	}
	var failed []string
	for name, c := range checks {
		if c.Status != "ok" {
			failed = append(failed, name)
		}
	}
	if len(failed) == 0 {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	slices.Sort(failed)
	resp.Success = false
	resp.Status = "not_ready"
	resp.Error = apierror.ServiceUnavailable("Dependencies unavailable").WithDetails(failed)
	writeJSON(w, resp.Error.Status, resp)
}

func (h *HealthHandler) check(ctx context.Context, p Pinger) CheckResult {
	start := time.Now()
	err := p.Ping(ctx)
	result := CheckResult{Status: "ok", Duration: time.Since(start).Round(time.Microsecond).String()}
	if err != nil {
		result.Status = "error"
		result.Error = err.Error()
	}
	return result
}
