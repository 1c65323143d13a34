package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Younus004/wisdom/common/httputil"
	"github.com/Younus004/wisdom/common/metrics"

	"github.com/go-chi/chi/v5"
)

// Pinger is a dependency the service cannot serve requests without.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	deps    map[string]Pinger
	metrics *metrics.HealthMetrics
	logger  *slog.Logger
	timeout time.Duration
}

// NewHandler serves liveness and readiness. m may be nil.
func NewHandler(deps map[string]Pinger, m *metrics.HealthMetrics, logger *slog.Logger) *Handler {
	return &Handler{deps: deps, metrics: m, logger: logger, timeout: 2 * time.Second}
}

// Dependencies lists the checked dependency names.
func (h *Handler) Dependencies() []string {
	names := make([]string, 0, len(h.deps))
	for name := range h.deps {
		names = append(names, name)
	}
	return names
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/health", h.Health)
	router.Get("/ready", h.Ready)
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.RespondWithJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready pings every dependency and reports 503 when any of them fails.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := HealthResponse{Status: "ready", Checks: make(map[string]string, len(h.deps))}
	status := http.StatusOK
	for name, dep := range h.deps {
		start := time.Now()
		err := dep.Ping(ctx)
		h.metrics.RecordCheck(ctx, name, time.Since(start), err)
		if err != nil {
			h.logger.WarnContext(ctx, "readiness check failed", "dependency", name, "error", err)
			resp.Checks[name] = err.Error()
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	httputil.RespondWithJSON(w, status, resp)
}
