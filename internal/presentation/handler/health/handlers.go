package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hilthontt/tourchat/internal/infrastructure/json"
)

const checkTimeout = 2 * time.Second

// Check probes one dependency. A nil error means ready.
type Check func(ctx context.Context) error

type Handler struct {
	startTime time.Time
	healthy   atomic.Bool
	checks    map[string]Check
}

func NewHandler(checks map[string]Check) *Handler {
	h := &Handler{
		startTime: time.Now(),
		checks:    checks,
	}
	h.healthy.Store(true)
	return h
}

// MarkUnhealthy makes every probe fail, so load balancers drain the instance before it stops.
func (h *Handler) MarkUnhealthy() {
	h.healthy.Store(false)
}

// GetHealth is the liveness probe.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	if !h.healthy.Load() {
		_ = json.Write(w, http.StatusServiceUnavailable, h.response("unhealthy", nil))
		return
	}
	_ = json.Write(w, http.StatusOK, h.response("ok", nil))
}

// GetReady also probes the configured dependencies.
func (h *Handler) GetReady(w http.ResponseWriter, r *http.Request) {
	if !h.healthy.Load() {
		_ = json.Write(w, http.StatusServiceUnavailable, h.response("unhealthy", nil))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	status, code := "ok", http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			status, code = "unhealthy", http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	_ = json.Write(w, code, h.response(status, results))
}

func (h *Handler) response(status string, checks map[string]string) healthResponse {
	return healthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    checks,
	}
}
