package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/kiranshivaraju/cabinprep/internal/api/response"
	"github.com/kiranshivaraju/cabinprep/internal/cache"
)

const probeTimeout = 5 * time.Second

// HealthProber checks the analysis backend.
type HealthProber interface {
	HealthCheck(ctx context.Context) error
}

// Pinger checks a local dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BackendProbe is the last backend health check result.
type BackendProbe struct {
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Health reports backend, store and cache health. The backend result is
// cached for ttl so screens can poll it freely.
type Health struct {
	backend HealthProber
	store   Pinger
	cache   cache.Cache
	ttl     time.Duration
	now     func() time.Time
}

// NewHealth creates the health handler. store and c may be nil.
func NewHealth(backend HealthProber, store Pinger, c cache.Cache, ttl time.Duration) *Health {
	return &Health{backend: backend, store: store, cache: c, ttl: ttl, now: time.Now}
}

// ServeHTTP handles GET /api/v1/health.
func (h *Health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	probe := h.Probe(r.Context())

	checks := map[string]string{
		"backend": "ok",
		"store":   "ok",
		"cache":   "ok",
	}
	if !probe.Healthy {
		checks["backend"] = "degraded"
	}
	if h.store == nil {
		checks["store"] = "disabled"
	} else if err := h.store.Ping(r.Context()); err != nil {
		checks["store"] = "degraded"
	}
	if h.cache == nil {
		checks["cache"] = "disabled"
	} else if err := h.cache.Ping(r.Context()); err != nil {
		checks["cache"] = "degraded"
	}

	body := map[string]any{
		"services":           checks,
		"backend_checked_at": probe.CheckedAt.UTC().Format(time.RFC3339),
	}
	for _, v := range checks {
		if v == "degraded" {
			if probe.Error != "" {
				body["backend_error"] = probe.Error
			}
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", body)
			return
		}
	}

	body["status"] = "ok"
	response.JSON(w, body)
}

// Probe returns the cached backend result, checking the backend when the
// cache is empty or stale.
func (h *Health) Probe(ctx context.Context) BackendProbe {
	if h.cache != nil && h.ttl > 0 {
		if raw, ok, err := h.cache.Get(ctx, cache.HealthProbeKey()); err == nil && ok {
			var p BackendProbe
			if json.Unmarshal(raw, &p) == nil {
				return p
			}
		}
	}

	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	p := BackendProbe{Healthy: true, CheckedAt: h.now().UTC()}
	if err := h.backend.HealthCheck(pctx); err != nil {
		p.Healthy = false
		p.Error = err.Error()
		slog.Warn("backend health check failed", "error", err)
	}

	if h.cache != nil && h.ttl > 0 {
		if raw, err := json.Marshal(p); err == nil {
			if err := h.cache.Set(ctx, cache.HealthProbeKey(), raw, h.ttl); err != nil {
				slog.Debug("caching health probe failed", "error", err)
			}
		}
	}
	return p
}
