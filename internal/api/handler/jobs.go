package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/cabinprep/internal/api/response"
	"github.com/kiranshivaraju/cabinprep/internal/backend"
	"github.com/kiranshivaraju/cabinprep/internal/cache"
	"github.com/kiranshivaraju/cabinprep/pkg/models"
)

// JobStatusSource fetches a single analysis job's status from the backend.
type JobStatusSource interface {
	GetAnalysisStatus(ctx context.Context, kind models.JobKind, id string) (models.JobStatus, error)
}

// NewJobStatusHandler returns an http.HandlerFunc for
// GET /api/v1/jobs/{kind}/{id}. Statuses mirrored by running sessions are
// served from c; misses go to the backend and terminal answers are cached.
func NewJobStatusHandler(src JobStatusSource, c cache.Cache, ttl time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind := models.JobKind(chi.URLParam(r, "kind"))
		id := chi.URLParam(r, "id")
		if !slices.Contains(models.JobKinds, kind) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "kind must be one of stt, face, segment", nil)
			return
		}

		if c != nil {
			status, ok, err := c.GetJobStatus(r.Context(), kind, id)
			if err != nil {
				slog.Debug("job status cache lookup failed", "job_id", id, "error", err)
			}
			if ok && status.IsTerminal() {
				response.JSON(w, jobStatusBody(kind, id, status, "cache"))
				return
			}
		}

		status, err := src.GetAnalysisStatus(r.Context(), kind, id)
		if err != nil {
			switch {
			case errors.Is(err, backend.ErrBackendTimeout):
				response.Error(w, http.StatusGatewayTimeout, "BACKEND_TIMEOUT", "Analysis backend timed out", nil)
			default:
				slog.Warn("job status lookup failed", "kind", kind, "job_id", id, "error", err)
				response.Error(w, http.StatusBadGateway, "BACKEND_UNAVAILABLE", "Analysis backend is not available", nil)
			}
			return
		}

		if c != nil && status.IsTerminal() {
			_ = c.SetJobStatus(r.Context(), kind, id, status, ttl)
		}
		response.JSON(w, jobStatusBody(kind, id, status, "backend"))
	}
}

func jobStatusBody(kind models.JobKind, id string, status models.JobStatus, source string) map[string]string {
	return map[string]string{
		"kind":   string(kind),
		"id":     id,
		"status": string(status),
		"source": source,
	}
}
