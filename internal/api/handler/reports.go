package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/cabinprep/internal/api/response"
	"github.com/kiranshivaraju/cabinprep/internal/store"
)

const (
	defaultReportLimit = 20
	maxReportLimit     = 100
)

// NewListReportsHandler returns an http.HandlerFunc for GET /api/v1/reports.
// Optional query parameters are candidate, target and limit.
func NewListReportsHandler(reports store.ReportStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		limit := defaultReportLimit
		if raw := q.Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer", nil)
				return
			}
			limit = min(n, maxReportLimit)
		}

		items, err := reports.List(r.Context(), store.ReportFilter{
			Candidate: q.Get("candidate"),
			Target:    q.Get("target"),
			Limit:     limit,
		})
		if err != nil {
			slog.Error("listing reports failed", "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list reports", nil)
			return
		}

		total, err := reports.Count(r.Context())
		if err != nil {
			slog.Error("counting reports failed", "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list reports", nil)
			return
		}

		response.Collection(w, items, response.ListMeta{Limit: limit, Returned: len(items), Total: total})
	}
}

// NewGetReportHandler returns an http.HandlerFunc for GET /api/v1/reports/{id}.
func NewGetReportHandler(reports store.ReportStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "id must be a UUID", nil)
			return
		}

		report, err := reports.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Report not found", nil)
				return
			}
			slog.Error("fetching report failed", "report_id", id, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch report", nil)
			return
		}
		response.JSON(w, report)
	}
}
