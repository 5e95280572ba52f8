package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/cabinprep/internal/api/response"
	"github.com/kiranshivaraju/cabinprep/internal/session"
	"github.com/kiranshivaraju/cabinprep/pkg/models"
)

// SessionRunner is the orchestrator surface the session endpoints drive.
type SessionRunner interface {
	Start(ctx context.Context, target, candidate string) (session.Snapshot, error)
	Stop(ctx context.Context) (session.Snapshot, error)
	Save(ctx context.Context) (*models.FeedbackReport, error)
	Snapshot() session.Snapshot
	Reset()
}

// MediaSink accepts captured media for the recording in progress.
type MediaSink interface {
	Feed(data []byte, contentType string) error
}

// Session serves the /api/v1/session endpoints.
type Session struct {
	runner   SessionRunner
	media    MediaSink
	maxBytes int64
}

// NewSession creates the session handlers. maxBytes caps one media upload.
func NewSession(runner SessionRunner, media MediaSink, maxBytes int64) *Session {
	return &Session{runner: runner, media: media, maxBytes: maxBytes}
}

// Start handles POST /api/v1/session.
func (h *Session) Start(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Target    string `json:"target"`
		Candidate string `json:"candidate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
		return
	}
	if strings.TrimSpace(req.Target) == "" {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "target is required", nil)
		return
	}

	snap, err := h.runner.Start(r.Context(), req.Target, strings.TrimSpace(req.Candidate))
	if err != nil {
		writeSessionError(w, err)
		return
	}
	response.Created(w, snap)
}

// Get handles GET /api/v1/session.
func (h *Session) Get(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, h.runner.Snapshot())
}

// Media handles PUT /api/v1/session/media. The request body is appended to
// the recording; Content-Type names the media type.
func (h *Session) Media(w http.ResponseWriter, r *http.Request) {
	if h.media == nil {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Media upload is not enabled", nil)
		return
	}

	body := io.Reader(r.Body)
	if h.maxBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, http.StatusRequestEntityTooLarge, "CAPTURE_TOO_LARGE", "Media exceeds the size limit", nil)
			return
		}
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Could not read media", nil)
		return
	}
	if len(data) == 0 {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "media body is empty", nil)
		return
	}

	contentType := r.Header.Get("Content-Type")
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	if err := h.media.Feed(data, contentType); err != nil {
		writeSessionError(w, err)
		return
	}
	response.Accepted(w, map[string]int{"bytes": len(data)})
}

// Stop handles POST /api/v1/session/stop.
func (h *Session) Stop(w http.ResponseWriter, r *http.Request) {
	// The pipeline outlives the request.
	snap, err := h.runner.Stop(context.WithoutCancel(r.Context()))
	if err != nil {
		writeSessionError(w, err)
		return
	}
	response.Accepted(w, snap)
}

// Save handles POST /api/v1/session/save.
func (h *Session) Save(w http.ResponseWriter, r *http.Request) {
	report, err := h.runner.Save(r.Context())
	if err != nil {
		writeSessionError(w, err)
		return
	}
	response.Created(w, report)
}

// Delete handles DELETE /api/v1/session.
func (h *Session) Delete(w http.ResponseWriter, _ *http.Request) {
	h.runner.Reset()
	response.NoContent(w)
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrUnknownTarget):
		response.Error(w, http.StatusBadRequest, "UNKNOWN_TARGET", err.Error(), nil)
	case errors.Is(err, session.ErrDeviceUnavailable):
		response.Error(w, http.StatusConflict, "DEVICE_UNAVAILABLE", "Capture device is unavailable", nil)
	case errors.Is(err, session.ErrAlreadySaved):
		response.Error(w, http.StatusConflict, "ALREADY_SAVED", "Report has already been saved", nil)
	case errors.Is(err, session.ErrInvalidTransition), errors.Is(err, session.ErrNotRecording):
		response.Error(w, http.StatusConflict, "INVALID_STATE", err.Error(), nil)
	case errors.Is(err, session.ErrNoSession):
		response.Error(w, http.StatusNotFound, "NO_SESSION", "No active session", nil)
	case errors.Is(err, session.ErrCaptureTooLarge):
		response.Error(w, http.StatusRequestEntityTooLarge, "CAPTURE_TOO_LARGE", "Media exceeds the size limit", nil)
	case errors.Is(err, session.ErrClosed):
		response.Error(w, http.StatusServiceUnavailable, "SHUTTING_DOWN", "Server is shutting down", nil)
	default:
		slog.Error("session request failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
	}
}
