package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/cabinprep/internal/analysis"
	"github.com/kiranshivaraju/cabinprep/internal/upload"
	"github.com/kiranshivaraju/cabinprep/pkg/models"
)

// Failure kinds reported in diagnostics.
const (
	KindDeviceUnavailable = "device_unavailable"
	KindNoMedia           = "no_media"
	KindUploadFailed      = "upload_failed"
	KindSubmissionFailed  = "submission_failed"
	KindPollingFailed     = "polling_failed"
	KindAggregationFailed = "aggregation_failed"
	KindUnknown           = "unknown"
)

// Event is a diagnostic emitted when a session step fails.
type Event struct {
	SessionID uuid.UUID
	Stage     models.SessionState
	Kind      string
	Err       error
	At        time.Time
}

// EventSink receives diagnostic events. It is called synchronously.
type EventSink func(Event)

// Classify maps an error to its failure kind.
func Classify(err error) string {
	switch {
	case errors.Is(err, ErrDeviceUnavailable):
		return KindDeviceUnavailable
	case errors.Is(err, ErrNoMedia):
		return KindNoMedia
	case errors.Is(err, upload.ErrUploadFailed):
		return KindUploadFailed
	case errors.Is(err, analysis.ErrSubmissionFailed):
		return KindSubmissionFailed
	case errors.Is(err, analysis.ErrPollingFailed):
		return KindPollingFailed
	case errors.Is(err, analysis.ErrAggregationFailed):
		return KindAggregationFailed
	default:
		return KindUnknown
	}
}
