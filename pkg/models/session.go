package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionState is the lifecycle state of a recording session.
type SessionState string

const (
	StateIdle        SessionState = "idle"
	StateRecording   SessionState = "recording"
	StateUploading   SessionState = "uploading"
	StateSubmitting  SessionState = "submitting"
	StatePolling     SessionState = "polling"
	StateAggregating SessionState = "aggregating"
	StateCompleted   SessionState = "completed"
)

// Session is one recording attempt.
type Session struct {
	ID             uuid.UUID    `json:"id"`
	StartedAt      time.Time    `json:"started_at"`
	ElapsedSeconds int          `json:"elapsed_seconds"`
	Target         string       `json:"target"`
	Candidate      string       `json:"candidate"`
	Question       string       `json:"question,omitempty"`
	State          SessionState `json:"state"`
	Saved          bool         `json:"saved"`
}

// Artifact is the captured media blob. StorageKey and Bucket are filled in
// once the upload is confirmed.
type Artifact struct {
	Data        []byte    `json:"-"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	StorageKey  string    `json:"storage_key,omitempty"`
	Bucket      string    `json:"bucket,omitempty"`
	CapturedAt  time.Time `json:"captured_at"`
}

// Empty reports whether no media was captured.
func (a *Artifact) Empty() bool {
	return a == nil || len(a.Data) == 0
}

// Stored reports whether the artifact has been uploaded and confirmed.
func (a *Artifact) Stored() bool {
	return a != nil && a.StorageKey != ""
}
