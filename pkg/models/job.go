package models

import (
	"errors"
	"fmt"
	"sort"
)

// JobKind identifies one of the independent backend analyses run against an artifact.
type JobKind string

const (
	JobKindSTT     JobKind = "stt"
	JobKindFace    JobKind = "face"
	JobKindSegment JobKind = "segment"
)

// JobKinds lists every kind an AnalysisJobSet must carry, in display order.
var JobKinds = []JobKind{JobKindSTT, JobKindFace, JobKindSegment}

// JobStatus is the normalized status of a sub-job. Backend vocabularies are
// mapped onto these values at the client boundary.
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusInProgress JobStatus = "IN_PROGRESS"
	JobStatusSucceeded  JobStatus = "SUCCEEDED"
	JobStatusFailed     JobStatus = "FAILED"
)

// IsTerminal reports whether the status can no longer change.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// Resolution is the aggregate outcome of an AnalysisJobSet.
type Resolution string

const (
	ResolutionPending   Resolution = "pending"
	ResolutionSucceeded Resolution = "succeeded"
	ResolutionFailed    Resolution = "failed"
)

// ErrMissingJobHandle is returned when a job set is built without a handle for every kind.
var ErrMissingJobHandle = errors.New("missing job handle")

// JobHandle is the backend identifier of a sub-job plus its last observed status.
type JobHandle struct {
	ID     string    `json:"id"`
	Status JobStatus `json:"status"`
}

// AnalysisJobSet holds exactly one handle per JobKind.
// It is not safe for concurrent mutation; the poller owns it while polling.
type AnalysisJobSet struct {
	handles map[JobKind]JobHandle
}

// NewAnalysisJobSet builds a set from backend job ids. Every kind starts PENDING.
func NewAnalysisJobSet(ids map[JobKind]string) (*AnalysisJobSet, error) {
	set := &AnalysisJobSet{handles: make(map[JobKind]JobHandle, len(JobKinds))}
	for _, kind := range JobKinds {
		id := ids[kind]
		if id == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingJobHandle, kind)
		}
		set.handles[kind] = JobHandle{ID: id, Status: JobStatusPending}
	}
	return set, nil
}

// Handle returns the handle for kind.
func (s *AnalysisJobSet) Handle(kind JobKind) (JobHandle, bool) {
	h, ok := s.handles[kind]
	return h, ok
}

// SetStatus records the last observed status for kind. Unknown kinds are ignored.
func (s *AnalysisJobSet) SetStatus(kind JobKind, status JobStatus) {
	h, ok := s.handles[kind]
	if !ok {
		return
	}
	h.Status = status
	s.handles[kind] = h
}

// IDs returns the backend job id of every kind.
func (s *AnalysisJobSet) IDs() map[JobKind]string {
	ids := make(map[JobKind]string, len(s.handles))
	for kind, h := range s.handles {
		ids[kind] = h.ID
	}
	return ids
}

// Statuses returns a copy of the last observed status of every kind.
func (s *AnalysisJobSet) Statuses() map[JobKind]JobStatus {
	out := make(map[JobKind]JobStatus, len(s.handles))
	for kind, h := range s.handles {
		out[kind] = h.Status
	}
	return out
}

// Resolution is FAILED if any job failed, SUCCEEDED if every job succeeded,
// and PENDING otherwise. It has no side effects.
func (s *AnalysisJobSet) Resolution() Resolution {
	succeeded := 0
	for _, h := range s.handles {
		switch h.Status {
		case JobStatusFailed:
			return ResolutionFailed
		case JobStatusSucceeded:
			succeeded++
		}
	}
	if succeeded == len(JobKinds) && len(s.handles) == len(JobKinds) {
		return ResolutionSucceeded
	}
	return ResolutionPending
}

// FailedKinds returns the kinds whose last status is FAILED, sorted.
func (s *AnalysisJobSet) FailedKinds() []JobKind {
	var failed []JobKind
	for kind, h := range s.handles {
		if h.Status == JobStatusFailed {
			failed = append(failed, kind)
		}
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })
	return failed
}
