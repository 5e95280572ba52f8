package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kiranshivaraju/cabinprep/pkg/models"
)

// ErrSubmissionFailed wraps every failure to start analysis jobs.
var ErrSubmissionFailed = errors.New("analysis submission failed")

// JobStarter is the backend call that launches the three analysis jobs.
type JobStarter interface {
	StartAnalysis(ctx context.Context, storageKey, bucket string) (map[models.JobKind]string, error)
}

// Submitter requests analysis of a stored artifact.
type Submitter struct {
	backend JobStarter
}

// NewSubmitter creates a Submitter.
func NewSubmitter(b JobStarter) *Submitter {
	return &Submitter{backend: b}
}

// Submit starts analysis for the artifact at storageKey. The returned set
// has every kind PENDING.
func (s *Submitter) Submit(ctx context.Context, storageKey, bucket string) (*models.AnalysisJobSet, error) {
	if storageKey == "" {
		return nil, fmt.Errorf("%w: storage key is required", ErrSubmissionFailed)
	}

	ids, err := s.backend.StartAnalysis(ctx, storageKey, bucket)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}

	jobs, err := models.NewAnalysisJobSet(ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}

	slog.Info("analysis submitted",
		"storage_key", storageKey,
		"stt_job", ids[models.JobKindSTT],
		"face_job", ids[models.JobKindFace],
		"segment_job", ids[models.JobKindSegment],
	)
	return jobs, nil
}
