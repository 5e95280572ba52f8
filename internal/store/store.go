package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/cabinprep/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// ReportStore is the append-only history of saved feedback reports.
// Implementations must be safe for concurrent use.
type ReportStore interface {
	Ping(ctx context.Context) error
	Append(ctx context.Context, report *models.FeedbackReport) error
	List(ctx context.Context, filter ReportFilter) ([]*models.FeedbackReport, error)
	Get(ctx context.Context, id uuid.UUID) (*models.FeedbackReport, error)
	Count(ctx context.Context) (int, error)
}

// ReportFilter selects reports for List. Zero values match everything;
// Limit of 0 returns all matching reports.
type ReportFilter struct {
	Candidate string
	Target    string
	Limit     int
}

func (f ReportFilter) matches(r *models.FeedbackReport) bool {
	if f.Candidate != "" && f.Candidate != r.Candidate {
		return false
	}
	if f.Target != "" && f.Target != r.Target {
		return false
	}
	return true
}
