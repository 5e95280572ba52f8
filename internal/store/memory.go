package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/cabinprep/pkg/models"
)

// MemoryStore keeps reports in insertion order in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	reports []*models.FeedbackReport
	byID    map[uuid.UUID]int
	session map[uuid.UUID]bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[uuid.UUID]int),
		session: make(map[uuid.UUID]bool),
	}
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// Append stores a copy of report. A report ID or session ID seen before
// returns ErrDuplicateKey.
func (s *MemoryStore) Append(_ context.Context, report *models.FeedbackReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[report.ID]; ok {
		return ErrDuplicateKey
	}
	if report.SessionID != uuid.Nil && s.session[report.SessionID] {
		return ErrDuplicateKey
	}

	s.byID[report.ID] = len(s.reports)
	if report.SessionID != uuid.Nil {
		s.session[report.SessionID] = true
	}
	s.reports = append(s.reports, report.Clone())
	return nil
}

// List returns matching reports oldest first.
func (s *MemoryStore) List(_ context.Context, filter ReportFilter) ([]*models.FeedbackReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.FeedbackReport, 0, len(s.reports))
	for _, r := range s.reports {
		if !filter.matches(r) {
			continue
		}
		out = append(out, r.Clone())
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*models.FeedbackReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.reports[i].Clone(), nil
}

func (s *MemoryStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports), nil
}

var _ ReportStore = (*MemoryStore)(nil)
