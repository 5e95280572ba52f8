package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/cabinprep/pkg/models"
)

var (
	// ErrPollingFailed is returned when a job failed or polling gave up.
	ErrPollingFailed = errors.New("analysis polling failed")
	// ErrPollingTimeout is returned, wrapped in ErrPollingFailed, when the
	// attempt or time bound is exceeded.
	ErrPollingTimeout = errors.New("analysis polling timed out")
)

// StatusSource is the backend call that reports all three job statuses.
type StatusSource interface {
	GetAllAnalysisStatus(ctx context.Context, jobs map[models.JobKind]string) (map[models.JobKind]models.JobStatus, error)
}

// PollerConfig bounds the polling loop. MaxAttempts of 0 is unlimited.
type PollerConfig struct {
	InitialDelay   time.Duration
	Interval       time.Duration
	Timeout        time.Duration
	MaxAttempts    int
	MaxQueryErrors int
}

// DefaultPollerConfig matches the production cadence: first query after 2s,
// then every 5s, for at most 10 minutes.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		InitialDelay:   2 * time.Second,
		Interval:       5 * time.Second,
		Timeout:        10 * time.Minute,
		MaxQueryErrors: 3,
	}
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithQueryHook registers fn to be called after every status query with
// the query's error (nil on success).
func WithQueryHook(fn func(error)) PollerOption {
	return func(p *Poller) { p.onQuery = fn }
}

// Poller drives an AnalysisJobSet to resolution.
type Poller struct {
	source  StatusSource
	cfg     PollerConfig
	onQuery func(error)
}

// NewPoller creates a Poller.
func NewPoller(source StatusSource, cfg PollerConfig, opts ...PollerOption) *Poller {
	if cfg.MaxQueryErrors <= 0 {
		cfg.MaxQueryErrors = 1
	}
	p := &Poller{source: source, cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Poll queries job status until the set resolves, ctx is cancelled or a
// bound is hit. onProgress, if set, is called after every successful query.
// A set that is already resolved returns without querying.
func (p *Poller) Poll(ctx context.Context, jobs *models.AnalysisJobSet, onProgress func(*models.AnalysisJobSet)) (models.Resolution, error) {
	if res := jobs.Resolution(); res != models.ResolutionPending {
		return res, resolutionErr(res, jobs)
	}

	var deadline <-chan time.Time
	if p.cfg.Timeout > 0 {
		dt := time.NewTimer(p.cfg.Timeout)
		defer dt.Stop()
		deadline = dt.C
	}

	wait := p.cfg.InitialDelay
	attempts, queryErrors := 0, 0

	for {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return models.ResolutionPending, ctx.Err()
		case <-deadline:
			timer.Stop()
			return models.ResolutionPending, fmt.Errorf("%w: %w: exceeded %s", ErrPollingFailed, ErrPollingTimeout, p.cfg.Timeout)
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return models.ResolutionPending, ctx.Err()
		}
		wait = p.cfg.Interval
		attempts++

		statuses, err := p.source.GetAllAnalysisStatus(ctx, jobs.IDs())
		if ctx.Err() != nil {
			// The session moved on while the query was in flight.
			return models.ResolutionPending, ctx.Err()
		}
		if p.onQuery != nil {
			p.onQuery(err)
		}

		if err != nil {
			queryErrors++
			slog.Warn("analysis status query failed",
				"attempt", attempts,
				"consecutive_errors", queryErrors,
				"error", err,
			)
			if queryErrors >= p.cfg.MaxQueryErrors {
				return models.ResolutionPending, fmt.Errorf("%w: %d consecutive status query errors: %w", ErrPollingFailed, queryErrors, err)
			}
		} else {
			queryErrors = 0
			for kind, status := range statuses {
				jobs.SetStatus(kind, status)
			}
			if onProgress != nil {
				onProgress(jobs)
			}
			if res := jobs.Resolution(); res != models.ResolutionPending {
				return res, resolutionErr(res, jobs)
			}
		}

		if p.cfg.MaxAttempts > 0 && attempts >= p.cfg.MaxAttempts {
			return models.ResolutionPending, fmt.Errorf("%w: %w: %d attempts", ErrPollingFailed, ErrPollingTimeout, attempts)
		}
	}
}

func resolutionErr(res models.Resolution, jobs *models.AnalysisJobSet) error {
	if res == models.ResolutionFailed {
		return fmt.Errorf("%w: jobs failed: %v", ErrPollingFailed, jobs.FailedKinds())
	}
	return nil
}
