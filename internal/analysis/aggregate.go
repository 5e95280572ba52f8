package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/cabinprep/internal/backend"
	"github.com/kiranshivaraju/cabinprep/pkg/models"
)

// ErrAggregationFailed wraps every failure to build a report from results.
var ErrAggregationFailed = errors.New("result aggregation failed")

// ResultSource is the backend call that returns the analysis summary.
type ResultSource interface {
	GetAnalysisResult(ctx context.Context, jobs map[models.JobKind]string) (backend.Summary, error)
}

// Candidate identifies who was interviewed and for which airline.
type Candidate struct {
	Name   string
	Target string
}

// Aggregator turns completed analysis jobs into a FeedbackReport.
type Aggregator struct {
	source ResultSource
	now    func() time.Time
}

// NewAggregator creates an Aggregator.
func NewAggregator(source ResultSource) *Aggregator {
	return &Aggregator{source: source, now: time.Now}
}

// Aggregate fetches the summary for jobs, which must all have succeeded.
func (a *Aggregator) Aggregate(ctx context.Context, jobs *models.AnalysisJobSet, c Candidate) (*models.FeedbackReport, error) {
	if res := jobs.Resolution(); res != models.ResolutionSucceeded {
		return nil, fmt.Errorf("%w: jobs not complete (%s)", ErrAggregationFailed, res)
	}

	summary, err := a.source.GetAnalysisResult(ctx, jobs.IDs())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAggregationFailed, err)
	}
	return BuildReport(summary, c, a.now()), nil
}

// BuildReport maps a backend summary onto the fixed report layout.
func BuildReport(s backend.Summary, c Candidate, now time.Time) *models.FeedbackReport {
	total := score(s.OverallScore, DefaultOverall)
	scores := models.DetailedScores{
		VoiceAccuracy: score(s.Clarity, DefaultClarity),
		Expression:    score(s.Confidence, DefaultConfidence),
		SpeechPattern: score(s.Pace, DefaultPace),
		AnswerQuality: score(s.Volume, DefaultVolume),
	}

	improvements := defaultImprovements
	actions := defaultActions
	if len(s.Recommendations) > 0 {
		improvements = s.Recommendations
		actions = s.Recommendations
	}

	return &models.FeedbackReport{
		ID:                 uuid.New(),
		CreatedAt:          now.UTC(),
		Candidate:          c.Name,
		Target:             c.Target,
		Position:           Position,
		Version:            Version,
		TotalScore:         total,
		Grade:              GradeOf(total),
		OverallEvaluation:  EvaluationOf(total),
		Scores:             scores,
		Analyses:           analysesFor(scores),
		Details:            detailsText(),
		Improvements:       append([]string(nil), improvements...),
		RecommendedActions: append([]string(nil), actions...),
	}
}

func analysesFor(s models.DetailedScores) models.DimensionText {
	return models.DimensionText{
		VoiceAccuracy: fmt.Sprintf("Voice clarity: %d points", s.VoiceAccuracy),
		Expression:    fmt.Sprintf("Facial confidence: %d points", s.Expression),
		SpeechPattern: fmt.Sprintf("Speaking pace: %d points", s.SpeechPattern),
		AnswerQuality: fmt.Sprintf("Answer quality: %d points", s.AnswerQuality),
	}
}

func detailsText() models.DimensionText {
	return models.DimensionText{
		VoiceAccuracy: fixedDetails.voice,
		Expression:    fixedDetails.expression,
		SpeechPattern: fixedDetails.speech,
		AnswerQuality: fixedDetails.answer,
	}
}
