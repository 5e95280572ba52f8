package analysis_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/kiranshivaraju/cabinprep/internal/analysis"
	"github.com/kiranshivaraju/cabinprep/internal/backend"
	"github.com/kiranshivaraju/cabinprep/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

type fakeResults struct {
	summary backend.Summary
	err     error
	calls   int
}

func (r *fakeResults) GetAnalysisResult(context.Context, map[models.JobKind]string) (backend.Summary, error) {
	r.calls++
	return r.summary, r.err
}

func succeededJobs(t *testing.T) *models.AnalysisJobSet {
	jobs := newJobs(t)
	for _, k := range models.JobKinds {
		jobs.SetStatus(k, models.JobStatusSucceeded)
	}
	return jobs
}

var kim = analysis.Candidate{Name: "Kim", Target: "Korean Air"}

func TestGradeOf_Boundaries(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{100, "A+"}, {95, "A+"}, {94, "A"}, {90, "A"}, {89, "B+"}, {85, "B+"},
		{84, "B"}, {80, "B"}, {79, "C+"}, {75, "C+"}, {74, "C"}, {70, "C"},
		{69, "D"}, {0, "D"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, analysis.GradeOf(tt.score), "score %d", tt.score)
	}
}

func TestGradeOf_Monotonic(t *testing.T) {
	rank := map[string]int{"D": 0, "C": 1, "C+": 2, "B": 3, "B+": 4, "A": 5, "A+": 6}
	for s := 1; s <= 100; s++ {
		assert.GreaterOrEqual(t, rank[analysis.GradeOf(s)], rank[analysis.GradeOf(s-1)], "score %d", s)
	}
}

func TestEvaluationOf_Bands(t *testing.T) {
	assert.Equal(t, analysis.EvaluationOf(90), analysis.EvaluationOf(99))
	assert.Equal(t, analysis.EvaluationOf(80), analysis.EvaluationOf(88))
	assert.Equal(t, analysis.EvaluationOf(70), analysis.EvaluationOf(79))
	assert.NotEqual(t, analysis.EvaluationOf(89), analysis.EvaluationOf(90))
	assert.NotEqual(t, analysis.EvaluationOf(69), analysis.EvaluationOf(70))
}

func TestBuildReport_FullSummary(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	r := analysis.BuildReport(backend.Summary{
		OverallScore:    f(88),
		Clarity:         f(91.4),
		Pace:            f(79.5),
		Volume:          f(140),
		Confidence:      f(-3),
		Recommendations: []string{"Slow down", "Smile"},
	}, kim, now)

	assert.Equal(t, 88, r.TotalScore)
	assert.Equal(t, "B+", r.Grade)
	assert.Equal(t, analysis.EvaluationOf(80), r.OverallEvaluation)
	assert.Equal(t, models.DetailedScores{VoiceAccuracy: 91, Expression: 0, SpeechPattern: 80, AnswerQuality: 100}, r.Scores)
	assert.Equal(t, []string{"Slow down", "Smile"}, r.Improvements)
	assert.Equal(t, []string{"Slow down", "Smile"}, r.RecommendedActions)
	assert.Equal(t, "Kim", r.Candidate)
	assert.Equal(t, "Korean Air", r.Target)
	assert.Equal(t, analysis.Position, r.Position)
	assert.Equal(t, "v2.0", r.Version)
	assert.Equal(t, now, r.CreatedAt)
	assert.Equal(t, "Voice clarity: 91 points", r.Analyses.VoiceAccuracy)
	assert.NotEmpty(t, r.Details.AnswerQuality)
	assert.False(t, r.Synthetic)
}

func TestBuildReport_MissingMetricsUseDefaults(t *testing.T) {
	r := analysis.BuildReport(backend.Summary{}, kim, time.Now())

	assert.Equal(t, 85, r.TotalScore)
	assert.Equal(t, "B+", r.Grade)
	assert.Equal(t, models.DetailedScores{VoiceAccuracy: 88, Expression: 82, SpeechPattern: 85, AnswerQuality: 87}, r.Scores)
	assert.Len(t, r.Improvements, 3)
	assert.Len(t, r.RecommendedActions, 3)
}

func TestBuildReport_OutOfRangeScoresClamp(t *testing.T) {
	r := analysis.BuildReport(backend.Summary{
		OverallScore: f(1e20),
		Clarity:      f(1e20),
		Pace:         f(-1e20),
		Volume:       f(math.Inf(1)),
	}, kim, time.Now())

	assert.Equal(t, 100, r.TotalScore)
	assert.Equal(t, "A+", r.Grade)
	assert.Equal(t, 100, r.Scores.VoiceAccuracy)
	assert.Equal(t, 0, r.Scores.SpeechPattern)
	assert.Equal(t, analysis.DefaultVolume, r.Scores.AnswerQuality)
}

func TestBuildReport_DefaultListsNotShared(t *testing.T) {
	a := analysis.BuildReport(backend.Summary{}, kim, time.Now())
	a.Improvements[0] = "mutated"

	b := analysis.BuildReport(backend.Summary{}, kim, time.Now())
	assert.NotEqual(t, "mutated", b.Improvements[0])
}

func TestAggregate_Success(t *testing.T) {
	src := &fakeResults{summary: backend.Summary{OverallScore: f(92)}}
	a := analysis.NewAggregator(src)

	r, err := a.Aggregate(context.Background(), succeededJobs(t), kim)
	require.NoError(t, err)
	assert.Equal(t, "A", r.Grade)
	assert.Equal(t, 1, src.calls)
}

func TestAggregate_RequiresSucceededJobs(t *testing.T) {
	src := &fakeResults{}
	a := analysis.NewAggregator(src)

	_, err := a.Aggregate(context.Background(), newJobs(t), kim)
	assert.ErrorIs(t, err, analysis.ErrAggregationFailed)
	assert.Equal(t, 0, src.calls)
}

func TestAggregate_BackendError(t *testing.T) {
	src := &fakeResults{err: backend.ErrMalformedResponse}
	a := analysis.NewAggregator(src)

	_, err := a.Aggregate(context.Background(), succeededJobs(t), kim)
	assert.ErrorIs(t, err, analysis.ErrAggregationFailed)
	assert.ErrorIs(t, err, backend.ErrMalformedResponse)
}

type fakeStarter struct {
	ids map[models.JobKind]string
	err error
}

func (s *fakeStarter) StartAnalysis(context.Context, string, string) (map[models.JobKind]string, error) {
	return s.ids, s.err
}

func TestSubmit_AllPending(t *testing.T) {
	s := analysis.NewSubmitter(&fakeStarter{ids: map[models.JobKind]string{
		models.JobKindSTT: "a", models.JobKindFace: "b", models.JobKindSegment: "c",
	}})

	jobs, err := s.Submit(context.Background(), "uploads/x.webm", "bucket")
	require.NoError(t, err)
	assert.Equal(t, all(models.JobStatusPending), jobs.Statuses())
}

func TestSubmit_MissingHandle(t *testing.T) {
	s := analysis.NewSubmitter(&fakeStarter{ids: map[models.JobKind]string{
		models.JobKindSTT: "a", models.JobKindFace: "b",
	}})

	_, err := s.Submit(context.Background(), "uploads/x.webm", "bucket")
	assert.ErrorIs(t, err, analysis.ErrSubmissionFailed)
	assert.ErrorIs(t, err, models.ErrMissingJobHandle)
}

func TestSubmit_BackendError(t *testing.T) {
	s := analysis.NewSubmitter(&fakeStarter{err: errors.New("503")})

	_, err := s.Submit(context.Background(), "uploads/x.webm", "bucket")
	assert.ErrorIs(t, err, analysis.ErrSubmissionFailed)
}

func TestSubmit_EmptyKey(t *testing.T) {
	s := analysis.NewSubmitter(&fakeStarter{})

	_, err := s.Submit(context.Background(), "", "bucket")
	assert.ErrorIs(t, err, analysis.ErrSubmissionFailed)
}

func TestFallback_SyntheticAndConsistent(t *testing.T) {
	fb := analysis.NewFallback(42)

	for i := 0; i < 20; i++ {
		r := fb.Generate(kim)
		assert.True(t, r.Synthetic)
		assert.Equal(t, analysis.GradeOf(r.TotalScore), r.Grade)
		assert.Equal(t, analysis.EvaluationOf(r.TotalScore), r.OverallEvaluation)
		assert.GreaterOrEqual(t, r.TotalScore, 0)
		assert.LessOrEqual(t, r.TotalScore, 100)
		assert.NotEmpty(t, r.Improvements)
		assert.NotEmpty(t, r.RecommendedActions)
		assert.Equal(t, "Korean Air", r.Target)
	}
}

func TestFallback_ReproducibleForSeed(t *testing.T) {
	a := analysis.NewFallback(7)
	b := analysis.NewFallback(7)

	for i := 0; i < 5; i++ {
		ra, rb := a.Generate(kim), b.Generate(kim)
		assert.Equal(t, ra.Scores, rb.Scores)
		assert.Equal(t, ra.TotalScore, rb.TotalScore)
		assert.NotEqual(t, ra.ID, rb.ID)
	}
}
