package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/cabinprep/pkg/models"
)

// PostgresStore implements ReportStore using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const reportColumns = `id, session_id, created_at, candidate, target, position, version,
	total_score, grade, overall_evaluation,
	voice_accuracy, expression, speech_pattern, answer_quality,
	analyses, details, improvements, recommended_actions, duration_seconds, synthetic`

func (s *PostgresStore) Append(ctx context.Context, r *models.FeedbackReport) error {
	analyses, err := json.Marshal(r.Analyses)
	if err != nil {
		return fmt.Errorf("encode analyses: %w", err)
	}
	details, err := json.Marshal(r.Details)
	if err != nil {
		return fmt.Errorf("encode details: %w", err)
	}

	var sessionID *uuid.UUID
	if r.SessionID != uuid.Nil {
		sessionID = &r.SessionID
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO reports (`+reportColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		r.ID, sessionID, r.CreatedAt, r.Candidate, r.Target, r.Position, r.Version,
		r.TotalScore, r.Grade, r.OverallEvaluation,
		r.Scores.VoiceAccuracy, r.Scores.Expression, r.Scores.SpeechPattern, r.Scores.AnswerQuality,
		analyses, details, nonNil(r.Improvements), nonNil(r.RecommendedActions), r.DurationSeconds, r.Synthetic)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("append report: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, filter ReportFilter) ([]*models.FeedbackReport, error) {
	var (
		where []string
		args  []any
	)
	if filter.Candidate != "" {
		args = append(args, filter.Candidate)
		where = append(where, fmt.Sprintf("candidate = $%d", len(args)))
	}
	if filter.Target != "" {
		args = append(args, filter.Target)
		where = append(where, fmt.Sprintf("target = $%d", len(args)))
	}

	q := `SELECT ` + reportColumns + ` FROM reports`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY seq ASC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	reports := []*models.FeedbackReport{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*models.FeedbackReport, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id)
	r, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM reports`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	return n, nil
}

func scanReport(row pgx.Row) (*models.FeedbackReport, error) {
	var (
		r                 models.FeedbackReport
		sessionID         *uuid.UUID
		analyses, details []byte
	)
	err := row.Scan(&r.ID, &sessionID, &r.CreatedAt, &r.Candidate, &r.Target, &r.Position, &r.Version,
		&r.TotalScore, &r.Grade, &r.OverallEvaluation,
		&r.Scores.VoiceAccuracy, &r.Scores.Expression, &r.Scores.SpeechPattern, &r.Scores.AnswerQuality,
		&analyses, &details, &r.Improvements, &r.RecommendedActions, &r.DurationSeconds, &r.Synthetic)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan report: %w", err)
	}
	if sessionID != nil {
		r.SessionID = *sessionID
	}
	if err := json.Unmarshal(analyses, &r.Analyses); err != nil {
		return nil, fmt.Errorf("decode analyses: %w", err)
	}
	if err := json.Unmarshal(details, &r.Details); err != nil {
		return nil, fmt.Errorf("decode details: %w", err)
	}
	return &r, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

var _ ReportStore = (*PostgresStore)(nil)
