package models

import (
	"time"

	"github.com/google/uuid"
)

// DetailedScores are the per-dimension scores of a report, each in 0-100.
type DetailedScores struct {
	VoiceAccuracy int `json:"voice_accuracy"`
	Expression    int `json:"expression"`
	SpeechPattern int `json:"speech_pattern"`
	AnswerQuality int `json:"answer_quality"`
}

// DimensionText carries one free-text entry per scored dimension.
type DimensionText struct {
	VoiceAccuracy string `json:"voice_accuracy"`
	Expression    string `json:"expression"`
	SpeechPattern string `json:"speech_pattern"`
	AnswerQuality string `json:"answer_quality"`
}

// FeedbackReport is the terminal artifact of a session. Synthetic reports are
// substituted when the analysis pipeline fails and have the same shape.
type FeedbackReport struct {
	ID                 uuid.UUID      `json:"id"`
	SessionID          uuid.UUID      `json:"session_id"`
	CreatedAt          time.Time      `json:"created_at"`
	Candidate          string         `json:"candidate"`
	Target             string         `json:"target"`
	Position           string         `json:"position"`
	Version            string         `json:"version"`
	TotalScore         int            `json:"total_score"`
	Grade              string         `json:"grade"`
	OverallEvaluation  string         `json:"overall_evaluation"`
	Scores             DetailedScores `json:"scores"`
	Analyses           DimensionText  `json:"analyses"`
	Details            DimensionText  `json:"details"`
	Improvements       []string       `json:"improvements"`
	RecommendedActions []string       `json:"recommended_actions"`
	DurationSeconds    int            `json:"duration_seconds"`
	Synthetic          bool           `json:"synthetic"`
}

// Clone returns a deep copy so callers cannot mutate a stored report.
func (r *FeedbackReport) Clone() *FeedbackReport {
	if r == nil {
		return nil
	}
	c := *r
	c.Improvements = append([]string(nil), r.Improvements...)
	c.RecommendedActions = append([]string(nil), r.RecommendedActions...)
	return &c
}
