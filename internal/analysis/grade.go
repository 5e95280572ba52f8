package analysis

import "math"

// Neutral values substituted for metrics the backend did not report.
const (
	DefaultOverall    = 85
	DefaultClarity    = 88
	DefaultConfidence = 82
	DefaultPace       = 85
	DefaultVolume     = 87
)

// Report metadata stamped on every feedback report.
const (
	Position = "Cabin Crew"
	Version  = "v2.0"
)

var gradeBands = []struct {
	min   int
	grade string
}{
	{95, "A+"},
	{90, "A"},
	{85, "B+"},
	{80, "B"},
	{75, "C+"},
	{70, "C"},
}

// GradeOf maps a 0-100 score to a letter grade.
func GradeOf(score int) string {
	for _, b := range gradeBands {
		if score >= b.min {
			return b.grade
		}
	}
	return "D"
}

// EvaluationOf returns the overall narrative for a score.
func EvaluationOf(score int) string {
	switch {
	case score >= 90:
		return "An excellent interview. Your confident attitude and clear communication stood out."
	case score >= 80:
		return "A good interview overall. Working on a few points should bring even better results."
	case score >= 70:
		return "You showed basic interview competence. More preparation and practice are needed."
	default:
		return "Practice the fundamentals of interviewing. Systematic preparation is needed."
	}
}

var (
	defaultImprovements = []string{
		"Practice a more confident tone of voice",
		"Back up answers with concrete examples",
		"Structure answers more concisely",
	}
	defaultActions = []string{
		"Vocal exercises to strengthen your voice",
		"Repeat mock interviews regularly",
		"Build up your airline industry knowledge",
	}
)

var fixedDetails = struct {
	voice, expression, speech, answer string
}{
	voice:      "Pronunciation and intonation are natural and easy to follow.",
	expression: "Your expression is bright and positive and shows a willingness to engage with the interviewer.",
	speech:     "Speaking pace and emphasis are appropriate and comfortable to listen to.",
	answer:     "You grasped the core of each question and answered systematically.",
}

// score clamps v to 0-100 and rounds it, substituting def when v is nil or
// not a finite number.
func score(v *float64, def int) int {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return def
	}
	return clamp(int(math.Round(math.Max(0, math.Min(100, *v)))))
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
