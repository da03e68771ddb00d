package models

import "time"

// Quality labels assigned to a scored answer.
const (
	QualityHigh   = "high"
	QualityMedium = "medium"
	QualityLow    = "low"
)

// Judgment is the scored answer cached for a (title, content) lookup.
type Judgment struct {
	Quality string        `json:"quality" msgpack:"quality"`
	Score   float64       `json:"score" msgpack:"score"`
	Answer  string        `json:"answer" msgpack:"answer"`
	Model   string        `json:"model" msgpack:"model"`
	Elapsed time.Duration `json:"elapsed" msgpack:"elapsed"`
}

// QualityForScore maps a 0-100 score to its quality label.
func QualityForScore(score float64) string {
	switch {
	case score >= 80:
		return QualityHigh
	case score >= 50:
		return QualityMedium
	default:
		return QualityLow
	}
}
