package models

import "time"

// Record is one workload item: a question paired with its reference answer.
type Record struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	BestAnswer      string    `json:"best_answer"`
	Category        int       `json:"category"`
	BaselineQuality float64   `json:"baseline_quality"`
	AccessCount     int64     `json:"access_count"`
	CreatedAt       time.Time `json:"created_at"`
}
