package model

import "time"

// Confidence qualifies the sample size behind a score.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// TopicScore is the computed quality score for one topic.
type TopicScore struct {
	TopicID     int64        `json:"topic_id"`
	Name        string       `json:"name"`
	Score       float64      `json:"score"`
	ReviewCount int          `json:"review_count"`
	Confidence  Confidence   `json:"confidence"`
	Subtopics   []TopicScore `json:"subtopics,omitempty"`
}

// OrgScore is the full score breakdown for one organization, sorted by
// descending topic score.
type OrgScore struct {
	OrgID        string       `json:"org_id"`
	Name         string       `json:"name"`
	OverallScore float64      `json:"overall_score"`
	TotalReviews int          `json:"total_reviews"`
	Topics       []TopicScore `json:"topics"`
}

// StoredScore is one cached (organization, topic) score row. Scores are
// derived data; this table is a cache, not the source of truth.
type StoredScore struct {
	OrgID       string     `json:"org_id"`
	TopicID     int64      `json:"topic_id"`
	Score       float64    `json:"score"`
	ReviewCount int        `json:"review_count"`
	Confidence  Confidence `json:"confidence"`
	ComputedAt  time.Time  `json:"computed_at"`
}
