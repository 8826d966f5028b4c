package model

import "time"

// Topic is one node of a per-organization two-level taxonomy. Parent
// topics (ParentID == 0) are aggregation buckets; subtopics carry the
// embedding that participates in classification.
type Topic struct {
	ID        int64     `json:"id"`
	OrgID     string    `json:"org_id"`
	ParentID  int64     `json:"parent_id,omitempty"` // 0 for parent topics
	Name      string    `json:"name"`
	Embedding []float32 `json:"-"` // nil until embedded
	CreatedAt time.Time `json:"created_at"`
}

// IsParent reports whether t is a top-level aggregation topic.
func (t Topic) IsParent() bool { return t.ParentID == 0 }

// TopicTree is one parent topic with its subtopic labels, as declared in
// the taxonomy config.
type TopicTree struct {
	Name      string   `yaml:"name" json:"name"`
	Subtopics []string `yaml:"subtopics" json:"subtopics"`
}

// Classification is a review-to-subtopic edge with its cosine similarity.
type Classification struct {
	ReviewID   int64   `json:"review_id"`
	TopicID    int64   `json:"topic_id"`
	Similarity float64 `json:"similarity"`
}
