package model

import "time"

// RawReview is one customer review as delivered by the page-fetch
// collaborator, before an identity key has been derived for it.
type RawReview struct {
	AuthorName       string  `json:"author_name"`
	AuthorIconURL    string  `json:"author_icon_url,omitempty"`
	AuthorProfileURL string  `json:"author_profile_url,omitempty"`
	Date             string  `json:"date"` // ISO date, empty if unknown
	Text             string  `json:"text"`
	Stars            float64 `json:"stars"` // 1..5, half-steps allowed
	Likes            int     `json:"likes"`
	Dislikes         int     `json:"dislikes"`
	ReviewURL        string  `json:"review_url,omitempty"`
	BusinessResponse string  `json:"business_response,omitempty"`
}

// Review is a persisted review row.
type Review struct {
	ID               int64     `json:"id"`
	OrgID            string    `json:"org_id"`
	ReviewKey        string    `json:"review_key"`
	AuthorName       string    `json:"author_name,omitempty"`
	AuthorIconURL    string    `json:"author_icon_url,omitempty"`
	AuthorProfileURL string    `json:"author_profile_url,omitempty"`
	Date             string    `json:"date,omitempty"`
	Text             string    `json:"text,omitempty"`
	Stars            float64   `json:"stars"`
	Likes            int       `json:"likes"`
	Dislikes         int       `json:"dislikes"`
	ReviewURL        string    `json:"review_url,omitempty"`
	BusinessResponse string    `json:"business_response,omitempty"`
	FirstSeenAt      time.Time `json:"first_seen_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// UpsertResult reports how a review batch merged into the store.
type UpsertResult struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
}

// ScrapeResult is the full payload the page-fetch collaborator returns
// for one organization.
type ScrapeResult struct {
	Org        OrgInfo     `json:"organization_info"`
	Reviews    []RawReview `json:"reviews"`
	TotalCount int         `json:"total_count"`
}

// Embedding is the stored vector for one review's text (1:1 with the
// review), tagged with the generating model.
type Embedding struct {
	ReviewID  int64     `json:"review_id"`
	Model     string    `json:"model"`
	Vector    []float32 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
