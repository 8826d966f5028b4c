package model

import "time"

// SyncMode selects how much review history an ingestion run fetches.
type SyncMode string

const (
	SyncFull        SyncMode = "full"
	SyncIncremental SyncMode = "incremental"
)

// SyncStatus is the terminal state of one sync attempt.
type SyncStatus string

const (
	SyncOK    SyncStatus = "ok"
	SyncError SyncStatus = "error"
)

// SyncLogEntry is one append-only audit record per ingestion attempt.
// Entries are never updated after creation; the most recent entry per
// organization decides whether the next run defaults to full or
// incremental mode.
type SyncLogEntry struct {
	ID             int64      `json:"id"`
	OrgID          string     `json:"org_id"`
	Mode           SyncMode   `json:"mode"`
	ReviewsAdded   int        `json:"reviews_added"`
	ReviewsUpdated int        `json:"reviews_updated"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     time.Time  `json:"finished_at"`
	Status         SyncStatus `json:"status"`
	ErrorMessage   string     `json:"error_message,omitempty"`
}
