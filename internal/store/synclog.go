package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/reviewpulse/reviewpulse/internal/model"
)

// LogSync appends one audit record for a finished sync attempt. Entries
// are never updated afterwards.
func (s *Store) LogSync(ctx context.Context, entry model.SyncLogEntry) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO sync_log (org_id, mode, reviews_added, reviews_updated, started_at, finished_at, status, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.OrgID, string(entry.Mode), entry.ReviewsAdded, entry.ReviewsUpdated,
		entry.StartedAt, entry.FinishedAt, string(entry.Status), nullable(entry.ErrorMessage),
	)
	return eris.Wrapf(err, "store: log sync for %s", entry.OrgID)
}

// LastSync returns the most recent sync entry for an organization, or
// ErrNoRows when it has never been synced.
func (s *Store) LastSync(ctx context.Context, orgID string) (*model.SyncLogEntry, error) {
	return s.lastSyncWhere(ctx, `WHERE org_id = ?`, orgID)
}

// lastSuccessfulSync returns the most recent entry with status ok.
func (s *Store) lastSuccessfulSync(ctx context.Context, orgID string) (*model.SyncLogEntry, error) {
	return s.lastSyncWhere(ctx, `WHERE org_id = ? AND status = 'ok'`, orgID)
}

func (s *Store) lastSyncWhere(ctx context.Context, where string, args ...any) (*model.SyncLogEntry, error) {
	var (
		entry  model.SyncLogEntry
		errMsg sql.NullString
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, org_id, mode, reviews_added, reviews_updated, started_at, finished_at, status, error_message
		FROM sync_log `+where+` ORDER BY id DESC LIMIT 1`, args...,
	).Scan(&entry.ID, &entry.OrgID, &entry.Mode, &entry.ReviewsAdded, &entry.ReviewsUpdated,
		&entry.StartedAt, &entry.FinishedAt, &entry.Status, &errMsg)
	if err != nil {
		return nil, eris.Wrap(err, "store: last sync")
	}
	entry.ErrorMessage = errMsg.String
	return &entry, nil
}

// DecideSyncMode picks full or incremental mode for the next run: full
// when forced or when the organization has no successful sync on record,
// incremental otherwise.
func (s *Store) DecideSyncMode(ctx context.Context, orgID string, forceFull bool) (model.SyncMode, error) {
	if forceFull {
		return model.SyncFull, nil
	}
	_, err := s.lastSuccessfulSync(ctx, orgID)
	if errors.Is(err, ErrNoRows) {
		return model.SyncFull, nil
	}
	if err != nil {
		return "", err
	}
	return model.SyncIncremental, nil
}

// ListSyncLog returns recent sync entries for an organization, newest
// first.
func (s *Store) ListSyncLog(ctx context.Context, orgID string, limit int) ([]model.SyncLogEntry, error) {
	query := `
		SELECT id, org_id, mode, reviews_added, reviews_updated, started_at, finished_at, status, error_message
		FROM sync_log WHERE org_id = ? ORDER BY id DESC`
	args := []any{orgID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list sync log")
	}
	defer rows.Close()

	var entries []model.SyncLogEntry
	for rows.Next() {
		var (
			entry  model.SyncLogEntry
			errMsg sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.OrgID, &entry.Mode, &entry.ReviewsAdded, &entry.ReviewsUpdated,
			&entry.StartedAt, &entry.FinishedAt, &entry.Status, &errMsg); err != nil {
			return nil, eris.Wrap(err, "store: scan sync entry")
		}
		entry.ErrorMessage = errMsg.String
		entries = append(entries, entry)
	}
	return entries, eris.Wrap(rows.Err(), "store: list sync log iterate")
}
