package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/reviewpulse/reviewpulse/internal/model"
)

// UpsertScores caches a batch of computed (organization, topic) scores.
// The cache is only written on explicit refresh; reads that want fresh
// numbers recompute instead.
func (s *Store) UpsertScores(ctx context.Context, scores []model.StoredScore) error {
	return s.db.Transaction(ctx, func(ctx context.Context) error {
		now := time.Now().UTC()
		for _, sc := range scores {
			computedAt := sc.ComputedAt
			if computedAt.IsZero() {
				computedAt = now
			}
			if _, err := s.db.Exec(ctx, `
				INSERT INTO org_scores (org_id, topic_id, score, review_count, confidence, computed_at)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT(org_id, topic_id) DO UPDATE SET
					score = excluded.score,
					review_count = excluded.review_count,
					confidence = excluded.confidence,
					computed_at = excluded.computed_at`,
				sc.OrgID, sc.TopicID, sc.Score, sc.ReviewCount, string(sc.Confidence), computedAt,
			); err != nil {
				return eris.Wrapf(err, "store: upsert score org=%s topic=%d", sc.OrgID, sc.TopicID)
			}
		}
		return nil
	})
}

// ListStoredScores returns the cached score rows for an organization.
func (s *Store) ListStoredScores(ctx context.Context, orgID string) ([]model.StoredScore, error) {
	rows, err := s.db.Query(ctx, `
		SELECT org_id, topic_id, score, review_count, confidence, computed_at
		FROM org_scores WHERE org_id = ? ORDER BY topic_id`, orgID)
	if err != nil {
		return nil, eris.Wrap(err, "store: list stored scores")
	}
	defer rows.Close()

	var out []model.StoredScore
	for rows.Next() {
		var sc model.StoredScore
		if err := rows.Scan(&sc.OrgID, &sc.TopicID, &sc.Score, &sc.ReviewCount, &sc.Confidence, &sc.ComputedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan stored score")
		}
		out = append(out, sc)
	}
	return out, eris.Wrap(rows.Err(), "store: list stored scores iterate")
}
