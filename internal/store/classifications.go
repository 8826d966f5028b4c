package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/reviewpulse/reviewpulse/internal/model"
)

// ReplaceClassifications swaps out an organization's review-topic
// assignments in one transaction, so a re-run never leaves stale links
// behind.
func (s *Store) ReplaceClassifications(ctx context.Context, orgID string, rows []model.Classification) error {
	return s.db.Transaction(ctx, func(ctx context.Context) error {
		if _, err := s.db.Exec(ctx, `
			DELETE FROM review_topics
			WHERE review_id IN (SELECT id FROM reviews WHERE org_id = ?)`, orgID); err != nil {
			return eris.Wrapf(err, "store: clear classifications for %s", orgID)
		}
		now := time.Now().UTC()
		for _, c := range rows {
			if _, err := s.db.Exec(ctx, `
				INSERT INTO review_topics (review_id, topic_id, similarity, created_at)
				VALUES (?, ?, ?, ?)`,
				c.ReviewID, c.TopicID, c.Similarity, now,
			); err != nil {
				return eris.Wrapf(err, "store: insert classification review=%d topic=%d", c.ReviewID, c.TopicID)
			}
		}
		return nil
	})
}

// ListClassifications returns an organization's review-topic links.
func (s *Store) ListClassifications(ctx context.Context, orgID string) ([]model.Classification, error) {
	rows, err := s.db.Query(ctx, `
		SELECT rt.review_id, rt.topic_id, rt.similarity
		FROM review_topics rt
		JOIN reviews r ON r.id = rt.review_id
		WHERE r.org_id = ?
		ORDER BY rt.review_id, rt.similarity DESC`, orgID)
	if err != nil {
		return nil, eris.Wrap(err, "store: list classifications")
	}
	defer rows.Close()

	var out []model.Classification
	for rows.Next() {
		var c model.Classification
		if err := rows.Scan(&c.ReviewID, &c.TopicID, &c.Similarity); err != nil {
			return nil, eris.Wrap(err, "store: scan classification")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "store: list classifications iterate")
}

// CountClassifiedReviews returns how many of an organization's reviews
// carry at least one topic.
func (s *Store) CountClassifiedReviews(ctx context.Context, orgID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(DISTINCT rt.review_id)
		FROM review_topics rt
		JOIN reviews r ON r.id = rt.review_id
		WHERE r.org_id = ?`, orgID).Scan(&n)
	return n, eris.Wrap(err, "store: count classified reviews")
}
