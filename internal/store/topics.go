package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"

	"github.com/reviewpulse/reviewpulse/internal/model"
)

// ReplaceTopics rebuilds an organization's topic taxonomy from the
// configured trees: existing topics (and anything hanging off them) are
// cleared, then parents and subtopics are reinserted, all in one
// transaction. Topic embeddings are reset by this and must be re-derived.
func (s *Store) ReplaceTopics(ctx context.Context, orgID string, trees []model.TopicTree) error {
	return s.db.Transaction(ctx, func(ctx context.Context) error {
		if err := s.clearTopics(ctx, orgID); err != nil {
			return err
		}
		now := time.Now().UTC()
		for _, tree := range trees {
			var parentID int64
			err := s.db.QueryRow(ctx, `
				INSERT INTO topics (org_id, parent_id, name, created_at)
				VALUES (?, NULL, ?, ?) RETURNING id`,
				orgID, tree.Name, now,
			).Scan(&parentID)
			if err != nil {
				return eris.Wrapf(err, "store: insert parent topic %q", tree.Name)
			}
			for _, sub := range tree.Subtopics {
				if _, err := s.db.Exec(ctx, `
					INSERT INTO topics (org_id, parent_id, name, created_at)
					VALUES (?, ?, ?, ?)`,
					orgID, parentID, sub, now,
				); err != nil {
					return eris.Wrapf(err, "store: insert subtopic %q", sub)
				}
			}
		}
		return nil
	})
}

// clearTopics removes an organization's topics along with dependent
// classifications and cached scores. Children go before parents to keep
// the self-referencing foreign key satisfied.
func (s *Store) clearTopics(ctx context.Context, orgID string) error {
	steps := []string{
		`DELETE FROM review_topics WHERE topic_id IN (SELECT id FROM topics WHERE org_id = ?)`,
		`DELETE FROM org_scores WHERE topic_id IN (SELECT id FROM topics WHERE org_id = ?)`,
		`DELETE FROM topics WHERE org_id = ? AND parent_id IS NOT NULL`,
		`DELETE FROM topics WHERE org_id = ?`,
	}
	for _, q := range steps {
		if _, err := s.db.Exec(ctx, q, orgID); err != nil {
			return eris.Wrapf(err, "store: clear topics for %s", orgID)
		}
	}
	return nil
}

// ListTopics returns all topics of an organization in insertion order.
func (s *Store) ListTopics(ctx context.Context, orgID string) ([]model.Topic, error) {
	return s.queryTopics(ctx, `
		SELECT id, org_id, parent_id, name, vector, created_at
		FROM topics WHERE org_id = ? ORDER BY id`, orgID)
}

// ListParentTopics returns the top-level aggregation topics.
func (s *Store) ListParentTopics(ctx context.Context, orgID string) ([]model.Topic, error) {
	return s.queryTopics(ctx, `
		SELECT id, org_id, parent_id, name, vector, created_at
		FROM topics WHERE org_id = ? AND parent_id IS NULL ORDER BY id`, orgID)
}

// ListSubtopics returns the children of one parent topic.
func (s *Store) ListSubtopics(ctx context.Context, parentID int64) ([]model.Topic, error) {
	return s.queryTopics(ctx, `
		SELECT id, org_id, parent_id, name, vector, created_at
		FROM topics WHERE parent_id = ? ORDER BY id`, parentID)
}

// ListEmbeddedSubtopics returns the organization's subtopics that carry
// an embedding, which is the classification candidate set.
func (s *Store) ListEmbeddedSubtopics(ctx context.Context, orgID string) ([]model.Topic, error) {
	return s.queryTopics(ctx, `
		SELECT id, org_id, parent_id, name, vector, created_at
		FROM topics WHERE org_id = ? AND parent_id IS NOT NULL AND vector IS NOT NULL
		ORDER BY id`, orgID)
}

// SaveTopicEmbedding stores the embedding for a topic label.
func (s *Store) SaveTopicEmbedding(ctx context.Context, topicID int64, vec []float32) error {
	n, err := s.db.Exec(ctx, `UPDATE topics SET vector = ? WHERE id = ?`,
		s.encodeVector(vec), topicID)
	if err != nil {
		return eris.Wrapf(err, "store: save topic embedding %d", topicID)
	}
	if n == 0 {
		return eris.Errorf("store: topic not found: %d", topicID)
	}
	return nil
}

func (s *Store) queryTopics(ctx context.Context, query string, args ...any) ([]model.Topic, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: query topics")
	}
	defer rows.Close()

	var topics []model.Topic
	for rows.Next() {
		var (
			t        model.Topic
			parentID sql.NullInt64
			raw      []byte
		)
		if err := rows.Scan(&t.ID, &t.OrgID, &parentID, &t.Name, &raw, &t.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan topic")
		}
		t.ParentID = parentID.Int64
		if raw != nil {
			vec, err := s.decodeVector(raw)
			if err != nil {
				return nil, eris.Wrapf(err, "store: decode topic %d embedding", t.ID)
			}
			t.Embedding = vec
		}
		topics = append(topics, t)
	}
	return topics, eris.Wrap(rows.Err(), "store: query topics iterate")
}
