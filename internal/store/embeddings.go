package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/reviewpulse/reviewpulse/internal/model"
)

// SaveReviewEmbedding stores (or replaces) the single embedding of a
// review's text.
func (s *Store) SaveReviewEmbedding(ctx context.Context, reviewID int64, modelName string, vec []float32) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO review_embeddings (review_id, model, vector, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(review_id) DO UPDATE SET
			model = excluded.model,
			vector = excluded.vector,
			created_at = excluded.created_at`,
		reviewID, modelName, s.encodeVector(vec), time.Now().UTC(),
	)
	return eris.Wrapf(err, "store: save embedding for review %d", reviewID)
}

// GetReviewEmbedding returns a review's stored embedding, or ErrNoRows.
func (s *Store) GetReviewEmbedding(ctx context.Context, reviewID int64) (*model.Embedding, error) {
	var (
		emb model.Embedding
		raw []byte
	)
	err := s.db.QueryRow(ctx, `
		SELECT review_id, model, vector, created_at
		FROM review_embeddings WHERE review_id = ?`, reviewID,
	).Scan(&emb.ReviewID, &emb.Model, &raw, &emb.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "store: get embedding for review %d", reviewID)
	}
	vec, err := s.decodeVector(raw)
	if err != nil {
		return nil, eris.Wrapf(err, "store: decode embedding for review %d", reviewID)
	}
	emb.Vector = vec
	return &emb, nil
}

// UnembeddedReview is a review awaiting an embedding.
type UnembeddedReview struct {
	ID   int64
	Text string
}

// ListUnembeddedReviews returns the organization's reviews with
// non-empty text and no stored embedding. Reviews with empty text never
// receive an embedding.
func (s *Store) ListUnembeddedReviews(ctx context.Context, orgID string) ([]UnembeddedReview, error) {
	rows, err := s.db.Query(ctx, `
		SELECT r.id, r.text FROM reviews r
		LEFT JOIN review_embeddings re ON r.id = re.review_id
		WHERE r.org_id = ? AND re.review_id IS NULL AND r.text IS NOT NULL AND r.text != ''
		ORDER BY r.id`, orgID)
	if err != nil {
		return nil, eris.Wrap(err, "store: list unembedded reviews")
	}
	defer rows.Close()

	var out []UnembeddedReview
	for rows.Next() {
		var r UnembeddedReview
		if err := rows.Scan(&r.ID, &r.Text); err != nil {
			return nil, eris.Wrap(err, "store: scan unembedded review")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "store: list unembedded reviews iterate")
}

// ListReviewEmbeddings returns all stored embeddings for an
// organization's reviews.
func (s *Store) ListReviewEmbeddings(ctx context.Context, orgID string) ([]model.Embedding, error) {
	rows, err := s.db.Query(ctx, `
		SELECT re.review_id, re.model, re.vector, re.created_at
		FROM review_embeddings re
		JOIN reviews r ON r.id = re.review_id
		WHERE r.org_id = ?
		ORDER BY re.review_id`, orgID)
	if err != nil {
		return nil, eris.Wrap(err, "store: list review embeddings")
	}
	defer rows.Close()

	var out []model.Embedding
	for rows.Next() {
		var (
			emb model.Embedding
			raw []byte
		)
		if err := rows.Scan(&emb.ReviewID, &emb.Model, &raw, &emb.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan review embedding")
		}
		vec, err := s.decodeVector(raw)
		if err != nil {
			return nil, eris.Wrapf(err, "store: decode embedding for review %d", emb.ReviewID)
		}
		emb.Vector = vec
		out = append(out, emb)
	}
	return out, eris.Wrap(rows.Err(), "store: list review embeddings iterate")
}
