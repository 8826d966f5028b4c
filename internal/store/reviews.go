package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/reviewpulse/reviewpulse/internal/model"
)

// ReviewKey derives the stable identity of a review. A canonical source
// URL is the identity when present; otherwise a sha256 over org id,
// author, date and the first 100 characters of the text. Two reviews by
// an anonymous author on the same day with identical text prefixes
// collide deterministically. This is accepted: changing the hash input
// would orphan the keys of already-stored reviews.
func ReviewKey(orgID string, r model.RawReview) string {
	if r.ReviewURL != "" {
		return r.ReviewURL
	}
	text := r.Text
	if runes := []rune(text); len(runes) > 100 {
		text = string(runes[:100])
	}
	raw := fmt.Sprintf("%s|%s|%s|%s", orgID, r.AuthorName, r.Date, text)
	sum := sha256.Sum256([]byte(raw))
	return "sha256:" + hex.EncodeToString(sum[:])
}

// QueryReviewsOpts filters ListReviews.
type QueryReviewsOpts struct {
	Since    string
	StarsMin float64
	StarsMax float64
	Limit    int
}

// UpsertReviews merges a batch of raw reviews into the store inside one
// transaction: either the whole batch's effects are visible or none.
// Existing rows keep their identity, organization and first-seen
// timestamp; text, stars, likes/dislikes and the business response are
// overwritten.
func (s *Store) UpsertReviews(ctx context.Context, orgID string, reviews []model.RawReview) (model.UpsertResult, error) {
	var res model.UpsertResult
	err := s.db.Transaction(ctx, func(ctx context.Context) error {
		now := time.Now().UTC()
		for _, r := range reviews {
			key := ReviewKey(orgID, r)

			var existingID int64
			err := s.db.QueryRow(ctx, `SELECT id FROM reviews WHERE review_key = ?`, key).Scan(&existingID)
			exists := err == nil
			if err != nil && !errors.Is(err, ErrNoRows) {
				return eris.Wrap(err, "store: check review existence")
			}

			_, err = s.db.Exec(ctx, `
				INSERT INTO reviews (org_id, review_key, author_name, author_icon_url, author_profile_url,
					date, text, stars, likes, dislikes, review_url, business_response, first_seen_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(review_key) DO UPDATE SET
					text = excluded.text,
					stars = excluded.stars,
					likes = excluded.likes,
					dislikes = excluded.dislikes,
					business_response = excluded.business_response,
					updated_at = excluded.updated_at`,
				orgID, key, nullable(r.AuthorName), nullable(r.AuthorIconURL), nullable(r.AuthorProfileURL),
				nullable(r.Date), nullable(r.Text), r.Stars, r.Likes, r.Dislikes,
				nullable(r.ReviewURL), nullable(r.BusinessResponse), now, now,
			)
			if err != nil {
				return eris.Wrapf(err, "store: upsert review %s", key)
			}
			if exists {
				res.Updated++
			} else {
				res.Added++
			}
		}
		return nil
	})
	if err != nil {
		return model.UpsertResult{}, err
	}
	return res, nil
}

// ListReviews returns an organization's reviews, newest first.
func (s *Store) ListReviews(ctx context.Context, orgID string, opts QueryReviewsOpts) ([]model.Review, error) {
	query := `
		SELECT id, org_id, review_key, author_name, author_icon_url, author_profile_url,
			date, text, stars, likes, dislikes, review_url, business_response, first_seen_at, updated_at
		FROM reviews WHERE org_id = ?`
	args := []any{orgID}

	if opts.Since != "" {
		query += ` AND date >= ?`
		args = append(args, opts.Since)
	}
	if opts.StarsMin > 0 {
		query += ` AND stars >= ?`
		args = append(args, opts.StarsMin)
	}
	if opts.StarsMax > 0 {
		query += ` AND stars <= ?`
		args = append(args, opts.StarsMax)
	}
	query += ` ORDER BY date DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list reviews")
	}
	defer rows.Close()

	var reviews []model.Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, *r)
	}
	return reviews, eris.Wrap(rows.Err(), "store: list reviews iterate")
}

// CountReviews returns the number of stored reviews for an organization.
func (s *Store) CountReviews(ctx context.Context, orgID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM reviews WHERE org_id = ?`, orgID).Scan(&n)
	return n, eris.Wrap(err, "store: count reviews")
}

// ReviewsForTopic returns the stars/date pairs of reviews classified
// under one subtopic, skipping undated reviews.
func (s *Store) ReviewsForTopic(ctx context.Context, topicID int64) ([]model.Review, error) {
	rows, err := s.db.Query(ctx, `
		SELECT r.id, r.org_id, r.review_key, r.author_name, r.author_icon_url, r.author_profile_url,
			r.date, r.text, r.stars, r.likes, r.dislikes, r.review_url, r.business_response,
			r.first_seen_at, r.updated_at
		FROM review_topics rt
		JOIN reviews r ON r.id = rt.review_id
		WHERE rt.topic_id = ? AND r.date IS NOT NULL`, topicID)
	if err != nil {
		return nil, eris.Wrap(err, "store: reviews for topic")
	}
	defer rows.Close()

	var reviews []model.Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, *r)
	}
	return reviews, eris.Wrap(rows.Err(), "store: reviews for topic iterate")
}

func scanReview(r Row) (*model.Review, error) {
	var (
		rev        model.Review
		author     sql.NullString
		iconURL    sql.NullString
		profileURL sql.NullString
		date       sql.NullString
		text       sql.NullString
		reviewURL  sql.NullString
		response   sql.NullString
	)
	err := r.Scan(&rev.ID, &rev.OrgID, &rev.ReviewKey, &author, &iconURL, &profileURL,
		&date, &text, &rev.Stars, &rev.Likes, &rev.Dislikes, &reviewURL, &response,
		&rev.FirstSeenAt, &rev.UpdatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "store: scan review")
	}
	rev.AuthorName = author.String
	rev.AuthorIconURL = iconURL.String
	rev.AuthorProfileURL = profileURL.String
	rev.Date = date.String
	rev.Text = text.String
	rev.ReviewURL = reviewURL.String
	rev.BusinessResponse = response.String
	return &rev, nil
}

// nullable maps empty strings to NULL so the schema's nullable columns
// stay NULL rather than holding empty strings.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
