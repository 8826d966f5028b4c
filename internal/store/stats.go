package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"

	"github.com/reviewpulse/reviewpulse/internal/model"
)

// StatsSummary aggregates the state of one organization's data.
type StatsSummary struct {
	OrgID             string              `json:"org_id"`
	Name              string              `json:"name"`
	TotalReviews      int                 `json:"total_reviews"`
	AverageStars      float64             `json:"average_stars"`
	EarliestDate      string              `json:"earliest_date,omitempty"`
	LatestDate        string              `json:"latest_date,omitempty"`
	StarCounts        [5]int              `json:"star_counts"` // index 0 holds 1-star reviews
	ResponseRate      float64             `json:"response_rate"`
	EmbeddedReviews   int                 `json:"embedded_reviews"`
	ClassifiedReviews int                 `json:"classified_reviews"`
	LastSync          *model.SyncLogEntry `json:"last_sync,omitempty"`
}

// Stats computes the summary counters for an organization.
func (s *Store) Stats(ctx context.Context, orgID string) (*StatsSummary, error) {
	org, err := s.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	summary := &StatsSummary{OrgID: orgID, Name: org.Name}

	err = s.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(AVG(stars), 0),
			COALESCE(MIN(date), ''), COALESCE(MAX(date), '')
		FROM reviews WHERE org_id = ?`, orgID,
	).Scan(&summary.TotalReviews, &summary.AverageStars, &summary.EarliestDate, &summary.LatestDate)
	if err != nil {
		return nil, eris.Wrap(err, "store: stats counters")
	}

	if err := s.statsDistribution(ctx, orgID, summary); err != nil {
		return nil, err
	}

	err = s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM review_embeddings re
		JOIN reviews r ON r.id = re.review_id WHERE r.org_id = ?`, orgID,
	).Scan(&summary.EmbeddedReviews)
	if err != nil {
		return nil, eris.Wrap(err, "store: stats embedded count")
	}

	summary.ClassifiedReviews, err = s.CountClassifiedReviews(ctx, orgID)
	if err != nil {
		return nil, err
	}

	last, err := s.LastSync(ctx, orgID)
	if err != nil && !errors.Is(err, ErrNoRows) {
		return nil, err
	}
	summary.LastSync = last
	return summary, nil
}

// statsDistribution fills the star histogram and business response rate.
// Bucketing happens here rather than in SQL so both backends behave
// identically on half-step ratings.
func (s *Store) statsDistribution(ctx context.Context, orgID string, summary *StatsSummary) error {
	rows, err := s.db.Query(ctx, `
		SELECT stars, COALESCE(business_response, '') FROM reviews WHERE org_id = ?`, orgID)
	if err != nil {
		return eris.Wrap(err, "store: stats distribution")
	}
	defer rows.Close()

	total, answered := 0, 0
	for rows.Next() {
		var (
			stars    float64
			response string
		)
		if err := rows.Scan(&stars, &response); err != nil {
			return eris.Wrap(err, "store: scan stats row")
		}
		total++
		if response != "" {
			answered++
		}
		if bucket := int(stars+0.5) - 1; bucket >= 0 && bucket < len(summary.StarCounts) {
			summary.StarCounts[bucket]++
		}
	}
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "store: stats distribution iterate")
	}
	if total > 0 {
		summary.ResponseRate = float64(answered) / float64(total)
	}
	return nil
}

// TrendPoint is the review volume and average rating for one period.
type TrendPoint struct {
	Period       string  `json:"period"`
	ReviewCount  int     `json:"review_count"`
	AverageStars float64 `json:"average_stars"`
}

// Trends buckets an organization's dated reviews by week, month or
// quarter. Bucketing happens here rather than in SQL so both backends
// behave identically; undated reviews are skipped.
func (s *Store) Trends(ctx context.Context, orgID, groupBy, since string) ([]TrendPoint, error) {
	switch groupBy {
	case "week", "month", "quarter":
	default:
		return nil, eris.Errorf("store: unknown trend grouping %q", groupBy)
	}

	query := `SELECT date, stars FROM reviews WHERE org_id = ? AND date IS NOT NULL`
	args := []any{orgID}
	if since != "" {
		query += ` AND date >= ?`
		args = append(args, since)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: trends")
	}
	defer rows.Close()

	type bucket struct {
		count int
		sum   float64
	}
	buckets := map[string]*bucket{}
	for rows.Next() {
		var (
			date  string
			stars float64
		)
		if err := rows.Scan(&date, &stars); err != nil {
			return nil, eris.Wrap(err, "store: scan trend row")
		}
		period, ok := trendPeriod(date, groupBy)
		if !ok {
			continue
		}
		b := buckets[period]
		if b == nil {
			b = &bucket{}
			buckets[period] = b
		}
		b.count++
		b.sum += stars
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: trends iterate")
	}

	points := make([]TrendPoint, 0, len(buckets))
	for period, b := range buckets {
		points = append(points, TrendPoint{
			Period:       period,
			ReviewCount:  b.count,
			AverageStars: b.sum / float64(b.count),
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Period < points[j].Period })
	return points, nil
}

// trendPeriod maps an ISO date string to its bucket label.
func trendPeriod(date, groupBy string) (string, bool) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return "", false
	}
	switch groupBy {
	case "week":
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week), true
	case "month":
		return t.Format("2006-01"), true
	case "quarter":
		return fmt.Sprintf("%04d-Q%d", t.Year(), (int(t.Month())-1)/3+1), true
	}
	return "", false
}

// SearchReviews finds reviews whose text or business response contains
// the query, matched case-insensitively with Unicode case folding. The
// date and stars filters of opts narrow the candidate set; opts.Limit
// caps the number of matches returned.
func (s *Store) SearchReviews(ctx context.Context, orgID, query string, opts QueryReviewsOpts) ([]model.Review, error) {
	limit := opts.Limit
	opts.Limit = 0
	reviews, err := s.ListReviews(ctx, orgID, opts)
	if err != nil {
		return nil, err
	}

	folder := cases.Fold()
	needle := folder.String(query)

	var out []model.Review
	for _, r := range reviews {
		if strings.Contains(folder.String(r.Text), needle) ||
			strings.Contains(folder.String(r.BusinessResponse), needle) {
			out = append(out, r)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// UnansweredReviews returns reviews with no business response, newest
// first, for response-rate follow-up.
func (s *Store) UnansweredReviews(ctx context.Context, orgID string, limit int) ([]model.Review, error) {
	query := `
		SELECT id, org_id, review_key, author_name, author_icon_url, author_profile_url,
			date, text, stars, likes, dislikes, review_url, business_response, first_seen_at, updated_at
		FROM reviews
		WHERE org_id = ? AND (business_response IS NULL OR business_response = '')
		ORDER BY date DESC`
	args := []any{orgID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: unanswered reviews")
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
	return reviews, eris.Wrap(rows.Err(), "store: unanswered reviews iterate")
}
