// Package scorer derives per-topic quality scores from classified
// reviews. Scores are recomputed from reviews on demand; the org_scores
// table only caches the latest explicit refresh.
package scorer

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/reviewpulse/reviewpulse/internal/model"
	"github.com/reviewpulse/reviewpulse/internal/store"
)

// A month is 30 days for recency purposes.
const month = 30 * 24 * time.Hour

// BaseScore maps a star rating onto the 0-10 scale.
func BaseScore(stars float64) float64 { return 2 * stars }

// RecencyWeight weights a review by its age: recent opinions count
// double, ones within a year count one and a half, older ones count
// once. Unparseable dates get the neutral weight.
func RecencyWeight(date string, now time.Time) float64 {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return 1.0
	}
	age := now.Sub(t)
	switch {
	case age <= 6*month:
		return 2.0
	case age <= 12*month:
		return 1.5
	default:
		return 1.0
	}
}

// ConfidenceFor grades a sample size.
func ConfidenceFor(reviewCount int) model.Confidence {
	switch {
	case reviewCount >= 20:
		return model.ConfidenceHigh
	case reviewCount >= 5:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

// round1 rounds to one decimal place, the precision all reported scores
// carry.
func round1(v float64) float64 { return math.Round(v*10) / 10 }

// TopicScore computes the recency-weighted average score for one set of
// classified reviews. Returns a zero score with low confidence for an
// empty set.
func TopicScore(reviews []model.Review, now time.Time) (float64, model.Confidence) {
	if len(reviews) == 0 {
		return 0, model.ConfidenceLow
	}
	var weightedSum, weightTotal float64
	for _, r := range reviews {
		w := RecencyWeight(r.Date, now)
		weightedSum += BaseScore(r.Stars) * w
		weightTotal += w
	}
	return round1(weightedSum / weightTotal), ConfidenceFor(len(reviews))
}

// weightedAverage combines child scores by their review counts.
func weightedAverage(scores []model.TopicScore) (float64, int) {
	var sum float64
	var count int
	for _, s := range scores {
		sum += s.Score * float64(s.ReviewCount)
		count += s.ReviewCount
	}
	if count == 0 {
		return 0, 0
	}
	return round1(sum / float64(count)), count
}

// Scorer computes organization scores from the store.
type Scorer struct {
	store *store.Store
	now   func() time.Time
}

func New(st *store.Store) *Scorer {
	return &Scorer{store: st, now: time.Now}
}

// ComputeOrgScore builds the full score breakdown for one organization:
// subtopic scores from their classified reviews, parent scores as
// review-count-weighted averages of their subtopics, and the overall
// score as the weighted average across parents. Topics are reported in
// descending score order.
func (s *Scorer) ComputeOrgScore(ctx context.Context, orgID string) (*model.OrgScore, error) {
	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, eris.Wrapf(err, "scorer: load organization %s", orgID)
	}

	parents, err := s.store.ListParentTopics(ctx, orgID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	result := &model.OrgScore{OrgID: orgID, Name: org.Name}
	for _, parent := range parents {
		subs, err := s.store.ListSubtopics(ctx, parent.ID)
		if err != nil {
			return nil, err
		}

		var subScores []model.TopicScore
		for _, sub := range subs {
			reviews, err := s.store.ReviewsForTopic(ctx, sub.ID)
			if err != nil {
				return nil, err
			}
			score, conf := TopicScore(reviews, now)
			subScores = append(subScores, model.TopicScore{
				TopicID:     sub.ID,
				Name:        sub.Name,
				Score:       score,
				ReviewCount: len(reviews),
				Confidence:  conf,
			})
		}
		sortByScore(subScores)

		parentScore, parentCount := weightedAverage(subScores)
		result.Topics = append(result.Topics, model.TopicScore{
			TopicID:     parent.ID,
			Name:        parent.Name,
			Score:       parentScore,
			ReviewCount: parentCount,
			Confidence:  ConfidenceFor(parentCount),
			Subtopics:   subScores,
		})
	}
	sortByScore(result.Topics)

	overall, _ := weightedAverage(result.Topics)
	result.OverallScore = overall
	result.TotalReviews, err = s.store.CountReviews(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RefreshStoredScores recomputes an organization's scores and writes
// them to the cache table, parents and subtopics alike.
func (s *Scorer) RefreshStoredScores(ctx context.Context, orgID string) (*model.OrgScore, error) {
	result, err := s.ComputeOrgScore(ctx, orgID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var rows []model.StoredScore
	for _, parent := range result.Topics {
		rows = append(rows, storedRow(orgID, parent, now))
		for _, sub := range parent.Subtopics {
			rows = append(rows, storedRow(orgID, sub, now))
		}
	}
	if err := s.store.UpsertScores(ctx, rows); err != nil {
		return nil, err
	}
	return result, nil
}

func storedRow(orgID string, t model.TopicScore, at time.Time) model.StoredScore {
	return model.StoredScore{
		OrgID:       orgID,
		TopicID:     t.TopicID,
		Score:       t.Score,
		ReviewCount: t.ReviewCount,
		Confidence:  t.Confidence,
		ComputedAt:  at,
	}
}

func sortByScore(scores []model.TopicScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})
}
