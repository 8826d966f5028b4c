package scorer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewpulse/reviewpulse/internal/model"
	"github.com/reviewpulse/reviewpulse/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s := store.New(db)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestComputeOrgScore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	name := "Acme"
	require.NoError(t, s.UpsertOrganization(ctx, model.OrganizationUpdate{
		OrgID: "acme", Name: &name, Role: model.RoleMine,
	}))

	recent := time.Now().AddDate(0, 0, -10).Format("2006-01-02")
	_, err := s.UpsertReviews(ctx, "acme", []model.RawReview{
		{AuthorName: "Ann", Date: recent, Text: "friendly staff", Stars: 5},
		{AuthorName: "Bob", Date: recent, Text: "rude staff", Stars: 1},
		{AuthorName: "Cal", Date: recent, Text: "unrelated", Stars: 4},
	})
	require.NoError(t, err)

	require.NoError(t, s.ReplaceTopics(ctx, "acme", []model.TopicTree{
		{Name: "Service", Subtopics: []string{"Staff", "Speed"}},
	}))
	parents, err := s.ListParentTopics(ctx, "acme")
	require.NoError(t, err)
	subs, err := s.ListSubtopics(ctx, parents[0].ID)
	require.NoError(t, err)

	reviews, err := s.ListReviews(ctx, "acme", store.QueryReviewsOpts{})
	require.NoError(t, err)
	var staffReviews []model.Classification
	for _, r := range reviews {
		if r.Text == "friendly staff" || r.Text == "rude staff" {
			staffReviews = append(staffReviews, model.Classification{
				ReviewID: r.ID, TopicID: subs[0].ID, Similarity: 0.9,
			})
		}
	}
	require.NoError(t, s.ReplaceClassifications(ctx, "acme", staffReviews))

	sc := New(s)
	result, err := sc.ComputeOrgScore(ctx, "acme")
	require.NoError(t, err)

	assert.Equal(t, "Acme", result.Name)
	assert.Equal(t, 3, result.TotalReviews)
	require.Len(t, result.Topics, 1)

	service := result.Topics[0]
	assert.Equal(t, "Service", service.Name)
	// Both classified reviews are recent, so weights cancel:
	// (10 + 2) / 2 = 6.0.
	assert.Equal(t, 6.0, service.Score)
	assert.Equal(t, 2, service.ReviewCount)
	assert.Equal(t, model.ConfidenceLow, service.Confidence)

	require.Len(t, service.Subtopics, 2)
	// Sorted by descending score: Staff (6.0) before empty Speed (0).
	assert.Equal(t, "Staff", service.Subtopics[0].Name)
	assert.Equal(t, 6.0, service.Subtopics[0].Score)
	assert.Equal(t, "Speed", service.Subtopics[1].Name)
	assert.Zero(t, service.Subtopics[1].Score)
	assert.Zero(t, service.Subtopics[1].ReviewCount)

	assert.Equal(t, 6.0, result.OverallScore)
}

func TestRefreshStoredScores(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertOrganization(ctx, model.OrganizationUpdate{OrgID: "acme", Role: model.RoleMine}))
	require.NoError(t, s.ReplaceTopics(ctx, "acme", []model.TopicTree{
		{Name: "Service", Subtopics: []string{"Staff", "Speed"}},
	}))

	// The cache stays empty until an explicit refresh.
	sc := New(s)
	_, err := sc.ComputeOrgScore(ctx, "acme")
	require.NoError(t, err)
	cached, err := s.ListStoredScores(ctx, "acme")
	require.NoError(t, err)
	assert.Empty(t, cached)

	_, err = sc.RefreshStoredScores(ctx, "acme")
	require.NoError(t, err)
	cached, err = s.ListStoredScores(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, cached, 3) // one parent plus two subtopics
}
