package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewpulse/reviewpulse/internal/config"
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

func trackOrg(t *testing.T, s *store.Store, orgID string) {
	t.Helper()
	require.NoError(t, s.UpsertOrganization(context.Background(), model.OrganizationUpdate{
		OrgID: orgID,
		Role:  model.RoleTracked,
	}))
}

// fakeFetcher serves canned results per org and records requested modes.
type fakeFetcher struct {
	results map[string]*model.ScrapeResult
	errs    map[string]error
	full    map[string]bool
}

func (f *fakeFetcher) FetchReviews(_ context.Context, orgID string, full bool) (*model.ScrapeResult, error) {
	if f.full == nil {
		f.full = map[string]bool{}
	}
	f.full[orgID] = full
	if err := f.errs[orgID]; err != nil {
		return nil, err
	}
	if r := f.results[orgID]; r != nil {
		return r, nil
	}
	return &model.ScrapeResult{}, nil
}

func TestSyncOrg(t *testing.T) {
	t.Run("FirstSyncIsFullAndLogged", func(t *testing.T) {
		s := newTestStore(t)
		trackOrg(t, s, "acme")

		fetcher := &fakeFetcher{results: map[string]*model.ScrapeResult{
			"acme": {
				Org: model.OrgInfo{Name: "Acme", Rating: 4.2, ReviewCount: 2},
				Reviews: []model.RawReview{
					{AuthorName: "Ann", Date: "2025-05-01", Text: "Great", Stars: 5},
					{AuthorName: "Bob", Date: "2025-05-02", Text: "Meh", Stars: 3},
				},
				TotalCount: 2,
			},
		}}

		report, err := NewSyncer(s, fetcher).SyncOrg(context.Background(), "acme", false)
		require.NoError(t, err)
		assert.Equal(t, model.SyncFull, report.Mode)
		assert.True(t, fetcher.full["acme"])
		assert.Equal(t, 2, report.Added)

		org, err := s.GetOrganization(context.Background(), "acme")
		require.NoError(t, err)
		assert.Equal(t, "Acme", org.Name)
		assert.Equal(t, model.RoleTracked, org.Role)

		last, err := s.LastSync(context.Background(), "acme")
		require.NoError(t, err)
		assert.Equal(t, model.SyncOK, last.Status)
		assert.Equal(t, 2, last.ReviewsAdded)

		// Second run flips to incremental.
		report, err = NewSyncer(s, fetcher).SyncOrg(context.Background(), "acme", false)
		require.NoError(t, err)
		assert.Equal(t, model.SyncIncremental, report.Mode)
		assert.False(t, fetcher.full["acme"])
		assert.Equal(t, 2, report.Updated)
	})

	t.Run("FailureLogsErrorEntry", func(t *testing.T) {
		s := newTestStore(t)
		trackOrg(t, s, "acme")

		fetcher := &fakeFetcher{errs: map[string]error{"acme": errors.New("scrape blocked")}}

		_, err := NewSyncer(s, fetcher).SyncOrg(context.Background(), "acme", false)
		require.Error(t, err)

		last, lerr := s.LastSync(context.Background(), "acme")
		require.NoError(t, lerr)
		assert.Equal(t, model.SyncError, last.Status)
		assert.Contains(t, last.ErrorMessage, "scrape blocked")

		// A failed run does not unlock incremental mode.
		mode, merr := s.DecideSyncMode(context.Background(), "acme", false)
		require.NoError(t, merr)
		assert.Equal(t, model.SyncFull, mode)
	})

	t.Run("UntrackedOrgRejected", func(t *testing.T) {
		s := newTestStore(t)
		_, err := NewSyncer(s, &fakeFetcher{}).SyncOrg(context.Background(), "ghost", false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not tracked")
	})
}

func TestSyncAllIsolatesFailures(t *testing.T) {
	s := newTestStore(t)
	trackOrg(t, s, "good")
	trackOrg(t, s, "bad")
	trackOrg(t, s, "alsogood")

	fetcher := &fakeFetcher{
		results: map[string]*model.ScrapeResult{
			"good": {Reviews: []model.RawReview{
				{AuthorName: "Ann", Date: "2025-05-01", Text: "x", Stars: 5},
			}},
		},
		errs: map[string]error{"bad": errors.New("boom")},
	}

	reports, err := NewSyncer(s, fetcher).SyncAll(context.Background(), []string{"good", "bad", "alsogood"}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3")
	require.Len(t, reports, 3)
	assert.NoError(t, reports[0].Err)
	assert.Error(t, reports[1].Err)
	assert.NoError(t, reports[2].Err)

	// The failing org never blocked the one after it.
	n, err := s.CountReviews(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// fakeEmbedder returns a fixed-dimension vector derived from each
// text's length.
type fakeEmbedder struct{ calls int }

func (f *fakeEmbedder) Model() string { return "fake-model" }

func (f *fakeEmbedder) EmbedBatched(_ context.Context, texts []string, onProgress func(done, total int)) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1}
	}
	if onProgress != nil {
		onProgress(len(texts), len(texts))
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	return f.EmbedBatched(context.Background(), texts, nil)
}

func TestEmbedOrg(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	trackOrg(t, s, "acme")

	_, err := s.UpsertReviews(ctx, "acme", []model.RawReview{
		{AuthorName: "Ann", Date: "2025-05-01", Text: "Great", Stars: 5},
		{AuthorName: "Bob", Date: "2025-05-02", Text: "", Stars: 4}, // no text, never embedded
	})
	require.NoError(t, err)
	require.NoError(t, s.ReplaceTopics(ctx, "acme", []model.TopicTree{
		{Name: "Service", Subtopics: []string{"Staff"}},
	}))

	embedder := NewEmbedder(s, &fakeEmbedder{})
	report, err := embedder.EmbedOrg(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Reviews)
	assert.Equal(t, 1, report.Topics)

	// Re-running embeds nothing new.
	report, err = embedder.EmbedOrg(ctx, "acme")
	require.NoError(t, err)
	assert.Zero(t, report.Reviews)
	assert.Zero(t, report.Topics)

	candidates, err := s.ListEmbeddedSubtopics(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
}

func TestSemanticSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	trackOrg(t, s, "acme")

	_, err := s.UpsertReviews(ctx, "acme", []model.RawReview{
		{AuthorName: "Ann", Date: "2025-05-01", Text: "short", Stars: 5},
		{AuthorName: "Bob", Date: "2025-05-02", Text: "a much longer review text", Stars: 3},
	})
	require.NoError(t, err)

	fake := &fakeEmbedder{}
	embedder := NewEmbedder(s, fake)
	_, err = embedder.EmbedOrg(ctx, "acme")
	require.NoError(t, err)

	// The fake embeds by text length, so a five-char query lands
	// closest to the five-char review.
	hits, err := NewSearcher(s, fake).SemanticSearch(ctx, "acme", "12345", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "short", hits[0].Review.Text)
}

func TestApply(t *testing.T) {
	// acme links to and inherits topics from an organization declared
	// later in the file; both must resolve.
	tax := &config.Taxonomy{
		Organizations: []config.OrgSpec{
			{ID: "acme", Name: "Acme", Role: "mine", ServiceType: "plumbing",
				Topics:      config.TopicsSpec{Inherit: true},
				Competitors: []config.CompetitorSpec{{ID: "rival", Priority: 1}}},
			{ID: "rival", Role: "competitor", ServiceType: "plumbing",
				Topics: config.TopicsSpec{Trees: []model.TopicTree{
					{Name: "Service", Subtopics: []string{"Staff"}},
				}}},
		},
	}

	t.Run("DryRunWritesNothing", func(t *testing.T) {
		s := newTestStore(t)
		actions, err := NewApplier(s).Apply(context.Background(), tax, true)
		require.NoError(t, err)
		assert.NotEmpty(t, actions)

		orgs, err := s.ListOrganizations(context.Background(), "")
		require.NoError(t, err)
		assert.Empty(t, orgs)
	})

	t.Run("ApplyCreatesEverything", func(t *testing.T) {
		s := newTestStore(t)
		ctx := context.Background()

		_, err := NewApplier(s).Apply(ctx, tax, false)
		require.NoError(t, err)

		org, err := s.GetOrganization(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, model.RoleMine, org.Role)
		assert.Equal(t, "Acme", org.Name)

		topics, err := s.ListTopics(ctx, "acme")
		require.NoError(t, err)
		assert.Len(t, topics, 2)

		rels, err := s.ListRelations(ctx, "acme")
		require.NoError(t, err)
		require.Len(t, rels, 1)
		assert.Equal(t, "rival", rels[0].CompetitorID)
	})

	t.Run("ReapplyKeepsUnchangedTopics", func(t *testing.T) {
		s := newTestStore(t)
		ctx := context.Background()

		_, err := NewApplier(s).Apply(ctx, tax, false)
		require.NoError(t, err)
		before, err := s.ListTopics(ctx, "acme")
		require.NoError(t, err)

		// Unchanged taxonomy must not be replaced (that would wipe
		// embeddings and classifications).
		actions, err := NewApplier(s).Apply(ctx, tax, false)
		require.NoError(t, err)
		for _, a := range actions {
			assert.NotEqual(t, "replace topics", a.Action)
		}

		after, err := s.ListTopics(ctx, "acme")
		require.NoError(t, err)
		require.Len(t, after, len(before))
		for i := range before {
			assert.Equal(t, before[i].ID, after[i].ID)
		}
	})

	t.Run("FailedApplyLeavesNoPartialState", func(t *testing.T) {
		s := newTestStore(t)
		ctx := context.Background()

		bad := &config.Taxonomy{Organizations: []config.OrgSpec{
			{ID: "acme", Role: "mine",
				Competitors: []config.CompetitorSpec{{ID: "ghost"}}},
		}}

		_, err := NewApplier(s).Apply(ctx, bad, false)
		require.Error(t, err)

		// The organization upsert from the first pass must roll back
		// with the failed competitor link.
		orgs, err := s.ListOrganizations(ctx, "")
		require.NoError(t, err)
		assert.Empty(t, orgs)
	})
}
