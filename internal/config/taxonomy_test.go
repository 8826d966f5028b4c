package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewpulse/reviewpulse/internal/model"
)

func writeTaxonomy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reviewpulse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTaxonomy(t *testing.T) {
	path := writeTaxonomy(t, `
organizations:
  - id: acme
    name: Acme Plumbing
    role: mine
    service_type: plumbing
    topics: inherit
    competitors:
      - id: rival
        priority: 1
  - id: rival
    role: competitor
    service_type: plumbing
    topics:
      - name: Service
        subtopics: [Staff friendliness, Response speed]
  - id: other
    role: tracked
    service_type: roofing
    topics: inherit
`)

	tax, err := LoadTaxonomy(path)
	require.NoError(t, err)
	require.Len(t, tax.Organizations, 3)

	// "inherit" resolves from the first organization with the same
	// service type that declares explicit topics, wherever it appears
	// in the file.
	acme := tax.Organizations[0]
	assert.True(t, acme.Topics.Inherit)
	trees := tax.TopicsFor(acme)
	require.Len(t, trees, 1)
	assert.Equal(t, "Service", trees[0].Name)
	assert.Equal(t, []string{"Staff friendliness", "Response speed"}, trees[0].Subtopics)
	require.Len(t, acme.Competitors, 1)
	assert.Equal(t, "rival", acme.Competitors[0].ID)

	rival := tax.Organizations[1]
	assert.False(t, rival.Topics.Inherit)
	trees = tax.TopicsFor(rival)
	require.Len(t, trees, 1)
	assert.Equal(t, "Service", trees[0].Name)

	// No donor shares the roofing service type, so there is nothing to
	// inherit.
	assert.Empty(t, tax.TopicsFor(tax.Organizations[2]))
}

func TestTopicsForCopiesDonorTrees(t *testing.T) {
	tax := &Taxonomy{Organizations: []OrgSpec{
		{ID: "donor", ServiceType: "plumbing", Topics: TopicsSpec{Trees: []model.TopicTree{
			{Name: "Service", Subtopics: []string{"Staff"}},
		}}},
		{ID: "heir", ServiceType: "plumbing", Topics: TopicsSpec{Inherit: true}},
	}}

	trees := tax.TopicsFor(tax.Organizations[1])
	require.Len(t, trees, 1)
	trees[0].Subtopics[0] = "mutated"
	assert.Equal(t, "Staff", tax.Organizations[0].Topics.Trees[0].Subtopics[0])
}

func TestLoadTaxonomyValidation(t *testing.T) {
	t.Run("InvalidRole", func(t *testing.T) {
		path := writeTaxonomy(t, `
organizations:
  - id: acme
    role: boss
`)
		_, err := LoadTaxonomy(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid role")
	})

	t.Run("DuplicateOrganization", func(t *testing.T) {
		path := writeTaxonomy(t, `
organizations:
  - id: acme
  - id: acme
`)
		_, err := LoadTaxonomy(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate")
	})

	t.Run("BadTopicsScalar", func(t *testing.T) {
		path := writeTaxonomy(t, `
organizations:
  - id: acme
    topics: everything
`)
		_, err := LoadTaxonomy(path)
		require.Error(t, err)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := LoadTaxonomy(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})
}
