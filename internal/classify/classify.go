// Package classify assigns reviews to taxonomy subtopics by cosine
// similarity between review and topic embeddings.
package classify

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/reviewpulse/reviewpulse/internal/model"
	"github.com/reviewpulse/reviewpulse/internal/store"
	"github.com/reviewpulse/reviewpulse/internal/vector"
)

const (
	// DefaultThreshold is the minimum cosine similarity for a topic
	// assignment.
	DefaultThreshold = 0.3
	// DefaultMaxTopics caps how many subtopics one review can carry.
	DefaultMaxTopics = 3
)

// Options tune a classification run. Values are taken literally, so a
// zero threshold really admits similarity-0 matches; callers wanting
// the defaults start from DefaultOptions.
type Options struct {
	Threshold float64
	MaxTopics int
}

// DefaultOptions returns the standard tuning.
func DefaultOptions() Options {
	return Options{Threshold: DefaultThreshold, MaxTopics: DefaultMaxTopics}
}

// Match is one candidate topic with its similarity to a review.
type Match struct {
	TopicID    int64
	Similarity float64
}

// Assign ranks the candidate topics against one review vector and
// returns at most maxTopics matches at or above the threshold, sorted
// by descending similarity. Ties keep candidate order, so repeated runs
// over the same inputs produce identical assignments.
func Assign(vec []float32, candidates []model.Topic, opts Options) []Match {
	matches := make([]Match, 0, len(candidates))
	for _, t := range candidates {
		sim := vector.Cosine(vec, t.Embedding)
		if sim >= opts.Threshold {
			matches = append(matches, Match{TopicID: t.ID, Similarity: sim})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > opts.MaxTopics {
		matches = matches[:opts.MaxTopics]
	}
	return matches
}

// Result summarizes one organization's classification run.
type Result struct {
	Reviews    int  // embedded reviews considered
	Classified int  // reviews with at least one match
	Assigned   int  // total review-topic assignments
	Skipped    bool // no embedded subtopics, nothing touched
}

// Classifier runs classification against the store.
type Classifier struct {
	store *store.Store
}

func New(st *store.Store) *Classifier { return &Classifier{store: st} }

// ClassifyOrg re-derives all topic assignments for one organization
// from its stored embeddings. The run replaces previous assignments
// wholesale; when the organization has no embedded subtopics the run is
// skipped and existing assignments are left untouched.
func (c *Classifier) ClassifyOrg(ctx context.Context, orgID string, opts Options) (*Result, error) {
	candidates, err := c.store.ListEmbeddedSubtopics(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		zap.S().Infow("no embedded subtopics, skipping classification", "org", orgID)
		return &Result{Skipped: true}, nil
	}

	embeddings, err := c.store.ListReviewEmbeddings(ctx, orgID)
	if err != nil {
		return nil, err
	}

	var rows []model.Classification
	classified := 0
	for _, emb := range embeddings {
		matches := Assign(emb.Vector, candidates, opts)
		if len(matches) > 0 {
			classified++
		}
		for _, m := range matches {
			rows = append(rows, model.Classification{
				ReviewID:   emb.ReviewID,
				TopicID:    m.TopicID,
				Similarity: m.Similarity,
			})
		}
	}

	if err := c.store.ReplaceClassifications(ctx, orgID, rows); err != nil {
		return nil, eris.Wrapf(err, "classify: replace assignments for %s", orgID)
	}

	zap.S().Infow("classified reviews",
		"org", orgID, "reviews", len(embeddings), "classified", classified, "assignments", len(rows))
	return &Result{Reviews: len(embeddings), Classified: classified, Assigned: len(rows)}, nil
}
