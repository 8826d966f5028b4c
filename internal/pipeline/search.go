package pipeline

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/reviewpulse/reviewpulse/internal/model"
	"github.com/reviewpulse/reviewpulse/internal/store"
	"github.com/reviewpulse/reviewpulse/internal/vector"
)

// queryEmbedder embeds a single search query.
type queryEmbedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Searcher ranks stored reviews against a free-text query by embedding
// similarity.
type Searcher struct {
	store  *store.Store
	client queryEmbedder
}

func NewSearcher(st *store.Store, client queryEmbedder) *Searcher {
	return &Searcher{store: st, client: client}
}

// SearchHit pairs a review with its similarity to the query.
type SearchHit struct {
	Review     model.Review `json:"review"`
	Similarity float64      `json:"similarity"`
}

// SemanticSearch embeds the query and returns the organization's most
// similar embedded reviews, best first.
func (s *Searcher) SemanticSearch(ctx context.Context, orgID, query string, limit int) ([]SearchHit, error) {
	vecs, err := s.client.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: embed search query")
	}
	queryVec := vecs[0]

	embeddings, err := s.store.ListReviewEmbeddings(ctx, orgID)
	if err != nil {
		return nil, err
	}
	reviews, err := s.store.ListReviews(ctx, orgID, store.QueryReviewsOpts{})
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]model.Review, len(reviews))
	for _, r := range reviews {
		byID[r.ID] = r
	}

	hits := make([]SearchHit, 0, len(embeddings))
	for _, emb := range embeddings {
		review, ok := byID[emb.ReviewID]
		if !ok {
			continue
		}
		hits = append(hits, SearchHit{
			Review:     review,
			Similarity: vector.Cosine(queryVec, emb.Vector),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}
