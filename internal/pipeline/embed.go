package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/reviewpulse/reviewpulse/internal/store"
)

// TextEmbedder is the slice of the embeddings client the pipeline uses.
type TextEmbedder interface {
	Model() string
	EmbedBatched(ctx context.Context, texts []string, onProgress func(done, total int)) ([][]float32, error)
}

// Embedder derives and stores vectors for review texts and topic
// labels.
type Embedder struct {
	store  *store.Store
	client TextEmbedder
}

func NewEmbedder(st *store.Store, client TextEmbedder) *Embedder {
	return &Embedder{store: st, client: client}
}

// EmbedReport counts what one embedding run produced.
type EmbedReport struct {
	OrgID   string `json:"org_id"`
	Reviews int    `json:"reviews"`
	Topics  int    `json:"topics"`
}

// EmbedOrg embeds every review of the organization that has text but no
// stored vector yet, plus any subtopics still missing their label
// embedding. Already-embedded rows are never re-embedded.
func (e *Embedder) EmbedOrg(ctx context.Context, orgID string) (*EmbedReport, error) {
	report := &EmbedReport{OrgID: orgID}

	pending, err := e.store.ListUnembeddedReviews(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if len(pending) > 0 {
		texts := make([]string, len(pending))
		for i, r := range pending {
			texts[i] = r.Text
		}
		vecs, err := e.client.EmbedBatched(ctx, texts, func(done, total int) {
			zap.S().Infow("embedding reviews", "org", orgID, "done", done, "total", total)
		})
		if err != nil {
			return nil, err
		}
		for i, r := range pending {
			if err := e.store.SaveReviewEmbedding(ctx, r.ID, e.client.Model(), vecs[i]); err != nil {
				return nil, err
			}
		}
		report.Reviews = len(pending)
	}

	topicCount, err := e.embedTopics(ctx, orgID)
	if err != nil {
		return nil, err
	}
	report.Topics = topicCount

	zap.S().Infow("embedded organization",
		"org", orgID, "reviews", report.Reviews, "topics", report.Topics)
	return report, nil
}

// embedTopics fills in missing subtopic label embeddings. Parent topics
// never get embeddings; they only aggregate.
func (e *Embedder) embedTopics(ctx context.Context, orgID string) (int, error) {
	topics, err := e.store.ListTopics(ctx, orgID)
	if err != nil {
		return 0, err
	}

	var pending []int64
	var labels []string
	for _, t := range topics {
		if t.IsParent() || t.Embedding != nil {
			continue
		}
		pending = append(pending, t.ID)
		labels = append(labels, t.Name)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	vecs, err := e.client.EmbedBatched(ctx, labels, nil)
	if err != nil {
		return 0, err
	}
	for i, id := range pending {
		if err := e.store.SaveTopicEmbedding(ctx, id, vecs[i]); err != nil {
			return 0, err
		}
	}
	return len(pending), nil
}
