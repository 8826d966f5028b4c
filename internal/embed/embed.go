// Package embed turns review and topic text into vectors via the
// OpenAI embeddings API.
package embed

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	openai "github.com/sashabaranov/go-openai"
)

// DefaultBatchSize is how many texts one API request carries.
const DefaultBatchSize = 100

// api is the slice of the OpenAI client the embedder uses; tests swap
// in a fake.
type api interface {
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// Config selects the embeddings endpoint and model.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	BatchSize int
}

// Client embeds batches of texts with a fixed model.
type Client struct {
	api       api
	model     string
	batchSize int
}

// New builds a client against the real OpenAI API.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, eris.New("embed: missing API key")
	}
	if cfg.Model == "" {
		return nil, eris.New("embed: missing model name")
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	return &Client{
		api:       openai.NewClientWithConfig(oc),
		model:     cfg.Model,
		batchSize: batch,
	}, nil
}

// Model returns the configured embedding model name.
func (c *Client) Model() string { return c.model }

// EmbedTexts embeds one batch of texts, returning vectors in input
// order regardless of the order the API responds in.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, eris.Wrap(err, "embed: create embeddings")
	}
	if len(resp.Data) != len(texts) {
		return nil, eris.Errorf("embed: got %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([][]float32, len(texts))
	for i, d := range data {
		out[i] = d.Embedding
	}
	return out, nil
}

// EmbedBatched embeds texts in fixed-size batches, invoking onProgress
// after each batch with the running total. onProgress may be nil.
func (c *Client) EmbedBatched(ctx context.Context, texts []string, onProgress func(done, total int)) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		vecs, err := c.EmbedTexts(ctx, texts[start:end])
		if err != nil {
			return nil, eris.Wrapf(err, "embed: batch %d-%d", start, end)
		}
		out = append(out, vecs...)
		if onProgress != nil {
			onProgress(len(out), len(texts))
		}
	}
	return out, nil
}
