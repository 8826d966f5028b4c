package embed

import (
	"context"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI returns one embedding per input, with the response order
// reversed to exercise index-based reordering.
type fakeAPI struct {
	calls      int
	batchSizes []int
	err        error
}

func (f *fakeAPI) CreateEmbeddings(_ context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	if f.err != nil {
		return openai.EmbeddingResponse{}, f.err
	}
	f.calls++

	req := conv.(openai.EmbeddingRequest)
	texts := req.Input.([]string)
	f.batchSizes = append(f.batchSizes, len(texts))

	resp := openai.EmbeddingResponse{}
	for i := len(texts) - 1; i >= 0; i-- {
		resp.Data = append(resp.Data, openai.Embedding{
			Index:     i,
			Embedding: []float32{float32(i)},
		})
	}
	return resp, nil
}

func newFakeClient(api *fakeAPI, batchSize int) *Client {
	return &Client{api: api, model: "test-model", batchSize: batchSize}
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{Model: "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")

	_, err = New(Config{APIKey: "k"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model")

	c, err := New(Config{APIKey: "k", Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "m", c.Model())
	assert.Equal(t, DefaultBatchSize, c.batchSize)
}

func TestEmbedTextsPreservesInputOrder(t *testing.T) {
	c := newFakeClient(&fakeAPI{}, 10)

	vecs, err := c.EmbedTexts(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	// The fake responds in reverse order; vectors must still line up
	// with the inputs.
	assert.Equal(t, []float32{0}, vecs[0])
	assert.Equal(t, []float32{1}, vecs[1])
	assert.Equal(t, []float32{2}, vecs[2])
}

func TestEmbedTextsEmptyInput(t *testing.T) {
	api := &fakeAPI{}
	c := newFakeClient(api, 10)

	vecs, err := c.EmbedTexts(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
	assert.Zero(t, api.calls)
}

func TestEmbedBatched(t *testing.T) {
	api := &fakeAPI{}
	c := newFakeClient(api, 2)

	var progress [][2]int
	texts := []string{"a", "b", "c", "d", "e"}
	vecs, err := c.EmbedBatched(context.Background(), texts, func(done, total int) {
		progress = append(progress, [2]int{done, total})
	})
	require.NoError(t, err)
	assert.Len(t, vecs, 5)
	assert.Equal(t, []int{2, 2, 1}, api.batchSizes)
	assert.Equal(t, [][2]int{{2, 5}, {4, 5}, {5, 5}}, progress)
}

func TestEmbedBatchedPropagatesError(t *testing.T) {
	c := newFakeClient(&fakeAPI{err: assert.AnError}, 2)

	_, err := c.EmbedBatched(context.Background(), []string{"a"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}
