package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodestar-search/lodestar/backend"
)

// fakeClient records backend calls and replays canned hits.
type fakeClient struct {
	exists      bool
	createCalls int
	mapping     map[string]any
	upserted    [][]backend.BulkDoc
	deleted     [][]string
	searchBody  map[string]any
	hits        []backend.Hit
	stats       backend.Stats
}

var _ backend.Client = (*fakeClient)(nil)

func (f *fakeClient) IndexExists(_ context.Context, _ string) (bool, error) {
	return f.exists, nil
}

func (f *fakeClient) CreateIndex(_ context.Context, _ string, mapping map[string]any) error {
	f.createCalls++
	f.mapping = mapping
	f.exists = true
	return nil
}

func (f *fakeClient) BulkUpsert(_ context.Context, _ string, docs []backend.BulkDoc) error {
	f.upserted = append(f.upserted, docs)
	return nil
}

func (f *fakeClient) DeleteByIDs(_ context.Context, _ string, ids []string) error {
	f.deleted = append(f.deleted, ids)
	return nil
}

func (f *fakeClient) Search(_ context.Context, _ string, body map[string]any) ([]backend.Hit, error) {
	f.searchBody = body
	return f.hits, nil
}

func (f *fakeClient) Stats(_ context.Context, _ string) (*backend.Stats, error) {
	stats := f.stats
	return &stats, nil
}

// countingEmbedder returns a fixed vector and counts calls.
type countingEmbedder struct {
	dims       int
	queryCalls int
	docCalls   int
}

func (e *countingEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	e.queryCalls++
	return make([]float32, e.dims), nil
}

func (e *countingEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.docCalls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, e.dims)
	}
	return out, nil
}

func (e *countingEmbedder) Dimensions() int   { return e.dims }
func (e *countingEmbedder) ModelName() string { return "counting" }

func TestNew_Validation(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, nil, "idx")
	assert.ErrorIs(t, err, ErrNilClient)

	_, err = New(ctx, &fakeClient{}, "")
	assert.ErrorIs(t, err, ErrEmptyIndexName)
}

func TestNew_CreatesMissingIndexWithProbedDimension(t *testing.T) {
	client := &fakeClient{}
	embedder := &countingEmbedder{dims: 8}

	_, err := New(context.Background(), client, "idx", WithEmbedder(embedder))
	require.NoError(t, err)

	assert.Equal(t, 1, client.createCalls)
	assert.Equal(t, 1, embedder.queryCalls, "one probe embedding")

	properties := client.mapping["mappings"].(map[string]any)["properties"].(map[string]any)
	vector := properties["vector"].(map[string]any)
	assert.Equal(t, 8, vector["dims"])
}

func TestNew_ExistingIndexUntouched(t *testing.T) {
	client := &fakeClient{exists: true}

	_, err := New(context.Background(), client, "idx")
	require.NoError(t, err)
	assert.Zero(t, client.createCalls)
}

func TestNew_NoEmbedderCreatesTextOnlyIndex(t *testing.T) {
	client := &fakeClient{}

	_, err := New(context.Background(), client, "idx")
	require.NoError(t, err)

	properties := client.mapping["mappings"].(map[string]any)["properties"].(map[string]any)
	assert.NotContains(t, properties, "vector")
}

func TestAddTexts_GeneratesDistinctIDs(t *testing.T) {
	client := &fakeClient{exists: true}
	s, err := New(context.Background(), client, "idx")
	require.NoError(t, err)

	ids, err := s.AddTexts(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])

	require.Len(t, client.upserted, 1)
	docs := client.upserted[0]
	assert.Equal(t, "one", docs[0].Text)
	assert.NotNil(t, docs[0].Metadata, "missing metadata defaults to an empty map")
	assert.Nil(t, docs[0].Vector, "no embedder means text-only documents")
}

func TestAddTexts_ExplicitIDsAndVectors(t *testing.T) {
	client := &fakeClient{exists: true}
	embedder := &countingEmbedder{dims: 4}
	s, err := New(context.Background(), client, "idx", WithEmbedder(embedder))
	require.NoError(t, err)

	ids, err := s.AddTexts(context.Background(), []string{"one", "two"},
		WithIDs([]string{"a", "b"}),
		WithMetadatas([]map[string]any{{"source": "x"}, nil}))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, ids)
	assert.Equal(t, 1, embedder.docCalls, "texts are embedded in one batch")

	docs := client.upserted[0]
	assert.Len(t, docs[0].Vector, 4)
	assert.Equal(t, "x", docs[0].Metadata["source"])
	assert.NotNil(t, docs[1].Metadata, "nil metadata entry defaults to an empty map")
}

func TestAddTexts_LengthMismatch(t *testing.T) {
	client := &fakeClient{exists: true}
	s, err := New(context.Background(), client, "idx")
	require.NoError(t, err)

	_, err = s.AddTexts(context.Background(), []string{"one"}, WithIDs([]string{"a", "b"}))
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = s.AddTexts(context.Background(), []string{"one"}, WithMetadatas([]map[string]any{{}, {}}))
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestDelete_EmptyIsNoOp(t *testing.T) {
	client := &fakeClient{exists: true}
	s, err := New(context.Background(), client, "idx")
	require.NoError(t, err)

	require.NoError(t, s.Delete(context.Background(), nil))
	require.NoError(t, s.Delete(context.Background(), []string{}))
	assert.Empty(t, client.deleted, "empty deletes never reach the backend")

	require.NoError(t, s.Delete(context.Background(), []string{"a"}))
	assert.Len(t, client.deleted, 1)
}

func TestSimilaritySearch_KeywordRerank(t *testing.T) {
	client := &fakeClient{
		exists: true,
		hits: []backend.Hit{
			{ID: "1", Score: 3, Metadata: map[string]any{"keywords": []any{"other"}}},
			{ID: "2", Score: 2, Metadata: map[string]any{"keywords": []any{"cache"}}},
			{ID: "3", Score: 1},
		},
	}
	s, err := New(context.Background(), client, "idx")
	require.NoError(t, err)

	docs, err := s.SimilaritySearch(context.Background(), "q", 3, WithKeywords("cache"))
	require.NoError(t, err)

	require.Len(t, docs, 3)
	assert.Equal(t, "2", docs[0].ID, "keyword overlap outranks backend score")
}

func TestSimilaritySearchWithScore_NeverReranks(t *testing.T) {
	client := &fakeClient{
		exists: true,
		hits: []backend.Hit{
			{ID: "1", Score: 3},
			{ID: "2", Score: 2, Metadata: map[string]any{"keywords": []any{"cache"}}},
		},
	}
	s, err := New(context.Background(), client, "idx")
	require.NoError(t, err)

	hits, err := s.SimilaritySearchWithScore(context.Background(), "q", 2, WithKeywords("cache"))
	require.NoError(t, err)

	require.Len(t, hits, 2)
	assert.Equal(t, "1", hits[0].Document.ID, "score-returning search keeps backend order")
	assert.Equal(t, 3.0, hits[0].Score)
}

func TestSimilaritySearchWithRelevanceScores_Normalizes(t *testing.T) {
	client := &fakeClient{
		exists: true,
		hits:   []backend.Hit{{ID: "1", Score: 6}, {ID: "2", Score: 4}, {ID: "3", Score: 2}},
	}
	s, err := New(context.Background(), client, "idx")
	require.NoError(t, err)

	hits, err := s.SimilaritySearchWithRelevanceScores(context.Background(), "q", 3)
	require.NoError(t, err)

	assert.Equal(t, 1.0, hits[0].Score)
	assert.Equal(t, 0.5, hits[1].Score)
	assert.Equal(t, 0.0, hits[2].Score)
}

func TestSimilaritySearch_TruncatesToK(t *testing.T) {
	client := &fakeClient{
		exists: true,
		hits:   []backend.Hit{{ID: "1"}, {ID: "2"}, {ID: "3"}},
	}
	s, err := New(context.Background(), client, "idx")
	require.NoError(t, err)

	docs, err := s.SimilaritySearch(context.Background(), "q", 2)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestSimilaritySearchByVector_BypassesEmbedder(t *testing.T) {
	client := &fakeClient{exists: true, hits: []backend.Hit{{ID: "1"}}}
	embedder := &countingEmbedder{dims: 4}
	s, err := New(context.Background(), client, "idx",
		WithEmbedder(embedder),
		WithStrategy(NewDenseHybridStrategy(DefaultConfig())))
	require.NoError(t, err)

	_, err = s.SimilaritySearchByVector(context.Background(), []float32{1, 2, 3, 4}, 1)
	require.NoError(t, err)
	assert.Zero(t, embedder.queryCalls, "explicit vector skips query embedding")

	knn := client.searchBody["knn"].(map[string]any)
	assert.Equal(t, []float32{1, 2, 3, 4}, knn["query_vector"])
}

func TestSearch_EmbedsQueryForVectorStrategy(t *testing.T) {
	client := &fakeClient{exists: true}
	embedder := &countingEmbedder{dims: 4}
	s, err := New(context.Background(), client, "idx",
		WithEmbedder(embedder),
		WithStrategy(NewDenseHybridStrategy(DefaultConfig())))
	require.NoError(t, err)

	_, err = s.SimilaritySearch(context.Background(), "q", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, embedder.queryCalls)
	assert.Contains(t, client.searchBody, "knn")
	assert.Contains(t, client.searchBody, "rank")
}

func TestSearch_VectorStrategyWithoutEmbedderFails(t *testing.T) {
	client := &fakeClient{exists: true}
	s, err := New(context.Background(), client, "idx",
		WithStrategy(NewDenseHybridStrategy(DefaultConfig())))
	require.NoError(t, err)

	_, err = s.SimilaritySearch(context.Background(), "q", 2)
	assert.ErrorIs(t, err, ErrNoQueryVector)
}

func TestMaxMarginalRelevanceSearch_RequiresEmbedder(t *testing.T) {
	client := &fakeClient{exists: true}
	s, err := New(context.Background(), client, "idx")
	require.NoError(t, err)

	_, err = s.MaxMarginalRelevanceSearch(context.Background(), "q", 2)
	assert.ErrorIs(t, err, ErrNoEmbedder)
}

func TestMaxMarginalRelevanceSearch_FetchesCandidatePool(t *testing.T) {
	client := &fakeClient{exists: true, hits: []backend.Hit{{ID: "1"}, {ID: "2"}}}
	embedder := &countingEmbedder{dims: 4}
	s, err := New(context.Background(), client, "idx", WithEmbedder(embedder))
	require.NoError(t, err)

	docs, err := s.MaxMarginalRelevanceSearch(context.Background(), "q", 5, WithFetchK(30))
	require.NoError(t, err)

	assert.Equal(t, 30, client.searchBody["size"], "the candidate pool size is fetch-k")
	assert.Len(t, docs, 2, "fewer candidates than k pass through")
}

func TestIndexStats(t *testing.T) {
	client := &fakeClient{exists: true, stats: backend.Stats{DocumentCount: 7, SizeBytes: 1024}}
	s, err := New(context.Background(), client, "idx")
	require.NoError(t, err)

	stats, err := s.IndexStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, stats.DocumentCount)
	assert.Equal(t, int64(1024), stats.SizeBytes)
}
