package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordScore(t *testing.T) {
	tests := []struct {
		name  string
		doc   []string
		query []string
		want  float64
	}{
		{"half overlap both sides", []string{"a", "b"}, []string{"a", "c"}, 0.5},
		{"full overlap", []string{"a", "b"}, []string{"a", "b"}, 1.0},
		{"no overlap", []string{"a"}, []string{"b"}, 0.0},
		{"empty doc", nil, []string{"a"}, 0.0},
		{"empty query", []string{"a"}, nil, 0.0},
		{"asymmetric coverage", []string{"a"}, []string{"a", "b"}, 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, KeywordScore(tt.doc, tt.query), 1e-9)
		})
	}
}

func TestKeywordScore_NormalizesCaseAndWhitespace(t *testing.T) {
	score := KeywordScore([]string{" Cache ", "TTL"}, []string{"cache", "ttl"})
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestRerankByKeywords_StableOnTies(t *testing.T) {
	docs := []Document{
		{ID: "1", Metadata: map[string]any{"keywords": []string{"x"}}},
		{ID: "2", Metadata: map[string]any{"keywords": []string{"cache"}}},
		{ID: "3", Metadata: map[string]any{"keywords": []string{"y"}}},
	}

	reranked := rerankByKeywords(docs, []string{"cache"})

	require.Len(t, reranked, 3)
	assert.Equal(t, "2", reranked[0].ID, "matching doc moves first")
	// Zero-score documents keep their original relative order.
	assert.Equal(t, "1", reranked[1].ID)
	assert.Equal(t, "3", reranked[2].ID)
}

func TestDocumentKeywords_AcceptsBothListShapes(t *testing.T) {
	fromStrings := Document{Metadata: map[string]any{"keywords": []string{"a", "b"}}}
	assert.Equal(t, []string{"a", "b"}, documentKeywords(fromStrings))

	// Metadata decoded from JSON arrives as []any.
	fromJSON := Document{Metadata: map[string]any{"keywords": []any{"a", "b"}}}
	assert.Equal(t, []string{"a", "b"}, documentKeywords(fromJSON))

	assert.Nil(t, documentKeywords(Document{Metadata: map[string]any{"keywords": 42}}))
	assert.Nil(t, documentKeywords(Document{}))
}

func TestNormalizeScores(t *testing.T) {
	assert.Equal(t, []float64{0, 0.5, 1}, NormalizeScores([]float64{2, 4, 6}))
	assert.Equal(t, []float64{1, 1, 1}, NormalizeScores([]float64{5, 5, 5}),
		"uniform scores normalize to all ones")
	assert.Equal(t, []float64{1}, NormalizeScores([]float64{3}))
	assert.Empty(t, NormalizeScores(nil))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-6)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-6)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1}, []float32{1, 2}), "mismatched lengths")
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 2}), "zero vector")
}

// batchEmbedder embeds with fixed vectors keyed by text.
type batchEmbedder struct {
	vectors map[string][]float32
	calls   int
}

func (e *batchEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vectors[text]
	}
	return out, nil
}

func (e *batchEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.vectors[text], nil
}

func (e *batchEmbedder) Dimensions() int   { return 2 }
func (e *batchEmbedder) ModelName() string { return "test" }

func TestMaximalMarginalRelevance_FewCandidatesPassThrough(t *testing.T) {
	candidates := []Document{{ID: "1"}, {ID: "2"}}

	// No embedder needed: with candidates <= k nothing is embedded.
	result, err := MaximalMarginalRelevance(context.Background(), nil, []float32{1, 0}, candidates, 5, 0.5)
	require.NoError(t, err)
	assert.Equal(t, candidates, result)
}

func TestMaximalMarginalRelevance_ZeroK(t *testing.T) {
	result, err := MaximalMarginalRelevance(context.Background(), nil, nil, []Document{{ID: "1"}}, 0, 0.5)
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestMaximalMarginalRelevance_PureRelevance(t *testing.T) {
	embedder := &batchEmbedder{vectors: map[string][]float32{
		"close":   {1, 0},
		"closer":  {0.9, 0.1},
		"far":     {0, 1},
		"farther": {-1, 0},
	}}
	candidates := []Document{
		{ID: "far", Text: "far"},
		{ID: "close", Text: "close"},
		{ID: "farther", Text: "farther"},
		{ID: "closer", Text: "closer"},
	}

	// Lambda 1 ignores diversity entirely.
	result, err := MaximalMarginalRelevance(context.Background(), embedder, []float32{1, 0}, candidates, 2, 1.0)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "close", result[0].ID)
	assert.Equal(t, "closer", result[1].ID)
	assert.Equal(t, 1, embedder.calls, "candidates are embedded in one batch")
}

func TestMaximalMarginalRelevance_DiversityPenalty(t *testing.T) {
	// Two near-duplicates close to the query and one distinct document.
	embedder := &batchEmbedder{vectors: map[string][]float32{
		"dup1":     {1, 0},
		"dup2":     {0.99, 0.01},
		"distinct": {0, 1},
	}}
	candidates := []Document{
		{ID: "dup1", Text: "dup1"},
		{ID: "dup2", Text: "dup2"},
		{ID: "distinct", Text: "distinct"},
	}

	result, err := MaximalMarginalRelevance(context.Background(), embedder, []float32{1, 0}, candidates, 2, 0.5)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "dup1", result[0].ID, "most relevant seeds the selection")
	assert.Equal(t, "distinct", result[1].ID, "the near-duplicate is penalized away")
}

func TestMaximalMarginalRelevance_NoEmbedderWhenNeeded(t *testing.T) {
	candidates := []Document{{ID: "1"}, {ID: "2"}, {ID: "3"}}
	_, err := MaximalMarginalRelevance(context.Background(), nil, []float32{1}, candidates, 2, 0.5)
	assert.ErrorIs(t, err, ErrNoEmbedder)
}
