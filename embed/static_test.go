package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedder_Deterministic(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()

	first, err := e.EmbedQuery(ctx, "hybrid retrieval engine")
	require.NoError(t, err)
	second, err := e.EmbedQuery(ctx, "hybrid retrieval engine")
	require.NoError(t, err)

	assert.Equal(t, first, second, "same text always embeds identically")
	assert.Len(t, first, StaticDimensions)
}

func TestStaticEmbedder_DifferentTextsDiffer(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()

	a, err := e.EmbedQuery(ctx, "cats are mammals")
	require.NoError(t, err)
	b, err := e.EmbedQuery(ctx, "rockets reach orbit")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestStaticEmbedder_UnitLength(t *testing.T) {
	e := NewStaticEmbedder()

	vec, err := e.EmbedQuery(context.Background(), "normalize me")
	require.NoError(t, err)

	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSquares), 1e-5)
}

func TestStaticEmbedder_EmptyTextIsZeroVector(t *testing.T) {
	e := NewStaticEmbedder()

	vec, err := e.EmbedQuery(context.Background(), "   ")
	require.NoError(t, err)
	require.Len(t, vec, StaticDimensions)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestStaticEmbedder_EmbedDocuments(t *testing.T) {
	e := NewStaticEmbedder()

	vectors, err := e.EmbedDocuments(context.Background(), []string{"one", "two", "one"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, vectors[0], vectors[2])
	assert.NotEqual(t, vectors[0], vectors[1])
}

func TestStaticEmbedder_Identity(t *testing.T) {
	e := NewStaticEmbedder()
	assert.Equal(t, StaticDimensions, e.Dimensions())
	assert.Equal(t, "static-hash-256", e.ModelName())
}

func TestTokenize_DropsStopWords(t *testing.T) {
	tokens := tokenize("the quick fox is on a fence")
	assert.Equal(t, []string{"quick", "fox", "fence"}, tokens)
}

func TestExtractNgrams(t *testing.T) {
	assert.Equal(t, []string{"abc", "bcd"}, extractNgrams("abcd", 3))
	assert.Nil(t, extractNgrams("ab", 3), "shorter than n yields nothing")
}
