package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexMapping_WithVector(t *testing.T) {
	m := IndexMapping("page_content", "vector", MetricCosine, 768)

	properties := m["mappings"].(map[string]any)["properties"].(map[string]any)

	text := properties["page_content"].(map[string]any)
	assert.Equal(t, "text", text["type"])
	assert.Equal(t, "standard", text["analyzer"])
	fields := text["fields"].(map[string]any)
	assert.Equal(t, "english", fields["english"].(map[string]any)["analyzer"])
	assert.Equal(t, 256, fields["keyword"].(map[string]any)["ignore_above"])

	vector := properties["vector"].(map[string]any)
	assert.Equal(t, "dense_vector", vector["type"])
	assert.Equal(t, 768, vector["dims"])
	assert.Equal(t, true, vector["index"])
	assert.Equal(t, "cosine", vector["similarity"])
	indexOpts := vector["index_options"].(map[string]any)
	assert.Equal(t, "hnsw", indexOpts["type"])
	assert.Equal(t, 16, indexOpts["m"])
	assert.Equal(t, 100, indexOpts["ef_construction"])

	metadata := properties["metadata"].(map[string]any)["properties"].(map[string]any)
	for _, field := range []string{"source", "uuid", "knowledge_base_id", "keywords", "index"} {
		assert.Contains(t, metadata, field)
	}

	similarity := m["settings"].(map[string]any)["index"].(map[string]any)["similarity"].(map[string]any)["default"].(map[string]any)
	assert.Equal(t, "BM25", similarity["type"])
	assert.Equal(t, 1.2, similarity["k1"])
	assert.Equal(t, 0.75, similarity["b"])
}

func TestIndexMapping_MetricWireNames(t *testing.T) {
	tests := []struct {
		metric SimilarityMetric
		want   string
	}{
		{MetricCosine, "cosine"},
		{MetricL2, "l2_norm"},
		{MetricInnerProduct, "dot_product"},
		{SimilarityMetric("bogus"), "cosine"},
	}
	for _, tt := range tests {
		m := IndexMapping("page_content", "vector", tt.metric, 4)
		vector := m["mappings"].(map[string]any)["properties"].(map[string]any)["vector"].(map[string]any)
		assert.Equal(t, tt.want, vector["similarity"], "metric %s", tt.metric)
	}
}

func TestIndexMapping_ZeroDimensionOmitsVector(t *testing.T) {
	m := IndexMapping("page_content", "vector", MetricCosine, 0)

	properties := m["mappings"].(map[string]any)["properties"].(map[string]any)
	require.NotContains(t, properties, "vector", "text-only index has no vector field")
	assert.Contains(t, properties, "page_content")
}
