package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeyValues(t *testing.T) {
	out, err := parseKeyValues([]string{"source=a.md", "lang=en"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"source": "a.md", "lang": "en"}, out)

	out, err = parseKeyValues(nil)
	require.NoError(t, err)
	assert.Nil(t, out)

	// Values may contain '='; keys may not be empty.
	out, err = parseKeyValues([]string{"query=a=b"})
	require.NoError(t, err)
	assert.Equal(t, "a=b", out["query"])

	_, err = parseKeyValues([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseKeyValues([]string{"=x"})
	assert.Error(t, err)
}

func TestChunkDocuments(t *testing.T) {
	texts := []string{strings.Repeat("alpha beta gamma delta ", 20)}
	metadatas := []map[string]any{{"source": "a.md"}}

	outTexts, outMetadatas := chunkDocuments(texts, metadatas, indexOptions{
		chunkSize:    100,
		chunkOverlap: 0,
	})

	require.Greater(t, len(outTexts), 1)
	require.Len(t, outMetadatas, len(outTexts))

	parent := outMetadatas[0]["uuid"]
	require.NotEmpty(t, parent)
	for i, m := range outMetadatas {
		assert.Equal(t, "a.md", m["source"], "chunks inherit document metadata")
		assert.Equal(t, i, m["index"])
		assert.Equal(t, parent, m["uuid"], "chunks share the parent document uuid")
	}
}

func TestChunkDocuments_DistinctParents(t *testing.T) {
	texts := []string{"first document", "second document"}
	metadatas := []map[string]any{{}, {}}

	_, outMetadatas := chunkDocuments(texts, metadatas, indexOptions{chunkSize: 100})

	require.Len(t, outMetadatas, 2)
	assert.NotEqual(t, outMetadatas[0]["uuid"], outMetadatas[1]["uuid"])
}
