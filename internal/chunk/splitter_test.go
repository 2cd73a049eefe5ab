package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	s := NewSplitter(Options{ChunkSize: 100})

	chunks := s.Split("a short document")

	require.Len(t, chunks, 1)
	assert.Equal(t, "a short document", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Index)
}

func TestSplit_EmptyInput(t *testing.T) {
	s := NewSplitter(Options{})
	assert.Nil(t, s.Split(""))
	assert.Nil(t, s.Split("  \n\t "))
}

func TestSplit_PrefersParagraphBoundaries(t *testing.T) {
	first := strings.Repeat("alpha ", 10)
	second := strings.Repeat("beta ", 10)
	text := strings.TrimSpace(first) + "\n\n" + strings.TrimSpace(second)

	s := NewSplitter(Options{ChunkSize: 70, ChunkOverlap: 0})
	chunks := s.Split(text)

	require.Len(t, chunks, 2)
	assert.NotContains(t, chunks[0].Text, "beta")
	assert.NotContains(t, chunks[1].Text, "alpha")
}

func TestSplit_IndexesAreSequential(t *testing.T) {
	text := strings.Repeat("sentence one. sentence two. ", 40)

	s := NewSplitter(Options{ChunkSize: 120, ChunkOverlap: 0})
	chunks := s.Split(text)

	require.Greater(t, len(chunks), 1)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.NotEmpty(t, chunk.Text)
	}
}

func TestSplit_OverlapCarriesContext(t *testing.T) {
	text := strings.Repeat("one two three four five six seven eight nine ten ", 10)

	s := NewSplitter(Options{ChunkSize: 100, ChunkOverlap: 30})
	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)

	// Each chunk after the first starts with the tail of its predecessor.
	for i := 1; i < len(chunks); i++ {
		prefix := strings.Fields(chunks[i].Text)[0]
		assert.Contains(t, chunks[i-1].Text, prefix)
	}
}

func TestSplit_HardSplitsUnbrokenText(t *testing.T) {
	text := strings.Repeat("x", 250)

	s := NewSplitter(Options{ChunkSize: 100, ChunkOverlap: 0})
	chunks := s.Split(text)

	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0].Text, 100)
	assert.Len(t, chunks[2].Text, 50)
}

func TestNewSplitter_Defaults(t *testing.T) {
	s := NewSplitter(Options{})
	assert.Equal(t, DefaultChunkSize, s.options.ChunkSize)
	assert.Equal(t, DefaultChunkOverlap, s.options.ChunkOverlap)

	// Overlap at or above the chunk size is capped so splitting advances.
	s = NewSplitter(Options{ChunkSize: 100, ChunkOverlap: 100})
	assert.Equal(t, 50, s.options.ChunkOverlap)
}

func TestTail_CutsAtWordBoundary(t *testing.T) {
	assert.Equal(t, "tail", tail("head and tail", 8))
	assert.Equal(t, "short", tail("short", 10), "text shorter than n is returned whole")
}
