// Package chunk splits documents into indexable pieces. Long documents
// retrieve poorly as single units: one embedding has to summarize too much
// and lexical scores dilute. The splitter cuts text at natural boundaries
// (paragraphs, then lines, then sentences, then words) with configurable
// overlap so context spanning a cut survives in both neighbors.
package chunk

import "strings"

// Default splitter geometry, in runes.
const (
	DefaultChunkSize    = 1500
	DefaultChunkOverlap = 200
)

// separators are tried in order; each level only applies inside pieces the
// previous level could not fit.
var separators = []string{"\n\n", "\n", ". ", " "}

// Chunk is one piece of a split document. Index is the zero-based position
// within the source document.
type Chunk struct {
	Text  string
	Index int
}

// Options configures the splitter.
type Options struct {
	ChunkSize    int // maximum chunk length in runes
	ChunkOverlap int // runes carried over between adjacent chunks
}

// Splitter cuts text into chunks at natural boundaries.
type Splitter struct {
	options Options
}

// NewSplitter creates a splitter, applying defaults for zero options.
// Overlap is capped below the chunk size so splitting always advances.
func NewSplitter(opts Options) *Splitter {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ChunkOverlap < 0 {
		opts.ChunkOverlap = DefaultChunkOverlap
	}
	if opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = opts.ChunkSize / 2
	}
	return &Splitter{options: opts}
}

// Split cuts text into chunks of at most ChunkSize runes. Whitespace-only
// input yields no chunks; text that already fits yields a single chunk.
func (s *Splitter) Split(text string) []Chunk {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	pieces := s.split(trimmed, 0)
	merged := s.merge(pieces)

	chunks := make([]Chunk, 0, len(merged))
	for _, piece := range merged {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		chunks = append(chunks, Chunk{Text: piece, Index: len(chunks)})
	}
	return chunks
}

// split recursively cuts text with the separator hierarchy. Pieces that
// still exceed the chunk size after the last separator are cut at rune
// boundaries.
func (s *Splitter) split(text string, level int) []string {
	if len([]rune(text)) <= s.options.ChunkSize {
		return []string{text}
	}
	if level >= len(separators) {
		return s.hardSplit(text)
	}

	sep := separators[level]
	parts := strings.SplitAfter(text, sep)
	if len(parts) == 1 {
		return s.split(text, level+1)
	}

	var pieces []string
	for _, part := range parts {
		if part == "" {
			continue
		}
		pieces = append(pieces, s.split(part, level+1)...)
	}
	return pieces
}

// hardSplit cuts text at rune boundaries as a last resort.
func (s *Splitter) hardSplit(text string) []string {
	runes := []rune(text)
	var pieces []string
	for start := 0; start < len(runes); start += s.options.ChunkSize {
		end := start + s.options.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		pieces = append(pieces, string(runes[start:end]))
	}
	return pieces
}

// merge packs adjacent pieces into chunks up to the size limit, prepending
// the configured overlap from each finished chunk to the next.
func (s *Splitter) merge(pieces []string) []string {
	var merged []string
	var current strings.Builder

	flush := func() string {
		if current.Len() == 0 {
			return ""
		}
		chunk := current.String()
		merged = append(merged, chunk)
		current.Reset()
		return chunk
	}

	for _, piece := range pieces {
		if current.Len() > 0 && len([]rune(current.String()))+len([]rune(piece)) > s.options.ChunkSize {
			finished := flush()
			if s.options.ChunkOverlap > 0 {
				current.WriteString(tail(finished, s.options.ChunkOverlap))
			}
		}
		current.WriteString(piece)
	}
	flush()
	return merged
}

// tail returns the last n runes of text, cut forward to a whitespace
// boundary so the overlap never starts mid-word.
func tail(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	suffix := runes[len(runes)-n:]
	for i, r := range suffix {
		if r == ' ' || r == '\n' {
			return string(suffix[i+1:])
		}
	}
	return string(suffix)
}
