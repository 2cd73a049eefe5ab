package retrieval

import "errors"

// ErrNoQueryVector is returned, before any backend call, when a
// vector-requiring strategy is invoked without a query vector and no
// embedder is configured to produce one.
var ErrNoQueryVector = errors.New("query vector required")

// ErrNoEmbedder is returned when an operation needs an embedder (query
// embedding or MMR candidate embedding) and the store has none configured.
var ErrNoEmbedder = errors.New("no embedder configured")

// ErrNilClient is returned when a Store is constructed without a backend
// client.
var ErrNilClient = errors.New("nil backend client")

// ErrEmptyIndexName is returned when a Store is constructed without an
// index name.
var ErrEmptyIndexName = errors.New("empty index name")

// ErrLengthMismatch is returned by AddTexts when the metadatas or ids slice
// does not match the number of texts.
var ErrLengthMismatch = errors.New("input length mismatch")
