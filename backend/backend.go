// Package backend defines the contract between the retrieval engine and the
// search backend that stores and ranks documents. Implementations translate
// the structured query bodies built by the retrieval strategies into whatever
// the underlying engine understands. The embedded sub-package provides an
// in-process implementation; a remote Elasticsearch/OpenSearch client would
// implement the same interface.
package backend

import (
	"context"
	"fmt"
)

// BulkDoc is a single document in a bulk write. Vector may be nil when the
// index was created without a vector field.
type BulkDoc struct {
	ID       string
	Text     string
	Metadata map[string]any
	Vector   []float32
}

// Hit is one ranked result returned by Search. Score is backend-assigned and
// only comparable to other scores from the same query.
type Hit struct {
	ID       string
	Score    float64
	Text     string
	Metadata map[string]any
}

// Stats reports index-level statistics.
type Stats struct {
	DocumentCount int
	SizeBytes     int64
}

// Client is the backend search engine collaborator. All methods are
// independent request/response calls; implementations must be safe for
// concurrent use.
type Client interface {
	// IndexExists reports whether the named index exists.
	IndexExists(ctx context.Context, index string) (bool, error)

	// CreateIndex creates the named index with the given mapping.
	// It fails if the index already exists.
	CreateIndex(ctx context.Context, index string, mapping map[string]any) error

	// BulkUpsert writes documents in one batch. Existing ids are overwritten.
	BulkUpsert(ctx context.Context, index string, docs []BulkDoc) error

	// DeleteByIDs removes the documents with the given ids.
	DeleteByIDs(ctx context.Context, index string, ids []string) error

	// Search executes a structured query body and returns ranked hits in
	// backend order.
	Search(ctx context.Context, index string, body map[string]any) ([]Hit, error)

	// Stats returns index statistics.
	Stats(ctx context.Context, index string) (*Stats, error)
}

// Error wraps a backend failure with the operation and index it occurred on.
// The retrieval layer logs these and returns them unchanged; callers apply
// their own retry policy.
type Error struct {
	Op    string
	Index string
	Err   error
}

// NewError creates a backend Error.
func NewError(op, index string, err error) *Error {
	return &Error{Op: op, Index: index, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend %s %q: %v", e.Op, e.Index, e.Err)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Err
}
