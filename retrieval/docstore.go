package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/lodestar-search/lodestar/backend"
)

// AddTexts embeds and writes texts to the index in one bulk call, returning
// the document ids. Missing ids are generated; missing metadata entries
// default to an empty map. Writing an existing id overwrites that document,
// so reindexing needs no explicit delete.
//
// Without an embedder, text-only documents are written. A backend failure
// is logged and returned unchanged; nothing is retried or rolled back here.
func (s *Store) AddTexts(ctx context.Context, texts []string, opts ...AddOption) ([]string, error) {
	if len(texts) == 0 {
		return []string{}, nil
	}

	var o addOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.metadatas != nil && len(o.metadatas) != len(texts) {
		return nil, fmt.Errorf("%w: %d metadatas for %d texts", ErrLengthMismatch, len(o.metadatas), len(texts))
	}
	if o.ids != nil && len(o.ids) != len(texts) {
		return nil, fmt.Errorf("%w: %d ids for %d texts", ErrLengthMismatch, len(o.ids), len(texts))
	}

	ids := make([]string, len(texts))
	for i := range texts {
		if o.ids != nil && o.ids[i] != "" {
			ids[i] = o.ids[i]
		} else {
			ids[i] = uuid.NewString()
		}
	}

	var vectors [][]float32
	if s.embedder != nil {
		embedded, err := s.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			s.logger.Error("document embedding failed",
				slog.String("index", s.index),
				slog.Int("texts", len(texts)),
				slog.String("error", err.Error()))
			return nil, err
		}
		vectors = embedded
	}

	docs := make([]backend.BulkDoc, len(texts))
	for i, text := range texts {
		metadata := map[string]any{}
		if o.metadatas != nil && o.metadatas[i] != nil {
			metadata = o.metadatas[i]
		}
		doc := backend.BulkDoc{
			ID:       ids[i],
			Text:     text,
			Metadata: metadata,
		}
		if vectors != nil {
			doc.Vector = vectors[i]
		}
		docs[i] = doc
	}

	if err := s.client.BulkUpsert(ctx, s.index, docs); err != nil {
		s.logger.Error("bulk write failed",
			slog.String("index", s.index),
			slog.Int("documents", len(docs)),
			slog.String("error", err.Error()))
		return nil, err
	}
	return ids, nil
}

// Delete removes documents by id. An empty or nil id list is a documented
// no-op: it returns immediately without contacting the backend.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	if err := s.client.DeleteByIDs(ctx, s.index, ids); err != nil {
		s.logger.Error("delete failed",
			slog.String("index", s.index),
			slog.Int("ids", len(ids)),
			slog.String("error", err.Error()))
		return err
	}
	return nil
}
