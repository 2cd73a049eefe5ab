package retrieval

import (
	"context"
	"log/slog"
)

// dimensionProbeText is embedded once at index creation to auto-detect the
// vector dimension.
const dimensionProbeText = "hello world"

// ensureIndex creates the backend index if it does not exist. When an
// embedder is configured, the vector dimension is auto-detected with a probe
// embedding; otherwise a text-only schema is created.
//
// An existing index is left untouched: once created, its vector dimension is
// fixed for the index's lifetime, and drift between the stored schema and a
// newly configured embedder or strategy is not detected here. A later
// dimension mismatch surfaces as a backend-level write error.
func (s *Store) ensureIndex(ctx context.Context) error {
	exists, err := s.client.IndexExists(ctx, s.index)
	if err != nil {
		s.logger.Error("index existence check failed",
			slog.String("index", s.index),
			slog.String("error", err.Error()))
		return err
	}
	if exists {
		s.logger.Debug("index exists", slog.String("index", s.index))
		return nil
	}

	dimension := 0
	if s.embedder != nil {
		probe, err := s.embedder.EmbedQuery(ctx, dimensionProbeText)
		if err != nil {
			s.logger.Error("dimension probe failed",
				slog.String("index", s.index),
				slog.String("error", err.Error()))
			return err
		}
		dimension = len(probe)
	}

	mapping := IndexMapping(s.textField, s.vectorField, s.metric, dimension)
	if err := s.client.CreateIndex(ctx, s.index, mapping); err != nil {
		s.logger.Error("index creation failed",
			slog.String("index", s.index),
			slog.String("error", err.Error()))
		return err
	}

	s.logger.Info("index created",
		slog.String("index", s.index),
		slog.Int("vector_dimension", dimension),
		slog.String("metric", string(s.metric)))
	return nil
}
