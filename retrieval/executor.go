package retrieval

import (
	"context"
	"log/slog"

	"github.com/lodestar-search/lodestar/backend"
)

// searchExecutor sends strategy-built query bodies to the backend and maps
// hits into documents. It preserves backend ordering and never truncates:
// callers that fetch more candidates than they keep (MMR) rely on that.
type searchExecutor struct {
	client backend.Client
	index  string
	logger *slog.Logger
}

// Execute runs the query body as-is and returns ranked hits in backend
// order.
func (e *searchExecutor) Execute(ctx context.Context, body map[string]any) ([]SearchHit, error) {
	backendHits, err := e.client.Search(ctx, e.index, body)
	if err != nil {
		e.logger.Error("search request failed",
			slog.String("index", e.index),
			slog.String("error", err.Error()))
		return nil, err
	}

	hits := make([]SearchHit, len(backendHits))
	for i, h := range backendHits {
		metadata := h.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		hits[i] = SearchHit{
			Document: Document{
				ID:       h.ID,
				Text:     h.Text,
				Metadata: metadata,
			},
			Score: h.Score,
		}
	}
	return hits, nil
}
