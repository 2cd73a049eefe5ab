package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lodestar-search/lodestar/backend/embedded"
	"github.com/lodestar-search/lodestar/embed"
	"github.com/lodestar-search/lodestar/internal/config"
	"github.com/lodestar-search/lodestar/retrieval"
)

// engine bundles the wired-up components a command needs.
type engine struct {
	cfg    *config.Config
	client *embedded.Client
	store  *retrieval.Store
}

// openEngine loads configuration, builds the embedder and embedded backend,
// and opens the retrieval store. The caller must call close.
func openEngine(ctx context.Context) (*engine, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if indexName != "" {
		cfg.Index.Name = indexName
	}

	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client, err := embedded.New(cfg.DataDir, embedded.WithLogger(slog.Default()))
	if err != nil {
		return nil, fmt.Errorf("failed to open backend: %w", err)
	}

	store, err := retrieval.New(ctx, client, cfg.Index.Name,
		retrieval.WithEmbedder(embedder),
		retrieval.WithStrategy(newStrategy(cfg)),
		retrieval.WithConfig(retrievalConfig(cfg)),
		retrieval.WithTextField(cfg.Index.TextField),
		retrieval.WithVectorField(cfg.Index.VectorField),
		retrieval.WithMetric(retrieval.SimilarityMetric(cfg.Index.Metric)),
		retrieval.WithLogger(slog.Default()),
	)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	return &engine{cfg: cfg, client: client, store: store}, nil
}

// close releases the backend.
func (e *engine) close() {
	_ = e.client.Close()
}

// newEmbedder builds the configured embedder, wrapped in an LRU cache when
// caching is enabled.
func newEmbedder(ctx context.Context, cfg *config.Config) (embed.Embedder, error) {
	var embedder embed.Embedder
	switch cfg.Embeddings.Backend {
	case "ollama":
		e, err := embed.NewOllamaEmbedder(ctx, embed.OllamaConfig{
			Host:  cfg.Embeddings.Host,
			Model: cfg.Embeddings.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama embedder: %w", err)
		}
		embedder = e
	default:
		embedder = embed.NewStaticEmbedder()
	}

	if cfg.Embeddings.CacheSize > 0 {
		embedder = embed.NewCachedEmbedder(embedder, cfg.Embeddings.CacheSize)
	}
	return embedder, nil
}

// newStrategy builds the configured retrieval strategy.
func newStrategy(cfg *config.Config) retrieval.Strategy {
	rc := retrievalConfig(cfg)
	switch cfg.Retrieval.Strategy {
	case "dense_hybrid":
		return retrieval.NewDenseHybridStrategy(rc)
	case "keyword":
		return retrieval.NewKeywordStrategy(rc)
	default:
		return retrieval.NewContentStrategy(rc)
	}
}

func retrievalConfig(cfg *config.Config) retrieval.Config {
	return retrieval.Config{
		KeywordImportance: cfg.Retrieval.KeywordImportance,
		Hybrid:            cfg.Retrieval.Hybrid,
		HybridAlpha:       cfg.Retrieval.HybridAlpha,
	}
}

// parseKeyValues parses repeated key=value flags into a map.
func parseKeyValues(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid key=value pair: %q", pair)
		}
		out[key] = value
	}
	return out, nil
}
