package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lodestar-search/lodestar/backend"
	"github.com/lodestar-search/lodestar/embed"
)

// Default index field names.
const (
	DefaultTextField   = "page_content"
	DefaultVectorField = "vector"
)

// Store is the engine façade: it binds a backend client, an index name, an
// optional embedder, and a retrieval strategy, and exposes the search and
// mutation API. Construction ensures the backend index exists.
//
// A Store holds no mutable state after construction and is safe for
// concurrent use provided the supplied client and embedder are.
type Store struct {
	client      backend.Client
	index       string
	embedder    embed.Embedder
	strategy    Strategy
	cfg         Config
	textField   string
	vectorField string
	metric      SimilarityMetric
	logger      *slog.Logger
	executor    *searchExecutor
}

// StoreOption configures a Store at construction.
type StoreOption func(*Store)

// WithEmbedder sets the embedder used for query and document embedding.
// Without one, the store writes text-only documents and vector-requiring
// operations fail with a configuration error.
func WithEmbedder(e embed.Embedder) StoreOption {
	return func(s *Store) {
		s.embedder = e
	}
}

// WithStrategy sets the retrieval strategy (default: ContentStrategy with
// the default config).
func WithStrategy(strategy Strategy) StoreOption {
	return func(s *Store) {
		if strategy != nil {
			s.strategy = strategy
		}
	}
}

// WithConfig sets the strategy configuration used for keyword reranking
// decisions.
func WithConfig(cfg Config) StoreOption {
	return func(s *Store) {
		s.cfg = cfg
	}
}

// WithTextField overrides the text field name (default "page_content").
func WithTextField(name string) StoreOption {
	return func(s *Store) {
		if name != "" {
			s.textField = name
		}
	}
}

// WithVectorField overrides the vector field name (default "vector").
func WithVectorField(name string) StoreOption {
	return func(s *Store) {
		if name != "" {
			s.vectorField = name
		}
	}
}

// WithMetric sets the similarity metric used when the index is created
// (default cosine).
func WithMetric(metric SimilarityMetric) StoreOption {
	return func(s *Store) {
		if metric != "" {
			s.metric = metric
		}
	}
}

// WithLogger sets the structured logger (default slog.Default).
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Store bound to the given backend client and index,
// creating the index if it does not exist yet.
func New(ctx context.Context, client backend.Client, index string, opts ...StoreOption) (*Store, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if index == "" {
		return nil, ErrEmptyIndexName
	}

	s := &Store{
		client:      client,
		index:       index,
		cfg:         DefaultConfig(),
		textField:   DefaultTextField,
		vectorField: DefaultVectorField,
		metric:      MetricCosine,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.strategy == nil {
		s.strategy = NewContentStrategy(s.cfg)
	}
	s.executor = &searchExecutor{client: s.client, index: s.index, logger: s.logger}

	if err := s.ensureIndex(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// FromTexts creates a Store and immediately indexes the given texts.
func FromTexts(ctx context.Context, client backend.Client, index string, texts []string, opts ...StoreOption) (*Store, error) {
	s, err := New(ctx, client, index, opts...)
	if err != nil {
		return nil, err
	}
	if _, err := s.AddTexts(ctx, texts); err != nil {
		return nil, err
	}
	return s, nil
}

// Strategy returns the active retrieval strategy.
func (s *Store) Strategy() Strategy {
	return s.strategy
}

// IndexName returns the bound index name.
func (s *Store) IndexName() string {
	return s.index
}

// SimilaritySearch returns the k most relevant documents for the query.
// When keywords are supplied and the configured keyword importance is
// positive, results are additionally reranked by keyword overlap.
func (s *Store) SimilaritySearch(ctx context.Context, query string, k int, opts ...SearchOption) ([]Document, error) {
	o := applySearchOptions(opts)
	hits, err := s.search(ctx, query, nil, k, o)
	if err != nil {
		return nil, err
	}

	docs := documents(hits)
	if len(o.keywords) > 0 && s.cfg.KeywordImportance > 0 {
		docs = rerankByKeywords(docs, o.keywords)
	}
	return truncateDocs(docs, k), nil
}

// SimilaritySearchWithScore returns the k most relevant documents with
// their raw backend scores, in backend order. Unlike SimilaritySearch it
// never applies keyword reranking: score-returning callers get the backend
// ranking untouched.
func (s *Store) SimilaritySearchWithScore(ctx context.Context, query string, k int, opts ...SearchOption) ([]SearchHit, error) {
	o := applySearchOptions(opts)
	hits, err := s.search(ctx, query, nil, k, o)
	if err != nil {
		return nil, err
	}
	return truncateHits(hits, k), nil
}

// SimilaritySearchWithRelevanceScores is SimilaritySearchWithScore with the
// raw scores min-max normalized into [0, 1] relative to the result set.
func (s *Store) SimilaritySearchWithRelevanceScores(ctx context.Context, query string, k int, opts ...SearchOption) ([]SearchHit, error) {
	hits, err := s.SimilaritySearchWithScore(ctx, query, k, opts...)
	if err != nil {
		return nil, err
	}

	raw := make([]float64, len(hits))
	for i, h := range hits {
		raw[i] = h.Score
	}
	normalized := NormalizeScores(raw)
	for i := range hits {
		hits[i].Score = normalized[i]
	}
	return hits, nil
}

// SimilaritySearchByVector searches with an explicit query vector,
// bypassing the embedder entirely.
func (s *Store) SimilaritySearchByVector(ctx context.Context, vector []float32, k int, opts ...SearchOption) ([]Document, error) {
	hits, err := s.SimilaritySearchByVectorWithScore(ctx, vector, k, opts...)
	if err != nil {
		return nil, err
	}
	return documents(hits), nil
}

// SimilaritySearchByVectorWithScore is the score-returning variant of
// SimilaritySearchByVector.
func (s *Store) SimilaritySearchByVectorWithScore(ctx context.Context, vector []float32, k int, opts ...SearchOption) ([]SearchHit, error) {
	o := applySearchOptions(opts)
	hits, err := s.search(ctx, "", vector, k, o)
	if err != nil {
		return nil, err
	}
	return truncateHits(hits, k), nil
}

// MaxMarginalRelevanceSearch fetches fetch-k candidates via the normal
// search path and selects k of them balancing relevance against diversity.
func (s *Store) MaxMarginalRelevanceSearch(ctx context.Context, query string, k int, opts ...SearchOption) ([]Document, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: max marginal relevance search", ErrNoEmbedder)
	}
	queryVector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.mmrSearch(ctx, query, queryVector, k, applySearchOptions(opts))
}

// MaxMarginalRelevanceSearchByVector is the by-vector variant of
// MaxMarginalRelevanceSearch. An embedder is still required to embed the
// candidate documents.
func (s *Store) MaxMarginalRelevanceSearchByVector(ctx context.Context, vector []float32, k int, opts ...SearchOption) ([]Document, error) {
	return s.mmrSearch(ctx, "", vector, k, applySearchOptions(opts))
}

func (s *Store) mmrSearch(ctx context.Context, query string, queryVector []float32, k int, o searchOptions) ([]Document, error) {
	hits, err := s.search(ctx, query, queryVector, o.fetchK, o)
	if err != nil {
		return nil, err
	}
	return MaximalMarginalRelevance(ctx, s.embedder, queryVector, documents(hits), k, o.lambda)
}

// IndexStats returns backend statistics for the bound index.
func (s *Store) IndexStats(ctx context.Context) (*backend.Stats, error) {
	stats, err := s.client.Stats(ctx, s.index)
	if err != nil {
		s.logger.Error("index stats failed",
			slog.String("index", s.index),
			slog.String("error", err.Error()))
		return nil, err
	}
	return stats, nil
}

// search embeds the query if the strategy requires a vector, builds the
// query body, and executes it. Hits are returned in backend order without
// truncation; callers such as MMR request more than they keep.
func (s *Store) search(ctx context.Context, query string, vector []float32, k int, o searchOptions) ([]SearchHit, error) {
	if s.strategy.NeedsVector() && len(vector) == 0 {
		if s.embedder == nil {
			return nil, fmt.Errorf("%w: %s strategy has no embedder", ErrNoQueryVector, s.strategy.Name())
		}
		embedded, err := s.embedder.EmbedQuery(ctx, query)
		if err != nil {
			return nil, err
		}
		vector = embedded
	}

	body, err := s.strategy.BuildQuery(QueryParams{
		Vector:      vector,
		Text:        query,
		K:           k,
		Keywords:    o.keywords,
		Filter:      o.filter,
		TextField:   s.textField,
		VectorField: s.vectorField,
	})
	if err != nil {
		return nil, err
	}

	return s.executor.Execute(ctx, body)
}

func applySearchOptions(opts []SearchOption) searchOptions {
	o := defaultSearchOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// documents strips scores from hits, preserving order.
func documents(hits []SearchHit) []Document {
	docs := make([]Document, len(hits))
	for i, h := range hits {
		docs[i] = h.Document
	}
	return docs
}

func truncateDocs(docs []Document, k int) []Document {
	if k >= 0 && len(docs) > k {
		return docs[:k]
	}
	return docs
}

func truncateHits(hits []SearchHit, k int) []SearchHit {
	if k >= 0 && len(hits) > k {
		return hits[:k]
	}
	return hits
}
