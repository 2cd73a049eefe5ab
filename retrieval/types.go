package retrieval

// Document is a retrievable unit of text with optional metadata.
// Documents returned from a search call are snapshots; the engine never
// mutates them afterwards.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]any
}

// SearchHit pairs a document with its backend-assigned score. Scores are
// strategy- and backend-specific: they are not comparable across different
// strategies or different queries without normalization.
type SearchHit struct {
	Document Document
	Score    float64
}

// Filter restricts results to documents whose metadata matches every entry
// exactly (conjunctive AND semantics). The reserved key "keywords" matches
// against the multi-value metadata keyword field; any other key matches
// metadata.<key>.
type Filter map[string]any

// FilterKeywordsKey is the Filter key routed to the metadata keyword field.
const FilterKeywordsKey = "keywords"

// SimilarityMetric selects the distance function for the vector field.
type SimilarityMetric string

const (
	MetricL2           SimilarityMetric = "l2"
	MetricCosine       SimilarityMetric = "cosine"
	MetricInnerProduct SimilarityMetric = "inner_product"
)

// wireName maps the metric to the name used in the index mapping.
func (m SimilarityMetric) wireName() string {
	switch m {
	case MetricL2:
		return "l2_norm"
	case MetricInnerProduct:
		return "dot_product"
	default:
		return "cosine"
	}
}

// Config tunes strategy behavior.
type Config struct {
	// KeywordImportance is the boost multiplier applied to keyword clauses.
	// Zero disables keyword boosting and keyword reranking entirely.
	KeywordImportance float64

	// Hybrid marks the configuration as hybrid retrieval. Informational.
	Hybrid bool

	// HybridAlpha is the lexical/vector balance for hybrid retrieval.
	// Currently informational: the fusion ranking is performed by the
	// backend's reciprocal rank fusion and does not consume this value.
	HybridAlpha float64
}

// DefaultConfig returns the default strategy configuration.
func DefaultConfig() Config {
	return Config{
		KeywordImportance: 1.5,
		HybridAlpha:       0.7,
	}
}

// QueryParams carries everything a strategy needs to build a backend query.
// Strategies must not mutate the Keywords and Filter containers.
type QueryParams struct {
	// Vector is the query embedding. Required by vector-based strategies.
	Vector []float32

	// Text is the query text. May be empty for by-vector searches.
	Text string

	// K is the number of results to request.
	K int

	// Keywords are optional boost terms supplied by the caller.
	Keywords []string

	// Filter restricts results by exact metadata match.
	Filter Filter

	// TextField and VectorField are the index field names.
	TextField   string
	VectorField string
}
