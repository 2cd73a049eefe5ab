package retrieval

import (
	"fmt"
	"sort"
	"strings"
)

// Fuzzy matching parameters shared by all lexical match clauses.
const (
	fuzziness     = "AUTO"
	fuzzyPrefix   = 2
	maxExpansions = 50
	matchOperator = "or"
)

// Keyword clause boost multipliers, applied on top of Config.KeywordImportance.
const (
	phraseBoost       = 2.0
	fuzzyBoost        = 1.0
	metadataTermBoost = 1.5
)

// Strategy builds backend query bodies for one retrieval approach.
// Implementations are pure: BuildQuery performs no I/O and never mutates
// its inputs.
type Strategy interface {
	// Name returns the strategy identifier.
	Name() string

	// NeedsVector reports whether BuildQuery requires QueryParams.Vector.
	NeedsVector() bool

	// BuildQuery builds the structured query body for the backend.
	BuildQuery(p QueryParams) (map[string]any, error)
}

// Closed set of strategy variants.
var (
	_ Strategy = (*ContentStrategy)(nil)
	_ Strategy = (*DenseHybridStrategy)(nil)
	_ Strategy = (*KeywordStrategy)(nil)
)

// ContentStrategy is pure lexical retrieval: a BM25 match on the text field
// with fuzzy tolerance, optionally boosted by caller-supplied keywords.
type ContentStrategy struct {
	cfg Config
}

// NewContentStrategy creates a lexical content strategy.
func NewContentStrategy(cfg Config) *ContentStrategy {
	return &ContentStrategy{cfg: cfg}
}

func (s *ContentStrategy) Name() string      { return "content" }
func (s *ContentStrategy) NeedsVector() bool { return false }

// BuildQuery builds a bool query with a mandatory fuzzy match on the text
// field. When keywords are present and keyword importance is positive, a
// nested should-group (minimum_should_match 1) adds per-keyword phrase,
// fuzzy, and metadata-term clauses.
func (s *ContentStrategy) BuildQuery(p QueryParams) (map[string]any, error) {
	boolQuery := map[string]any{
		"must": []any{fuzzyMatchClause(p.TextField, p.Text, 0)},
	}

	if group := keywordShouldGroup(p.TextField, p.Keywords, s.cfg.KeywordImportance); group != nil {
		boolQuery["should"] = []any{group}
	}

	if clauses := filterClauses(p.Filter); len(clauses) > 0 {
		boolQuery["filter"] = clauses
	}

	return map[string]any{
		"size":  p.K,
		"query": map[string]any{"bool": boolQuery},
	}, nil
}

// DenseHybridStrategy fuses vector nearest-neighbor retrieval with a lexical
// match through the backend's reciprocal rank fusion pipeline.
type DenseHybridStrategy struct {
	cfg Config
}

// NewDenseHybridStrategy creates a hybrid vector+lexical strategy.
func NewDenseHybridStrategy(cfg Config) *DenseHybridStrategy {
	return &DenseHybridStrategy{cfg: cfg}
}

func (s *DenseHybridStrategy) Name() string      { return "dense_hybrid" }
func (s *DenseHybridStrategy) NeedsVector() bool { return true }

// BuildQuery builds an approximate-nearest-neighbor clause over 2k candidates
// plus a lexical match clause, combined via rank.rrf. Keyword boosting is
// folded into the lexical clause as flat should-clauses.
func (s *DenseHybridStrategy) BuildQuery(p QueryParams) (map[string]any, error) {
	if len(p.Vector) == 0 {
		return nil, fmt.Errorf("%w: %s strategy", ErrNoQueryVector, s.Name())
	}

	boolQuery := map[string]any{
		"must": []any{fuzzyMatchClause(p.TextField, p.Text, 0)},
	}
	if should := perKeywordClauses(p.TextField, p.Keywords, s.cfg.KeywordImportance); len(should) > 0 {
		boolQuery["should"] = should
	}

	knn := map[string]any{
		"field":          p.VectorField,
		"query_vector":   p.Vector,
		"k":              p.K,
		"num_candidates": 2 * p.K,
	}

	if clauses := filterClauses(p.Filter); len(clauses) > 0 {
		boolQuery["filter"] = clauses
		knn["filter"] = clauses
	}

	return map[string]any{
		"size":  p.K,
		"query": map[string]any{"bool": boolQuery},
		"knn":   knn,
		"rank":  map[string]any{"rrf": map[string]any{}},
	}, nil
}

// KeywordStrategy matches on keywords and query terms only, with no
// mandatory full-text clause. At least one should-clause must match.
type KeywordStrategy struct {
	cfg Config
}

// NewKeywordStrategy creates a pure keyword/term strategy.
func NewKeywordStrategy(cfg Config) *KeywordStrategy {
	return &KeywordStrategy{cfg: cfg}
}

func (s *KeywordStrategy) Name() string      { return "keyword" }
func (s *KeywordStrategy) NeedsVector() bool { return false }

// BuildQuery emits per-keyword metadata-term, phrase, and fuzzy clauses,
// a full-query fuzzy match, and per-term fuzzy matches for recall.
func (s *KeywordStrategy) BuildQuery(p QueryParams) (map[string]any, error) {
	var should []any

	if s.cfg.KeywordImportance > 0 {
		for _, kw := range p.Keywords {
			should = append(should,
				termClause(metadataField(FilterKeywordsKey), kw, phraseBoost*s.cfg.KeywordImportance),
				phraseClause(p.TextField, kw, metadataTermBoost*s.cfg.KeywordImportance),
				fuzzyMatchClause(p.TextField, kw, fuzzyBoost*s.cfg.KeywordImportance),
			)
		}
	}

	// Full query plus individual long terms, at low boost, to improve recall.
	should = append(should, fuzzyMatchClause(p.TextField, p.Text, 1.0))
	for _, term := range strings.Fields(p.Text) {
		if len(term) > 2 {
			should = append(should, fuzzyMatchClause(p.TextField, term, 0.5))
		}
	}

	boolQuery := map[string]any{
		"should":               should,
		"minimum_should_match": 1,
	}
	if clauses := filterClauses(p.Filter); len(clauses) > 0 {
		boolQuery["filter"] = clauses
	}

	return map[string]any{
		"size":  p.K,
		"query": map[string]any{"bool": boolQuery},
	}, nil
}

// fuzzyMatchClause builds a match clause with the shared fuzzy parameters.
// A boost of 0 omits the boost key (mandatory clauses are unboosted).
func fuzzyMatchClause(field, text string, boost float64) map[string]any {
	params := map[string]any{
		"query":          text,
		"fuzziness":      fuzziness,
		"prefix_length":  fuzzyPrefix,
		"max_expansions": maxExpansions,
		"operator":       matchOperator,
	}
	if boost > 0 {
		params["boost"] = boost
	}
	return map[string]any{"match": map[string]any{field: params}}
}

// phraseClause builds an exact phrase match on the text field.
func phraseClause(field, text string, boost float64) map[string]any {
	return map[string]any{
		"match_phrase": map[string]any{
			field: map[string]any{"query": text, "boost": boost},
		},
	}
}

// termClause builds an exact term match.
func termClause(field string, value any, boost float64) map[string]any {
	params := map[string]any{"value": value}
	if boost > 0 {
		params["boost"] = boost
	}
	return map[string]any{"term": map[string]any{field: params}}
}

// metadataField maps a filter key to its index field name.
func metadataField(key string) string {
	return "metadata." + key
}

// perKeywordClauses builds the flat keyword boost clauses: exact phrase at
// 2x importance, fuzzy match at 1x, metadata term at 1.5x.
func perKeywordClauses(textField string, keywords []string, importance float64) []any {
	if len(keywords) == 0 || importance <= 0 {
		return nil
	}
	clauses := make([]any, 0, 3*len(keywords))
	for _, kw := range keywords {
		clauses = append(clauses,
			phraseClause(textField, kw, phraseBoost*importance),
			fuzzyMatchClause(textField, kw, fuzzyBoost*importance),
			termClause(metadataField(FilterKeywordsKey), kw, metadataTermBoost*importance),
		)
	}
	return clauses
}

// keywordShouldGroup wraps the per-keyword clauses in a nested bool requiring
// at least one match. Returns nil when there is nothing to boost.
func keywordShouldGroup(textField string, keywords []string, importance float64) map[string]any {
	clauses := perKeywordClauses(textField, keywords, importance)
	if clauses == nil {
		return nil
	}
	return map[string]any{
		"bool": map[string]any{
			"should":               clauses,
			"minimum_should_match": 1,
		},
	}
}

// filterClauses converts a Filter into conjunctive exact-term clauses.
// Keys are emitted in sorted order so query bodies are deterministic.
func filterClauses(f Filter) []any {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]any, 0, len(keys))
	for _, k := range keys {
		clauses = append(clauses, termClause(metadataField(k), f[k], 0))
	}
	return clauses
}
