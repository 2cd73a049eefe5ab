package retrieval

// MMR defaults.
const (
	// DefaultFetchK is the number of candidates fetched before MMR selection.
	DefaultFetchK = 20

	// DefaultLambda balances relevance against diversity in MMR selection.
	DefaultLambda = 0.5
)

// searchOptions collects per-call search settings.
type searchOptions struct {
	filter   Filter
	keywords []string
	fetchK   int
	lambda   float64
}

func defaultSearchOptions() searchOptions {
	return searchOptions{
		fetchK: DefaultFetchK,
		lambda: DefaultLambda,
	}
}

// SearchOption configures a single search call.
type SearchOption func(*searchOptions)

// WithFilter restricts results by exact metadata match.
func WithFilter(f Filter) SearchOption {
	return func(o *searchOptions) {
		o.filter = f
	}
}

// WithKeywords supplies boost keywords. When the active strategy has a
// positive keyword importance, SimilaritySearch additionally reranks results
// by keyword overlap.
func WithKeywords(keywords ...string) SearchOption {
	return func(o *searchOptions) {
		o.keywords = keywords
	}
}

// WithFetchK sets the MMR candidate pool size (default 20).
func WithFetchK(fetchK int) SearchOption {
	return func(o *searchOptions) {
		if fetchK > 0 {
			o.fetchK = fetchK
		}
	}
}

// WithLambda sets the MMR relevance/diversity tradeoff in [0, 1]
// (default 0.5; 1 is pure relevance).
func WithLambda(lambda float64) SearchOption {
	return func(o *searchOptions) {
		o.lambda = lambda
	}
}

// addOptions collects per-call AddTexts settings.
type addOptions struct {
	metadatas []map[string]any
	ids       []string
}

// AddOption configures an AddTexts call.
type AddOption func(*addOptions)

// WithMetadatas attaches one metadata map per text. Must match the number
// of texts; nil entries default to an empty map.
func WithMetadatas(metadatas []map[string]any) AddOption {
	return func(o *addOptions) {
		o.metadatas = metadatas
	}
}

// WithIDs assigns explicit document ids. Must match the number of texts.
// Writing an existing id overwrites that document.
func WithIDs(ids []string) AddOption {
	return func(o *addOptions) {
		o.ids = ids
	}
}
