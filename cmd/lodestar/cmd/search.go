package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lodestar-search/lodestar/internal/output"
	"github.com/lodestar-search/lodestar/retrieval"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit    int
	keywords []string
	filter   []string // key=value pairs
	format   string   // "text", "json"
	scores   bool
	mmr      bool
	lambda   float64
	fetchK   int
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the index",
		Long: `Search the index with the configured retrieval strategy.

Keywords boost matching documents and rerank results by keyword overlap.
Filters restrict results to documents whose metadata matches exactly.

Examples:
  lodestar search "connection pooling"
  lodestar search "retry behavior" --keywords backoff --keywords timeout
  lodestar search "release notes" --filter source=docs/changelog.md
  lodestar search "error handling" --mmr --limit 5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringSliceVarP(&opts.keywords, "keywords", "k", nil, "Boost keyword (repeatable)")
	cmd.Flags().StringSliceVarP(&opts.filter, "filter", "f", nil, "Metadata filter as key=value (repeatable)")
	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.scores, "scores", false, "Show normalized relevance scores")
	cmd.Flags().BoolVar(&opts.mmr, "mmr", false, "Diversify results with maximal marginal relevance")
	cmd.Flags().Float64Var(&opts.lambda, "lambda", retrieval.DefaultLambda, "MMR relevance/diversity balance (0.0-1.0)")
	cmd.Flags().IntVar(&opts.fetchK, "fetch-k", retrieval.DefaultFetchK, "MMR candidate pool size")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	out := output.New(cmd.OutOrStdout())

	filter, err := parseKeyValues(opts.filter)
	if err != nil {
		return err
	}

	eng, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.close()

	searchOpts := []retrieval.SearchOption{}
	if len(filter) > 0 {
		searchOpts = append(searchOpts, retrieval.WithFilter(retrieval.Filter(filter)))
	}
	if len(opts.keywords) > 0 {
		searchOpts = append(searchOpts, retrieval.WithKeywords(opts.keywords...))
	}

	var hits []retrieval.SearchHit
	switch {
	case opts.mmr:
		searchOpts = append(searchOpts,
			retrieval.WithLambda(opts.lambda),
			retrieval.WithFetchK(opts.fetchK))
		docs, err := eng.store.MaxMarginalRelevanceSearch(ctx, query, opts.limit, searchOpts...)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		for _, doc := range docs {
			hits = append(hits, retrieval.SearchHit{Document: doc})
		}
	case opts.scores:
		hits, err = eng.store.SimilaritySearchWithRelevanceScores(ctx, query, opts.limit, searchOpts...)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
	default:
		docs, err := eng.store.SimilaritySearch(ctx, query, opts.limit, searchOpts...)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		for _, doc := range docs {
			hits = append(hits, retrieval.SearchHit{Document: doc})
		}
	}

	if len(hits) == 0 {
		out.Status("", fmt.Sprintf("No results found for %q", query))
		return nil
	}

	if opts.format == "json" {
		return formatJSON(cmd, hits, opts)
	}
	return formatText(out, query, hits, opts)
}

// formatText outputs results in human-readable form.
func formatText(out *output.Writer, query string, hits []retrieval.SearchHit, opts searchOptions) error {
	out.Statusf("🔍", "Found %d results for %q:", len(hits), query)
	out.Newline()

	showScores := opts.scores && !opts.mmr
	for i, hit := range hits {
		location := hit.Document.ID
		if source, ok := hit.Document.Metadata["source"].(string); ok && source != "" {
			location = source
		}

		if showScores {
			out.Statusf("", "%d. %s (score: %.3f)", i+1, location, hit.Score)
		} else {
			out.Statusf("", "%d. %s", i+1, location)
		}

		for _, line := range getSnippet(hit.Document.Text, 3) {
			out.Status("", "   "+line)
		}
		out.Newline()
	}
	return nil
}

// formatJSON outputs results as JSON.
func formatJSON(cmd *cobra.Command, hits []retrieval.SearchHit, opts searchOptions) error {
	type jsonResult struct {
		ID       string         `json:"id"`
		Score    *float64       `json:"score,omitempty"`
		Text     string         `json:"text"`
		Metadata map[string]any `json:"metadata,omitempty"`
	}

	results := make([]jsonResult, 0, len(hits))
	for _, hit := range hits {
		r := jsonResult{ID: hit.Document.ID, Text: hit.Document.Text, Metadata: hit.Document.Metadata}
		if opts.scores && !opts.mmr {
			score := hit.Score
			r.Score = &score
		}
		results = append(results, r)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// getSnippet returns the first n lines of content.
func getSnippet(content string, n int) []string {
	lines := strings.Split(content, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
