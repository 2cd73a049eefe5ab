package retrieval

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/lodestar-search/lodestar/embed"
)

// KeywordScore measures the overlap between a document's keywords and the
// query keywords. Comparison is case-insensitive and whitespace-trimmed.
// Returns 0 if either set is empty, otherwise the mean of the two coverage
// ratios: (|∩|/|doc| + |∩|/|query|) / 2.
func KeywordScore(docKeywords, queryKeywords []string) float64 {
	docSet := keywordSet(docKeywords)
	querySet := keywordSet(queryKeywords)
	if len(docSet) == 0 || len(querySet) == 0 {
		return 0.0
	}

	intersection := 0
	for kw := range docSet {
		if _, ok := querySet[kw]; ok {
			intersection++
		}
	}

	docCoverage := float64(intersection) / float64(len(docSet))
	queryCoverage := float64(intersection) / float64(len(querySet))
	return (docCoverage + queryCoverage) / 2
}

// keywordSet normalizes keywords into a set, dropping empties.
func keywordSet(keywords []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			set[kw] = struct{}{}
		}
	}
	return set
}

// rerankByKeywords stable-sorts documents descending by keyword overlap with
// the query keywords. Documents with equal scores keep backend order.
func rerankByKeywords(docs []Document, queryKeywords []string) []Document {
	scores := make([]float64, len(docs))
	for i, doc := range docs {
		scores[i] = KeywordScore(documentKeywords(doc), queryKeywords)
	}

	reranked := make([]Document, len(docs))
	copy(reranked, docs)
	order := make([]int, len(docs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})
	for i, idx := range order {
		reranked[i] = docs[idx]
	}
	return reranked
}

// documentKeywords extracts the keyword list from document metadata.
// Both []string and []any values are accepted; anything else yields nil.
func documentKeywords(doc Document) []string {
	raw, ok := doc.Metadata[FilterKeywordsKey]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		keywords := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				keywords = append(keywords, s)
			}
		}
		return keywords
	default:
		return nil
	}
}

// NormalizeScores min-max normalizes raw scores into [0, 1] relative to the
// returned result set. When all scores are equal every result is assigned
// 1.0: a uniformly-scored result set is treated as uniformly relevant, not
// uniformly irrelevant.
func NormalizeScores(scores []float64) []float64 {
	if len(scores) == 0 {
		return []float64{}
	}

	minScore, maxScore := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < minScore {
			minScore = s
		}
		if s > maxScore {
			maxScore = s
		}
	}

	normalized := make([]float64, len(scores))
	if maxScore == minScore {
		for i := range normalized {
			normalized[i] = 1.0
		}
		return normalized
	}

	spread := maxScore - minScore
	for i, s := range scores {
		normalized[i] = (s - minScore) / spread
	}
	return normalized
}

// CosineSimilarity computes the cosine of the angle between two vectors as
// an explicit loop. Returns 0 for mismatched lengths or zero vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// MaximalMarginalRelevance selects up to k documents from candidates,
// trading off relevance to the query vector against diversity among the
// already-selected set:
//
//	score(d) = lambda*cos(d, query) - (1-lambda)*max cos(d, selected)
//
// Candidate embeddings are computed on the fly with one batch call per
// invocation; nothing is cached between calls. When there are no more than
// k candidates they are returned unchanged in input order without any
// embedding work.
func MaximalMarginalRelevance(ctx context.Context, embedder embed.Embedder, queryVector []float32, candidates []Document, k int, lambda float64) ([]Document, error) {
	if k <= 0 {
		return []Document{}, nil
	}
	if len(candidates) <= k {
		return candidates, nil
	}
	if embedder == nil {
		return nil, ErrNoEmbedder
	}

	texts := make([]string, len(candidates))
	for i, doc := range candidates {
		texts[i] = doc.Text
	}
	embeddings, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}

	relevance := make([]float64, len(candidates))
	for i, emb := range embeddings {
		relevance[i] = CosineSimilarity(emb, queryVector)
	}

	selected := make([]int, 0, k)
	remaining := make(map[int]struct{}, len(candidates))
	for i := range candidates {
		remaining[i] = struct{}{}
	}

	// Seed with the single most relevant candidate.
	first := argmaxRelevance(relevance)
	selected = append(selected, first)
	delete(remaining, first)

	for len(selected) < k && len(remaining) > 0 {
		best := -1
		bestScore := math.Inf(-1)
		// Iterate in input order for deterministic tie-breaking.
		for i := range candidates {
			if _, ok := remaining[i]; !ok {
				continue
			}
			maxSim := math.Inf(-1)
			for _, s := range selected {
				if sim := CosineSimilarity(embeddings[i], embeddings[s]); sim > maxSim {
					maxSim = sim
				}
			}
			score := lambda*relevance[i] - (1-lambda)*maxSim
			if score > bestScore {
				bestScore = score
				best = i
			}
		}
		selected = append(selected, best)
		delete(remaining, best)
	}

	result := make([]Document, len(selected))
	for i, idx := range selected {
		result[i] = candidates[idx]
	}
	return result, nil
}

// argmaxRelevance returns the index of the highest relevance score,
// preferring the earliest on ties.
func argmaxRelevance(relevance []float64) int {
	best := 0
	for i, r := range relevance {
		if r > relevance[best] {
			best = i
		}
	}
	return best
}
