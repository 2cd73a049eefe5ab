package embedded

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

// lexicalDoc is the document structure indexed in bleve. Metadata values
// are stringified so term clauses match them exactly regardless of the
// original scalar type.
type lexicalDoc struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// lexicalIndex wraps bleve for the lexical leg: full-text matching plus
// exact metadata terms.
type lexicalIndex struct {
	index bleve.Index
}

// newLexicalMapping maps content with the standard analyzer and metadata
// sub-fields with the keyword analyzer for exact term matching.
func newLexicalMapping() mapping.IndexMapping {
	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = standard.Name

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("content", contentField)

	meta := bleve.NewDocumentMapping()
	meta.DefaultAnalyzer = keyword.Name
	doc.AddSubDocumentMapping("metadata", meta)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	return im
}

// openLexicalIndex opens or creates a bleve index. An empty path creates an
// in-memory index.
func openLexicalIndex(path string) (*lexicalIndex, error) {
	im := newLexicalMapping()

	var idx bleve.Index
	var err error
	if path == "" {
		idx, err = bleve.NewMemOnly(im)
	} else {
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, im)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open lexical index: %w", err)
	}
	return &lexicalIndex{index: idx}, nil
}

// add indexes documents in one batch, replacing existing ids.
func (l *lexicalIndex) add(docs []lexicalDoc, ids []string) error {
	batch := l.index.NewBatch()
	for i, doc := range docs {
		if err := batch.Index(ids[i], doc); err != nil {
			return fmt.Errorf("index document %s: %w", ids[i], err)
		}
	}
	if err := l.index.Batch(batch); err != nil {
		return fmt.Errorf("execute index batch: %w", err)
	}
	return nil
}

// delete removes documents in one batch.
func (l *lexicalIndex) delete(ids []string) error {
	batch := l.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := l.index.Batch(batch); err != nil {
		return fmt.Errorf("execute delete batch: %w", err)
	}
	return nil
}

// search translates a structured query clause and returns ranked ids.
func (l *lexicalIndex) search(ctx context.Context, clause map[string]any, size int) ([]scored, error) {
	q, err := l.translate(clause)
	if err != nil {
		return nil, err
	}

	req := bleve.NewSearchRequest(q)
	req.Size = size
	res, err := l.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	results := make([]scored, 0, len(res.Hits))
	for _, hit := range res.Hits {
		results = append(results, scored{id: hit.ID, score: hit.Score})
	}
	return results, nil
}

// close closes the index.
func (l *lexicalIndex) close() error {
	return l.index.Close()
}

// translate converts one structured query clause into a bleve query.
// The supported subset is exactly what the retrieval strategies emit:
// bool, match, match_phrase, and term clauses.
func (l *lexicalIndex) translate(clause map[string]any) (query.Query, error) {
	for kind, body := range clause {
		params, ok := body.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("malformed %s clause", kind)
		}
		switch kind {
		case "bool":
			return l.translateBool(params)
		case "match":
			return translateFieldClause(params, translateMatch)
		case "match_phrase":
			return translateFieldClause(params, translatePhrase)
		case "term":
			return translateFieldClause(params, translateTerm)
		}
	}
	return nil, fmt.Errorf("unsupported query clause: %v", clauseKinds(clause))
}

// translateBool builds a boolean query from must/should/filter groups.
// Filter clauses become additional conjuncts; bleve has no scoreless
// filter context, which is acceptable for an embedded engine.
func (l *lexicalIndex) translateBool(params map[string]any) (query.Query, error) {
	bq := bleve.NewBooleanQuery()

	for _, group := range []string{"must", "filter"} {
		for _, sub := range asClauseList(params[group]) {
			q, err := l.translate(sub)
			if err != nil {
				return nil, err
			}
			bq.AddMust(q)
		}
	}
	for _, sub := range asClauseList(params["should"]) {
		q, err := l.translate(sub)
		if err != nil {
			return nil, err
		}
		bq.AddShould(q)
	}
	if min, ok := asInt(params["minimum_should_match"]); ok {
		bq.SetMinShould(float64(min))
	}
	return bq, nil
}

// translateFieldClause unwraps the single {field: params} level shared by
// match, match_phrase, and term clauses.
func translateFieldClause(body map[string]any, build func(field string, params map[string]any) (query.Query, error)) (query.Query, error) {
	for field, raw := range body {
		params, ok := raw.(map[string]any)
		if !ok {
			// Short form: {"term": {"field": "value"}}.
			params = map[string]any{"value": raw, "query": raw}
		}
		return build(routeField(field), params)
	}
	return nil, fmt.Errorf("empty field clause")
}

func translateMatch(field string, params map[string]any) (query.Query, error) {
	text, _ := params["query"].(string)
	mq := bleve.NewMatchQuery(text)
	mq.SetField(field)
	if _, ok := params["fuzziness"]; ok {
		mq.SetFuzziness(1)
	}
	if prefix, ok := asInt(params["prefix_length"]); ok {
		mq.SetPrefix(prefix)
	}
	if op, _ := params["operator"].(string); op == "and" {
		mq.SetOperator(query.MatchQueryOperatorAnd)
	}
	if boost, ok := asFloat(params["boost"]); ok {
		mq.SetBoost(boost)
	}
	return mq, nil
}

func translatePhrase(field string, params map[string]any) (query.Query, error) {
	text, _ := params["query"].(string)
	pq := bleve.NewMatchPhraseQuery(text)
	pq.SetField(field)
	if boost, ok := asFloat(params["boost"]); ok {
		pq.SetBoost(boost)
	}
	return pq, nil
}

func translateTerm(field string, params map[string]any) (query.Query, error) {
	tq := bleve.NewTermQuery(stringifyScalar(params["value"]))
	tq.SetField(field)
	if boost, ok := asFloat(params["boost"]); ok {
		tq.SetBoost(boost)
	}
	return tq, nil
}

// routeField maps query field names onto the indexed document shape:
// metadata fields pass through, everything else is the content field.
func routeField(field string) string {
	if strings.HasPrefix(field, "metadata.") {
		return field
	}
	return "content"
}

// clauseKinds lists the keys of an unsupported clause for error messages.
func clauseKinds(clause map[string]any) []string {
	kinds := make([]string, 0, len(clause))
	for k := range clause {
		kinds = append(kinds, k)
	}
	return kinds
}
