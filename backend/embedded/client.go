// Package embedded provides an in-process implementation of the backend
// Client contract. Lexical ranking runs on bleve, vector search on an HNSW
// graph, and document storage on SQLite; hybrid queries fuse the two legs
// with reciprocal rank fusion. It exists so the retrieval engine works
// without an external search cluster, for tests and single-node deployments.
package embedded

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lodestar-search/lodestar/backend"
)

const (
	defaultSearchSize = 10

	// lexicalOverfetch widens the lexical leg of hybrid queries so fusion
	// sees candidates beyond the final page.
	lexicalOverfetch = 2

	mappingFileName = "mapping.json"
	bleveDirName    = "bleve"
	docsFileName    = "docs.db"
	vectorsFileName = "vectors.hnsw"
)

// index holds the per-index state: parsed mapping plus the three stores.
type index struct {
	mu sync.Mutex

	name        string
	path        string // "" for in-memory
	mapping     map[string]any
	textField   string
	vectorField string
	dims        int
	metric      string

	lexical *lexicalIndex
	vectors *vectorIndex // nil when the mapping has no vector field
	docs    *docTable
}

// Client is an embedded search backend. A zero path keeps everything in
// memory; otherwise each index persists under its own subdirectory of path.
type Client struct {
	mu      sync.RWMutex
	path    string
	logger  *slog.Logger
	lock    *dirLock
	indexes map[string]*index
}

var _ backend.Client = (*Client)(nil)

// Option configures the embedded client.
type Option func(*Client)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New opens an embedded backend rooted at path. Existing indexes under path
// are reopened. An empty path creates a purely in-memory backend.
func New(path string, opts ...Option) (*Client, error) {
	c := &Client{
		path:    path,
		logger:  slog.Default(),
		indexes: make(map[string]*index),
	}
	for _, opt := range opts {
		opt(c)
	}

	if path == "" {
		return c, nil
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create backend directory: %w", err)
	}
	lock, err := acquireDirLock(path)
	if err != nil {
		return nil, err
	}
	c.lock = lock

	if err := c.reopenIndexes(); err != nil {
		_ = lock.release()
		return nil, err
	}
	return c, nil
}

// reopenIndexes restores every index directory containing a mapping file.
func (c *Client) reopenIndexes() error {
	entries, err := os.ReadDir(c.path)
	if err != nil {
		return fmt.Errorf("scan backend directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		mappingPath := filepath.Join(c.path, name, mappingFileName)
		raw, err := os.ReadFile(mappingPath)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("read mapping for %s: %w", name, err)
		}
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("parse mapping for %s: %w", name, err)
		}
		idx, err := c.openIndex(name, m, false)
		if err != nil {
			return fmt.Errorf("reopen index %s: %w", name, err)
		}
		c.indexes[name] = idx
		c.logger.Info("reopened index", "index", name, "dims", idx.dims)
	}
	return nil
}

// openIndex opens or creates the stores for one index.
func (c *Client) openIndex(name string, m map[string]any, create bool) (*index, error) {
	idx := &index{name: name, mapping: m}
	idx.textField, idx.vectorField, idx.dims, idx.metric = parseMapping(m)

	if c.path != "" {
		idx.path = filepath.Join(c.path, name)
		if err := os.MkdirAll(idx.path, 0o755); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
	}

	lexPath, docsPath := "", ""
	if idx.path != "" {
		lexPath = filepath.Join(idx.path, bleveDirName)
		docsPath = filepath.Join(idx.path, docsFileName)
	}

	lexical, err := openLexicalIndex(lexPath)
	if err != nil {
		return nil, err
	}
	idx.lexical = lexical

	docs, err := openDocTable(docsPath)
	if err != nil {
		_ = lexical.close()
		return nil, err
	}
	idx.docs = docs

	if idx.dims > 0 {
		vectorsPath := ""
		if idx.path != "" {
			vectorsPath = filepath.Join(idx.path, vectorsFileName)
		}
		if !create && vectorsPath != "" {
			if _, err := os.Stat(vectorsPath); err == nil {
				vectors, err := loadVectorIndex(vectorsPath)
				if err != nil {
					_ = lexical.close()
					_ = docs.close()
					return nil, err
				}
				idx.vectors = vectors
			}
		}
		if idx.vectors == nil {
			idx.vectors = newVectorIndex(idx.dims, idx.metric)
		}
	}
	return idx, nil
}

// IndexExists reports whether the named index exists.
func (c *Client) IndexExists(ctx context.Context, name string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.indexes[name]
	return ok, nil
}

// CreateIndex creates a new index from an index mapping body.
func (c *Client) CreateIndex(ctx context.Context, name string, m map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.indexes[name]; exists {
		return backend.NewError("create_index", name, fmt.Errorf("index already exists"))
	}

	idx, err := c.openIndex(name, m, true)
	if err != nil {
		return backend.NewError("create_index", name, err)
	}

	if idx.path != "" {
		raw, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return backend.NewError("create_index", name, fmt.Errorf("marshal mapping: %w", err))
		}
		if err := os.WriteFile(filepath.Join(idx.path, mappingFileName), raw, 0o644); err != nil {
			return backend.NewError("create_index", name, fmt.Errorf("write mapping: %w", err))
		}
	}

	c.indexes[name] = idx
	c.logger.Info("created index", "index", name, "dims", idx.dims, "metric", idx.metric)
	return nil
}

// BulkUpsert writes documents into all three stores, overwriting existing
// ids.
func (c *Client) BulkUpsert(ctx context.Context, name string, docs []backend.BulkDoc) error {
	idx, err := c.lookup(name)
	if err != nil {
		return backend.NewError("bulk_upsert", name, err)
	}
	if len(docs) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	rows := make([]docRow, len(docs))
	lexDocs := make([]lexicalDoc, len(docs))
	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
		rows[i] = docRow{id: doc.ID, text: doc.Text, metadata: doc.Metadata}
		lexDocs[i] = lexicalDoc{Content: doc.Text, Metadata: stringifyMetadata(doc.Metadata)}
	}

	if err := idx.docs.upsert(ctx, rows); err != nil {
		return backend.NewError("bulk_upsert", name, err)
	}
	if err := idx.lexical.add(lexDocs, ids); err != nil {
		return backend.NewError("bulk_upsert", name, err)
	}

	if idx.vectors != nil {
		var vecIDs []string
		var vecs [][]float32
		for _, doc := range docs {
			if doc.Vector != nil {
				vecIDs = append(vecIDs, doc.ID)
				vecs = append(vecs, doc.Vector)
			}
		}
		if len(vecIDs) > 0 {
			if err := idx.vectors.add(vecIDs, vecs); err != nil {
				return backend.NewError("bulk_upsert", name, err)
			}
			if err := c.saveVectors(idx); err != nil {
				return backend.NewError("bulk_upsert", name, err)
			}
		}
	}
	return nil
}

// DeleteByIDs removes the documents with the given ids from all stores.
func (c *Client) DeleteByIDs(ctx context.Context, name string, ids []string) error {
	idx, err := c.lookup(name)
	if err != nil {
		return backend.NewError("delete", name, err)
	}
	if len(ids) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.docs.delete(ctx, ids); err != nil {
		return backend.NewError("delete", name, err)
	}
	if err := idx.lexical.delete(ids); err != nil {
		return backend.NewError("delete", name, err)
	}
	if idx.vectors != nil {
		idx.vectors.delete(ids)
		if err := c.saveVectors(idx); err != nil {
			return backend.NewError("delete", name, err)
		}
	}
	return nil
}

// Search executes a structured query body. A body with both a query and a
// knn clause runs both legs concurrently and fuses them; otherwise the
// single present leg runs alone.
func (c *Client) Search(ctx context.Context, name string, body map[string]any) ([]backend.Hit, error) {
	idx, err := c.lookup(name)
	if err != nil {
		return nil, backend.NewError("search", name, err)
	}

	size := defaultSearchSize
	if n, ok := asInt(body["size"]); ok && n > 0 {
		size = n
	}
	queryClause, hasQuery := body["query"].(map[string]any)
	knnClause, hasKNN := body["knn"].(map[string]any)

	var ranked []scored
	switch {
	case hasQuery && hasKNN:
		ranked, err = c.hybridSearch(ctx, idx, queryClause, knnClause, size)
	case hasKNN:
		ranked, err = c.vectorSearch(ctx, idx, knnClause, size)
	case hasQuery:
		ranked, err = idx.lexical.search(ctx, queryClause, size)
	default:
		err = fmt.Errorf("query body has neither query nor knn clause")
	}
	if err != nil {
		return nil, backend.NewError("search", name, err)
	}

	if len(ranked) > size {
		ranked = ranked[:size]
	}
	return c.hydrate(ctx, idx, ranked)
}

// hybridSearch runs the lexical and vector legs concurrently and fuses the
// ranked lists with RRF. The lexical leg overfetches so fusion has depth.
func (c *Client) hybridSearch(ctx context.Context, idx *index, queryClause, knnClause map[string]any, size int) ([]scored, error) {
	var lexical, vector []scored
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lexical, err = idx.lexical.search(gctx, queryClause, size*lexicalOverfetch)
		return err
	})
	g.Go(func() error {
		var err error
		vector, err = c.vectorSearch(gctx, idx, knnClause, size)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return fuseRRF(lexical, vector), nil
}

// vectorSearch runs the knn clause against the HNSW graph, applying any knn
// filter as a metadata post-filter.
func (c *Client) vectorSearch(ctx context.Context, idx *index, knnClause map[string]any, size int) ([]scored, error) {
	if idx.vectors == nil {
		return nil, fmt.Errorf("index %s has no vector field", idx.name)
	}

	vec, ok := asVector(knnClause["query_vector"])
	if !ok {
		return nil, fmt.Errorf("knn clause has no query_vector")
	}
	k := size
	if n, ok := asInt(knnClause["k"]); ok && n > 0 {
		k = n
	}

	filters := asClauseList(knnClause["filter"])
	fetch := k
	if len(filters) > 0 {
		// Overfetch so post-filtering can still fill k results.
		fetch = k * 4
	}

	ranked, err := idx.vectors.search(vec, fetch)
	if err != nil {
		return nil, err
	}
	if len(filters) == 0 {
		return ranked, nil
	}

	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.id
	}
	rows, err := idx.docs.get(ctx, ids)
	if err != nil {
		return nil, err
	}

	filtered := make([]scored, 0, k)
	for _, r := range ranked {
		row, ok := rows[r.id]
		if !ok || !matchesFilters(row.metadata, filters) {
			continue
		}
		filtered = append(filtered, r)
		if len(filtered) == k {
			break
		}
	}
	return filtered, nil
}

// hydrate turns ranked ids into hits with text and metadata, preserving
// rank order. Ids missing from the document table are dropped.
func (c *Client) hydrate(ctx context.Context, idx *index, ranked []scored) ([]backend.Hit, error) {
	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.id
	}
	rows, err := idx.docs.get(ctx, ids)
	if err != nil {
		return nil, backend.NewError("search", idx.name, err)
	}

	hits := make([]backend.Hit, 0, len(ranked))
	for _, r := range ranked {
		row, ok := rows[r.id]
		if !ok {
			continue
		}
		hits = append(hits, backend.Hit{
			ID:       r.id,
			Score:    r.score,
			Text:     row.text,
			Metadata: row.metadata,
		})
	}
	return hits, nil
}

// Stats returns document count and on-disk size for the index.
func (c *Client) Stats(ctx context.Context, name string) (*backend.Stats, error) {
	idx, err := c.lookup(name)
	if err != nil {
		return nil, backend.NewError("stats", name, err)
	}

	count, err := idx.docs.count(ctx)
	if err != nil {
		return nil, backend.NewError("stats", name, err)
	}

	var size int64
	if idx.path != "" {
		_ = filepath.WalkDir(idx.path, func(_ string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if info, err := d.Info(); err == nil {
				size += info.Size()
			}
			return nil
		})
	}
	return &backend.Stats{DocumentCount: count, SizeBytes: size}, nil
}

// Close closes every index and releases the directory lock.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for name, idx := range c.indexes {
		idx.mu.Lock()
		if err := idx.lexical.close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close lexical index %s: %w", name, err)
		}
		if err := idx.docs.close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close document table %s: %w", name, err)
		}
		idx.mu.Unlock()
	}
	c.indexes = make(map[string]*index)

	if c.lock != nil {
		if err := c.lock.release(); err != nil && firstErr == nil {
			firstErr = err
		}
		c.lock = nil
	}
	return firstErr
}

// lookup finds an index by name.
func (c *Client) lookup(name string) (*index, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.indexes[name]
	if !ok {
		return nil, fmt.Errorf("index not found")
	}
	return idx, nil
}

// saveVectors persists the vector index for persistent backends. Callers
// hold the index mutex.
func (c *Client) saveVectors(idx *index) error {
	if idx.path == "" || idx.vectors == nil {
		return nil
	}
	return idx.vectors.save(filepath.Join(idx.path, vectorsFileName))
}

// parseMapping extracts the text field, vector field, dimension, and
// similarity metric from an index mapping body. A missing vector property
// yields dims 0 and disables the vector store.
func parseMapping(m map[string]any) (textField, vectorField string, dims int, metric string) {
	textField = "page_content"
	metric = "cosine"

	mappings, _ := m["mappings"].(map[string]any)
	properties, _ := mappings["properties"].(map[string]any)
	for name, raw := range properties {
		prop, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		switch prop["type"] {
		case "dense_vector":
			vectorField = name
			if d, ok := asInt(prop["dims"]); ok {
				dims = d
			}
			if s, ok := prop["similarity"].(string); ok {
				metric = s
			}
		case "text":
			textField = name
		}
	}
	return textField, vectorField, dims, metric
}

// matchesFilters reports whether metadata satisfies every filter clause.
// Filters are term clauses on metadata fields; list-valued metadata matches
// when any element equals the term.
func matchesFilters(metadata map[string]any, filters []map[string]any) bool {
	for _, clause := range filters {
		if !matchesTerm(metadata, clause) {
			return false
		}
	}
	return true
}

func matchesTerm(metadata map[string]any, clause map[string]any) bool {
	term, ok := clause["term"].(map[string]any)
	if !ok {
		return false
	}
	for field, raw := range term {
		want := raw
		if params, ok := raw.(map[string]any); ok {
			want = params["value"]
		}
		key := strings.TrimPrefix(field, "metadata.")
		got, exists := metadata[key]
		if !exists {
			return false
		}
		if !valueMatches(got, stringifyScalar(want)) {
			return false
		}
	}
	return true
}

func valueMatches(stored any, want string) bool {
	switch v := stored.(type) {
	case []string:
		for _, item := range v {
			if item == want {
				return true
			}
		}
		return false
	case []any:
		for _, item := range v {
			if stringifyScalar(item) == want {
				return true
			}
		}
		return false
	default:
		return stringifyScalar(v) == want
	}
}
