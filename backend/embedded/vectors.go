package embedded

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/coder/hnsw"
)

// HNSW graph parameters.
const (
	hnswM        = 16
	hnswEfSearch = 64
	hnswMl       = 0.25
)

// vectorIndex wraps a coder/hnsw graph with string id mapping. Upserts and
// deletes are lazy: replaced nodes stay in the graph but lose their id
// mapping and never appear in results.
type vectorIndex struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[uint64]
	dims    int
	metric  string
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
}

// vectorIndexMeta stores id mappings for persistence.
type vectorIndexMeta struct {
	IDMap   map[string]uint64
	NextKey uint64
	Dims    int
	Metric  string
}

// newVectorIndex creates a vector index for the given dimension and metric
// ("cosine", "l2_norm", or "dot_product"; anything else falls back to
// cosine).
func newVectorIndex(dims int, metric string) *vectorIndex {
	graph := hnsw.NewGraph[uint64]()
	switch metric {
	case "l2_norm":
		graph.Distance = hnsw.EuclideanDistance
	default:
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = hnswM
	graph.EfSearch = hnswEfSearch
	graph.Ml = hnswMl

	return &vectorIndex{
		graph:  graph,
		dims:   dims,
		metric: metric,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
}

// add inserts vectors, replacing any existing entries with the same id.
func (v *vectorIndex) add(ids []string, vectors [][]float32) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	for i, vec := range vectors {
		if len(vec) != v.dims {
			return fmt.Errorf("vector dimension mismatch: expected %d, got %d", v.dims, len(vec))
		}

		id := ids[i]
		if existingKey, exists := v.idMap[id]; exists {
			// Lazy replace: orphan the old node instead of deleting it.
			delete(v.keyMap, existingKey)
			delete(v.idMap, id)
		}

		key := v.nextKey
		v.nextKey++

		stored := make([]float32, len(vec))
		copy(stored, vec)
		if v.metric != "l2_norm" {
			normalizeInPlace(stored)
		}

		v.graph.Add(hnsw.MakeNode(key, stored))
		v.idMap[id] = key
		v.keyMap[key] = id
	}
	return nil
}

// search returns up to k nearest neighbors as similarity-scored results.
// Orphaned (lazily deleted) nodes are skipped.
func (v *vectorIndex) search(query []float32, k int) ([]scored, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if len(query) != v.dims {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", v.dims, len(query))
	}
	if v.graph.Len() == 0 {
		return []scored{}, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	if v.metric != "l2_norm" {
		normalizeInPlace(normalized)
	}

	// Overfetch to compensate for orphans filtered below.
	orphans := v.graph.Len() - len(v.idMap)
	nodes := v.graph.Search(normalized, k+orphans)
	results := make([]scored, 0, len(nodes))
	for _, node := range nodes {
		id, ok := v.keyMap[node.Key]
		if !ok {
			continue
		}
		distance := v.graph.Distance(normalized, node.Value)
		results = append(results, scored{id: id, score: distanceToScore(distance, v.metric)})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// delete removes vectors by id via lazy deletion.
func (v *vectorIndex) delete(ids []string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, id := range ids {
		if key, exists := v.idMap[id]; exists {
			delete(v.keyMap, key)
			delete(v.idMap, id)
		}
	}
}

// count returns the number of live vectors.
func (v *vectorIndex) count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.idMap)
}

// save persists the graph and id mappings atomically (temp file + rename).
func (v *vectorIndex) save(path string) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create vector index file: %w", err)
	}
	if err := v.graph.Export(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close vector index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename vector index file: %w", err)
	}

	metaTmp := path + ".meta.tmp"
	metaFile, err := os.Create(metaTmp)
	if err != nil {
		return fmt.Errorf("create vector meta file: %w", err)
	}
	meta := vectorIndexMeta{IDMap: v.idMap, NextKey: v.nextKey, Dims: v.dims, Metric: v.metric}
	if err := gob.NewEncoder(metaFile).Encode(meta); err != nil {
		_ = metaFile.Close()
		_ = os.Remove(metaTmp)
		return fmt.Errorf("encode vector meta: %w", err)
	}
	if err := metaFile.Close(); err != nil {
		_ = os.Remove(metaTmp)
		return fmt.Errorf("close vector meta file: %w", err)
	}
	if err := os.Rename(metaTmp, path+".meta"); err != nil {
		_ = os.Remove(metaTmp)
		return fmt.Errorf("rename vector meta file: %w", err)
	}
	return nil
}

// loadVectorIndex restores a saved vector index.
func loadVectorIndex(path string) (*vectorIndex, error) {
	metaFile, err := os.Open(path + ".meta")
	if err != nil {
		return nil, fmt.Errorf("open vector meta file: %w", err)
	}
	defer func() { _ = metaFile.Close() }()

	var meta vectorIndexMeta
	if err := gob.NewDecoder(metaFile).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode vector meta: %w", err)
	}

	v := newVectorIndex(meta.Dims, meta.Metric)
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vector index file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// graph.Import requires an io.ByteReader, which *os.File does not satisfy.
	if err := v.graph.Import(bufio.NewReader(file)); err != nil {
		return nil, fmt.Errorf("import graph: %w", err)
	}

	v.idMap = meta.IDMap
	v.nextKey = meta.NextKey
	for id, key := range meta.IDMap {
		v.keyMap[key] = id
	}
	return v, nil
}

// distanceToScore converts a distance to a similarity score. Cosine
// distance (0..2) maps to 1-d; euclidean maps to 1/(1+d).
func distanceToScore(distance float32, metric string) float64 {
	if metric == "l2_norm" {
		return 1.0 / (1.0 + float64(distance))
	}
	return 1.0 - float64(distance)
}

// normalizeInPlace normalizes a vector to unit length in place.
func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return
	}
	for i, val := range v {
		v[i] = float32(float64(val) / magnitude)
	}
}
