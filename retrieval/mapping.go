package retrieval

// BM25 similarity parameters baked into the index schema.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// keywordSubfieldMaxLength truncates the raw keyword sub-field of the text
// field; longer values are not indexed verbatim.
const keywordSubfieldMaxLength = 256

// HNSW graph parameters for the vector field.
const (
	hnswM              = 16
	hnswEfConstruction = 100
)

// IndexMapping builds the static index schema shared by all strategies.
//
// The text field is analyzed with the standard analyzer and carries an
// english-analyzed sub-field plus a raw keyword sub-field. The metadata
// object has fixed sub-fields. When vectorDimension is positive a dense
// vector field with an HNSW index is added; when it is zero the vector field
// is omitted entirely, producing a text-only index.
func IndexMapping(textField, vectorField string, metric SimilarityMetric, vectorDimension int) map[string]any {
	properties := map[string]any{
		textField: map[string]any{
			"type":     "text",
			"analyzer": "standard",
			"fields": map[string]any{
				"english": map[string]any{
					"type":     "text",
					"analyzer": "english",
				},
				"keyword": map[string]any{
					"type":         "keyword",
					"ignore_above": keywordSubfieldMaxLength,
				},
			},
		},
		"metadata": map[string]any{
			"properties": map[string]any{
				"source":            map[string]any{"type": "keyword"},
				"uuid":              map[string]any{"type": "keyword"},
				"knowledge_base_id": map[string]any{"type": "keyword"},
				"keywords":          map[string]any{"type": "keyword"},
				"index":             map[string]any{"type": "integer"},
			},
		},
	}

	if vectorDimension > 0 {
		properties[vectorField] = map[string]any{
			"type":       "dense_vector",
			"dims":       vectorDimension,
			"index":      true,
			"similarity": metric.wireName(),
			"index_options": map[string]any{
				"type":            "hnsw",
				"m":               hnswM,
				"ef_construction": hnswEfConstruction,
			},
		}
	}

	return map[string]any{
		"mappings": map[string]any{"properties": properties},
		"settings": map[string]any{
			"index": map[string]any{
				"similarity": map[string]any{
					"default": map[string]any{
						"type": "BM25",
						"k1":   bm25K1,
						"b":    bm25B,
					},
				},
			},
		},
	}
}
