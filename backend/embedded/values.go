package embedded

import "fmt"

// asInt extracts an integer from a query body value, which may arrive as any
// numeric type depending on how the body was constructed.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float32:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// asFloat extracts a float from a query body value.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// asVector extracts a query vector from a knn clause.
func asVector(v any) ([]float32, bool) {
	switch vec := v.(type) {
	case []float32:
		return vec, true
	case []float64:
		out := make([]float32, len(vec))
		for i, f := range vec {
			out[i] = float32(f)
		}
		return out, true
	case []any:
		out := make([]float32, len(vec))
		for i, raw := range vec {
			f, ok := asFloat(raw)
			if !ok {
				return nil, false
			}
			out[i] = float32(f)
		}
		return out, true
	}
	return nil, false
}

// asClauseList normalizes a must/should/filter group, which may be a single
// clause or a list.
func asClauseList(v any) []map[string]any {
	switch group := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return []map[string]any{group}
	case []map[string]any:
		return group
	case []any:
		clauses := make([]map[string]any, 0, len(group))
		for _, raw := range group {
			if clause, ok := raw.(map[string]any); ok {
				clauses = append(clauses, clause)
			}
		}
		return clauses
	}
	return nil
}

// stringifyScalar renders a term value the same way at index and query time
// so exact matches line up across types.
func stringifyScalar(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// stringifyMetadata converts metadata values to strings (lists stay lists)
// for keyword-analyzed indexing.
func stringifyMetadata(metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		switch vv := v.(type) {
		case []string:
			list := make([]string, len(vv))
			copy(list, vv)
			out[k] = list
		case []any:
			list := make([]string, len(vv))
			for i, item := range vv {
				list[i] = stringifyScalar(item)
			}
			out[k] = list
		default:
			out[k] = stringifyScalar(v)
		}
	}
	return out
}
