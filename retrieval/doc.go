// Package retrieval implements a hybrid document retrieval engine on top of
// a pluggable search backend. A Store binds a backend client, an index name,
// an optional embedder, and a retrieval strategy; strategies build the
// backend query bodies, and stateless rerankers post-process results
// (keyword-overlap scoring, min-max relevance normalization, and maximal
// marginal relevance diversity selection).
//
// The package performs no retries, caching, or background work of its own:
// every operation is a synchronous request/response call and every backend
// failure is logged and returned unchanged to the caller.
package retrieval
