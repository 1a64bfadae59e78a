// Package search ranks stories by blending vector similarity with BM25
// full-text relevance.
//
// Hybrid mode queries both signals concurrently, over-fetching each at
// twice the requested limit. Scores are max-normalized per signal over
// that signal's own result set, then combined as
//
//	alpha*vector + (1-alpha)*text
//
// over the union of story IDs, with a missing signal contributing zero.
// Ties break on ascending story ID. Text and vector modes serve a
// single signal with its raw scores.
//
// The engine tolerates a missing or failing embedding provider: hybrid
// quietly degrades to text-only (flagged in the response), while an
// explicit vector request fails fast with ErrEmbeddingUnavailable.
// Responses can be cached in an LRU with per-request TTL; ingestion
// invalidates the cache wholesale.
package search
