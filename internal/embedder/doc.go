// Package embedder generates text embeddings through the Voyage AI API.
//
// The single provider speaks the /v1/embeddings endpoint with the
// voyage-4-large model (1024 dimensions). Inputs longer than
// MaxInputChars are truncated per input, and batches are capped at the
// provider's 128-input limit. Results are cached in an LRU keyed by
// SHA-256 of the original text, so re-ingesting unchanged transcripts
// costs no API calls.
//
// Transient failures (429, 5xx, transport errors) retry with
// exponential backoff up to five attempts. Credential failures (401,
// 403) abort immediately since retrying cannot help. Exhausting every
// attempt surfaces as types.ErrEmbeddingUnavailable with the last
// cause (types.ErrRateLimited for 429) still in the chain, so callers
// can distinguish "slow down" from "misconfigured".
//
// Construction from the environment requires VOYAGE_API_KEY; a missing
// key returns types.ErrEmbeddingUnavailable, which search uses to fall
// back to lexical-only mode.
package embedder
