// Package ingest loads markdown story transcripts into the datastore.
//
// Each transcript carries YAML frontmatter (show, air date, timestamps,
// story type, location) above the spoken account. Loading a document
// resolves its episode, upserts the story keyed on episode, title, and
// start time, and replaces any chunk rows, all in one transaction, so
// re-ingesting a file is idempotent.
//
// Stories within the single-call token budget are embedded whole.
// Longer ones are split into paragraph-aligned chunks, embedded in
// batches, and mean-pooled into the story vector; the per-chunk vectors
// are kept so the pooled vector can be rebuilt offline.
//
// Skips are not errors: empty bodies, secondhand accounts, and
// non-transcript files are counted and reported. Batch runs process
// files with a bounded worker pool and an inter-dispatch delay to keep
// the embedding API under its rate limit.
package ingest
