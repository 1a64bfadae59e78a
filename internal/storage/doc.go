// Package storage persists episodes, stories, and story chunks in SQLite
// and serves the two retrieval signals used by search.
//
// The schema keeps one row per story with its embedding stored inline as a
// little-endian float32 blob. Long stories additionally keep their
// per-chunk embeddings in story_chunks so the mean-pooled story vector can
// be recomputed without another provider round trip. An FTS5 virtual table
// over title and content is trigger-synced with the stories table and
// provides the lexical signal; BM25 scores are converted to a positive
// rank before leaving this package so callers never see FTS5's
// lower-is-better convention.
//
// Two drivers are supported via build tags. With the sqlite_vec tag the
// cgo driver (mattn/go-sqlite3) computes cosine distance in SQL; the
// default purego build (modernc.org/sqlite) scans embedded stories and
// ranks them in Go. Results are identical, only speed differs.
//
// Schema changes go through semver-ordered migrations applied on open.
// All write paths accept either the base storage or a transaction via the
// querier indirection, so ingestion can make its episode/story/chunk
// writes atomic.
package storage
