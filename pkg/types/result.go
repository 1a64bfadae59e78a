package types

import "time"

// SearchResult is a single ranked story returned by the search engine.
//
// HybridScore carries the blended score in hybrid mode. In text-only and
// vector-only modes it mirrors the single signal that produced the result.
// TextScore and VectorScore are the per-signal scores normalized over the
// result set of their own signal, zero when the signal didn't return the
// story.
type SearchResult struct {
	ID          string
	Title       string
	StoryType   string
	Location    string
	PodcastName string
	AirDate     time.Time
	Snippet     string

	HybridScore float64
	TextScore   float64
	VectorScore float64

	UmapX *float64
	UmapY *float64
}

// Validate checks the result invariants after ranking.
func (r *SearchResult) Validate() error {
	if r.ID == "" {
		return NewValidationError("id", "result is missing a story ID")
	}
	if r.HybridScore < 0 {
		return NewValidationError("score", "score must be >= 0, got %f", r.HybridScore)
	}
	if r.TextScore < 0 || r.TextScore > 1 {
		return NewValidationError("text_score", "normalized score must be in [0,1], got %f", r.TextScore)
	}
	if r.VectorScore < 0 || r.VectorScore > 1 {
		return NewValidationError("vector_score", "normalized score must be in [0,1], got %f", r.VectorScore)
	}
	return nil
}
