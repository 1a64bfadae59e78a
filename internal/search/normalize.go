package search

// NormalizeScores rescales scores so the best score in the map becomes 1.0.
// Each retrieval signal is normalized over its own result set, so signals
// with different native ranges (cosine similarity, BM25 rank) become
// comparable before blending. A non-positive maximum yields all zeros
// rather than dividing by zero or flipping signs.
func NormalizeScores(scores map[string]float64) map[string]float64 {
	normalized := make(map[string]float64, len(scores))
	if len(scores) == 0 {
		return normalized
	}

	max := 0.0
	for _, score := range scores {
		if score > max {
			max = score
		}
	}

	if max <= 0 {
		for id := range scores {
			normalized[id] = 0
		}
		return normalized
	}

	for id, score := range scores {
		normalized[id] = score / max
	}
	return normalized
}
