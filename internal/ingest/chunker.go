package ingest

import (
	"strings"
)

// Chunking configuration
const (
	// MaxTokensForFullEmbed is the largest story embedded in one call.
	// Longer stories are chunked and mean-pooled.
	MaxTokensForFullEmbed = 4000

	// ChunkSizeTokens is the target size of each chunk
	ChunkSizeTokens = 500

	// ChunkOverlapTokens bounds the paragraph carried into the next
	// chunk for continuity
	ChunkOverlapTokens = 50
)

// EstimateTokens approximates the token count of a text. Transcripts
// average roughly 1.3 tokens per whitespace-separated word.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	return int(float64(words) * 1.3)
}

// ChunkText splits text into paragraph-aligned chunks of roughly
// chunkSize tokens. When a chunk fills up, its final paragraph is
// carried into the next chunk as overlap, but only when that paragraph
// is smaller than the overlap budget; a large paragraph would dominate
// the next chunk instead of providing continuity.
func ChunkText(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = ChunkSizeTokens
	}
	if overlap < 0 {
		overlap = ChunkOverlapTokens
	}

	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		return nil
	}

	chunks := make([]string, 0)
	current := make([]string, 0)
	currentTokens := 0

	for _, para := range paragraphs {
		paraTokens := EstimateTokens(para)

		if currentTokens > 0 && currentTokens+paraTokens > chunkSize {
			chunks = append(chunks, strings.Join(current, "\n\n"))

			seed := current[len(current)-1]
			if EstimateTokens(seed) < overlap {
				current = []string{seed}
				currentTokens = EstimateTokens(seed)
			} else {
				current = current[:0]
				currentTokens = 0
			}
		}

		current = append(current, para)
		currentTokens += paraTokens
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n\n"))
	}

	return chunks
}

// splitParagraphs splits on blank lines, dropping empty paragraphs
func splitParagraphs(text string) []string {
	raw := strings.Split(text, "\n\n")
	paragraphs := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

// MeanPool averages chunk embeddings per dimension into one story
// vector. All inputs must share a dimension; an empty input returns nil.
func MeanPool(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}

	dim := len(vectors[0])
	sums := make([]float64, dim)
	for _, v := range vectors {
		if len(v) != dim {
			return nil
		}
		for i, val := range v {
			sums[i] += float64(val)
		}
	}

	pooled := make([]float32, dim)
	n := float64(len(vectors))
	for i, sum := range sums {
		pooled[i] = float32(sum / n)
	}
	return pooled
}
