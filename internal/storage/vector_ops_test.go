package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSearchCorpus(t *testing.T, store *SQLiteStorage) map[string]string {
	t.Helper()
	ctx := context.Background()

	episode := &Episode{PodcastName: "Night Static", AirDate: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, store.GetOrCreateEpisode(ctx, episode))

	seed := []struct {
		key       string
		title     string
		content   string
		storyType string
		embedding []float32
	}{
		{"ghost", "The Attic Footsteps", "Every night I heard footsteps in the empty attic above my bedroom.", "ghost", []float32{1, 0, 0}},
		{"ufo", "Lights Over the Field", "Three silent lights hovered over the corn field then shot straight up.", "ufo", []float32{0, 1, 0}},
		{"cryptid", "Something in the Pines", "A tall shape paced us through the pines, never breaking a branch.", "cryptid", []float32{0.7, 0.7, 0}},
	}

	ids := make(map[string]string, len(seed))
	for i, s := range seed {
		story := &Story{
			EpisodeID:        episode.ID,
			Title:            s.title,
			Content:          s.content,
			StoryType:        s.storyType,
			StartTimeSeconds: float64(i * 100),
			Embedding:        SerializeVector(s.embedding),
			EmbeddingDim:     len(s.embedding),
		}
		require.NoError(t, store.UpsertStory(ctx, story))
		ids[s.key] = story.ID
	}
	return ids
}

func TestSearchText(t *testing.T) {
	store := setupTestDB(t)
	ids := seedSearchCorpus(t, store)

	results, err := store.SearchText(context.Background(), "footsteps attic", 10, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, ids["ghost"], results[0].StoryID)
	for _, r := range results {
		assert.Greater(t, r.Rank, 0.0)
		assert.LessOrEqual(t, r.Rank, 1.0)
	}
}

func TestSearchText_TypeFilter(t *testing.T) {
	store := setupTestDB(t)
	ids := seedSearchCorpus(t, store)

	results, err := store.SearchText(context.Background(), "the", 10, &SearchFilters{StoryTypes: []string{"ufo"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ids["ufo"], results[0].StoryID)
}

func TestSearchText_UpdateResyncsIndex(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	ids := seedSearchCorpus(t, store)

	story, err := store.GetStory(ctx, ids["ghost"])
	require.NoError(t, err)
	story.Content = "The scratching came from inside the walls, not the attic."
	require.NoError(t, store.UpsertStory(ctx, story))

	results, err := store.SearchText(ctx, "scratching walls", 10, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, ids["ghost"], results[0].StoryID)

	// The old body must no longer match.
	results, err = store.SearchText(ctx, "footsteps", 10, nil)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, ids["ghost"], r.StoryID)
	}
}

func TestSearchVector(t *testing.T) {
	store := setupTestDB(t)
	ids := seedSearchCorpus(t, store)

	results, err := store.SearchVector(context.Background(), []float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, ids["ghost"], results[0].StoryID)
	assert.InDelta(t, 1.0, results[0].SimilarityScore, 1e-6)
	assert.Equal(t, ids["cryptid"], results[1].StoryID)
	assert.Greater(t, results[0].SimilarityScore, results[1].SimilarityScore)
}

func TestSearchVector_TypeFilter(t *testing.T) {
	store := setupTestDB(t)
	ids := seedSearchCorpus(t, store)

	results, err := store.SearchVector(context.Background(), []float32{1, 0, 0}, 10, &SearchFilters{StoryTypes: []string{"ufo"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ids["ufo"], results[0].StoryID)
}

func TestSerializeVector_RoundTrip(t *testing.T) {
	original := []float32{0.1, -2.5, 3.14159, 0, 1e-7}
	blob := SerializeVector(original)
	assert.Len(t, blob, len(original)*4)

	restored := DeserializeVector(blob)
	assert.Equal(t, original, restored)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func TestSanitizeFTSQuery(t *testing.T) {
	assert.Equal(t, "", sanitizeFTSQuery(""))
	assert.Equal(t, `hello world`, sanitizeFTSQuery("hello world"))
	assert.Equal(t, `\"quoted\"`, sanitizeFTSQuery(`"quoted"`))
	assert.Equal(t, `wild\*card`, sanitizeFTSQuery("wild*card"))
	assert.Equal(t, `\(group\)`, sanitizeFTSQuery("(group)"))
	assert.Equal(t, `ghosts \AND goblins`, sanitizeFTSQuery("ghosts AND goblins"))
	// Lowercase operators are plain words in FTS5 and pass through.
	assert.Equal(t, `ghosts and goblins`, sanitizeFTSQuery("ghosts and goblins"))
}
