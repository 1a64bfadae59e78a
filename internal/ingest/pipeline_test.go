package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parafield/paratracker/internal/embedder"
	"github.com/parafield/paratracker/internal/storage"
)

// stubEmbedder returns a constant vector and counts provider calls
type stubEmbedder struct {
	singleCalls int
	batchCalls  int
}

func (s *stubEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	s.singleCalls++
	return &embedder.Embedding{Vector: []float32{1, 0.5}, Dimension: 2}, nil
}

func (s *stubEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	s.batchCalls++
	embeddings := make([]*embedder.Embedding, len(req.Texts))
	for i := range req.Texts {
		embeddings[i] = &embedder.Embedding{Vector: []float32{1, 0.5}, Dimension: 2}
	}
	return &embedder.BatchEmbeddingResponse{Embeddings: embeddings}, nil
}

func (s *stubEmbedder) Dimension() int { return 2 }
func (s *stubEmbedder) Model() string  { return "stub" }
func (s *stubEmbedder) Close() error   { return nil }

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func testPipeline(t *testing.T, emb embedder.Embedder) (*Pipeline, *storage.SQLiteStorage) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := slog.New(slog.NewTextHandler(nopWriter{}, nil))
	return NewPipeline(store, emb, logger), store
}

func TestLoadDocument_InsertThenUpdate(t *testing.T) {
	pipeline, store := testPipeline(t, &stubEmbedder{})
	ctx := context.Background()

	first, err := pipeline.LoadDocument(ctx, "story.md", sampleDocument)
	require.NoError(t, err)
	assert.Equal(t, StatusInserted, first.Status)
	assert.Equal(t, MethodFull, first.Method)
	require.NotEmpty(t, first.StoryID)

	// Same episode, title, and start time: re-ingesting updates in place.
	second, err := pipeline.LoadDocument(ctx, "story.md", sampleDocument)
	require.NoError(t, err)
	assert.Equal(t, StatusUpdated, second.Status)
	assert.Equal(t, first.StoryID, second.StoryID)

	story, err := store.GetStory(ctx, first.StoryID)
	require.NoError(t, err)
	assert.Equal(t, "The Thing in the Cornfield", story.Title)
	assert.Equal(t, "cryptid", story.StoryType)
	assert.Equal(t, "rural Nebraska", story.Location)
	assert.Equal(t, "Midnight Frequencies", story.PodcastName)
	assert.Equal(t, MethodFull, story.EmbeddingMethod)
	assert.Equal(t, 2, story.EmbeddingDim)
	assert.InDelta(t, 745.5, story.StartTimeSeconds, 1e-9)
}

func TestLoadDocument_SkipsEmptyBody(t *testing.T) {
	pipeline, _ := testPipeline(t, &stubEmbedder{})

	doc := "---\ntitle: Empty\nshow: X\ndate: 2024-01-01\n---\n\n"
	result, err := pipeline.LoadDocument(context.Background(), "empty.md", doc)
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, result.Status)
	assert.Equal(t, "empty body", result.Reason)
}

func TestLoadDocument_SkipsSecondhandAccount(t *testing.T) {
	pipeline, store := testPipeline(t, &stubEmbedder{})

	doc := "---\ntitle: Retold\nshow: X\ndate: 2024-01-01\nfirst_person: false\n---\n\nMy uncle swears this happened to him."
	result, err := pipeline.LoadDocument(context.Background(), "retold.md", doc)
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, result.Status)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalStories)
}

func TestLoadDocument_InvalidDate(t *testing.T) {
	pipeline, _ := testPipeline(t, &stubEmbedder{})

	doc := "---\ntitle: Undated\nshow: X\ndate: sometime in may\n---\n\nA story body."
	_, err := pipeline.LoadDocument(context.Background(), "undated.md", doc)
	assert.Error(t, err)
}

func TestLoadDocument_ChunkedEmbedding(t *testing.T) {
	emb := &stubEmbedder{}
	pipeline, store := testPipeline(t, emb)
	ctx := context.Background()

	// ~4160 estimated tokens, past the full-embed budget
	paragraphs := make([]string, 16)
	for i := range paragraphs {
		paragraphs[i] = strings.TrimSpace(strings.Repeat(fmt.Sprintf("segment%d ", i), 200))
	}
	body := strings.Join(paragraphs, "\n\n")
	doc := "---\ntitle: The Long Haul\nshow: Night Static\ndate: 2023-09-09\ntype: ghost\n---\n\n" + body

	result, err := pipeline.LoadDocument(ctx, "long.md", doc)
	require.NoError(t, err)
	assert.Equal(t, StatusInserted, result.Status)
	assert.Equal(t, MethodMeanPooled, result.Method)
	assert.Greater(t, result.Chunks, 1)
	assert.Zero(t, emb.singleCalls)
	assert.GreaterOrEqual(t, emb.batchCalls, 1)

	story, err := store.GetStory(ctx, result.StoryID)
	require.NoError(t, err)
	assert.Equal(t, MethodMeanPooled, story.EmbeddingMethod)

	// All chunk vectors are identical, so the pooled vector matches them.
	pooled := storage.DeserializeVector(story.Embedding)
	require.Len(t, pooled, 2)
	assert.InDelta(t, 1.0, pooled[0], 1e-6)
	assert.InDelta(t, 0.5, pooled[1], 1e-6)

	chunks, err := store.ListStoryChunks(ctx, result.StoryID)
	require.NoError(t, err)
	assert.Equal(t, result.Chunks, len(chunks))
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.ChunkIndex)
		assert.NotEmpty(t, chunk.Embedding)
	}
}

func TestLoadDocument_WithoutEmbedder(t *testing.T) {
	pipeline, store := testPipeline(t, nil)
	ctx := context.Background()

	result, err := pipeline.LoadDocument(ctx, "story.md", sampleDocument)
	require.NoError(t, err)
	assert.Equal(t, StatusInserted, result.Status)
	assert.Empty(t, result.Method)

	story, err := store.GetStory(ctx, result.StoryID)
	require.NoError(t, err)
	assert.Empty(t, story.Embedding)
}

func TestPlan(t *testing.T) {
	pipeline, _ := testPipeline(t, &stubEmbedder{})

	short, err := pipeline.Plan("short.md", sampleDocument)
	require.NoError(t, err)
	assert.Equal(t, StatusPlanned, short.Status)
	assert.Equal(t, MethodFull, short.Method)
	assert.Zero(t, short.Chunks)

	paragraph := strings.TrimSpace(strings.Repeat("word ", 400))
	body := strings.Repeat(paragraph+"\n\n", 10)
	long, err := pipeline.Plan("long.md", "---\ndate: 2024-01-01\n---\n\n"+body)
	require.NoError(t, err)
	assert.Equal(t, MethodMeanPooled, long.Method)
	assert.Greater(t, long.Chunks, 1)
}

func TestLoadFile_ExcludesClaudeMD(t *testing.T) {
	pipeline, _ := testPipeline(t, &stubEmbedder{})

	result, err := pipeline.LoadFile(context.Background(), filepath.Join("stories", "CLAUDE.md"))
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, result.Status)
}

func TestLoadDirectory(t *testing.T) {
	pipeline, store := testPipeline(t, &stubEmbedder{})
	ctx := context.Background()

	dir := t.TempDir()
	writeFile := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	writeFile("one.md", sampleDocument)
	writeFile("two.md", "---\ntitle: Two\nshow: Night Static\ndate: 2022-02-02\ntype: ufo\n---\n\nA light followed the car for miles.")
	writeFile("empty.md", "---\ntitle: Nothing\nshow: Night Static\ndate: 2022-02-02\n---\n\n")
	writeFile("CLAUDE.md", "instructions, not a transcript")
	writeFile("notes.txt", "not markdown")

	summary, err := pipeline.LoadDirectory(ctx, dir, &BatchConfig{Workers: 2, Delay: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Inserted)
	assert.Equal(t, 0, summary.Updated)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalStories)
}

func TestLoadDirectory_MatchAndLimit(t *testing.T) {
	pipeline, _ := testPipeline(t, &stubEmbedder{})
	ctx := context.Background()

	dir := t.TempDir()
	for i := 0; i < 4; i++ {
		name := fmt.Sprintf("episode_%d.md", i)
		doc := fmt.Sprintf("---\ntitle: Story %d\nshow: X\ndate: 2024-01-0%d\n---\n\nBody %d.", i, i+1, i)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(doc), 0o644))
	}

	summary, err := pipeline.LoadDirectory(ctx, dir, &BatchConfig{Matches: []string{"episode"}, Limit: 2, Delay: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Inserted)

	// Dry run plans without writing.
	dry, err := pipeline.LoadDirectory(ctx, dir, &BatchConfig{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 4, dry.Inserted)
}

func TestLoadDirectory_BadFileDoesNotAbortBatch(t *testing.T) {
	pipeline, store := testPipeline(t, &stubEmbedder{})
	ctx := context.Background()

	dir := t.TempDir()
	good := "---\ntitle: Good\nshow: X\ndate: 2024-03-03\n---\n\nA solid account."
	bad := "---\ntitle: Bad\nshow: X\ndate: not-a-date\n---\n\nA broken one."
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.md"), []byte(good), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.md"), []byte(bad), 0o644))

	summary, err := pipeline.LoadDirectory(ctx, dir, &BatchConfig{Delay: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Inserted)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "bad.md")

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalStories)
}
