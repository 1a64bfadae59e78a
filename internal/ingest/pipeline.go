package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/parafield/paratracker/internal/embedder"
	"github.com/parafield/paratracker/internal/storage"
)

// Status describes what happened to a single document
type Status string

const (
	StatusInserted Status = "inserted"
	StatusUpdated  Status = "updated"
	StatusSkipped  Status = "skipped"
	StatusPlanned  Status = "planned" // dry-run only
)

// Embedding methods recorded on each story
const (
	MethodFull       = "full"
	MethodMeanPooled = "mean_pooled"
)

// LoadResult reports the outcome of loading one document
type LoadResult struct {
	Path    string
	Status  Status
	Reason  string // populated for skips
	StoryID string
	Method  string // embedding method used, empty when unembedded
	Chunks  int
	Tokens  int
}

// Pipeline turns transcript documents into stored, embedded stories.
// The embedder may be nil; stories are then stored without vectors and
// can be re-embedded by a later run.
type Pipeline struct {
	storage  storage.Storage
	embedder embedder.Embedder
	logger   *slog.Logger
}

// NewPipeline creates an ingestion pipeline
func NewPipeline(store storage.Storage, emb embedder.Embedder, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		storage:  store,
		embedder: emb,
		logger:   logger,
	}
}

// LoadFile reads and loads a single transcript file
func (p *Pipeline) LoadFile(ctx context.Context, path string) (*LoadResult, error) {
	if isExcludedFile(path) {
		return &LoadResult{Path: path, Status: StatusSkipped, Reason: "excluded file"}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return p.LoadDocument(ctx, path, string(content))
}

// LoadDocument parses, embeds, and stores one document. The episode,
// story, and chunk writes happen in a single transaction so a failure
// partway leaves no orphaned rows.
func (p *Pipeline) LoadDocument(ctx context.Context, path, content string) (*LoadResult, error) {
	fm, body, err := ParseFrontmatter(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if body == "" {
		return &LoadResult{Path: path, Status: StatusSkipped, Reason: "empty body"}, nil
	}
	if !fm.IsFirstPerson() {
		return &LoadResult{Path: path, Status: StatusSkipped, Reason: "not a first-person account"}, nil
	}

	airDate, err := fm.AirDate()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	show := fm.Show
	if show == "" {
		show = "Unknown Show"
	}
	title := fm.Title
	if title == "" {
		title = titleFromPath(path)
	}

	tokens := EstimateTokens(body)

	var (
		storyEmbedding []float32
		method         string
		storyChunks    []*storage.StoryChunk
	)

	if p.embedder != nil {
		storyEmbedding, method, storyChunks, err = p.embed(ctx, body, tokens)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	} else {
		p.logger.Warn("no embedding provider, storing without vector", "path", path)
	}

	tx, err := p.storage.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	episode := &storage.Episode{
		PodcastName: show,
		AirDate:     airDate,
	}
	if err := tx.GetOrCreateEpisode(ctx, episode); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	story := &storage.Story{
		EpisodeID:        episode.ID,
		Title:            title,
		Content:          body,
		Summary:          fm.Summary,
		StoryType:        fm.Type,
		Location:         fm.Location,
		IsFirstPerson:    true,
		StartTimeSeconds: fm.TimestampStart,
		EndTimeSeconds:   fm.TimestampEnd,
		TimePeriod:       fm.TimePeriod,
		TokenCount:       tokens,
		EmbeddingMethod:  method,
	}
	if storyEmbedding != nil {
		story.Embedding = storage.SerializeVector(storyEmbedding)
		story.EmbeddingDim = len(storyEmbedding)
	}

	if err := tx.UpsertStory(ctx, story); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if len(storyChunks) > 0 {
		if err := tx.ReplaceStoryChunks(ctx, story.ID, storyChunks); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	status := StatusUpdated
	if story.CreatedAt.Equal(story.UpdatedAt) {
		status = StatusInserted
	}

	return &LoadResult{
		Path:    path,
		Status:  status,
		StoryID: story.ID,
		Method:  method,
		Chunks:  len(storyChunks),
		Tokens:  tokens,
	}, nil
}

// Plan reports what loading a document would do, without embedding or
// writing anything
func (p *Pipeline) Plan(path, content string) (*LoadResult, error) {
	fm, body, err := ParseFrontmatter(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if body == "" {
		return &LoadResult{Path: path, Status: StatusSkipped, Reason: "empty body"}, nil
	}
	if !fm.IsFirstPerson() {
		return &LoadResult{Path: path, Status: StatusSkipped, Reason: "not a first-person account"}, nil
	}
	if _, err := fm.AirDate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	tokens := EstimateTokens(body)
	result := &LoadResult{
		Path:   path,
		Status: StatusPlanned,
		Tokens: tokens,
		Method: MethodFull,
	}
	if tokens > MaxTokensForFullEmbed {
		result.Method = MethodMeanPooled
		result.Chunks = len(ChunkText(body, ChunkSizeTokens, ChunkOverlapTokens))
	}
	return result, nil
}

// embed produces the story vector, chunking and mean-pooling when the
// body exceeds the single-call budget
func (p *Pipeline) embed(ctx context.Context, body string, tokens int) ([]float32, string, []*storage.StoryChunk, error) {
	if tokens <= MaxTokensForFullEmbed {
		emb, err := p.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: body})
		if err != nil {
			return nil, "", nil, fmt.Errorf("embed story: %w", err)
		}
		return emb.Vector, MethodFull, nil, nil
	}

	texts := ChunkText(body, ChunkSizeTokens, ChunkOverlapTokens)
	vectors := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += embedder.MaxBatchSize {
		end := start + embedder.MaxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		resp, err := p.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts[start:end]})
		if err != nil {
			return nil, "", nil, fmt.Errorf("embed chunks %d-%d: %w", start, end-1, err)
		}
		for _, emb := range resp.Embeddings {
			vectors = append(vectors, emb.Vector)
		}
	}

	pooled := MeanPool(vectors)
	if pooled == nil {
		return nil, "", nil, fmt.Errorf("mean pooling failed over %d chunks", len(vectors))
	}

	chunks := make([]*storage.StoryChunk, len(texts))
	for i, text := range texts {
		chunks[i] = &storage.StoryChunk{
			ChunkIndex: i,
			Content:    text,
			TokenCount: EstimateTokens(text),
			Embedding:  storage.SerializeVector(vectors[i]),
		}
	}

	return pooled, MethodMeanPooled, chunks, nil
}

// isExcludedFile filters non-transcript markdown that lives alongside
// transcripts in story directories
func isExcludedFile(path string) bool {
	return strings.EqualFold(filepath.Base(path), "CLAUDE.md")
}

// titleFromPath derives a fallback title from the file name
func titleFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ReplaceAll(base, "_", " ")
}
