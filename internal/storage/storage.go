package storage

import (
	"context"
	"time"
)

// Storage defines the interface for persisting and querying stories
type Storage interface {
	// Episode operations
	GetOrCreateEpisode(ctx context.Context, episode *Episode) error
	GetEpisode(ctx context.Context, podcastName string, airDate time.Time) (*Episode, error)

	// Story operations
	UpsertStory(ctx context.Context, story *Story) error
	GetStory(ctx context.Context, storyID string) (*Story, error)
	GetStoriesByIDs(ctx context.Context, storyIDs []string) ([]*Story, error)
	ListStories(ctx context.Context, opts ListOptions) ([]*Story, error)
	SetProjection(ctx context.Context, storyID string, x, y float64, cluster *int) error

	// Chunk operations
	ReplaceStoryChunks(ctx context.Context, storyID string, chunks []*StoryChunk) error
	ListStoryChunks(ctx context.Context, storyID string) ([]*StoryChunk, error)

	// Search operations
	SearchVector(ctx context.Context, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error)
	SearchText(ctx context.Context, query string, limit int, filters *SearchFilters) ([]TextResult, error)

	// Visualization operations
	ListMapStories(ctx context.Context, filters *SearchFilters) ([]*Story, error)
	ListProjectionPoints(ctx context.Context, filters *SearchFilters) ([]ProjectionPoint, error)

	// Statistics operations
	StoryTypeCounts(ctx context.Context) (map[string]int, error)
	Stats(ctx context.Context) (*Stats, error)

	// Database operations
	Ping(ctx context.Context) error
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Episode represents one podcast episode
type Episode struct {
	ID          int64
	Title       string
	PodcastName string
	AirDate     time.Time
	CreatedAt   time.Time
}

// Story represents a single paranormal account extracted from an episode.
// ID is a UUID assigned on first insert. The natural key is
// (episode_id, title, start_time_seconds); re-ingesting the same segment
// updates the existing row.
type Story struct {
	ID               string
	EpisodeID        int64
	Title            string
	Content          string
	Summary          string
	StoryType        string
	Location         string
	IsFirstPerson    bool
	StartTimeSeconds float64
	EndTimeSeconds   float64
	TimePeriod       string
	TokenCount       int
	EmbeddingMethod  string // "full" or "mean_pooled"
	Embedding        []byte // Serialized float32 vector, nil when not embedded
	EmbeddingDim     int
	UmapX            *float64
	UmapY            *float64
	Cluster          *int // -1 means noise, nil means not yet clustered
	CreatedAt        time.Time
	UpdatedAt        time.Time

	// Joined from episodes on reads, not persisted on the story row.
	PodcastName string
	AirDate     time.Time
}

// StoryChunk is one overlapping slice of a long story, embedded separately
type StoryChunk struct {
	ID         int64
	StoryID    string
	ChunkIndex int
	Content    string
	TokenCount int
	Embedding  []byte
	CreatedAt  time.Time
}

// ListOptions controls story listing
type ListOptions struct {
	Limit      int
	Offset     int
	StoryTypes []string // Filter to these story types, empty means all
}

// SearchFilters narrows search and visualization queries
type SearchFilters struct {
	StoryTypes []string
}

// VectorResult represents a result from vector similarity search
type VectorResult struct {
	StoryID         string
	SimilarityScore float64
}

// TextResult represents a result from full-text search.
// Rank is positive and monotonic in relevance.
type TextResult struct {
	StoryID string
	Rank    float64
}

// ProjectionPoint is a story's position in the 2D embedding projection
type ProjectionPoint struct {
	ID        string
	Title     string
	StoryType string
	X         float64
	Y         float64
}

// Stats contains corpus-wide counts
type Stats struct {
	TotalStories  int
	WithLocation  int
	WithEmbedding int
	WithUmap      int
}
