package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	var one int
	return s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Episode operations

// getOrCreateEpisodeWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getOrCreateEpisodeWithQuerier(ctx context.Context, q querier, episode *Episode) error {
	existing, err := s.getEpisodeWithQuerier(ctx, q, episode.PodcastName, episode.AirDate)
	if err == nil {
		*episode = *existing
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	query := `
		INSERT INTO episodes (title, podcast_name, air_date, created_at)
		VALUES (?, ?, ?, ?)
	`
	now := time.Now()
	if episode.Title == "" {
		episode.Title = fmt.Sprintf("%s - %s", episode.PodcastName, episode.AirDate.Format("2006-01-02"))
	}
	result, err := q.ExecContext(ctx, query, episode.Title, episode.PodcastName, episode.AirDate, now)
	if err != nil {
		return fmt.Errorf("failed to create episode: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	episode.ID = id
	episode.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) GetOrCreateEpisode(ctx context.Context, episode *Episode) error {
	return s.getOrCreateEpisodeWithQuerier(ctx, s.querier(), episode)
}

// getEpisodeWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getEpisodeWithQuerier(ctx context.Context, q querier, podcastName string, airDate time.Time) (*Episode, error) {
	query := `
		SELECT id, title, podcast_name, air_date, created_at
		FROM episodes
		WHERE podcast_name = ? AND air_date = ?
	`
	var episode Episode
	var title sql.NullString
	var aired sql.NullTime
	err := q.QueryRowContext(ctx, query, podcastName, airDate).Scan(
		&episode.ID, &title, &episode.PodcastName, &aired, &episode.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	episode.Title = title.String
	if aired.Valid {
		episode.AirDate = aired.Time
	}
	return &episode, nil
}

func (s *SQLiteStorage) GetEpisode(ctx context.Context, podcastName string, airDate time.Time) (*Episode, error) {
	return s.getEpisodeWithQuerier(ctx, s.querier(), podcastName, airDate)
}

// Story operations

// upsertStoryWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) upsertStoryWithQuerier(ctx context.Context, q querier, story *Story) error {
	if story.ID == "" {
		story.ID = uuid.NewString()
	}

	query := `
		INSERT INTO stories (
			id, episode_id, title, content, summary, story_type, location,
			is_first_person, start_time_seconds, end_time_seconds, time_period,
			token_count, embedding_method, embedding, embedding_dim,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(episode_id, title, start_time_seconds)
		DO UPDATE SET
			content = excluded.content,
			summary = excluded.summary,
			story_type = excluded.story_type,
			location = excluded.location,
			is_first_person = excluded.is_first_person,
			end_time_seconds = excluded.end_time_seconds,
			time_period = excluded.time_period,
			token_count = excluded.token_count,
			embedding_method = excluded.embedding_method,
			embedding = excluded.embedding,
			embedding_dim = excluded.embedding_dim,
			updated_at = excluded.updated_at
		RETURNING id, created_at
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		story.ID, story.EpisodeID, story.Title, story.Content,
		nullString(story.Summary), nullString(story.StoryType), nullString(story.Location),
		story.IsFirstPerson, story.StartTimeSeconds, story.EndTimeSeconds,
		nullString(story.TimePeriod), story.TokenCount,
		nullString(story.EmbeddingMethod), story.Embedding, story.EmbeddingDim,
		now, now,
	).Scan(&story.ID, &story.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert story: %w", err)
	}

	story.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertStory(ctx context.Context, story *Story) error {
	return s.upsertStoryWithQuerier(ctx, s.querier(), story)
}

// setProjectionWithQuerier writes projection coordinates computed by the
// offline dimensionality-reduction job
func (s *SQLiteStorage) setProjectionWithQuerier(ctx context.Context, q querier, storyID string, x, y float64, cluster *int) error {
	query := `
		UPDATE stories
		SET umap_x = ?, umap_y = ?, cluster = ?, updated_at = ?
		WHERE id = ?
	`
	var clusterValue interface{}
	if cluster != nil {
		clusterValue = *cluster
	}
	result, err := q.ExecContext(ctx, query, x, y, clusterValue, time.Now(), storyID)
	if err != nil {
		return fmt.Errorf("failed to set projection: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStorage) SetProjection(ctx context.Context, storyID string, x, y float64, cluster *int) error {
	return s.setProjectionWithQuerier(ctx, s.querier(), storyID, x, y, cluster)
}

const storySelectColumns = `
	s.id, s.episode_id, s.title, s.content, s.summary, s.story_type, s.location,
	s.is_first_person, s.start_time_seconds, s.end_time_seconds, s.time_period,
	s.token_count, s.embedding_method, s.embedding, s.embedding_dim,
	s.umap_x, s.umap_y, s.cluster, s.created_at, s.updated_at,
	e.podcast_name, e.air_date
`

// scanStory scans one joined stories/episodes row
func scanStory(scan func(dest ...interface{}) error) (*Story, error) {
	var story Story
	var summary, storyType, location, timePeriod, embeddingMethod sql.NullString
	var tokenCount, embeddingDim, cluster sql.NullInt64
	var umapX, umapY sql.NullFloat64
	var podcastName sql.NullString
	var airDate sql.NullTime

	err := scan(
		&story.ID, &story.EpisodeID, &story.Title, &story.Content,
		&summary, &storyType, &location,
		&story.IsFirstPerson, &story.StartTimeSeconds, &story.EndTimeSeconds, &timePeriod,
		&tokenCount, &embeddingMethod, &story.Embedding, &embeddingDim,
		&umapX, &umapY, &cluster, &story.CreatedAt, &story.UpdatedAt,
		&podcastName, &airDate,
	)
	if err != nil {
		return nil, err
	}

	story.Summary = summary.String
	story.StoryType = storyType.String
	story.Location = location.String
	story.TimePeriod = timePeriod.String
	story.EmbeddingMethod = embeddingMethod.String
	story.TokenCount = int(tokenCount.Int64)
	story.EmbeddingDim = int(embeddingDim.Int64)
	story.PodcastName = podcastName.String
	if airDate.Valid {
		story.AirDate = airDate.Time
	}
	if umapX.Valid {
		x := umapX.Float64
		story.UmapX = &x
	}
	if umapY.Valid {
		y := umapY.Float64
		story.UmapY = &y
	}
	if cluster.Valid {
		c := int(cluster.Int64)
		story.Cluster = &c
	}
	return &story, nil
}

// getStoryWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getStoryWithQuerier(ctx context.Context, q querier, storyID string) (*Story, error) {
	query := `
		SELECT ` + storySelectColumns + `
		FROM stories s
		LEFT JOIN episodes e ON s.episode_id = e.id
		WHERE s.id = ?
	`
	row := q.QueryRowContext(ctx, query, storyID)
	story, err := scanStory(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return story, nil
}

func (s *SQLiteStorage) GetStory(ctx context.Context, storyID string) (*Story, error) {
	return s.getStoryWithQuerier(ctx, s.querier(), storyID)
}

// getStoriesByIDsWithQuerier fetches stories for a set of IDs. Results are
// returned in the order of storyIDs; missing IDs are silently skipped.
func (s *SQLiteStorage) getStoriesByIDsWithQuerier(ctx context.Context, q querier, storyIDs []string) ([]*Story, error) {
	if len(storyIDs) == 0 {
		return []*Story{}, nil
	}

	placeholders := make([]string, len(storyIDs))
	args := make([]interface{}, len(storyIDs))
	for i, id := range storyIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	query := `
		SELECT ` + storySelectColumns + `
		FROM stories s
		LEFT JOIN episodes e ON s.episode_id = e.id
		WHERE s.id IN (` + strings.Join(placeholders, ",") + `)
	`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[string]*Story, len(storyIDs))
	for rows.Next() {
		story, err := scanStory(rows.Scan)
		if err != nil {
			return nil, err
		}
		byID[story.ID] = story
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ordered := make([]*Story, 0, len(storyIDs))
	for _, id := range storyIDs {
		if story, ok := byID[id]; ok {
			ordered = append(ordered, story)
		}
	}
	return ordered, nil
}

func (s *SQLiteStorage) GetStoriesByIDs(ctx context.Context, storyIDs []string) ([]*Story, error) {
	return s.getStoriesByIDsWithQuerier(ctx, s.querier(), storyIDs)
}

// listStoriesWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) listStoriesWithQuerier(ctx context.Context, q querier, opts ListOptions) ([]*Story, error) {
	query := `
		SELECT ` + storySelectColumns + `
		FROM stories s
		LEFT JOIN episodes e ON s.episode_id = e.id
	`
	args := []interface{}{}

	if len(opts.StoryTypes) > 0 {
		query += " WHERE s.story_type IN (" + placeholderList(len(opts.StoryTypes)) + ")"
		for _, t := range opts.StoryTypes {
			args = append(args, t)
		}
	}

	query += " ORDER BY e.air_date DESC, s.created_at DESC LIMIT ? OFFSET ?"
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, opts.Offset)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	stories := make([]*Story, 0)
	for rows.Next() {
		story, err := scanStory(rows.Scan)
		if err != nil {
			return nil, err
		}
		stories = append(stories, story)
	}
	return stories, rows.Err()
}

func (s *SQLiteStorage) ListStories(ctx context.Context, opts ListOptions) ([]*Story, error) {
	return s.listStoriesWithQuerier(ctx, s.querier(), opts)
}

// Chunk operations

// replaceStoryChunksWithQuerier deletes a story's chunks and inserts the new set
func (s *SQLiteStorage) replaceStoryChunksWithQuerier(ctx context.Context, q querier, storyID string, chunks []*StoryChunk) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM story_chunks WHERE story_id = ?", storyID); err != nil {
		return fmt.Errorf("failed to delete story chunks: %w", err)
	}

	query := `
		INSERT INTO story_chunks (story_id, chunk_index, content, token_count, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	for _, chunk := range chunks {
		result, err := q.ExecContext(ctx, query,
			storyID, chunk.ChunkIndex, chunk.Content, chunk.TokenCount, chunk.Embedding, now)
		if err != nil {
			return fmt.Errorf("failed to insert story chunk %d: %w", chunk.ChunkIndex, err)
		}
		if id, err := result.LastInsertId(); err == nil {
			chunk.ID = id
		}
		chunk.StoryID = storyID
		chunk.CreatedAt = now
	}
	return nil
}

func (s *SQLiteStorage) ReplaceStoryChunks(ctx context.Context, storyID string, chunks []*StoryChunk) error {
	return s.replaceStoryChunksWithQuerier(ctx, s.querier(), storyID, chunks)
}

// listStoryChunksWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) listStoryChunksWithQuerier(ctx context.Context, q querier, storyID string) ([]*StoryChunk, error) {
	query := `
		SELECT id, story_id, chunk_index, content, token_count, embedding, created_at
		FROM story_chunks
		WHERE story_id = ?
		ORDER BY chunk_index
	`
	rows, err := q.QueryContext(ctx, query, storyID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	chunks := make([]*StoryChunk, 0)
	for rows.Next() {
		var chunk StoryChunk
		var tokenCount sql.NullInt64
		err := rows.Scan(&chunk.ID, &chunk.StoryID, &chunk.ChunkIndex,
			&chunk.Content, &tokenCount, &chunk.Embedding, &chunk.CreatedAt)
		if err != nil {
			return nil, err
		}
		chunk.TokenCount = int(tokenCount.Int64)
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

func (s *SQLiteStorage) ListStoryChunks(ctx context.Context, storyID string) ([]*StoryChunk, error) {
	return s.listStoryChunksWithQuerier(ctx, s.querier(), storyID)
}

// Search operations

func (s *SQLiteStorage) SearchVector(ctx context.Context, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	// Implementation moved to separate file for clarity
	return searchVector(ctx, s.db, vector, limit, filters)
}

func (s *SQLiteStorage) SearchText(ctx context.Context, query string, limit int, filters *SearchFilters) ([]TextResult, error) {
	// Implementation moved to separate file for clarity
	return searchText(ctx, s.db, query, limit, filters)
}

// Visualization operations

// listMapStoriesWithQuerier returns stories with a usable location string
func (s *SQLiteStorage) listMapStoriesWithQuerier(ctx context.Context, q querier, filters *SearchFilters) ([]*Story, error) {
	query := `
		SELECT ` + storySelectColumns + `
		FROM stories s
		LEFT JOIN episodes e ON s.episode_id = e.id
		WHERE s.location IS NOT NULL AND s.location != '' AND s.location != 'Unknown'
	`
	args := []interface{}{}
	if filters != nil && len(filters.StoryTypes) > 0 {
		query += " AND s.story_type IN (" + placeholderList(len(filters.StoryTypes)) + ")"
		for _, t := range filters.StoryTypes {
			args = append(args, t)
		}
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	stories := make([]*Story, 0)
	for rows.Next() {
		story, err := scanStory(rows.Scan)
		if err != nil {
			return nil, err
		}
		stories = append(stories, story)
	}
	return stories, rows.Err()
}

func (s *SQLiteStorage) ListMapStories(ctx context.Context, filters *SearchFilters) ([]*Story, error) {
	return s.listMapStoriesWithQuerier(ctx, s.querier(), filters)
}

// listProjectionPointsWithQuerier returns stories with projection coordinates
func (s *SQLiteStorage) listProjectionPointsWithQuerier(ctx context.Context, q querier, filters *SearchFilters) ([]ProjectionPoint, error) {
	query := `
		SELECT id, title, story_type, umap_x, umap_y
		FROM stories
		WHERE umap_x IS NOT NULL AND umap_y IS NOT NULL
	`
	args := []interface{}{}
	if filters != nil && len(filters.StoryTypes) > 0 {
		query += " AND story_type IN (" + placeholderList(len(filters.StoryTypes)) + ")"
		for _, t := range filters.StoryTypes {
			args = append(args, t)
		}
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	points := make([]ProjectionPoint, 0)
	for rows.Next() {
		var p ProjectionPoint
		var storyType sql.NullString
		if err := rows.Scan(&p.ID, &p.Title, &storyType, &p.X, &p.Y); err != nil {
			return nil, err
		}
		p.StoryType = storyType.String
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *SQLiteStorage) ListProjectionPoints(ctx context.Context, filters *SearchFilters) ([]ProjectionPoint, error) {
	return s.listProjectionPointsWithQuerier(ctx, s.querier(), filters)
}

// Statistics operations

// storyTypeCountsWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) storyTypeCountsWithQuerier(ctx context.Context, q querier) (map[string]int, error) {
	query := `
		SELECT story_type, COUNT(*) as count
		FROM stories
		WHERE story_type IS NOT NULL
		GROUP BY story_type
		ORDER BY count DESC
	`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var storyType string
		var count int
		if err := rows.Scan(&storyType, &count); err != nil {
			return nil, err
		}
		counts[storyType] = count
	}
	return counts, rows.Err()
}

func (s *SQLiteStorage) StoryTypeCounts(ctx context.Context) (map[string]int, error) {
	return s.storyTypeCountsWithQuerier(ctx, s.querier())
}

// statsWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) statsWithQuerier(ctx context.Context, q querier) (*Stats, error) {
	var stats Stats

	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM stories").Scan(&stats.TotalStories)
	if err != nil {
		return nil, err
	}

	err = q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM stories WHERE location IS NOT NULL AND location != ''").Scan(&stats.WithLocation)
	if err != nil {
		return nil, err
	}

	err = q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM stories WHERE embedding IS NOT NULL").Scan(&stats.WithEmbedding)
	if err != nil {
		return nil, err
	}

	err = q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM stories WHERE umap_x IS NOT NULL AND umap_y IS NOT NULL").Scan(&stats.WithUmap)
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

func (s *SQLiteStorage) Stats(ctx context.Context) (*Stats, error) {
	return s.statsWithQuerier(ctx, s.querier())
}

// Helpers

func placeholderList(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// Transaction implementations

// Write operations use the internal helper that uses querier()

func (t *sqliteTx) GetOrCreateEpisode(ctx context.Context, episode *Episode) error {
	return t.storage.getOrCreateEpisodeWithQuerier(ctx, t.querier(), episode)
}

func (t *sqliteTx) GetEpisode(ctx context.Context, podcastName string, airDate time.Time) (*Episode, error) {
	return t.storage.getEpisodeWithQuerier(ctx, t.querier(), podcastName, airDate)
}

func (t *sqliteTx) UpsertStory(ctx context.Context, story *Story) error {
	return t.storage.upsertStoryWithQuerier(ctx, t.querier(), story)
}

func (t *sqliteTx) GetStory(ctx context.Context, storyID string) (*Story, error) {
	return t.storage.getStoryWithQuerier(ctx, t.querier(), storyID)
}

func (t *sqliteTx) GetStoriesByIDs(ctx context.Context, storyIDs []string) ([]*Story, error) {
	return t.storage.getStoriesByIDsWithQuerier(ctx, t.querier(), storyIDs)
}

func (t *sqliteTx) ListStories(ctx context.Context, opts ListOptions) ([]*Story, error) {
	return t.storage.listStoriesWithQuerier(ctx, t.querier(), opts)
}

func (t *sqliteTx) SetProjection(ctx context.Context, storyID string, x, y float64, cluster *int) error {
	return t.storage.setProjectionWithQuerier(ctx, t.querier(), storyID, x, y, cluster)
}

func (t *sqliteTx) ReplaceStoryChunks(ctx context.Context, storyID string, chunks []*StoryChunk) error {
	return t.storage.replaceStoryChunksWithQuerier(ctx, t.querier(), storyID, chunks)
}

func (t *sqliteTx) ListStoryChunks(ctx context.Context, storyID string) ([]*StoryChunk, error) {
	return t.storage.listStoryChunksWithQuerier(ctx, t.querier(), storyID)
}

func (t *sqliteTx) SearchVector(ctx context.Context, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	return t.storage.SearchVector(ctx, vector, limit, filters)
}

func (t *sqliteTx) SearchText(ctx context.Context, query string, limit int, filters *SearchFilters) ([]TextResult, error) {
	return t.storage.SearchText(ctx, query, limit, filters)
}

func (t *sqliteTx) ListMapStories(ctx context.Context, filters *SearchFilters) ([]*Story, error) {
	return t.storage.listMapStoriesWithQuerier(ctx, t.querier(), filters)
}

func (t *sqliteTx) ListProjectionPoints(ctx context.Context, filters *SearchFilters) ([]ProjectionPoint, error) {
	return t.storage.listProjectionPointsWithQuerier(ctx, t.querier(), filters)
}

func (t *sqliteTx) StoryTypeCounts(ctx context.Context) (map[string]int, error) {
	return t.storage.storyTypeCountsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) Stats(ctx context.Context) (*Stats, error) {
	return t.storage.statsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) Ping(ctx context.Context) error {
	return t.storage.Ping(ctx)
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite does not support true nested transactions
	return nil, errors.New("nested transactions not supported")
}
