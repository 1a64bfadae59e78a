package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parafield/paratracker/internal/embedder"
	"github.com/parafield/paratracker/internal/search"
	"github.com/parafield/paratracker/internal/storage"
)

type fixedEmbedder struct {
	vector []float32
}

func (f *fixedEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	return &embedder.Embedding{Vector: f.vector, Dimension: len(f.vector)}, nil
}

func (f *fixedEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	embeddings := make([]*embedder.Embedding, len(req.Texts))
	for i := range req.Texts {
		embeddings[i] = &embedder.Embedding{Vector: f.vector, Dimension: len(f.vector)}
	}
	return &embedder.BatchEmbeddingResponse{Embeddings: embeddings}, nil
}

func (f *fixedEmbedder) Dimension() int { return len(f.vector) }
func (f *fixedEmbedder) Model() string  { return "fixed" }
func (f *fixedEmbedder) Close() error   { return nil }

type silentWriter struct{}

func (silentWriter) Write(p []byte) (int, error) { return len(p), nil }

type fixture struct {
	server  *httptest.Server
	store   *storage.SQLiteStorage
	ghostID string
	ufoID   string
}

func newFixture(t *testing.T, emb embedder.Embedder) *fixture {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	episode := &storage.Episode{PodcastName: "Night Static", AirDate: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, store.GetOrCreateEpisode(ctx, episode))

	ghost := &storage.Story{
		EpisodeID:        episode.ID,
		Title:            "The Basement Door",
		Content:          "The basement door opened on its own every night at three.",
		StoryType:        "ghost",
		Location:         "Austin, TX",
		IsFirstPerson:    true,
		StartTimeSeconds: 60,
		Embedding:        storage.SerializeVector([]float32{1, 0}),
		EmbeddingDim:     2,
	}
	require.NoError(t, store.UpsertStory(ctx, ghost))
	require.NoError(t, store.SetProjection(ctx, ghost.ID, 0.5, 0.5, nil))

	ufo := &storage.Story{
		EpisodeID:        episode.ID,
		Title:            "Triangle Over the Highway",
		Content:          "A black triangle drifted over the highway without a sound.",
		StoryType:        "ufo",
		Location:         "somewhere remote",
		IsFirstPerson:    true,
		StartTimeSeconds: 400,
		Embedding:        storage.SerializeVector([]float32{0, 1}),
		EmbeddingDim:     2,
	}
	require.NoError(t, store.UpsertStory(ctx, ufo))

	logger := slog.New(slog.NewTextHandler(silentWriter{}, nil))
	engine := search.NewEngine(store, emb, logger)
	server := NewServer(store, engine, emb != nil, logger)

	ts := httptest.NewServer(server.Router(nil))
	t.Cleanup(ts.Close)

	return &fixture{server: ts, store: store, ghostID: ghost.ID, ufoID: ufo.ID}
}

func getJSON(t *testing.T, url string, into interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	if into != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url string, body interface{}, into interface{}) int {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	if into != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
	}
	return resp.StatusCode
}

func TestRootAndHealth(t *testing.T) {
	fx := newFixture(t, &fixedEmbedder{vector: []float32{1, 0}})

	var root rootResponse
	assert.Equal(t, http.StatusOK, getJSON(t, fx.server.URL+"/", &root))
	assert.Equal(t, Name, root.Name)

	var health healthResponse
	assert.Equal(t, http.StatusOK, getJSON(t, fx.server.URL+"/api/health", &health))
	assert.Equal(t, "ok", health.Status)
	assert.True(t, health.Database)
	assert.True(t, health.EmbeddingAvailable)
}

func TestHealth_DegradedWithoutEmbedder(t *testing.T) {
	fx := newFixture(t, nil)

	var health healthResponse
	assert.Equal(t, http.StatusOK, getJSON(t, fx.server.URL+"/api/health", &health))
	assert.Equal(t, "degraded", health.Status)
	assert.True(t, health.Database)
	assert.False(t, health.EmbeddingAvailable)
}

func TestStats(t *testing.T) {
	fx := newFixture(t, nil)

	var stats statsResponse
	assert.Equal(t, http.StatusOK, getJSON(t, fx.server.URL+"/api/stats", &stats))
	assert.Equal(t, 2, stats.TotalStories)
	assert.Equal(t, 2, stats.WithEmbedding)
	assert.Equal(t, 1, stats.WithUmap)
	assert.Equal(t, 1, stats.StoryTypes["ghost"])
	assert.Equal(t, 1, stats.StoryTypes["ufo"])

	// ghost rolls up into caps clinical_perceptual
	require.Contains(t, stats.FrameworkCategories, "caps")
	assert.Equal(t, 1, stats.FrameworkCategories["caps"]["clinical_perceptual"])
}

func TestListStories(t *testing.T) {
	fx := newFixture(t, nil)

	var items []storyItem
	assert.Equal(t, http.StatusOK, getJSON(t, fx.server.URL+"/api/stories", &items))
	require.Len(t, items, 2)

	// Geocoding and framework membership are attached at the edge.
	var ghost *storyItem
	for i := range items {
		if items[i].ID == fx.ghostID {
			ghost = &items[i]
		}
	}
	require.NotNil(t, ghost)
	require.NotNil(t, ghost.Latitude)
	assert.InDelta(t, 30.2672, *ghost.Latitude, 0.01)
	assert.Contains(t, ghost.Frameworks, "caps")
	assert.Equal(t, "2024-04-01", ghost.AirDate)
}

func TestListStories_TypeFilterAndValidation(t *testing.T) {
	fx := newFixture(t, nil)

	var items []storyItem
	assert.Equal(t, http.StatusOK, getJSON(t, fx.server.URL+"/api/stories?story_type=ufo", &items))
	require.Len(t, items, 1)
	assert.Equal(t, fx.ufoID, items[0].ID)

	assert.Equal(t, http.StatusBadRequest, getJSON(t, fx.server.URL+"/api/stories?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, fx.server.URL+"/api/stories?limit=501", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, fx.server.URL+"/api/stories?limit=abc", nil))
}

func TestGetStory(t *testing.T) {
	fx := newFixture(t, nil)

	var detail storyDetail
	assert.Equal(t, http.StatusOK, getJSON(t, fx.server.URL+"/api/stories/"+fx.ghostID, &detail))
	assert.Equal(t, "The Basement Door", detail.Title)
	assert.Contains(t, detail.Content, "basement door")
	assert.True(t, detail.IsFirstPerson)

	assert.Equal(t, http.StatusNotFound, getJSON(t, fx.server.URL+"/api/stories/nope", nil))
}

func TestSearch(t *testing.T) {
	fx := newFixture(t, &fixedEmbedder{vector: []float32{1, 0}})

	var resp searchResponse
	status := postJSON(t, fx.server.URL+"/api/search", map[string]interface{}{
		"query": "basement door",
	}, &resp)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "hybrid", resp.SearchType)
	assert.False(t, resp.Degraded)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, fx.ghostID, resp.Results[0].ID)
	assert.NotEmpty(t, resp.Results[0].Snippet)
	assert.Greater(t, resp.Results[0].HybridScore, 0.0)
}

func TestSearch_DegradesWithoutEmbedder(t *testing.T) {
	fx := newFixture(t, nil)

	var resp searchResponse
	status := postJSON(t, fx.server.URL+"/api/search", map[string]interface{}{
		"query": "triangle highway",
	}, &resp)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Degraded)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, fx.ufoID, resp.Results[0].ID)
}

func TestSearch_Validation(t *testing.T) {
	fx := newFixture(t, nil)
	url := fx.server.URL + "/api/search"

	assert.Equal(t, http.StatusBadRequest, postJSON(t, url, map[string]interface{}{"query": ""}, nil))
	assert.Equal(t, http.StatusBadRequest, postJSON(t, url, map[string]interface{}{"query": "x", "limit": 0}, nil))
	assert.Equal(t, http.StatusBadRequest, postJSON(t, url, map[string]interface{}{"query": "x", "limit": 101}, nil))
	assert.Equal(t, http.StatusBadRequest, postJSON(t, url, map[string]interface{}{"query": "x", "alpha": 1.5}, nil))
	assert.Equal(t, http.StatusBadRequest, postJSON(t, url, map[string]interface{}{"query": "x", "search_type": "psychic"}, nil))
}

func TestSearch_VectorModeWithoutEmbedder(t *testing.T) {
	fx := newFixture(t, nil)

	status := postJSON(t, fx.server.URL+"/api/search", map[string]interface{}{
		"query":       "anything",
		"search_type": "vector",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSearch_FrameworkCategoryFilter(t *testing.T) {
	fx := newFixture(t, nil)

	var resp searchResponse
	status := postJSON(t, fx.server.URL+"/api/search", map[string]interface{}{
		"query":              "the",
		"search_type":        "text",
		"framework":          "caps",
		"framework_category": "clinical_perceptual",
	}, &resp)
	require.Equal(t, http.StatusOK, status)
	for _, r := range resp.Results {
		assert.Equal(t, "ghost", r.StoryType)
	}
}

func TestMapStories(t *testing.T) {
	fx := newFixture(t, nil)

	var items []mapStoryItem
	assert.Equal(t, http.StatusOK, getJSON(t, fx.server.URL+"/api/map/stories", &items))

	// Only the geocodable story appears; "somewhere remote" resolves to nothing.
	require.Len(t, items, 1)
	assert.Equal(t, fx.ghostID, items[0].ID)
	assert.InDelta(t, 30.2672, items[0].Latitude, 0.01)
	assert.InDelta(t, -97.7431, items[0].Longitude, 0.01)
}

func TestVectorSpacePoints(t *testing.T) {
	fx := newFixture(t, nil)

	var items []projectionPointItem
	assert.Equal(t, http.StatusOK, getJSON(t, fx.server.URL+"/api/vector-space/points", &items))
	require.Len(t, items, 1)
	assert.Equal(t, fx.ghostID, items[0].ID)
	assert.Equal(t, 0.5, items[0].X)
	assert.NotEmpty(t, items[0].Color)
}

func TestFrameworksAndStoryTypes(t *testing.T) {
	fx := newFixture(t, nil)

	var frameworks map[string]json.RawMessage
	assert.Equal(t, http.StatusOK, getJSON(t, fx.server.URL+"/api/frameworks", &frameworks))
	assert.Contains(t, frameworks, "caps")
	assert.Contains(t, frameworks, "sleep_paralysis")
	assert.Contains(t, frameworks, "hypnagogic")

	var storyTypes []storyTypeItem
	assert.Equal(t, http.StatusOK, getJSON(t, fx.server.URL+"/api/story-types", &storyTypes))
	require.NotEmpty(t, storyTypes)

	byType := make(map[string]storyTypeItem, len(storyTypes))
	for _, st := range storyTypes {
		byType[st.StoryType] = st
	}
	assert.Equal(t, 1, byType["ghost"].Count)
	assert.Equal(t, 0, byType["haunting"].Count)
	assert.NotEmpty(t, byType["ghost"].Color)
}
