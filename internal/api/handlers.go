package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/parafield/paratracker/internal/geocode"
	"github.com/parafield/paratracker/internal/search"
	"github.com/parafield/paratracker/internal/storage"
	"github.com/parafield/paratracker/internal/taxonomy"
	"github.com/parafield/paratracker/pkg/types"
)

// Listing bounds
const (
	defaultListLimit   = 50
	maxListLimit       = 500
	defaultSearchLimit = 20
)

type errorResponse struct {
	Error string `json:"error"`
}

type rootResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type healthResponse struct {
	Status             string `json:"status"`
	Database           bool   `json:"database"`
	EmbeddingAvailable bool   `json:"embedding_available"`
}

type statsResponse struct {
	TotalStories        int                       `json:"total_stories"`
	WithLocation        int                       `json:"with_location"`
	WithEmbedding       int                       `json:"with_embedding"`
	WithUmap            int                       `json:"with_umap"`
	StoryTypes          map[string]int            `json:"story_types"`
	FrameworkCategories map[string]map[string]int `json:"framework_categories"`
}

type storyItem struct {
	ID               string              `json:"id"`
	Title            string              `json:"title"`
	Summary          string              `json:"summary,omitempty"`
	StoryType        string              `json:"story_type,omitempty"`
	Location         string              `json:"location,omitempty"`
	PodcastName      string              `json:"podcast_name,omitempty"`
	AirDate          string              `json:"air_date,omitempty"`
	StartTimeSeconds float64             `json:"start_time_seconds"`
	EndTimeSeconds   float64             `json:"end_time_seconds"`
	TimePeriod       string              `json:"time_period,omitempty"`
	Latitude         *float64            `json:"latitude,omitempty"`
	Longitude        *float64            `json:"longitude,omitempty"`
	Frameworks       map[string][]string `json:"frameworks,omitempty"`
	UmapX            *float64            `json:"umap_x,omitempty"`
	UmapY            *float64            `json:"umap_y,omitempty"`
	Cluster          *int                `json:"cluster,omitempty"`
}

type storyDetail struct {
	storyItem
	Content         string `json:"content"`
	IsFirstPerson   bool   `json:"is_first_person"`
	TokenCount      int    `json:"token_count"`
	EmbeddingMethod string `json:"embedding_method,omitempty"`
}

type searchRequest struct {
	Query             string   `json:"query"`
	Limit             *int     `json:"limit"`
	SearchType        string   `json:"search_type"`
	Alpha             *float64 `json:"alpha"`
	StoryTypes        []string `json:"story_types"`
	Framework         string   `json:"framework"`
	FrameworkCategory string   `json:"framework_category"`
}

type searchResultItem struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	StoryType   string   `json:"story_type,omitempty"`
	Location    string   `json:"location,omitempty"`
	PodcastName string   `json:"podcast_name,omitempty"`
	AirDate     string   `json:"air_date,omitempty"`
	Snippet     string   `json:"snippet"`
	HybridScore float64  `json:"hybrid_score"`
	TextScore   float64  `json:"text_score"`
	VectorScore float64  `json:"vector_score"`
	UmapX       *float64 `json:"umap_x,omitempty"`
	UmapY       *float64 `json:"umap_y,omitempty"`
}

type searchResponse struct {
	Results        []searchResultItem `json:"results"`
	Total          int                `json:"total"`
	SearchType     string             `json:"search_type"`
	Degraded       bool               `json:"degraded"`
	DegradedReason string             `json:"degraded_reason,omitempty"`
	DurationMs     int64              `json:"duration_ms"`
}

type mapStoryItem struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	StoryType   string  `json:"story_type,omitempty"`
	Location    string  `json:"location"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	PodcastName string  `json:"podcast_name,omitempty"`
	AirDate     string  `json:"air_date,omitempty"`
}

type projectionPointItem struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	StoryType string  `json:"story_type,omitempty"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Color     string  `json:"color"`
}

type storyTypeItem struct {
	StoryType string `json:"story_type"`
	Count     int    `json:"count"`
	Color     string `json:"color"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{Name: Name, Version: Version})
}

// handleHealth always answers 200; a failing database is reported in the
// payload so load balancers see the process while clients see the
// degradation.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:             "ok",
		Database:           true,
		EmbeddingAvailable: s.embeddingAvailable,
	}
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Error("health check database ping failed", "error", err)
		resp.Status = "degraded"
		resp.Database = false
	} else if !s.embeddingAvailable {
		resp.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := s.store.Stats(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}
	typeCounts, err := s.store.StoryTypeCounts(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}

	// Roll type counts up into each framework's categories.
	frameworkCounts := make(map[string]map[string]int, len(taxonomy.Frameworks))
	for name, framework := range taxonomy.Frameworks {
		categories := make(map[string]int, len(framework.Categories))
		for category, storyTypes := range framework.Categories {
			total := 0
			for _, st := range storyTypes {
				total += typeCounts[st]
			}
			categories[category] = total
		}
		frameworkCounts[name] = categories
	}

	writeJSON(w, http.StatusOK, statsResponse{
		TotalStories:        stats.TotalStories,
		WithLocation:        stats.WithLocation,
		WithEmbedding:       stats.WithEmbedding,
		WithUmap:            stats.WithUmap,
		StoryTypes:          typeCounts,
		FrameworkCategories: frameworkCounts,
	})
}

func (s *Server) handleListStories(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultListLimit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if limit < 1 || limit > maxListLimit {
		s.writeError(w, types.NewValidationError("limit", "must be between 1 and %d, got %d", maxListLimit, limit))
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		s.writeError(w, err)
		return
	}

	stories, err := s.store.ListStories(r.Context(), storage.ListOptions{
		Limit:      limit,
		Offset:     offset,
		StoryTypes: filtersFromQuery(r),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	items := make([]storyItem, len(stories))
	for i, story := range stories {
		items[i] = toStoryItem(story)
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetStory(w http.ResponseWriter, r *http.Request) {
	story, err := s.store.GetStory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, storyDetail{
		storyItem:       toStoryItem(story),
		Content:         story.Content,
		IsFirstPerson:   story.IsFirstPerson,
		TokenCount:      story.TokenCount,
		EmbeddingMethod: story.EmbeddingMethod,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var body searchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, types.NewValidationError("body", "invalid JSON: %v", err))
		return
	}

	req := search.NewRequest(body.Query)
	req.Limit = defaultSearchLimit
	if body.Limit != nil {
		req.Limit = *body.Limit
	}
	if body.Alpha != nil {
		req.Alpha = *body.Alpha
	}
	switch body.SearchType {
	case "", string(search.ModeHybrid):
		req.Mode = search.ModeHybrid
	case string(search.ModeText):
		req.Mode = search.ModeText
	case string(search.ModeVector):
		req.Mode = search.ModeVector
	default:
		s.writeError(w, types.NewValidationError("search_type", "must be hybrid, text, or vector, got %q", body.SearchType))
		return
	}

	if storyTypes := taxonomy.ResolveTypeFilter(body.Framework, body.FrameworkCategory, body.StoryTypes); storyTypes != nil {
		req.Filters = &storage.SearchFilters{StoryTypes: storyTypes}
	}

	resp, err := s.engine.Search(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	items := make([]searchResultItem, len(resp.Results))
	for i, result := range resp.Results {
		items[i] = searchResultItem{
			ID:          result.ID,
			Title:       result.Title,
			StoryType:   result.StoryType,
			Location:    result.Location,
			PodcastName: result.PodcastName,
			AirDate:     formatAirDate(result.AirDate),
			Snippet:     result.Snippet,
			HybridScore: result.HybridScore,
			TextScore:   result.TextScore,
			VectorScore: result.VectorScore,
			UmapX:       result.UmapX,
			UmapY:       result.UmapY,
		}
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Results:        items,
		Total:          resp.TotalResults,
		SearchType:     string(resp.Mode),
		Degraded:       resp.Degraded,
		DegradedReason: resp.DegradedReason,
		DurationMs:     resp.Duration.Milliseconds(),
	})
}

func (s *Server) handleMapStories(w http.ResponseWriter, r *http.Request) {
	var filters *storage.SearchFilters
	if storyTypes := filtersFromQuery(r); storyTypes != nil {
		filters = &storage.SearchFilters{StoryTypes: storyTypes}
	}

	stories, err := s.store.ListMapStories(r.Context(), filters)
	if err != nil {
		s.writeError(w, err)
		return
	}

	items := make([]mapStoryItem, 0, len(stories))
	for _, story := range stories {
		loc := geocode.Geocode(story.Location)
		if loc == nil {
			continue
		}
		items = append(items, mapStoryItem{
			ID:          story.ID,
			Title:       story.Title,
			StoryType:   story.StoryType,
			Location:    story.Location,
			Latitude:    loc.Lat,
			Longitude:   loc.Lng,
			PodcastName: story.PodcastName,
			AirDate:     formatAirDate(story.AirDate),
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleVectorSpacePoints(w http.ResponseWriter, r *http.Request) {
	var filters *storage.SearchFilters
	if storyTypes := filtersFromQuery(r); storyTypes != nil {
		filters = &storage.SearchFilters{StoryTypes: storyTypes}
	}

	points, err := s.store.ListProjectionPoints(r.Context(), filters)
	if err != nil {
		s.writeError(w, err)
		return
	}

	items := make([]projectionPointItem, len(points))
	for i, p := range points {
		items[i] = projectionPointItem{
			ID:        p.ID,
			Title:     p.Title,
			StoryType: p.StoryType,
			X:         p.X,
			Y:         p.Y,
			Color:     taxonomy.ColorForType(p.StoryType),
		}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleFrameworks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, taxonomy.Frameworks)
}

func (s *Server) handleStoryTypes(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.StoryTypeCounts(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	items := make([]storyTypeItem, 0, len(taxonomy.StoryTypes))
	for _, st := range taxonomy.StoryTypes {
		items = append(items, storyTypeItem{
			StoryType: st,
			Count:     counts[st],
			Color:     taxonomy.ColorForType(st),
		})
	}
	writeJSON(w, http.StatusOK, items)
}

// Helpers

// filtersFromQuery resolves story_type, framework, and framework_category
// query params into a concrete type list
func filtersFromQuery(r *http.Request) []string {
	q := r.URL.Query()
	return taxonomy.ResolveTypeFilter(
		q.Get("framework"),
		q.Get("framework_category"),
		q["story_type"],
	)
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, types.NewValidationError(name, "must be an integer, got %q", raw)
	}
	return value, nil
}

func formatAirDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func toStoryItem(story *storage.Story) storyItem {
	item := storyItem{
		ID:               story.ID,
		Title:            story.Title,
		Summary:          story.Summary,
		StoryType:        story.StoryType,
		Location:         story.Location,
		PodcastName:      story.PodcastName,
		AirDate:          formatAirDate(story.AirDate),
		StartTimeSeconds: story.StartTimeSeconds,
		EndTimeSeconds:   story.EndTimeSeconds,
		TimePeriod:       story.TimePeriod,
		UmapX:            story.UmapX,
		UmapY:            story.UmapY,
		Cluster:          story.Cluster,
	}
	if loc := geocode.Geocode(story.Location); loc != nil {
		item.Latitude = &loc.Lat
		item.Longitude = &loc.Lng
	}
	if story.StoryType != "" {
		if frameworks := taxonomy.FrameworksForType(story.StoryType); len(frameworks) > 0 {
			item.Frameworks = frameworks
		}
	}
	return item
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps domain errors to HTTP statuses
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case types.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, types.ErrEmbeddingUnavailable):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "vector search requires an embedding provider"})
	default:
		s.logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}
