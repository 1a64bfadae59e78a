package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/parafield/paratracker/internal/search"
	"github.com/parafield/paratracker/internal/storage"
)

// Name and Version identify the service in the root and health payloads
const (
	Name    = "paratracker-api"
	Version = "1.0.0"
)

// Server exposes the story datastore and search engine over HTTP
type Server struct {
	store  storage.Storage
	engine *search.Engine
	logger *slog.Logger

	// embeddingAvailable is reported by /api/health so clients can tell
	// degraded lexical-only search apart from full hybrid service
	embeddingAvailable bool
}

// NewServer creates an API server over the given store and engine
func NewServer(store storage.Storage, engine *search.Engine, embeddingAvailable bool, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:              store,
		engine:             engine,
		logger:             logger,
		embeddingAvailable: embeddingAvailable,
	}
}

// Router builds the HTTP handler with middleware and all routes
func (s *Server) Router(corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/", s.handleRoot)
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)
		r.Get("/stories", s.handleListStories)
		r.Get("/stories/{id}", s.handleGetStory)
		r.Post("/search", s.handleSearch)
		r.Get("/map/stories", s.handleMapStories)
		r.Get("/vector-space/points", s.handleVectorSpacePoints)
		r.Get("/frameworks", s.handleFrameworks)
		r.Get("/story-types", s.handleStoryTypes)
	})

	return r
}
