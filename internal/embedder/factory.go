package embedder

import (
	"fmt"
	"os"

	"github.com/parafield/paratracker/pkg/types"
)

// Environment variables
const (
	EnvVoyageAPIKey = "VOYAGE_API_KEY"
	EnvVoyageModel  = "VOYAGE_MODEL"
)

// Config holds embedder configuration
type Config struct {
	APIKey    string
	Model     string // Defaults to DefaultVoyageModel
	BaseURL   string // Defaults to VoyageAPIURL; overridable for tests
	CacheSize int    // 0 disables caching
}

// New creates an embedder with explicit configuration
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}
	return newVoyageProvider(cfg.APIKey, cfg.Model, cfg.BaseURL, cache)
}

// NewFromEnv creates an embedder from VOYAGE_API_KEY and VOYAGE_MODEL.
// Errors when no API key is set; callers that can degrade to text-only
// search handle that themselves.
func NewFromEnv() (Embedder, error) {
	apiKey := os.Getenv(EnvVoyageAPIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", types.ErrEmbeddingUnavailable, EnvVoyageAPIKey)
	}

	return New(Config{
		APIKey:    apiKey,
		Model:     os.Getenv(EnvVoyageModel),
		CacheSize: 10000,
	})
}

// Available reports whether NewFromEnv would succeed
func Available() bool {
	return os.Getenv(EnvVoyageAPIKey) != ""
}
