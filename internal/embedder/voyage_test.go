package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parafield/paratracker/pkg/types"
)

type voyageRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
		Multiplier:  2.0,
	}
}

// embeddingServer returns a deterministic embedding per input so tests
// can assert ordering.
func embeddingServer(t *testing.T, attempts *atomic.Int32, failWith func(n int32) int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if failWith != nil {
			if status := failWith(n); status != 0 {
				w.WriteHeader(status)
				_, _ = w.Write([]byte(`{"detail":"induced failure"}`))
				return
			}
		}

		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req voyageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		type datum struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]datum, len(req.Input))
		for i := range req.Input {
			data[i] = datum{Embedding: []float32{float32(i), float32(len(req.Input[i]))}, Index: i}
		}
		resp := map[string]interface{}{"data": data, "model": req.Model}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func testProvider(t *testing.T, serverURL string, cache *Cache) *VoyageProvider {
	t.Helper()
	provider, err := newVoyageProvider("test-key", "", serverURL, cache)
	require.NoError(t, err)
	provider.retry = fastRetry()
	return provider
}

func TestGenerateBatch(t *testing.T) {
	var attempts atomic.Int32
	server := embeddingServer(t, &attempts, nil)
	defer server.Close()

	provider := testProvider(t, server.URL, nil)
	resp, err := provider.GenerateBatch(context.Background(), BatchEmbeddingRequest{
		Texts: []string{"first story", "second story"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 2)
	assert.Equal(t, DefaultVoyageModel, resp.Model)
	assert.Equal(t, []float32{0, 11}, resp.Embeddings[0].Vector)
	assert.Equal(t, []float32{1, 12}, resp.Embeddings[1].Vector)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestGenerateEmbedding_CacheHit(t *testing.T) {
	var attempts atomic.Int32
	server := embeddingServer(t, &attempts, nil)
	defer server.Close()

	provider := testProvider(t, server.URL, NewCache(100))
	ctx := context.Background()

	first, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "a haunted barn"})
	require.NoError(t, err)

	second, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "a haunted barn"})
	require.NoError(t, err)

	assert.Equal(t, first.Vector, second.Vector)
	assert.Equal(t, int32(1), attempts.Load(), "second call must be served from cache")

	// Mutating the returned vector must not poison the cache.
	second.Vector[0] = 999
	third, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "a haunted barn"})
	require.NoError(t, err)
	assert.Equal(t, first.Vector, third.Vector)
}

func TestGenerateBatch_RetriesRateLimit(t *testing.T) {
	var attempts atomic.Int32
	server := embeddingServer(t, &attempts, func(n int32) int {
		if n <= 2 {
			return http.StatusTooManyRequests
		}
		return 0
	})
	defer server.Close()

	provider := testProvider(t, server.URL, nil)
	resp, err := provider.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"x"}})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 1)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestGenerateBatch_RateLimitExhausted(t *testing.T) {
	var attempts atomic.Int32
	server := embeddingServer(t, &attempts, func(n int32) int {
		return http.StatusTooManyRequests
	})
	defer server.Close()

	provider := testProvider(t, server.URL, nil)
	_, err := provider.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"x"}})
	require.Error(t, err)

	// An exhausted provider reads as unavailable, with the rate-limit
	// cause still in the chain.
	assert.ErrorIs(t, err, types.ErrEmbeddingUnavailable)
	assert.ErrorIs(t, err, types.ErrRateLimited)
	assert.Equal(t, int32(5), attempts.Load())
}

func TestGenerateBatch_AuthFailureIsFatal(t *testing.T) {
	var attempts atomic.Int32
	server := embeddingServer(t, &attempts, func(n int32) int {
		return http.StatusUnauthorized
	})
	defer server.Close()

	provider := testProvider(t, server.URL, nil)
	_, err := provider.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"x"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.Equal(t, int32(1), attempts.Load(), "credential errors must not retry")
}

func TestGenerateBatch_ServerErrorRetries(t *testing.T) {
	var attempts atomic.Int32
	server := embeddingServer(t, &attempts, func(n int32) int {
		if n == 1 {
			return http.StatusBadGateway
		}
		return 0
	})
	defer server.Close()

	provider := testProvider(t, server.URL, nil)
	_, err := provider.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"x"}})
	require.NoError(t, err)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestGenerateBatch_TruncatesLongInput(t *testing.T) {
	var gotLen int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req voyageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotLen = len(req.Input[0])
		resp := map[string]interface{}{
			"data":  []map[string]interface{}{{"embedding": []float32{1}, "index": 0}},
			"model": req.Model,
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	provider := testProvider(t, server.URL, nil)
	long := strings.Repeat("a", MaxInputChars+500)
	_, err := provider.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{long}})
	require.NoError(t, err)
	assert.Equal(t, MaxInputChars, gotLen)
}

func TestGenerateBatch_TooManyInputs(t *testing.T) {
	provider := testProvider(t, "http://unused.invalid", nil)
	texts := make([]string, MaxBatchSize+1)
	for i := range texts {
		texts[i] = "t"
	}
	_, err := provider.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: texts})
	assert.ErrorIs(t, err, ErrBatchTooLarge)
}

func TestValidation(t *testing.T) {
	provider := testProvider(t, "http://unused.invalid", nil)
	ctx := context.Background()

	_, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: ""})
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = provider.GenerateBatch(ctx, BatchEmbeddingRequest{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = provider.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"ok", ""}})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNewVoyageProvider_RequiresKey(t *testing.T) {
	_, err := NewVoyageProvider("", nil)
	assert.ErrorIs(t, err, types.ErrEmbeddingUnavailable)
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv(EnvVoyageAPIKey, "")
	_, err := NewFromEnv()
	assert.ErrorIs(t, err, types.ErrEmbeddingUnavailable)
	assert.False(t, Available())

	t.Setenv(EnvVoyageAPIKey, "key")
	t.Setenv(EnvVoyageModel, "voyage-3-lite")
	emb, err := NewFromEnv()
	require.NoError(t, err)
	defer func() { _ = emb.Close() }()
	assert.Equal(t, "voyage-3-lite", emb.Model())
	assert.Equal(t, VoyageDimension, emb.Dimension())
	assert.True(t, Available())
}
