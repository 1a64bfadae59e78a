package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/parafield/paratracker/pkg/types"
)

// Voyage AI configuration
const (
	DefaultVoyageModel = "voyage-4-large"
	VoyageDimension    = 1024
	VoyageAPIURL       = "https://api.voyageai.com/v1/embeddings"

	// MaxInputChars bounds each input sent to the API. Longer texts are
	// truncated rather than rejected; callers that need full coverage
	// chunk before embedding.
	MaxInputChars = 32000

	// MaxBatchSize is the provider's per-request input limit
	MaxBatchSize = 128
)

// VoyageProvider implements Embedder using the Voyage AI API
type VoyageProvider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	cache      *Cache
	retry      RetryConfig
}

// NewVoyageProvider creates a Voyage AI embedder with the default model
func NewVoyageProvider(apiKey string, cache *Cache) (*VoyageProvider, error) {
	return newVoyageProvider(apiKey, DefaultVoyageModel, VoyageAPIURL, cache)
}

func newVoyageProvider(apiKey, model, baseURL string, cache *Cache) (*VoyageProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: no API key", types.ErrEmbeddingUnavailable)
	}
	if model == "" {
		model = DefaultVoyageModel
	}
	if baseURL == "" {
		baseURL = VoyageAPIURL
	}

	return &VoyageProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		cache: cache,
		retry: DefaultRetryConfig(),
	}, nil
}

func (v *VoyageProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	hash := ComputeHash(req.Text)
	if v.cache != nil {
		if emb, ok := v.cache.Get(hash); ok {
			return emb, nil
		}
	}

	// Use the batch path for consistency
	resp, err := v.GenerateBatch(ctx, BatchEmbeddingRequest{
		Texts: []string{req.Text},
		Model: req.Model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}

	return resp.Embeddings[0], nil
}

func (v *VoyageProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	if len(req.Texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	model := req.Model
	if model == "" {
		model = v.model
	}

	inputs := make([]string, len(req.Texts))
	for i, text := range req.Texts {
		inputs[i] = truncateInput(text)
	}

	embeddings, err := retryWithBackoff(ctx, v.retry, func() ([]*Embedding, error) {
		return v.callAPI(ctx, inputs, model)
	})
	if err != nil {
		return nil, err
	}

	if len(embeddings) != len(req.Texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", ErrProviderFailed, len(embeddings), len(req.Texts))
	}

	// Cache keyed by the original, untruncated text
	if v.cache != nil {
		for i, emb := range embeddings {
			hash := ComputeHash(req.Texts[i])
			emb.Hash = hash
			v.cache.Set(hash, emb)
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Model:      model,
	}, nil
}

func (v *VoyageProvider) callAPI(ctx context.Context, texts []string, model string) ([]*Embedding, error) {
	reqBody := map[string]interface{}{
		"input": texts,
		"model": model,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", v.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+v.apiKey)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, &apiError{err: fmt.Errorf("api call: %w", err), transient: true}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, classifyHTTPError(resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	embeddings := make([]*Embedding, len(apiResp.Data))
	for _, data := range apiResp.Data {
		if data.Index < 0 || data.Index >= len(embeddings) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", ErrProviderFailed, data.Index)
		}
		embeddings[data.Index] = &Embedding{
			Vector:    data.Embedding,
			Dimension: len(data.Embedding),
			Model:     apiResp.Model,
		}
	}
	for i, emb := range embeddings {
		if emb == nil {
			return nil, fmt.Errorf("%w: missing embedding for input %d", ErrProviderFailed, i)
		}
	}

	return embeddings, nil
}

func (v *VoyageProvider) Dimension() int {
	return VoyageDimension
}

func (v *VoyageProvider) Model() string {
	return v.model
}

func (v *VoyageProvider) Close() error {
	v.httpClient.CloseIdleConnections()
	return nil
}

// classifyHTTPError maps an API status to a retryable or fatal error.
// 429 and 5xx are transient; 401/403 mean the key is bad and retrying
// cannot help.
func classifyHTTPError(status int, body string) error {
	base := fmt.Errorf("api error %d: %s", status, body)
	switch {
	case status == http.StatusTooManyRequests:
		return &apiError{err: fmt.Errorf("%w: %v", types.ErrRateLimited, base), transient: true}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &apiError{err: fmt.Errorf("%w: %v", ErrAuthFailed, base), transient: false}
	case status >= 500:
		return &apiError{err: base, transient: true}
	default:
		return &apiError{err: base, transient: false}
	}
}

// truncateInput caps a single input at MaxInputChars
func truncateInput(text string) string {
	if len(text) <= MaxInputChars {
		return text
	}
	return text[:MaxInputChars]
}
