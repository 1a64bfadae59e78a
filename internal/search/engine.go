package search

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/parafield/paratracker/internal/embedder"
	"github.com/parafield/paratracker/internal/storage"
	"github.com/parafield/paratracker/pkg/types"
)

// Mode defines how search is performed
type Mode string

const (
	ModeHybrid Mode = "hybrid" // Blended vector + BM25
	ModeVector Mode = "vector" // Vector similarity only
	ModeText   Mode = "text"   // BM25 text search only
)

// Defaults and bounds for search requests
const (
	DefaultLimit = 10
	MaxLimit     = 100
	DefaultAlpha = 0.7

	// SnippetLength bounds the content excerpt returned with each result
	SnippetLength = 200
)

// Request contains parameters for a search operation
type Request struct {
	Query    string
	Limit    int
	Alpha    float64 // Weight of the vector signal in hybrid mode
	Mode     Mode
	Filters  *storage.SearchFilters
	UseCache bool
	CacheTTL time.Duration
}

// NewRequest returns a hybrid request with default limit and alpha
func NewRequest(query string) Request {
	return Request{
		Query: query,
		Limit: DefaultLimit,
		Alpha: DefaultAlpha,
		Mode:  ModeHybrid,
	}
}

// Response contains search results and metadata
type Response struct {
	Results        []types.SearchResult
	TotalResults   int
	Mode           Mode
	Degraded       bool // True when hybrid fell back to a single signal
	DegradedReason string
	Duration       time.Duration
	CacheHit       bool
	VectorResults  int
	TextResults    int
}

// cacheEntry represents a cached search response with expiration time
type cacheEntry struct {
	response  *Response
	expiresAt time.Time
}

// Engine coordinates search across the vector and lexical signals.
// The embedder may be nil; hybrid then serves lexical-only results and
// explicit vector requests fail with ErrEmbeddingUnavailable.
type Engine struct {
	storage  storage.Storage
	embedder embedder.Embedder
	logger   *slog.Logger
	cache    *lru.Cache[[32]byte, *cacheEntry]
	cacheMu  sync.RWMutex
}

// NewEngine creates a search engine over the given store and embedder
func NewEngine(store storage.Storage, emb embedder.Embedder, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := lru.New[[32]byte, *cacheEntry](1000)
	if err != nil {
		// Unreachable with a positive size
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	return &Engine{
		storage:  store,
		embedder: emb,
		logger:   logger,
		cache:    cache,
	}
}

// Search performs a search based on the request parameters
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	startTime := time.Now()

	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	if req.UseCache {
		if cached := e.checkCache(req); cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(startTime)
			return cached, nil
		}
	}

	var response *Response
	var err error

	switch req.Mode {
	case ModeHybrid:
		response, err = e.hybridSearch(ctx, req)
	case ModeVector:
		response, err = e.vectorSearch(ctx, req)
	case ModeText:
		response, err = e.textSearch(ctx, req)
	default:
		return nil, types.NewValidationError("mode", "unsupported search mode %q", req.Mode)
	}

	if err != nil {
		return nil, err
	}

	response.Duration = time.Since(startTime)

	if req.UseCache && len(response.Results) > 0 {
		e.storeInCache(req, response)
	}

	return response, nil
}

// validateRequest rejects out-of-range parameters rather than clamping
// them, so callers learn about mistakes instead of silently getting
// different results.
func validateRequest(req *Request) error {
	if strings.TrimSpace(req.Query) == "" {
		return types.NewValidationError("query", "cannot be empty")
	}
	if req.Limit < 1 || req.Limit > MaxLimit {
		return types.NewValidationError("limit", "must be between 1 and %d, got %d", MaxLimit, req.Limit)
	}
	if req.Alpha < 0 || req.Alpha > 1 {
		return types.NewValidationError("alpha", "must be between 0 and 1, got %g", req.Alpha)
	}
	if req.Mode == "" {
		req.Mode = ModeHybrid
	}
	if req.CacheTTL == 0 {
		req.CacheTTL = time.Hour
	}
	return nil
}

// signalResult holds the outcome of one concurrent signal query
type signalResult struct {
	scores      map[string]float64
	count       int
	err         error
	embedFailed bool // The query embedding itself failed, not the datastore
}

// runVectorSignal embeds the query and collects similarity scores
func (e *Engine) runVectorSignal(ctx context.Context, req Request, fetch int, resultChan chan<- signalResult) {
	var res signalResult
	emb, err := e.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: req.Query})
	if err != nil {
		res.err = fmt.Errorf("embed query: %w", err)
		res.embedFailed = true
	} else {
		var vectorResults []storage.VectorResult
		vectorResults, res.err = e.storage.SearchVector(ctx, emb.Vector, fetch, req.Filters)
		if res.err == nil {
			res.scores = make(map[string]float64, len(vectorResults))
			for _, vr := range vectorResults {
				res.scores[vr.StoryID] = vr.SimilarityScore
			}
			res.count = len(vectorResults)
		}
	}
	select {
	case resultChan <- res:
	case <-ctx.Done():
	}
}

// runTextSignal collects BM25-derived ranks
func (e *Engine) runTextSignal(ctx context.Context, req Request, fetch int, resultChan chan<- signalResult) {
	var res signalResult
	textResults, err := e.storage.SearchText(ctx, req.Query, fetch, req.Filters)
	if err != nil {
		res.err = err
	} else {
		res.scores = make(map[string]float64, len(textResults))
		for _, tr := range textResults {
			res.scores[tr.StoryID] = tr.Rank
		}
		res.count = len(textResults)
	}
	select {
	case resultChan <- res:
	case <-ctx.Done():
	}
}

// hybridSearch blends both signals with weighted max-normalized scores.
// Each signal is over-fetched at twice the requested limit so a story
// strong in only one signal still survives the blend.
func (e *Engine) hybridSearch(ctx context.Context, req Request) (*Response, error) {
	if e.embedder == nil {
		e.logger.Warn("no embedding provider, serving text-only results",
			"query", req.Query)
		return e.degradedTextSearch(ctx, req, "embedding provider unavailable")
	}

	fetch := req.Limit * 2
	vectorChan := make(chan signalResult, 1)
	textChan := make(chan signalResult, 1)

	go e.runVectorSignal(ctx, req, fetch, vectorChan)
	go e.runTextSignal(ctx, req, fetch, textChan)

	var vectorRes, textRes signalResult
	var vectorDone, textDone bool
	for !vectorDone || !textDone {
		select {
		case vectorRes = <-vectorChan:
			vectorDone = true
		case textRes = <-textChan:
			textDone = true
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if vectorRes.err != nil && textRes.err != nil {
		return nil, fmt.Errorf("both signals failed: vector=%w, text=%v", vectorRes.err, textRes.err)
	}

	// A failed query embedding leaves nothing to blend. Serving the
	// request as a text-mode search keeps the ordering and scores
	// identical to what text mode returns, regardless of alpha.
	if vectorRes.embedFailed {
		e.logger.Warn("query embedding failed, serving text-only results",
			"query", req.Query, "error", vectorRes.err)
		return e.degradedTextSearch(ctx, req, vectorRes.err.Error())
	}

	degraded := false
	degradedReason := ""
	if vectorRes.err != nil {
		e.logger.Warn("vector signal failed, serving text-only results",
			"query", req.Query, "error", vectorRes.err)
		degraded = true
		degradedReason = vectorRes.err.Error()
		vectorRes.scores = nil
	}
	if textRes.err != nil {
		e.logger.Warn("text signal failed, serving vector-only results",
			"query", req.Query, "error", textRes.err)
		degraded = true
		degradedReason = textRes.err.Error()
		textRes.scores = nil
	}

	blended := blendScores(vectorRes.scores, textRes.scores, req.Alpha)
	if len(blended) > req.Limit {
		blended = blended[:req.Limit]
	}

	results, err := e.hydrate(ctx, blended)
	if err != nil {
		return nil, err
	}

	return &Response{
		Results:        results,
		TotalResults:   len(results),
		Mode:           ModeHybrid,
		Degraded:       degraded,
		DegradedReason: degradedReason,
		VectorResults:  vectorRes.count,
		TextResults:    textRes.count,
	}, nil
}

// vectorSearch performs only vector similarity search. Without an
// embedding provider this fails before touching the datastore.
func (e *Engine) vectorSearch(ctx context.Context, req Request) (*Response, error) {
	if e.embedder == nil {
		return nil, types.ErrEmbeddingUnavailable
	}

	emb, err := e.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: req.Query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	vectorResults, err := e.storage.SearchVector(ctx, emb.Vector, req.Limit, req.Filters)
	if err != nil {
		return nil, err
	}

	blended := make([]blendedResult, len(vectorResults))
	for i, vr := range vectorResults {
		blended[i] = blendedResult{
			storyID:     vr.StoryID,
			hybrid:      vr.SimilarityScore,
			vectorScore: vr.SimilarityScore,
		}
	}

	results, err := e.hydrate(ctx, blended)
	if err != nil {
		return nil, err
	}

	return &Response{
		Results:       results,
		TotalResults:  len(results),
		Mode:          ModeVector,
		VectorResults: len(vectorResults),
	}, nil
}

// textSearch performs only BM25 text search
func (e *Engine) textSearch(ctx context.Context, req Request) (*Response, error) {
	textResults, err := e.storage.SearchText(ctx, req.Query, req.Limit, req.Filters)
	if err != nil {
		return nil, err
	}

	blended := make([]blendedResult, len(textResults))
	for i, tr := range textResults {
		blended[i] = blendedResult{
			storyID:   tr.StoryID,
			hybrid:    tr.Rank,
			textScore: tr.Rank,
		}
	}

	results, err := e.hydrate(ctx, blended)
	if err != nil {
		return nil, err
	}

	return &Response{
		Results:      results,
		TotalResults: len(results),
		Mode:         ModeText,
		TextResults:  len(textResults),
	}, nil
}

// degradedTextSearch serves a hybrid request from the lexical signal alone
func (e *Engine) degradedTextSearch(ctx context.Context, req Request, reason string) (*Response, error) {
	response, err := e.textSearch(ctx, req)
	if err != nil {
		return nil, err
	}
	response.Mode = ModeHybrid
	response.Degraded = true
	response.DegradedReason = reason
	return response, nil
}

// blendedResult carries a story through scoring into hydration
type blendedResult struct {
	storyID     string
	hybrid      float64
	textScore   float64
	vectorScore float64
}

// blendScores normalizes each signal over its own result set and
// combines them as alpha*vector + (1-alpha)*text over the union of
// story IDs. A story absent from one signal contributes zero for it.
// Ties break on ascending story ID so results are deterministic.
func blendScores(vectorScores, textScores map[string]float64, alpha float64) []blendedResult {
	normVector := NormalizeScores(vectorScores)
	normText := NormalizeScores(textScores)

	ids := make(map[string]struct{}, len(normVector)+len(normText))
	for id := range normVector {
		ids[id] = struct{}{}
	}
	for id := range normText {
		ids[id] = struct{}{}
	}

	results := make([]blendedResult, 0, len(ids))
	for id := range ids {
		v := normVector[id]
		t := normText[id]
		results = append(results, blendedResult{
			storyID:     id,
			hybrid:      alpha*v + (1-alpha)*t,
			textScore:   t,
			vectorScore: v,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].hybrid != results[j].hybrid {
			return results[i].hybrid > results[j].hybrid
		}
		return results[i].storyID < results[j].storyID
	})

	return results
}

// hydrate loads full story rows for the ranked IDs, preserving order.
// Stories deleted between ranking and hydration are silently dropped.
func (e *Engine) hydrate(ctx context.Context, ranked []blendedResult) ([]types.SearchResult, error) {
	if len(ranked) == 0 {
		return []types.SearchResult{}, nil
	}

	ids := make([]string, len(ranked))
	byID := make(map[string]blendedResult, len(ranked))
	for i, r := range ranked {
		ids[i] = r.storyID
		byID[r.storyID] = r
	}

	stories, err := e.storage.GetStoriesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load stories: %w", err)
	}

	results := make([]types.SearchResult, 0, len(stories))
	for _, story := range stories {
		r := byID[story.ID]
		results = append(results, types.SearchResult{
			ID:          story.ID,
			Title:       story.Title,
			StoryType:   story.StoryType,
			Location:    story.Location,
			PodcastName: story.PodcastName,
			AirDate:     story.AirDate,
			Snippet:     makeSnippet(story.Content),
			HybridScore: r.hybrid,
			TextScore:   r.textScore,
			VectorScore: r.vectorScore,
			UmapX:       story.UmapX,
			UmapY:       story.UmapY,
		})
	}

	return results, nil
}

// makeSnippet returns the leading excerpt of a story body
func makeSnippet(content string) string {
	content = strings.TrimSpace(content)
	if utf8.RuneCountInString(content) <= SnippetLength {
		return content
	}
	runes := []rune(content)
	return strings.TrimSpace(string(runes[:SnippetLength])) + "..."
}

// checkCache looks up a live cached response, pruning expired entries
func (e *Engine) checkCache(req Request) *Response {
	hash := computeQueryHash(req)
	now := time.Now()

	e.cacheMu.RLock()
	entry, found := e.cache.Get(hash)
	if !found {
		e.cacheMu.RUnlock()
		return nil
	}

	if now.After(entry.expiresAt) {
		e.cacheMu.RUnlock()
		e.cacheMu.Lock()
		e.cache.Remove(hash)
		e.cacheMu.Unlock()
		return nil
	}

	response := copyResponse(entry.response)
	e.cacheMu.RUnlock()

	return response
}

// storeInCache saves a deep copy of the response with its TTL
func (e *Engine) storeInCache(req Request, response *Response) {
	entry := &cacheEntry{
		response:  copyResponse(response),
		expiresAt: time.Now().Add(req.CacheTTL),
	}

	e.cacheMu.Lock()
	e.cache.Add(computeQueryHash(req), entry)
	e.cacheMu.Unlock()
}

// InvalidateCache drops all cached queries. Called after ingestion so
// stale rankings never outlive the corpus that produced them.
func (e *Engine) InvalidateCache() {
	e.cacheMu.Lock()
	e.cache.Purge()
	e.cacheMu.Unlock()
}

// copyResponse deep-copies a response so cached values stay immutable
func copyResponse(src *Response) *Response {
	if src == nil {
		return nil
	}

	dst := &Response{
		TotalResults:   src.TotalResults,
		Mode:           src.Mode,
		Degraded:       src.Degraded,
		DegradedReason: src.DegradedReason,
		Duration:       src.Duration,
		CacheHit:       src.CacheHit,
		VectorResults:  src.VectorResults,
		TextResults:    src.TextResults,
		Results:        make([]types.SearchResult, len(src.Results)),
	}

	for i, result := range src.Results {
		copied := result
		if result.UmapX != nil {
			x := *result.UmapX
			copied.UmapX = &x
		}
		if result.UmapY != nil {
			y := *result.UmapY
			copied.UmapY = &y
		}
		dst.Results[i] = copied
	}

	return dst
}

// computeQueryHash builds a deterministic cache key for a request
func computeQueryHash(req Request) [32]byte {
	var data strings.Builder
	data.WriteString(req.Query)
	data.WriteString("|")
	data.WriteString(string(req.Mode))
	data.WriteString("|")
	fmt.Fprintf(&data, "%d|%.4f", req.Limit, req.Alpha)

	if req.Filters != nil {
		data.WriteString("|types:")
		data.WriteString(strings.Join(req.Filters.StoryTypes, ","))
	}

	return sha256.Sum256([]byte(data.String()))
}
