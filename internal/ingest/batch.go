package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// BatchConfig controls a directory ingestion run
type BatchConfig struct {
	Workers int           // Concurrent documents (default 1)
	Delay   time.Duration // Pause between dispatches, spreads API load (default 1s)
	Matches []string      // Only load files whose path contains one of these substrings
	Limit   int           // Stop after this many documents (0 = all)
	DryRun  bool          // Plan only, no embedding or writes
}

// Summary aggregates the outcome of a batch run
type Summary struct {
	Inserted int
	Updated  int
	Skipped  int
	Failed   int
	Results  []LoadResult
	Errors   []string
	Duration time.Duration
}

// LoadDirectory ingests every markdown transcript under root. Documents
// fail independently; one bad file never aborts the batch.
func (p *Pipeline) LoadDirectory(ctx context.Context, root string, config *BatchConfig) (*Summary, error) {
	if config == nil {
		config = &BatchConfig{}
	}
	workers := config.Workers
	if workers <= 0 {
		workers = 1
	}
	delay := config.Delay
	if delay == 0 && !config.DryRun {
		delay = time.Second
	}

	files, err := discoverTranscripts(root, config.Matches, config.Limit)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	summary := &Summary{
		Results: make([]LoadResult, 0, len(files)),
		Errors:  make([]string, 0),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, path := range files {
		if i > 0 && delay > 0 {
			select {
			case <-time.After(delay):
			case <-gctx.Done():
				return nil, gctx.Err()
			}
		}

		path := path
		g.Go(func() error {
			result, err := p.loadOne(gctx, path, config.DryRun)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed++
				summary.Errors = append(summary.Errors, err.Error())
				p.logger.Error("failed to load document", "path", path, "error", err)
				return nil
			}
			summary.Results = append(summary.Results, *result)
			switch result.Status {
			case StatusInserted, StatusPlanned:
				summary.Inserted++
			case StatusUpdated:
				summary.Updated++
			case StatusSkipped:
				summary.Skipped++
				p.logger.Info("skipped document", "path", path, "reason", result.Reason)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary.Duration = time.Since(startTime)
	p.logger.Info("batch ingestion complete",
		"inserted", summary.Inserted,
		"updated", summary.Updated,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"duration", summary.Duration)

	return summary, nil
}

// loadOne routes a file through the dry-run or real pipeline
func (p *Pipeline) loadOne(ctx context.Context, path string, dryRun bool) (*LoadResult, error) {
	if !dryRun {
		return p.LoadFile(ctx, path)
	}

	if isExcludedFile(path) {
		return &LoadResult{Path: path, Status: StatusSkipped, Reason: "excluded file"}, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return p.Plan(path, string(content))
}

// discoverTranscripts walks root for markdown files, sorted for
// deterministic processing order
func discoverTranscripts(root string, matches []string, limit int) ([]string, error) {
	var files []string

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(path), ".md") {
			return nil
		}
		if isExcludedFile(path) {
			return nil
		}
		if !matchesAny(path, matches) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover transcripts in %s: %w", root, err)
	}

	sort.Strings(files)
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}

// matchesAny reports whether path contains any filter substring.
// No filters means everything matches.
func matchesAny(path string, matches []string) bool {
	if len(matches) == 0 {
		return true
	}
	for _, m := range matches {
		if strings.Contains(path, m) {
			return true
		}
	}
	return false
}
