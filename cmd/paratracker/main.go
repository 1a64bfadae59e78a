package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/parafield/paratracker/internal/embedder"
	"github.com/parafield/paratracker/internal/ingest"
	"github.com/parafield/paratracker/internal/search"
	"github.com/parafield/paratracker/internal/storage"
	"github.com/parafield/paratracker/internal/taxonomy"
	"github.com/parafield/paratracker/pkg/types"
)

func main() {
	app := &cli.App{
		Name:  "paratracker",
		Usage: "Search and manage an archive of paranormal stories from podcast transcripts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Usage:   "Path to the SQLite database",
				EnvVars: []string{"PARATRACKER_DB_PATH"},
				Value:   "paratracker.db",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			searchCommand(),
			ingestCommand(),
			statsCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads .env and configures the default logger
func setup(c *cli.Context) error {
	_ = godotenv.Load()

	var level slog.Level
	switch strings.ToLower(c.String("log-level")) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level: %s", c.String("log-level"))
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

func openStorage(c *cli.Context) (*storage.SQLiteStorage, error) {
	return storage.NewSQLiteStorage(c.String("db"))
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search stories by meaning and keywords",
		ArgsUsage: "QUERY",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Maximum results", Value: search.DefaultLimit},
			&cli.Float64Flag{Name: "alpha", Usage: "Vector signal weight in hybrid mode (0-1)", Value: search.DefaultAlpha},
			&cli.BoolFlag{Name: "text-only", Usage: "Keyword search only"},
			&cli.BoolFlag{Name: "vector-only", Usage: "Vector search only (requires VOYAGE_API_KEY)"},
			&cli.StringSliceFlag{Name: "type", Usage: "Filter to story type (repeatable)"},
			&cli.StringFlag{Name: "framework", Usage: "Filter by framework"},
			&cli.StringFlag{Name: "category", Usage: "Filter by framework category"},
			&cli.BoolFlag{Name: "json", Usage: "Emit results as JSON"},
		},
		Action: runSearch,
	}
}

func runSearch(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return cli.Exit("usage: paratracker search QUERY", 1)
	}
	if c.Bool("text-only") && c.Bool("vector-only") {
		return cli.Exit("--text-only and --vector-only are mutually exclusive", 1)
	}

	store, err := openStorage(c)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var emb embedder.Embedder
	if embedder.Available() {
		emb, err = embedder.NewFromEnv()
		if err != nil {
			return err
		}
		defer func() { _ = emb.Close() }()
	} else if c.Bool("vector-only") {
		return cli.Exit("vector search requires VOYAGE_API_KEY", 1)
	} else if !c.Bool("text-only") {
		fmt.Fprintln(os.Stderr, "warning: VOYAGE_API_KEY not set, falling back to text search")
	}

	engine := search.NewEngine(store, emb, slog.Default())

	req := search.NewRequest(query)
	req.Limit = c.Int("limit")
	req.Alpha = c.Float64("alpha")
	switch {
	case c.Bool("text-only"):
		req.Mode = search.ModeText
	case c.Bool("vector-only"):
		req.Mode = search.ModeVector
	}
	if storyTypes := taxonomy.ResolveTypeFilter(c.String("framework"), c.String("category"), c.StringSlice("type")); storyTypes != nil {
		req.Filters = &storage.SearchFilters{StoryTypes: storyTypes}
	}

	resp, err := engine.Search(c.Context, req)
	if err != nil {
		if types.IsValidation(err) {
			return cli.Exit(err.Error(), 1)
		}
		return err
	}

	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp.Results)
	}

	if resp.Degraded {
		fmt.Fprintf(os.Stderr, "warning: degraded to text-only search (%s)\n", resp.DegradedReason)
	}
	if len(resp.Results) == 0 {
		fmt.Println("No stories found.")
		return nil
	}

	for i, r := range resp.Results {
		fmt.Printf("%d. %s", i+1, r.Title)
		if r.StoryType != "" {
			fmt.Printf(" [%s]", r.StoryType)
		}
		fmt.Printf(" (score %.3f)\n", r.HybridScore)
		if r.PodcastName != "" {
			fmt.Printf("   %s", r.PodcastName)
			if !r.AirDate.IsZero() {
				fmt.Printf(", %s", r.AirDate.Format("2006-01-02"))
			}
			fmt.Println()
		}
		if r.Location != "" {
			fmt.Printf("   Location: %s\n", r.Location)
		}
		fmt.Printf("   %s\n\n", r.Snippet)
	}
	fmt.Printf("%d results in %s (%s mode)\n", resp.TotalResults, resp.Duration.Round(time.Millisecond), resp.Mode)
	return nil
}

func ingestCommand() *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Load story transcripts into the archive",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "root", Usage: "Directory of transcript markdown files"},
			&cli.StringFlag{Name: "file", Usage: "Single transcript file"},
			&cli.StringSliceFlag{Name: "match", Usage: "Only load files whose path contains this substring (repeatable)"},
			&cli.IntFlag{Name: "limit", Usage: "Stop after N documents"},
			&cli.IntFlag{Name: "workers", Usage: "Concurrent documents", Value: 1},
			&cli.DurationFlag{Name: "delay", Usage: "Delay between documents", Value: time.Second},
			&cli.BoolFlag{Name: "dry-run", Usage: "Report what would be loaded without writing"},
		},
		Action: runIngest,
	}
}

func runIngest(c *cli.Context) error {
	root := c.String("root")
	file := c.String("file")
	if (root == "") == (file == "") {
		return cli.Exit("exactly one of --root or --file is required", 1)
	}

	store, err := openStorage(c)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var emb embedder.Embedder
	if embedder.Available() {
		emb, err = embedder.NewFromEnv()
		if err != nil {
			return err
		}
		defer func() { _ = emb.Close() }()
	} else if !c.Bool("dry-run") {
		fmt.Fprintln(os.Stderr, "warning: VOYAGE_API_KEY not set, stories will be stored without embeddings")
	}

	pipeline := ingest.NewPipeline(store, emb, slog.Default())

	if file != "" {
		var result *ingest.LoadResult
		if c.Bool("dry-run") {
			content, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			result, err = pipeline.Plan(file, string(content))
			if err != nil {
				return err
			}
		} else {
			result, err = pipeline.LoadFile(c.Context, file)
			if err != nil {
				return err
			}
		}
		printResult(result)
		return nil
	}

	summary, err := pipeline.LoadDirectory(c.Context, root, &ingest.BatchConfig{
		Workers: c.Int("workers"),
		Delay:   c.Duration("delay"),
		Matches: c.StringSlice("match"),
		Limit:   c.Int("limit"),
		DryRun:  c.Bool("dry-run"),
	})
	if err != nil {
		return err
	}

	fmt.Printf("Inserted %d, updated %d, skipped %d, failed %d in %s\n",
		summary.Inserted, summary.Updated, summary.Skipped, summary.Failed,
		summary.Duration.Round(time.Millisecond))
	for _, msg := range summary.Errors {
		fmt.Fprintln(os.Stderr, "  error:", msg)
	}
	if summary.Failed > 0 {
		return cli.Exit("", 1)
	}
	return nil
}

func printResult(result *ingest.LoadResult) {
	switch result.Status {
	case ingest.StatusSkipped:
		fmt.Printf("skipped %s: %s\n", result.Path, result.Reason)
	case ingest.StatusPlanned:
		fmt.Printf("would load %s: %d tokens, %s", result.Path, result.Tokens, result.Method)
		if result.Chunks > 0 {
			fmt.Printf(" (%d chunks)", result.Chunks)
		}
		fmt.Println()
	default:
		fmt.Printf("%s %s (story %s)\n", result.Status, result.Path, result.StoryID)
	}
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:   "stats",
		Usage:  "Show archive totals and per-type counts",
		Action: runStats,
	}
}

func runStats(c *cli.Context) error {
	store, err := openStorage(c)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	stats, err := store.Stats(c.Context)
	if err != nil {
		return err
	}
	counts, err := store.StoryTypeCounts(c.Context)
	if err != nil {
		return err
	}

	fmt.Printf("Stories:        %d\n", stats.TotalStories)
	fmt.Printf("With location:  %d\n", stats.WithLocation)
	fmt.Printf("With embedding: %d\n", stats.WithEmbedding)
	fmt.Printf("With projection: %d\n", stats.WithUmap)

	if len(counts) > 0 {
		fmt.Println("\nBy type:")
		for _, st := range taxonomy.StoryTypes {
			if counts[st] > 0 {
				fmt.Printf("  %-18s %d\n", st, counts[st])
			}
		}
		// Types outside the known vocabulary still count.
		for st, n := range counts {
			if !knownType(st) {
				fmt.Printf("  %-18s %d\n", st, n)
			}
		}
	}
	return nil
}

func knownType(storyType string) bool {
	for _, st := range taxonomy.StoryTypes {
		if st == storyType {
			return true
		}
	}
	return false
}
