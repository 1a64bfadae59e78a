package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/parafield/paratracker/internal/api"
	"github.com/parafield/paratracker/internal/embedder"
	"github.com/parafield/paratracker/internal/search"
	"github.com/parafield/paratracker/internal/storage"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	dbPath := os.Getenv("PARATRACKER_DB_PATH")
	if dbPath == "" {
		dbPath = "paratracker.db"
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		logger.Error("failed to open database", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	var emb embedder.Embedder
	if embedder.Available() {
		emb, err = embedder.NewFromEnv()
		if err != nil {
			logger.Error("failed to initialize embedding provider", "error", err)
			os.Exit(1)
		}
		defer func() { _ = emb.Close() }()
	} else {
		logger.Warn("VOYAGE_API_KEY not set, search degrades to text-only")
	}

	engine := search.NewEngine(store, emb, logger)
	server := api.NewServer(store, engine, emb != nil, logger)

	var corsOrigins []string
	if raw := os.Getenv("CORS_ORIGINS"); raw != "" {
		for _, origin := range strings.Split(raw, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				corsOrigins = append(corsOrigins, origin)
			}
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      server.Router(corsOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", srv.Addr, "embedding_available", emb != nil)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
}
