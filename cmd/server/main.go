package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/blackmichael/tumblr-archive/internal/config"
	"github.com/blackmichael/tumblr-archive/internal/domain"
	"github.com/blackmichael/tumblr-archive/internal/firehose"
	"github.com/blackmichael/tumblr-archive/internal/httpserver"
	"github.com/blackmichael/tumblr-archive/internal/sqlite"
	"github.com/blackmichael/tumblr-archive/internal/tumblr"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Set up repository (implements both PostRepository and CursorRepository)
	repo, err := sqlite.NewRepository(ctx, cfg.DatabasePath, logger)
	if err != nil {
		return fmt.Errorf("create repository: %w", err)
	}
	defer repo.Close()

	var source domain.PostSource
	if cfg.TumblrAPIKey != "" {
		source = tumblr.NewClient(cfg.TumblrAPIURL, cfg.TumblrAPIKey)
	}
	archive := domain.NewArchiveService(repo, repo, source, logger)

	// Mirror the post stream in the background
	if cfg.StreamURL != "" {
		subscriber := firehose.NewSubscriber(cfg.StreamURL, archive, logger)
		go func() {
			if err := subscriber.Start(ctx); err != nil && ctx.Err() == nil {
				logger.Error("stream subscriber exited with error", "error", err)
			}
		}()
	}

	// Start background blog syncs
	if len(cfg.SyncBlogs) > 0 {
		go archive.StartSyncJob(ctx, cfg.SyncInterval, cfg.SyncBlogs)
	}

	// Start the HTTP server
	server := httpserver.NewServer(cfg, archive, logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server exited with error", "error", err)
		}
	}()

	logger.Info("server started", "port", cfg.Port, "db", cfg.DatabasePath, "blogs", cfg.SyncBlogs)

	// Wait for shutdown signal
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()

	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	return nil
}
