package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/nextplay/internal/api"
	"github.com/kalambet/nextplay/internal/catalog"
	"github.com/kalambet/nextplay/internal/config"
	"github.com/kalambet/nextplay/internal/llm"
	"github.com/kalambet/nextplay/internal/recommend"
	"github.com/kalambet/nextplay/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the nextplay server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "nextplay version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// The admin surface always needs a token; generate an ephemeral one when
	// none is configured so the group is never left open.
	token := cfg.Server.Token
	if token == "" {
		token = uuid.New().String()
		slog.Warn("no admin token configured, generated an ephemeral one", "token", token)
	}

	if cfg.LLM.APIKey == "" {
		slog.Warn("no LLM API key configured, /recommend will report the model as unconfigured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open storage.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Build the recommendation pipeline.
	ttl, err := cfg.CacheTTL(catalog.DefaultTTL)
	if err != nil {
		slog.Warn("invalid cache TTL, using default", "error", err, "default", catalog.DefaultTTL)
	}
	cache := catalog.New(store, ttl)
	cache.Preload()

	client := llm.NewClientWithBaseURL(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL)
	recommender := recommend.New(cache, client, cfg.Recommend.Count)

	handler := api.NewHandler(api.Deps{
		Recommender: recommender,
		Catalog:     cache,
		Store:       store,
		Token:       token,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Build and start MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Recommender: recommender,
		Catalog:     cache,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "nextplay listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
