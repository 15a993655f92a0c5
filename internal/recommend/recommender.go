package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/nextplay/internal/llm"
	"github.com/kalambet/nextplay/internal/storage"
)

// DefaultCount is how many recommendations a request produces, and also the
// minimum viable pool size the selector falls back against.
const DefaultCount = 8

// Catalog serves the candidate universe. Implemented by catalog.Cache.
type Catalog interface {
	Games(forceReload bool) ([]storage.Game, error)
}

// Chatter is the LLM operation the recommender needs. Implemented by llm.Client.
type Chatter interface {
	Chat(ctx context.Context, messages []llm.Message, schema *llm.Schema) (string, error)
	Configured() bool
}

// Recommender runs the full recommendation pipeline: cache-guarded candidate
// loading, genre-based pool filtering with fallback, prompt construction with
// a strict output schema, and reconciliation of the model's reply.
type Recommender struct {
	catalog Catalog
	client  Chatter
	count   int
}

// New creates a Recommender producing count recommendations per request
// (DefaultCount if count <= 0).
func New(catalog Catalog, client Chatter, count int) *Recommender {
	if count <= 0 {
		count = DefaultCount
	}
	return &Recommender{catalog: catalog, client: client, count: count}
}

// Recommend produces recommendations for the given favorites list. The
// configuration check runs before any store read; the store read runs before
// any prompt work. Favorites validation is the caller's concern.
func (r *Recommender) Recommend(ctx context.Context, favorites []string) (Result, error) {
	if !r.client.Configured() {
		return Result{}, llm.ErrUnconfigured
	}

	candidates, err := r.catalog.Games(false)
	if err != nil {
		return Result{}, fmt.Errorf("loading candidates: %w", err)
	}

	genreFiltered := filterByGenre(candidates, favorites)
	pool := selectPool(genreFiltered, candidates, favorites, r.count)

	messages, err := buildPrompt(pool, favorites, r.count)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	raw, err := r.client.Chat(ctx, messages, resultSchema(len(pool), r.count))
	if err != nil {
		return Result{}, fmt.Errorf("model request: %w", err)
	}

	result, err := reconcile(raw, pool)
	if err != nil {
		return Result{}, err
	}

	slog.Debug("recommendation complete",
		"favorites", len(favorites),
		"candidates", len(candidates),
		"pool", len(pool),
		"returned", len(result.Recommendations),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}
