package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kalambet/nextplay/internal/catalog"
	"github.com/kalambet/nextplay/internal/llm"
	"github.com/kalambet/nextplay/internal/recommend"
	"github.com/kalambet/nextplay/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Recommender runs the recommendation pipeline. Implemented by recommend.Recommender.
type Recommender interface {
	Recommend(ctx context.Context, favorites []string) (recommend.Result, error)
}

// Catalog is the cache surface the handler needs. Implemented by catalog.Cache.
type Catalog interface {
	Games(forceReload bool) ([]storage.Game, error)
	Invalidate()
}

// Deps holds the handler's collaborators.
type Deps struct {
	Recommender Recommender
	Catalog     Catalog
	Store       *storage.Store
	Token       string // bearer token guarding the admin routes
}

// NewHandler returns the service's HTTP handler: the public status and
// recommend endpoints plus a bearer-guarded admin group for catalog
// management and cache control.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/status", handleStatus)
	r.Post("/recommend", handleRecommend(deps))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Post("/admin/reload-candidates", handleReloadCandidates(deps))
		r.Get("/admin/games", handleListGames(deps))
		r.Put("/admin/games", handleReplaceGames(deps))
		r.Post("/admin/games", handleUpsertGame(deps))
	})

	return r
}

func handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

type recommendRequest struct {
	Favorites json.RawMessage `json:"favorites"`
}

func handleRecommend(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req recommendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "favorites must be a non-empty array")
			return
		}

		// Favorites must be a JSON array of strings with at least one entry.
		// Checked before any I/O.
		var favorites []string
		if req.Favorites == nil || json.Unmarshal(req.Favorites, &favorites) != nil || len(favorites) == 0 {
			httpError(w, http.StatusBadRequest, "favorites must be a non-empty array")
			return
		}

		result, err := deps.Recommender.Recommend(r.Context(), favorites)
		if err != nil {
			status, msg := mapRecommendError(err)
			slog.Error("recommendation failed", "error", err)
			httpError(w, status, "%s", msg)
			return
		}

		writeJSON(w, result)
	}
}

// mapRecommendError converts pipeline errors into caller-facing messages.
// Internal details stay in the server log.
func mapRecommendError(err error) (int, string) {
	switch {
	case errors.Is(err, llm.ErrUnconfigured):
		return http.StatusInternalServerError, "recommendation model is not configured"
	case errors.Is(err, catalog.ErrUnavailable):
		return http.StatusInternalServerError, "game catalog is unavailable"
	case errors.Is(err, recommend.ErrMalformedOutput):
		return http.StatusInternalServerError, "model returned an unusable response"
	default:
		return http.StatusInternalServerError, "recommendation failed"
	}
}

func handleReloadCandidates(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := deps.Catalog.Games(true); err != nil {
			slog.Error("forced catalog reload failed", "error", err)
			httpError(w, http.StatusInternalServerError, "failed to reload candidates")
			return
		}
		writeJSON(w, map[string]bool{"ok": true})
	}
}

func handleListGames(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		games, err := deps.Store.ListGames()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "failed to list games: %v", err)
			return
		}
		if games == nil {
			games = []storage.Game{}
		}
		writeJSON(w, games)
	}
}

func handleReplaceGames(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var games []storage.Game
		if err := json.NewDecoder(r.Body).Decode(&games); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}

		for i := range games {
			if games[i].Name == "" {
				httpError(w, http.StatusBadRequest, "game at position %d has no name", i)
				return
			}
			if games[i].ID == "" {
				games[i].ID = uuid.New().String()
			}
		}

		if err := deps.Store.ReplaceGames(games); err != nil {
			httpError(w, http.StatusInternalServerError, "failed to replace games: %v", err)
			return
		}
		deps.Catalog.Invalidate()

		writeJSON(w, map[string]any{"ok": true, "count": len(games)})
	}
}

func handleUpsertGame(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var g storage.Game
		if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
		if g.Name == "" {
			httpError(w, http.StatusBadRequest, "name is required")
			return
		}
		if g.ID == "" {
			g.ID = uuid.New().String()
		}

		if err := deps.Store.UpsertGame(g); err != nil {
			httpError(w, http.StatusInternalServerError, "failed to save game: %v", err)
			return
		}
		deps.Catalog.Invalidate()

		writeJSON(w, g)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": fmt.Sprintf(format, args...),
	})
}
