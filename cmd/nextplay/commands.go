package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kalambet/nextplay/internal/config"
	"github.com/kalambet/nextplay/internal/storage"
)

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show nextplay system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			printError("config error: %v", err)
			return nil
		}

		serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
		client := &http.Client{Timeout: 2 * time.Second}

		resp, err := client.Get(serverURL + "/status")
		if err != nil {
			printStatus("Server", "stopped")
		} else {
			resp.Body.Close()
			if resp.StatusCode == 200 {
				printStatus("Server", "running on port %d", cfg.Server.Port)
			} else {
				printStatus("Server", "error (HTTP %d)", resp.StatusCode)
			}
		}

		printStatus("Model", "%s", cfg.LLM.Model)
		if cfg.LLM.APIKey == "" {
			printStatus("API key", "not configured")
		} else {
			printStatus("API key", "configured")
		}
		printStatus("Cache TTL", "%s", cfg.Recommend.CacheTTL)
		printStatus("Data dir", "%s", cfg.Storage.DataDir)

		store, err := storage.Open(cfg.Storage.DataDir)
		if err == nil {
			defer store.Close()
			if n, err := store.CountGames(); err == nil {
				printStatus("Games", "%d", n)
			}
		}
		return nil
	},
}

// --- seed ---

var seedCmd = &cobra.Command{
	Use:   "seed <file>",
	Short: "Load a game catalog JSON file into the store",
	Long: `Load a game catalog JSON file into the store.

The file must contain a JSON array of games:
  [{"name": "Portal 2", "genres": ["Puzzle"], "rating": 9.5, "slug": "portal-2"}, ...]

Entries without an "id" get one assigned. By default the catalog is replaced
wholesale; pass --append to upsert into the existing catalog instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appendMode, _ := cmd.Flags().GetBool("append")

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading catalog file: %w", err)
		}

		var games []storage.Game
		if err := json.Unmarshal(data, &games); err != nil {
			return fmt.Errorf("parsing catalog file: %w", err)
		}
		for i := range games {
			if games[i].Name == "" {
				return fmt.Errorf("game at position %d has no name", i)
			}
			if games[i].ID == "" {
				games[i].ID = uuid.New().String()
			}
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		if appendMode {
			for _, g := range games {
				if err := store.UpsertGame(g); err != nil {
					return fmt.Errorf("upserting %q: %w", g.Name, err)
				}
			}
		} else {
			if err := store.ReplaceGames(games); err != nil {
				return fmt.Errorf("replacing catalog: %w", err)
			}
		}

		printSuccess("Seeded %d games", len(games))

		// Tell a running server to pick up the new catalog. Best effort: the
		// server reloads lazily on TTL expiry anyway.
		if client, err := newAPIClient(); err == nil {
			if resp, err := client.post(cmd.Context(), "/admin/reload-candidates", nil); err == nil {
				resp.Body.Close()
			}
		}
		return nil
	},
}

func init() {
	seedCmd.Flags().Bool("append", false, "upsert into the existing catalog instead of replacing it")
}

// --- recommend ---

var recommendCmd = &cobra.Command{
	Use:   "recommend <favorite>...",
	Short: "Get recommendations from the running server",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/recommend", map[string]any{"favorites": args})
		if err != nil {
			return err
		}

		var result struct {
			Summary         string `json:"summary"`
			Recommendations []struct {
				Name   *string  `json:"name"`
				Genres []string `json:"genres"`
				Rating *float64 `json:"rating"`
				Reason string   `json:"reason"`
			} `json:"recommendations"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if result.Summary != "" {
			fmt.Println(colorize(colorBold, result.Summary))
			fmt.Println()
		}
		for i, rec := range result.Recommendations {
			name := "(unresolved)"
			if rec.Name != nil {
				name = *rec.Name
			}
			line := fmt.Sprintf("%2d. %s", i+1, colorize(colorCyan, name))
			if rec.Rating != nil {
				line += fmt.Sprintf(" [%.1f]", *rec.Rating)
			}
			fmt.Println(line)
			if rec.Reason != "" {
				fmt.Printf("    %s\n", rec.Reason)
			}
		}
		return nil
	},
}
