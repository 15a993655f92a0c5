package recommend

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kalambet/nextplay/internal/llm"
	"github.com/kalambet/nextplay/internal/storage"
)

// poolEntry is the minimal LLM-facing view of a candidate. The 0-based
// positional index over the exact pool ordering is the reference key exposed
// to the model; store identifiers may be sparse or absent, so they are
// dropped along with slugs.
type poolEntry struct {
	Index  int      `json:"index"`
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
	Rating float64  `json:"rating"`
}

// buildPrompt serializes the pool and favorites into chat messages asking the
// model to pick exactly count games, citing pool indices and giving a short
// reason per pick plus one overall summary.
func buildPrompt(pool []storage.Game, favorites []string, count int) ([]llm.Message, error) {
	entries := make([]poolEntry, len(pool))
	for i, g := range pool {
		genres := g.Genres
		if genres == nil {
			genres = []string{}
		}
		entries[i] = poolEntry{Index: i, Name: g.Name, Genres: genres, Rating: g.Rating}
	}

	serialized, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serializing candidate pool: %w", err)
	}

	system := "You are a video game recommendation engine. " +
		"You pick games from a fixed candidate list and explain each pick. " +
		"You only ever reference games by their index in the provided list."

	user := fmt.Sprintf(`The user's favorite games are: %s.

Here is the candidate list, as a JSON array. Each entry has an "index", a "name", its "genres", and an aggregate "rating":

%s

Select exactly %d games from this list that the user is most likely to enjoy, judging by genre affinity with their favorites and by rating. Rules:
- Reference each pick only by its "index" from the list above. Never invent an index.
- Give a short causal "reason" for each pick, tied to the user's favorites.
- Give one overall "summary" sentence describing the selection.`,
		strings.Join(favorites, ", "), serialized, count)

	return []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, nil
}

// resultSchema declares the strict output contract: an object with a summary
// string and exactly count recommendations, each citing an index inside
// [0, poolSize) plus a reason. Unknown fields are disallowed. This is passed
// to the LLM service as a structured-output constraint, not prose guidance.
func resultSchema(poolSize, count int) *llm.Schema {
	maxIndex := poolSize - 1
	if maxIndex < 0 {
		maxIndex = 0
	}
	return llm.Object(map[string]*llm.Schema{
		"summary": llm.String("One-sentence overall description of the selection"),
		"recommendations": llm.Array(
			llm.Object(map[string]*llm.Schema{
				"index":  llm.IntRange("Index of the recommended game in the candidate list", 0, maxIndex),
				"reason": llm.String("Short causal justification for this pick"),
			}),
			count,
		),
	})
}
