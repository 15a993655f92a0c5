package recommend

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kalambet/nextplay/internal/storage"
)

// ErrMalformedOutput is returned when the model's response text does not
// parse as the declared schema or misses required fields.
var ErrMalformedOutput = errors.New("recommend: malformed model output")

// RecommendedGame is one reconciled recommendation: the full game record plus
// the model's justification. Identity fields are null when the model cited an
// index that does not resolve to a pool entry.
type RecommendedGame struct {
	ID     *string  `json:"id"`
	Name   *string  `json:"name"`
	Genres []string `json:"genres"`
	Rating *float64 `json:"rating"`
	Slug   *string  `json:"slug,omitempty"`
	Reason string   `json:"reason"`
}

// Result is the reconciled recommendation response.
type Result struct {
	Summary         string            `json:"summary,omitempty"`
	Recommendations []RecommendedGame `json:"recommendations"`
}

// modelOutput mirrors the schema declared in resultSchema.
type modelOutput struct {
	Summary         string `json:"summary"`
	Recommendations []struct {
		Index  int    `json:"index"`
		Reason string `json:"reason"`
	} `json:"recommendations"`
}

// reconcile parses the model's response text and maps each referenced index
// back to the full candidate record. The schema constrains indices, but the
// model is not fully trusted: an out-of-range index degrades to a
// null-identity record with the reason preserved rather than dropping the
// item or failing the batch. Output order follows the model's order.
func reconcile(raw string, pool []storage.Game) (Result, error) {
	var out modelOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if out.Recommendations == nil {
		return Result{}, fmt.Errorf("%w: missing recommendations field", ErrMalformedOutput)
	}

	recs := make([]RecommendedGame, 0, len(out.Recommendations))
	for _, item := range out.Recommendations {
		if item.Index < 0 || item.Index >= len(pool) {
			recs = append(recs, RecommendedGame{Reason: item.Reason})
			continue
		}

		g := pool[item.Index]
		rec := RecommendedGame{
			ID:     &g.ID,
			Name:   &g.Name,
			Genres: g.Genres,
			Rating: &g.Rating,
			Reason: item.Reason,
		}
		if g.Slug != "" {
			rec.Slug = &g.Slug
		}
		recs = append(recs, rec)
	}

	return Result{Summary: out.Summary, Recommendations: recs}, nil
}
