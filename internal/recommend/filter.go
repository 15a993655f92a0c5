package recommend

import (
	"strings"

	"github.com/kalambet/nextplay/internal/storage"
)

// favoriteSet lowers all favorite strings into a lookup set.
func favoriteSet(favorites []string) map[string]struct{} {
	set := make(map[string]struct{}, len(favorites))
	for _, f := range favorites {
		set[strings.ToLower(f)] = struct{}{}
	}
	return set
}

// filterByGenre narrows candidates to games sharing at least one genre with
// the games the user named as favorites. Favorites are matched against
// candidate names exactly (case-insensitive, no substring matching); favorites
// that match nothing simply contribute no genre signal. The result is never
// empty for a non-empty input: when no genre signal exists, or the genre
// subset comes up empty, the full input is returned unfiltered.
func filterByGenre(candidates []storage.Game, favorites []string) []storage.Game {
	favs := favoriteSet(favorites)

	liked := make(map[string]struct{})
	for _, g := range candidates {
		if _, ok := favs[strings.ToLower(g.Name)]; !ok {
			continue
		}
		for _, genre := range g.Genres {
			liked[genre] = struct{}{}
		}
	}

	if len(liked) == 0 {
		return candidates
	}

	var filtered []storage.Game
	for _, g := range candidates {
		for _, genre := range g.Genres {
			if _, ok := liked[genre]; ok {
				filtered = append(filtered, g)
				break
			}
		}
	}

	if len(filtered) == 0 {
		return candidates
	}
	return filtered
}

// selectPool applies the favorite-exclusion and minimum-size fallback policy
// on top of the genre filter's output. The chain widens monotonically:
// exclusion-filtered, then the genre-filtered pool with favorites retained,
// then the entire candidate set; the narrowest stage meeting minSize wins.
// Recommending a known-liked game beats returning too few options.
func selectPool(genreFiltered, candidates []storage.Game, favorites []string, minSize int) []storage.Game {
	favs := favoriteSet(favorites)

	var pool []storage.Game
	for _, g := range genreFiltered {
		if _, ok := favs[strings.ToLower(g.Name)]; ok {
			continue
		}
		pool = append(pool, g)
	}

	if len(pool) >= minSize {
		return pool
	}
	if len(genreFiltered) >= minSize {
		return genreFiltered
	}
	return candidates
}
