package storage

import "errors"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Game is one entry in the candidate catalog. Name is the human-readable key
// matched case-insensitively against user-supplied favorites; ID is the stable
// machine key.
type Game struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
	Rating float64  `json:"rating"`
	Slug   string   `json:"slug,omitempty"`
}
