package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kalambet/nextplay/internal/storage"
)

// DefaultTTL is how long a loaded catalog snapshot stays valid.
const DefaultTTL = 10 * time.Minute

// ErrUnavailable is returned when the store read fails and no usable
// snapshot exists to fall back on.
var ErrUnavailable = errors.New("catalog: store unavailable")

// Lister is the storage operation the cache needs. Implemented by storage.Store.
type Lister interface {
	ListGames() ([]storage.Game, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Cache memoizes the most recent successful catalog load. The snapshot is
// replaced wholesale on refresh, never merged. Safe for concurrent readers
// and a concurrent reload; simultaneous expiries collapse into a single
// store read.
type Cache struct {
	store Lister
	clock Clock
	ttl   time.Duration
	group singleflight.Group

	mu       sync.RWMutex
	snapshot []storage.Game
	loadedAt time.Time
}

// New creates a Cache over the given store. A non-positive ttl falls back to
// DefaultTTL.
func New(store Lister, ttl time.Duration) *Cache {
	return NewWithClock(store, realClock{}, ttl)
}

// NewWithClock creates a Cache with a custom clock (for testing).
func NewWithClock(store Lister, clock Clock, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: store, clock: clock, ttl: ttl}
}

// Games returns the candidate catalog. A cached snapshot younger than the TTL
// is served as-is unless forceReload is set. forceReload always re-fetches;
// on success the snapshot and timestamp are replaced atomically, on failure
// the stale snapshot is preserved and an error is returned. An expired
// snapshot whose refresh fails is still served (stale beats empty) as long as
// the reload was not forced.
func (c *Cache) Games(forceReload bool) ([]storage.Game, error) {
	if !forceReload {
		c.mu.RLock()
		if c.snapshot != nil && c.clock.Now().Before(c.loadedAt.Add(c.ttl)) {
			games := copyGames(c.snapshot)
			c.mu.RUnlock()
			return games, nil
		}
		c.mu.RUnlock()
	}

	games, err := c.fetch()
	if err == nil {
		return games, nil
	}

	if forceReload {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Expired-but-present snapshot: serve stale rather than fail the request.
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snapshot != nil {
		slog.Warn("catalog refresh failed, serving stale snapshot",
			"error", err,
			"loaded_at", c.loadedAt,
		)
		return copyGames(c.snapshot), nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// fetch reads the catalog from the store, collapsing concurrent callers into
// one store read, and installs the result as the new snapshot.
func (c *Cache) fetch() ([]storage.Game, error) {
	v, err, _ := c.group.Do("catalog", func() (any, error) {
		games, err := c.store.ListGames()
		if err != nil {
			return nil, err
		}
		if games == nil {
			games = []storage.Game{}
		}

		c.mu.Lock()
		c.snapshot = games
		c.loadedAt = c.clock.Now()
		c.mu.Unlock()

		return games, nil
	})
	if err != nil {
		return nil, err
	}
	return copyGames(v.([]storage.Game)), nil
}

// Invalidate drops the snapshot; the next read hits the store.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.snapshot = nil
	c.loadedAt = time.Time{}
	c.mu.Unlock()
}

// Preload warms the cache without blocking startup. Errors are logged and
// ignored; the first request will retry lazily.
func (c *Cache) Preload() {
	go func() {
		if _, err := c.Games(false); err != nil {
			slog.Warn("catalog preload failed", "error", err)
		}
	}()
}

// copyGames returns a fresh slice so callers can reorder or trim their pool
// without touching the shared snapshot. Game values are treated as read-only.
func copyGames(games []storage.Game) []storage.Game {
	out := make([]storage.Game, len(games))
	copy(out, games)
	return out
}
