// Package validpages keeps the per-site set of existing content pages for the lifetime
// of one process.
//
// Entries are fetched lazily on first use, expire after the configured TTL (so long
// running watch mode eventually refreshes them) and are never persisted. A failed fetch
// leaves no entry behind, so the next file for the same site tries again.
package validpages

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/karloscodes/cartridge/cache"

	"github.com/bahaipedia/server-scripts/internal/urls"
)

// Lister returns the raw page titles of a site.
type Lister interface {
	AllPages(ctx context.Context, site string) ([]string, error)
}

// FetchError is returned when the page listing of a site could not be obtained.
type FetchError struct {
	Site string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching valid pages for %s: %v", e.Site, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Cache implements urls.PageSource on top of a Lister. It also remembers which sites
// already had their pages seeded as site URLs during this process.
type Cache struct {
	logger *slog.Logger
	lister Lister
	pages  *cache.Cache[string, map[string]struct{}]

	// fetchMu serializes lookups so a fetch runs under the context of the call that
	// triggered it.
	fetchMu  sync.Mutex
	fetchCtx context.Context

	mu     sync.Mutex
	seeded map[string]struct{}
}

var _ urls.PageSource = (*Cache)(nil)

// New creates an empty cache.
func New(logger *slog.Logger, lister Lister, ttl time.Duration) *Cache {
	c := &Cache{
		logger: logger,
		lister: lister,
		seeded: make(map[string]struct{}),
	}
	c.pages = cache.NewCache[string, map[string]struct{}](logger, ttl, c.fetch)
	return c
}

func (c *Cache) fetch(site string) (map[string]struct{}, error) {
	titles, err := c.lister.AllPages(c.fetchCtx, site)
	if err != nil {
		return nil, err
	}
	pages := make(map[string]struct{}, len(titles))
	for _, title := range titles {
		pages[urls.CanonicalTitle(title)] = struct{}{}
	}
	c.logger.Info("Retrieved valid pages", slog.String("site", site), slog.Int("count", len(pages)))
	return pages, nil
}

// ValidPages returns the canonical page names of site, fetching them on first use. A
// fetch started here is bounded by ctx.
func (c *Cache) ValidPages(ctx context.Context, site string) (map[string]struct{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.fetchMu.Lock()
	c.fetchCtx = ctx
	pages, err := c.pages.Get(site)
	c.fetchCtx = nil
	c.fetchMu.Unlock()

	if err != nil {
		return nil, &FetchError{Site: site, Err: err}
	}
	return pages, nil
}

// Seeded reports whether site's pages were already stored during this process.
func (c *Cache) Seeded(site string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.seeded[site]
	return ok
}

// MarkSeeded records that site's pages are stored. Call it only after the write
// that stored them committed.
func (c *Cache) MarkSeeded(site string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seeded[site] = struct{}{}
}

// Reset drops every cached page set and seeding marker.
func (c *Cache) Reset() {
	c.pages.Clear()
	c.mu.Lock()
	c.seeded = make(map[string]struct{})
	c.mu.Unlock()
}
