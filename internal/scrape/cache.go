package scrape

import (
	"context"
	"errors"
	"fmt"

	"policy-manual-ai/internal/contextutil"
	"policy-manual-ai/internal/manual"
)

// PageCache stores raw page content keyed by URL.
type PageCache interface {
	Get(url string) (string, bool, error)
	Put(url, html string) error
}

// CachedFetcher checks the page cache before going to the network and
// stores every page it fetches. Concurrent misses for one URL may both
// fetch; the last write wins.
type CachedFetcher struct {
	fetcher Fetcher
	cache   PageCache
}

// NewCachedFetcher wraps fetcher with cache.
func NewCachedFetcher(fetcher Fetcher, cache PageCache) *CachedFetcher {
	return &CachedFetcher{fetcher: fetcher, cache: cache}
}

// Fetch returns the cached page for url or fetches and caches it.
// Network failures are reported with kind manual.KindTransient. A cache that
// cannot be read or written only costs a refetch, so those errors are logged.
func (c *CachedFetcher) Fetch(ctx context.Context, url string) (string, error) {
	logger := contextutil.LoggerFromContext(ctx)

	html, ok, err := c.cache.Get(url)
	if err != nil {
		logger.WarnContext(ctx, "page cache read failed", "url", url, "error", err)
	}
	if ok {
		logger.DebugContext(ctx, "using cached page", "url", url)
		return html, nil
	}

	logger.InfoContext(ctx, "fetching page", "url", url)
	html, err = c.fetcher.Fetch(ctx, url)
	if err != nil {
		return "", manual.Transient("fetch "+url, err)
	}

	if err := c.cache.Put(url, html); err != nil {
		logger.WarnContext(ctx, "page cache write failed", "url", url, "error", err)
	}

	return html, nil
}

// ErrNotCached is returned by OfflineFetcher for every request.
var ErrNotCached = errors.New("page not in cache")

// OfflineFetcher never touches the network. Wrapped in a CachedFetcher it
// serves only pages already in the cache.
type OfflineFetcher struct{}

// Fetch always fails with ErrNotCached.
func (OfflineFetcher) Fetch(_ context.Context, url string) (string, error) {
	return "", fmt.Errorf("%s: %w", url, ErrNotCached)
}
