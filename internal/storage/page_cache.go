package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PageCache stores fetched page HTML on disk keyed by URL.
type PageCache struct {
	dir string
}

// NewPageCache creates a PageCache rooted at dir, creating it if needed.
func NewPageCache(dir string) (*PageCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create page cache directory: %w", err)
	}
	return &PageCache{dir: dir}, nil
}

// CacheFileName maps a URL to its cache file name: the scheme is dropped,
// slashes become underscores and ".html" is appended.
func CacheFileName(url string) string {
	name := strings.TrimPrefix(url, "https://")
	name = strings.TrimPrefix(name, "http://")
	return strings.ReplaceAll(name, "/", "_") + ".html"
}

// Get returns the cached HTML for url. The boolean is false on a cache miss.
func (c *PageCache) Get(url string) (string, bool, error) {
	b, err := os.ReadFile(c.path(url))
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read cached page: %w", err)
	}
	return string(b), true, nil
}

// Put writes html to the cache for url. The write goes through a temporary
// file so readers never observe a partial page.
func (c *PageCache) Put(url, html string) error {
	tmp, err := os.CreateTemp(c.dir, ".page-*")
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	if _, err := tmp.WriteString(html); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path(url)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to store cache file: %w", err)
	}
	return nil
}

func (c *PageCache) path(url string) string {
	return filepath.Join(c.dir, CacheFileName(url))
}
