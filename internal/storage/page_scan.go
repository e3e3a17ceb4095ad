package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CachedPage is a page found in the page cache.
type CachedPage struct {
	URL     string // reconstructed source URL
	AbsPath string // cache file
}

// PageURL reverses CacheFileName for URLs whose path holds no underscores,
// which is true of every policy manual page. scheme is "https" or "http".
func PageURL(fileName, scheme string) string {
	name := strings.TrimSuffix(filepath.Base(fileName), ".html")
	return scheme + "://" + strings.ReplaceAll(name, "_", "/")
}

// Scan lists the cached pages whose URL starts with baseURL, in file name
// order. Temporary files left by an interrupted Put are skipped.
func (c *PageCache) Scan(ctx context.Context, baseURL string) ([]CachedPage, error) {
	scheme := "https"
	if strings.HasPrefix(baseURL, "http://") {
		scheme = "http"
	}
	prefix := strings.TrimSuffix(baseURL, "/") + "/"

	var pages []CachedPage
	err := filepath.WalkDir(c.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to access path %s: %w", path, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if path != c.dir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || filepath.Ext(d.Name()) != ".html" {
			return nil
		}

		url := PageURL(d.Name(), scheme)
		if !strings.HasPrefix(url, prefix) {
			return nil
		}
		pages = append(pages, CachedPage{URL: url, AbsPath: path})
		return nil
	})
	if err != nil {
		return pages, fmt.Errorf("failed to scan page cache %s: %w", c.dir, err)
	}

	return pages, nil
}
