package scrape_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policy-manual-ai/internal/content"
	"policy-manual-ai/internal/manual"
	"policy-manual-ai/internal/scrape"
	"policy-manual-ai/internal/storage"
)

const volumePage = `<html><body>
<nav class="nav-sub-tree">
  <a href="/policy-manual/volume-1-part-a">Part A - Policy Manual Overview</a>
  <a href="/policy-manual/volume-1-part-a-chapter-1">Chapter 1 - Purpose</a>
  <a href="/policy-manual/volume-1-part-b">Part B - Submission of Benefit Requests</a>
  <a href="/policy-manual/volume-1-part-a">Part A - duplicate</a>
  <a href="/policy-manual/volume-2-part-a">Other volume</a>
</nav>
</body></html>`

const partAPage = `<html><body>
<nav class="nav-sub-tree">
  <a href="/policy-manual/volume-1-part-a-chapter-1">Chapter 1 - Purpose and Background</a>
  <a href="/policy-manual/volume-1-part-a-chapter-2">Chapter 2 - Broken</a>
  <a href="/policy-manual/volume-1-part-a-chapter-3">Chapter 3 - Empty</a>
</nav>
</body></html>`

const chapterOnePage = `<html><body>
<nav class="breadcrumb">Volume 1 - General Policies &gt; Part A - Overview &gt; Chapter 1 - Purpose</nav>
<h1>Chapter 1 - Purpose and Background</h1>
<section id="book-content"><div class="field--name-body">
  <h2>A. Purpose</h2><p>First.</p>
  <h3>1. Scope</h3><p>Second.</p>
  <h2>B. Background</h2><p>Third.</p>
</div></section>
</body></html>`

type memorySink struct {
	mu       sync.Mutex
	runID    string
	passages []manual.Passage
	err      error
}

func (s *memorySink) RunID() string { return s.runID }

func (s *memorySink) Append(p manual.Passage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.passages = append(s.passages, p)
	return nil
}

func newSite(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	pages := map[string]string{
		"/policy-manual/volume-1":                  volumePage,
		"/policy-manual/volume-1-part-a":           partAPage,
		"/policy-manual/volume-1-part-a-chapter-1": chapterOnePage,
		"/policy-manual/volume-1-part-a-chapter-3": `<html><body><h1>Empty</h1></body></html>`,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/policy-manual/volume-1-part-a-chapter-2" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		page, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(page))
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func newCachedFetcher(t *testing.T) *scrape.CachedFetcher {
	t.Helper()

	cache, err := storage.NewPageCache(filepath.Join(t.TempDir(), "html"))
	require.NoError(t, err)
	return scrape.NewCachedFetcher(scrape.NewHTTPFetcher(scrape.WithTimeout(5*time.Second)), cache)
}

func TestScraper_Run(t *testing.T) {
	t.Parallel()

	server, _ := newSite(t)
	sink := &memorySink{runID: "20250114_093005"}
	s := scrape.NewScraper(newCachedFetcher(t), content.NewSegmenter(content.ModeSubsections), sink, server.URL, scrape.Delays{}).
		WithVolumes([]scrape.Volume{{Number: 1, Title: "General Policies and Procedures"}})

	summary, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, scrape.Summary{
		RunID:          "20250114_093005",
		Volumes:        1,
		Parts:          2,
		Chapters:       3,
		Passages:       3,
		FailedChapters: 1,
		EmptyChapters:  1,
	}, summary)

	require.Len(t, sink.passages, 3)
	assert.Equal(t, "A. Purpose", sink.passages[0].SectionHeader)
	assert.Equal(t, "1. Scope", sink.passages[1].Subsection())
	assert.Equal(t, "B. Background", sink.passages[2].SectionHeader)
	for _, p := range sink.passages {
		assert.Equal(t, "20250114_093005", p.IngestTimestamp)
		assert.Equal(t, "1", p.Metadata.VolumeNumber)
		assert.Equal(t, server.URL+"/policy-manual/volume-1-part-a-chapter-1", p.SourceURL)
	}
}

func TestScraper_SinkFailureIsFatal(t *testing.T) {
	t.Parallel()

	server, _ := newSite(t)
	sink := &memorySink{runID: "r", err: errors.New("disk full")}
	s := scrape.NewScraper(newCachedFetcher(t), content.NewSegmenter(content.ModeSubsections), sink, server.URL, scrape.Delays{}).
		WithVolumes([]scrape.Volume{{Number: 1}})

	_, err := s.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, manual.KindFatal, manual.KindOf(err))
}

func TestScraper_Canceled(t *testing.T) {
	t.Parallel()

	server, _ := newSite(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := scrape.NewScraper(newCachedFetcher(t), content.NewSegmenter(content.ModeSubsections), &memorySink{runID: "r"}, server.URL, scrape.Delays{}).
		WithVolumes([]scrape.Volume{{Number: 1}})

	_, err := s.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, manual.KindFatal, manual.KindOf(err))
}

func TestScraper_ProcessChapter(t *testing.T) {
	t.Parallel()

	server, _ := newSite(t)
	sink := &memorySink{runID: "r"}
	s := scrape.NewScraper(newCachedFetcher(t), content.NewSegmenter(content.ModeFold), sink, server.URL, scrape.Delays{})

	n, err := s.ProcessChapter(context.Background(), server.URL+"/policy-manual/volume-1-part-a-chapter-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Nil(t, sink.passages[1].SubsectionHeader)

	_, err = s.ProcessChapter(context.Background(), server.URL+"/policy-manual/volume-1-part-a-chapter-2")
	assert.Equal(t, manual.KindTransient, manual.KindOf(err))

	_, err = s.ProcessChapter(context.Background(), server.URL+"/policy-manual/volume-1-part-a-chapter-3")
	assert.Equal(t, manual.KindAbsent, manual.KindOf(err))
	assert.ErrorIs(t, err, content.ErrNoContent)
}

func TestScraper_ProcessURLsOffline(t *testing.T) {
	t.Parallel()

	server, hits := newSite(t)
	cache, err := storage.NewPageCache(filepath.Join(t.TempDir(), "html"))
	require.NoError(t, err)

	chapterOne := server.URL + "/policy-manual/volume-1-part-a-chapter-1"
	chapterThree := server.URL + "/policy-manual/volume-1-part-a-chapter-3"
	require.NoError(t, cache.Put(chapterOne, chapterOnePage))
	require.NoError(t, cache.Put(chapterThree, `<html><body><h1>Empty</h1></body></html>`))

	pages, err := cache.Scan(context.Background(), server.URL)
	require.NoError(t, err)
	urls := make([]string, 0, len(pages))
	for _, p := range pages {
		urls = append(urls, p.URL)
	}
	// A page that was never cached is reported as a failure, not fetched.
	urls = append(urls, server.URL+"/policy-manual/volume-1-part-a-chapter-2")

	sink := &memorySink{runID: "20250115_000000"}
	offline := scrape.NewCachedFetcher(scrape.OfflineFetcher{}, cache)
	s := scrape.NewScraper(offline, content.NewSegmenter(content.ModeFold), sink, server.URL, scrape.DefaultDelays())

	summary, err := s.ProcessURLs(context.Background(), urls)
	require.NoError(t, err)
	assert.Equal(t, scrape.Summary{
		RunID:          "20250115_000000",
		Chapters:       3,
		Passages:       3,
		FailedChapters: 1,
		EmptyChapters:  1,
	}, summary)
	assert.Equal(t, int32(0), hits.Load())
	for _, p := range sink.passages {
		assert.Nil(t, p.SubsectionHeader)
		assert.Equal(t, chapterOne, p.SourceURL)
	}
}

func TestOfflineFetcher(t *testing.T) {
	t.Parallel()

	_, err := scrape.OfflineFetcher{}.Fetch(context.Background(), "https://www.uscis.gov/policy-manual")
	assert.ErrorIs(t, err, scrape.ErrNotCached)
}

func TestCachedFetcher_ServesFromCache(t *testing.T) {
	t.Parallel()

	server, hits := newSite(t)
	f := newCachedFetcher(t)
	url := server.URL + "/policy-manual/volume-1"

	first, err := f.Fetch(context.Background(), url)
	require.NoError(t, err)
	second, err := f.Fetch(context.Background(), url)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), hits.Load())
}

func TestHTTPFetcher(t *testing.T) {
	t.Parallel()

	t.Run("sends browser user agent", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(r.Header.Get("User-Agent")))
		}))
		defer server.Close()

		body, err := scrape.NewHTTPFetcher().Fetch(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, scrape.DefaultUserAgent, body)
	})

	t.Run("non-200 is an error", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		_, err := scrape.NewHTTPFetcher().Fetch(context.Background(), server.URL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "HTTP 404")
	})

	t.Run("respects timeout", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(100 * time.Millisecond)
			_, _ = w.Write([]byte("late"))
		}))
		defer server.Close()

		_, err := scrape.NewHTTPFetcher(scrape.WithTimeout(10*time.Millisecond)).Fetch(context.Background(), server.URL)
		require.Error(t, err)
	})

	t.Run("limiter honors canceled context", func(t *testing.T) {
		t.Parallel()

		limiter := scrape.NewDomainLimiter(0.001)
		f := scrape.NewHTTPFetcher(scrape.WithLimiter(limiter))

		// First request consumes the single burst token.
		require.NoError(t, limiter.Wait(context.Background(), "example.invalid"))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err := f.Fetch(ctx, "http://example.invalid/page")
		require.Error(t, err)
	})
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	doc, err := content.ParseString(volumePage)
	require.NoError(t, err)

	parts := scrape.DiscoverParts(doc, "https://www.uscis.gov", 1)
	require.Len(t, parts, 2)
	assert.Equal(t, scrape.Part{
		Volume: 1,
		Letter: "A",
		Title:  "Part A - Policy Manual Overview",
		URL:    "https://www.uscis.gov/policy-manual/volume-1-part-a",
	}, parts[0])
	assert.Equal(t, "B", parts[1].Letter)

	doc, err = content.ParseString(partAPage)
	require.NoError(t, err)

	chapters := scrape.DiscoverChapters(doc, "https://www.uscis.gov", 1, "A")
	require.Len(t, chapters, 3)
	assert.Equal(t, "1", chapters[0].Number)
	assert.Equal(t, "https://www.uscis.gov/policy-manual/volume-1-part-a-chapter-2", chapters[1].URL)
	assert.Equal(t, "A", chapters[2].Part)
}

func TestURLs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://www.uscis.gov/policy-manual/volume-6", scrape.VolumeURL("https://www.uscis.gov", 6))
	assert.Equal(t, "https://www.uscis.gov/policy-manual/volume-6-part-e", scrape.PartURL("https://www.uscis.gov", 6, "E"))
	assert.Len(t, scrape.Volumes(), 12)
}
