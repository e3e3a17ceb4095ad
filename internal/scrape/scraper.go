package scrape

import (
	"context"
	"errors"
	"fmt"
	"time"

	"policy-manual-ai/internal/content"
	"policy-manual-ai/internal/contextutil"
	"policy-manual-ai/internal/manual"
)

// PassageSink receives every passage produced by a run.
type PassageSink interface {
	RunID() string
	Append(p manual.Passage) error
}

// Delays are the fixed politeness pauses between pages.
type Delays struct {
	Chapter time.Duration
	Part    time.Duration
	Volume  time.Duration
}

// DefaultDelays returns the pauses used against the live site.
func DefaultDelays() Delays {
	return Delays{
		Chapter: 1 * time.Second,
		Part:    2 * time.Second,
		Volume:  5 * time.Second,
	}
}

// Summary counts what one run did.
type Summary struct {
	RunID          string `json:"run_id"`
	Volumes        int    `json:"volumes"`
	Parts          int    `json:"parts"`
	Chapters       int    `json:"chapters"`
	Passages       int    `json:"passages"`
	FailedChapters int    `json:"failed_chapters"`
	EmptyChapters  int    `json:"empty_chapters"`
}

// Scraper runs the ingestion walk over volumes, parts and chapters.
type Scraper struct {
	fetcher   Fetcher
	segmenter *content.Segmenter
	sink      PassageSink
	baseURL   string
	volumes   []Volume
	delays    Delays
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewScraper creates a Scraper writing to sink. The fetcher is expected to
// be cache-backed.
func NewScraper(fetcher Fetcher, segmenter *content.Segmenter, sink PassageSink, baseURL string, delays Delays) *Scraper {
	return &Scraper{
		fetcher:   fetcher,
		segmenter: segmenter,
		sink:      sink,
		baseURL:   baseURL,
		volumes:   Volumes(),
		delays:    delays,
		sleep:     sleepContext,
	}
}

// WithVolumes restricts the run to the given volumes.
func (s *Scraper) WithVolumes(volumes []Volume) *Scraper {
	s.volumes = volumes
	return s
}

// Run walks every configured volume. Chapter failures are logged and
// skipped. A failure that prevents the run from recording passages, or a
// canceled context, ends the run with an error of kind manual.KindFatal.
func (s *Scraper) Run(ctx context.Context) (Summary, error) {
	logger := contextutil.LoggerFromContext(ctx)
	summary := Summary{RunID: s.sink.RunID()}

	for _, vol := range s.volumes {
		logger.InfoContext(ctx, "processing volume", "volume", vol.Number, "title", vol.Title)
		if err := s.processVolume(ctx, vol, &summary); err != nil {
			logger.ErrorContext(ctx, "run aborted", "volume", vol.Number, "error", err)
			return summary, manual.Fatal(fmt.Sprintf("volume %d", vol.Number), err)
		}
		summary.Volumes++

		if err := s.sleep(ctx, s.delays.Volume); err != nil {
			return summary, manual.Fatal("run", err)
		}
	}

	logger.InfoContext(ctx, "run complete",
		"run_id", summary.RunID,
		"chapters", summary.Chapters,
		"passages", summary.Passages,
		"failed_chapters", summary.FailedChapters,
		"empty_chapters", summary.EmptyChapters,
	)
	return summary, nil
}

func (s *Scraper) processVolume(ctx context.Context, vol Volume, summary *Summary) error {
	logger := contextutil.LoggerFromContext(ctx)

	parts, err := s.discoverParts(ctx, vol.Number)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.ErrorContext(ctx, "failed to load volume page", "volume", vol.Number, "error", err)
		return nil
	}
	if len(parts) == 0 {
		logger.WarnContext(ctx, "no parts found", "volume", vol.Number)
		return nil
	}

	for _, part := range parts {
		logger.InfoContext(ctx, "processing part", "volume", vol.Number, "part", part.Letter, "title", part.Title)
		if err := s.processPart(ctx, part, summary); err != nil {
			return err
		}
		summary.Parts++

		if err := s.sleep(ctx, s.delays.Part); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scraper) processPart(ctx context.Context, part Part, summary *Summary) error {
	logger := contextutil.LoggerFromContext(ctx)

	chapters, err := s.discoverChapters(ctx, part)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.ErrorContext(ctx, "failed to load part page", "volume", part.Volume, "part", part.Letter, "error", err)
		return nil
	}
	if len(chapters) == 0 {
		logger.WarnContext(ctx, "no chapters found", "volume", part.Volume, "part", part.Letter)
		return nil
	}

	for _, ch := range chapters {
		if err := s.recordChapter(ctx, ch.URL, summary); err != nil {
			return err
		}

		if err := s.sleep(ctx, s.delays.Chapter); err != nil {
			return err
		}
	}
	return nil
}

// ProcessURLs records each chapter page in urls without navigation
// discovery or politeness delays. It is meant for re-segmenting pages
// already in the cache. Failures are isolated per page as in Run.
func (s *Scraper) ProcessURLs(ctx context.Context, urls []string) (Summary, error) {
	logger := contextutil.LoggerFromContext(ctx)
	summary := Summary{RunID: s.sink.RunID()}

	for _, url := range urls {
		if err := s.recordChapter(ctx, url, &summary); err != nil {
			return summary, manual.Fatal("process "+url, err)
		}
	}

	logger.InfoContext(ctx, "pages processed",
		"run_id", summary.RunID,
		"chapters", summary.Chapters,
		"passages", summary.Passages,
		"failed_chapters", summary.FailedChapters,
		"empty_chapters", summary.EmptyChapters,
	)
	return summary, nil
}

// recordChapter processes one chapter and folds the outcome into summary.
// Only fatal errors and cancellation are returned.
func (s *Scraper) recordChapter(ctx context.Context, url string, summary *Summary) error {
	logger := contextutil.LoggerFromContext(ctx)

	n, err := s.ProcessChapter(ctx, url)
	switch {
	case err == nil:
		summary.Passages += n
		if n == 0 {
			summary.EmptyChapters++
		}
	case manual.KindOf(err) == manual.KindFatal:
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	case manual.KindOf(err) == manual.KindAbsent:
		summary.EmptyChapters++
		logger.WarnContext(ctx, "chapter has no content", "url", url, "error", err)
	default:
		summary.FailedChapters++
		logger.ErrorContext(ctx, "error processing chapter", "url", url, "kind", manual.KindOf(err).String(), "error", err)
	}
	summary.Chapters++
	return nil
}

// ProcessChapter fetches, segments and records one chapter page and returns
// the number of passages written. Fetch failures are transient; a page
// without a content container is reported with kind manual.KindAbsent; a
// passage the sink cannot record is fatal.
func (s *Scraper) ProcessChapter(ctx context.Context, url string) (int, error) {
	logger := contextutil.LoggerFromContext(ctx)

	html, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return 0, err
	}

	doc, err := content.ParseString(html)
	if err != nil {
		return 0, manual.Absent("parse "+url, err)
	}

	meta := content.ExtractMetadata(doc, url)
	passages, err := s.segmenter.Segment(doc, meta, s.sink.RunID())
	if err != nil {
		return 0, err
	}

	for _, p := range passages {
		if err := s.sink.Append(p); err != nil {
			if errors.Is(err, manual.ErrEmptyBody) || errors.Is(err, manual.ErrMissingSection) {
				logger.WarnContext(ctx, "skipping invalid passage", "url", url, "section", p.SectionHeader, "error", err)
				continue
			}
			return 0, manual.Fatal("record passage", err)
		}
	}

	logger.InfoContext(ctx, "processed chapter", "url", url, "passages", len(passages))
	return len(passages), nil
}

func (s *Scraper) discoverParts(ctx context.Context, volume int) ([]Part, error) {
	html, err := s.fetcher.Fetch(ctx, VolumeURL(s.baseURL, volume))
	if err != nil {
		return nil, err
	}
	doc, err := content.ParseString(html)
	if err != nil {
		return nil, err
	}
	return DiscoverParts(doc, s.baseURL, volume), nil
}

func (s *Scraper) discoverChapters(ctx context.Context, part Part) ([]Chapter, error) {
	html, err := s.fetcher.Fetch(ctx, PartURL(s.baseURL, part.Volume, part.Letter))
	if err != nil {
		return nil, err
	}
	doc, err := content.ParseString(html)
	if err != nil {
		return nil, err
	}
	return DiscoverChapters(doc, s.baseURL, part.Volume, part.Letter), nil
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
