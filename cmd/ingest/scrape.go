package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"policy-manual-ai/internal/content"
	"policy-manual-ai/internal/scrape"
	"policy-manual-ai/internal/storage"
)

var (
	scrapeVolumes []int
	scrapeChapter string
	scrapeImport  bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape policy manual chapters into a new run log",
	Long: `Walks volumes, parts and chapters of the policy manual, segments each
chapter into passages and appends them to a new run log. Pages are cached on
disk, so an interrupted run can be repeated without refetching.`,
	Args: cobra.NoArgs,
	RunE: runScrape,
}

var resegmentCmd = &cobra.Command{
	Use:   "resegment",
	Short: "Segment every cached chapter into a new run log without fetching",
	Args:  cobra.NoArgs,
	RunE:  runResegment,
}

func init() {
	scrapeCmd.Flags().IntSliceVar(&scrapeVolumes, "volume", nil, "only scrape these volume numbers (default all)")
	scrapeCmd.Flags().StringVar(&scrapeChapter, "chapter", "", "scrape a single chapter URL")
	scrapeCmd.Flags().BoolVar(&scrapeImport, "import", false, "import the run log when the scrape finishes")
	resegmentCmd.Flags().BoolVar(&scrapeImport, "import", false, "import the run log when segmentation finishes")
	rootCmd.AddCommand(scrapeCmd, resegmentCmd)
}

func newScraper(fetcher scrape.Fetcher, log *storage.PassageLog) *scrape.Scraper {
	return scrape.NewScraper(fetcher, content.NewSegmenter(cfg.SegmentMode), log, cfg.SourceBaseURL, cfg.Delays)
}

func runScrape(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cache, err := storage.NewPageCache(cfg.CacheDir())
	if err != nil {
		return err
	}
	fetcher := scrape.NewCachedFetcher(
		scrape.NewHTTPFetcher(
			scrape.WithTimeout(cfg.FetchTimeout),
			scrape.WithLimiter(scrape.NewDomainLimiter(cfg.FetchRPS)),
		),
		cache,
	)

	log, err := storage.NewPassageLog(cfg.ChunksDir(), time.Now())
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Close()
	}()

	scraper := newScraper(fetcher, log)
	slog.Info("Starting scrape", "run_id", log.RunID(), "log", log.Path(), "segment_mode", cfg.SegmentMode)

	var summary scrape.Summary
	switch {
	case scrapeChapter != "":
		summary, err = scraper.ProcessURLs(ctx, []string{scrapeChapter})
	case len(scrapeVolumes) > 0:
		volumes, verr := selectVolumes(scrapeVolumes)
		if verr != nil {
			return verr
		}
		summary, err = scraper.WithVolumes(volumes).Run(ctx)
	default:
		summary, err = scraper.Run(ctx)
	}
	if err != nil {
		return fmt.Errorf("scrape failed after %d passages: %w", log.Count(), err)
	}

	return finishRun(cmd, log, summary)
}

func runResegment(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cache, err := storage.NewPageCache(cfg.CacheDir())
	if err != nil {
		return err
	}
	pages, err := cache.Scan(ctx, cfg.SourceBaseURL)
	if err != nil {
		return err
	}

	var urls []string
	for _, p := range pages {
		if strings.Contains(p.URL, "-chapter-") {
			urls = append(urls, p.URL)
		}
	}
	if len(urls) == 0 {
		return fmt.Errorf("no cached chapters in %s", cfg.CacheDir())
	}

	log, err := storage.NewPassageLog(cfg.ChunksDir(), time.Now())
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Close()
	}()

	offline := scrape.NewCachedFetcher(scrape.OfflineFetcher{}, cache)
	slog.Info("Segmenting cached chapters", "run_id", log.RunID(), "chapters", len(urls), "segment_mode", cfg.SegmentMode)

	summary, err := newScraper(offline, log).ProcessURLs(ctx, urls)
	if err != nil {
		return err
	}
	return finishRun(cmd, log, summary)
}

// finishRun prints the run summary and optionally imports the run log.
func finishRun(cmd *cobra.Command, log *storage.PassageLog, summary scrape.Summary) error {
	if err := log.Close(); err != nil {
		return err
	}
	if err := printJSON(cmd, summary); err != nil {
		return err
	}
	if !scrapeImport {
		return nil
	}
	return importPath(cmd, log.Path())
}

func selectVolumes(numbers []int) ([]scrape.Volume, error) {
	byNumber := make(map[int]scrape.Volume)
	for _, v := range scrape.Volumes() {
		byNumber[v.Number] = v
	}
	volumes := make([]scrape.Volume, 0, len(numbers))
	for _, n := range numbers {
		v, ok := byNumber[n]
		if !ok {
			return nil, fmt.Errorf("unknown volume %d", n)
		}
		volumes = append(volumes, v)
	}
	return volumes, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
