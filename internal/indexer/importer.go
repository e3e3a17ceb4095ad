package indexer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"policy-manual-ai/internal/contextutil"
	"policy-manual-ai/internal/keyword"
	"policy-manual-ai/internal/llm"
	"policy-manual-ai/internal/manual"
	"policy-manual-ai/internal/storage"
	"policy-manual-ai/internal/vectorstore"
)

// DefaultBatchSize is the number of passages embedded and stored together.
const DefaultBatchSize = 100

// ErrIncompleteImport is returned when some batches of a log failed. The
// run is left unmarked so retrieval keeps serving the previous version of
// its pages, and importing the log again completes it.
var ErrIncompleteImport = errors.New("import incomplete")

// KeywordIndexer is the lexical index the importer feeds.
type KeywordIndexer interface {
	IndexBatch(ctx context.Context, docs []keyword.Document) error
	DeleteBatch(ctx context.Context, ids []string) error
}

// Importer loads run logs into SQLite, the vector store and the keyword index.
type Importer struct {
	runs       storage.RunStore
	passages   storage.PassageStore
	embedder   llm.Embedder
	vectors    vectorstore.VectorStore
	keywords   KeywordIndexer
	collection string
	vectorSize int
	batchSize  int
	now        func() time.Time
}

// NewImporter creates a new Importer.
func NewImporter(
	runs storage.RunStore,
	passages storage.PassageStore,
	embedder llm.Embedder,
	vectors vectorstore.VectorStore,
	keywords KeywordIndexer,
	collection string,
) *Importer {
	return &Importer{
		runs:       runs,
		passages:   passages,
		embedder:   embedder,
		vectors:    vectors,
		keywords:   keywords,
		collection: collection,
		batchSize:  DefaultBatchSize,
		now:        time.Now,
	}
}

// WithBatchSize overrides the batch size. Values below 1 are ignored.
func (im *Importer) WithBatchSize(n int) *Importer {
	if n > 0 {
		im.batchSize = n
	}
	return im
}

// WithVectorSize makes each import first create the collection with vectors
// of size n when it does not exist yet.
func (im *Importer) WithVectorSize(n int) *Importer {
	im.vectorSize = n
	return im
}

// ImportLatest imports the most recently written run log in dir.
func (im *Importer) ImportLatest(ctx context.Context, dir string) (*ImportStats, error) {
	path, err := storage.LatestPassageLog(dir)
	if err != nil {
		return nil, fmt.Errorf("no run log in %s: %w", dir, err)
	}
	return im.ImportFile(ctx, path)
}

// ImportFile imports every passage of the run log at path. A failed batch is
// logged and counted, and the import moves on to the next batch. Passages
// already stored are neither embedded nor written again, so importing a log
// twice is safe.
//
// Only a log imported without failures marks its run imported. The run then
// becomes the current version of every page it holds, and the passages it
// replaces are removed from the vector and keyword indexes.
func (im *Importer) ImportFile(ctx context.Context, path string) (*ImportStats, error) {
	logger := contextutil.LoggerFromContext(ctx)
	start := im.now()

	if im.vectorSize > 0 {
		if err := im.vectors.EnsureCollection(ctx, im.collection, im.vectorSize); err != nil {
			return nil, fmt.Errorf("failed to ensure collection %s: %w", im.collection, err)
		}
	}

	stats := newImportStats(storage.RunIDFromLogPath(path), path)
	registered := make(map[string]bool)
	pages := make(map[string]bool)
	batch := make([]positioned, 0, im.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		stats.Batches++
		if imported, duplicates, err := im.importBatch(ctx, batch); err != nil {
			stats.Failed += len(batch)
			logger.ErrorContext(ctx, "batch import failed", "run_id", stats.RunID, "batch", stats.Batches, "size", len(batch), "error", err)
		} else {
			stats.Imported += imported
			stats.Duplicates += duplicates
		}
		batch = batch[:0]
		return ctx.Err()
	}

	err := storage.ReadPassageLog(path, func(position int, p manual.Passage) error {
		stats.Read++
		if err := p.Validate(); err != nil {
			stats.Skipped++
			logger.WarnContext(ctx, "skipping invalid passage", "position", position, "url", p.SourceURL, "error", err)
			return nil
		}

		if !registered[p.IngestTimestamp] {
			if _, err := im.runs.GetOrCreate(ctx, p.IngestTimestamp, path); err != nil {
				return fmt.Errorf("failed to register run %s: %w", p.IngestTimestamp, err)
			}
			registered[p.IngestTimestamp] = true
		}
		pages[p.SourceURL] = true
		stats.observe(p)

		batch = append(batch, positioned{position: position, passage: p})
		if len(batch) >= im.batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return stats, err
	}
	if err := flush(); err != nil {
		return stats, err
	}

	stats.Pages = len(pages)
	stats.finish(im.now().Sub(start))

	if stats.Failed > 0 {
		logger.ErrorContext(ctx, "import incomplete, run not marked imported",
			"run_id", stats.RunID,
			"failed", stats.Failed,
			"read", stats.Read,
		)
		return stats, fmt.Errorf("%w: %d of %d passages of %s failed", ErrIncompleteImport, stats.Failed, stats.Read, stats.RunID)
	}

	for _, runID := range sortedKeys(registered) {
		if err := im.runs.MarkImported(ctx, runID, im.now()); err != nil {
			return stats, fmt.Errorf("failed to mark run %s imported: %w", runID, err)
		}
		stats.Superseded += im.pruneSuperseded(ctx, runID)
	}

	logger.InfoContext(ctx, "import complete",
		"run_id", stats.RunID,
		"read", stats.Read,
		"imported", stats.Imported,
		"duplicates", stats.Duplicates,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"superseded", stats.Superseded,
		"pages", stats.Pages,
		"duration", stats.Duration,
	)
	return stats, nil
}

type positioned struct {
	position int
	passage  manual.Passage
}

// importBatch embeds the passages of a batch that are not stored yet and
// writes them to all three stores. SQLite is written last: a passage is only
// visible to retrieval once its row exists.
func (im *Importer) importBatch(ctx context.Context, batch []positioned) (imported, duplicates int, err error) {
	ids := make([]string, len(batch))
	for i, b := range batch {
		ids[i] = b.passage.ID
	}
	stored, err := im.passages.GetByIDs(ctx, ids)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to look up stored passages: %w", err)
	}

	fresh := make([]positioned, 0, len(batch))
	seen := make(map[string]bool, len(batch))
	for _, b := range batch {
		if stored[b.passage.ID] != nil || seen[b.passage.ID] {
			duplicates++
			continue
		}
		seen[b.passage.ID] = true
		fresh = append(fresh, b)
	}
	if len(fresh) == 0 {
		return 0, duplicates, nil
	}

	texts := make([]string, len(fresh))
	for i, b := range fresh {
		texts[i] = EmbeddingText(b.passage)
	}

	vecs, err := im.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(vecs) != len(fresh) {
		return 0, 0, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(fresh), len(vecs))
	}

	points := make([]vectorstore.Point, len(fresh))
	docs := make([]keyword.Document, len(fresh))
	for i, b := range fresh {
		p := b.passage
		points[i] = vectorstore.Point{
			ID:      p.ID,
			Vec:     vecs[i],
			Payload: vectorstore.PassagePayload(p),
		}
		docs[i] = keyword.Document{
			ID:               p.ID,
			Content:          p.Body,
			Title:            p.Metadata.Title,
			SectionHeader:    p.SectionHeader,
			SubsectionHeader: p.Subsection(),
		}
	}

	if err := im.vectors.Upsert(ctx, im.collection, points); err != nil {
		return 0, 0, fmt.Errorf("failed to upsert vectors: %w", err)
	}
	if err := im.keywords.IndexBatch(ctx, docs); err != nil {
		return 0, 0, fmt.Errorf("failed to index keywords: %w", err)
	}

	for _, b := range fresh {
		inserted, err := im.passages.Insert(ctx, storage.NewPassageRecord(b.passage, b.position))
		if err != nil {
			return 0, 0, fmt.Errorf("failed to store passage %s: %w", b.passage.ID, err)
		}
		if inserted {
			imported++
		} else {
			duplicates++
		}
	}
	return imported, duplicates, nil
}

// pruneSuperseded removes the passages runID replaced from the vector and
// keyword indexes and reports how many there were. Failures are logged
// only: retrieval already ignores passages that are not current.
func (im *Importer) pruneSuperseded(ctx context.Context, runID string) int {
	logger := contextutil.LoggerFromContext(ctx)

	ids, err := im.passages.ListSuperseded(ctx, runID)
	if err != nil {
		logger.WarnContext(ctx, "failed to list superseded passages", "run_id", runID, "error", err)
		return 0
	}
	if len(ids) == 0 {
		return 0
	}

	if err := im.vectors.Delete(ctx, im.collection, ids); err != nil {
		logger.WarnContext(ctx, "failed to prune superseded vectors", "run_id", runID, "count", len(ids), "error", err)
	}
	if err := im.keywords.DeleteBatch(ctx, ids); err != nil {
		logger.WarnContext(ctx, "failed to prune superseded keyword documents", "run_id", runID, "count", len(ids), "error", err)
	}
	logger.InfoContext(ctx, "pruned superseded passages", "run_id", runID, "count", len(ids))
	return len(ids)
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EmbeddingText is the text embedded for a passage: its title and headers
// give the body its citation context.
func EmbeddingText(p manual.Passage) string {
	var b strings.Builder
	if p.Metadata.Title != "" {
		b.WriteString(p.Metadata.Title)
		b.WriteString("\n")
	}
	b.WriteString(p.SectionHeader)
	if sub := p.Subsection(); sub != "" {
		b.WriteString(" > ")
		b.WriteString(sub)
	}
	b.WriteString(": ")
	b.WriteString(p.Body)
	return b.String()
}
