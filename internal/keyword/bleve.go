// Package keyword provides the lexical half of the hybrid passage index.
package keyword

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
)

// Indexed text fields.
const (
	FieldContent          = "content"
	FieldTitle            = "title"
	FieldSectionHeader    = "section_header"
	FieldSubsectionHeader = "subsection_header"
)

// DefaultFields are searched when a query names no fields.
var DefaultFields = []string{FieldContent, FieldTitle, FieldSectionHeader, FieldSubsectionHeader}

// ErrEmptyQuery is returned for a blank query.
var ErrEmptyQuery = errors.New("empty keyword query")

// Document is the lexical view of one passage.
type Document struct {
	ID               string
	Content          string
	Title            string
	SectionHeader    string
	SubsectionHeader string
}

// Result is one keyword match.
type Result struct {
	ID    string
	Score float64
}

// BleveIndex implements the keyword index using Bleve.
type BleveIndex struct {
	index bleve.Index
}

func indexMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	text := bleve.NewTextFieldMapping()
	// Standard analyzer lowercases and tokenizes without stemming.
	text.Analyzer = standard.Name
	for _, f := range DefaultFields {
		docMapping.AddFieldMappingsAt(f, text)
	}
	im.AddDocumentMapping("passage", docMapping)
	im.DefaultType = "passage"
	im.DefaultMapping = docMapping

	return im
}

// NewBleveIndex creates or opens a Bleve index at path.
// Changing the mapping requires removing the index directory.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, indexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// NewMemoryIndex creates an index that lives only in memory.
func NewMemoryIndex() (*BleveIndex, error) {
	index, err := bleve.NewMemOnly(indexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func (d Document) fields() map[string]any {
	return map[string]any{
		FieldContent:          d.Content,
		FieldTitle:            d.Title,
		FieldSectionHeader:    d.SectionHeader,
		FieldSubsectionHeader: d.SubsectionHeader,
	}
}

// Index indexes one document. Re-indexing an ID replaces it.
func (b *BleveIndex) Index(ctx context.Context, doc Document) error {
	if err := b.index.Index(doc.ID, doc.fields()); err != nil {
		return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
	}
	return nil
}

// IndexBatch indexes docs in one batch.
func (b *BleveIndex) IndexBatch(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, doc.fields()); err != nil {
			return fmt.Errorf("failed to add document %s to batch: %w", doc.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to index batch: %w", err)
	}
	return nil
}

// Search runs a match query over fields and returns up to limit results
// ordered by score. A document matches when any field matches.
func (b *BleveIndex) Search(ctx context.Context, query string, fields []string, limit int) ([]Result, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if len(fields) == 0 {
		fields = DefaultFields
	}

	queries := make([]blevequery.Query, 0, len(fields))
	for _, f := range fields {
		mq := bleve.NewMatchQuery(query)
		mq.SetField(f)
		queries = append(queries, mq)
	}

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(queries...))
	req.Size = limit
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	out := make([]Result, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = Result{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// Delete removes a document from the index.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// DeleteBatch removes docs by ID in one batch. Unknown IDs are ignored.
func (b *BleveIndex) DeleteBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete batch: %w", err)
	}
	return nil
}

// DocCount returns the total number of documents in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
