package storage

import (
	"errors"
	"time"

	"policy-manual-ai/internal/manual"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

// RunRecord is one ingestion run known to the registry.
type RunRecord struct {
	ID         string // run identifier, also every passage's timestamp
	LogPath    string // JSONL run log the passages were imported from
	CreatedAt  time.Time
	ImportedAt *time.Time // nil until an import of the run completed
}

// PassageRecord is an imported passage as stored in SQLite.
// Its ID is the same as the vector store point ID.
type PassageRecord struct {
	ID               string
	RunID            string
	Position         int // order of the passage within its run log
	URL              string
	Title            string
	VolumeNumber     string
	PartLetter       string
	ChapterNumber    string
	LastUpdated      string
	SectionHeader    string
	SubsectionHeader *string
	Content          string
}

// NewPassageRecord converts a passage into its stored form.
func NewPassageRecord(p manual.Passage, position int) *PassageRecord {
	return &PassageRecord{
		ID:               p.ID,
		RunID:            p.IngestTimestamp,
		Position:         position,
		URL:              p.SourceURL,
		Title:            p.Metadata.Title,
		VolumeNumber:     p.Metadata.VolumeNumber,
		PartLetter:       p.Metadata.PartLetter,
		ChapterNumber:    p.Metadata.ChapterNumber,
		LastUpdated:      p.Metadata.LastUpdated,
		SectionHeader:    p.SectionHeader,
		SubsectionHeader: p.SubsectionHeader,
		Content:          p.Body,
	}
}

// Passage converts the stored record back into a passage.
func (r *PassageRecord) Passage() manual.Passage {
	return manual.Passage{
		ID:        r.ID,
		SourceURL: r.URL,
		Metadata: manual.DocumentMetadata{
			Title:         r.Title,
			VolumeNumber:  r.VolumeNumber,
			PartLetter:    r.PartLetter,
			ChapterNumber: r.ChapterNumber,
			LastUpdated:   r.LastUpdated,
			SourceURL:     r.URL,
		},
		SectionHeader:    r.SectionHeader,
		SubsectionHeader: r.SubsectionHeader,
		Body:             r.Content,
		IngestTimestamp:  r.RunID,
	}
}
