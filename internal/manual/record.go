package manual

import (
	"encoding/json"
	"fmt"
)

// Record is the newline-delimited JSON form of a Passage in a run log.
// SubsectionHeader is serialized as null when absent.
type Record struct {
	PassageID        string  `json:"passage_id"`
	URL              string  `json:"url"`
	Title            string  `json:"title"`
	VolumeNumber     string  `json:"volume_number"`
	PartLetter       string  `json:"part_letter"`
	ChapterNumber    string  `json:"chapter_number"`
	LastUpdated      string  `json:"last_updated"`
	SectionHeader    string  `json:"section_header"`
	SubsectionHeader *string `json:"subsection_header"`
	Content          string  `json:"content"`
	Timestamp        string  `json:"timestamp"`
}

// Record converts the passage to its persisted form.
func (p Passage) Record() Record {
	return Record{
		PassageID:        p.ID,
		URL:              p.SourceURL,
		Title:            p.Metadata.Title,
		VolumeNumber:     p.Metadata.VolumeNumber,
		PartLetter:       p.Metadata.PartLetter,
		ChapterNumber:    p.Metadata.ChapterNumber,
		LastUpdated:      p.Metadata.LastUpdated,
		SectionHeader:    p.SectionHeader,
		SubsectionHeader: p.SubsectionHeader,
		Content:          p.Body,
		Timestamp:        p.IngestTimestamp,
	}
}

// Passage converts a persisted record back into a Passage. The ID stays
// empty when the record carries none.
func (r Record) Passage() Passage {
	return Passage{
		ID:        r.PassageID,
		SourceURL: r.URL,
		Metadata: DocumentMetadata{
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
		IngestTimestamp:  r.Timestamp,
	}
}

// PassageAt is Passage for a record that is the ordinal-th passage of its
// page. A missing identifier is derived from the record's fields and that
// ordinal, so records sharing a section still get distinct IDs.
func (r Record) PassageAt(ordinal int) Passage {
	p := r.Passage()
	if p.ID == "" {
		p.ID = PassageID(r.URL, r.SectionHeader, r.SubsectionHeader, r.Timestamp, ordinal)
	}
	return p
}

// MarshalLine encodes the passage as a single JSON line without the trailing newline.
func MarshalLine(p Passage) ([]byte, error) {
	b, err := json.Marshal(p.Record())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal passage record: %w", err)
	}
	return b, nil
}

// UnmarshalRecord decodes one JSON line into a Record.
func UnmarshalRecord(line []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(line, &r); err != nil {
		return Record{}, fmt.Errorf("failed to unmarshal passage record: %w", err)
	}
	return r, nil
}

// UnmarshalLine decodes one JSON line into a Passage.
func UnmarshalLine(line []byte) (Passage, error) {
	r, err := UnmarshalRecord(line)
	if err != nil {
		return Passage{}, err
	}
	return r.Passage(), nil
}
