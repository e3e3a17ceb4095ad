package vectorstore

import "policy-manual-ai/internal/manual"

// Payload keys carried by every passage point. They match the run log record fields.
const (
	PayloadURL              = "url"
	PayloadTitle            = "title"
	PayloadVolumeNumber     = "volume_number"
	PayloadPartLetter       = "part_letter"
	PayloadChapterNumber    = "chapter_number"
	PayloadLastUpdated      = "last_updated"
	PayloadSectionHeader    = "section_header"
	PayloadSubsectionHeader = "subsection_header"
	PayloadContent          = "content"
	PayloadTimestamp        = "timestamp"
)

// PassagePayload returns the point payload for p. An absent subsection
// header is left out of the payload.
func PassagePayload(p manual.Passage) map[string]any {
	payload := map[string]any{
		PayloadURL:           p.SourceURL,
		PayloadTitle:         p.Metadata.Title,
		PayloadVolumeNumber:  p.Metadata.VolumeNumber,
		PayloadPartLetter:    p.Metadata.PartLetter,
		PayloadChapterNumber: p.Metadata.ChapterNumber,
		PayloadLastUpdated:   p.Metadata.LastUpdated,
		PayloadSectionHeader: p.SectionHeader,
		PayloadContent:       p.Body,
		PayloadTimestamp:     p.IngestTimestamp,
	}
	if p.SubsectionHeader != nil {
		payload[PayloadSubsectionHeader] = *p.SubsectionHeader
	}
	return payload
}

// PassageFromPayload rebuilds the passage stored under point id.
// Missing or non-string values decode as empty strings.
func PassageFromPayload(id string, payload map[string]any) manual.Passage {
	str := func(key string) string {
		s, _ := payload[key].(string)
		return s
	}

	url := str(PayloadURL)
	p := manual.Passage{
		ID:        id,
		SourceURL: url,
		Metadata: manual.DocumentMetadata{
			Title:         str(PayloadTitle),
			VolumeNumber:  str(PayloadVolumeNumber),
			PartLetter:    str(PayloadPartLetter),
			ChapterNumber: str(PayloadChapterNumber),
			LastUpdated:   str(PayloadLastUpdated),
			SourceURL:     url,
		},
		SectionHeader:   str(PayloadSectionHeader),
		Body:            str(PayloadContent),
		IngestTimestamp: str(PayloadTimestamp),
	}
	if sub, ok := payload[PayloadSubsectionHeader].(string); ok {
		p.SubsectionHeader = &sub
	}
	return p
}
