// Package manual holds the passage schema shared by the ingestion and query
// pipelines: page metadata, the stored passage, its persisted record form and
// the error kinds components use to report failures.
package manual

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RunIDLayout is the layout of ingestion run identifiers (e.g. "20250114_093005").
const RunIDLayout = "20060102_150405"

// passageNamespace scopes the UUIDv5 identifiers generated for passages.
var passageNamespace = uuid.MustParse("6f1c63a8-4c1e-5b8e-9d34-3f0a52c1b7e2")

var (
	// ErrEmptyBody is returned when a passage carries no body text.
	ErrEmptyBody = errors.New("passage body is empty")
	// ErrMissingSection is returned when a passage has no section header.
	ErrMissingSection = errors.New("passage section header is missing")
)

// DocumentMetadata is the structural metadata of one policy manual page.
// Any field may be empty when the page does not expose it.
type DocumentMetadata struct {
	Title         string
	VolumeNumber  string
	PartLetter    string
	ChapterNumber string
	LastUpdated   string
	SourceURL     string
}

// Passage is one citation-addressable unit of manual text.
type Passage struct {
	ID        string
	SourceURL string
	Metadata  DocumentMetadata

	SectionHeader string
	// SubsectionHeader is nil unless the text sat under a heading nested
	// below the active section.
	SubsectionHeader *string

	Body string
	// IngestTimestamp is the run identifier shared by every passage of one ingestion run.
	IngestTimestamp string
}

// Validate reports whether the passage can be stored.
func (p Passage) Validate() error {
	if strings.TrimSpace(p.SectionHeader) == "" {
		return ErrMissingSection
	}
	if strings.TrimSpace(p.Body) == "" {
		return ErrEmptyBody
	}
	return nil
}

// Subsection returns the subsection header or "" when absent.
func (p Passage) Subsection() string {
	if p.SubsectionHeader == nil {
		return ""
	}
	return *p.SubsectionHeader
}

// Citation returns the "Vol <v>.<part>.<chapter>" label used in prompts.
func (m DocumentMetadata) Citation() string {
	return fmt.Sprintf("Vol %s.%s.%s", m.VolumeNumber, m.PartLetter, m.ChapterNumber)
}

// NewRunID formats t as an ingestion run identifier.
func NewRunID(t time.Time) string {
	return t.Format(RunIDLayout)
}

// PassageID derives the stable identifier of a passage. The ordinal is the
// passage position within its page and keeps repeated headers apart; the
// same page segmented twice in the same run yields the same identifiers.
func PassageID(sourceURL, section string, subsection *string, run string, ordinal int) string {
	sub := "\x00"
	if subsection != nil {
		sub = *subsection
	}
	key := strings.Join([]string{sourceURL, section, sub, run, strconv.Itoa(ordinal)}, "\x1f")
	return uuid.NewSHA1(passageNamespace, []byte(key)).String()
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
